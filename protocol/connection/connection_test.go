package connection

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"sync"
	"testing"

	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/trans/transmock"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/findy-network/findy-cxs/std/basicmessage"
	"github.com/findy-network/findy-cxs/std/didexchange/invitation"
	"github.com/golang/mock/gomock"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	ledgerMem = ledger.NewMem()
	loop      = trans.NewLoopback()
	wallets   = wallet.NewMemory()
)

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	_ = flag.Set("v", "0")
	os.Exit(m.Run())
}

// peer is an agent with the connections it routes the inbound messages to.
type peer struct {
	*cloud.Agent
	sync.Mutex
	conns    []*Connection
	received []string
}

func newPeer(t *testing.T, name string, tr trans.Transport) *peer {
	a := cloud.New(cloud.Config{
		Label:    name,
		Endpoint: name,
		Wallet:   try.To1(wallets.Open(wallet.Config{Name: name, Key: try.To1(wallet.NewKey())})),
		Ledger:   ledgerMem,
		Tr:       tr,
	})
	try.To(a.InitRoot(context.Background(), nil))
	p := &peer{Agent: a}
	a.SetRouter(p.route)
	loop.Register(name, a.Receive)
	return p
}

func (p *peer) add(c *Connection) *Connection {
	p.Lock()
	defer p.Unlock()
	p.conns = append(p.conns, c)
	return c
}

func (p *peer) route(me *ssi.DID, senderVK string, payload []byte) error {
	p.Lock()
	var c *Connection
	for _, conn := range p.conns {
		if conn.MyVerKey() == me.VerKey() {
			c = conn
		}
	}
	p.Unlock()
	if c == nil {
		return cxserr.New(cxserr.InvalidHandle, "no connection")
	}
	msg, err := c.Receive(context.Background(), p.Agent, senderVK, payload)
	if err != nil || msg == nil {
		return err
	}
	if bm, ok := msg.(*basicmessage.Basicmessage); ok {
		p.Lock()
		p.received = append(p.received, bm.Content)
		p.Unlock()
	}
	c.Keep(msg)
	return nil
}

func connect(t *testing.T, inviter, invitee *peer) (c1, c2 *Connection) {
	c1 = inviter.add(New("inviter"))
	states := make([]State, 0, 3)
	var lk sync.Mutex
	c1.SetNotify(func(s State) {
		lk.Lock()
		states = append(states, s)
		lk.Unlock()
	})
	assert.NoError(c1.Connect(context.Background(), inviter.Agent, Options{ConnectionType: TypeQR}))
	assert.Equal(c1.State(), Invited)

	details := try.To1(c1.InviteDetails(false))
	inv := try.To1(invitation.Translate(details, 1))
	c2 = invitee.add(NewWithInvite("invitee", inv))
	assert.NoError(c2.Connect(context.Background(), invitee.Agent, Options{ConnectionType: TypeQR}))
	loop.Wait()

	assert.Equal(c1.State(), Connected)
	assert.Equal(c2.State(), Connected)

	lk.Lock()
	defer lk.Unlock()
	for i := 1; i < len(states); i++ {
		assert.That(states[i-1] < states[i], "state moved backwards: %v", states)
	}
	assert.Equal(states[len(states)-1], Connected)
	return c1, c2
}

func TestConnect(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	alice := newPeer(t, "alice", loop)
	bob := newPeer(t, "bob", loop)
	c1, c2 := connect(t, alice, bob)

	assert.Equal(c1.TheirDID(), try.To1(bob.OutDID(c2.MyVerKey())).Did())
	assert.Equal(c2.TheirDID(), try.To1(alice.OutDID(c1.MyVerKey())).Did())
	assert.Equal(c1.TheirLabel(), "bob")
	assert.Equal(c2.TheirLabel(), "alice")
	assert.Equal(c1.ThreadID(), c2.ThreadID())

	// connect is allowed only once
	err := c1.Connect(context.Background(), alice.Agent, Options{ConnectionType: TypeQR})
	assert.That(errors.Is(err, cxserr.ErrInvalidState))

	_ = try.To1(c2.SendMessage(context.Background(), bob.Agent, "hello alice"))
	loop.Wait()
	alice.Lock()
	assert.Equal(len(alice.received), 1)
	assert.Equal(alice.received[0], "hello alice")
	alice.Unlock()
	assert.Equal(len(c1.Messages("")), 1)
}

func TestSendBeforeConnected(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	alice := newPeer(t, "carol", loop)
	c := alice.add(New("not-ready"))
	_, err := c.SendMessage(context.Background(), alice.Agent, "too early")
	assert.That(errors.Is(err, cxserr.ErrInvalidState))

	_, err = c.InviteDetails(true)
	assert.That(errors.Is(err, cxserr.ErrInvalidState))
}

func TestSerialize(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	alice := newPeer(t, "dave", loop)
	bob := newPeer(t, "erin", loop)
	c1, c2 := connect(t, alice, bob)

	invitee := try.To1(Deserialize(bob.Agent, c2.Serialize(), 1))
	assert.Equal(invitee.State(), Connected)
	assert.Equal(invitee.Role(), Invitee)
	assert.Equal(invitee.TheirDID(), c2.TheirDID())
	assert.Equal(invitee.Serialize(), c2.Serialize())

	s := c1.Serialize()
	c := try.To1(Deserialize(alice.Agent, s, 1))
	assert.Equal(c.State(), c1.State())
	assert.Equal(c.Role(), c1.Role())
	assert.Equal(c.SourceID(), c1.SourceID())
	assert.Equal(c.MyVerKey(), c1.MyVerKey())
	assert.Equal(c.TheirDID(), c1.TheirDID())
	assert.Equal(c.ThreadID(), c1.ThreadID())
	assert.Equal(c.Serialize(), s)

	_, err := Deserialize(alice.Agent, "{", 1)
	assert.That(errors.Is(err, cxserr.ErrInvalidJSON))
	_, err = Deserialize(alice.Agent, `{"state":99,"role":1}`, 1)
	assert.That(errors.Is(err, cxserr.ErrInvalidParam))
}

func TestDeserializeStateFields(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	alice := newPeer(t, "heidi", loop)
	bob := newPeer(t, "ivan", loop)
	_, c2 := connect(t, alice, bob)
	base := c2.Serialize()

	tests := []struct {
		name string
		edit func(d map[string]any)
		ok   bool
	}{
		{"as is", func(map[string]any) {}, true},
		{"no invitation", func(d map[string]any) { delete(d, "invitation") }, false},
		{"request sent no invitation", func(d map[string]any) {
			d["state"] = RequestSent
			delete(d, "invitation")
		}, false},
		{"no invitation key", func(d map[string]any) {
			d["invitation"].(map[string]any)["recipientKeys"] = []string{}
		}, false},
		{"connected no their key", func(d map[string]any) { delete(d, "their_verkey") }, false},
		{"response received no their key", func(d map[string]any) {
			d["state"] = ResponseReceived
			delete(d, "their_verkey")
		}, false},
		{"no thread", func(d map[string]any) { delete(d, "thread_id") }, false},
		{"no DID", func(d map[string]any) {
			d["state"] = RequestSent
			delete(d, "my_did")
		}, false},
		{"inviter state for invitee", func(d map[string]any) { d["state"] = Invited }, false},
		{"invitee state for inviter", func(d map[string]any) {
			d["role"] = Inviter
			d["state"] = RequestSent
		}, false},
		{"closed no their key", func(d map[string]any) {
			d["state"] = Closed
			delete(d, "their_verkey")
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			var d map[string]any
			try.To(json.Unmarshal([]byte(base), &d))
			tt.edit(d)
			_, err := Deserialize(bob.Agent, string(try.To1(json.Marshal(d))), 2)
			if tt.ok {
				assert.NoError(err)
			} else {
				assert.That(errors.Is(err, cxserr.ErrInvalidParam), "got %v", err)
			}
		})
	}
}

func TestRelease(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	alice := newPeer(t, "frank", loop)
	bob := newPeer(t, "grace", loop)
	c1, c2 := connect(t, alice, bob)

	c1.Release(alice.Agent)
	assert.Equal(c1.State(), Closed)
	_, err := c1.SendMessage(context.Background(), alice.Agent, "gone")
	assert.That(errors.Is(err, ErrReleased))

	// the keys are wiped, inbound doesn't reach the released connection
	_, err = c2.SendMessage(context.Background(), bob.Agent, "anybody there")
	assert.NoError(err)
	loop.Wait()
	alice.Lock()
	assert.Equal(len(alice.received), 0)
	alice.Unlock()

	c1.Release(alice.Agent)
	assert.Equal(c1.State(), Closed)
}

func TestConnectTransportFailure(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := transmock.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), "nowhere", gomock.Any()).
		Return(cxserr.New(cxserr.ConnectionError, "no route")).Times(2)

	alice := newPeer(t, "heidi", loop)
	bob := newPeer(t, "ivan", tr)

	c1 := alice.add(New("inviter"))
	assert.NoError(c1.Connect(context.Background(), alice.Agent, Options{ConnectionType: TypeQR}))
	inv := try.To1(invitation.Translate(try.To1(c1.InviteDetails(false)), 1))
	inv.ServiceEndpoint = "nowhere"

	c2 := bob.add(NewWithInvite("invitee", inv))
	err := c2.Connect(context.Background(), bob.Agent, Options{ConnectionType: TypeQR})
	assert.That(errors.Is(err, cxserr.ErrConnection))
	assert.Equal(c2.State(), Initialized)

	// state stays so the connect can be retried
	err = c2.Connect(context.Background(), bob.Agent, Options{ConnectionType: TypeQR})
	assert.That(errors.Is(err, cxserr.ErrConnection))
	assert.Equal(c2.State(), Initialized)
}

func TestParseOptions(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	opts, err := ParseOptions("", 2)
	assert.NoError(err)
	assert.Equal(opts.ConnectionType, TypeQR)

	opts, err = ParseOptions(`{"connection_type":"SMS","phone":"8005551234"}`, 2)
	assert.NoError(err)
	assert.Equal(opts.Phone, "8005551234")

	_, err = ParseOptions(`{"connection_type":"SMS"}`, 2)
	assert.That(errors.Is(err, &cxserr.Error{Code: cxserr.InvalidParam, Param: 2}))
	_, err = ParseOptions(`{"connection_type":"QR","extra":1}`, 2)
	assert.That(errors.Is(err, cxserr.ErrInvalidParam))
	_, err = ParseOptions(`{"connection_type":`, 2)
	assert.That(errors.Is(err, cxserr.ErrInvalidJSON))
}
