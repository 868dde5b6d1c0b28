package issuecredential

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/holder"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/issuer"
	"github.com/findy-network/findy-cxs/protocol/schema"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	ledgerMem = ledger.NewMem()
	wallets   = wallet.NewMemory()
)

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	_ = flag.Set("v", "0")
	os.Exit(m.Run())
}

func newAgent(name string) *cloud.Agent {
	a := cloud.New(cloud.Config{
		Label:  name,
		Wallet: try.To1(wallets.Open(wallet.Config{Name: name, Key: try.To1(wallet.NewKey())})),
		Ledger: ledgerMem,
		Tr:     trans.NewLoopback(),
	})
	try.To(a.InitRoot(context.Background(), nil))
	return a
}

// queue is the connection of the test. Sent messages wait in the queue
// until the test delivers them.
type queue struct {
	msgs []didcomm.MessageHdr
}

func (q *queue) Send(_ context.Context, _ *cloud.Agent, msg didcomm.MessageHdr) error {
	// through JSON like on the wire
	q.msgs = append(q.msgs, try.To1(didcomm.Parse(didcomm.JSON(msg))))
	return nil
}

func (q *queue) pop() didcomm.MessageHdr {
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m
}

func TestIssueFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	faber := newAgent("faber")
	alice := newAgent("alice")

	s := try.To1(schema.New("schema", "Degree", "1.0", `["degree","year"]`))
	cd := try.To1(schema.NewClaimDef("cd", try.To1(s.Commit(ctx, faber)), "t"))
	try.To(cd.Create(ctx, faber))

	var (
		issuers = map[string]*issuer.Claim{}
		holders = map[string]*holder.Claim{}
	)
	proc := Processor{
		Issuer: func(thid string) *issuer.Claim { return issuers[thid] },
		Holder: func(thid string) *holder.Claim { return holders[thid] },
	}
	toAlice, toFaber := &queue{}, &queue{}

	ic := try.To1(issuer.New("degree", cd, `{"degree":"MSc","year":"2020"}`))
	try.To(ic.SendOffer(ctx, faber, toAlice, 1))
	issuers[ic.ThreadID()] = ic

	offer := toAlice.pop()
	handled, err := proc.Handle(ctx, alice, toFaber, offer)
	assert.NoError(err)
	assert.That(!handled, "offer waits for the application")

	hc := try.To1(holder.New("my-degree", string(didcomm.JSON(offer))))
	holders[hc.ThreadID()] = hc
	assert.Equal(hc.State(), holder.OfferReceived)
	assert.Equal(hc.Preview()["degree"], "MSc")
	try.To(hc.SendRequest(ctx, alice, toFaber, 1))
	assert.Equal(hc.State(), holder.RequestSent)

	handled, err = proc.Handle(ctx, faber, toAlice, toFaber.pop())
	assert.NoError(err)
	assert.That(handled)
	assert.Equal(ic.State(), issuer.RequestReceived)

	try.To(ic.Accept())
	try.To(ic.SendClaim(ctx, faber, toAlice))
	assert.Equal(ic.State(), issuer.Fulfilled)

	_, err = hc.Claim(alice)
	assert.That(errors.Is(err, cxserr.ErrNoDataAvailable))
	handled, err = proc.Handle(ctx, alice, toFaber, toAlice.pop())
	assert.NoError(err)
	assert.That(handled)
	assert.Equal(hc.State(), holder.Received)

	claims := try.To1(anoncreds.Claims(alice.Wallet))
	assert.Equal(len(claims), 1)
	assert.Equal(claims[0].Values["year"].Raw, "2020")
	assert.NotEmpty(try.To1(hc.Claim(alice)))

	// the ack
	handled, err = proc.Handle(ctx, faber, toAlice, toFaber.pop())
	assert.NoError(err)
	assert.That(handled)

	hc2 := try.To1(holder.Deserialize(hc.Serialize(), 1))
	assert.Equal(hc2.Serialize(), hc.Serialize())
}

func TestHolderReject(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	faber := newAgent("faber2")
	alice := newAgent("alice2")

	s := try.To1(schema.New("schema", "Member", "1.0", `["level"]`))
	cd := try.To1(schema.NewClaimDef("cd", try.To1(s.Commit(ctx, faber)), ""))
	try.To(cd.Create(ctx, faber))

	ic := try.To1(issuer.New("member", cd, `{"level":"gold"}`))
	toAlice, toFaber := &queue{}, &queue{}
	try.To(ic.SendOffer(ctx, faber, toAlice, 1))

	hc := try.To1(holder.New("m", string(didcomm.JSON(toAlice.pop()))))
	assert.NoError(hc.Reject(ctx, alice, toFaber, "not interested"))
	assert.Equal(hc.State(), holder.Rejected)
	assert.That(errors.Is(hc.SendRequest(ctx, alice, toFaber, 1), cxserr.ErrInvalidState))

	proc := Processor{
		Issuer: func(string) *issuer.Claim { return ic },
		Holder: func(string) *holder.Claim { return nil },
	}
	handled, err := proc.Handle(ctx, faber, toAlice, toFaber.pop())
	assert.NoError(err)
	assert.That(handled)
	assert.Equal(ic.State(), issuer.Unfulfilled)
}

func TestUnknownThread(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	proc := Processor{
		Issuer: func(string) *issuer.Claim { return nil },
		Holder: func(string) *holder.Claim { return nil },
	}
	faber := newAgent("faber3")
	msg := try.To1(didcomm.Parse([]byte(`{"@type":"` + pltype.IssueCredentialRequest + `","@id":"1"}`)))
	_, err := proc.Handle(context.Background(), faber, &queue{}, msg)
	assert.That(errors.Is(err, cxserr.ErrNoDataAvailable))

	_, err = holder.New("x", `{"@type":"unknown"}`)
	assert.Error(err)
}
