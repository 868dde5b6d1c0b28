/*
Package connection implements the pairwise connection state machine of the
Aries connection protocol. The inviter creates a pairwise DID and an
invitation. The invitee anon-crypts a request to the invitation key, the
inviter answers with an auth-crypted response which is signed with the
invitation key, and the invitee ends the handshake with an ack.

All the protocol operations of one Connection are serialized with its
operation lock. State getters use their own lock and never wait for the
operations.
*/
package connection

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/sec"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/std/didexchange/invitation"
	"github.com/golang/glog"
)

// ErrReleased is returned by the operations of a released connection.
var ErrReleased = cxserr.New(cxserr.InvalidHandle, "connection released")

// Message is a kept inbound message, e.g. a basic message or an offer which
// waits for the application.
type Message struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	ThreadID string          `json:"thread_id"`
	Payload  json.RawMessage `json:"payload"`
	Received int64           `json:"received"`
}

type Connection struct {
	op sync.Mutex // serializes the protocol operations
	lk sync.RWMutex

	sourceID      string
	role          Role
	state         State
	opts          Options
	invitation    *invitation.Invitation
	threadID      string
	myDID         *ssi.DID
	theirDID      *ssi.DID
	theirLabel    string
	theirEndpoint string
	inbox         []Message
	released      bool

	notify func(s State)
}

// New creates the inviter end of the connection.
func New(sourceID string) *Connection {
	return &Connection{sourceID: sourceID, role: Inviter, state: Initialized}
}

// NewWithInvite creates the invitee end of the connection.
func NewWithInvite(sourceID string, inv *invitation.Invitation) *Connection {
	return &Connection{
		sourceID:   sourceID,
		role:       Invitee,
		state:      Initialized,
		invitation: inv,
		theirLabel: inv.Label,
	}
}

// SetNotify sets the function which is called after every state change.
func (c *Connection) SetNotify(f func(s State)) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.notify = f
}

func (c *Connection) SourceID() string {
	return c.sourceID
}

func (c *Connection) Role() Role {
	return c.role
}

func (c *Connection) State() State {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.state
}

func (c *Connection) ThreadID() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.threadID
}

// MyVerKey returns the verkey of our pairwise DID or empty string before the
// connect.
func (c *Connection) MyVerKey() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.myDID == nil {
		return ""
	}
	return c.myDID.VerKey()
}

func (c *Connection) TheirDID() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.theirDID == nil {
		return ""
	}
	return c.theirDID.Did()
}

func (c *Connection) TheirLabel() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.theirLabel
}

// setState moves the connection to the next state and notifies about it.
func (c *Connection) setState(next State) error {
	c.lk.Lock()
	if !c.state.canMove(c.role, next) {
		cur := c.state
		c.lk.Unlock()
		return cxserr.State("connection %s: %s -> %s not allowed", c.role, cur, next)
	}
	c.state = next
	notify := c.notify
	c.lk.Unlock()

	glog.V(1).Infof("connection %s (%s): %s", c.sourceID, c.role, next)
	if notify != nil {
		notify(next)
	}
	return nil
}

// checkState returns InvalidState if the connection is not in the state s.
func (c *Connection) checkState(s State) error {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.released {
		return ErrReleased
	}
	if c.state != s {
		return cxserr.State("connection is %s, not %s", c.state, s)
	}
	return nil
}

// CheckConnect validates that the connect can be called.
func (c *Connection) CheckConnect() error {
	return c.checkState(Initialized)
}

// CheckSend validates that messages can be sent to the connection.
func (c *Connection) CheckSend() error {
	return c.checkState(Connected)
}

// InviteDetails returns the invitation JSON or the invitation URL when
// abbreviated.
func (c *Connection) InviteDetails(abbreviated bool) (string, error) {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.invitation == nil {
		return "", cxserr.State("connection %s has no invitation", c.state)
	}
	if abbreviated {
		return invitation.URL(c.invitation), nil
	}
	return invitation.Build(c.invitation), nil
}

// Pipe returns the secure pipe to the other end.
func (c *Connection) Pipe() (sec.Pipe, error) {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.myDID == nil || c.theirDID == nil {
		return sec.Pipe{}, cxserr.State("connection %s has no pipe", c.state)
	}
	return sec.Pipe{In: c.myDID, Out: c.theirDID}, nil
}

// Keep stores the inbound message to the inbox of the connection.
func (c *Connection) Keep(msg didcomm.MessageHdr) {
	hdr := msg.Hdr()
	c.lk.Lock()
	defer c.lk.Unlock()
	c.inbox = append(c.inbox, Message{
		ID:       hdr.ID,
		Type:     hdr.Type,
		ThreadID: hdr.ThreadID(),
		Payload:  didcomm.JSON(msg),
		Received: time.Now().Unix(),
	})
}

// Messages returns the kept messages of the type. Empty type returns all.
func (c *Connection) Messages(msgType string) []Message {
	c.lk.RLock()
	defer c.lk.RUnlock()
	msgs := make([]Message, 0, len(c.inbox))
	for _, m := range c.inbox {
		if msgType == "" || m.Type == msgType {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Release closes the connection and wipes its keys from the memory. It waits
// the running operation to end.
func (c *Connection) Release(a *cloud.Agent) {
	c.op.Lock()
	defer c.op.Unlock()

	c.lk.Lock()
	if c.released {
		c.lk.Unlock()
		return
	}
	c.released = true
	if c.state != Closed {
		c.state = Closed
	}
	myDID := c.myDID
	c.lk.Unlock()

	if myDID != nil {
		a.RemoveDID(myDID)
	}
	glog.V(1).Infof("connection %s released", c.sourceID)
}

func (c *Connection) isReleased() bool {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.released
}

type data struct {
	SourceID      string                 `json:"source_id"`
	Role          Role                   `json:"role"`
	State         State                  `json:"state"`
	Options       Options                `json:"options"`
	Invitation    *invitation.Invitation `json:"invitation,omitempty"`
	ThreadID      string                 `json:"thread_id,omitempty"`
	MyDID         string                 `json:"my_did,omitempty"`
	MyVerKey      string                 `json:"my_verkey,omitempty"`
	TheirDID      string                 `json:"their_did,omitempty"`
	TheirVerKey   string                 `json:"their_verkey,omitempty"`
	TheirLabel    string                 `json:"their_label,omitempty"`
	TheirEndpoint string                 `json:"their_endpoint,omitempty"`
	Inbox         []Message              `json:"inbox,omitempty"`
}

// Serialize returns the JSON of the connection. Keys are not included, they
// stay in the wallet.
func (c *Connection) Serialize() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	d := data{
		SourceID:      c.sourceID,
		Role:          c.role,
		State:         c.state,
		Options:       c.opts,
		Invitation:    c.invitation,
		ThreadID:      c.threadID,
		TheirLabel:    c.theirLabel,
		TheirEndpoint: c.theirEndpoint,
		Inbox:         c.inbox,
	}
	if c.myDID != nil {
		d.MyDID, d.MyVerKey = c.myDID.Did(), c.myDID.VerKey()
	}
	if c.theirDID != nil {
		d.TheirDID, d.TheirVerKey = c.theirDID.Did(), c.theirDID.VerKey()
	}
	return dto.ToJSON(d)
}

// check validates that the state has the fields the protocol needs in it.
func (d *data) check(n int) error {
	if !d.State.Valid() || !d.Role.has(d.State) {
		return cxserr.Param(n, "connection: state %s role %s", d.State, d.Role)
	}
	if d.Role == Invitee && (d.Invitation == nil || len(d.Invitation.RecipientKeys) == 0) {
		return cxserr.Param(n, "connection: invitee without invitation key")
	}
	if d.State == Initialized || d.State == Closed {
		return nil
	}
	if d.MyDID == "" || d.ThreadID == "" {
		return cxserr.Param(n, "connection: %s without DID or thread", d.State)
	}
	if d.State >= RequestReceived && d.TheirVerKey == "" {
		return cxserr.Param(n, "connection: %s without their verkey", d.State)
	}
	return nil
}

// Deserialize builds the connection from the JSON. Our pairwise keys are
// loaded from the wallet of the agent.
func Deserialize(a *cloud.Agent, s string, n int) (c *Connection, err error) {
	var d data
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "connection")
	}
	if err := d.check(n); err != nil {
		return nil, err
	}
	c = &Connection{
		sourceID:      d.SourceID,
		role:          d.Role,
		state:         d.State,
		opts:          d.Options,
		invitation:    d.Invitation,
		threadID:      d.ThreadID,
		theirLabel:    d.TheirLabel,
		theirEndpoint: d.TheirEndpoint,
		inbox:         d.Inbox,
	}
	if d.MyDID != "" {
		if c.myDID, err = a.LoadDID(d.MyDID); err != nil {
			return nil, err
		}
		if c.myDID.VerKey() != d.MyVerKey {
			return nil, cxserr.New(cxserr.CryptoError, "connection: verkey mismatch")
		}
	}
	if d.TheirVerKey != "" {
		if c.theirDID, err = a.OutDID(d.TheirVerKey); err != nil {
			return nil, err
		}
	}
	return c, nil
}
