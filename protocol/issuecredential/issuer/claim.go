/*
Package issuer implements the issuer side of the claim issuance protocol.
The claim is created for a claim definition with the attribute values. The
offer is sent over a connection, the request of the holder is received
and accepted by the application, and finally the signed claim is sent.
*/
package issuer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/protocol/schema"
	"github.com/findy-network/findy-cxs/std/issuecredential"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Conn is the connection the protocol messages are sent over.
type Conn interface {
	Send(ctx context.Context, a *cloud.Agent, msg didcomm.MessageHdr) error
}

type Claim struct {
	op sync.Mutex
	lk sync.RWMutex

	sourceID   string
	ref        anoncreds.ClaimDefRef
	keyDID     string
	values     map[string]string
	state      State
	connHandle uint32
	threadID   string
	offer      *anoncreds.Offer
	request    *anoncreds.Request
	message    string
	offerTime  int64

	notify func(s State)
}

// New creates the claim of the claim definition. The values JSON is an
// object of attribute names and values, which must match the schema.
func New(sourceID string, cd *schema.ClaimDef, valuesJSON string) (c *Claim, err error) {
	attrs, err := cd.Attrs()
	if err != nil {
		return nil, cxserr.Param(2, "claim def: %v", err)
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "claim data")
	}
	if err := schema.CheckValues(attrs, values, 3); err != nil {
		return nil, err
	}
	return &Claim{
		sourceID: sourceID,
		ref:      cd.Ref(),
		keyDID:   cd.KeyDID(),
		values:   values,
		state:    Initialized,
	}, nil
}

func (c *Claim) SetNotify(f func(s State)) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.notify = f
}

func (c *Claim) SourceID() string {
	return c.sourceID
}

func (c *Claim) State() State {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.state
}

func (c *Claim) ThreadID() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.threadID
}

// ConnHandle returns the handle of the connection the offer was sent to.
func (c *Claim) ConnHandle() uint32 {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.connHandle
}

// Message returns the diagnostic message of the terminated claim.
func (c *Claim) Message() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.message
}

func (c *Claim) setState(next State) error {
	c.lk.Lock()
	if !c.state.canMove(next) {
		cur := c.state
		c.lk.Unlock()
		return cxserr.State("claim %s: %s -> %s not allowed", c.sourceID, cur, next)
	}
	c.state = next
	notify := c.notify
	c.lk.Unlock()

	glog.V(1).Infof("claim %s: %s", c.sourceID, next)
	if notify != nil {
		notify(next)
	}
	return nil
}

func (c *Claim) checkState(s State) error {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.state != s {
		return cxserr.State("claim %s is %s, not %s", c.sourceID, c.state, s)
	}
	return nil
}

// CheckOffer validates that the offer can be sent.
func (c *Claim) CheckOffer() error {
	return c.checkState(Initialized)
}

// CheckSend validates that the claim can be sent.
func (c *Claim) CheckSend() error {
	return c.checkState(Accepted)
}

// SendOffer creates the claim offer and sends it to the connection.
func (c *Claim) SendOffer(ctx context.Context, a *cloud.Agent, conn Conn, connHandle uint32) (err error) {
	defer err2.Handle(&err, "claim %s offer", c.sourceID)

	c.op.Lock()
	defer c.op.Unlock()
	try.To(c.CheckOffer())

	offer := try.To1(a.Creds.CreateOffer(c.ref, c.values))
	offer.ClaimName = c.sourceID
	msg := issuecredential.NewOffer(c.sourceID, c.values, dto.ToJSONBytes(offer))

	// thread is set first, the request can arrive before Send returns
	c.lk.Lock()
	c.threadID = msg.ThreadID()
	c.offer = offer
	c.connHandle = connHandle
	c.lk.Unlock()

	if err := conn.Send(ctx, a, msg); err != nil {
		c.lk.Lock()
		c.threadID, c.offer, c.connHandle = "", nil, 0
		c.lk.Unlock()
		return err
	}
	c.lk.Lock()
	c.offerTime = time.Now().Unix()
	c.lk.Unlock()
	return c.setState(OfferSent)
}

// Request returns the JSON of the latest claim request.
func (c *Claim) Request() (string, error) {
	c.lk.RLock()
	defer c.lk.RUnlock()
	switch {
	case c.state < OfferSent:
		return "", cxserr.State("claim %s offer not sent", c.sourceID)
	case c.request == nil:
		return "", cxserr.New(cxserr.NoDataAvailable, "claim %s has no request", c.sourceID)
	}
	return dto.ToJSON(c.request), nil
}

// Accept marks the received request accepted by the application.
func (c *Claim) Accept() error {
	c.op.Lock()
	defer c.op.Unlock()
	if err := c.checkState(RequestReceived); err != nil {
		return err
	}
	return c.setState(Accepted)
}

// SendClaim signs the claim with the claim definition key and sends it to
// the connection.
func (c *Claim) SendClaim(ctx context.Context, a *cloud.Agent, conn Conn) (err error) {
	defer err2.Handle(&err, "send claim %s", c.sourceID)

	c.op.Lock()
	defer c.op.Unlock()
	try.To(c.CheckSend())

	key := try.To1(ssi.Load(a.Wallet, c.keyDID))
	defer key.Wipe()

	c.lk.RLock()
	offer, req, thid := c.offer, c.request, c.threadID
	c.lk.RUnlock()

	claim := try.To1(a.Creds.CreateClaim(key, offer, req, c.values))
	try.To(conn.Send(ctx, a, issuecredential.NewIssue(thid, dto.ToJSONBytes(claim))))
	return c.setState(Fulfilled)
}

// Terminate forces the claim to the terminal state with the diagnostic
// message.
func (c *Claim) Terminate(s State, msg string) error {
	if !s.Terminal() || s == Fulfilled {
		return cxserr.Param(2, "state %s is not a termination state", s)
	}
	c.op.Lock()
	defer c.op.Unlock()
	return c.terminate(s, msg)
}

func (c *Claim) terminate(s State, msg string) error {
	c.lk.Lock()
	if c.state.Terminal() {
		cur := c.state
		c.lk.Unlock()
		return cxserr.State("claim %s is %s", c.sourceID, cur)
	}
	c.message = msg
	c.lk.Unlock()
	return c.setState(s)
}

// Expire moves the claim to Expired if its offer is waiting longer than
// ttl. It doesn't wait for the running operation.
func (c *Claim) Expire(ttl time.Duration, now time.Time) bool {
	if !c.op.TryLock() {
		return false
	}
	defer c.op.Unlock()

	c.lk.RLock()
	expired := c.state == OfferSent &&
		now.Sub(time.Unix(c.offerTime, 0)) > ttl
	c.lk.RUnlock()
	if !expired {
		return false
	}
	return c.terminate(Expired, "offer expired") == nil
}

type data struct {
	SourceID   string                `json:"source_id"`
	ClaimDef   anoncreds.ClaimDefRef `json:"claim_def"`
	KeyDID     string                `json:"key_did"`
	Values     map[string]string     `json:"claim_data"`
	State      State                 `json:"state"`
	ConnHandle uint32                `json:"connection_handle,omitempty"`
	ThreadID   string                `json:"thread_id,omitempty"`
	Offer      *anoncreds.Offer      `json:"offer,omitempty"`
	Request    *anoncreds.Request    `json:"request,omitempty"`
	Message    string                `json:"message,omitempty"`
	OfferTime  int64                 `json:"offer_time,omitempty"`
}

func (c *Claim) Serialize() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return dto.ToJSON(data{
		SourceID:   c.sourceID,
		ClaimDef:   c.ref,
		KeyDID:     c.keyDID,
		Values:     c.values,
		State:      c.state,
		ConnHandle: c.connHandle,
		ThreadID:   c.threadID,
		Offer:      c.offer,
		Request:    c.request,
		Message:    c.message,
		OfferTime:  c.offerTime,
	})
}

// check validates that the state has the protocol data it needs. Terminal
// states are kept as they are.
func (d *data) check(n int) error {
	if !d.State.Valid() || d.KeyDID == "" || len(d.Values) == 0 {
		return cxserr.Param(n, "claim data incomplete")
	}
	if d.State == Initialized || d.State.Terminal() {
		return nil
	}
	if d.Offer == nil || d.ThreadID == "" || d.ConnHandle == 0 {
		return cxserr.Param(n, "claim %s without offer", d.State)
	}
	if d.State >= RequestReceived && d.Request == nil {
		return cxserr.Param(n, "claim %s without request", d.State)
	}
	return nil
}

func Deserialize(s string, n int) (c *Claim, err error) {
	var d data
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "claim")
	}
	if err := d.check(n); err != nil {
		return nil, err
	}
	return &Claim{
		sourceID:   d.SourceID,
		ref:        d.ClaimDef,
		keyDID:     d.KeyDID,
		values:     d.Values,
		state:      d.State,
		connHandle: d.ConnHandle,
		threadID:   d.ThreadID,
		offer:      d.Offer,
		request:    d.Request,
		message:    d.Message,
		offerTime:  d.OfferTime,
	}, nil
}
