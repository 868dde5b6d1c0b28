/*
Package holder implements the holder side of the claim issuance protocol.
The claim is created from the received offer, the request is sent to the
issuer, and the issued claim is verified and stored to the wallet.
*/
package holder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/issuecredential"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type State uint32

const (
	StateNone State = iota
	OfferReceived
	RequestSent
	Received
	Rejected
)

func (s State) String() string {
	switch s {
	case OfferReceived:
		return "offer_received"
	case RequestSent:
		return "request_sent"
	case Received:
		return "received"
	case Rejected:
		return "rejected"
	case StateNone:
		return "none"
	}
	return fmt.Sprintf("State(%d)", s)
}

func (s State) Valid() bool {
	return s > StateNone && s <= Rejected
}

func (s State) Terminal() bool {
	return s >= Received
}

type Conn interface {
	Send(ctx context.Context, a *cloud.Agent, msg didcomm.MessageHdr) error
}

type Claim struct {
	op sync.Mutex
	lk sync.RWMutex

	sourceID   string
	state      State
	threadID   string
	connHandle uint32
	offer      *anoncreds.Offer
	preview    map[string]string
	claimID    string
	message    string

	notify func(s State)
}

// New creates the holder claim from the offer message JSON.
func New(sourceID, offerJSON string) (c *Claim, err error) {
	msg, err := didcomm.ParseAs[*issuecredential.Offer]([]byte(offerJSON))
	if err != nil {
		return nil, err
	}
	data, err := issuecredential.OfferAttach(msg)
	if err != nil {
		return nil, err
	}
	var offer anoncreds.Offer
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "claim offer")
	}
	if offer.Nonce == "" || offer.IssuerDID == "" {
		return nil, cxserr.Param(2, "claim offer incomplete")
	}
	preview := make(map[string]string, len(msg.CredentialPreview.Attributes))
	for _, a := range msg.CredentialPreview.Attributes {
		preview[a.Name] = a.Value
	}
	return &Claim{
		sourceID: sourceID,
		state:    OfferReceived,
		threadID: msg.ThreadID(),
		offer:    &offer,
		preview:  preview,
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
	return c.threadID
}

// ConnHandle returns the handle of the connection the request was sent to.
func (c *Claim) ConnHandle() uint32 {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.connHandle
}

// Preview returns the attribute values the issuer offered.
func (c *Claim) Preview() map[string]string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	m := make(map[string]string, len(c.preview))
	for k, v := range c.preview {
		m[k] = v
	}
	return m
}

func (c *Claim) setState(from, next State) error {
	c.lk.Lock()
	if c.state != from {
		cur := c.state
		c.lk.Unlock()
		return cxserr.State("holder claim %s is %s, not %s", c.sourceID, cur, from)
	}
	c.state = next
	notify := c.notify
	c.lk.Unlock()

	glog.V(1).Infof("holder claim %s: %s", c.sourceID, next)
	if notify != nil {
		notify(next)
	}
	return nil
}

func (c *Claim) CheckRequest() error {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.state != OfferReceived {
		return cxserr.State("holder claim %s is %s", c.sourceID, c.state)
	}
	return nil
}

// SendRequest sends the claim request to the issuer. The root DID of the
// agent is the prover DID. The thread is bound to the connection handle.
func (c *Claim) SendRequest(ctx context.Context, a *cloud.Agent, conn Conn, connHandle uint32) (err error) {
	defer err2.Handle(&err, "holder claim %s request", c.sourceID)

	c.op.Lock()
	defer c.op.Unlock()
	try.To(c.CheckRequest())

	req := try.To1(a.Creds.CreateRequest(c.offer, a.RootDID().Did()))
	c.lk.Lock()
	c.connHandle = connHandle
	c.lk.Unlock()
	if err := conn.Send(ctx, a, issuecredential.NewRequest(c.threadID, dto.ToJSONBytes(req))); err != nil {
		c.lk.Lock()
		c.connHandle = 0
		c.lk.Unlock()
		return err
	}
	return c.setState(OfferReceived, RequestSent)
}

// Reject refuses the offer and tells it to the issuer with a problem report.
func (c *Claim) Reject(ctx context.Context, a *cloud.Agent, conn Conn, reason string) (err error) {
	defer err2.Handle(&err, "holder claim %s reject", c.sourceID)

	c.op.Lock()
	defer c.op.Unlock()

	from := c.State()
	if from.Terminal() {
		return cxserr.State("holder claim %s is %s", c.sourceID, from)
	}
	c.lk.Lock()
	c.message = reason
	c.lk.Unlock()
	try.To(c.setState(from, Rejected))

	if conn != nil {
		pr := common.NewProblemReport(c.threadID, "offer-rejected", reason)
		if err := conn.Send(ctx, a, pr); err != nil {
			glog.Warningf("holder claim %s: problem report: %v", c.sourceID, err)
		}
	}
	return nil
}

// Claim returns the JSON of the stored claim.
func (c *Claim) Claim(a *cloud.Agent) (string, error) {
	c.lk.RLock()
	claimID := c.claimID
	c.lk.RUnlock()
	if claimID == "" {
		return "", cxserr.New(cxserr.NoDataAvailable, "holder claim %s not received", c.sourceID)
	}
	claims, err := anoncreds.Claims(a.Wallet)
	if err != nil {
		return "", err
	}
	for _, cl := range claims {
		if cl.ClaimID == claimID {
			return dto.ToJSON(cl), nil
		}
	}
	return "", cxserr.New(cxserr.WalletError, "claim %s not in wallet", claimID)
}

type data struct {
	SourceID   string            `json:"source_id"`
	State      State             `json:"state"`
	ThreadID   string            `json:"thread_id"`
	ConnHandle uint32            `json:"connection_handle,omitempty"`
	Offer      *anoncreds.Offer  `json:"offer"`
	Preview    map[string]string `json:"preview,omitempty"`
	ClaimID    string            `json:"claim_id,omitempty"`
	Message    string            `json:"message,omitempty"`
}

func (c *Claim) Serialize() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return dto.ToJSON(data{
		SourceID:   c.sourceID,
		State:      c.state,
		ThreadID:   c.threadID,
		ConnHandle: c.connHandle,
		Offer:      c.offer,
		Preview:    c.preview,
		ClaimID:    c.claimID,
		Message:    c.message,
	})
}

func Deserialize(s string, n int) (c *Claim, err error) {
	var d data
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "holder claim")
	}
	if !d.State.Valid() || d.Offer == nil || d.ThreadID == "" {
		return nil, cxserr.Param(n, "holder claim data incomplete")
	}
	if d.State == RequestSent && d.ConnHandle == 0 {
		return nil, cxserr.Param(n, "holder claim %s without connection", d.State)
	}
	if d.State == Received && d.ClaimID == "" {
		return nil, cxserr.Param(n, "holder claim %s without claim", d.State)
	}
	return &Claim{
		sourceID:   d.SourceID,
		state:      d.State,
		threadID:   d.ThreadID,
		connHandle: d.ConnHandle,
		offer:      d.Offer,
		preview:    d.Preview,
		claimID:    d.ClaimID,
		message:    d.Message,
	}, nil
}
