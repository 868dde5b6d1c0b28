// Package verifier implements the verifier side of the proof exchange.
package verifier

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
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/presentproof"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type State uint32

const (
	StateUndefined State = iota
	Initialized
	ConnectionSet
	RequestSent
	OfferReceived
	Accepted
	Rejected
)

var stateNames = [...]string{
	StateUndefined: "undefined",
	Initialized:    "initialized",
	ConnectionSet:  "connection_set",
	RequestSent:    "request_sent",
	OfferReceived:  "offer_received",
	Accepted:       "accepted",
	Rejected:       "rejected",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

func (s State) Valid() bool {
	return s > StateUndefined && s <= Rejected
}

func (s State) Terminal() bool {
	return s >= Accepted
}

type Conn interface {
	Send(ctx context.Context, a *cloud.Agent, msg didcomm.MessageHdr) error
}

type Proof struct {
	op sync.Mutex
	lk sync.RWMutex

	sourceID   string
	request    *anoncreds.ProofRequest
	state      State
	connHandle uint32
	threadID   string
	proof      *anoncreds.Proof
	diagnostic string
	message    string

	notify func(s State)
}

// New creates the proof with its request.
func New(sourceID, attrsJSON, predsJSON, name string) (p *Proof, err error) {
	req, err := NewRequest(name, attrsJSON, predsJSON)
	if err != nil {
		return nil, err
	}
	return &Proof{sourceID: sourceID, request: req, state: Initialized}, nil
}

func (p *Proof) SetNotify(f func(s State)) {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.notify = f
}

func (p *Proof) SourceID() string {
	return p.sourceID
}

func (p *Proof) State() State {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return p.state
}

func (p *Proof) ThreadID() string {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return p.threadID
}

func (p *Proof) ConnHandle() uint32 {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return p.connHandle
}

// Message returns the reason of the rejection.
func (p *Proof) Message() string {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return p.message
}

// Request returns the JSON of the proof request.
func (p *Proof) Request() string {
	return dto.ToJSON(p.request)
}

func (p *Proof) setState(from []State, next State) error {
	p.lk.Lock()
	ok := false
	for _, s := range from {
		ok = ok || p.state == s
	}
	if !ok {
		cur := p.state
		p.lk.Unlock()
		return cxserr.State("proof %s: %s -> %s not allowed", p.sourceID, cur, next)
	}
	moved := p.state != next
	p.state = next
	notify := p.notify
	p.lk.Unlock()

	if moved {
		glog.V(1).Infof("proof %s: %s", p.sourceID, next)
		if notify != nil {
			notify(next)
		}
	}
	return nil
}

// SetConnection binds the proof to the connection. It can be changed until
// the request is sent.
func (p *Proof) SetConnection(connHandle uint32) error {
	p.op.Lock()
	defer p.op.Unlock()
	p.lk.Lock()
	if p.state != Initialized && p.state != ConnectionSet {
		cur := p.state
		p.lk.Unlock()
		return cxserr.State("proof %s is %s", p.sourceID, cur)
	}
	p.connHandle = connHandle
	p.lk.Unlock()
	return p.setState([]State{Initialized, ConnectionSet}, ConnectionSet)
}

// CheckRequest validates that the request can be sent.
func (p *Proof) CheckRequest() error {
	p.lk.RLock()
	defer p.lk.RUnlock()
	if p.state != ConnectionSet {
		return cxserr.State("proof %s is %s, connection not set", p.sourceID, p.state)
	}
	return nil
}

// SendRequest sends the proof request to the bound connection.
func (p *Proof) SendRequest(ctx context.Context, a *cloud.Agent, conn Conn) (err error) {
	defer err2.Handle(&err, "proof %s request", p.sourceID)

	p.op.Lock()
	defer p.op.Unlock()
	try.To(p.CheckRequest())

	msg := presentproof.NewRequest(p.request.Name, dto.ToJSONBytes(p.request))
	p.lk.Lock()
	p.threadID = msg.ThreadID()
	p.lk.Unlock()

	if err := conn.Send(ctx, a, msg); err != nil {
		p.lk.Lock()
		p.threadID = ""
		p.lk.Unlock()
		return err
	}
	return p.setState([]State{ConnectionSet}, RequestSent)
}

// ProofOffer returns the verified proof JSON. If the received presentation
// did not verify the error is returned.
func (p *Proof) ProofOffer() (string, error) {
	p.lk.RLock()
	defer p.lk.RUnlock()
	switch {
	case p.proof != nil:
		return dto.ToJSON(p.proof), nil
	case p.diagnostic != "":
		return "", cxserr.New(cxserr.CryptoError, "%s", p.diagnostic)
	}
	return "", cxserr.New(cxserr.NoDataAvailable, "proof %s not received", p.sourceID)
}

// Revealed returns the revealed attribute values of the verified proof.
func (p *Proof) Revealed() (map[string]string, error) {
	p.lk.RLock()
	defer p.lk.RUnlock()
	if p.proof == nil {
		return nil, cxserr.New(cxserr.NoDataAvailable, "proof %s not received", p.sourceID)
	}
	return p.proof.Revealed(p.request), nil
}

// Accept marks the proof accepted by the application and acks it to the
// prover. Failure of the ack is only logged.
func (p *Proof) Accept(ctx context.Context, a *cloud.Agent, conn Conn) error {
	p.op.Lock()
	defer p.op.Unlock()
	if err := p.setState([]State{OfferReceived}, Accepted); err != nil {
		return err
	}
	if conn != nil {
		ack := common.NewAck(pltype.PresentProofACK, p.ThreadID())
		if err := conn.Send(ctx, a, ack); err != nil {
			glog.Warningf("proof %s: ack: %v", p.sourceID, err)
		}
	}
	return nil
}

// Reject refuses the presentation and tells it to the prover.
func (p *Proof) Reject(ctx context.Context, a *cloud.Agent, conn Conn, reason string) error {
	p.op.Lock()
	defer p.op.Unlock()
	if err := p.setState([]State{RequestSent, OfferReceived}, Rejected); err != nil {
		return err
	}
	p.lk.Lock()
	p.message = reason
	p.lk.Unlock()
	if conn != nil {
		pr := common.NewProblemReport(p.ThreadID(), "presentation-rejected", reason)
		if err := conn.Send(ctx, a, pr); err != nil {
			glog.Warningf("proof %s: problem report: %v", p.sourceID, err)
		}
	}
	return nil
}

type data struct {
	SourceID   string                  `json:"source_id"`
	Request    *anoncreds.ProofRequest `json:"proof_request"`
	State      State                   `json:"state"`
	ConnHandle uint32                  `json:"connection_handle,omitempty"`
	ThreadID   string                  `json:"thread_id,omitempty"`
	Proof      *anoncreds.Proof        `json:"proof,omitempty"`
	Diagnostic string                  `json:"diagnostic,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

func (p *Proof) Serialize() string {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return dto.ToJSON(data{
		SourceID:   p.sourceID,
		Request:    p.request,
		State:      p.state,
		ConnHandle: p.connHandle,
		ThreadID:   p.threadID,
		Proof:      p.proof,
		Diagnostic: p.diagnostic,
		Message:    p.message,
	})
}

// check validates that the state has the protocol data it needs.
func (d *data) check(n int) error {
	if !d.State.Valid() || d.Request == nil {
		return cxserr.Param(n, "proof data incomplete")
	}
	if d.State >= ConnectionSet && d.State <= OfferReceived && d.ConnHandle == 0 {
		return cxserr.Param(n, "proof %s without connection", d.State)
	}
	if (d.State == RequestSent || d.State == OfferReceived) && d.ThreadID == "" {
		return cxserr.Param(n, "proof %s without thread", d.State)
	}
	if (d.State == OfferReceived || d.State == Accepted) && d.Proof == nil {
		return cxserr.Param(n, "proof %s without presentation", d.State)
	}
	return nil
}

func Deserialize(s string, n int) (p *Proof, err error) {
	var d data
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "proof")
	}
	if err := d.check(n); err != nil {
		return nil, err
	}
	return &Proof{
		sourceID:   d.SourceID,
		request:    d.Request,
		state:      d.State,
		connHandle: d.ConnHandle,
		threadID:   d.ThreadID,
		proof:      d.Proof,
		diagnostic: d.Diagnostic,
		message:    d.Message,
	}, nil
}
