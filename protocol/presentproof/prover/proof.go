/*
Package prover implements the prover side of the proof exchange. The
disclosed proof is created from the received proof request and the proof is
built from the claims of the wallet.
*/
package prover

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
	"github.com/findy-network/findy-cxs/std/presentproof"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type State uint32

const (
	StateUndefined State = iota
	RequestReceived
	PresentationSent
	Acked
	Rejected
)

func (s State) String() string {
	switch s {
	case RequestReceived:
		return "request_received"
	case PresentationSent:
		return "presentation_sent"
	case Acked:
		return "acked"
	case Rejected:
		return "rejected"
	case StateUndefined:
		return "undefined"
	}
	return fmt.Sprintf("State(%d)", s)
}

func (s State) Valid() bool {
	return s > StateUndefined && s <= Rejected
}

type Conn interface {
	Send(ctx context.Context, a *cloud.Agent, msg didcomm.MessageHdr) error
}

type DisclosedProof struct {
	op sync.Mutex
	lk sync.RWMutex

	sourceID   string
	state      State
	threadID   string
	connHandle uint32
	request    *anoncreds.ProofRequest
	message    string

	notify func(s State)
}

// New creates the disclosed proof from the request message JSON.
func New(sourceID, requestJSON string) (p *DisclosedProof, err error) {
	msg, err := didcomm.ParseAs[*presentproof.Request]([]byte(requestJSON))
	if err != nil {
		return nil, err
	}
	data, err := presentproof.RequestAttach(msg)
	if err != nil {
		return nil, err
	}
	var req anoncreds.ProofRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "proof request")
	}
	if req.Nonce == "" {
		return nil, cxserr.Param(2, "proof request without nonce")
	}
	return &DisclosedProof{
		sourceID: sourceID,
		state:    RequestReceived,
		threadID: msg.ThreadID(),
		request:  &req,
	}, nil
}

func (p *DisclosedProof) SetNotify(f func(s State)) {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.notify = f
}

func (p *DisclosedProof) SourceID() string {
	return p.sourceID
}

func (p *DisclosedProof) State() State {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return p.state
}

func (p *DisclosedProof) ThreadID() string {
	return p.threadID
}

// ConnHandle returns the handle of the connection the presentation was sent
// to.
func (p *DisclosedProof) ConnHandle() uint32 {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return p.connHandle
}

// Request returns the JSON of the proof request.
func (p *DisclosedProof) Request() string {
	return dto.ToJSON(p.request)
}

func (p *DisclosedProof) setState(from, next State) error {
	p.lk.Lock()
	if p.state != from {
		cur := p.state
		p.lk.Unlock()
		return cxserr.State("disclosed proof %s is %s, not %s", p.sourceID, cur, from)
	}
	p.state = next
	notify := p.notify
	p.lk.Unlock()

	glog.V(1).Infof("disclosed proof %s: %s", p.sourceID, next)
	if notify != nil {
		notify(next)
	}
	return nil
}

func (p *DisclosedProof) CheckSend() error {
	if s := p.State(); s != RequestReceived {
		return cxserr.State("disclosed proof %s is %s", p.sourceID, s)
	}
	return nil
}

// Send builds the proof from the wallet and sends the presentation.
// NoDataAvailable tells that the wallet has no claims for the request.
func (p *DisclosedProof) Send(ctx context.Context, a *cloud.Agent, conn Conn, connHandle uint32) (err error) {
	defer err2.Handle(&err, "disclosed proof %s send", p.sourceID)

	p.op.Lock()
	defer p.op.Unlock()
	try.To(p.CheckSend())

	proof := try.To1(a.Creds.CreateProof(a.Wallet, p.request))
	p.lk.Lock()
	p.connHandle = connHandle
	p.lk.Unlock()
	if err := conn.Send(ctx, a, presentproof.NewPresentation(p.threadID, dto.ToJSONBytes(proof))); err != nil {
		p.lk.Lock()
		p.connHandle = 0
		p.lk.Unlock()
		return err
	}
	return p.setState(RequestReceived, PresentationSent)
}

// Reject refuses the request and tells it to the verifier.
func (p *DisclosedProof) Reject(ctx context.Context, a *cloud.Agent, conn Conn, reason string) (err error) {
	defer err2.Handle(&err, "disclosed proof %s reject", p.sourceID)

	p.op.Lock()
	defer p.op.Unlock()
	try.To(p.setState(RequestReceived, Rejected))
	p.lk.Lock()
	p.message = reason
	p.lk.Unlock()

	if conn != nil {
		pr := common.NewProblemReport(p.threadID, "request-rejected", reason)
		if err := conn.Send(ctx, a, pr); err != nil {
			glog.Warningf("disclosed proof %s: problem report: %v", p.sourceID, err)
		}
	}
	return nil
}

type data struct {
	SourceID   string                  `json:"source_id"`
	State      State                   `json:"state"`
	ThreadID   string                  `json:"thread_id"`
	ConnHandle uint32                  `json:"connection_handle,omitempty"`
	Request    *anoncreds.ProofRequest `json:"proof_request"`
	Message    string                  `json:"message,omitempty"`
}

func (p *DisclosedProof) Serialize() string {
	p.lk.RLock()
	defer p.lk.RUnlock()
	return dto.ToJSON(data{
		SourceID:   p.sourceID,
		State:      p.state,
		ThreadID:   p.threadID,
		ConnHandle: p.connHandle,
		Request:    p.request,
		Message:    p.message,
	})
}

func Deserialize(s string, n int) (p *DisclosedProof, err error) {
	var d data
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "disclosed proof")
	}
	if !d.State.Valid() || d.Request == nil || d.ThreadID == "" {
		return nil, cxserr.Param(n, "disclosed proof data incomplete")
	}
	if d.State == PresentationSent && d.ConnHandle == 0 {
		return nil, cxserr.Param(n, "disclosed proof %s without connection", d.State)
	}
	return &DisclosedProof{
		sourceID:   d.SourceID,
		state:      d.State,
		threadID:   d.ThreadID,
		connHandle: d.ConnHandle,
		request:    d.Request,
		message:    d.Message,
	}, nil
}
