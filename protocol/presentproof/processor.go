// Package presentproof dispatches the inbound messages of the present proof
// protocol to the verifier proofs and the prover's disclosed proofs.
package presentproof

import (
	"context"

	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/protocol/presentproof/prover"
	"github.com/findy-network/findy-cxs/protocol/presentproof/verifier"
	"github.com/findy-network/findy-cxs/protocol/schema"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/presentproof"
	"github.com/golang/glog"
)

// Processor finds the proofs by their thread IDs. Nil means that there is no
// proof for the thread.
type Processor struct {
	Verifier func(thid string) *verifier.Proof
	Prover   func(thid string) *prover.DisclosedProof
}

// Handle processes the inbound message. It returns false when the message
// isn't for any proof, e.g. the proof requests which wait for the
// application.
func (p Processor) Handle(ctx context.Context, a *cloud.Agent, msg didcomm.MessageHdr) (handled bool, err error) {
	thid := msg.Hdr().ThreadID()

	switch m := msg.(type) {
	case *presentproof.Request:
		return false, nil
	case *presentproof.Presentation:
		v := p.Verifier(thid)
		if v == nil {
			return false, cxserr.New(cxserr.NoDataAvailable, "no proof for presentation %s", thid)
		}
		return true, v.HandlePresentation(a, m, schema.KeyResolver(ctx, a))
	case *common.Ack:
		if m.Type != pltype.PresentProofACK {
			return false, nil
		}
		if dp := p.Prover(thid); dp != nil {
			return true, dp.HandleAck(m)
		}
	case *common.ProblemReport:
		if v := p.Verifier(thid); v != nil {
			return true, v.HandleProblemReport(m)
		}
		if dp := p.Prover(thid); dp != nil {
			return true, dp.HandleProblemReport(m)
		}
	}
	glog.V(3).Infof("present proof: %s not handled", msg.Hdr().Type)
	return false, nil
}
