package prover

import (
	"github.com/findy-network/findy-cxs/std/common"
)

// HandleAck marks the presentation acked by the verifier.
func (p *DisclosedProof) HandleAck(msg *common.Ack) error {
	p.op.Lock()
	defer p.op.Unlock()
	return p.setState(PresentationSent, Acked)
}

// HandleProblemReport marks the presentation rejected by the verifier.
func (p *DisclosedProof) HandleProblemReport(msg *common.ProblemReport) error {
	p.op.Lock()
	defer p.op.Unlock()
	if err := p.setState(PresentationSent, Rejected); err != nil {
		return err
	}
	p.lk.Lock()
	p.message = msg.Description.Code + ": " + msg.ExplainLongTxt
	p.lk.Unlock()
	return nil
}
