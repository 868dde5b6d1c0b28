package verifier

import (
	"encoding/json"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/presentproof"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// HandlePresentation verifies the received proof against the request. If
// the verification fails the proof stays waiting and the error is kept for
// the ProofOffer.
func (p *Proof) HandlePresentation(a *cloud.Agent, msg *presentproof.Presentation, keys anoncreds.KeyResolver) (err error) {
	defer err2.Handle(&err, "proof %s presentation", p.sourceID)

	p.op.Lock()
	defer p.op.Unlock()
	if s := p.State(); s != RequestSent {
		return cxserr.State("proof %s is %s", p.sourceID, s)
	}

	var proof anoncreds.Proof
	data := try.To1(presentproof.PresentationAttach(msg))
	if err := json.Unmarshal(data, &proof); err != nil {
		return cxserr.Wrap(cxserr.InvalidJSON, err, "proof")
	}
	if err := a.Creds.VerifyProof(p.request, &proof, keys); err != nil {
		p.lk.Lock()
		p.diagnostic = err.Error()
		p.lk.Unlock()
		glog.Warningf("proof %s: verification: %v", p.sourceID, err)
		return cxserr.Wrap(cxserr.CryptoError, err, "verify")
	}

	p.lk.Lock()
	p.proof = &proof
	p.diagnostic = ""
	p.lk.Unlock()
	return p.setState([]State{RequestSent}, OfferReceived)
}

// HandleProblemReport rejects the proof when the prover refuses the request.
func (p *Proof) HandleProblemReport(msg *common.ProblemReport) error {
	p.op.Lock()
	defer p.op.Unlock()
	if err := p.setState([]State{RequestSent}, Rejected); err != nil {
		return err
	}
	p.lk.Lock()
	p.message = msg.Description.Code + ": " + msg.ExplainLongTxt
	p.lk.Unlock()
	return nil
}
