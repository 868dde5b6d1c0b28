/*
Package issuecredential dispatches the inbound messages of the issue
credential protocol to the issuer and holder claims. The claim objects are
implemented in the issuer and holder packages.
*/
package issuecredential

import (
	"context"

	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/holder"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/issuer"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/issuecredential"
	"github.com/golang/glog"
)

// Processor finds the claims by their thread IDs. Nil means that there is no
// claim for the thread.
type Processor struct {
	Issuer func(thid string) *issuer.Claim
	Holder func(thid string) *holder.Claim
}

// Handle processes the inbound message. It returns false when the message
// isn't for any claim, e.g. the offers which wait for the application.
func (p Processor) Handle(ctx context.Context, a *cloud.Agent, conn holder.Conn, msg didcomm.MessageHdr) (handled bool, err error) {
	thid := msg.Hdr().ThreadID()

	switch m := msg.(type) {
	case *issuecredential.Offer:
		return false, nil
	case *issuecredential.Request:
		c := p.Issuer(thid)
		if c == nil {
			return false, cxserr.New(cxserr.NoDataAvailable, "no claim for request %s", thid)
		}
		return true, c.HandleRequest(m)
	case *issuecredential.Issue:
		h := p.Holder(thid)
		if h == nil {
			return false, cxserr.New(cxserr.NoDataAvailable, "no holder claim for %s", thid)
		}
		return true, h.HandleIssue(ctx, a, conn, m)
	case *common.Ack:
		if m.Type != pltype.IssueCredentialACK {
			return false, nil
		}
		if c := p.Issuer(thid); c != nil {
			return true, c.HandleAck(m)
		}
	case *common.ProblemReport:
		if c := p.Issuer(thid); c != nil {
			return true, c.HandleProblemReport(m)
		}
	}
	glog.V(3).Infof("issue credential: %s not handled", msg.Hdr().Type)
	return false, nil
}
