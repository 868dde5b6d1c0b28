package issuer

import (
	"encoding/json"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/issuecredential"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// HandleRequest stores the claim request of the holder. A new request
// overwrites the previous one until the request is accepted. After that the
// requests are dropped.
func (c *Claim) HandleRequest(msg *issuecredential.Request) (err error) {
	defer err2.Handle(&err, "claim %s request", c.sourceID)

	var req anoncreds.Request
	data := try.To1(issuecredential.RequestAttach(msg))
	if err := json.Unmarshal(data, &req); err != nil {
		return cxserr.Wrap(cxserr.InvalidJSON, err, "claim request")
	}

	c.op.Lock()
	defer c.op.Unlock()

	c.lk.Lock()
	switch c.state {
	case OfferSent, RequestReceived:
	case Accepted:
		c.lk.Unlock()
		glog.Warningf("claim %s: request dropped, already accepted", c.sourceID)
		return nil
	default:
		cur := c.state
		c.lk.Unlock()
		return cxserr.State("claim %s cannot take requests in %s", c.sourceID, cur)
	}
	if req.Nonce != c.offer.Nonce || req.ClaimDefRef != c.offer.ClaimDefRef {
		c.lk.Unlock()
		return cxserr.New(cxserr.CryptoError, "request doesn't answer the offer")
	}
	c.request = &req
	again := c.state == RequestReceived
	c.lk.Unlock()

	if again {
		glog.V(1).Infof("claim %s: request replaced", c.sourceID)
		return nil
	}
	return c.setState(RequestReceived)
}

// HandleAck logs the ack of the holder.
func (c *Claim) HandleAck(msg *common.Ack) error {
	glog.V(1).Infof("claim %s: holder ack %s in %s", c.sourceID, msg.Status, c.State())
	return nil
}

// HandleProblemReport terminates the claim as unfulfilled, e.g. when the
// holder rejects the offer.
func (c *Claim) HandleProblemReport(msg *common.ProblemReport) error {
	c.op.Lock()
	defer c.op.Unlock()
	explain := msg.Description.Code
	if msg.ExplainLongTxt != "" {
		explain += ": " + msg.ExplainLongTxt
	}
	return c.terminate(Unfulfilled, explain)
}
