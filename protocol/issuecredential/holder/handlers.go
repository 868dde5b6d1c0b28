package holder

import (
	"context"
	"encoding/json"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/std/common"
	"github.com/findy-network/findy-cxs/std/issuecredential"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// HandleIssue verifies the issued claim with the claim definition key from
// the ledger, stores it to the wallet and acks it to the issuer.
func (c *Claim) HandleIssue(ctx context.Context, a *cloud.Agent, conn Conn, msg *issuecredential.Issue) (err error) {
	defer err2.Handle(&err, "holder claim %s issue", c.sourceID)

	c.op.Lock()
	defer c.op.Unlock()
	if s := c.State(); s != RequestSent {
		return cxserr.State("holder claim %s is %s", c.sourceID, s)
	}

	var claim anoncreds.Claim
	data := try.To1(issuecredential.IssueAttach(msg))
	if err := json.Unmarshal(data, &claim); err != nil {
		return cxserr.Wrap(cxserr.InvalidJSON, err, "claim")
	}
	if claim.ClaimDefRef != c.offer.ClaimDefRef {
		return cxserr.New(cxserr.CryptoError, "claim is not from the offered claim def")
	}
	cd := try.To1(a.Ledger.GetClaimDef(ctx, claim.IssuerDID, claim.SchemaSeqNo,
		claim.Tag, ledger.DefaultCacheOptions))
	try.To(a.Creds.StoreClaim(a.Wallet, &claim, cd.VerKey))

	c.lk.Lock()
	c.claimID = claim.ClaimID
	c.lk.Unlock()
	try.To(c.setState(RequestSent, Received))

	if err := conn.Send(ctx, a, common.NewAck(pltype.IssueCredentialACK, c.threadID)); err != nil {
		glog.Warningf("holder claim %s: ack: %v", c.sourceID, err)
	}
	return nil
}
