package cxs

import (
	"encoding/json"

	cdto "github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/handle"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/holder"
	"github.com/findy-network/findy-wrapper-go/dto"
)

func (c *Context) bindHolderClaim(h handle.Handle, hc *holder.Claim) {
	hc.SetNotify(notifier[holder.State](c, bus.HolderCred, h, hc.SourceID()))
}

// pending returns the payloads of the kept messages of the type whose thread
// isn't known yet.
func (c *Context) pending(cmd uint32, connHandle handle.Handle, msgType string, known func(thid string) bool, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	conn, err := c.conns.Resolve(connHandle)
	if err != nil {
		return err
	}
	run(cmd, c.conns, connHandle, func() (dto.Result, error) {
		payloads := make([]json.RawMessage, 0)
		for _, m := range conn.Messages(msgType) {
			if known(m.ThreadID) {
				continue
			}
			payloads = append(payloads, m.Payload)
		}
		return async.Str(cdto.ToJSON(payloads)), nil
	}, cb)
	return nil
}

// ClaimGetOffers returns JSON array of the claim offers the connection has
// received and which aren't taken to holder claims yet.
func (c *Context) ClaimGetOffers(cmd uint32, connHandle handle.Handle, cb async.Done) error {
	return c.pending(cmd, connHandle, pltype.IssueCredentialOffer, func(thid string) bool {
		return byThread(c.holderClaims, thid) != nil
	}, cb)
}

// HolderClaimCreateWithOffer creates the holder claim from one of the offers.
func (c *Context) HolderClaimCreateWithOffer(cmd uint32, sourceID, offerJSON string, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	if offerJSON == "" {
		return cxserr.Param(3, "offer empty")
	}
	hc, err := holder.New(sourceID, offerJSON)
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		h, err := c.holderClaims.Allocate(hc)
		if err != nil {
			return dto.Result{}, err
		}
		c.bindHolderClaim(h, hc)
		return async.Handle(h), nil
	}, cb)
	return nil
}

func (c *Context) HolderSendRequest(cmd uint32, h, connHandle handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	hc, err := c.holderClaims.Resolve(h)
	if err != nil {
		return err
	}
	if err := hc.CheckRequest(); err != nil {
		return err
	}
	conn, err := c.readyConn(connHandle)
	if err != nil {
		return err
	}
	run(cmd, c.holderClaims, h, func() (dto.Result, error) {
		return dto.Result{}, hc.SendRequest(c.ctx, c.agent, conn, connHandle)
	}, cb)
	return nil
}

// HolderRejectOffer refuses the offer and tells the reason to the issuer.
func (c *Context) HolderRejectOffer(cmd uint32, h, connHandle handle.Handle, reason string, cb async.Done) error {
	if err := checkCb(cb, 5); err != nil {
		return err
	}
	hc, err := c.holderClaims.Resolve(h)
	if err != nil {
		return err
	}
	if s := hc.State(); s.Terminal() {
		return cxserr.State("holder claim %s is %s", hc.SourceID(), s)
	}
	conn, err := c.readyConn(connHandle)
	if err != nil {
		return err
	}
	run(cmd, c.holderClaims, h, func() (dto.Result, error) {
		return dto.Result{}, hc.Reject(c.ctx, c.agent, conn, reason)
	}, cb)
	return nil
}

// HolderGetClaim returns the JSON of the received claim from the wallet.
func (c *Context) HolderGetClaim(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	hc, err := c.holderClaims.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, c.holderClaims, h, func() (dto.Result, error) {
		claim, err := hc.Claim(c.agent)
		return async.Str(claim), err
	}, cb)
	return nil
}

func (c *Context) HolderClaimGetState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.holderClaims, h, (*holder.Claim).State, cb)
}

func (c *Context) HolderClaimSerialize(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.holderClaims, h, cb)
}

func (c *Context) HolderClaimDeserialize(cmd uint32, claimJSON string, cb async.Done) error {
	return deserialize(cmd, c.holderClaims, claimJSON, func() (*holder.Claim, error) {
		return holder.Deserialize(claimJSON, 2)
	}, c.bindHolderClaim, cb)
}

func (c *Context) HolderClaimRelease(h handle.Handle) error {
	return release(c.holderClaims, h)
}
