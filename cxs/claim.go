package cxs

import (
	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/handle"
	"github.com/findy-network/findy-cxs/protocol/connection"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/issuer"
	"github.com/findy-network/findy-wrapper-go/dto"
)

func (c *Context) bindClaim(h handle.Handle, cl *issuer.Claim) {
	cl.SetNotify(notifier[issuer.State](c, bus.Claim, h, cl.SourceID()))
}

// readyConn returns the connection which can carry protocol messages.
func (c *Context) readyConn(h handle.Handle) (*connection.Connection, error) {
	conn, err := c.conns.Resolve(h)
	if err != nil {
		return nil, err
	}
	return conn, conn.CheckSend()
}

// IssuerCreateClaim creates the issuer claim of the claim definition. Claim
// data is JSON object of the attribute values, and it must have a value for
// every attribute of the schema.
func (c *Context) IssuerCreateClaim(cmd uint32, sourceID string, claimDefHandle handle.Handle, claimData string, cb async.Done) error {
	if err := checkCb(cb, 5); err != nil {
		return err
	}
	cd, err := c.claimDefs.Resolve(claimDefHandle)
	if err != nil {
		return err
	}
	cl, err := issuer.New(sourceID, cd, claimData)
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		h, err := c.claims.Allocate(cl)
		if err != nil {
			return dto.Result{}, err
		}
		c.bindClaim(h, cl)
		return async.Handle(h), nil
	}, cb)
	return nil
}

// IssuerSendClaimOffer sends the claim offer to the connection.
func (c *Context) IssuerSendClaimOffer(cmd uint32, h, connHandle handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	cl, err := c.claims.Resolve(h)
	if err != nil {
		return err
	}
	if err := cl.CheckOffer(); err != nil {
		return err
	}
	conn, err := c.readyConn(connHandle)
	if err != nil {
		return err
	}
	run(cmd, c.claims, h, func() (dto.Result, error) {
		return dto.Result{}, cl.SendOffer(c.ctx, c.agent, conn, connHandle)
	}, cb)
	return nil
}

// IssuerGetClaimRequest returns the latest claim request JSON. It fails
// immediately with InvalidState before the offer is sent and with
// NoDataAvailable while the request hasn't arrived.
func (c *Context) IssuerGetClaimRequest(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	cl, err := c.claims.Resolve(h)
	if err != nil {
		return err
	}
	req, err := cl.Request()
	if err != nil {
		return err
	}
	run(cmd, c.claims, h, func() (dto.Result, error) {
		return async.Str(req), nil
	}, cb)
	return nil
}

func (c *Context) IssuerAcceptClaim(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	cl, err := c.claims.Resolve(h)
	if err != nil {
		return err
	}
	if s := cl.State(); s != issuer.RequestReceived {
		return cxserr.State("claim %s is %s", cl.SourceID(), s)
	}
	run(cmd, c.claims, h, func() (dto.Result, error) {
		return dto.Result{}, cl.Accept()
	}, cb)
	return nil
}

// IssuerSendClaim signs and sends the accepted claim.
func (c *Context) IssuerSendClaim(cmd uint32, h, connHandle handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	cl, err := c.claims.Resolve(h)
	if err != nil {
		return err
	}
	if err := cl.CheckSend(); err != nil {
		return err
	}
	conn, err := c.readyConn(connHandle)
	if err != nil {
		return err
	}
	run(cmd, c.claims, h, func() (dto.Result, error) {
		return dto.Result{}, cl.SendClaim(c.ctx, c.agent, conn)
	}, cb)
	return nil
}

// IssuerTerminateClaim forces the claim to Unfulfilled, Expired or Revoked
// with the diagnostic message.
func (c *Context) IssuerTerminateClaim(cmd uint32, h handle.Handle, stateType uint32, msg string, cb async.Done) error {
	if err := checkCb(cb, 5); err != nil {
		return err
	}
	cl, err := c.claims.Resolve(h)
	if err != nil {
		return err
	}
	s := issuer.State(stateType)
	if !s.Terminal() || s == issuer.Fulfilled {
		return cxserr.Param(3, "state %s is not a termination state", s)
	}
	if cur := cl.State(); cur.Terminal() {
		return cxserr.State("claim %s is %s", cl.SourceID(), cur)
	}
	run(cmd, c.claims, h, func() (dto.Result, error) {
		return dto.Result{}, cl.Terminate(s, msg)
	}, cb)
	return nil
}

func (c *Context) IssuerClaimGetState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.claims, h, (*issuer.Claim).State, cb)
}

func (c *Context) IssuerClaimUpdateState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.claims, h, (*issuer.Claim).State, cb)
}

func (c *Context) IssuerClaimSerialize(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.claims, h, cb)
}

func (c *Context) IssuerClaimDeserialize(cmd uint32, claimJSON string, cb async.Done) error {
	return deserialize(cmd, c.claims, claimJSON, func() (*issuer.Claim, error) {
		return issuer.Deserialize(claimJSON, 2)
	}, c.bindClaim, cb)
}

func (c *Context) IssuerClaimRelease(h handle.Handle) error {
	return release(c.claims, h)
}
