package cxs

import (
	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/handle"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/protocol/presentproof/prover"
	"github.com/findy-network/findy-wrapper-go/dto"
)

func (c *Context) bindDisclosed(h handle.Handle, p *prover.DisclosedProof) {
	p.SetNotify(notifier[prover.State](c, bus.Disclosed, h, p.SourceID()))
}

// ProofGetRequests returns JSON array of the proof requests the connection
// has received and which aren't taken to disclosed proofs yet.
func (c *Context) ProofGetRequests(cmd uint32, connHandle handle.Handle, cb async.Done) error {
	return c.pending(cmd, connHandle, pltype.PresentProofRequest, func(thid string) bool {
		return byThread(c.disclosed, thid) != nil
	}, cb)
}

func (c *Context) DisclosedProofCreateWithRequest(cmd uint32, sourceID, requestJSON string, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	if requestJSON == "" {
		return cxserr.Param(3, "proof request empty")
	}
	p, err := prover.New(sourceID, requestJSON)
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		h, err := c.disclosed.Allocate(p)
		if err != nil {
			return dto.Result{}, err
		}
		c.bindDisclosed(h, p)
		return async.Handle(h), nil
	}, cb)
	return nil
}

// DisclosedProofSend builds the proof from the claims of the wallet and sends
// it. NoDataAvailable is delivered when the wallet can't satisfy the request.
func (c *Context) DisclosedProofSend(cmd uint32, h, connHandle handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	p, err := c.disclosed.Resolve(h)
	if err != nil {
		return err
	}
	if err := p.CheckSend(); err != nil {
		return err
	}
	conn, err := c.readyConn(connHandle)
	if err != nil {
		return err
	}
	run(cmd, c.disclosed, h, func() (dto.Result, error) {
		return dto.Result{}, p.Send(c.ctx, c.agent, conn, connHandle)
	}, cb)
	return nil
}

func (c *Context) DisclosedProofReject(cmd uint32, h, connHandle handle.Handle, reason string, cb async.Done) error {
	if err := checkCb(cb, 5); err != nil {
		return err
	}
	p, err := c.disclosed.Resolve(h)
	if err != nil {
		return err
	}
	if err := p.CheckSend(); err != nil {
		return err
	}
	conn, err := c.readyConn(connHandle)
	if err != nil {
		return err
	}
	run(cmd, c.disclosed, h, func() (dto.Result, error) {
		return dto.Result{}, p.Reject(c.ctx, c.agent, conn, reason)
	}, cb)
	return nil
}

func (c *Context) DisclosedProofGetRequest(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	p, err := c.disclosed.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, c.disclosed, h, func() (dto.Result, error) {
		return async.Str(p.Request()), nil
	}, cb)
	return nil
}

func (c *Context) DisclosedProofGetState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.disclosed, h, (*prover.DisclosedProof).State, cb)
}

func (c *Context) DisclosedProofSerialize(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.disclosed, h, cb)
}

func (c *Context) DisclosedProofDeserialize(cmd uint32, proofJSON string, cb async.Done) error {
	return deserialize(cmd, c.disclosed, proofJSON, func() (*prover.DisclosedProof, error) {
		return prover.Deserialize(proofJSON, 2)
	}, c.bindDisclosed, cb)
}

func (c *Context) DisclosedProofRelease(h handle.Handle) error {
	return release(c.disclosed, h)
}
