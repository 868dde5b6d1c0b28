package cxs

import (
	cdto "github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/handle"
	"github.com/findy-network/findy-cxs/protocol/presentproof/verifier"
	"github.com/findy-network/findy-wrapper-go/dto"
	"github.com/golang/glog"
)

func (c *Context) bindProof(h handle.Handle, p *verifier.Proof) {
	p.SetNotify(notifier[verifier.State](c, bus.Proof, h, p.SourceID()))
}

// proofConn returns the bound connection of the proof if it still can carry
// messages.
func (c *Context) proofConn(p *verifier.Proof) verifier.Conn {
	conn, err := c.readyConn(p.ConnHandle())
	if err != nil {
		glog.V(3).Infof("proof %s: no connection: %v", p.SourceID(), err)
		return nil
	}
	return conn
}

// ProofCreate creates the verifier proof. Requested attributes is JSON array
// of {"name", "issuer_did", "schema_seq_no"} and predicates JSON array of
// {"attr_name", "p_type", "value"}, which can be empty.
func (c *Context) ProofCreate(cmd uint32, sourceID, requestedAttrs, requestedPredicates, name string, cb async.Done) error {
	if err := checkCb(cb, 6); err != nil {
		return err
	}
	p, err := verifier.New(sourceID, requestedAttrs, requestedPredicates, name)
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		h, err := c.proofs.Allocate(p)
		if err != nil {
			return dto.Result{}, err
		}
		c.bindProof(h, p)
		return async.Handle(h), nil
	}, cb)
	return nil
}

// ProofSetConnection binds the proof to the connection. It must be called
// before the request is sent.
func (c *Context) ProofSetConnection(cmd uint32, h, connHandle handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	p, err := c.proofs.Resolve(h)
	if err != nil {
		return err
	}
	if !c.conns.Valid(connHandle) {
		return cxserr.New(cxserr.InvalidHandle, "connection handle %d", connHandle)
	}
	if s := p.State(); s != verifier.Initialized && s != verifier.ConnectionSet {
		return cxserr.State("proof %s is %s", p.SourceID(), s)
	}
	run(cmd, c.proofs, h, func() (dto.Result, error) {
		return dto.Result{}, p.SetConnection(connHandle)
	}, cb)
	return nil
}

// ProofSendRequest sends the proof request to the bound connection.
func (c *Context) ProofSendRequest(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	p, err := c.proofs.Resolve(h)
	if err != nil {
		return err
	}
	if err := p.CheckRequest(); err != nil {
		return err
	}
	conn, err := c.readyConn(p.ConnHandle())
	if err != nil {
		return err
	}
	run(cmd, c.proofs, h, func() (dto.Result, error) {
		return dto.Result{}, p.SendRequest(c.ctx, c.agent, conn)
	}, cb)
	return nil
}

// ProofGetProofOffer returns the verified proof JSON. NoDataAvailable is
// returned while nothing is received and CryptoError when the received
// presentation did not verify.
func (c *Context) ProofGetProofOffer(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	p, err := c.proofs.Resolve(h)
	if err != nil {
		return err
	}
	offer, err := p.ProofOffer()
	if err != nil {
		return err
	}
	run(cmd, c.proofs, h, func() (dto.Result, error) {
		return async.Str(offer), nil
	}, cb)
	return nil
}

// ProofGetRevealedAttrs returns JSON object of the revealed values by their
// attribute names.
func (c *Context) ProofGetRevealedAttrs(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	p, err := c.proofs.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, c.proofs, h, func() (dto.Result, error) {
		attrs, err := p.Revealed()
		if err != nil {
			return dto.Result{}, err
		}
		return async.Str(cdto.ToJSON(attrs)), nil
	}, cb)
	return nil
}

// ProofAccepted marks the verified proof accepted by the application.
func (c *Context) ProofAccepted(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	p, err := c.proofs.Resolve(h)
	if err != nil {
		return err
	}
	if s := p.State(); s != verifier.OfferReceived {
		return cxserr.State("proof %s is %s", p.SourceID(), s)
	}
	run(cmd, c.proofs, h, func() (dto.Result, error) {
		return dto.Result{}, p.Accept(c.ctx, c.agent, c.proofConn(p))
	}, cb)
	return nil
}

// ProofReject refuses the proof and tells the reason to the prover.
func (c *Context) ProofReject(cmd uint32, h handle.Handle, reason string, cb async.Done) error {
	if err := checkCb(cb, 4); err != nil {
		return err
	}
	p, err := c.proofs.Resolve(h)
	if err != nil {
		return err
	}
	if s := p.State(); s != verifier.RequestSent && s != verifier.OfferReceived {
		return cxserr.State("proof %s is %s", p.SourceID(), s)
	}
	run(cmd, c.proofs, h, func() (dto.Result, error) {
		return dto.Result{}, p.Reject(c.ctx, c.agent, c.proofConn(p), reason)
	}, cb)
	return nil
}

func (c *Context) ProofGetState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.proofs, h, (*verifier.Proof).State, cb)
}

func (c *Context) ProofUpdateState(cmd uint32, h handle.Handle, cb async.Done) error {
	return stateOf(cmd, c.proofs, h, (*verifier.Proof).State, cb)
}

// ProofListState returns JSON array of the states of the proofs in the order
// of the handles. Every handle must be valid.
func (c *Context) ProofListState(cmd uint32, handles []handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	if len(handles) == 0 {
		return cxserr.Param(2, "no proof handles")
	}
	proofs := make([]*verifier.Proof, len(handles))
	for i, h := range handles {
		p, err := c.proofs.Resolve(h)
		if err != nil {
			return err
		}
		proofs[i] = p
	}
	async.Run(cmd, func() (dto.Result, error) {
		states := make([]verifier.State, len(proofs))
		for i, p := range proofs {
			states[i] = p.State()
		}
		return async.Str(cdto.ToJSON(states)), nil
	}, cb)
	return nil
}

func (c *Context) ProofSerialize(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.proofs, h, cb)
}

func (c *Context) ProofDeserialize(cmd uint32, proofJSON string, cb async.Done) error {
	return deserialize(cmd, c.proofs, proofJSON, func() (*verifier.Proof, error) {
		return verifier.Deserialize(proofJSON, 2)
	}, c.bindProof, cb)
}

func (c *Context) ProofRelease(h handle.Handle) error {
	return release(c.proofs, h)
}
