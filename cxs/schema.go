package cxs

import (
	cdto "github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/handle"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/protocol/schema"
	"github.com/findy-network/findy-wrapper-go/dto"
)

const stateCommitted uint32 = 1

func (c *Context) committed(kind bus.Kind, h handle.Handle, sourceID string) {
	c.agent.Notify(bus.Notify{
		ListenerKey: bus.ListenerKey{Kind: kind},
		Handle:      h,
		SourceID:    sourceID,
		State:       stateCommitted,
		StateName:   "committed",
	})
}

// SchemaCreate creates the local schema. Attributes are JSON array of names.
// The schema gets its sequence number with SchemaCommit.
func (c *Context) SchemaCreate(cmd uint32, sourceID, name, version, attrsJSON string, cb async.Done) error {
	if err := checkCb(cb, 6); err != nil {
		return err
	}
	s, err := schema.New(sourceID, name, version, attrsJSON)
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		h, err := c.schemas.Allocate(s)
		return async.Handle(h), err
	}, cb)
	return nil
}

// SchemaCommit writes the schema to the ledger. The sequence number is
// delivered in the handle of the result.
func (c *Context) SchemaCommit(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	s, err := c.schemas.Resolve(h)
	if err != nil {
		return err
	}
	if err := s.CheckCommit(); err != nil {
		return err
	}
	run(cmd, c.schemas, h, func() (dto.Result, error) {
		seqNo, err := s.Commit(c.ctx, c.agent)
		if err != nil {
			return dto.Result{}, err
		}
		c.committed(bus.Schema, h, s.SourceID())
		return async.Handle(uint32(seqNo)), nil
	}, cb)
	return nil
}

// SchemaGetSequenceNo fails with NoDataAvailable before the commit.
func (c *Context) SchemaGetSequenceNo(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	s, err := c.schemas.Resolve(h)
	if err != nil {
		return err
	}
	seqNo, err := s.SeqNo()
	if err != nil {
		return err
	}
	run(cmd, c.schemas, h, func() (dto.Result, error) {
		return async.Handle(uint32(seqNo)), nil
	}, cb)
	return nil
}

// SchemaGet reads the schema from the ledger and allocates a handle for it.
// The options are ledger cache options {noCache, noUpdate, noStore,
// minFresh}. The result has the handle and the schema JSON.
func (c *Context) SchemaGet(cmd uint32, sourceID string, seqNo int, optionsJSON string, cb async.Done) error {
	if err := checkCb(cb, 5); err != nil {
		return err
	}
	if seqNo <= 0 {
		return cxserr.Param(3, "schema seqNo %d", seqNo)
	}
	opts, err := ledger.ParseCacheOptions(optionsJSON)
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		s, err := schema.Get(c.ctx, c.agent, sourceID, seqNo, opts)
		if err != nil {
			return dto.Result{}, err
		}
		h, err := c.schemas.Allocate(s)
		if err != nil {
			return dto.Result{}, err
		}
		r := async.Handle(h)
		r.Data.Str1 = s.Serialize()
		return r, nil
	}, cb)
	return nil
}

// SchemaGetAttributes returns JSON array of the attribute names.
func (c *Context) SchemaGetAttributes(cmd uint32, h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	s, err := c.schemas.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, c.schemas, h, func() (dto.Result, error) {
		return async.Str(cdto.ToJSON(s.Attrs())), nil
	}, cb)
	return nil
}

func (c *Context) SchemaSerialize(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.schemas, h, cb)
}

func (c *Context) SchemaDeserialize(cmd uint32, schemaJSON string, cb async.Done) error {
	return deserialize(cmd, c.schemas, schemaJSON, func() (*schema.Schema, error) {
		return schema.Deserialize(schemaJSON, 2)
	}, func(handle.Handle, *schema.Schema) {}, cb)
}

func (c *Context) SchemaRelease(h handle.Handle) error {
	return release(c.schemas, h)
}

// ClaimDefCreate generates the claim signing key and writes the claim
// definition of the committed schema to the ledger. Empty tag means the
// default tag.
func (c *Context) ClaimDefCreate(cmd uint32, sourceID string, schemaSeqNo int, tag string, cb async.Done) error {
	if err := checkCb(cb, 5); err != nil {
		return err
	}
	cd, err := schema.NewClaimDef(sourceID, schemaSeqNo, tag)
	if err != nil {
		return err
	}
	async.Run(cmd, func() (dto.Result, error) {
		if err := cd.Create(c.ctx, c.agent); err != nil {
			return dto.Result{}, err
		}
		h, err := c.claimDefs.Allocate(cd)
		if err != nil {
			return dto.Result{}, err
		}
		c.committed(bus.ClaimDef, h, sourceID)
		return async.Handle(h), nil
	}, cb)
	return nil
}

// ClaimDefGet returns the JSON of the claim definition.
func (c *Context) ClaimDefGet(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.claimDefs, h, cb)
}

func (c *Context) ClaimDefSerialize(cmd uint32, h handle.Handle, cb async.Done) error {
	return serialize(cmd, c.claimDefs, h, cb)
}

func (c *Context) ClaimDefDeserialize(cmd uint32, claimDefJSON string, cb async.Done) error {
	return deserialize(cmd, c.claimDefs, claimDefJSON, func() (*schema.ClaimDef, error) {
		return schema.DeserializeClaimDef(claimDefJSON, 2)
	}, func(handle.Handle, *schema.ClaimDef) {}, cb)
}

func (c *Context) ClaimDefRelease(h handle.Handle) error {
	return release(c.claimDefs, h)
}
