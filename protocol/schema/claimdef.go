package schema

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const DefaultTag = "TAG1"

// ClaimDef is the claim definition of the issuer. Its signing key stays in
// the wallet, only the verkey is written to the ledger.
type ClaimDef struct {
	op sync.Mutex
	lk sync.RWMutex

	sourceID    string
	schemaSeqNo int
	tag         string
	attrs       []string
	issuerDID   string
	keyDID      string
	verKey      string
	seqNo       int
}

// NewClaimDef creates the local claim definition for the schema. Create must
// be called before it can be used.
func NewClaimDef(sourceID string, schemaSeqNo int, tag string) (*ClaimDef, error) {
	if schemaSeqNo <= 0 {
		return nil, cxserr.Param(2, "schema seqNo %d", schemaSeqNo)
	}
	if tag == "" {
		tag = DefaultTag
	}
	return &ClaimDef{sourceID: sourceID, schemaSeqNo: schemaSeqNo, tag: tag}, nil
}

// Create reads the schema from the ledger, generates the signing key of the
// claim definition, stores it to the wallet and writes the claim definition
// to the ledger.
func (c *ClaimDef) Create(ctx context.Context, a *cloud.Agent) (err error) {
	defer err2.Handle(&err, "create claim def %s", c.sourceID)

	c.op.Lock()
	defer c.op.Unlock()
	if c.committed() {
		return cxserr.State("claim def %s already created", c.sourceID)
	}

	s := try.To1(a.Ledger.GetSchema(ctx, c.schemaSeqNo, ledger.DefaultCacheOptions))
	key := try.To1(ssi.NewDID(nil))
	defer key.Wipe()
	try.To(key.Store(a.Wallet))

	root := a.RootDID()
	seqNo := try.To1(a.Ledger.WriteClaimDef(ctx, root, c.schemaSeqNo, c.tag,
		ledger.ClaimDefData{VerKey: key.VerKey()}))

	c.lk.Lock()
	c.attrs = s.AttrNames
	c.issuerDID = root.Did()
	c.keyDID = key.Did()
	c.verKey = key.VerKey()
	c.seqNo = seqNo
	c.lk.Unlock()
	glog.V(1).Infof("claim def %s for schema %d created, seqNo %d",
		c.sourceID, c.schemaSeqNo, seqNo)
	return nil
}

func (c *ClaimDef) committed() bool {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.seqNo != 0
}

func (c *ClaimDef) SourceID() string {
	return c.sourceID
}

// Ref returns the reference which identifies the claim definition in the
// claims and proofs.
func (c *ClaimDef) Ref() anoncreds.ClaimDefRef {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return anoncreds.ClaimDefRef{
		IssuerDID:   c.issuerDID,
		SchemaSeqNo: c.schemaSeqNo,
		Tag:         c.tag,
	}
}

// Attrs returns the attribute names of the schema.
func (c *ClaimDef) Attrs() ([]string, error) {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.seqNo == 0 {
		return nil, cxserr.State("claim def %s not created", c.sourceID)
	}
	return append([]string(nil), c.attrs...), nil
}

// KeyDID returns the DID of the signing key in the wallet.
func (c *ClaimDef) KeyDID() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return c.keyDID
}

// Key loads the signing key of the claim definition from the wallet. The
// caller should wipe it after use.
func (c *ClaimDef) Key(a *cloud.Agent) (*ssi.DID, error) {
	c.lk.RLock()
	keyDID := c.keyDID
	c.lk.RUnlock()
	if keyDID == "" {
		return nil, cxserr.State("claim def %s not created", c.sourceID)
	}
	return ssi.Load(a.Wallet, keyDID)
}

type claimDefJSON struct {
	SourceID    string   `json:"source_id"`
	SchemaSeqNo int      `json:"schema_seq_no"`
	Tag         string   `json:"tag"`
	AttrNames   []string `json:"attr_names,omitempty"`
	IssuerDID   string   `json:"issuer_did,omitempty"`
	KeyDID      string   `json:"key_did,omitempty"`
	VerKey      string   `json:"verkey,omitempty"`
	SeqNo       int      `json:"seq_no,omitempty"`
}

func (c *ClaimDef) Serialize() string {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return dto.ToJSON(claimDefJSON{
		SourceID:    c.sourceID,
		SchemaSeqNo: c.schemaSeqNo,
		Tag:         c.tag,
		AttrNames:   c.attrs,
		IssuerDID:   c.issuerDID,
		KeyDID:      c.keyDID,
		VerKey:      c.verKey,
		SeqNo:       c.seqNo,
	})
}

func DeserializeClaimDef(s string, n int) (c *ClaimDef, err error) {
	var d claimDefJSON
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "claim def")
	}
	if d.SchemaSeqNo <= 0 || (d.SeqNo != 0 && d.KeyDID == "") {
		return nil, cxserr.Param(n, "claim def data incomplete")
	}
	return &ClaimDef{
		sourceID:    d.SourceID,
		schemaSeqNo: d.SchemaSeqNo,
		tag:         d.Tag,
		attrs:       d.AttrNames,
		issuerDID:   d.IssuerDID,
		keyDID:      d.KeyDID,
		verKey:      d.VerKey,
		seqNo:       d.SeqNo,
	}, nil
}

// KeyResolver returns the resolver which reads the claim definition verkeys
// from the ledger.
func KeyResolver(ctx context.Context, a *cloud.Agent) anoncreds.KeyResolver {
	return func(id anoncreds.Identifier) (string, error) {
		cd, err := a.Ledger.GetClaimDef(ctx, id.IssuerDID, id.SchemaSeqNo, id.Tag,
			ledger.DefaultCacheOptions)
		if err != nil {
			return "", err
		}
		return cd.VerKey, nil
	}
}
