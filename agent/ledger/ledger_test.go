package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func newTestClient() (*Client, *Mem) {
	m := NewMem()
	return NewClient(m, 10, time.Second), m
}

func TestClient_WriteRead(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	c, m := newTestClient()
	steward := try.To1(ssi.NewDID(nil))

	seqNo := try.To1(c.WriteNym(ctx, steward, steward.Did(), steward.VerKey()))
	assert.Equal(seqNo, 1)
	vk := try.To1(c.GetNym(ctx, steward.Did(), DefaultCacheOptions))
	assert.Equal(vk, steward.VerKey())

	sd := SchemaData{Name: "email", Version: "1.0", AttrNames: []string{"email"}}
	schemaSeqNo := try.To1(c.WriteSchema(ctx, steward, sd))
	assert.Equal(schemaSeqNo, 2)

	s := try.To1(c.GetSchema(ctx, schemaSeqNo, DefaultCacheOptions))
	assert.Equal(s.Name, "email")
	assert.Equal(s.Dest, steward.Did())
	assert.DeepEqual(s.AttrNames, sd.AttrNames)

	cdSeqNo := try.To1(c.WriteClaimDef(ctx, steward, schemaSeqNo, "tag1",
		ClaimDefData{VerKey: steward.VerKey()}))
	assert.Equal(cdSeqNo, 3)
	cd := try.To1(c.GetClaimDef(ctx, steward.Did(), schemaSeqNo, "tag1", DefaultCacheOptions))
	assert.Equal(cd.VerKey, steward.VerKey())
	assert.Equal(cd.SeqNo, cdSeqNo)
	assert.Equal(m.Len(), 3)

	// not a schema
	_, err := c.GetSchema(ctx, cdSeqNo, DefaultCacheOptions)
	assert.That(errors.Is(err, ErrNotFound))
	_, err = c.GetSchema(ctx, 99, DefaultCacheOptions)
	assert.That(errors.Is(err, ErrNotFound))
	assert.Equal(cxserr.CodeOf(err), cxserr.LedgerError)
}

func TestMem_Rejects(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	c, _ := newTestClient()
	steward := try.To1(ssi.NewDID(nil))
	other := try.To1(ssi.NewDID(nil))

	// unknown submitter
	_, err := c.WriteSchema(ctx, other, SchemaData{Name: "n", Version: "1", AttrNames: []string{"a"}})
	assert.Equal(cxserr.CodeOf(err), cxserr.LedgerError)

	try.To1(c.WriteNym(ctx, steward, steward.Did(), steward.VerKey()))
	_, err = c.WriteNym(ctx, steward, steward.Did(), steward.VerKey())
	assert.Equal(cxserr.CodeOf(err), cxserr.LedgerError)

	// a steward registers other DIDs
	try.To1(c.WriteNym(ctx, steward, other.Did(), other.VerKey()))

	sd := SchemaData{Name: "n", Version: "1", AttrNames: []string{"a"}}
	try.To1(c.WriteSchema(ctx, other, sd))
	_, err = c.WriteSchema(ctx, other, sd)
	assert.Error(err)
	_, err = c.WriteSchema(ctx, other, SchemaData{Name: "empty", Version: "1"})
	assert.Error(err)
	_, err = c.WriteClaimDef(ctx, other, 1, "t", ClaimDefData{VerKey: other.VerKey()})
	assert.Error(err)

	// timeout
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.WriteSchema(cctx, other, SchemaData{Name: "x", Version: "1", AttrNames: []string{"a"}})
	assert.Equal(cxserr.CodeOf(err), cxserr.LedgerError)
}

func TestMem_BadSignature(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := NewMem()
	d := try.To1(ssi.NewDID(nil))
	req := `{"reqId":1,"identifier":"` + d.Did() +
		`","operation":{"type":"1","dest":"` + d.Did() + `","verkey":"` + d.VerKey() +
		`"},"signature":"3yZe7d"}`
	reply := try.To1(m.Submit(context.Background(), []byte(req)))
	_, err := parseReply(reply)
	assert.Error(err)
	assert.Equal(m.Len(), 0)
}

func TestClient_Cache(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	c, _ := newTestClient()
	d := try.To1(ssi.NewDID(nil))

	_, err := c.GetNym(ctx, d.Did(), CacheOptions{NoUpdate: true, MinFresh: -1})
	assert.Equal(cxserr.CodeOf(err), cxserr.NoDataAvailable)

	try.To1(c.WriteNym(ctx, d, d.Did(), d.VerKey()))
	try.To1(c.GetNym(ctx, d.Did(), CacheOptions{NoStore: true, MinFresh: -1}))
	_, err = c.GetNym(ctx, d.Did(), CacheOptions{NoUpdate: true, MinFresh: -1})
	assert.Error(err)

	try.To1(c.GetNym(ctx, d.Did(), DefaultCacheOptions))
	vk := try.To1(c.GetNym(ctx, d.Did(), CacheOptions{NoUpdate: true, MinFresh: -1}))
	assert.Equal(vk, d.VerKey())

	c.Purge()
	_, err = c.GetNym(ctx, d.Did(), CacheOptions{NoUpdate: true, MinFresh: 10})
	assert.Error(err)
}

func TestParseCacheOptions(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	opts := try.To1(ParseCacheOptions(""))
	assert.Equal(opts, DefaultCacheOptions)

	opts = try.To1(ParseCacheOptions(`{"noCache":true,"minFresh":20}`))
	assert.That(opts.NoCache)
	assert.Equal(opts.MinFresh, 20)

	_, err := ParseCacheOptions(`{"unknown":1}`)
	assert.Equal(cxserr.CodeOf(err), cxserr.InvalidParam)
	_, err = ParseCacheOptions(`{`)
	assert.Equal(cxserr.CodeOf(err), cxserr.InvalidJSON)
}

func TestMem_SaveLoad(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	c, m := newTestClient()
	d := try.To1(ssi.NewDID(nil))
	try.To1(c.WriteNym(ctx, d, d.Did(), d.VerKey()))
	try.To1(c.WriteSchema(ctx, d, SchemaData{Name: "n", Version: "1", AttrNames: []string{"a"}}))

	fname := filepath.Join(t.TempDir(), "ledger.gob")
	try.To(m.Save(fname))
	m2 := try.To1(LoadMem(fname))
	assert.Equal(m2.Len(), 2)

	c2 := NewClient(m2, 10, time.Second)
	s := try.To1(c2.GetSchema(ctx, 2, DefaultCacheOptions))
	assert.Equal(s.Name, "n")

	m3 := try.To1(LoadMem(filepath.Join(t.TempDir(), "missing.gob")))
	assert.Equal(m3.Len(), 0)
	_ = os.Remove(fname)
}
