package ledger

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bluele/gcache"
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mitchellh/mapstructure"
	"github.com/mr-tron/base58"
)

// CacheOptions control how the ledger reads use the cache. MinFresh is the max
// age of the cached entry in seconds, -1 accepts any age.
type CacheOptions struct {
	NoCache  bool `mapstructure:"noCache"`
	NoUpdate bool `mapstructure:"noUpdate"`
	NoStore  bool `mapstructure:"noStore"`
	MinFresh int  `mapstructure:"minFresh"`
}

var DefaultCacheOptions = CacheOptions{MinFresh: -1}

// ParseCacheOptions parses the options JSON. Empty string means defaults.
func ParseCacheOptions(optionsJSON string) (opts CacheOptions, err error) {
	opts = DefaultCacheOptions
	if optionsJSON == "" {
		return opts, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(optionsJSON), &m); err != nil {
		return opts, cxserr.Wrap(cxserr.InvalidJSON, err, "cache options")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(m); err != nil {
		return opts, cxserr.Wrap(cxserr.InvalidParam, err, "cache options")
	}
	return opts, nil
}

type entry struct {
	result Result
	at     time.Time
}

type Client struct {
	Ledger
	cache   gcache.Cache
	timeout time.Duration
}

func NewClient(l Ledger, cacheSize int, timeout time.Duration) *Client {
	return &Client{
		Ledger:  l,
		cache:   gcache.New(cacheSize).LRU().Build(),
		timeout: timeout,
	}
}

// Purge empties the read cache.
func (c *Client) Purge() {
	c.cache.Purge()
}

func (c *Client) submit(ctx context.Context, signer *ssi.DID, op Operation) (r *Result, err error) {
	defer err2.Handle(&err, "ledger %s", op.Type)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := Request{
		ReqID:     utils.NewNonce(),
		Operation: dto.ToJSONBytes(op),
	}
	if signer != nil {
		req.Identifier = signer.Did()
		sig := try.To1(signer.Sign(req.SignedData()))
		req.Signature = base58.Encode(sig)
	}
	reply, err := c.Submit(ctx, dto.ToJSONBytes(req))
	if err != nil {
		return nil, cxserr.Wrap(cxserr.LedgerError, err, "submit")
	}
	return parseReply(reply)
}

// get reads through the cache.
func (c *Client) get(ctx context.Context, key string, opts CacheOptions, op Operation) (r *Result, err error) {
	if !opts.NoCache {
		if v, err := c.cache.Get(key); err == nil {
			e := v.(entry)
			age := time.Since(e.at)
			if opts.MinFresh < 0 || age <= time.Duration(opts.MinFresh)*time.Second {
				glog.V(5).Infoln("ledger cache hit:", key)
				res := e.result
				return &res, nil
			}
		}
		if opts.NoUpdate {
			return nil, cxserr.New(cxserr.NoDataAvailable, "%s not in cache", key)
		}
	}
	r, err = c.submit(ctx, nil, op)
	if err != nil {
		return nil, err
	}
	if r.SeqNo == 0 {
		return nil, &cxserr.Error{Code: cxserr.LedgerError, Msg: key, Err: ErrNotFound}
	}
	if !opts.NoStore && !opts.NoCache {
		_ = c.cache.Set(key, entry{result: *r, at: time.Now()})
	}
	return r, nil
}

func (c *Client) WriteNym(ctx context.Context, submitter *ssi.DID, did, verKey string) (seqNo int, err error) {
	r, err := c.submit(ctx, submitter, Operation{
		Type:   TxnNym,
		Dest:   did,
		VerKey: verKey,
	})
	if err != nil {
		return 0, err
	}
	return r.SeqNo, nil
}

// GetNym returns the verkey of the DID.
func (c *Client) GetNym(ctx context.Context, did string, opts CacheOptions) (verKey string, err error) {
	defer err2.Handle(&err, "get nym %s", did)

	r := try.To1(c.get(ctx, "nym|"+did, opts, Operation{Type: TxnGetNym, Dest: did}))
	var nd NymData
	try.To(json.Unmarshal(r.Data, &nd))
	return nd.VerKey, nil
}

type Schema struct {
	SchemaData
	SeqNo int    `json:"seqNo"`
	Dest  string `json:"dest"`
}

func (c *Client) WriteSchema(ctx context.Context, submitter *ssi.DID, sd SchemaData) (seqNo int, err error) {
	r, err := c.submit(ctx, submitter, Operation{
		Type: TxnSchema,
		Data: dto.ToJSONBytes(sd),
	})
	if err != nil {
		return 0, err
	}
	return r.SeqNo, nil
}

// GetSchema reads the schema by its sequence number.
func (c *Client) GetSchema(ctx context.Context, seqNo int, opts CacheOptions) (s *Schema, err error) {
	defer err2.Handle(&err, "get schema %d", seqNo)

	r := try.To1(c.get(ctx, "schema|"+strconv.Itoa(seqNo), opts, Operation{
		Type: TxnGet,
		Data: dto.ToJSONBytes(seqNo),
	}))
	if r.Type != TxnSchema {
		return nil, &cxserr.Error{Code: cxserr.LedgerError,
			Msg: "txn " + strconv.Itoa(seqNo) + " is not a schema", Err: ErrNotFound}
	}
	s = &Schema{SeqNo: r.SeqNo, Dest: r.Identifier}
	try.To(json.Unmarshal(r.Data, &s.SchemaData))
	return s, nil
}

type ClaimDef struct {
	ClaimDefData
	SeqNo       int    `json:"seqNo"`
	Origin      string `json:"origin"`
	SchemaSeqNo int    `json:"ref"`
	Tag         string `json:"tag"`
}

func (c *Client) WriteClaimDef(ctx context.Context, submitter *ssi.DID, schemaSeqNo int, tag string, cd ClaimDefData) (seqNo int, err error) {
	r, err := c.submit(ctx, submitter, Operation{
		Type:          TxnClaimDef,
		Ref:           schemaSeqNo,
		SignatureType: SignatureType,
		Tag:           tag,
		Data:          dto.ToJSONBytes(cd),
	})
	if err != nil {
		return 0, err
	}
	return r.SeqNo, nil
}

func (c *Client) GetClaimDef(ctx context.Context, origin string, schemaSeqNo int, tag string, opts CacheOptions) (cd *ClaimDef, err error) {
	defer err2.Handle(&err, "get claim def %s/%d", origin, schemaSeqNo)

	key := "cdef|" + claimDefKey(origin, schemaSeqNo, tag)
	r := try.To1(c.get(ctx, key, opts, Operation{
		Type:          TxnGetCDef,
		Origin:        origin,
		Ref:           schemaSeqNo,
		SignatureType: SignatureType,
		Tag:           tag,
	}))
	cd = &ClaimDef{
		SeqNo:       r.SeqNo,
		Origin:      origin,
		SchemaSeqNo: schemaSeqNo,
		Tag:         tag,
	}
	try.To(json.Unmarshal(r.Data, &cd.ClaimDefData))
	return cd, nil
}
