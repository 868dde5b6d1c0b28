// Package ledger implements the ledger collaborator. Requests and replies are
// Indy style transaction JSON documents which are submitted through the
// Ledger interface. Client offers typed calls on top of it with a read cache.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/findy-network/findy-cxs/agent/cxserr"
)

// Transaction types
const (
	TxnGet      = "3"
	TxnNym      = "1"
	TxnSchema   = "101"
	TxnClaimDef = "102"
	TxnGetNym   = "105"
	TxnGetSchem = "107"
	TxnGetCDef  = "108"

	OpReply  = "REPLY"
	OpReject = "REJECT"

	SignatureType = "ED25519"
)

var ErrNotFound = errors.New("not found from ledger")

// Ledger submits the request JSON and returns the reply JSON.
type Ledger interface {
	Submit(ctx context.Context, req []byte) ([]byte, error)
}

type Request struct {
	ReqID      uint64          `json:"reqId"`
	Identifier string          `json:"identifier,omitempty"`
	Operation  json.RawMessage `json:"operation"`
	Signature  string          `json:"signature,omitempty"`
}

// SignedData returns the bytes covered by the request signature.
func (r *Request) SignedData() []byte {
	s := r.Identifier + "|" + strconv.FormatUint(r.ReqID, 10) + "|"
	return append([]byte(s), r.Operation...)
}

type Operation struct {
	Type string `json:"type"`

	// NYM, GET_NYM, GET_SCHEMA
	Dest   string `json:"dest,omitempty"`
	VerKey string `json:"verkey,omitempty"`
	Alias  string `json:"alias,omitempty"`
	Role   string `json:"role,omitempty"`

	// CLAIM_DEF, GET_CLAIM_DEF
	Ref           int    `json:"ref,omitempty"`
	SignatureType string `json:"signature_type,omitempty"`
	Origin        string `json:"origin,omitempty"`
	Tag           string `json:"tag,omitempty"`

	// SCHEMA, CLAIM_DEF, GET_SCHEMA, GET_TXN
	Data json.RawMessage `json:"data,omitempty"`
}

type Reply struct {
	Op     string  `json:"op"`
	ReqID  uint64  `json:"reqId,omitempty"`
	Reason string  `json:"reason,omitempty"`
	Result *Result `json:"result,omitempty"`
}

type Result struct {
	ReqID      uint64          `json:"reqId"`
	Identifier string          `json:"identifier,omitempty"`
	Type       string          `json:"type"`
	SeqNo      int             `json:"seqNo,omitempty"`
	TxnTime    int64           `json:"txnTime,omitempty"`
	Dest       string          `json:"dest,omitempty"`
	Origin     string          `json:"origin,omitempty"`
	Ref        int             `json:"ref,omitempty"`
	Tag        string          `json:"tag,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type SchemaData struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attr_names,omitempty"`
}

type NymData struct {
	Dest   string `json:"dest"`
	VerKey string `json:"verkey"`
	Alias  string `json:"alias,omitempty"`
	Role   string `json:"role,omitempty"`
}

// ClaimDefData is the public part of the claim definition. VerKey verifies
// the claim signatures of the issuer.
type ClaimDefData struct {
	VerKey string `json:"verkey"`
}

// Txn is a transaction stored in the ledger.
type Txn struct {
	SeqNo      int
	TxnTime    int64
	Type       string
	Identifier string
	Operation  Operation
}

func rejected(reason string) error {
	return cxserr.New(cxserr.LedgerError, "rejected: %s", reason)
}

func parseReply(data []byte) (r *Result, err error) {
	var rep Reply
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, cxserr.Wrap(cxserr.LedgerError, err, "reply")
	}
	switch rep.Op {
	case OpReply:
		if rep.Result == nil {
			return nil, cxserr.New(cxserr.LedgerError, "reply without result")
		}
		return rep.Result, nil
	case OpReject:
		return nil, rejected(rep.Reason)
	default:
		return nil, cxserr.New(cxserr.LedgerError, "unknown reply op '%s'", rep.Op)
	}
}
