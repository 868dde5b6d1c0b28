package verifier

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/utils"
)

// Attr is the requested attribute. IssuerDID and SchemaSeqNo are the short
// form of one restriction.
type Attr struct {
	Name         string                  `json:"name"`
	IssuerDID    string                  `json:"issuer_did,omitempty"`
	SchemaSeqNo  int                     `json:"schema_seq_no,omitempty"`
	Restrictions []anoncreds.Restriction `json:"restrictions,omitempty"`
}

// Predicate is the requested predicate, e.g. {"attr_name":"age",
// "p_type":"GE","value":18}.
type Predicate struct {
	Name         string                  `json:"attr_name"`
	PType        string                  `json:"p_type"`
	Value        int64                   `json:"value"`
	IssuerDID    string                  `json:"issuer_did,omitempty"`
	SchemaSeqNo  int                     `json:"schema_seq_no,omitempty"`
	Restrictions []anoncreds.Restriction `json:"restrictions,omitempty"`
}

var pTypes = map[string]string{
	"GE": anoncreds.PredicateGE, anoncreds.PredicateGE: anoncreds.PredicateGE,
	"GT": anoncreds.PredicateGT, anoncreds.PredicateGT: anoncreds.PredicateGT,
	"LE": anoncreds.PredicateLE, anoncreds.PredicateLE: anoncreds.PredicateLE,
	"LT": anoncreds.PredicateLT, anoncreds.PredicateLT: anoncreds.PredicateLT,
}

func restrictions(issuerDID string, seqNo int, rs []anoncreds.Restriction) []anoncreds.Restriction {
	if issuerDID != "" || seqNo != 0 {
		rs = append(rs, anoncreds.Restriction{IssuerDID: issuerDID, SchemaSeqNo: seqNo})
	}
	return rs
}

func decode(s string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewRequest builds the proof request from the JSON arrays of the requested
// attributes and predicates.
func NewRequest(name, attrsJSON, predsJSON string) (req *anoncreds.ProofRequest, err error) {
	var (
		attrs []Attr
		preds []Predicate
	)
	if err := decode(attrsJSON, &attrs); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "requested attributes")
	}
	if predsJSON == "" {
		predsJSON = "[]"
	}
	if err := decode(predsJSON, &preds); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "requested predicates")
	}
	if len(attrs) == 0 && len(preds) == 0 {
		return nil, cxserr.Param(2, "nothing requested")
	}
	req = &anoncreds.ProofRequest{
		Name:                name,
		Version:             "0.1",
		Nonce:               utils.NewNonceStr(),
		RequestedAttributes: make(map[string]anoncreds.AttrInfo, len(attrs)),
		RequestedPredicates: make(map[string]anoncreds.PredicateInfo, len(preds)),
	}
	for i, attr := range attrs {
		if attr.Name == "" {
			return nil, cxserr.Param(2, "attribute %d has no name", i)
		}
		id := "attr_referent_" + strconv.Itoa(i+1)
		req.RequestedAttributes[id] = anoncreds.AttrInfo{
			Name:         attr.Name,
			Restrictions: restrictions(attr.IssuerDID, attr.SchemaSeqNo, attr.Restrictions),
		}
	}
	for i, p := range preds {
		pType, ok := pTypes[p.PType]
		if p.Name == "" || !ok {
			return nil, cxserr.Param(3, "predicate %d: '%s' '%s'", i, p.Name, p.PType)
		}
		id := "predicate_" + strconv.Itoa(i+1)
		req.RequestedPredicates[id] = anoncreds.PredicateInfo{
			Name:         p.Name,
			PType:        pType,
			PValue:       p.Value,
			Restrictions: restrictions(p.IssuerDID, p.SchemaSeqNo, p.Restrictions),
		}
	}
	return req, nil
}
