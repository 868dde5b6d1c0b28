// Package anoncreds is the claim crypto collaborator. The protocol state
// machines use it through the Issuer, Prover and Verifier interfaces. Suite is
// the built-in implementation which signs every attribute value separately
// with the claim definition's ed25519 key. It gives selective disclosure of
// attributes, but predicate values are disclosed to the verifier.
package anoncreds

import (
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/agent/wallet"
)

type Issuer interface {
	CreateOffer(cd ClaimDefRef, attrs map[string]string) (*Offer, error)
	CreateClaim(key *ssi.DID, offer *Offer, req *Request, values map[string]string) (*Claim, error)
}

type Prover interface {
	CreateRequest(offer *Offer, proverDID string) (*Request, error)
	StoreClaim(w wallet.Wallet, c *Claim, issuerVerKey string) error
	CreateProof(w wallet.Wallet, req *ProofRequest) (*Proof, error)
}

// KeyResolver returns the claim definition verkey of the identifier.
type KeyResolver func(id Identifier) (verKey string, err error)

type Verifier interface {
	VerifyProof(req *ProofRequest, proof *Proof, keys KeyResolver) error
}

// ClaimDefRef identifies the claim definition: the issuer, the schema and the
// tag.
type ClaimDefRef struct {
	IssuerDID   string `json:"issuer_did"`
	SchemaSeqNo int    `json:"schema_seq_no"`
	Tag         string `json:"tag,omitempty"`
}

type Identifier struct {
	ClaimDefRef
	ClaimID string `json:"claim_id"`
}

type AttrValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

type Offer struct {
	ClaimDefRef
	ClaimName string            `json:"claim_name,omitempty"`
	Preview   map[string]string `json:"attrs,omitempty"`
	Nonce     string            `json:"nonce"`
}

type Request struct {
	ClaimDefRef
	ProverDID string `json:"prover_did"`
	Nonce     string `json:"nonce"`
}

type Claim struct {
	Identifier
	ProverDID  string               `json:"prover_did"`
	Values     map[string]AttrValue `json:"values"`
	Signatures map[string]string    `json:"signatures"`
}

type Restriction struct {
	IssuerDID   string `json:"issuer_did,omitempty"`
	SchemaSeqNo int    `json:"schema_seq_no,omitempty"`
	Tag         string `json:"tag,omitempty"`
}

type AttrInfo struct {
	Name         string        `json:"name"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
}

type PredicateInfo struct {
	Name         string        `json:"name"`
	PType        string        `json:"p_type"`
	PValue       int64         `json:"p_value"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
}

type ProofRequest struct {
	Name                string                   `json:"name"`
	Version             string                   `json:"version"`
	Nonce               string                   `json:"nonce"`
	RequestedAttributes map[string]AttrInfo      `json:"requested_attributes"`
	RequestedPredicates map[string]PredicateInfo `json:"requested_predicates"`
}

type RevealedAttr struct {
	SubProofIndex int    `json:"sub_proof_index"`
	Raw           string `json:"raw"`
	Encoded       string `json:"encoded"`
}

type SubProofIndex struct {
	SubProofIndex int `json:"sub_proof_index"`
}

type RequestedProof struct {
	RevealedAttrs map[string]RevealedAttr  `json:"revealed_attrs"`
	Predicates    map[string]SubProofIndex `json:"predicates"`
}

type SignedValue struct {
	AttrValue
	Signature string `json:"signature"`
}

type SubProof struct {
	Attrs map[string]SignedValue `json:"attrs"`
}

type Proof struct {
	Nonce          string         `json:"nonce"`
	RequestedProof RequestedProof `json:"requested_proof"`
	Identifiers    []Identifier   `json:"identifiers"`
	Proofs         []SubProof     `json:"proofs"`
}

// Revealed returns the revealed attribute values by the attribute name.
func (p *Proof) Revealed(req *ProofRequest) map[string]string {
	values := make(map[string]string, len(p.RequestedProof.RevealedAttrs))
	for ref, ra := range p.RequestedProof.RevealedAttrs {
		if info, ok := req.RequestedAttributes[ref]; ok {
			values[info.Name] = ra.Raw
		}
	}
	return values
}

func (r Restriction) match(ref ClaimDefRef) bool {
	return (r.IssuerDID == "" || r.IssuerDID == ref.IssuerDID) &&
		(r.SchemaSeqNo == 0 || r.SchemaSeqNo == ref.SchemaSeqNo) &&
		(r.Tag == "" || r.Tag == ref.Tag)
}

func matchAny(rs []Restriction, ref ClaimDefRef) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r.match(ref) {
			return true
		}
	}
	return false
}
