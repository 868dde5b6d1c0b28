package anoncreds

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

const walletKey = "claim"

// Suite is the built-in claim crypto.
type Suite struct{}

var (
	_ Issuer   = Suite{}
	_ Prover   = Suite{}
	_ Verifier = Suite{}
)

func signedData(id Identifier, attr, encoded string) []byte {
	s := id.IssuerDID + "|" + strconv.Itoa(id.SchemaSeqNo) + "|" + id.Tag + "|" +
		id.ClaimID + "|" + attr + "|" + encoded
	return []byte(s)
}

func (Suite) CreateOffer(cd ClaimDefRef, attrs map[string]string) (*Offer, error) {
	return &Offer{
		ClaimDefRef: cd,
		Preview:     attrs,
		Nonce:       utils.NewNonceStr(),
	}, nil
}

func (Suite) CreateRequest(offer *Offer, proverDID string) (*Request, error) {
	if offer == nil || offer.Nonce == "" {
		return nil, cxserr.Param(1, "offer missing nonce")
	}
	if proverDID == "" {
		return nil, cxserr.Param(2, "prover DID empty")
	}
	return &Request{
		ClaimDefRef: offer.ClaimDefRef,
		ProverDID:   proverDID,
		Nonce:       offer.Nonce,
	}, nil
}

// CreateClaim signs the values with the claim definition key. The request must
// answer the offer.
func (Suite) CreateClaim(key *ssi.DID, offer *Offer, req *Request, values map[string]string) (c *Claim, err error) {
	defer err2.Handle(&err, "create claim")

	if offer == nil || req == nil {
		return nil, cxserr.Param(2, "offer and request needed")
	}
	if req.Nonce != offer.Nonce || req.ClaimDefRef != offer.ClaimDefRef {
		return nil, cxserr.New(cxserr.CryptoError, "request doesn't match the offer")
	}
	c = &Claim{
		Identifier: Identifier{
			ClaimDefRef: offer.ClaimDefRef,
			ClaimID:     utils.UUID(),
		},
		ProverDID:  req.ProverDID,
		Values:     make(map[string]AttrValue, len(values)),
		Signatures: make(map[string]string, len(values)),
	}
	for attr, raw := range values {
		encoded := Encode(raw)
		sig := try.To1(key.Sign(signedData(c.Identifier, attr, encoded)))
		c.Values[attr] = AttrValue{Raw: raw, Encoded: encoded}
		c.Signatures[attr] = base58.Encode(sig)
	}
	return c, nil
}

func verifyValue(key *ssi.DID, id Identifier, attr string, v AttrValue, sig string) error {
	if Encode(v.Raw) != v.Encoded {
		return cxserr.New(cxserr.CryptoError, "attribute %s encoding mismatch", attr)
	}
	s, err := base58.Decode(sig)
	if err != nil {
		return cxserr.Wrap(cxserr.CryptoError, err, "attribute %s signature", attr)
	}
	if err := key.Verify(signedData(id, attr, v.Encoded), s); err != nil {
		return cxserr.New(cxserr.CryptoError, "attribute %s signature invalid", attr)
	}
	return nil
}

// StoreClaim verifies the claim with the issuer's claim definition key and
// stores it to the wallet.
func (Suite) StoreClaim(w wallet.Wallet, c *Claim, issuerVerKey string) (err error) {
	defer err2.Handle(&err, "store claim")

	key := try.To1(ssi.NewOutDID(issuerVerKey))
	for attr, v := range c.Values {
		try.To(verifyValue(key, c.Identifier, attr, v, c.Signatures[attr]))
	}
	glog.V(3).Infoln("storing claim", c.ClaimID)
	return w.Set(walletKey, c.ClaimID, dto.ToJSONBytes(c))
}

// Claims returns the claims in the wallet sorted by their ID.
func Claims(w wallet.Wallet) (claims []*Claim, err error) {
	defer err2.Handle(&err, "wallet claims")

	values := try.To1(w.List(walletKey))
	for _, v := range values {
		var c Claim
		try.To(json.Unmarshal(v, &c))
		claims = append(claims, &c)
	}
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].ClaimID < claims[j].ClaimID
	})
	return claims, nil
}

type proofBuilder struct {
	proof   *Proof
	indexOf map[string]int
	claims  []*Claim
}

func (b *proofBuilder) subProof(c *Claim) int {
	if i, ok := b.indexOf[c.ClaimID]; ok {
		return i
	}
	i := len(b.proof.Proofs)
	b.indexOf[c.ClaimID] = i
	b.proof.Identifiers = append(b.proof.Identifiers, c.Identifier)
	b.proof.Proofs = append(b.proof.Proofs, SubProof{Attrs: make(map[string]SignedValue)})
	return i
}

func (b *proofBuilder) reveal(i int, c *Claim, attr string) {
	b.proof.Proofs[i].Attrs[attr] = SignedValue{
		AttrValue: c.Values[attr],
		Signature: c.Signatures[attr],
	}
}

// find returns the first claim which has the attribute, matches the
// restrictions and passes the check.
func (b *proofBuilder) find(attr string, rs []Restriction, check func(AttrValue) bool) *Claim {
	for _, c := range b.claims {
		v, ok := c.Values[attr]
		if ok && matchAny(rs, c.ClaimDefRef) && check(v) {
			return c
		}
	}
	return nil
}

// CreateProof builds the proof from the claims of the wallet. Every requested
// attribute and predicate must be satisfied, otherwise NoDataAvailable.
func (Suite) CreateProof(w wallet.Wallet, req *ProofRequest) (p *Proof, err error) {
	defer err2.Handle(&err, "create proof")

	b := &proofBuilder{
		proof: &Proof{
			Nonce: req.Nonce,
			RequestedProof: RequestedProof{
				RevealedAttrs: make(map[string]RevealedAttr),
				Predicates:    make(map[string]SubProofIndex),
			},
		},
		indexOf: make(map[string]int),
		claims:  try.To1(Claims(w)),
	}
	for _, ref := range sortedKeys(req.RequestedAttributes) {
		info := req.RequestedAttributes[ref]
		c := b.find(info.Name, info.Restrictions, func(AttrValue) bool { return true })
		if c == nil {
			return nil, cxserr.New(cxserr.NoDataAvailable, "no claim for attribute %s", info.Name)
		}
		i := b.subProof(c)
		b.reveal(i, c, info.Name)
		v := c.Values[info.Name]
		b.proof.RequestedProof.RevealedAttrs[ref] = RevealedAttr{
			SubProofIndex: i, Raw: v.Raw, Encoded: v.Encoded,
		}
	}
	for _, ref := range sortedKeys(req.RequestedPredicates) {
		info := req.RequestedPredicates[ref]
		try.To(checkPType(info.PType))
		c := b.find(info.Name, info.Restrictions, func(v AttrValue) bool {
			ok, _ := Satisfies(v.Raw, info.PType, info.PValue)
			return ok
		})
		if c == nil {
			return nil, cxserr.New(cxserr.NoDataAvailable,
				"no claim for predicate %s %s %d", info.Name, info.PType, info.PValue)
		}
		i := b.subProof(c)
		b.reveal(i, c, info.Name)
		b.proof.RequestedProof.Predicates[ref] = SubProofIndex{SubProofIndex: i}
	}
	return b.proof, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type verifier struct {
	proof *Proof
	keys  KeyResolver
	dids  map[int]*ssi.DID
}

func (v *verifier) value(i int, attr string, rs []Restriction) (av AttrValue, err error) {
	if i < 0 || i >= len(v.proof.Proofs) || i >= len(v.proof.Identifiers) {
		return av, cxserr.New(cxserr.CryptoError, "sub proof index %d out of range", i)
	}
	id := v.proof.Identifiers[i]
	if !matchAny(rs, id.ClaimDefRef) {
		return av, cxserr.New(cxserr.CryptoError, "attribute %s restrictions not met", attr)
	}
	sv, ok := v.proof.Proofs[i].Attrs[attr]
	if !ok {
		return av, cxserr.New(cxserr.CryptoError, "attribute %s missing from sub proof", attr)
	}
	key, ok := v.dids[i]
	if !ok {
		vk, err := v.keys(id)
		if err != nil {
			return av, err
		}
		key, err = ssi.NewOutDID(vk)
		if err != nil {
			return av, err
		}
		v.dids[i] = key
	}
	return sv.AttrValue, verifyValue(key, id, attr, sv.AttrValue, sv.Signature)
}

// VerifyProof checks that the proof answers the request and that every
// disclosed value is signed by the issuer's claim definition key.
func (Suite) VerifyProof(req *ProofRequest, proof *Proof, keys KeyResolver) (err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.CryptoError, err, "verify proof")
	})

	if proof.Nonce != req.Nonce {
		return cxserr.New(cxserr.CryptoError, "proof nonce mismatch")
	}
	v := &verifier{proof: proof, keys: keys, dids: make(map[int]*ssi.DID)}
	for ref, info := range req.RequestedAttributes {
		ra, ok := proof.RequestedProof.RevealedAttrs[ref]
		if !ok {
			return cxserr.New(cxserr.CryptoError, "attribute %s not revealed", ref)
		}
		av := try.To1(v.value(ra.SubProofIndex, info.Name, info.Restrictions))
		if av.Raw != ra.Raw || av.Encoded != ra.Encoded {
			return cxserr.New(cxserr.CryptoError, "attribute %s value mismatch", ref)
		}
	}
	for ref, info := range req.RequestedPredicates {
		pi, ok := proof.RequestedProof.Predicates[ref]
		if !ok {
			return cxserr.New(cxserr.CryptoError, "predicate %s not proved", ref)
		}
		av := try.To1(v.value(pi.SubProofIndex, info.Name, info.Restrictions))
		if !try.To1(Satisfies(av.Raw, info.PType, info.PValue)) {
			return cxserr.New(cxserr.CryptoError, "predicate %s not satisfied", ref)
		}
	}
	return nil
}
