// Package ssi implements the DID key material of the agent. A DID has an
// ed25519 signing key and an x25519 key agreement key. The public identifier of
// both, the verkey, is the base58 encoding of the two public keys, and the DID
// string is the base58 of the first 16 bytes of the signing key like in Indy.
package ssi

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/json"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/curve25519"
)

const (
	SeedLen   = 32
	KeyLen    = 32
	VerKeyLen = 2 * KeyLen

	walletKey = "did"
)

type DID struct {
	did    string
	verKey string

	signPub ed25519.PublicKey
	encPub  [KeyLen]byte

	seed    []byte // nil for the other end's DID
	sign    ed25519.PrivateKey
	encPriv *[KeyLen]byte
}

// NewDID creates a new DID with private keys. Nil seed means random keys.
func NewDID(seed []byte) (d *DID, err error) {
	defer err2.Handle(&err, "new DID")

	if seed == nil {
		seed = make([]byte, SeedLen)
		try.To1(rand.Read(seed))
	} else {
		if len(seed) != SeedLen {
			return nil, cxserr.New(cxserr.CryptoError, "seed length %d", len(seed))
		}
		seed = append(seed[:0:0], seed...)
	}
	sign := ed25519.NewKeyFromSeed(seed)
	h := sha512.Sum512(seed)
	encPriv := new([KeyLen]byte)
	copy(encPriv[:], h[KeyLen:])
	Zero(h[:])
	encPub := try.To1(curve25519.X25519(encPriv[:], curve25519.Basepoint))

	d = &DID{
		seed:    seed,
		sign:    sign,
		signPub: sign.Public().(ed25519.PublicKey),
		encPriv: encPriv,
	}
	copy(d.encPub[:], encPub)
	d.setIDs()
	return d, nil
}

// NewOutDID creates the DID of the other end from its verkey.
func NewOutDID(verKey string) (d *DID, err error) {
	k, err := base58.Decode(verKey)
	if err != nil || len(k) != VerKeyLen {
		return nil, cxserr.New(cxserr.CryptoError, "invalid verkey '%s'", verKey)
	}
	d = &DID{signPub: ed25519.PublicKey(k[:KeyLen])}
	copy(d.encPub[:], k[KeyLen:])
	d.setIDs()
	return d, nil
}

func (d *DID) setIDs() {
	vk := make([]byte, 0, VerKeyLen)
	vk = append(vk, d.signPub...)
	vk = append(vk, d.encPub[:]...)
	d.verKey = base58.Encode(vk)
	d.did = base58.Encode(d.signPub[:16])
}

func (d *DID) Did() string {
	return d.did
}

func (d *DID) URI() string {
	return "did:sov:" + d.did
}

func (d *DID) VerKey() string {
	return d.verKey
}

func (d *DID) SignPub() ed25519.PublicKey {
	return d.signPub
}

func (d *DID) EncPub() *[KeyLen]byte {
	k := d.encPub
	return &k
}

// EncPriv returns the x25519 private key or nil if this is not our DID.
func (d *DID) EncPriv() *[KeyLen]byte {
	return d.encPriv
}

func (d *DID) HasPrivate() bool {
	return d.sign != nil
}

func (d *DID) Sign(msg []byte) ([]byte, error) {
	if !d.HasPrivate() {
		return nil, cxserr.New(cxserr.CryptoError, "no signing key for %s", d.did)
	}
	return ed25519.Sign(d.sign, msg), nil
}

func (d *DID) Verify(msg, sig []byte) error {
	if !ed25519.Verify(d.signPub, msg, sig) {
		return cxserr.New(cxserr.CryptoError, "signature verification failed for %s", d.did)
	}
	return nil
}

// Wipe zeroes the private keys. The DID can still verify and encrypt.
func (d *DID) Wipe() {
	Zero(d.seed)
	Zero(d.sign)
	if d.encPriv != nil {
		Zero(d.encPriv[:])
	}
	d.seed, d.sign, d.encPriv = nil, nil, nil
}

type stored struct {
	Did    string `json:"did"`
	VerKey string `json:"verkey"`
	Seed   string `json:"seed"`
}

// Store saves the private keys of the DID to the wallet.
func (d *DID) Store(w wallet.Wallet) (err error) {
	defer err2.Handle(&err, "store DID %s", d.did)

	if !d.HasPrivate() {
		return cxserr.New(cxserr.CryptoError, "no private keys to store")
	}
	data := try.To1(json.Marshal(stored{
		Did:    d.did,
		VerKey: d.verKey,
		Seed:   base58.Encode(d.seed),
	}))
	return w.Set(walletKey, d.did, data)
}

// Load reads our DID from the wallet.
func Load(w wallet.Wallet, did string) (d *DID, err error) {
	defer err2.Handle(&err, "load DID %s", did)

	data := try.To1(w.Get(walletKey, did))
	var s stored
	try.To(json.Unmarshal(data, &s))
	seed := try.To1(base58.Decode(s.Seed))
	d = try.To1(NewDID(seed))
	Zero(seed)
	if d.did != s.Did || d.verKey != s.VerKey {
		return nil, cxserr.New(cxserr.WalletError, "DID %s keys corrupted", did)
	}
	return d, nil
}

// Remove deletes the private keys of the DID from the wallet.
func Remove(w wallet.Wallet, did string) error {
	return w.Delete(walletKey, did)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}
