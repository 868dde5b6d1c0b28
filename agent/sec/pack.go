package sec

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	chacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/poly1305"
)

const (
	AlgAuthcrypt = "Authcrypt"
	AlgAnoncrypt = "Anoncrypt"

	encChacha = "chacha20poly1305_ietf"
	typJWM    = "JWM/1.0"
	nonceSize = 24
)

type envelope struct {
	Protected  string `json:"protected"`
	IV         string `json:"iv"`
	CipherText string `json:"ciphertext"`
	Tag        string `json:"tag"`
}

type protected struct {
	Enc        string      `json:"enc"`
	Typ        string      `json:"typ"`
	Alg        string      `json:"alg"`
	Recipients []recipient `json:"recipients"`
}

type recipient struct {
	EncryptedKey string          `json:"encrypted_key"`
	Header       recipientHeader `json:"header"`
}

type recipientHeader struct {
	KID    string `json:"kid"`
	Sender string `json:"sender,omitempty"`
	IV     string `json:"iv,omitempty"`
}

var enc = base64.URLEncoding

// Pack encrypts the payload to the recipient. If the sender is nil the message
// is anon-crypted, i.e. the recipient cannot tell who sent it.
func Pack(sender, to *ssi.DID, payload []byte) (out []byte, err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.CryptoError, err, "pack")
	})

	_, cek, err := box.GenerateKey(rand.Reader)
	try.To(err)
	defer ssi.Zero(cek[:])

	alg := AlgAnoncrypt
	var rcp recipient
	if sender == nil {
		encCEK := try.To1(box.SealAnonymous(nil, cek[:], to.EncPub(), rand.Reader))
		rcp = recipient{
			EncryptedKey: enc.EncodeToString(encCEK),
			Header:       recipientHeader{KID: to.VerKey()},
		}
	} else {
		if !sender.HasPrivate() {
			return nil, cxserr.New(cxserr.CryptoError, "sender has no private keys")
		}
		alg = AlgAuthcrypt
		var nonce [nonceSize]byte
		try.To1(rand.Read(nonce[:]))
		encCEK := box.Seal(nil, cek[:], &nonce, to.EncPub(), sender.EncPriv())
		encSender := try.To1(box.SealAnonymous(nil, []byte(sender.VerKey()),
			to.EncPub(), rand.Reader))
		rcp = recipient{
			EncryptedKey: enc.EncodeToString(encCEK),
			Header: recipientHeader{
				KID:    to.VerKey(),
				Sender: enc.EncodeToString(encSender),
				IV:     enc.EncodeToString(nonce[:]),
			},
		}
	}
	protectedBytes := try.To1(json.Marshal(protected{
		Enc:        encChacha,
		Typ:        typJWM,
		Alg:        alg,
		Recipients: []recipient{rcp},
	}))
	aad := enc.EncodeToString(protectedBytes)

	aead := try.To1(chacha.New(cek[:]))
	iv := make([]byte, chacha.NonceSize)
	try.To1(rand.Read(iv))
	sealed := aead.Seal(nil, iv, payload, []byte(aad))
	tag := sealed[len(sealed)-poly1305.TagSize:]
	cipherText := sealed[:len(sealed)-poly1305.TagSize]

	return json.Marshal(envelope{
		Protected:  aad,
		IV:         enc.EncodeToString(iv),
		CipherText: enc.EncodeToString(cipherText),
		Tag:        enc.EncodeToString(tag),
	})
}

// Unpack decrypts the message with our DID. For authcrypted messages it
// returns the verkey of the sender, for anoncrypted the verkey is empty.
func Unpack(me *ssi.DID, data []byte) (payload []byte, senderVK string, err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.CryptoError, err, "unpack")
	})

	if !me.HasPrivate() {
		return nil, "", cxserr.New(cxserr.CryptoError, "no private keys")
	}
	var env envelope
	try.To(json.Unmarshal(data, &env))
	protectedBytes := try.To1(enc.DecodeString(env.Protected))
	var prot protected
	try.To(json.Unmarshal(protectedBytes, &prot))
	if prot.Typ != typJWM || prot.Enc != encChacha {
		return nil, "", cxserr.New(cxserr.CryptoError,
			"message type %s/%s not supported", prot.Typ, prot.Enc)
	}

	var rcp *recipient
	for i := range prot.Recipients {
		if prot.Recipients[i].Header.KID == me.VerKey() {
			rcp = &prot.Recipients[i]
			break
		}
	}
	if rcp == nil {
		return nil, "", cxserr.New(cxserr.CryptoError, "no key accessible")
	}

	encCEK := try.To1(enc.DecodeString(rcp.EncryptedKey))
	var cek []byte
	switch prot.Alg {
	case AlgAnoncrypt:
		var ok bool
		cek, ok = box.OpenAnonymous(nil, encCEK, me.EncPub(), me.EncPriv())
		if !ok {
			return nil, "", cxserr.New(cxserr.CryptoError, "failed to decrypt CEK")
		}
	case AlgAuthcrypt:
		encSender := try.To1(enc.DecodeString(rcp.Header.Sender))
		senderBytes, ok := box.OpenAnonymous(nil, encSender, me.EncPub(), me.EncPriv())
		if !ok {
			return nil, "", cxserr.New(cxserr.CryptoError, "failed to decrypt sender")
		}
		senderVK = string(senderBytes)
		sender := try.To1(ssi.NewOutDID(senderVK))
		nonceSlice := try.To1(enc.DecodeString(rcp.Header.IV))
		if len(nonceSlice) != nonceSize {
			return nil, "", cxserr.New(cxserr.CryptoError, "bad nonce")
		}
		var nonce [nonceSize]byte
		copy(nonce[:], nonceSlice)
		cek, ok = box.Open(nil, encCEK, &nonce, sender.EncPub(), me.EncPriv())
		if !ok {
			return nil, "", cxserr.New(cxserr.CryptoError, "failed to decrypt CEK")
		}
	default:
		return nil, "", cxserr.New(cxserr.CryptoError, "alg %s not supported", prot.Alg)
	}
	defer ssi.Zero(cek)

	iv := try.To1(enc.DecodeString(env.IV))
	cipherText := try.To1(enc.DecodeString(env.CipherText))
	tag := try.To1(enc.DecodeString(env.Tag))
	aead := try.To1(chacha.New(cek))
	if len(iv) != aead.NonceSize() {
		return nil, "", cxserr.New(cxserr.CryptoError, "bad iv")
	}
	sealed := bytes.Join([][]byte{cipherText, tag}, nil)
	payload = try.To1(aead.Open(nil, iv, sealed, []byte(env.Protected)))
	return payload, senderVK, nil
}

// RecipientKeys returns the verkeys of the recipients of the packed message
// without decrypting it.
func RecipientKeys(data []byte) (keys []string, err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.CryptoError, err, "recipient keys")
	})

	var env envelope
	try.To(json.Unmarshal(data, &env))
	protectedBytes := try.To1(enc.DecodeString(env.Protected))
	var prot protected
	try.To(json.Unmarshal(protectedBytes, &prot))
	keys = make([]string, len(prot.Recipients))
	for i, r := range prot.Recipients {
		keys[i] = r.Header.KID
	}
	return keys, nil
}
