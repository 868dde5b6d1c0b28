// Package sec is the secure channel layer. It packs messages in the legacy
// DIDComm envelope format, where the content is chacha20poly1305 encrypted and
// the content key is sealed for the recipient with NaCl box. Authcrypt carries
// the sender's verkey anon-crypted in the recipient header.
package sec

import (
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Pipe is a secure way to transport data between DID connection. All agent to
// agent communication uses it. In is our end and Out the other end.
type Pipe struct {
	In  *ssi.DID
	Out *ssi.DID
}

// Verify verifies signature of the message and returns the verification key.
func (p Pipe) Verify(msg, signature []byte) (vk string, err error) {
	defer err2.Handle(&err, "pipe verify")

	try.To(p.Out.Verify(msg, signature))
	return p.Out.VerKey(), nil
}

// Sign signs the message and returns the verification key.
func (p Pipe) Sign(src []byte) (dst []byte, vk string, err error) {
	defer err2.Handle(&err, "pipe sign")

	dst = try.To1(p.In.Sign(src))
	return dst, p.In.VerKey(), nil
}

// Pack authcrypts the bytes from In to Out and returns our verkey as well.
func (p Pipe) Pack(src []byte) (dst []byte, vk string, err error) {
	defer err2.Handle(&err, "sec pipe pack")

	dst = try.To1(Pack(p.In, p.Out, src))
	return dst, p.In.VerKey(), nil
}

// Unpack decrypts the bytes and checks that they were authcrypted by Out.
func (p Pipe) Unpack(src []byte) (dst []byte, vk string, err error) {
	defer err2.Handle(&err, "sec pipe unpack")

	dst, vk = try.To2(Unpack(p.In, src))
	if vk != p.Out.VerKey() {
		return nil, "", cxserr.New(cxserr.CryptoError,
			"sender %s is not the pipe's other end", vk)
	}
	return dst, vk, nil
}

// AnonPack anon-crypts the bytes to the Out end of the pipe.
func (p Pipe) AnonPack(src []byte) ([]byte, error) {
	return Pack(nil, p.Out, src)
}

// IsNull returns true if pipe is null.
func (p Pipe) IsNull() bool {
	return p.In == nil || p.Out == nil
}
