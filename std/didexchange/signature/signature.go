// Package signature signs and verifies the connection field of the connection
// response.
package signature

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/std/didexchange"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	connectionSigExpTime = 10 * 60 * 60
	timestampLen         = 8

	SigType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/signature/1.0/ed25519Sha512_single"
)

// Sign signs the connection of the response with the DID.
func Sign(r *didexchange.Response, did *ssi.DID) (err error) {
	r.ConnectionSignature, err = newConnectionSignature(r.Connection, did)
	return err
}

// Verify verifies the signature and fills the connection of the response.
// It returns the verkey of the signer.
func Verify(r *didexchange.Response) (verKey string, err error) {
	if r.ConnectionSignature == nil {
		return "", cxserr.New(cxserr.CryptoError, "connection signature missing")
	}
	r.Connection, err = verifySignature(r.ConnectionSignature)
	if err != nil {
		return "", err
	}
	if r.Connection.DID == "" && r.Connection.DIDDoc != nil {
		r.Connection.DID = r.Connection.DIDDoc.DID()
	}
	return r.ConnectionSignature.SignVerKey, nil
}

func newConnectionSignature(connection *didexchange.Connection, did *ssi.DID) (cs *didexchange.ConnectionSignature, err error) {
	defer err2.Handle(&err, "build connection sign")

	connectionJSON := try.To1(json.Marshal(connection))

	signedData := make([]byte, timestampLen, timestampLen+len(connectionJSON))
	binary.BigEndian.PutUint64(signedData, uint64(time.Now().Unix()))
	signedData = append(signedData, connectionJSON...)

	signature := try.To1(did.Sign(signedData))

	return &didexchange.ConnectionSignature{
		Type:       SigType,
		SignedData: base64.URLEncoding.EncodeToString(signedData),
		SignVerKey: did.VerKey(),
		Signature:  base64.URLEncoding.EncodeToString(signature),
	}, nil
}

// verifySignature verifies a signature inside the structure with the key from
// the signature structure. If succeeded it returns a Connection structure.
func verifySignature(cs *didexchange.ConnectionSignature) (c *didexchange.Connection, err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.CryptoError, err, "verify sign")
	})

	did := try.To1(ssi.NewOutDID(cs.SignVerKey))

	data := try.To1(utils.DecodeB64(cs.SignedData))
	if len(data) <= timestampLen {
		return nil, cxserr.New(cxserr.CryptoError, "missing or invalid signature data")
	}

	signature := try.To1(utils.DecodeB64(cs.Signature))
	try.To(did.Verify(data, signature))

	timestamp := int64(binary.BigEndian.Uint64(data))
	diff := time.Now().Unix() - timestamp
	if diff < 0 || diff > connectionSigExpTime {
		glog.Errorln("connection signature timestamp is invalid: ", timestamp, time.Unix(timestamp, 0))
		return nil, cxserr.New(cxserr.CryptoError, "signature timestamp expired")
	}

	glog.V(3).Info("verified connection signature w/ ts:", time.Unix(timestamp, 0))

	var connection didexchange.Connection
	try.To(json.Unmarshal(data[timestampLen:], &connection))
	return &connection, nil
}
