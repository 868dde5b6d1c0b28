// Package didexchange includes the messages of the Aries connection protocol.
// The invitation is in its own package because it's moved out-of-band.
package didexchange

import (
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/std/common"
)

// Request is sent by the invitee to the inviter. It's anon-crypted to the
// invitation key.
type Request struct {
	didcomm.Header
	Label      string      `json:"label,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
}

// Response is sent by the inviter. The connection is signed with the
// invitation key, which proves that the response comes from the party who
// created the invitation.
type Response struct {
	didcomm.Header
	ConnectionSignature *ConnectionSignature `json:"connection~sig,omitempty"`

	// Connection is filled from the verified signature
	Connection *Connection `json:"-"`
}

// Connection carries the pairwise DID and its DID document.
type Connection struct {
	DID    string      `json:"DID,omitempty"`
	DIDDoc *common.Doc `json:"DIDDoc,omitempty"`
}

// ConnectionSignature is the ed25519Sha512_single signature of the connection.
type ConnectionSignature struct {
	Type       string `json:"@type,omitempty"`
	Signature  string `json:"signature,omitempty"`
	SignedData string `json:"sig_data,omitempty"`
	SignVerKey string `json:"signer,omitempty"`
}

func init() {
	didcomm.Creator.Add(pltype.AriesConnectionRequest,
		func() didcomm.MessageHdr { return &Request{} })
	didcomm.Creator.Add(pltype.AriesConnectionResponse,
		func() didcomm.MessageHdr { return &Response{} })
}

func NewConnection(did, verKey, endpoint string) *Connection {
	return &Connection{
		DID:    did,
		DIDDoc: common.NewDoc(did, verKey, endpoint),
	}
}

// NewRequest creates the connection request. The invitation ID is used as the
// thread ID which binds the request to the invitation.
func NewRequest(label, invitationID string, c *Connection) *Request {
	return &Request{
		Header:     didcomm.NewHeader(pltype.AriesConnectionRequest, invitationID),
		Label:      label,
		Connection: c,
	}
}

func NewResponse(thid string, c *Connection) *Response {
	return &Response{
		Header:     didcomm.NewHeader(pltype.AriesConnectionResponse, thid),
		Connection: c,
	}
}

// Validate checks that the connection has a DID document with keys and
// endpoint.
func (c *Connection) Validate() error {
	if c == nil || c.DIDDoc == nil {
		return cxserr.New(cxserr.InvalidParam, "connection without DID document")
	}
	if err := c.DIDDoc.Validate(); err != nil {
		return err
	}
	if c.DID == "" {
		c.DID = c.DIDDoc.DID()
	}
	return nil
}
