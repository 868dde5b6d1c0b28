/*
Package issuecredential is package for Aries protocol messages for same name.
The anoncreds payloads (offer, request and claim) travel as attachments.
*/
package issuecredential

import (
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/std/decorator"
)

const (
	OfferAttachID   = "cxs-cred-offer-0"
	RequestAttachID = "cxs-cred-request-0"
	IssueAttachID   = "cxs-cred-0"
)

// Offer is a message sent by the Issuer to the potential Holder,
// describing the credential they intend to offer.
type Offer struct {
	didcomm.Header
	// Comment is an optional field that provides human readable information
	// about this Credential Offer.
	Comment string `json:"comment,omitempty"`
	// CredentialPreview represents the credential data that Issuer is willing to issue.
	CredentialPreview PreviewCredential `json:"credential_preview,omitempty"`
	// OffersAttach is a slice of attachments that further define the credential being offered.
	OffersAttach []decorator.Attachment `json:"offers~attach,omitempty"`
}

// Request is a message sent by the potential Holder to the Issuer,
// to request the issuance of a credential.
type Request struct {
	didcomm.Header
	Comment string `json:"comment,omitempty"`
	// RequestsAttach is a slice of attachments defining the requested formats for the credential
	RequestsAttach []decorator.Attachment `json:"requests~attach,omitempty"`
}

// Issue contains as attached payload the credentials being issued and is
// sent in response to a valid Request Credential message.
type Issue struct {
	didcomm.Header
	Comment string `json:"comment,omitempty"`
	// CredentialsAttach is a slice of attachments containing the issued credentials.
	CredentialsAttach []decorator.Attachment `json:"credentials~attach,omitempty"`
}

// PreviewCredential is used to construct a preview of the data for the credential that is to be issued.
type PreviewCredential struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Attribute describes an attribute for a Preview Credential
type Attribute struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime-type,omitempty"`
	Value    string `json:"value,omitempty"`
}

func init() {
	didcomm.Creator.Add(pltype.IssueCredentialOffer,
		func() didcomm.MessageHdr { return &Offer{} })
	didcomm.Creator.Add(pltype.IssueCredentialRequest,
		func() didcomm.MessageHdr { return &Request{} })
	didcomm.Creator.Add(pltype.IssueCredentialIssue,
		func() didcomm.MessageHdr { return &Issue{} })
}
