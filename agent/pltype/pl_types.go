// Package pltype holds the message type URIs of the agent protocols.
package pltype

import (
	"strings"

	"github.com/golang/glog"
)

// Protocol constants
const (
	Aries = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec" // all the protocols use this prefix

	Version = "1.0"
)

const (
	ProtocolNotification      = "notification"
	HandlerProblemReport      = "problem-report"
	HandlerAck                = "ack"
	Notification              = Aries + "/" + ProtocolNotification
	NotificationProblemReport = Notification + "/1.0/" + HandlerProblemReport
	NotificationAck           = Notification + "/1.0/" + HandlerAck
)

// Connection protocol constants
const (
	Invitation                = "invitation"
	HandlerRequest            = "request"
	HandlerResponse           = "response"
	AriesProtocolConnection   = "connections"
	AriesConnection           = Aries + "/" + AriesProtocolConnection
	AriesConnectionInvitation = AriesConnection + "/1.0/" + Invitation
	AriesConnectionRequest    = AriesConnection + "/1.0/" + HandlerRequest
	AriesConnectionResponse   = AriesConnection + "/1.0/" + HandlerResponse
	AriesConnectionAck        = AriesConnection + "/1.0/" + HandlerAck
)

// Issue Credential protocol constants
const (
	ProtocolIssueCredential          = "issue-credential"
	HandlerIssueCredentialOffer      = "offer-credential"
	HandlerIssueCredentialRequest    = "request-credential"
	HandlerIssueCredentialIssue      = "issue-credential"
	HandlerIssueCredentialACK        = "ack"
	ObjectTypeCredentialPreview      = "credential-preview"
	IssueCredential                  = Aries + "/" + ProtocolIssueCredential
	IssueCredentialOffer             = IssueCredential + "/1.0/" + HandlerIssueCredentialOffer
	IssueCredentialRequest           = IssueCredential + "/1.0/" + HandlerIssueCredentialRequest
	IssueCredentialIssue             = IssueCredential + "/1.0/" + HandlerIssueCredentialIssue
	IssueCredentialACK               = IssueCredential + "/1.0/" + HandlerIssueCredentialACK
	IssueCredentialCredentialPreview = IssueCredential + "/1.0/" + ObjectTypeCredentialPreview
)

// Present Proof protocol constants
const (
	ProtocolPresentProof            = "present-proof"
	HandlerPresentProofRequest      = "request-presentation"
	HandlerPresentProofPresentation = "presentation"
	HandlerPresentProofACK          = "ack"
	PresentProof                    = Aries + "/" + ProtocolPresentProof
	PresentProofRequest             = PresentProof + "/1.0/" + HandlerPresentProofRequest
	PresentProofPresentation        = PresentProof + "/1.0/" + HandlerPresentProofPresentation
	PresentProofACK                 = PresentProof + "/1.0/" + HandlerPresentProofACK
)

// Basic Message protocol constants
const (
	ProtocolBasicMessage = "basicmessage"
	HandlerMessage       = "message"
	BasicMessage         = Aries + "/" + ProtocolBasicMessage
	BasicMessageSend     = BasicMessage + "/1.0/" + HandlerMessage
)

var knownFamilies = map[string]bool{
	ProtocolNotification:    true,
	AriesProtocolConnection: true,
	ProtocolIssueCredential: true,
	ProtocolPresentProof:    true,
	ProtocolBasicMessage:    true,
}

// Split splits the message type to its protocol family, version and handler
// name, e.g. issue-credential, 1.0 and offer-credential.
func Split(typeStr string) (family, version, handler string) {
	rest, found := strings.CutPrefix(typeStr, Aries+"/")
	if !found {
		return "", "", ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", ""
	}
	return parts[0], parts[1], parts[2]
}

// Family returns the protocol family of the message type or empty string if
// the family is not known.
func Family(typeStr string) string {
	family, _, _ := Split(typeStr)
	if !knownFamilies[family] {
		glog.Warningf("no protocol family found for type %s", typeStr)
		return ""
	}
	return family
}
