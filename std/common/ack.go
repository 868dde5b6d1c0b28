/*
Package common includes the messages and the DID document model which are
shared by the protocols.
*/
package common

import (
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
)

const (
	StatusOK      = "OK"
	StatusPending = "PENDING"
	StatusFail    = "FAIL"
)

// Ack acknowledgement struct
type Ack struct {
	didcomm.Header
	Status string `json:"status,omitempty"`
}

func init() {
	for _, t := range []string{
		pltype.NotificationAck,
		pltype.AriesConnectionAck,
		pltype.IssueCredentialACK,
		pltype.PresentProofACK,
	} {
		didcomm.Creator.Add(t, func() didcomm.MessageHdr { return &Ack{} })
	}
}

// NewAck creates an ack to the thread.
func NewAck(msgType, thid string) *Ack {
	return &Ack{
		Header: didcomm.NewHeader(msgType, thid),
		Status: StatusOK,
	}
}
