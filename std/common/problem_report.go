package common

import (
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
)

// ProblemReport problem report definition
type ProblemReport struct {
	didcomm.Header
	Description    Code   `json:"description"`
	ExplainLongTxt string `json:"explain-ltxt,omitempty"`
}

// Code represents a problem report code
type Code struct {
	Code string `json:"code"`
}

func init() {
	didcomm.Creator.Add(pltype.NotificationProblemReport,
		func() didcomm.MessageHdr { return &ProblemReport{} })
}

func NewProblemReport(thid, code, explain string) *ProblemReport {
	return &ProblemReport{
		Header:         didcomm.NewHeader(pltype.NotificationProblemReport, thid),
		Description:    Code{Code: code},
		ExplainLongTxt: explain,
	}
}
