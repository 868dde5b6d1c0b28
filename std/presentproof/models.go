// Package presentproof includes the messages of the present proof protocol.
// The proof request and the proof travel as attachments.
package presentproof

import (
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/std/decorator"
)

const (
	RequestAttachID      = "cxs-request-presentation-0"
	PresentationAttachID = "cxs-presentation-0"
)

// MARK: Request

type Request struct {
	didcomm.Header
	Comment              string                 `json:"comment,omitempty"`
	RequestPresentations []decorator.Attachment `json:"request_presentations~attach,omitempty"`
}

// MARK: Presentation

type Presentation struct {
	didcomm.Header
	Comment              string                 `json:"comment,omitempty"`
	PresentationAttaches []decorator.Attachment `json:"presentations~attach,omitempty"`
}

func init() {
	didcomm.Creator.Add(pltype.PresentProofRequest,
		func() didcomm.MessageHdr { return &Request{} })
	didcomm.Creator.Add(pltype.PresentProofPresentation,
		func() didcomm.MessageHdr { return &Presentation{} })
}

func NewRequest(comment string, req []byte) *Request {
	return &Request{
		Header:  didcomm.NewHeader(pltype.PresentProofRequest, ""),
		Comment: comment,
		RequestPresentations: []decorator.Attachment{
			decorator.NewAttachment(RequestAttachID, req)},
	}
}

func NewPresentation(thid string, proof []byte) *Presentation {
	return &Presentation{
		Header: didcomm.NewHeader(pltype.PresentProofPresentation, thid),
		PresentationAttaches: []decorator.Attachment{
			decorator.NewAttachment(PresentationAttachID, proof)},
	}
}

func RequestAttach(r *Request) ([]byte, error) {
	return decorator.First(r.RequestPresentations)
}

func PresentationAttach(p *Presentation) ([]byte, error) {
	return decorator.First(p.PresentationAttaches)
}
