package issuecredential

import (
	"sort"

	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/findy-network/findy-cxs/std/decorator"
)

// NewOffer creates the offer message which starts a new thread. The offer
// data is the JSON of the anoncreds offer.
func NewOffer(comment string, values map[string]string, offer []byte) *Offer {
	return &Offer{
		Header:            didcomm.NewHeader(pltype.IssueCredentialOffer, ""),
		Comment:           comment,
		CredentialPreview: NewPreview(values),
		OffersAttach:      []decorator.Attachment{decorator.NewAttachment(OfferAttachID, offer)},
	}
}

func NewRequest(thid string, req []byte) *Request {
	return &Request{
		Header:         didcomm.NewHeader(pltype.IssueCredentialRequest, thid),
		RequestsAttach: []decorator.Attachment{decorator.NewAttachment(RequestAttachID, req)},
	}
}

func NewIssue(thid string, cred []byte) *Issue {
	return &Issue{
		Header:            didcomm.NewHeader(pltype.IssueCredentialIssue, thid),
		CredentialsAttach: []decorator.Attachment{decorator.NewAttachment(IssueAttachID, cred)},
	}
}

// NewPreview builds the preview sorted by the attribute names.
func NewPreview(values map[string]string) PreviewCredential {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	attrs := make([]Attribute, len(names))
	for i, name := range names {
		attrs[i] = Attribute{Name: name, Value: values[name]}
	}
	return PreviewCredential{
		Type:       pltype.IssueCredentialCredentialPreview,
		Attributes: attrs,
	}
}

// MARK: Helpers

func OfferAttach(p *Offer) (data []byte, err error) {
	return decorator.First(p.OffersAttach)
}

func RequestAttach(p *Request) (data []byte, err error) {
	return decorator.First(p.RequestsAttach)
}

func IssueAttach(p *Issue) (data []byte, err error) {
	return decorator.First(p.CredentialsAttach)
}
