package invitation

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
)

// urlParam is the query parameter which carries the invitation in the URL
const urlParam = "c_i"

func init() {
	didcomm.Creator.Add(pltype.AriesConnectionInvitation,
		func() didcomm.MessageHdr { return &Invitation{} })
}

func New(label, endpoint, verKey string) *Invitation {
	return &Invitation{
		Header:          didcomm.NewHeader(pltype.AriesConnectionInvitation, ""),
		ServiceEndpoint: endpoint,
		RecipientKeys:   []string{verKey},
		Label:           label,
	}
}

// Validate checks that the invitation has an endpoint and at least one
// recipient key. N is the index of the parameter for the error.
func (inv *Invitation) Validate(n int) error {
	if inv.ServiceEndpoint == "" {
		return cxserr.Param(n, "invitation: service endpoint missing")
	}
	if len(inv.RecipientKeys) == 0 || inv.RecipientKeys[0] == "" {
		return cxserr.Param(n, "invitation: recipient keys missing")
	}
	if inv.ID == "" {
		return cxserr.Param(n, "invitation: @id missing")
	}
	return nil
}

// Translate parses the invitation JSON and validates it.
func Translate(s string, n int) (inv *Invitation, err error) {
	inv = new(Invitation)
	if err := json.Unmarshal([]byte(s), inv); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "invitation")
	}
	if inv.Type != "" && inv.Type != pltype.AriesConnectionInvitation {
		return nil, cxserr.Param(n, "invitation: wrong type %s", inv.Type)
	}
	if err := inv.Validate(n); err != nil {
		return nil, err
	}
	return inv, nil
}

func Build(inv *Invitation) string {
	return dto.ToJSON(inv)
}

// URL builds the abbreviated form of the invitation, the invitation is
// base64url encoded to the c_i query parameter of the endpoint URL.
func URL(inv *Invitation) string {
	data := base64.RawURLEncoding.EncodeToString(dto.ToJSONBytes(inv))
	return inv.ServiceEndpoint + "?" + urlParam + "=" + data
}

// FromURL parses the invitation from the URL built by URL.
func FromURL(s string, n int) (inv *Invitation, err error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, cxserr.Param(n, "invitation URL: %v", err)
	}
	raw := u.Query().Get(urlParam)
	if raw == "" {
		return nil, cxserr.Param(n, "invitation URL without %s", urlParam)
	}
	raw = strings.TrimRight(raw, "=")
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, cxserr.Param(n, "invitation URL: %v", err)
	}
	return Translate(string(data), n)
}
