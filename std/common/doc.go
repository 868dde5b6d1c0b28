package common

import (
	"strings"

	"github.com/findy-network/findy-cxs/agent/cxserr"
)

const (
	DIDPrefix         = "did:sov:"
	contextV1         = "https://w3id.org/did/v1"
	keyType           = "Ed25519VerificationKey2018"
	serviceType       = "IndyAgent"
	serviceIDFragment = "#indy"
	keyIDFragment     = "#1"
)

// Doc is the DID document of the pairwise connection. It's the minimal sov
// style document: one key and one service.
type Doc struct {
	Context   string      `json:"@context"`
	ID        string      `json:"id"`
	PublicKey []PublicKey `json:"publicKey"`
	Service   []Service   `json:"service"`
}

type PublicKey struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

type Service struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	RecipientKeys   []string `json:"recipientKeys"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
}

func NewDoc(did, verKey, endpoint string) *Doc {
	id := DIDPrefix + did
	return &Doc{
		Context: contextV1,
		ID:      id,
		PublicKey: []PublicKey{{
			ID:              id + keyIDFragment,
			Type:            keyType,
			Controller:      id,
			PublicKeyBase58: verKey,
		}},
		Service: []Service{{
			ID:              id + serviceIDFragment,
			Type:            serviceType,
			RecipientKeys:   []string{verKey},
			ServiceEndpoint: endpoint,
		}},
	}
}

// DID returns the DID without the method prefix.
func (d *Doc) DID() string {
	return strings.TrimPrefix(d.ID, DIDPrefix)
}

// VerKey returns the first recipient key of the first service.
func (d *Doc) VerKey() string {
	if len(d.Service) > 0 && len(d.Service[0].RecipientKeys) > 0 {
		return d.Service[0].RecipientKeys[0]
	}
	if len(d.PublicKey) > 0 {
		return d.PublicKey[0].PublicKeyBase58
	}
	return ""
}

func (d *Doc) Endpoint() string {
	if len(d.Service) == 0 {
		return ""
	}
	return d.Service[0].ServiceEndpoint
}

func (d *Doc) Validate() error {
	if d.DID() == "" {
		return cxserr.New(cxserr.InvalidParam, "DID document without id")
	}
	if d.VerKey() == "" {
		return cxserr.New(cxserr.InvalidParam, "DID document without keys")
	}
	if d.Endpoint() == "" {
		return cxserr.New(cxserr.InvalidParam, "DID document without endpoint")
	}
	return nil
}
