package connection

import (
	"encoding/json"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/mitchellh/mapstructure"
)

const (
	TypeQR  = "QR"
	TypeSMS = "SMS"
)

// Options of the connect. SMS needs the phone number, the invitation is
// delivered by the caller.
type Options struct {
	ConnectionType string `mapstructure:"connection_type" json:"connection_type"`
	Phone          string `mapstructure:"phone" json:"phone,omitempty"`
}

// ParseOptions parses the options JSON. Empty string gives QR options. N is
// the index of the parameter for the errors.
func ParseOptions(optionsJSON string, n int) (opts Options, err error) {
	opts = Options{ConnectionType: TypeQR}
	if optionsJSON == "" {
		return opts, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(optionsJSON), &m); err != nil {
		return opts, cxserr.Wrap(cxserr.InvalidJSON, err, "connect options")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(m); err != nil {
		return opts, cxserr.Param(n, "connect options: %v", err)
	}
	switch opts.ConnectionType {
	case TypeQR:
	case TypeSMS:
		if opts.Phone == "" {
			return opts, cxserr.Param(n, "connect options: phone missing")
		}
	default:
		return opts, cxserr.Param(n, "connect options: type %s", opts.ConnectionType)
	}
	return opts, nil
}
