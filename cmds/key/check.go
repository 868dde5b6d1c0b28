package key

import (
	"io"

	"github.com/findy-network/findy-cxs/cmds"
)

// CheckCmd validates a wallet key given by the user.
type CheckCmd struct {
	Key string
}

func (c *CheckCmd) Validate() error {
	return cmds.ValidateKey(c.Key)
}

func (c *CheckCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	if err = c.Validate(); err != nil {
		return nil, err
	}
	cmds.Fprintln(w, "key OK")
	return r, nil
}
