package key

import (
	"io"

	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/findy-network/findy-cxs/cmds"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

type CreateCmd struct {
	Seed string
}

func (c *CreateCmd) Validate() error {
	if err := cmds.ValidateSeed(c.Seed); err != nil {
		return err
	}
	return nil
}

// Exec prints a new wallet key. The key is derived from the seed when it's
// given, otherwise it's random.
func (c *CreateCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err, "create key")

	walletKey := base58.Encode([]byte(c.Seed))
	if c.Seed == "" {
		walletKey = try.To1(wallet.NewKey())
	}
	cmds.Fprintln(w, walletKey)

	return r, nil
}
