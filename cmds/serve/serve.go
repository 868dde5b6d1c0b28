// Package serve runs one agent behind the HTTP endpoint until it's stopped.
// The agent prints an invitation at start and logs the state changes of its
// protocol objects.
package serve

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/findy-network/findy-cxs/cmds"
	"github.com/findy-network/findy-cxs/cxs"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const listenerID = "serve"

type Cmd struct {
	cmds.WalletCmd
	WalletType string

	Label   string
	Service string
	Host    string
	Port    int
	Ledger  string
	Seed    string

	Timeout       time.Duration
	ClaimOfferTTL time.Duration
	ExpirySweep   time.Duration
	CacheSize     int
}

func (c Cmd) Validate() error {
	if err := c.WalletCmd.Validate(); err != nil {
		return err
	}
	if err := cmds.ValidateSeed(c.Seed); err != nil {
		return err
	}
	if c.Label == "" {
		return errors.New("label cannot be empty")
	}
	if c.Ledger == "" {
		return errors.New("ledger file cannot be empty")
	}
	return nil
}

// Exec serves until the process gets an interrupt or terminate signal.
func (c Cmd) Exec(w io.Writer) (r cmds.Result, err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return nil, c.Run(ctx, w)
}

func (c Cmd) Run(ctx context.Context, w io.Writer) (err error) {
	defer err2.Handle(&err, "serve %s", c.Label)

	settings := utils.NewSettings()
	settings.SetServiceName(c.Service)
	settings.SetTimeout(c.Timeout)
	settings.SetClaimOfferTTL(c.ClaimOfferTTL)
	settings.SetExpirySweep(c.ExpirySweep)
	settings.SetCacheSize(c.CacheSize)
	settings.SetWalletType(c.WalletType)
	settings.SetWalletPath(c.WalletPath)
	l := try.To1(ledger.LoadMem(c.Ledger))
	in := try.To1(cmds.StartInbound(c.Host, c.Port, settings.ServiceName()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := in.Close(ctx); err != nil {
			glog.Warningln("inbound close:", err)
		}
	}()

	var seed []byte
	if c.Seed != "" {
		seed = []byte(c.Seed)
	}
	agent := try.To1(cxs.Init(cxs.Config{
		Label:     c.Label,
		Endpoint:  in.Endpoint(c.Label),
		InboundID: c.Label,
		Wallet: wallet.Config{
			Name: c.WalletName,
			Key:  c.WalletKey,
		},
		Ledger:    l,
		Transport: trans.NewHTTP(settings.Timeout()),
		Inbound:   in,
		Settings:  settings,
		Seed:      seed,
	}))
	defer agent.Shutdown()

	notes := agent.Listen(listenerID, bus.AllKinds)
	defer agent.Unlisten(listenerID, bus.AllKinds)

	var cmdID atomic.Uint32
	h := try.To1(cmds.Call(cmdID.Add(1), func(cmd uint32, cb async.Done) error {
		return agent.ConnectionCreate(cmd, c.Label+"-invitation", cb)
	}).Handle())
	details := try.To1(cmds.Call(cmdID.Add(1), func(cmd uint32, cb async.Done) error {
		return agent.ConnectionConnect(cmd, h, "", cb)
	}).Str1())

	cmds.Fprintln(w, "DID", agent.RootDID())
	cmds.Fprintln(w, "endpoint", in.Endpoint(c.Label))
	cmds.Fprintln(w, "invitation", details)

	for {
		select {
		case n, ok := <-notes:
			if !ok {
				return nil
			}
			glog.V(1).Infof("%s %d (%s): %s", n.Kind, n.Handle, n.SourceID, n.StateName)
			cmds.Fprintf(w, "%s %d %s\n", n.Kind, n.Handle, n.StateName)
		case <-ctx.Done():
			try.To(l.Save(c.Ledger))
			glog.V(1).Infoln("ledger saved to", c.Ledger)
			return nil
		}
	}
}
