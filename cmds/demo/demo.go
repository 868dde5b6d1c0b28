// Package demo runs the whole credential exchange between two agents of the
// same process: connection, schema and claim definition, claim issuing and
// proof presentation.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/findy-network/findy-cxs/cmds"
	"github.com/findy-network/findy-cxs/cxs"
	"github.com/findy-network/findy-cxs/protocol/connection"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/holder"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/issuer"
	"github.com/findy-network/findy-cxs/protocol/presentproof/prover"
	"github.com/findy-network/findy-cxs/protocol/presentproof/verifier"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const pollInterval = 50 * time.Millisecond

var ErrTimeout = errors.New("timeout")

type Cmd struct {
	// HTTP runs the agents behind the HTTP endpoint instead of the in-process
	// transport.
	HTTP bool
	Host string
	Port int

	// Ledger is the snapshot file of the ledger. Empty means that the ledger
	// lives only during the run.
	Ledger  string
	Timeout time.Duration

	Name  string
	Email string
}

func (c Cmd) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Name == "" {
		return errors.New("name cannot be empty")
	}
	return nil
}

type run struct {
	Cmd
	w        io.Writer
	cmd      atomic.Uint32
	deadline time.Time

	issuer *cxs.Context
	holder *cxs.Context
}

func (c Cmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err, "demo")

	l := ledger.NewMem()
	if c.Ledger != "" {
		l = try.To1(ledger.LoadMem(c.Ledger))
	}
	settings := utils.NewSettings()
	settings.SetTimeout(c.Timeout)

	var (
		tr       trans.Transport
		inbound  cxs.Registrar
		endpoint = func(id string) string { return id }
	)
	if c.HTTP {
		in := try.To1(cmds.StartInbound(c.Host, c.Port, settings.ServiceName()))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := in.Close(ctx); err != nil {
				glog.Warningln("inbound close:", err)
			}
		}()
		tr, inbound, endpoint = trans.NewHTTP(c.Timeout), in, in.Endpoint
		cmds.Fprintln(w, "inbound at", in.HostAddr)
	} else {
		loop := trans.NewLoopback()
		tr, inbound = loop, loop
	}

	newAgent := func(label string) *cxs.Context {
		return try.To1(cxs.Init(cxs.Config{
			Label:      label,
			Endpoint:   endpoint(label),
			InboundID:  label,
			WalletType: wallet.TypeMemory,
			Wallet:     wallet.Config{Name: label, Key: try.To1(wallet.NewKey())},
			Ledger:     l,
			Transport:  tr,
			Inbound:    inbound,
			Settings:   settings,
		}))
	}
	d := &run{Cmd: c, w: w, deadline: time.Now().Add(c.Timeout)}
	d.issuer = newAgent("issuer")
	defer d.issuer.Shutdown()
	d.holder = newAgent("holder")
	defer d.holder.Shutdown()

	ic, hc := d.connect()
	cd := d.claimDef()
	d.issue(cd, ic, hc)
	d.present(ic, hc)

	if c.Ledger != "" {
		try.To(l.Save(c.Ledger))
		cmds.Fprintln(w, "ledger saved to", c.Ledger)
	}
	return nil, nil
}

func (d *run) call(f func(cmd uint32, cb async.Done) error) *async.Future {
	return cmds.Call(d.cmd.Add(1), f)
}

func (d *run) handle(f func(cmd uint32, cb async.Done) error) uint32 {
	return try.To1(d.call(f).Handle())
}

func (d *run) str(f func(cmd uint32, cb async.Done) error) string {
	return try.To1(d.call(f).Str1())
}

func (d *run) exec(f func(cmd uint32, cb async.Done) error) {
	try.To1(d.call(f).Wait())
}

// waitFor polls the condition until it holds or the run is out of time. It
// throws ErrTimeout.
func (d *run) waitFor(what string, ok func() bool) {
	for !ok() {
		if time.Now().After(d.deadline) {
			try.To(fmt.Errorf("%w: %s", ErrTimeout, what))
		}
		time.Sleep(pollInterval)
	}
	glog.V(3).Infoln("demo:", what)
}

func (d *run) connect() (ic, hc uint32) {
	ic = d.handle(func(cmd uint32, cb async.Done) error {
		return d.issuer.ConnectionCreate(cmd, "to-holder", cb)
	})
	details := d.str(func(cmd uint32, cb async.Done) error {
		return d.issuer.ConnectionConnect(cmd, ic, "", cb)
	})
	hc = d.handle(func(cmd uint32, cb async.Done) error {
		return d.holder.ConnectionCreateWithInvite(cmd, "to-issuer", details, cb)
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.holder.ConnectionConnect(cmd, hc, `{"connection_type":"QR"}`, cb)
	})
	connected := func(c *cxs.Context, h uint32) func() bool {
		return func() bool {
			return connection.State(d.handle(func(cmd uint32, cb async.Done) error {
				return c.ConnectionGetState(cmd, h, cb)
			})) == connection.Connected
		}
	}
	d.waitFor("issuer connected", connected(d.issuer, ic))
	d.waitFor("holder connected", connected(d.holder, hc))
	cmds.Fprintln(d.w, "connected, issuer", d.issuer.RootDID(), "holder", d.holder.RootDID())
	return ic, hc
}

func (d *run) claimDef() uint32 {
	sh := d.handle(func(cmd uint32, cb async.Done) error {
		return d.issuer.SchemaCreate(cmd, "person", "Person", "1.0", `["name","email"]`, cb)
	})
	seqNo := d.handle(func(cmd uint32, cb async.Done) error {
		return d.issuer.SchemaCommit(cmd, sh, cb)
	})
	cd := d.handle(func(cmd uint32, cb async.Done) error {
		return d.issuer.ClaimDefCreate(cmd, "person-cd", int(seqNo), "", cb)
	})
	cmds.Fprintln(d.w, "schema committed, seqNo", seqNo)
	return cd
}

// pending waits that the get returns non-empty JSON array and returns its
// first item.
func (d *run) pending(what string, get func(cmd uint32, cb async.Done) error) (first string) {
	d.waitFor(what, func() bool {
		var items []json.RawMessage
		try.To(json.Unmarshal([]byte(d.str(get)), &items))
		if len(items) == 0 {
			return false
		}
		first = string(items[0])
		return true
	})
	return first
}

func (d *run) issue(cd, ic, hc uint32) {
	data := try.To1(json.Marshal(map[string]string{"name": d.Name, "email": d.Email}))
	h := d.handle(func(cmd uint32, cb async.Done) error {
		return d.issuer.IssuerCreateClaim(cmd, "person-claim", cd, string(data), cb)
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.issuer.IssuerSendClaimOffer(cmd, h, ic, cb)
	})

	offer := d.pending("claim offer received", func(cmd uint32, cb async.Done) error {
		return d.holder.ClaimGetOffers(cmd, hc, cb)
	})
	hh := d.handle(func(cmd uint32, cb async.Done) error {
		return d.holder.HolderClaimCreateWithOffer(cmd, "from-issuer", offer, cb)
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.holder.HolderSendRequest(cmd, hh, hc, cb)
	})

	d.waitFor("claim request received", func() bool {
		return issuer.State(d.handle(func(cmd uint32, cb async.Done) error {
			return d.issuer.IssuerClaimGetState(cmd, h, cb)
		})) == issuer.RequestReceived
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.issuer.IssuerAcceptClaim(cmd, h, cb)
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.issuer.IssuerSendClaim(cmd, h, ic, cb)
	})

	d.waitFor("claim received", func() bool {
		return holder.State(d.handle(func(cmd uint32, cb async.Done) error {
			return d.holder.HolderClaimGetState(cmd, hh, cb)
		})) == holder.Received
	})
	cmds.Fprintln(d.w, "claim issued:", d.str(func(cmd uint32, cb async.Done) error {
		return d.holder.HolderGetClaim(cmd, hh, cb)
	}))
}

func (d *run) present(ic, hc uint32) {
	p := d.handle(func(cmd uint32, cb async.Done) error {
		return d.issuer.ProofCreate(cmd, "person-proof",
			`[{"name":"name"},{"name":"email"}]`, "", "who are you", cb)
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.issuer.ProofSetConnection(cmd, p, ic, cb)
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.issuer.ProofSendRequest(cmd, p, cb)
	})

	req := d.pending("proof request received", func(cmd uint32, cb async.Done) error {
		return d.holder.ProofGetRequests(cmd, hc, cb)
	})
	dp := d.handle(func(cmd uint32, cb async.Done) error {
		return d.holder.DisclosedProofCreateWithRequest(cmd, "to-issuer", req, cb)
	})
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.holder.DisclosedProofSend(cmd, dp, hc, cb)
	})

	d.waitFor("proof received", func() bool {
		return verifier.State(d.handle(func(cmd uint32, cb async.Done) error {
			return d.issuer.ProofGetState(cmd, p, cb)
		})) == verifier.OfferReceived
	})
	cmds.Fprintln(d.w, "revealed:", d.str(func(cmd uint32, cb async.Done) error {
		return d.issuer.ProofGetRevealedAttrs(cmd, p, cb)
	}))
	d.exec(func(cmd uint32, cb async.Done) error {
		return d.issuer.ProofAccepted(cmd, p, cb)
	})
	d.waitFor("proof acked", func() bool {
		return prover.State(d.handle(func(cmd uint32, cb async.Done) error {
			return d.holder.DisclosedProofGetState(cmd, dp, cb)
		})) == prover.Acked
	})
	cmds.Fprintln(d.w, "proof accepted")
}
