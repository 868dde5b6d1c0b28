/*
Package cxs is the asynchronous API of the identity exchange core. Protocol
objects (connections, claims, proofs, schemas and claim definitions) are
referred with opaque handles. Every command takes a caller supplied command
handle and a callback: parameters and states are validated synchronously and
returned as an error, and the outcome of the work is delivered to the callback
exactly once and never from the calling goroutine.

All the state lives in a Context, which is created with Init and torn down
with Shutdown. There are no package level tables.
*/
package cxs

import (
	"context"
	"sync"
	"time"

	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/handle"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/findy-network/findy-cxs/protocol/connection"
	"github.com/findy-network/findy-cxs/protocol/issuecredential"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/holder"
	"github.com/findy-network/findy-cxs/protocol/issuecredential/issuer"
	"github.com/findy-network/findy-cxs/protocol/presentproof"
	"github.com/findy-network/findy-cxs/protocol/presentproof/prover"
	"github.com/findy-network/findy-cxs/protocol/presentproof/verifier"
	"github.com/findy-network/findy-cxs/protocol/schema"
	"github.com/findy-network/findy-wrapper-go/dto"
	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Registrar delivers the inbound messages of the endpoint to the handler.
// Both trans.Server and trans.Loopback are registrars.
type Registrar interface {
	Register(id string, h trans.Handler)
	Unregister(id string)
}

// Config of the Context. Ledger and Transport are obligatory, the rest have
// defaults.
type Config struct {
	Label    string
	Endpoint string

	// WalletType is the registered backend, default from the Settings.
	WalletType string
	Wallet     wallet.Config
	Wallets    *wallet.Registry

	Ledger    ledger.Ledger
	Transport trans.Transport
	Creds     cloud.Creds
	Settings  *utils.Hub

	// Inbound registers the agent to receive messages with InboundID, which
	// defaults to the Endpoint.
	Inbound   Registrar
	InboundID string

	// Seed of the root DID when it's created. Nil gives a random key.
	Seed []byte
}

type Context struct {
	agent *cloud.Agent
	bus   *bus.Station

	inbound   Registrar
	inboundID string

	conns        *handle.Registry[*connection.Connection]
	claims       *handle.Registry[*issuer.Claim]
	holderClaims *handle.Registry[*holder.Claim]
	proofs       *handle.Registry[*verifier.Proof]
	disclosed    *handle.Registry[*prover.DisclosedProof]
	schemas      *handle.Registry[*schema.Schema]
	claimDefs    *handle.Registry[*schema.ClaimDef]

	cron   *gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Init opens the wallet, loads or creates the root DID and starts the offer
// expiry job. The returned Context must be torn down with Shutdown.
func Init(cfg Config) (c *Context, err error) {
	defer err2.Handle(&err, "cxs init")

	if cfg.Ledger == nil {
		return nil, cxserr.Param(1, "ledger missing")
	}
	if cfg.Transport == nil {
		return nil, cxserr.Param(1, "transport missing")
	}
	if cfg.Settings == nil {
		cfg.Settings = utils.NewSettings()
	}
	if cfg.Wallets == nil {
		cfg.Wallets = wallet.NewRegistry()
	}
	if cfg.WalletType == "" {
		cfg.WalletType = cfg.Settings.WalletType()
	}
	if cfg.Wallet.Path == "" {
		cfg.Wallet.Path = cfg.Settings.WalletPath()
	}
	if cfg.InboundID == "" {
		cfg.InboundID = cfg.Endpoint
	}

	w := try.To1(cfg.Wallets.Open(cfg.WalletType, cfg.Wallet))
	st := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	c = &Context{
		agent: cloud.New(cloud.Config{
			Label:    cfg.Label,
			Endpoint: cfg.Endpoint,
			Wallet:   w,
			Ledger:   cfg.Ledger,
			Tr:       cfg.Transport,
			Creds:    cfg.Creds,
			Bus:      st,
			Settings: cfg.Settings,
		}),
		bus:          st,
		inbound:      cfg.Inbound,
		inboundID:    cfg.InboundID,
		conns:        handle.New[*connection.Connection]("connection"),
		claims:       handle.New[*issuer.Claim]("claim"),
		holderClaims: handle.New[*holder.Claim]("holder claim"),
		proofs:       handle.New[*verifier.Proof]("proof"),
		disclosed:    handle.New[*prover.DisclosedProof]("disclosed proof"),
		schemas:      handle.New[*schema.Schema]("schema"),
		claimDefs:    handle.New[*schema.ClaimDef]("claimdef"),
		cron:         gocron.NewScheduler(time.Now().Location()),
		ctx:          ctx,
		cancel:       cancel,
	}
	if err := c.agent.InitRoot(ctx, cfg.Seed); err != nil {
		cancel()
		_ = w.Close()
		return nil, err
	}
	c.agent.SetRouter(c.route)
	if c.inbound != nil {
		c.inbound.Register(c.inboundID, c.agent.Receive)
	}

	sweep := cfg.Settings.ExpirySweep()
	if _, err := c.cron.Every(sweep).Do(func() { c.expireOffers(time.Now()) }); err != nil {
		glog.Errorf("offer expiry job: %v", err)
	} else {
		c.cron.StartAsync()
	}
	glog.V(1).Infof("cxs context %s initialized, root DID %s",
		cfg.Label, c.agent.RootDID().Did())
	return c, nil
}

// Shutdown stops the inbound delivery and the jobs, releases all the handles
// and closes the wallet. It's safe to call more than once.
func (c *Context) Shutdown() {
	c.once.Do(func() {
		if c.inbound != nil {
			c.inbound.Unregister(c.inboundID)
		}
		c.cron.Stop()
		c.cancel()

		for _, h := range c.conns.Handles() {
			_ = c.ConnectionRelease(h)
		}
		c.claims.Reset()
		c.holderClaims.Reset()
		c.proofs.Reset()
		c.disclosed.Reset()
		c.schemas.Reset()
		c.claimDefs.Reset()
		c.bus.Close()

		if err := c.agent.Wallet.Close(); err != nil {
			glog.Warningf("close wallet: %v", err)
		}
		glog.V(1).Infof("cxs context %s shut down", c.agent.Label)
	})
}

// RootDID returns the DID the context writes to the ledger with.
func (c *Context) RootDID() string {
	return c.agent.RootDID().Did()
}

// Listen returns a channel of the state changes of the kind. Only one
// listener per client ID and kind is allowed.
func (c *Context) Listen(clientID string, kind bus.Kind) bus.NotifyChan {
	return c.bus.AddListener(bus.ListenerKey{Kind: kind, ClientID: clientID})
}

func (c *Context) Unlisten(clientID string, kind bus.Kind) {
	c.bus.RmListener(bus.ListenerKey{Kind: kind, ClientID: clientID})
}

type state interface {
	~uint32
	String() string
}

// notifier returns the state change function of the object behind the handle.
func notifier[S state](c *Context, kind bus.Kind, h handle.Handle, sourceID string) func(S) {
	return func(s S) {
		c.agent.Notify(bus.Notify{
			ListenerKey: bus.ListenerKey{Kind: kind},
			Handle:      h,
			SourceID:    sourceID,
			State:       uint32(s),
			StateName:   s.String(),
		})
	}
}

type threaded interface {
	ThreadID() string
}

// byThread returns the object of the thread or zero value.
func byThread[T threaded](r *handle.Registry[T], thid string) (obj T) {
	if thid == "" {
		return obj
	}
	for _, h := range r.Handles() {
		o, err := r.Resolve(h)
		if err == nil && o.ThreadID() == thid {
			return o
		}
	}
	return obj
}

type bound interface {
	threaded
	ConnHandle() uint32
}

// onConn returns the object of the thread which is bound to the connection.
// The thread of another connection gives zero value.
func onConn[T bound](r *handle.Registry[T], thid string, connHandle handle.Handle) (obj T) {
	if thid == "" {
		return obj
	}
	for _, h := range r.Handles() {
		o, err := r.Resolve(h)
		if err != nil || o.ThreadID() != thid {
			continue
		}
		if o.ConnHandle() != connHandle {
			glog.Warningf("%s %d: thread %s is not on connection %d",
				r.Name(), h, thid, connHandle)
			continue
		}
		return o
	}
	return obj
}

func (c *Context) connByVerKey(verKey string) (handle.Handle, *connection.Connection) {
	for _, h := range c.conns.Handles() {
		conn, err := c.conns.Resolve(h)
		if err == nil && conn.MyVerKey() == verKey {
			return h, conn
		}
	}
	return 0, nil
}

// route is the inbound router of the agent. Connection protocol messages are
// consumed by the connection. Claim and proof messages are given to their
// objects by the thread on the connection, and the rest are kept in the connection's inbox.
func (c *Context) route(me *ssi.DID, senderVK string, payload []byte) (err error) {
	defer err2.Handle(&err, "route to %s", me.VerKey())

	connHandle, conn := c.connByVerKey(me.VerKey())
	if conn == nil {
		return cxserr.New(cxserr.InvalidHandle, "no connection for key")
	}
	msg := try.To1(conn.Receive(c.ctx, c.agent, senderVK, payload))
	if msg == nil {
		return nil
	}

	claims := issuecredential.Processor{
		Issuer: func(thid string) *issuer.Claim { return onConn(c.claims, thid, connHandle) },
		Holder: func(thid string) *holder.Claim { return onConn(c.holderClaims, thid, connHandle) },
	}
	handled := try.To1(claims.Handle(c.ctx, c.agent, conn, msg))
	if !handled {
		proofs := presentproof.Processor{
			Verifier: func(thid string) *verifier.Proof { return onConn(c.proofs, thid, connHandle) },
			Prover:   func(thid string) *prover.DisclosedProof { return onConn(c.disclosed, thid, connHandle) },
		}
		handled = try.To1(proofs.Handle(c.ctx, c.agent, msg))
	}
	if !handled {
		glog.V(3).Infof("%s kept for the application", msg.Hdr().Type)
		conn.Keep(msg)
	}
	return nil
}

func (c *Context) expireOffers(now time.Time) (n int) {
	ttl := c.agent.Settings.ClaimOfferTTL()
	for _, h := range c.claims.Handles() {
		cl, err := c.claims.Resolve(h)
		if err != nil {
			continue
		}
		if cl.Expire(ttl, now) {
			glog.V(1).Infof("claim %d (%s) offer expired", h, cl.SourceID())
			n++
		}
	}
	return n
}

func checkCb(cb async.Done, n int) error {
	if cb == nil {
		return cxserr.Param(n, "callback missing")
	}
	return nil
}

// run executes the work of the command. The handle is checked again after
// the work, an object released meanwhile gives InvalidHandle.
func run[T any](cmd uint32, r *handle.Registry[T], h handle.Handle, work async.Work, cb async.Done) {
	async.Run(cmd, func() (dto.Result, error) {
		res, err := work()
		if err != nil {
			return res, err
		}
		if !r.Valid(h) {
			return res, cxserr.New(cxserr.InvalidHandle, "%s %d released during command", r.Name(), h)
		}
		return res, nil
	}, cb)
}

type serializer interface {
	Serialize() string
}

func serialize[T serializer](cmd uint32, r *handle.Registry[T], h handle.Handle, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	obj, err := r.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, r, h, func() (dto.Result, error) {
		return async.Str(obj.Serialize()), nil
	}, cb)
	return nil
}

// deserialize builds the object and allocates a handle for it. Bind sets the
// notify function of the new object.
func deserialize[T any](cmd uint32, r *handle.Registry[T], s string,
	build func() (T, error), bind func(handle.Handle, T), cb async.Done,
) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	if s == "" {
		return cxserr.Param(2, "%s JSON empty", r.Name())
	}
	async.Run(cmd, func() (dto.Result, error) {
		obj, err := build()
		if err != nil {
			return dto.Result{}, err
		}
		h, err := r.Allocate(obj)
		if err != nil {
			return dto.Result{}, err
		}
		bind(h, obj)
		return async.Handle(h), nil
	}, cb)
	return nil
}

func release[T any](r *handle.Registry[T], h handle.Handle) error {
	_, err := r.Release(h)
	return err
}

func stateOf[T any, S state](cmd uint32, r *handle.Registry[T], h handle.Handle, get func(T) S, cb async.Done) error {
	if err := checkCb(cb, 3); err != nil {
		return err
	}
	obj, err := r.Resolve(h)
	if err != nil {
		return err
	}
	run(cmd, r, h, func() (dto.Result, error) {
		return async.Handle(uint32(get(obj))), nil
	}, cb)
	return nil
}
