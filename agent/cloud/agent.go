/*
Package cloud implements the Agent, which is the context of the protocol
objects. It owns the wallet, the root DID and the pairwise keys, and it wires
the ledger, the transport and the claim crypto together. Inbound messages are
unpacked here and routed to the Router, which finds the right connection.
*/
package cloud

import (
	"context"
	"errors"
	"sync"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/bus"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/sec"
	"github.com/findy-network/findy-cxs/agent/ssi"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	rootKey    = "root"
	rootSubKey = "did"
)

// Router receives the unpacked inbound message. Me is our DID the message
// was encrypted to and senderVK is empty for anon-crypted messages.
type Router func(me *ssi.DID, senderVK string, payload []byte) error

// Creds is the claim crypto collaborator.
type Creds interface {
	anoncreds.Issuer
	anoncreds.Prover
	anoncreds.Verifier
}

type Agent struct {
	Label    string
	Endpoint string

	Wallet   wallet.Wallet
	Ledger   *ledger.Client
	Tr       trans.Transport
	Creds    Creds
	Bus      *bus.Station
	Settings *utils.Hub

	rootDID *ssi.DID
	cache   ssi.Cache

	keyLk  sync.RWMutex
	keys   map[string]*ssi.DID // our DIDs by their verkey
	router Router
}

// Config is what the Agent is built from. Creds and Settings get defaults
// when nil.
type Config struct {
	Label    string
	Endpoint string
	Wallet   wallet.Wallet
	Ledger   ledger.Ledger
	Tr       trans.Transport
	Creds    Creds
	Bus      *bus.Station
	Settings *utils.Hub
}

func New(cfg Config) *Agent {
	if cfg.Settings == nil {
		cfg.Settings = utils.NewSettings()
	}
	if cfg.Creds == nil {
		cfg.Creds = anoncreds.Suite{}
	}
	return &Agent{
		Label:    cfg.Label,
		Endpoint: cfg.Endpoint,
		Wallet:   cfg.Wallet,
		Ledger: ledger.NewClient(cfg.Ledger, cfg.Settings.CacheSize(),
			cfg.Settings.Timeout()),
		Tr:       cfg.Tr,
		Creds:    cfg.Creds,
		Bus:      cfg.Bus,
		Settings: cfg.Settings,
	}
}

// InitRoot loads the root DID from the wallet or creates it with the seed.
// The root DID is written to the ledger if it's not there yet.
func (a *Agent) InitRoot(ctx context.Context, seed []byte) (err error) {
	defer err2.Handle(&err, "init root DID")

	var did *ssi.DID
	rootDid, err := a.Wallet.Get(rootKey, rootSubKey)
	switch {
	case err == nil:
		did = try.To1(ssi.Load(a.Wallet, string(rootDid)))
	case errors.Is(err, wallet.ErrNotFound):
		did = try.To1(ssi.NewDID(seed))
		try.To(did.Store(a.Wallet))
		try.To(a.Wallet.Set(rootKey, rootSubKey, []byte(did.Did())))
	default:
		return err
	}
	a.rootDID = did
	a.AddDID(did)

	_, err = a.Ledger.GetNym(ctx, did.Did(), ledger.CacheOptions{NoCache: true})
	if errors.Is(err, ledger.ErrNotFound) {
		glog.V(1).Infoln("writing root DID to ledger:", did.Did())
		_, err = a.Ledger.WriteNym(ctx, did, did.Did(), did.VerKey())
	}
	return err
}

func (a *Agent) RootDID() *ssi.DID {
	return a.rootDID
}

func (a *Agent) SetRouter(r Router) {
	a.keyLk.Lock()
	defer a.keyLk.Unlock()
	a.router = r
}

// NewDID creates a new pairwise DID, stores it to the wallet and starts to
// accept messages encrypted to it.
func (a *Agent) NewDID() (did *ssi.DID, err error) {
	defer err2.Handle(&err, "new DID")

	did = try.To1(ssi.NewDID(nil))
	try.To(did.Store(a.Wallet))
	a.AddDID(did)
	return did, nil
}

// LoadDID loads our DID from the wallet, e.g. when a connection is
// deserialized.
func (a *Agent) LoadDID(did string) (d *ssi.DID, err error) {
	d, err = ssi.Load(a.Wallet, did)
	if err != nil {
		return nil, err
	}
	a.AddDID(d)
	return d, nil
}

func (a *Agent) AddDID(did *ssi.DID) {
	a.keyLk.Lock()
	defer a.keyLk.Unlock()
	if a.keys == nil {
		a.keys = make(map[string]*ssi.DID)
	}
	a.keys[did.VerKey()] = did
}

// RemoveDID stops accepting messages to the DID and wipes its keys from the
// memory. The keys stay in the wallet.
func (a *Agent) RemoveDID(did *ssi.DID) {
	a.keyLk.Lock()
	delete(a.keys, did.VerKey())
	a.keyLk.Unlock()
	did.Wipe()
}

func (a *Agent) ourDID(verKey string) (*ssi.DID, Router) {
	a.keyLk.RLock()
	defer a.keyLk.RUnlock()
	return a.keys[verKey], a.router
}

// OutDID returns their DID by the verkey.
func (a *Agent) OutDID(verKey string) (*ssi.DID, error) {
	return a.cache.OutDID(verKey)
}

func (a *Agent) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.Settings.Timeout())
}

// Send auth-crypts the message with the pipe and sends it to the endpoint.
func (a *Agent) Send(ctx context.Context, pipe sec.Pipe, endpoint string, msg didcomm.MessageHdr) (err error) {
	defer err2.Handle(&err, "send %s", msg.Hdr().Type)

	data, _ := try.To2(pipe.Pack(didcomm.JSON(msg)))
	ctx, cancel := a.timeout(ctx)
	defer cancel()
	glog.V(3).Infof("-> %s (%s)", endpoint, msg.Hdr().Type)
	return a.Tr.Send(ctx, endpoint, data)
}

// SendAnon anon-crypts the message to the recipient and sends it.
func (a *Agent) SendAnon(ctx context.Context, to *ssi.DID, endpoint string, msg didcomm.MessageHdr) (err error) {
	defer err2.Handle(&err, "send anon %s", msg.Hdr().Type)

	data := try.To1(sec.Pack(nil, to, didcomm.JSON(msg)))
	ctx, cancel := a.timeout(ctx)
	defer cancel()
	glog.V(3).Infof("-> %s (%s) anon", endpoint, msg.Hdr().Type)
	return a.Tr.Send(ctx, endpoint, data)
}

// Receive is the inbound trans.Handler of the agent.
func (a *Agent) Receive(data []byte) (err error) {
	defer err2.Handle(&err, "receive")

	keys := try.To1(sec.RecipientKeys(data))
	for _, vk := range keys {
		me, router := a.ourDID(vk)
		if me == nil {
			continue
		}
		payload, senderVK := try.To2(sec.Unpack(me, data))
		if router == nil {
			return cxserr.New(cxserr.InvalidState, "no router")
		}
		return router(me, senderVK, payload)
	}
	return cxserr.New(cxserr.CryptoError, "message to unknown key %v", keys)
}

// Notify broadcasts the state change of the protocol object.
func (a *Agent) Notify(n bus.Notify) {
	if a.Bus == nil {
		return
	}
	a.Bus.Broadcast(n)
}
