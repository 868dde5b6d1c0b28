// Package wallet is the pluggable secure storage of the agent. Values are
// stored by a key (category) and a sub key. Backends are registered by their
// type name to a Registry, which has the built-in backends default (encrypted
// bolt file) and memory.
package wallet

import (
	"errors"
	"sync"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/golang/glog"
	"github.com/mr-tron/base58"
)

const (
	TypeDefault = "default"
	TypeMemory  = "memory"

	KeyLen = 32
)

var (
	ErrNotFound = errors.New("not found")
	ErrWrongKey = errors.New("wrong wallet key")
)

type Wallet interface {
	Set(key, subKey string, value []byte) error
	Get(key, subKey string) ([]byte, error)
	Delete(key, subKey string) error

	// List returns all the values stored under the key.
	List(key string) ([][]byte, error)

	Close() error
}

// Config are the credentials and location of the wallet. Key is base58
// encoded 32 byte key.
type Config struct {
	Name string
	Path string
	Key  string
}

func (c Config) keyBytes() ([]byte, error) {
	k, err := base58.Decode(c.Key)
	if err != nil {
		return nil, cxserr.Wrap(cxserr.WalletError, err, "wallet key")
	}
	if len(k) != KeyLen {
		return nil, cxserr.New(cxserr.WalletError, "wallet key length %d", len(k))
	}
	return k, nil
}

// Backend creates and opens wallets of one type. Open creates the wallet if
// it doesn't exist yet.
type Backend interface {
	Open(cfg Config) (Wallet, error)
	Remove(cfg Config) error
}

type Registry struct {
	sync.Mutex
	backends map[string]Backend
}

// NewRegistry returns registry with the built-in backends.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]Backend{
		TypeDefault: &Bolt{},
		TypeMemory:  NewMemory(),
	}}
}

// Register registers the backend by the type name. Registration is one time
// operation and the same type name cannot be registered twice.
func (r *Registry) Register(typeName string, b Backend) error {
	if typeName == "" {
		return cxserr.Param(1, "wallet type name empty")
	}
	if b == nil {
		return cxserr.Param(2, "backend nil")
	}
	r.Lock()
	defer r.Unlock()
	if _, exists := r.backends[typeName]; exists {
		return cxserr.New(cxserr.AlreadyRegistered,
			"wallet type %s already registered", typeName)
	}
	glog.V(3).Infoln("register wallet type:", typeName)
	r.backends[typeName] = b
	return nil
}

func (r *Registry) Backend(typeName string) (Backend, error) {
	r.Lock()
	defer r.Unlock()
	b, ok := r.backends[typeName]
	if !ok {
		return nil, cxserr.New(cxserr.WalletError,
			"unknown wallet type %s", typeName)
	}
	return b, nil
}

func (r *Registry) Open(typeName string, cfg Config) (w Wallet, err error) {
	b, err := r.Backend(typeName)
	if err != nil {
		return nil, err
	}
	w, err = b.Open(cfg)
	if err != nil {
		return nil, cxserr.Wrap(cxserr.WalletError, err, "open wallet %s", cfg.Name)
	}
	return w, nil
}

func notFound(key, subKey string) error {
	return &cxserr.Error{
		Code: cxserr.WalletError,
		Msg:  key + "/" + subKey,
		Err:  ErrNotFound,
	}
}

// NewKey returns a new random wallet key in base58 format.
func NewKey() (string, error) {
	k, err := randomKey()
	if err != nil {
		return "", err
	}
	return base58.Encode(k), nil
}
