package wallet

import (
	"sync"

	"github.com/findy-network/findy-cxs/agent/cxserr"
)

// Memory is the in-process backend. Wallets live as long as the backend, which
// lets tests close and reopen them.
type Memory struct {
	sync.Mutex
	wallets map[string]*memWallet
}

func NewMemory() *Memory {
	return &Memory{wallets: make(map[string]*memWallet)}
}

func (m *Memory) Open(cfg Config) (Wallet, error) {
	if cfg.Name == "" {
		return nil, cxserr.Param(1, "wallet name empty")
	}
	if _, err := cfg.keyBytes(); err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()

	w, ok := m.wallets[cfg.Name]
	if !ok {
		w = &memWallet{key: cfg.Key, data: make(map[string]map[string][]byte)}
		m.wallets[cfg.Name] = w
	}
	if w.key != cfg.Key {
		return nil, &cxserr.Error{Code: cxserr.WalletError, Msg: cfg.Name, Err: ErrWrongKey}
	}
	return w, nil
}

func (m *Memory) Remove(cfg Config) error {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.wallets[cfg.Name]; !ok {
		return notFound(cfg.Name, "")
	}
	delete(m.wallets, cfg.Name)
	return nil
}

type memWallet struct {
	sync.RWMutex
	key  string
	data map[string]map[string][]byte
}

func (w *memWallet) Set(key, subKey string, value []byte) error {
	w.Lock()
	defer w.Unlock()
	m, ok := w.data[key]
	if !ok {
		m = make(map[string][]byte)
		w.data[key] = m
	}
	m[subKey] = append(value[:0:0], value...)
	return nil
}

func (w *memWallet) Get(key, subKey string) ([]byte, error) {
	w.RLock()
	defer w.RUnlock()
	v, ok := w.data[key][subKey]
	if !ok {
		return nil, notFound(key, subKey)
	}
	return append(v[:0:0], v...), nil
}

func (w *memWallet) Delete(key, subKey string) error {
	w.Lock()
	defer w.Unlock()
	delete(w.data[key], subKey)
	return nil
}

func (w *memWallet) List(key string) (values [][]byte, err error) {
	w.RLock()
	defer w.RUnlock()
	for _, v := range w.data[key] {
		values = append(values, append(v[:0:0], v...))
	}
	return values, nil
}

func (w *memWallet) Close() error {
	return nil
}
