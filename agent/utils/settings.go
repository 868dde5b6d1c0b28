package utils

import (
	"path/filepath"
	"time"
)

const (
	HTTPReqTimeout     = 1 * time.Minute
	ClaimOfferTTL      = 24 * time.Hour
	ExpirySweep        = 1 * time.Minute
	DefaultCacheSize   = 256
	DefaultWalletType  = "default"
	DefaultServiceName = "cxs"
)

// Hub is the settings hub of one API context. Zero values are replaced with the
// defaults by the getters.
type Hub struct {
	serviceName string        // name of the this service which is used in URLs
	timeout     time.Duration // timeout setting for http requests and ledger calls

	walletType string // registered wallet backend type name
	walletPath string // directory of the wallet files

	cacheSize     int           // ledger read cache entries
	claimOfferTTL time.Duration // how long an offer waits for a request
	expirySweep   time.Duration // how often expired offers are checked
}

func NewSettings() *Hub {
	return &Hub{}
}

func (h *Hub) SetServiceName(n string) {
	h.serviceName = n
}

func (h *Hub) ServiceName() string {
	if h.serviceName == "" {
		return DefaultServiceName
	}
	return h.serviceName
}

// SetTimeout sets the default timeout for HTTP requests and ledger calls.
func (h *Hub) SetTimeout(to time.Duration) {
	h.timeout = to
}

func (h *Hub) Timeout() time.Duration {
	if h.timeout == 0 {
		return HTTPReqTimeout
	}
	return h.timeout
}

func (h *Hub) SetWalletType(t string) {
	h.walletType = t
}

func (h *Hub) WalletType() string {
	if h.walletType == "" {
		return DefaultWalletType
	}
	return h.walletType
}

func (h *Hub) SetWalletPath(path string) {
	h.walletPath = path
}

func (h *Hub) WalletPath() string {
	if h.walletPath == "" {
		return filepath.Join(HomeDir(), ".findy-cxs", "wallets")
	}
	return h.walletPath
}

func (h *Hub) SetCacheSize(n int) {
	h.cacheSize = n
}

func (h *Hub) CacheSize() int {
	if h.cacheSize <= 0 {
		return DefaultCacheSize
	}
	return h.cacheSize
}

func (h *Hub) SetClaimOfferTTL(ttl time.Duration) {
	h.claimOfferTTL = ttl
}

func (h *Hub) ClaimOfferTTL() time.Duration {
	if h.claimOfferTTL == 0 {
		return ClaimOfferTTL
	}
	return h.claimOfferTTL
}

func (h *Hub) SetExpirySweep(d time.Duration) {
	h.expirySweep = d
}

func (h *Hub) ExpirySweep() time.Duration {
	if h.expirySweep == 0 {
		return ExpirySweep
	}
	return h.expirySweep
}
