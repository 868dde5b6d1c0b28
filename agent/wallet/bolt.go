package wallet

import (
	"crypto/md5"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/findy-network/findy-common-go/crypto/db"
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const level7 = 7

var (
	dataBucket = []byte{0}
	metaBucket = []byte{1}

	keyCheckID = []byte("wallet-key-check")
	checkValue = []byte("findy-cxs")
)

// Bolt is the default backend. Wallets are bolt files whose keys are hashed
// and values encrypted with the wallet key.
type Bolt struct{}

func filename(cfg Config) string {
	path := "."
	if cfg.Path != "" {
		path = cfg.Path
	}
	return filepath.Join(path, cfg.Name+".bolt")
}

func (Bolt) Open(cfg Config) (w Wallet, err error) {
	defer err2.Handle(&err, "bolt wallet %s", cfg.Name)

	if cfg.Name == "" {
		return nil, cxserr.Param(1, "wallet name empty")
	}
	k := try.To1(cfg.keyBytes())
	fname := filename(cfg)
	try.To(os.MkdirAll(filepath.Dir(fname), 0o700))

	s := &boltWallet{
		name:   cfg.Name,
		cipher: crypto.NewCipher(k),
		db: db.New(db.Cfg{
			Filename:   fname,
			Buckets:    [][]byte{dataBucket, metaBucket},
			BackupName: fname + "_backup",
		}),
	}
	if err := s.checkKey(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	glog.V(3).Infoln("wallet opened:", fname)
	return s, nil
}

func (Bolt) Remove(cfg Config) (err error) {
	defer err2.Handle(&err, "remove wallet %s", cfg.Name)

	err = os.Remove(filename(cfg))
	if os.IsNotExist(err) {
		return notFound(cfg.Name, "")
	}
	return err
}

type boltWallet struct {
	l sync.RWMutex

	name   string
	db     db.Handle
	cipher *crypto.Cipher
}

type record struct {
	Key    string
	SubKey string
	Value  []byte
}

// checkKey verifies that the wallet key decrypts the check value. A new wallet
// gets the check value written.
func (s *boltWallet) checkKey() (err error) {
	defer err2.Handle(&err, func(err error) error {
		return &cxserr.Error{Code: cxserr.WalletError, Msg: s.name, Err: ErrWrongKey}
	})

	var value []byte
	found := try.To1(s.db.GetKeyValueFromBucket(metaBucket,
		&db.Data{Data: keyCheckID, Read: s.hash},
		&db.Data{
			Write: s.cipher.TryDecrypt,
			Use: func(d []byte) interface{} {
				value = d
				return nil
			},
		}))
	if !found {
		return s.db.AddKeyValueToBucket(metaBucket,
			&db.Data{Data: checkValue, Read: s.cipher.TryEncrypt},
			&db.Data{Data: keyCheckID, Read: s.hash})
	}
	if string(value) != string(checkValue) {
		return ErrWrongKey
	}
	return nil
}

func (s *boltWallet) hash(key []byte) (k []byte) {
	h := md5.Sum(key)
	return h[:]
}

func dbKey(key, subKey string) []byte {
	return []byte(key + "|" + subKey)
}

func (s *boltWallet) Set(key, subKey string, value []byte) (err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.WalletError, err, "set %s/%s", key, subKey)
	})

	s.l.RLock()
	defer s.l.RUnlock()

	glog.V(level7).Infoln("wallet::Set", key, subKey)
	r := record{Key: key, SubKey: subKey, Value: value}
	return s.db.AddKeyValueToBucket(dataBucket,
		&db.Data{
			Data: dto.ToGOB(r),
			Read: s.cipher.TryEncrypt,
		},
		&db.Data{
			Data: dbKey(key, subKey),
			Read: s.hash,
		},
	)
}

func (s *boltWallet) Get(key, subKey string) (value []byte, err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.WalletError, err, "get %s/%s", key, subKey)
	})

	s.l.RLock()
	defer s.l.RUnlock()

	var r record
	found := try.To1(s.db.GetKeyValueFromBucket(dataBucket,
		&db.Data{
			Data: dbKey(key, subKey),
			Read: s.hash,
		},
		&db.Data{
			Write: s.cipher.TryDecrypt,
			Use: func(d []byte) interface{} {
				dto.FromGOB(d, &r)
				return nil
			},
		}))
	if !found {
		return nil, notFound(key, subKey)
	}
	return r.Value, nil
}

func (s *boltWallet) Delete(key, subKey string) (err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.WalletError, err, "delete %s/%s", key, subKey)
	})

	s.l.RLock()
	defer s.l.RUnlock()

	return s.db.RmKeyValueFromBucket(dataBucket, &db.Data{
		Data: dbKey(key, subKey),
		Read: s.hash,
	})
}

func (s *boltWallet) List(key string) (values [][]byte, err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.WalletError, err, "list %s", key)
	})

	s.l.RLock()
	defer s.l.RUnlock()

	all := try.To1(s.db.GetAllValuesFromBucket(dataBucket, s.cipher.TryDecrypt))
	for _, d := range all {
		var r record
		dto.FromGOB(d, &r)
		if r.Key == key {
			values = append(values, r.Value)
		}
	}
	return values, nil
}

func (s *boltWallet) Close() (err error) {
	defer err2.Handle(&err, func(err error) error {
		return cxserr.Wrap(cxserr.WalletError, err, "close %s", s.name)
	})

	s.l.Lock()
	defer s.l.Unlock()

	if s.db == nil {
		glog.Warningf("skipping wallet close for %s, already closed", s.name)
		return nil
	}
	try.To(s.db.Close())
	s.db = nil
	return nil
}

func randomKey() ([]byte, error) {
	k := make([]byte, KeyLen)
	if _, err := rand.Read(k); err != nil {
		return nil, err
	}
	return k, nil
}
