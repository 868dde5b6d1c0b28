package wallet

import (
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

const testPath = "wallet_test_dir"

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	try.To(flag.Set("logtostderr", "true"))
	try.To(flag.Set("stderrthreshold", "WARNING"))
	try.To(flag.Set("v", "0"))
	flag.Parse()
}

func tearDown() {
	os.RemoveAll(testPath)
}

func testConfig(name string) Config {
	return Config{
		Name: name,
		Path: testPath,
		Key:  try.To1(NewKey()),
	}
}

func TestRegistry_Register(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := NewRegistry()
	err := r.Register(TypeDefault, NewMemory())
	assert.Error(err)
	assert.Equal(cxserr.CodeOf(err), cxserr.AlreadyRegistered)

	assert.NoError(r.Register("custom", NewMemory()))
	err = r.Register("custom", NewMemory())
	assert.That(errors.Is(err, cxserr.ErrAlreadyRegistered))

	_, err = r.Open("missing", testConfig("x"))
	assert.Equal(cxserr.CodeOf(err), cxserr.WalletError)

	err = r.Register("", NewMemory())
	assert.Equal(cxserr.CodeOf(err), cxserr.InvalidParam)
}

func testWallet(t *testing.T, typeName string) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := NewRegistry()
	cfg := testConfig("wallet_" + typeName)
	w := try.To1(r.Open(typeName, cfg))

	try.To(w.Set("did", "A", []byte("a-value")))
	try.To(w.Set("did", "B", []byte("b-value")))
	try.To(w.Set("claim", "A", []byte("claim-value")))

	v := try.To1(w.Get("did", "A"))
	assert.Equal(string(v), "a-value")

	vs := try.To1(w.List("did"))
	assert.Equal(len(vs), 2)

	try.To(w.Delete("did", "A"))
	_, err := w.Get("did", "A")
	assert.That(errors.Is(err, ErrNotFound))
	assert.Equal(cxserr.CodeOf(err), cxserr.WalletError)
	try.To(w.Close())

	// reopen with the same credentials
	w = try.To1(r.Open(typeName, cfg))
	v = try.To1(w.Get("claim", "A"))
	assert.Equal(string(v), "claim-value")
	try.To(w.Close())

	// credentials gate the open
	wrong := cfg
	wrong.Key = try.To1(NewKey())
	_, err = r.Open(typeName, wrong)
	assert.Error(err)
	assert.That(errors.Is(err, ErrWrongKey))
	assert.Equal(cxserr.CodeOf(err), cxserr.WalletError)

	b := try.To1(r.Backend(typeName))
	try.To(b.Remove(cfg))
}

func TestBolt(t *testing.T) {
	testWallet(t, TypeDefault)
}

func TestMemory(t *testing.T) {
	testWallet(t, TypeMemory)
}

func TestConfig_BadKey(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := NewMemory().Open(Config{Name: "x", Key: "abc"})
	assert.Equal(cxserr.CodeOf(err), cxserr.WalletError)
}
