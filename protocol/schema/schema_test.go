package schema

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var agent *cloud.Agent

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	_ = flag.Set("v", "0")

	w := try.To1(wallet.NewMemory().Open(wallet.Config{
		Name: "schema-test",
		Key:  try.To1(wallet.NewKey()),
	}))
	agent = cloud.New(cloud.Config{
		Label:  "issuer",
		Wallet: w,
		Ledger: ledger.NewMem(),
		Tr:     trans.NewLoopback(),
	})
	try.To(agent.InitRoot(context.Background(), nil))
	os.Exit(m.Run())
}

func TestSchemaCommit(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := try.To1(New("s1", "Person", "1.0", `["name","age"]`))
	_, err := s.SeqNo()
	assert.That(errors.Is(err, cxserr.ErrNoDataAvailable))

	seqNo, err := s.Commit(context.Background(), agent)
	assert.NoError(err)
	assert.That(seqNo > 0)
	assert.Equal(try.To1(s.SeqNo()), seqNo)

	_, err = s.Commit(context.Background(), agent)
	assert.That(errors.Is(err, cxserr.ErrInvalidState))

	got := try.To1(Get(context.Background(), agent, "s2", seqNo, ledger.DefaultCacheOptions))
	assert.DeepEqual(got.Attrs(), []string{"name", "age"})
	assert.Equal(got.SourceID(), "s2")

	s2 := try.To1(Deserialize(s.Serialize(), 1))
	assert.Equal(s2.Serialize(), s.Serialize())
}

func TestNewSchemaErrors(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tests := []struct {
		name, sName, version, attrs string
		want                        error
	}{
		{"no name", "", "1.0", `["a"]`, &cxserr.Error{Code: cxserr.InvalidParam, Param: 2}},
		{"no version", "n", "", `["a"]`, &cxserr.Error{Code: cxserr.InvalidParam, Param: 3}},
		{"bad json", "n", "1.0", `["a"`, cxserr.ErrInvalidJSON},
		{"no attrs", "n", "1.0", `[]`, &cxserr.Error{Code: cxserr.InvalidParam, Param: 4}},
		{"duplicate", "n", "1.0", `["a","a"]`, &cxserr.Error{Code: cxserr.InvalidParam, Param: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()
			_, err := New("id", tt.sName, tt.version, tt.attrs)
			assert.That(errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestGetMissing(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := Get(context.Background(), agent, "x", 99999, ledger.DefaultCacheOptions)
	assert.That(errors.Is(err, cxserr.ErrLedger))
}

func TestClaimDef(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := try.To1(New("s", "Diploma", "1.0", `["degree","year"]`))
	seqNo := try.To1(s.Commit(context.Background(), agent))

	_, err := NewClaimDef("cd", 0, "")
	assert.That(errors.Is(err, &cxserr.Error{Code: cxserr.InvalidParam, Param: 2}))

	cd := try.To1(NewClaimDef("cd", seqNo, ""))
	_, err = cd.Attrs()
	assert.That(errors.Is(err, cxserr.ErrInvalidState))
	assert.NoError(cd.Create(context.Background(), agent))
	assert.DeepEqual(try.To1(cd.Attrs()), []string{"degree", "year"})

	ref := cd.Ref()
	assert.Equal(ref.IssuerDID, agent.RootDID().Did())
	assert.Equal(ref.Tag, DefaultTag)

	key := try.To1(cd.Key(agent))
	vk, err := KeyResolver(context.Background(), agent)(anoncreds.Identifier{ClaimDefRef: ref})
	assert.NoError(err)
	assert.Equal(vk, key.VerKey())

	// second create is not allowed
	assert.That(errors.Is(cd.Create(context.Background(), agent), cxserr.ErrInvalidState))

	cd2 := try.To1(DeserializeClaimDef(cd.Serialize(), 1))
	assert.Equal(cd2.Serialize(), cd.Serialize())
	assert.Equal(try.To1(cd2.Key(agent)).VerKey(), key.VerKey())
}

func TestClaimDefNoSchema(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	cd := try.To1(NewClaimDef("cd", 424242, "t"))
	err := cd.Create(context.Background(), agent)
	assert.That(errors.Is(err, cxserr.ErrLedger))
	_, err = cd.Key(agent)
	assert.That(errors.Is(err, cxserr.ErrInvalidState))
}

func TestCheckValues(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	attrs := []string{"name", "age"}
	assert.NoError(CheckValues(attrs, map[string]string{"name": "Alice", "age": "30"}, 3))
	err := CheckValues(attrs, map[string]string{"name": "Alice"}, 3)
	assert.That(errors.Is(err, &cxserr.Error{Code: cxserr.InvalidParam, Param: 3}))
	err = CheckValues(attrs, map[string]string{"name": "Alice", "age": "1", "x": "y"}, 3)
	assert.That(errors.Is(err, cxserr.ErrInvalidParam))
	err = CheckValues(attrs, nil, 3)
	assert.That(errors.Is(err, cxserr.ErrInvalidParam))
}
