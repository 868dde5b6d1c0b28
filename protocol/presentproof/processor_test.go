package presentproof

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cloud"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/ledger"
	"github.com/findy-network/findy-cxs/agent/trans"
	"github.com/findy-network/findy-cxs/agent/wallet"
	"github.com/findy-network/findy-cxs/protocol/presentproof/prover"
	"github.com/findy-network/findy-cxs/protocol/presentproof/verifier"
	"github.com/findy-network/findy-cxs/protocol/schema"
	"github.com/findy-network/findy-cxs/std/presentproof"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	ledgerMem = ledger.NewMem()
	wallets   = wallet.NewMemory()
)

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	_ = flag.Set("v", "0")
	os.Exit(m.Run())
}

func newAgent(name string) *cloud.Agent {
	a := cloud.New(cloud.Config{
		Label:  name,
		Wallet: try.To1(wallets.Open(wallet.Config{Name: name, Key: try.To1(wallet.NewKey())})),
		Ledger: ledgerMem,
		Tr:     trans.NewLoopback(),
	})
	try.To(a.InitRoot(context.Background(), nil))
	return a
}

// issue stores the claim of the issuer straight to the holder's wallet.
func issue(issuer, holder *cloud.Agent, attrs string, values map[string]string) anoncreds.ClaimDefRef {
	ctx := context.Background()
	s := try.To1(schema.New("s", "Person", "1.0", attrs))
	cd := try.To1(schema.NewClaimDef("cd", try.To1(s.Commit(ctx, issuer)), ""))
	try.To(cd.Create(ctx, issuer))

	suite := anoncreds.Suite{}
	offer := try.To1(suite.CreateOffer(cd.Ref(), values))
	req := try.To1(suite.CreateRequest(offer, holder.RootDID().Did()))
	key := try.To1(cd.Key(issuer))
	claim := try.To1(suite.CreateClaim(key, offer, req, values))
	try.To(suite.StoreClaim(holder.Wallet, claim, key.VerKey()))
	return cd.Ref()
}

type queue struct {
	msgs []didcomm.MessageHdr
}

func (q *queue) Send(_ context.Context, _ *cloud.Agent, msg didcomm.MessageHdr) error {
	q.msgs = append(q.msgs, try.To1(didcomm.Parse(didcomm.JSON(msg))))
	return nil
}

func (q *queue) pop() didcomm.MessageHdr {
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m
}

func TestProofFlow(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	faber := newAgent("faber")
	alice := newAgent("alice")
	acme := newAgent("acme")
	ref := issue(faber, alice, `["name","age"]`, map[string]string{"name": "Alice", "age": "30"})

	toAlice, toAcme := &queue{}, &queue{}
	var (
		proof *verifier.Proof
		dp    *prover.DisclosedProof
	)
	proc := Processor{
		Verifier: func(string) *verifier.Proof { return proof },
		Prover:   func(string) *prover.DisclosedProof { return dp },
	}

	proof = try.To1(verifier.New("job-app",
		`[{"name":"name","issuer_did":"`+ref.IssuerDID+`"}]`,
		`[{"attr_name":"age","p_type":"GE","value":18}]`, "Job application"))
	assert.That(errors.Is(proof.SendRequest(ctx, acme, toAlice), cxserr.ErrInvalidState))
	try.To(proof.SetConnection(2))
	try.To(proof.SendRequest(ctx, acme, toAlice))
	assert.Equal(proof.State(), verifier.RequestSent)

	_, err := proof.ProofOffer()
	assert.That(errors.Is(err, cxserr.ErrNoDataAvailable))

	reqMsg := toAlice.pop()
	handled, err := proc.Handle(ctx, alice, reqMsg)
	assert.NoError(err)
	assert.That(!handled)

	dp = try.To1(prover.New("for-acme", string(didcomm.JSON(reqMsg))))
	assert.Equal(dp.ThreadID(), proof.ThreadID())
	try.To(dp.Send(ctx, alice, toAcme, 1))
	assert.Equal(dp.State(), prover.PresentationSent)

	handled, err = proc.Handle(ctx, acme, toAcme.pop())
	assert.NoError(err)
	assert.That(handled)
	assert.Equal(proof.State(), verifier.OfferReceived)
	assert.NotEmpty(try.To1(proof.ProofOffer()))
	revealed := try.To1(proof.Revealed())
	assert.Equal(revealed["name"], "Alice")

	try.To(proof.Accept(ctx, acme, toAlice))
	assert.Equal(proof.State(), verifier.Accepted)

	handled, err = proc.Handle(ctx, alice, toAlice.pop())
	assert.NoError(err)
	assert.That(handled)
	assert.Equal(dp.State(), prover.Acked)

	p2 := try.To1(verifier.Deserialize(proof.Serialize(), 1))
	assert.Equal(p2.Serialize(), proof.Serialize())
	dp2 := try.To1(prover.Deserialize(dp.Serialize(), 1))
	assert.Equal(dp2.Serialize(), dp.Serialize())
}

func TestProofNotSatisfied(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	faber := newAgent("faber2")
	bob := newAgent("bob")
	issue(faber, bob, `["name","age"]`, map[string]string{"name": "Bob", "age": "16"})

	toBob, toAcme := &queue{}, &queue{}
	proof := try.To1(verifier.New("adult", `[]`,
		`[{"attr_name":"age","p_type":">=","value":18}]`, "Adult"))
	try.To(proof.SetConnection(1))
	try.To(proof.SendRequest(ctx, bob, toBob))

	dp := try.To1(prover.New("p", string(didcomm.JSON(toBob.pop()))))
	err := dp.Send(ctx, bob, toAcme, 1)
	assert.That(errors.Is(err, cxserr.ErrNoDataAvailable))
	assert.Equal(dp.State(), prover.RequestReceived)

	assert.NoError(dp.Reject(ctx, bob, toAcme, "can't"))
	proc := Processor{
		Verifier: func(string) *verifier.Proof { return proof },
		Prover:   func(string) *prover.DisclosedProof { return nil },
	}
	handled, err := proc.Handle(ctx, bob, toAcme.pop())
	assert.NoError(err)
	assert.That(handled)
	assert.Equal(proof.State(), verifier.Rejected)
	assert.Equal(proof.Message(), "request-rejected: can't")
}

func TestForgedPresentation(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	faber := newAgent("faber3")
	eve := newAgent("eve")
	issue(faber, eve, `["name","age"]`, map[string]string{"name": "Eve", "age": "20"})

	toEve, toAcme := &queue{}, &queue{}
	proof := try.To1(verifier.New("p", `[{"name":"name"}]`, "", "Name"))
	try.To(proof.SetConnection(1))
	try.To(proof.SendRequest(ctx, eve, toEve))

	dp := try.To1(prover.New("p", string(didcomm.JSON(toEve.pop()))))
	try.To(dp.Send(ctx, eve, toAcme, 1))

	pres := toAcme.pop().(*presentproof.Presentation)
	data := try.To1(presentproof.PresentationAttach(pres))
	var p anoncreds.Proof
	try.To(json.Unmarshal(data, &p))
	ra := p.RequestedProof.RevealedAttrs["attr_referent_1"]
	ra.Raw = "Mallory"
	p.RequestedProof.RevealedAttrs["attr_referent_1"] = ra
	p.Proofs[ra.SubProofIndex].Attrs["name"] = anoncreds.SignedValue{
		AttrValue: anoncreds.AttrValue{Raw: "Mallory", Encoded: anoncreds.Encode("Mallory")},
		Signature: p.Proofs[ra.SubProofIndex].Attrs["name"].Signature,
	}
	forged := presentproof.NewPresentation(pres.ThreadID(), try.To1(json.Marshal(p)))

	proc := Processor{
		Verifier: func(string) *verifier.Proof { return proof },
		Prover:   func(string) *prover.DisclosedProof { return nil },
	}
	_, err := proc.Handle(ctx, eve, forged)
	assert.That(errors.Is(err, cxserr.ErrCrypto))
	assert.Equal(proof.State(), verifier.RequestSent)
	_, err = proof.ProofOffer()
	assert.That(errors.Is(err, cxserr.ErrCrypto))
	assert.That(errors.Is(proof.Accept(ctx, eve, nil), cxserr.ErrInvalidState))
}
