package verifier

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/findy-network/findy-cxs/agent/anoncreds"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func TestNewRequest(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	req, err := NewRequest("name",
		`[{"name":"name","issuer_did":"did1"},{"name":"email"}]`,
		`[{"attr_name":"age","p_type":"GT","value":21,"schema_seq_no":4}]`)
	assert.NoError(err)
	assert.Equal(len(req.RequestedAttributes), 2)
	assert.Equal(req.RequestedAttributes["attr_referent_1"].Restrictions[0].IssuerDID, "did1")
	assert.Equal(len(req.RequestedAttributes["attr_referent_2"].Restrictions), 0)
	pred := req.RequestedPredicates["predicate_1"]
	assert.Equal(pred.PType, anoncreds.PredicateGT)
	assert.Equal(pred.PValue, int64(21))
	assert.Equal(pred.Restrictions[0].SchemaSeqNo, 4)
	assert.NotEmpty(req.Nonce)

	tests := []struct {
		name         string
		attrs, preds string
		want         error
	}{
		{"bad attrs", `[{"name":`, ``, cxserr.ErrInvalidJSON},
		{"unknown field", `[{"nme":"x"}]`, ``, cxserr.ErrInvalidJSON},
		{"empty", `[]`, `[]`, &cxserr.Error{Code: cxserr.InvalidParam, Param: 2}},
		{"no name", `[{"issuer_did":"x"}]`, ``, &cxserr.Error{Code: cxserr.InvalidParam, Param: 2}},
		{"bad predicate", `[]`, `[{"attr_name":"age","p_type":"EQ","value":1}]`,
			&cxserr.Error{Code: cxserr.InvalidParam, Param: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()
			_, err := NewRequest("n", tt.attrs, tt.preds)
			assert.That(errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestStates(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	p := try.To1(New("p", `[{"name":"name"}]`, "", "Name"))
	assert.Equal(p.State(), Initialized)
	assert.That(errors.Is(p.CheckRequest(), cxserr.ErrInvalidState))

	assert.NoError(p.SetConnection(1))
	assert.NoError(p.SetConnection(2))
	assert.Equal(p.ConnHandle(), uint32(2))
	assert.Equal(p.State(), ConnectionSet)
	assert.NoError(p.CheckRequest())

	_, err := p.ProofOffer()
	assert.That(errors.Is(err, cxserr.ErrNoDataAvailable))
	_, err = p.Revealed()
	assert.That(errors.Is(err, cxserr.ErrNoDataAvailable))

	p2 := try.To1(Deserialize(p.Serialize(), 1))
	assert.Equal(p2.State(), ConnectionSet)
	assert.Equal(p2.Request(), p.Request())

	tests := []struct {
		name string
		edit func(d map[string]any)
		ok   bool
	}{
		{"connection set", func(map[string]any) {}, true},
		{"connection set no connection", func(d map[string]any) { delete(d, "connection_handle") }, false},
		{"request sent no thread", func(d map[string]any) { d["state"] = RequestSent }, false},
		{"request sent", func(d map[string]any) {
			d["state"] = RequestSent
			d["thread_id"] = "th1"
		}, true},
		{"offer received no proof", func(d map[string]any) {
			d["state"] = OfferReceived
			d["thread_id"] = "th1"
		}, false},
		{"accepted no proof", func(d map[string]any) { d["state"] = Accepted }, false},
		{"rejected", func(d map[string]any) { d["state"] = Rejected }, true},
		{"no request", func(d map[string]any) { delete(d, "proof_request") }, false},
	}
	base := p.Serialize()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			var d map[string]any
			try.To(json.Unmarshal([]byte(base), &d))
			tt.edit(d)
			_, err := Deserialize(string(try.To1(json.Marshal(d))), 2)
			if tt.ok {
				assert.NoError(err)
			} else {
				assert.That(errors.Is(err, &cxserr.Error{Code: cxserr.InvalidParam, Param: 2}), "got %v", err)
			}
		})
	}

	_, err = Deserialize(`{"state":1}`, 1)
	assert.That(errors.Is(err, cxserr.ErrInvalidParam))
	assert.Equal(RequestSent.String(), "request_sent")
	assert.That(Rejected.Terminal() && !OfferReceived.Terminal())
}
