package invitation

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/lainio/err2/assert"
)

const verKey = "FYmoFw55GeQH7SRFa37dkx1d2dZ3zUF8ckg7wmL7ofN4"

func TestTranslate(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	inv := New("alice", "http://localhost:8080/cxs/1", verKey)
	got, err := Translate(Build(inv), 2)
	assert.NoError(err)
	assert.Equal(got.ID, inv.ID)
	assert.Equal(got.Label, "alice")
	assert.Equal(got.RecipientKeys[0], verKey)
	assert.Equal(got.ThreadID(), inv.ID)
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
		err  error
	}{
		{"not json", `{"label":`, cxserr.ErrInvalidJSON},
		{"no endpoint", `{"@id":"1","recipientKeys":["` + verKey + `"]}`, cxserr.Param(2, "")},
		{"no keys", `{"@id":"1","serviceEndpoint":"http://a"}`, cxserr.Param(2, "")},
		{"wrong type", `{"@type":"other","@id":"1"}`, cxserr.Param(2, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()
			_, err := Translate(tt.json, 2)
			assert.That(errors.Is(err, tt.err), "got %v", err)
		})
	}
}

func TestURL(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	inv := New("alice", "http://localhost:8080/cxs/1", verKey)
	s := URL(inv)
	got, err := FromURL(s, 1)
	assert.NoError(err)
	assert.Equal(got.ID, inv.ID)
	assert.Equal(got.ServiceEndpoint, inv.ServiceEndpoint)

	_, err = FromURL("http://localhost:8080/cxs/1", 1)
	assert.Error(err)
}
