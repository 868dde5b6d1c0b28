package didcomm

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/lainio/err2/assert"
)

type testMsg struct {
	Header
	Content string `json:"content"`
}

const testType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/test/1.0/test"

func init() {
	Creator.Add(testType, func() MessageHdr { return &testMsg{} })
}

func TestParse(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := &testMsg{Header: NewHeader(testType, ""), Content: "hello"}
	assert.Equal(m.ThreadID(), m.ID)

	got, err := ParseAs[*testMsg](JSON(m))
	assert.NoError(err)
	assert.Equal(got.Content, "hello")
	assert.Equal(got.ThreadID(), m.ID)

	reply := NewHeader(testType, m.ThreadID())
	assert.NotEqual(reply.ID, m.ID)
	assert.Equal(reply.ThreadID(), m.ID)
}

func TestParse_NoThread(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	got, err := Parse([]byte(`{"@type":"` + testType + `","@id":"123"}`))
	assert.NoError(err)
	assert.Equal(got.Hdr().Thread.ID, "123")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"not json", `{"@type":`, cxserr.ErrInvalidJSON},
		{"unknown", `{"@type":"unknown"}`, cxserr.ErrInvalidParam},
		{"bad field", `{"@type":"` + testType + `","content":1}`, cxserr.ErrInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()
			_, err := Parse([]byte(tt.data))
			assert.That(errors.Is(err, tt.err))
		})
	}
}
