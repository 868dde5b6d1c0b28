package common

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/lainio/err2/assert"
)

func TestAck(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ack := NewAck(pltype.IssueCredentialACK, "thread-1")
	got, err := didcomm.ParseAs[*Ack](didcomm.JSON(ack))
	assert.NoError(err)
	assert.Equal(got.Status, StatusOK)
	assert.Equal(got.ThreadID(), "thread-1")
	assert.Equal(got.Type, pltype.IssueCredentialACK)
}

func TestProblemReport(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	pr := NewProblemReport("thread-2", "request_not_accepted", "offer expired")
	got, err := didcomm.ParseAs[*ProblemReport](didcomm.JSON(pr))
	assert.NoError(err)
	assert.Equal(got.Description.Code, "request_not_accepted")
	assert.Equal(got.ExplainLongTxt, "offer expired")

	_, err = didcomm.ParseAs[*Ack](didcomm.JSON(pr))
	assert.That(errors.Is(err, cxserr.ErrInvalidParam))
}

func TestDoc(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	doc := NewDoc("Th7MpTaRZVRYnPiabds81Y", "FYmoFw55GeQH7SRFa37dkx1d2dZ3zUF8ckg7wmL7ofN4", "http://localhost:8080/a/1")
	assert.NoError(doc.Validate())
	assert.Equal(doc.DID(), "Th7MpTaRZVRYnPiabds81Y")
	assert.Equal(doc.VerKey(), "FYmoFw55GeQH7SRFa37dkx1d2dZ3zUF8ckg7wmL7ofN4")
	assert.Equal(doc.Endpoint(), "http://localhost:8080/a/1")

	doc.Service = nil
	assert.Equal(doc.VerKey(), "FYmoFw55GeQH7SRFa37dkx1d2dZ3zUF8ckg7wmL7ofN4")
	assert.Error(doc.Validate())
}
