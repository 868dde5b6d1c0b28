package basicmessage

import (
	"testing"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var timeJSON = "{\"sent_time\":\"2020-03-20 12:06:36.225671Z\"}"
var timeJSONRFC3339 = "{\"sent_time\":\"2022-09-30T12:31:05.923762Z\"}"

var mbJSON = `{
    "@type": "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/basicmessage/1.0/message",
    "@id": "a70a5db1-0b35-41d2-a602-e355ec4df67f",
    "content": "test",
    "sent_time": "2020-01-20 12:06:36.225671Z"
  }`

func TestNewTimeField(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	var testMsg Basicmessage
	dto.FromJSON([]byte(timeJSON), &testMsg)
	timeValue := testMsg.SentTime

	assert.Equal(timeValue.Year(), 2020)
	assert.Equal(timeValue.Month(), time.March)
	assert.Equal(timeValue.Day(), 20)
}

func TestNewTimeFieldRFC3339(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	var testMsg Basicmessage
	dto.FromJSON([]byte(timeJSONRFC3339), &testMsg)
	timeValue := testMsg.SentTime

	assert.Equal(timeValue.Year(), 2022)
	assert.Equal(timeValue.Month(), time.September)
	assert.Equal(timeValue.Day(), 30)
}

func TestParseBasicmessage(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	msg := try.To1(didcomm.ParseAs[*Basicmessage]([]byte(mbJSON)))

	assert.Equal("a70a5db1-0b35-41d2-a602-e355ec4df67f", msg.ID)
	assert.Equal("a70a5db1-0b35-41d2-a602-e355ec4df67f", msg.ThreadID())
	assert.Equal(msg.Content, "test")
}

func TestBasicMessage_MsgPingPong(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	send1 := NewBasicmessage("hello")
	data := didcomm.JSON(send1)

	msg := try.To1(didcomm.ParseAs[*Basicmessage](data))
	assert.Equal("hello", msg.Content)
	assert.Equal(msg.SentTime.Unix(), send1.SentTime.Unix())
}
