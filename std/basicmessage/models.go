// Package basicmessage includes the basic message of the pairwise connection.
package basicmessage

import (
	"errors"
	"strings"
	"time"

	"github.com/findy-network/findy-cxs/agent/didcomm"
	"github.com/findy-network/findy-cxs/agent/pltype"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type AriesTime struct {
	time.Time
}

// ISO8601 is the time format which other agents understand.
const ISO8601 = "2006-01-02 15:04:05.999999Z"

type Basicmessage struct {
	didcomm.Header
	Content  string    `json:"content"`
	SentTime AriesTime `json:"sent_time"`
}

func init() {
	didcomm.Creator.Add(pltype.BasicMessageSend,
		func() didcomm.MessageHdr { return &Basicmessage{} })
}

func NewBasicmessage(content string) *Basicmessage {
	return &Basicmessage{
		Header:   didcomm.NewHeader(pltype.BasicMessageSend, ""),
		Content:  content,
		SentTime: AriesTime{Time: time.Now().UTC()},
	}
}

func validateTimestamp(timeStr string) (t time.Time, err error) {
	acceptedFormats := []string{ISO8601, time.RFC3339}
	for _, fmt := range acceptedFormats {
		if t, err = time.Parse(fmt, timeStr); err == nil {
			break
		}
	}
	return
}

func (at *AriesTime) UnmarshalJSON(b []byte) (err error) {
	defer err2.Handle(&err)

	t := try.To1(validateTimestamp(strings.Trim(string(b), "\"")))

	*at = AriesTime{Time: t}
	return
}

func (at AriesTime) MarshalJSON() ([]byte, error) {
	// below taken from Go standard lib
	t := at.Time
	if y := t.Year(); y < 0 || y >= 10000 {
		// RFC 3339 is clear that years are 4 digits exactly.
		// See golang.org/issue/4556#c15 for more discussion.
		return nil, errors.New("Time.MarshalJSON: year outside of range [0,9999]")
	}

	b := make([]byte, 0, len(ISO8601)+2)
	b = append(b, '"')
	b = t.AppendFormat(b, ISO8601)
	b = append(b, '"')
	return b, nil
}

func (at AriesTime) String() string {
	return at.Time.String()
}
