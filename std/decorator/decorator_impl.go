package decorator

import (
	"encoding/base64"

	"github.com/findy-network/findy-cxs/agent/cxserr"
)

const MimeTypeJSON = "application/json"

func NewThread(ID, PID string) *Thread {
	realPID := ""
	if ID != PID {
		realPID = PID
	}
	return &Thread{ID: ID, PID: realPID}
}

func CheckThread(thread *Thread, ID string) *Thread {
	if thread == nil {
		return &Thread{ID: ID}
	}
	if thread.ID == "" {
		thread.ID = ID
	}
	return thread
}

func NewAttachment(id string, data []byte) Attachment {
	return Attachment{
		ID:       id,
		MimeType: MimeTypeJSON,
		Data: AttachmentData{
			Base64: base64.StdEncoding.EncodeToString(data),
		},
	}
}

// First returns the data of the first attachment.
func First(attachments []Attachment) ([]byte, error) {
	if len(attachments) == 0 {
		return nil, cxserr.New(cxserr.InvalidParam, "attachment missing")
	}
	return attachments[0].Decode()
}

func (a Attachment) Decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(a.Data.Base64)
	if err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidParam, err, "attachment %s", a.ID)
	}
	return data, nil
}
