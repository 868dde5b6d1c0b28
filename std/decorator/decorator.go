// Package decorator includes the message decorators used by the protocols.
package decorator

// Thread is the ~thread decorator. Every message of the protocol conversation
// carries the same thread ID.
type Thread struct {
	// ID is the thread ID, it's the ID of the first message of the thread
	ID string `json:"thid,omitempty"`

	// PID is the parent thread ID
	PID string `json:"pthid,omitempty"`

	SenderOrder    int            `json:"sender_order,omitempty"`
	ReceivedOrders map[string]int `json:"received_orders,omitempty"`
}

// Attachment is the ~attach decorator. Payloads of the other formats travel
// base64 encoded inside it.
type Attachment struct {
	ID          string         `json:"@id,omitempty"`
	MimeType    string         `json:"mime-type,omitempty"`
	LastModTime string         `json:"lastmod_time,omitempty"`
	Description string         `json:"description,omitempty"`
	Data        AttachmentData `json:"data,omitempty"`
}

type AttachmentData struct {
	Base64 string `json:"base64,omitempty"`
}
