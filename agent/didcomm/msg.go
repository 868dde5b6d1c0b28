/*
Package didcomm offers the common header and the message factory of the agent
protocol messages. Every message model of the std packages embeds Header and
registers itself to Creator by its message type. Inbound messages are parsed
with Parse, which reads the @type first and then builds the right model.
*/
package didcomm

import (
	"encoding/json"
	"sync"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-cxs/agent/cxserr"
	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/std/decorator"
)

// Header is the part which is common for all protocol messages.
type Header struct {
	Type   string            `json:"@type,omitempty"`
	ID     string            `json:"@id,omitempty"`
	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// MessageHdr is the base interface for all protocol messages.
type MessageHdr interface {
	Hdr() *Header
}

// NewHeader creates a header with a new ID. If thid is empty the message
// starts a new thread.
func NewHeader(msgType, thid string) Header {
	id := utils.UUID()
	if thid == "" {
		thid = id
	}
	return Header{
		Type:   msgType,
		ID:     id,
		Thread: decorator.NewThread(thid, ""),
	}
}

func (h *Header) Hdr() *Header {
	return h
}

func (h *Header) ThreadID() string {
	if h.Thread == nil || h.Thread.ID == "" {
		return h.ID
	}
	return h.Thread.ID
}

func (h *Header) checkThread() {
	h.Thread = decorator.CheckThread(h.Thread, h.ID)
}

// Factor creates an empty message for the JSON decoder.
type Factor func() MessageHdr

type God struct {
	sync.RWMutex
	factors map[string]Factor
}

// Creator creates messages by the message type string.
var Creator = &God{}

func (g *God) Add(msgType string, f Factor) {
	g.Lock()
	defer g.Unlock()
	if g.factors == nil {
		g.factors = make(map[string]Factor)
	}
	g.factors[msgType] = f
}

func (g *God) factor(msgType string) (Factor, bool) {
	g.RLock()
	defer g.RUnlock()
	f, ok := g.factors[msgType]
	return f, ok
}

// Parse builds the message from the JSON data. The thread decorator is always
// set after the parsing.
func Parse(data []byte) (m MessageHdr, err error) {
	var hdr Header
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "message header")
	}
	f, ok := Creator.factor(hdr.Type)
	if !ok {
		return nil, cxserr.New(cxserr.InvalidParam,
			"unknown message type: %s", hdr.Type)
	}
	m = f()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, cxserr.Wrap(cxserr.InvalidJSON, err, "message %s", hdr.Type)
	}
	m.Hdr().checkThread()
	return m, nil
}

// ParseAs parses the message and checks that it's the type of T.
func ParseAs[T MessageHdr](data []byte) (t T, err error) {
	m, err := Parse(data)
	if err != nil {
		return t, err
	}
	t, ok := m.(T)
	if !ok {
		return t, cxserr.New(cxserr.InvalidParam,
			"wrong message type: %s", m.Hdr().Type)
	}
	return t, nil
}

func JSON(m MessageHdr) []byte {
	return dto.ToJSONBytes(m)
}
