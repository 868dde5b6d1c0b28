// Package bus delivers state change notifications of the protocol objects to
// the listeners of the application. The Station is owned by the API context and
// it has an explicit lifecycle.
package bus

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/lainio/err2/assert"
)

type Kind string

const (
	AllKinds   Kind = "*"
	Connection Kind = "connection"
	Claim      Kind = "claim"
	HolderCred Kind = "holder_claim"
	Proof      Kind = "proof"
	Disclosed  Kind = "disclosed_proof"
	Schema     Kind = "schema"
	ClaimDef   Kind = "claimdef"
)

type ListenerKey struct {
	Kind     Kind
	ClientID string
}

func (k ListenerKey) String() string {
	return "Listener:" + string(k.Kind) + "|" + k.ClientID
}

type Notify struct {
	ListenerKey
	Handle    uint32
	SourceID  string
	State     uint32
	StateName string
	Timestamp int64
}

type NotifyChan chan Notify

const chanSize = 16

type Station struct {
	sync.Mutex
	listeners map[ListenerKey]NotifyChan
}

func New() *Station {
	return &Station{listeners: make(map[ListenerKey]NotifyChan)}
}

// AddListener adds the listener. Only one listener per key is allowed.
func (s *Station) AddListener(key ListenerKey) NotifyChan {
	c := make(NotifyChan, chanSize)

	s.Lock()
	defer s.Unlock()
	_, alreadyExists := s.listeners[key]
	assert.That(!alreadyExists, "key: %s, already exists", key)
	s.listeners[key] = c

	glog.V(4).Infoln("notify ADD for:", key)
	return c
}

// RmListener removes the listener and closes its channel.
func (s *Station) RmListener(key ListenerKey) {
	s.Lock()
	defer s.Unlock()

	glog.V(4).Infoln("notify RM for:", key)
	if ch, ok := s.listeners[key]; ok {
		close(ch)
		delete(s.listeners, key)
	}
}

// Broadcast sends the notification to listeners of the kind. A listener whose
// channel is full misses the notification.
func (s *Station) Broadcast(n Notify) (found bool) {
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixNano()
	}
	s.Lock()
	defer s.Unlock()

	for key, ch := range s.listeners {
		if key.Kind != n.Kind && key.Kind != AllKinds {
			continue
		}
		found = true
		sendState := n
		sendState.ClientID = key.ClientID
		select {
		case ch <- sendState:
		default:
			glog.Warningf("%s: channel full, %s %d notify dropped",
				key, n.Kind, n.Handle)
		}
	}
	if !found {
		glog.V(5).Infoln(n.Kind, n.Handle, "there are no one to listen us!")
	}
	return found
}

// Close removes all the listeners.
func (s *Station) Close() {
	s.Lock()
	defer s.Unlock()
	for key, ch := range s.listeners {
		close(ch)
		delete(s.listeners, key)
	}
}
