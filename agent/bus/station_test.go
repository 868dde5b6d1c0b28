package bus

import (
	"testing"

	"github.com/lainio/err2/assert"
)

func TestStation_Broadcast(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := New()
	claimKey := ListenerKey{Kind: Claim, ClientID: "1"}
	allKey := ListenerKey{Kind: AllKinds, ClientID: "2"}
	claims := s.AddListener(claimKey)
	all := s.AddListener(allKey)

	assert.That(s.Broadcast(Notify{
		ListenerKey: ListenerKey{Kind: Claim},
		Handle:      7,
		StateName:   "OfferSent",
	}))
	n := <-claims
	assert.Equal(n.Handle, uint32(7))
	assert.Equal(n.ClientID, "1")
	assert.That(n.Timestamp != 0)
	n = <-all
	assert.Equal(n.ClientID, "2")

	assert.That(s.Broadcast(Notify{ListenerKey: ListenerKey{Kind: Proof}}))
	assert.Equal(len(claims), 0)
	assert.Equal(len(all), 1)

	s.RmListener(claimKey)
	_, ok := <-claims
	assert.That(!ok)

	s.Close()
	assert.That(!s.Broadcast(Notify{ListenerKey: ListenerKey{Kind: Claim}}))
}

func TestStation_FullChannel(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := New()
	ch := s.AddListener(ListenerKey{Kind: Connection, ClientID: "slow"})
	for i := 0; i < chanSize+5; i++ {
		s.Broadcast(Notify{ListenerKey: ListenerKey{Kind: Connection}, Handle: uint32(i)})
	}
	assert.Equal(len(ch), chanSize)
}
