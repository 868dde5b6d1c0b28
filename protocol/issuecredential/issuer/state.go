package issuer

import "fmt"

// State is the issuer side state of the claim.
type State uint32

const (
	StateNone State = iota
	Initialized
	OfferSent
	RequestReceived
	Accepted
	Fulfilled
	Unfulfilled
	Expired
	Revoked
)

var stateNames = [...]string{
	StateNone:       "none",
	Initialized:     "initialized",
	OfferSent:       "offer_sent",
	RequestReceived: "request_received",
	Accepted:        "accepted",
	Fulfilled:       "fulfilled",
	Unfulfilled:     "unfulfilled",
	Expired:         "expired",
	Revoked:         "revoked",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

func (s State) Valid() bool {
	return s > StateNone && s <= Revoked
}

// Terminal states are final.
func (s State) Terminal() bool {
	return s >= Fulfilled
}

var transitions = map[State][]State{
	Initialized:     {OfferSent},
	OfferSent:       {RequestReceived},
	RequestReceived: {Accepted},
	Accepted:        {Fulfilled},
}

// canMove tells if the claim can move from s to next. Every non-terminal
// state can be terminated.
func (s State) canMove(next State) bool {
	if s.Terminal() || !s.Valid() {
		return false
	}
	if next.Terminal() && next != Fulfilled {
		return true
	}
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}
