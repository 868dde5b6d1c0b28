package connection

import "fmt"

// State is the state of the pairwise connection. States are ranked: the
// connection moves only forward and Closed is final.
type State uint32

const (
	StateUndefined State = iota
	Initialized
	Invited
	RequestSent
	RequestReceived
	ResponseReceived
	Connected
	Closed
)

var stateNames = [...]string{
	StateUndefined:   "undefined",
	Initialized:      "initialized",
	Invited:          "invited",
	RequestSent:      "request_sent",
	RequestReceived:  "request_received",
	ResponseReceived: "response_received",
	Connected:        "connected",
	Closed:           "closed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

func (s State) Valid() bool {
	return s > StateUndefined && s <= Closed
}

// Role tells which end of the invitation we are.
type Role uint32

const (
	Inviter Role = iota + 1
	Invitee
)

func (r Role) String() string {
	switch r {
	case Inviter:
		return "inviter"
	case Invitee:
		return "invitee"
	}
	return fmt.Sprintf("Role(%d)", r)
}

var transitions = map[Role]map[State]State{
	Inviter: {
		Initialized:     Invited,
		Invited:         RequestReceived,
		RequestReceived: Connected,
	},
	Invitee: {
		Initialized:      RequestSent,
		RequestSent:      ResponseReceived,
		ResponseReceived: Connected,
	},
}

// has tells if the state belongs to the states of the role.
func (r Role) has(s State) bool {
	switch s {
	case Initialized, Connected, Closed:
		return r == Inviter || r == Invitee
	}
	for from, to := range transitions[r] {
		if from == s || to == s {
			return true
		}
	}
	return false
}

// canMove tells if the role can move from s to next. Every state can be
// closed, and closed is final.
func (s State) canMove(r Role, next State) bool {
	if s == Closed {
		return false
	}
	if next == Closed {
		return true
	}
	return transitions[r][s] == next
}
