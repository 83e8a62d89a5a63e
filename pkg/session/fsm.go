package session

import "fmt"

// State is the client lifecycle phase.
type State int

const (
	Idle State = iota
	Signaling
	Connected
	Cleanup
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Signaling:
		return "signaling"
	case Connected:
		return "connected"
	case Cleanup:
		return "cleanup"
	}
	return "unknown"
}

// TransitionError reports a lifecycle move the state machine forbids.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %v -> %v", e.From, e.To)
}

// fsm gates the session lifecycle with an explicit transition table
// instead of scattered state checks. Joining is legal only from idle,
// teardown is legal from any live state, and cleanup always lands back
// in idle.
type fsm struct {
	state State
}

var transitions = map[State][]State{
	Idle:      {Signaling},
	Signaling: {Connected, Cleanup},
	Connected: {Cleanup},
	Cleanup:   {Idle},
}

func (f *fsm) current() State { return f.state }

func (f *fsm) to(next State) error {
	for _, s := range transitions[f.state] {
		if s == next {
			f.state = next
			return nil
		}
	}
	return &TransitionError{From: f.state, To: next}
}
