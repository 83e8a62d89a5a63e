package session

import (
	"errors"
	"testing"
)

func TestLifecycleTable(t *testing.T) {
	states := []State{Idle, Signaling, Connected, Cleanup}
	legal := map[State][]State{
		Idle:      {Signaling},
		Signaling: {Connected, Cleanup},
		Connected: {Cleanup},
		Cleanup:   {Idle},
	}

	for _, from := range states {
		for _, to := range states {
			want := false
			for _, s := range legal[from] {
				if s == to {
					want = true
				}
			}
			f := fsm{state: from}
			err := f.to(to)
			if want && err != nil {
				t.Errorf("%v -> %v refused: %v", from, to, err)
			}
			if !want && err == nil {
				t.Errorf("%v -> %v allowed, want a refusal", from, to)
			}
			if want && f.current() != to {
				t.Errorf("state after %v -> %v is %v", from, to, f.current())
			}
			if !want && f.current() != from {
				t.Errorf("refused move still changed state to %v", f.current())
			}
		}
	}
}

func TestTransitionErrorIsTyped(t *testing.T) {
	f := fsm{state: Idle}
	err := f.to(Connected)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err is %T, want *TransitionError", err)
	}
	if te.From != Idle || te.To != Connected {
		t.Errorf("error carries %v -> %v", te.From, te.To)
	}
	if te.Error() != "illegal transition idle -> connected" {
		t.Errorf("message = %q", te.Error())
	}
}
