package api

import (
	"errors"
	"strings"
	"testing"
)

func TestPeek(t *testing.T) {
	tests := []struct {
		name string
		data string
		want PT
		err  error
	}{
		{"tagged", `{"type":"join","room_id":"r1"}`, MsgJoin, nil},
		{"unknown tag still peeks", `{"type":"martian"}`, PT("martian"), nil},
		{"no tag", `{"room_id":"r1"}`, "", ErrNoType},
		{"truncated", `{"type":"jo`, "", ErrMalformed},
		{"not an object", `[1,2,3]`, "", ErrMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Peek([]byte(tc.data))
			if got != tc.want || !errors.Is(err, tc.err) {
				t.Errorf("Peek(%v) = %v, %v; want %v, %v", tc.data, got, err, tc.want, tc.err)
			}
		})
	}
}

func TestUnwrapRejectsMisfits(t *testing.T) {
	if Unwrap[Join]([]byte(`{"type":"join","capacity":"plenty"}`)) != nil {
		t.Error("string capacity fit an int field")
	}
	j := Unwrap[Join]([]byte(`{"type":"join","room_id":"r1","is_host_intent":true}`))
	if j == nil || j.RoomId != "r1" || !j.IsHostIntent {
		t.Errorf("join = %+v", j)
	}
}

func TestSignalValidate(t *testing.T) {
	sdp := &SDP{Type: SDPOffer, SDP: "v=0"}
	ice := &ICE{Candidate: "candidate:1"}
	tests := []struct {
		name string
		s    Signal
		want bool
	}{
		{"sdp only", NewSignal(2, sdp, nil), true},
		{"ice only", NewSignal(2, nil, ice), true},
		{"no payload", NewSignal(2, nil, nil), false},
		{"both payloads", NewSignal(2, sdp, ice), false},
		{"no target", NewSignal(0, sdp, nil), false},
		{"negative target", NewSignal(-1, sdp, nil), false},
		{"bodyless sdp", NewSignal(2, &SDP{Type: SDPOffer}, nil), false},
		{"odd sdp type", NewSignal(2, &SDP{Type: "rollback", SDP: "v=0"}, nil), false},
		{"empty candidate", NewSignal(2, nil, &ICE{}), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.Validate(); got != tc.want {
				t.Errorf("Validate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJoinWithDefaults(t *testing.T) {
	j := Join{T: MsgJoin, RoomId: "r1"}.WithDefaults(4)
	if j.Topology != TopologyMesh || j.Capacity != 4 {
		t.Errorf("defaults = %v/%v, want mesh/4", j.Topology, j.Capacity)
	}
	j = NewJoin("r1", true, TopologyAuthority, 8, nil).WithDefaults(4)
	if j.Topology != TopologyAuthority || j.Capacity != 8 {
		t.Errorf("explicit values were overwritten: %v/%v", j.Topology, j.Capacity)
	}
}

func TestWireShape(t *testing.T) {
	data, err := Wrap(NewSignal(2, &SDP{Type: SDPOffer, SDP: "v=0"}, nil))
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	for _, want := range []string{`"type":"signal"`, `"target_id":2`, `"offer"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("wire %s misses %s", data, want)
		}
	}
	if strings.Contains(string(data), "ice") {
		t.Errorf("empty ice leaked onto the wire: %s", data)
	}
}
