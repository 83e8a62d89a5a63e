package session

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/relay"
	"github.com/rondohq/rondo/pkg/rtc"
)

func testRelay(t *testing.T) string {
	t.Helper()
	conf := config.RelayConfig{}
	conf.Relay.Rooms = config.Rooms{DefaultCapacity: 2, StaleAfter: time.Minute, SweepEvery: time.Minute}
	hub := relay.NewHub(conf, func() []config.IceServer { return nil }, logger.Default())
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func testSession(t *testing.T, addr string) (*Session, *rtc.FakeFactory) {
	t.Helper()
	conf := config.Peer{HandshakeTimeout: 15 * time.Second}
	conf.Network.RelayAddress = addr
	f := &rtc.FakeFactory{}
	s := New(conf, f, logger.Default())
	t.Cleanup(s.Close)
	return s, f
}

// pump ticks the sessions until the condition comes true.
func pump(t *testing.T, cond func() bool, sessions ...*Session) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, s := range sessions {
			s.Tick(time.Now())
		}
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func drained(s *Session) (evs []Event) {
	for {
		select {
		case ev := <-s.Events():
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func hasEvent(evs []Event, want EventType) bool {
	for _, ev := range evs {
		if ev.T == want {
			return true
		}
	}
	return false
}

func TestHostTakesFirstSeat(t *testing.T) {
	addr := testRelay(t)
	s, _ := testSession(t, addr)

	if err := s.Host("r1", api.TopologyAuthority, 2, nil); err != nil {
		t.Fatalf("host failed: %v", err)
	}
	if s.State() != Signaling {
		t.Fatalf("state after host = %v, want signaling", s.State())
	}
	pump(t, func() bool { return s.PeerId() == 1 }, s)
	if s.hostId != 1 || s.capacity != 2 || s.topology != api.TopologyAuthority {
		t.Errorf("assignment = host %v capacity %v %v", s.hostId, s.capacity, s.topology)
	}
	if !hasEvent(drained(s), EventStateChanged) {
		t.Error("no state change event for the join")
	}
}

func TestJoinMissingRoomFailsCleanly(t *testing.T) {
	addr := testRelay(t)
	s, _ := testSession(t, addr)

	if err := s.Join("ghost", api.TopologyMesh); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	var evs []Event
	pump(t, func() bool {
		evs = append(evs, drained(s)...)
		return s.State() == Idle && hasEvent(evs, EventConnectionError)
	}, s)
	for _, ev := range evs {
		if ev.T == EventConnectionError && !strings.Contains(ev.Err.Error(), api.ErrRoomNotFound) {
			t.Errorf("error = %v, want it to name %v", ev.Err, api.ErrRoomNotFound)
		}
	}
}

func TestMeshPairConnects(t *testing.T) {
	addr := testRelay(t)
	a, af := testSession(t, addr)
	b, bf := testSession(t, addr)

	if err := a.Host("duo", api.TopologyMesh, 2, nil); err != nil {
		t.Fatalf("host failed: %v", err)
	}
	pump(t, func() bool { return a.PeerId() == 1 }, a)
	if err := b.Join("duo", api.TopologyMesh); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// the room seals, both sides hear it
	pump(t, func() bool { return a.State() == Connected && b.State() == Connected }, a, b)

	// the seated member offers toward the newcomer, never the reverse
	pump(t, func() bool {
		return len(af.Made()) == 1 && len(af.Made()[0].Remote()) == 1 &&
			len(bf.Made()) == 1 && len(bf.Made()[0].Remote()) == 1
	}, a, b)
	if got := bf.Made()[0].Remote()[0]; got.Type != api.SDPOffer {
		t.Errorf("newcomer got %v, want the offer", got.Type)
	}
	if got := af.Made()[0].Remote()[0]; got.Type != api.SDPAnswer {
		t.Errorf("offerer got %v, want the answer", got.Type)
	}

	// trickled candidates ride the same relay path
	af.Made()[0].Trickle("candidate:a1")
	pump(t, func() bool { return len(bf.Made()[0].Candidates()) == 1 }, a, b)
	if got := bf.Made()[0].Candidates()[0]; got.Candidate != "candidate:a1" {
		t.Errorf("candidate = %+v", got)
	}

	// once the links are up both sides drop the relay on their own
	af.Made()[0].Connect()
	bf.Made()[0].Connect()
	var aev, bev []Event
	pump(t, func() bool {
		aev = append(aev, drained(a)...)
		bev = append(bev, drained(b)...)
		return a.signal == nil && b.signal == nil
	}, a, b)
	if !hasEvent(aev, EventPeerConnected) || !hasEvent(bev, EventPeerConnected) {
		t.Error("missing peer connected events")
	}
	if a.State() != Connected || b.State() != Connected {
		t.Errorf("detaching changed the lifecycle: %v/%v", a.State(), b.State())
	}
}

func TestAuthorityOnlyHostOffers(t *testing.T) {
	addr := testRelay(t)
	h, hf := testSession(t, addr)
	m1, m1f := testSession(t, addr)
	m2, m2f := testSession(t, addr)

	if err := h.Host("srv", api.TopologyAuthority, 3, nil); err != nil {
		t.Fatalf("host failed: %v", err)
	}
	pump(t, func() bool { return h.PeerId() == 1 }, h)
	if err := m1.Join("srv", api.TopologyAuthority); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	pump(t, func() bool { return m1.PeerId() == 2 }, h, m1)
	if err := m2.Join("srv", api.TopologyAuthority); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	pump(t, func() bool {
		return h.State() == Connected && m1.State() == Connected && m2.State() == Connected
	}, h, m1, m2)

	// the host drives one transport per member; members answer the
	// host and nobody else
	pump(t, func() bool {
		return len(hf.Made()) == 2 && len(m1f.Made()) == 1 && len(m2f.Made()) == 1
	}, h, m1, m2)
	for _, m := range []*Session{m1, m2} {
		if len(m.neg.peers) != 1 {
			t.Fatalf("member holds %v records, want 1", len(m.neg.peers))
		}
		if _, ok := m.neg.peers[api.HostPeerId]; !ok {
			t.Error("member record is not keyed by the host id")
		}
	}
}

func TestHandshakeTimeoutIsFatal(t *testing.T) {
	addr := testRelay(t)
	a, af := testSession(t, addr)
	b, _ := testSession(t, addr)

	a.Host("duo", api.TopologyMesh, 2, nil)
	pump(t, func() bool { return a.PeerId() == 1 }, a)
	b.Join("duo", api.TopologyMesh)
	pump(t, func() bool { return len(af.Made()) == 1 }, a, b)

	// nobody ever connects; one tick past the deadline ends the session
	a.Tick(time.Now().Add(16 * time.Second))

	if a.State() != Idle {
		t.Errorf("state = %v, want idle after the timeout", a.State())
	}
	evs := drained(a)
	found := false
	for _, ev := range evs {
		if ev.T == EventConnectionError {
			found = true
			if !strings.Contains(ev.Err.Error(), "handshake timeout with peer 2") {
				t.Errorf("error = %v, want it to name peer 2", ev.Err)
			}
		}
	}
	if !found {
		t.Error("no connection error event for the timeout")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	addr := testRelay(t)
	s, _ := testSession(t, addr)

	s.Leave()
	if s.State() != Idle || len(drained(s)) != 0 {
		t.Fatal("leave from idle did something")
	}

	s.Host("r1", api.TopologyMesh, 3, nil)
	pump(t, func() bool { return s.PeerId() == 1 }, s)
	s.Leave()
	if s.State() != Idle || s.PeerId() != 0 {
		t.Errorf("state = %v peer = %v after leave", s.State(), s.PeerId())
	}
	drained(s)
	s.Leave()
	if len(drained(s)) != 0 {
		t.Error("repeated leave emitted events")
	}
}

func TestRehostLeavesImplicitly(t *testing.T) {
	addr := testRelay(t)
	s, _ := testSession(t, addr)

	s.Host("one", api.TopologyMesh, 3, nil)
	pump(t, func() bool { return s.PeerId() == 1 }, s)

	// hosting again must pass through cleanup and idle on its own
	if err := s.Host("two", api.TopologyMesh, 4, nil); err != nil {
		t.Fatalf("rehost failed: %v", err)
	}
	pump(t, func() bool { return s.capacity == 4 && s.PeerId() == 1 }, s)
	if s.State() != Signaling {
		t.Errorf("state = %v, want signaling in the new room", s.State())
	}
}

func TestRoomClosedSendsClientHome(t *testing.T) {
	addr := testRelay(t)
	h, _ := testSession(t, addr)
	m, _ := testSession(t, addr)

	h.Host("srv", api.TopologyAuthority, 3, nil)
	pump(t, func() bool { return h.PeerId() == 1 }, h)
	m.Join("srv", api.TopologyAuthority)
	pump(t, func() bool { return m.PeerId() == 2 }, h, m)

	h.Leave()

	var evs []Event
	pump(t, func() bool {
		evs = append(evs, drained(m)...)
		return m.State() == Idle && hasEvent(evs, EventRoomClosed)
	}, m)
	if hasEvent(evs, EventConnectionError) {
		t.Error("a clean room close produced a connection error")
	}
}

func TestLobbyFeedMirror(t *testing.T) {
	addr := testRelay(t)
	w, _ := testSession(t, addr)
	a, _ := testSession(t, addr)
	b, _ := testSession(t, addr)

	if err := w.SubscribeLobbies([]string{"coop"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	a.Host("pub", api.TopologyMesh, 2, []string{"coop", "eu"})
	var evs []Event
	pump(t, func() bool {
		evs = append(evs, drained(w)...)
		rooms := w.LobbyRooms()
		return len(rooms) == 1 && rooms[0].RoomId == "pub" && rooms[0].Players == 1
	}, w, a)
	if !hasEvent(evs, EventLobbyUpdated) {
		t.Error("no lobby update event")
	}

	// the second seat seals the room and takes it off the listing
	b.Join("pub", api.TopologyMesh)
	pump(t, func() bool { return len(w.LobbyRooms()) == 0 }, w, a, b)
}

func TestListLobbiesOneShot(t *testing.T) {
	addr := testRelay(t)
	w, _ := testSession(t, addr)
	a, _ := testSession(t, addr)

	a.Host("open", api.TopologyMesh, 3, nil)
	pump(t, func() bool { return a.PeerId() == 1 }, a)

	if err := w.ListLobbies(nil); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	pump(t, func() bool {
		rooms := w.LobbyRooms()
		return len(rooms) == 1 && rooms[0].RoomId == "open"
	}, w, a)
}
