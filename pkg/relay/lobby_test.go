package relay

import (
	"sync"
	"testing"

	"github.com/rondohq/rondo/pkg/api"
)

type fakeSub struct {
	mu   sync.Mutex
	sent []any
}

func (s *fakeSub) Send(m any) {
	s.mu.Lock()
	s.sent = append(s.sent, m)
	s.mu.Unlock()
}

func (s *fakeSub) packets() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any{}, s.sent...)
}

func entry(id string, players int, tags ...string) *api.LobbyRoom {
	if tags == nil {
		tags = []string{}
	}
	return &api.LobbyRoom{RoomId: id, Topology: api.TopologyMesh, Players: players, Capacity: 4, Tags: tags}
}

func TestLobbySnapshotThenDeltas(t *testing.T) {
	l := NewLobby()
	sub := &fakeSub{}

	l.Upsert(entry("alpha", 1))
	l.Subscribe(sub, nil)
	l.Upsert(entry("beta", 1))
	l.Upsert(entry("alpha", 2))
	l.Remove("beta")

	got := sub.packets()
	if len(got) != 4 {
		t.Fatalf("packet count = %v, want 4 (snapshot + 3 deltas)", len(got))
	}
	snap, ok := got[0].(api.LobbyRooms)
	if !ok || snap.T != api.MsgLobbySnapshot {
		t.Fatalf("first packet = %+v, want a lobby_snapshot", got[0])
	}
	if len(snap.Lobbies) != 1 || snap.Lobbies[0].RoomId != "alpha" {
		t.Errorf("snapshot = %+v, want [alpha]", snap.Lobbies)
	}
	up, ok := got[2].(api.LobbyDelta)
	if !ok || up.Op != api.LobbyUpsert || up.RoomId != "alpha" || up.Lobby.Players != 2 {
		t.Errorf("third packet = %+v, want alpha upsert with 2 players", got[2])
	}
	rm, ok := got[3].(api.LobbyDelta)
	if !ok || rm.Op != api.LobbyRemove || rm.RoomId != "beta" {
		t.Errorf("fourth packet = %+v, want beta remove", got[3])
	}
}

func TestLobbyListSortedAndFiltered(t *testing.T) {
	l := NewLobby()
	l.Upsert(entry("zulu", 1, "coop", "eu"))
	l.Upsert(entry("alpha", 1, "coop"))
	l.Upsert(entry("mike", 1, "pvp"))

	all := l.List(nil)
	if len(all) != 3 || all[0].RoomId != "alpha" || all[2].RoomId != "zulu" {
		t.Errorf("list = %+v, want alphabetical [alpha mike zulu]", all)
	}

	coop := l.List([]string{"coop"})
	if len(coop) != 2 {
		t.Errorf("coop list = %+v, want 2 rooms", coop)
	}
	euCoop := l.List([]string{"coop", "eu"})
	if len(euCoop) != 1 || euCoop[0].RoomId != "zulu" {
		t.Errorf("eu+coop list = %+v, want [zulu]", euCoop)
	}
}

func TestLobbyFilteredSubscription(t *testing.T) {
	l := NewLobby()
	sub := &fakeSub{}

	l.Subscribe(sub, []string{"pvp"})
	l.Upsert(entry("casual", 1, "coop"))
	l.Upsert(entry("ranked", 1, "pvp"))
	l.Remove("casual")
	l.Remove("ranked")

	got := sub.packets()
	if len(got) != 3 {
		t.Fatalf("packet count = %v, want snapshot + ranked upsert + ranked remove", len(got))
	}
	for _, m := range got[1:] {
		d := m.(api.LobbyDelta)
		if d.RoomId != "ranked" {
			t.Errorf("delta for %v leaked through the pvp filter", d.RoomId)
		}
	}
}

func TestLobbyResubscribeResetsStream(t *testing.T) {
	l := NewLobby()
	sub := &fakeSub{}
	l.Upsert(entry("a", 1, "coop"))
	l.Upsert(entry("b", 1, "pvp"))

	l.Subscribe(sub, []string{"coop"})
	l.Subscribe(sub, []string{"pvp"})

	got := sub.packets()
	if len(got) != 2 {
		t.Fatalf("packet count = %v, want 2 snapshots", len(got))
	}
	second := got[1].(api.LobbyRooms)
	if len(second.Lobbies) != 1 || second.Lobbies[0].RoomId != "b" {
		t.Errorf("snapshot after refilter = %+v, want [b]", second.Lobbies)
	}

	l.Upsert(entry("a", 2, "coop"))
	if len(sub.packets()) != 2 {
		t.Error("delta leaked through the replaced filter")
	}
}

func TestLobbyRemoveInvisibleRoom(t *testing.T) {
	l := NewLobby()
	sub := &fakeSub{}
	l.Subscribe(sub, nil)

	// a room sealed on its first join never reached the listing
	l.Remove("never-listed")

	if got := sub.packets(); len(got) != 1 {
		t.Errorf("packet count = %v, want the snapshot only", len(got))
	}
}

func TestLobbyUnsubscribeStopsDeltas(t *testing.T) {
	l := NewLobby()
	sub := &fakeSub{}
	l.Subscribe(sub, nil)
	l.Unsubscribe(sub)
	l.Upsert(entry("late", 1))

	if got := sub.packets(); len(got) != 1 {
		t.Errorf("packet count = %v, want the snapshot only", len(got))
	}
}
