package session

import (
	"testing"

	"github.com/rondohq/rondo/pkg/api"
)

func lobby(id string, players int) api.LobbyRoom {
	return api.LobbyRoom{RoomId: id, Topology: api.TopologyMesh, Players: players, Capacity: 4, Tags: []string{}}
}

func upsert(room api.LobbyRoom) *api.LobbyDelta {
	d := api.NewLobbyUpsert(&room)
	return &d
}

func remove(id string) *api.LobbyDelta {
	d := api.NewLobbyRemove(id)
	return &d
}

func TestCacheSnapshotReplacesEverything(t *testing.T) {
	c := newLobbyCache()
	c.ApplySnapshot([]api.LobbyRoom{lobby("old", 1)})
	c.ApplySnapshot([]api.LobbyRoom{lobby("b", 1), lobby("a", 2)})

	rooms := c.Rooms()
	if len(rooms) != 2 || rooms[0].RoomId != "a" || rooms[1].RoomId != "b" {
		t.Errorf("rooms = %+v, want [a b]", rooms)
	}
}

// A snapshot followed by deltas must land on the same listing a fresh
// snapshot would give at that point.
func TestCacheDeltaConvergence(t *testing.T) {
	c := newLobbyCache()
	c.ApplySnapshot([]api.LobbyRoom{lobby("a", 1), lobby("b", 1)})
	c.ApplyDelta(upsert(lobby("a", 2)))
	c.ApplyDelta(upsert(lobby("c", 1)))
	c.ApplyDelta(remove("b"))

	want := newLobbyCache()
	want.ApplySnapshot([]api.LobbyRoom{lobby("a", 2), lobby("c", 1)})

	got, expect := c.Rooms(), want.Rooms()
	if len(got) != len(expect) {
		t.Fatalf("rooms = %+v, want %+v", got, expect)
	}
	for i := range got {
		if got[i].RoomId != expect[i].RoomId || got[i].Players != expect[i].Players {
			t.Errorf("room %v = %+v, want %+v", i, got[i], expect[i])
		}
	}
}

func TestCacheIgnoresBrokenDeltas(t *testing.T) {
	c := newLobbyCache()
	c.ApplySnapshot([]api.LobbyRoom{lobby("a", 1)})

	// removing what isn't listed and an upsert without a body are no-ops
	c.ApplyDelta(remove("ghost"))
	c.ApplyDelta(&api.LobbyDelta{T: api.MsgLobbyDelta, Op: api.LobbyUpsert, RoomId: "empty"})

	if c.Len() != 1 {
		t.Errorf("len = %v, want 1", c.Len())
	}
}
