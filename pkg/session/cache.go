package session

import (
	"sort"
	"sync"

	"github.com/rondohq/rondo/pkg/api"
)

// LobbyCache mirrors the relay's public room listing. A snapshot
// replaces the whole cache; deltas mutate it in arrival order, so the
// cache always equals what a full snapshot would say at that point.
type LobbyCache struct {
	mu    sync.Mutex
	rooms map[string]api.LobbyRoom
}

func newLobbyCache() *LobbyCache {
	return &LobbyCache{rooms: make(map[string]api.LobbyRoom, 10)}
}

func (c *LobbyCache) ApplySnapshot(rooms []api.LobbyRoom) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = make(map[string]api.LobbyRoom, len(rooms))
	for _, room := range rooms {
		c.rooms[room.RoomId] = room
	}
}

// ApplyDelta applies one upsert or remove. Removing an absent room is
// a no-op, and an upsert without a body is ignored.
func (c *LobbyCache) ApplyDelta(d *api.LobbyDelta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch d.Op {
	case api.LobbyUpsert:
		if d.Lobby != nil {
			c.rooms[d.RoomId] = *d.Lobby
		}
	case api.LobbyRemove:
		delete(c.rooms, d.RoomId)
	}
}

// Rooms returns the cached listing ordered by room id.
func (c *LobbyCache) Rooms() []api.LobbyRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]api.LobbyRoom, 0, len(c.rooms))
	for _, room := range c.rooms {
		list = append(list, room)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RoomId < list[j].RoomId })
	return list
}

func (c *LobbyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}
