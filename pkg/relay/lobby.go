package relay

import (
	"sort"
	"sync"

	"github.com/rondohq/rondo/pkg/api"
)

// Subscriber receives lobby snapshot and delta packets.
type Subscriber interface {
	Send(m any)
}

// Lobby publishes the public room listing. It keeps its own copy of
// the visible rooms so queries and subscriptions never reach into the
// registry, and it pushes the snapshot and every later delta to a
// subscriber under one mutex, which pins the delta stream to the
// snapshot it follows.
//
// Room tags are fixed at creation, so whether a room matches a
// subscriber's filter never changes over the room's lifetime.
type Lobby struct {
	mu    sync.Mutex
	rooms map[string]*api.LobbyRoom
	subs  map[Subscriber][]string
}

func NewLobby() *Lobby {
	return &Lobby{
		rooms: make(map[string]*api.LobbyRoom, 10),
		subs:  make(map[Subscriber][]string),
	}
}

// Subscribe registers the subscriber and hands it the current filtered
// snapshot. Re-subscribing replaces the filter and resets the stream
// with a fresh snapshot.
func (l *Lobby) Subscribe(s Subscriber, filter []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[s] = filter
	s.Send(api.NewLobbySnapshot(l.filtered(filter)))
}

func (l *Lobby) Unsubscribe(s Subscriber) {
	l.mu.Lock()
	delete(l.subs, s)
	l.mu.Unlock()
}

// List returns the visible rooms whose tags cover every filter tag.
func (l *Lobby) List(filter []string) []api.LobbyRoom {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filtered(filter)
}

// Upsert publishes a new or changed room record to the cache and to
// every subscriber whose filter it matches.
func (l *Lobby) Upsert(room *api.LobbyRoom) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rooms[room.RoomId] = room
	delta := api.NewLobbyUpsert(room)
	for s, filter := range l.subs {
		if tagsCover(room.Tags, filter) {
			s.Send(delta)
		}
	}
}

// Remove withdraws a room from the listing. Rooms that were never
// visible, sealed on arrival of their first member, produce nothing.
func (l *Lobby) Remove(roomId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	room, ok := l.rooms[roomId]
	if !ok {
		return
	}
	delete(l.rooms, roomId)
	delta := api.NewLobbyRemove(roomId)
	for s, filter := range l.subs {
		if tagsCover(room.Tags, filter) {
			s.Send(delta)
		}
	}
}

func (l *Lobby) filtered(filter []string) []api.LobbyRoom {
	list := make([]api.LobbyRoom, 0, len(l.rooms))
	for _, room := range l.rooms {
		if tagsCover(room.Tags, filter) {
			list = append(list, *room)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RoomId < list[j].RoomId })
	return list
}

// tagsCover reports whether tags contain every wanted tag.
func tagsCover(tags, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, t := range tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
