package relay

import (
	"sync"
	"time"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
)

// Registry keeps every live room and serializes room lifecycle against
// the map: creation happens under the registry lock so the creating
// peer always takes the first seat, while joins to existing rooms only
// contend on the room itself.
type Registry struct {
	log   *logger.Logger
	conf  config.Rooms
	feed  *Lobby
	clock func() time.Time
	ice   func() []config.IceServer

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(conf config.Rooms, feed *Lobby, ice func() []config.IceServer, log *logger.Logger) *Registry {
	return &Registry{
		log:   log,
		conf:  conf,
		feed:  feed,
		clock: time.Now,
		ice:   ice,
		rooms: make(map[string]*Room, 10),
	}
}

type JoinResult struct {
	Room   *Room
	PeerId int
}

// CreateOrJoin puts the client into the named room, creating it first
// when the client came to host. A join that loses the race against a
// room teardown is retried against the fresh state of the map.
func (reg *Registry) CreateOrJoin(j api.Join, c Client) (JoinResult, *RoomError) {
	if j.RoomId == "" {
		return JoinResult{}, roomErr(api.ErrRoomIdRequired)
	}
	for {
		reg.mu.Lock()
		room, ok := reg.rooms[j.RoomId]
		if !ok {
			if !j.IsHostIntent {
				reg.mu.Unlock()
				return JoinResult{}, roomErr(api.ErrRoomNotFound)
			}
			room = newRoom(j.RoomId, j, reg.feed, reg.clock)
			reg.rooms[j.RoomId] = room
			peerId, _ := room.join(c, j.Topology, reg.ice())
			reg.mu.Unlock()
			roomsCreated.Inc()
			roomsActive.Inc()
			reg.log.Info().Msgf("room %v created (%v, %v seats)", room.id, room.topology, room.capacity)
			return JoinResult{Room: room, PeerId: peerId}, nil
		}
		reg.mu.Unlock()

		peerId, err := room.join(c, j.Topology, reg.ice())
		if err == errRoomGone {
			continue
		}
		if err != nil {
			return JoinResult{}, err
		}
		return JoinResult{Room: room, PeerId: peerId}, nil
	}
}

// RemoveMember takes the peer out of the room and unregisters the room
// when that removal was the end of it.
func (reg *Registry) RemoveMember(room *Room, peerId int) {
	if reason := room.leave(peerId); reason != "" {
		reg.unregister(room, reason)
	}
}

// Sweep destroys every room that outlived the staleness threshold.
func (reg *Registry) Sweep() {
	now := reg.clock()
	for _, room := range reg.snapshot() {
		if reason := room.sweep(now, reg.conf.StaleAfter); reason != "" {
			reg.unregister(room, reason)
		}
	}
}

// Stats reports the current number of rooms and seated peers.
func (reg *Registry) Stats() (rooms int, peers int) {
	list := reg.snapshot()
	for _, room := range list {
		peers += room.size()
	}
	return len(list), peers
}

func (reg *Registry) snapshot() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	list := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		list = append(list, room)
	}
	return list
}

func (reg *Registry) unregister(room *Room, reason destroyReason) {
	reg.mu.Lock()
	if cur, ok := reg.rooms[room.id]; ok && cur == room {
		delete(reg.rooms, room.id)
	}
	reg.mu.Unlock()
	roomsActive.Dec()
	roomsDestroyed.WithLabelValues(string(reason)).Inc()
	reg.log.Info().Msgf("room %v destroyed (%v)", room.id, reason)
}
