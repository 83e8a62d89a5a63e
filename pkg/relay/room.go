package relay

import (
	"sync"
	"time"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/com"
	"github.com/rondohq/rondo/pkg/config"
)

// Client is the connection surface a room needs from its members.
type Client interface {
	com.NetClient[com.Uid]
	Send(m any)
}

// RoomError is a client-visible room failure; its code goes out
// verbatim in the error message before the connection is closed.
type RoomError struct {
	Code string
}

func (e *RoomError) Error() string { return e.Code }

func roomErr(code string) *RoomError { return &RoomError{Code: code} }

// destroyReason labels room teardown causes for metrics.
type destroyReason string

const (
	destroyedEmpty    destroyReason = "emptied"
	destroyedHostLeft destroyReason = "host_left"
	destroyedSwept    destroyReason = "swept"
)

// Room is a signaling meeting point of up to capacity peers.
// All mutations happen under the room mutex, and every message a
// mutation produces is put on the member queues before the mutex is
// released, so each member observes room events in commit order.
type Room struct {
	id       string
	topology api.Topology
	capacity int
	tags     []string
	feed     *Lobby
	clock    func() time.Time

	mu         sync.Mutex
	hostId     int
	nextPeerId int
	sealed     bool
	gone       bool
	lastActive time.Time
	members    map[int]Client
}

func newRoom(id string, j api.Join, feed *Lobby, clock func() time.Time) *Room {
	return &Room{
		id:         id,
		topology:   j.Topology,
		capacity:   j.Capacity,
		tags:       j.Tags,
		feed:       feed,
		clock:      clock,
		nextPeerId: 1,
		lastActive: clock(),
		members:    make(map[int]Client, j.Capacity),
	}
}

func (r *Room) Id() string             { return r.id }
func (r *Room) Topology() api.Topology { return r.topology }

// lobbyRoom builds the public listing record. Callers hold r.mu.
func (r *Room) lobbyRoom() *api.LobbyRoom {
	tags := r.tags
	if tags == nil {
		tags = []string{}
	}
	return &api.LobbyRoom{
		RoomId:   r.id,
		Topology: r.topology,
		Players:  len(r.members),
		Capacity: r.capacity,
		Tags:     tags,
	}
}

// join admits a client, hands out the next peer id, and announces the
// newcomer. Sealing the room fires match_ready to every member exactly
// once per sealing event.
func (r *Room) join(c Client, topology api.Topology, ice []config.IceServer) (peerId int, err *RoomError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return 0, errRoomGone
	}
	if topology != r.topology {
		return 0, roomErr(api.ErrTopologyMismatch)
	}
	if r.sealed || len(r.members) >= r.capacity {
		return 0, roomErr(api.ErrRoomFull)
	}

	peerId = r.nextPeerId
	r.nextPeerId++
	if len(r.members) == 0 {
		r.hostId = peerId
	}
	r.members[peerId] = c
	r.lastActive = r.clock()

	c.Send(api.NewIdAssigned(peerId, r.hostId, r.capacity, r.topology, ice))
	for id, m := range r.members {
		if id != peerId {
			m.Send(api.NewPeerJoined(peerId))
		}
	}

	if len(r.members) == r.capacity {
		r.sealed = true
		for _, m := range r.members {
			m.Send(api.MatchReadyPacket)
		}
		matchesReady.Inc()
		r.feed.Remove(r.id)
	} else {
		r.feed.Upsert(r.lobbyRoom())
	}
	peersActive.Inc()
	return peerId, nil
}

// leave removes the member and reconciles the room: the last member
// out or a departing authority tears the room down, a departing mesh
// host passes the role to the lowest remaining peer id, and a sealed
// room opens up again.
func (r *Room) leave(peerId int) (destroyed destroyReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return ""
	}
	if _, ok := r.members[peerId]; !ok {
		return ""
	}
	delete(r.members, peerId)
	peersActive.Dec()
	r.lastActive = r.clock()

	if len(r.members) == 0 {
		r.gone = true
		r.feed.Remove(r.id)
		return destroyedEmpty
	}

	if peerId == r.hostId && r.topology == api.TopologyAuthority {
		r.gone = true
		for _, m := range r.members {
			m.Send(api.RoomClosedPacket)
			m.Disconnect()
			peersActive.Dec()
		}
		r.members = map[int]Client{}
		r.feed.Remove(r.id)
		return destroyedHostLeft
	}

	if peerId == r.hostId {
		next := 0
		for id := range r.members {
			if next == 0 || id < next {
				next = id
			}
		}
		r.hostId = next
	}
	for _, m := range r.members {
		m.Send(api.NewPeerLeft(peerId))
	}
	r.sealed = false
	r.feed.Upsert(r.lobbyRoom())
	return ""
}

// relay forwards one signal to a single member. It reports false on any
// relay violation: unknown or self target, or a side channel between
// plain members of a server-authoritative room.
func (r *Room) relay(from int, in *api.Signal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return false
	}
	target, ok := r.members[in.TargetId]
	if !ok || in.TargetId == from {
		return false
	}
	if r.topology == api.TopologyAuthority && from != r.hostId && in.TargetId != r.hostId {
		return false
	}
	r.lastActive = r.clock()
	target.Send(api.NewSignalFrom(from, in.SDP, in.ICE))
	return true
}

// touch refreshes the room activity clock.
func (r *Room) touch() {
	r.mu.Lock()
	r.lastActive = r.clock()
	r.mu.Unlock()
}

func (r *Room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// sweep tears the room down when it has been quiet for too long.
func (r *Room) sweep(now time.Time, staleAfter time.Duration) (destroyed destroyReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone || now.Sub(r.lastActive) <= staleAfter {
		return ""
	}
	r.gone = true
	for _, m := range r.members {
		m.Send(api.RoomClosedPacket)
		m.Disconnect()
		peersActive.Dec()
	}
	r.members = map[int]Client{}
	r.feed.Remove(r.id)
	return destroyedSwept
}

// errRoomGone makes the registry retry a join that raced a teardown.
var errRoomGone = &RoomError{Code: "room gone"}
