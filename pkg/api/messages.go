package api

import (
	"github.com/rondohq/rondo/pkg/config"
)

// Topology selects who negotiates with whom inside a room.
type Topology string

const (
	TopologyMesh      Topology = "mesh"
	TopologyAuthority Topology = "server_authoritative"
)

func (t Topology) Valid() bool { return t == TopologyMesh || t == TopologyAuthority }

// HostPeerId is the reserved transport id of the authority in
// server_authoritative rooms. The creating peer of a fresh room always
// receives it, and room-lifetime ids are never reused, so the mapping
// stays unambiguous.
const HostPeerId = 1

const (
	SDPOffer  = "offer"
	SDPAnswer = "answer"
)

// SDP is a session description in transit.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func (s *SDP) Valid() bool {
	return s != nil && (s.Type == SDPOffer || s.Type == SDPAnswer) && s.SDP != ""
}

// ICE is a trickled ICE candidate in transit.
type ICE struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdp_mid"`
	SDPMLineIndex uint16 `json:"sdp_mline_index"`
}

func (i *ICE) Valid() bool { return i != nil && i.Candidate != "" }

// LobbyRoom is one public room entry of a lobby listing.
type LobbyRoom struct {
	RoomId   string   `json:"room_id"`
	Topology Topology `json:"topology"`
	Players  int      `json:"players"`
	Capacity int      `json:"capacity"`
	Tags     []string `json:"tags"`
}

// Room error codes sent back in error messages before the close.
const (
	ErrRoomNotFound     = "room_not_found"
	ErrRoomFull         = "room_full"
	ErrTopologyMismatch = "topology_mismatch"
	ErrRoomIdRequired   = "room_id_required"
)

// Lobby delta operations.
const (
	LobbyUpsert = "upsert"
	LobbyRemove = "remove"
)

type (
	// Join requests room membership, optionally creating the room first.
	Join struct {
		T            PT       `json:"type"`
		RoomId       string   `json:"room_id"`
		IsHostIntent bool     `json:"is_host_intent,omitempty"`
		Topology     Topology `json:"topology,omitempty"`
		Capacity     int      `json:"capacity,omitempty"`
		Tags         []string `json:"tags,omitempty"`
	}
	// Signal carries one sdp or ice blob to a single room member.
	Signal struct {
		T        PT   `json:"type"`
		TargetId int  `json:"target_id"`
		SDP      *SDP `json:"sdp,omitempty"`
		ICE      *ICE `json:"ice,omitempty"`
	}
	// LobbyQuery covers both list_lobbies and subscribe_lobbies.
	LobbyQuery struct {
		T          PT       `json:"type"`
		FilterTags []string `json:"filter_tags,omitempty"`
	}
	// Plain is any message that is nothing but its type tag.
	Plain struct {
		T PT `json:"type"`
	}
)

type (
	IdAssigned struct {
		T          PT                 `json:"type"`
		PeerId     int                `json:"peer_id"`
		HostId     int                `json:"host_id"`
		Capacity   int                `json:"capacity"`
		Topology   Topology           `json:"topology"`
		IceServers []config.IceServer `json:"ice_servers,omitempty"`
	}
	PeerChange struct {
		T      PT  `json:"type"`
		PeerId int `json:"peer_id"`
	}
	SignalFrom struct {
		T      PT   `json:"type"`
		FromId int  `json:"from_id"`
		SDP    *SDP `json:"sdp,omitempty"`
		ICE    *ICE `json:"ice,omitempty"`
	}
	LobbyRooms struct {
		T       PT          `json:"type"`
		Lobbies []LobbyRoom `json:"lobbies"`
	}
	LobbyDelta struct {
		T      PT         `json:"type"`
		Op     string     `json:"op"`
		RoomId string     `json:"room_id"`
		Lobby  *LobbyRoom `json:"lobby,omitempty"`
	}
	Error struct {
		T       PT     `json:"type"`
		Message string `json:"message"`
	}
)

func NewJoin(room string, host bool, t Topology, capacity int, tags []string) Join {
	return Join{T: MsgJoin, RoomId: room, IsHostIntent: host, Topology: t, Capacity: capacity, Tags: tags}
}
func NewSignal(target int, sdp *SDP, ice *ICE) Signal {
	return Signal{T: MsgSignal, TargetId: target, SDP: sdp, ICE: ice}
}
func NewListLobbies(tags []string) LobbyQuery {
	return LobbyQuery{T: MsgListLobbies, FilterTags: tags}
}
func NewSubscribeLobbies(tags []string) LobbyQuery {
	return LobbyQuery{T: MsgSubscribeLobbies, FilterTags: tags}
}

func NewIdAssigned(peer, host, capacity int, t Topology, ice []config.IceServer) IdAssigned {
	return IdAssigned{T: MsgIdAssigned, PeerId: peer, HostId: host, Capacity: capacity, Topology: t, IceServers: ice}
}
func NewPeerJoined(id int) PeerChange { return PeerChange{T: MsgPeerJoined, PeerId: id} }
func NewPeerLeft(id int) PeerChange   { return PeerChange{T: MsgPeerLeft, PeerId: id} }
func NewSignalFrom(from int, sdp *SDP, ice *ICE) SignalFrom {
	return SignalFrom{T: MsgSignal, FromId: from, SDP: sdp, ICE: ice}
}
func NewLobbyList(rooms []LobbyRoom) LobbyRooms {
	return LobbyRooms{T: MsgLobbyList, Lobbies: rooms}
}
func NewLobbySnapshot(rooms []LobbyRoom) LobbyRooms {
	return LobbyRooms{T: MsgLobbySnapshot, Lobbies: rooms}
}
func NewLobbyUpsert(room *LobbyRoom) LobbyDelta {
	return LobbyDelta{T: MsgLobbyDelta, Op: LobbyUpsert, RoomId: room.RoomId, Lobby: room}
}
func NewLobbyRemove(roomId string) LobbyDelta {
	return LobbyDelta{T: MsgLobbyDelta, Op: LobbyRemove, RoomId: roomId}
}
func NewError(message string) Error { return Error{T: MsgError, Message: message} }

var (
	PeerConnectedPacket = Plain{T: MsgPeerConnected}
	UnsubLobbiesPacket  = Plain{T: MsgUnsubLobbies}
	MatchReadyPacket    = Plain{T: MsgMatchReady}
	RoomClosedPacket    = Plain{T: MsgRoomClosed}
)

// Validate reports whether the signal is well-formed: a known target and
// exactly one of sdp or ice with the right shape. Anything else is a
// protocol violation the relay drops on the floor.
func (s *Signal) Validate() bool {
	if s.TargetId <= 0 {
		return false
	}
	if (s.SDP == nil) == (s.ICE == nil) {
		return false
	}
	if s.SDP != nil && !s.SDP.Valid() {
		return false
	}
	if s.ICE != nil && !s.ICE.Valid() {
		return false
	}
	return true
}

// WithDefaults fills the optional join fields the way the relay
// understands them: mesh topology unless told otherwise, and capacity
// seats when the request named none.
func (j Join) WithDefaults(capacity int) Join {
	if j.Topology == "" {
		j.Topology = TopologyMesh
	}
	if j.Capacity < 1 {
		j.Capacity = capacity
	}
	return j
}
