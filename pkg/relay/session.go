package relay

import (
	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/com"
	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/network/websocket"
)

// Session is one signaling connection. Inbound messages are handled on
// the socket read pump, one at a time, and the final cleanup runs only
// after that pump has stopped, so room, peerId and subscribed need no
// lock. Send stays safe to call from any goroutine.
type Session struct {
	id   com.Uid
	ws   *websocket.WS
	reg  *Registry
	feed *Lobby
	conf config.Rooms
	log  *logger.Logger

	room       *Room
	peerId     int
	subscribed bool
}

func NewSession(ws *websocket.WS, reg *Registry, feed *Lobby, conf config.Rooms, log *logger.Logger) *Session {
	s := &Session{id: ws.Id(), ws: ws, reg: reg, feed: feed, conf: conf}
	s.log = log.Extend(log.With().Str("cid", s.id.Short()))
	return s
}

func (s *Session) Id() com.Uid { return s.id }
func (s *Session) Disconnect() { s.ws.Close() }

// Send serializes the message and queues it on the socket. A full
// queue costs this consumer the message, nobody else stalls for it.
func (s *Session) Send(m any) {
	data, err := api.Wrap(m)
	if err != nil {
		s.log.Error().Err(err).Msgf("broken packet %v", m)
		return
	}
	if err := s.ws.Write(data); err == websocket.ErrBackpressure {
		msgsDropped.WithLabelValues(dropBackpressure).Inc()
		s.log.Warn().Msg("slow consumer, packet dropped")
	}
}

// HandleRequests wires the inbound dispatch into the socket.
func (s *Session) HandleRequests() {
	s.ws.SetMessageHandler(func(message []byte, err error) {
		if err != nil {
			return
		}
		s.handle(message)
	})
}

func (s *Session) WaitDisconnect() { <-s.ws.Done }

// Finish releases everything the connection held once it is gone.
func (s *Session) Finish() {
	if s.subscribed {
		s.feed.Unsubscribe(s)
		s.subscribed = false
		lobbySubscribers.Dec()
	}
	s.leaveRoom()
}

func (s *Session) handle(message []byte) {
	pt, err := api.Peek(message)
	if err != nil {
		s.drop(dropMalformed, "unreadable packet")
		return
	}
	switch pt {
	case api.MsgJoin:
		s.handleJoin(message)
	case api.MsgSignal:
		s.handleSignal(message)
	case api.MsgPeerConnected:
		s.handlePeerConnected()
	case api.MsgListLobbies:
		s.handleListLobbies(message)
	case api.MsgSubscribeLobbies:
		s.handleSubscribeLobbies(message)
	case api.MsgUnsubLobbies:
		s.handleUnsubLobbies()
	default:
		s.drop(dropUnexpected, "unknown packet "+string(pt))
	}
}

// handleJoin seats the connection in a room, leaving its current room
// first when there is one. Room failures are the one loud error path:
// the client gets the reason and then the door.
func (s *Session) handleJoin(message []byte) {
	in := api.Unwrap[api.Join](message)
	if in == nil {
		s.drop(dropMalformed, "bad join")
		return
	}
	j := in.WithDefaults(s.conf.DefaultCapacity)
	if !j.Topology.Valid() {
		s.fail(roomErr(api.ErrTopologyMismatch))
		return
	}
	s.leaveRoom()
	res, err := s.reg.CreateOrJoin(j, s)
	if err != nil {
		s.fail(err)
		return
	}
	s.room, s.peerId = res.Room, res.PeerId
	s.log.Info().Msgf("peer %v seated in room %v", s.peerId, s.room.Id())
}

func (s *Session) handleSignal(message []byte) {
	if s.room == nil {
		s.drop(dropUnexpected, "signal outside a room")
		return
	}
	in := api.Unwrap[api.Signal](message)
	if in == nil || !in.Validate() {
		s.drop(dropMalformed, "bad signal")
		return
	}
	if !s.room.relay(s.peerId, in) {
		s.drop(dropViolation, "signal rejected")
		return
	}
	signalsRelayed.Inc()
}

// handlePeerConnected is an advisory liveness nudge for the room.
func (s *Session) handlePeerConnected() {
	if s.room == nil {
		s.drop(dropUnexpected, "peer_connected outside a room")
		return
	}
	s.room.touch()
}

func (s *Session) handleListLobbies(message []byte) {
	in := api.Unwrap[api.LobbyQuery](message)
	if in == nil {
		s.drop(dropMalformed, "bad lobby query")
		return
	}
	s.Send(api.NewLobbyList(s.feed.List(in.FilterTags)))
}

func (s *Session) handleSubscribeLobbies(message []byte) {
	in := api.Unwrap[api.LobbyQuery](message)
	if in == nil {
		s.drop(dropMalformed, "bad lobby query")
		return
	}
	s.feed.Subscribe(s, in.FilterTags)
	if !s.subscribed {
		s.subscribed = true
		lobbySubscribers.Inc()
	}
}

func (s *Session) handleUnsubLobbies() {
	if !s.subscribed {
		return
	}
	s.feed.Unsubscribe(s)
	s.subscribed = false
	lobbySubscribers.Dec()
}

func (s *Session) leaveRoom() {
	if s.room == nil {
		return
	}
	s.reg.RemoveMember(s.room, s.peerId)
	s.log.Info().Msgf("peer %v left room %v", s.peerId, s.room.Id())
	s.room, s.peerId = nil, 0
}

// drop swallows a message without feedback, as the protocol demands,
// and leaves a trace in the log and the counters.
func (s *Session) drop(reason string, what string) {
	msgsDropped.WithLabelValues(reason).Inc()
	s.log.Debug().Msgf("dropped: %v", what)
}

// fail reports a room failure to the client and closes the connection.
func (s *Session) fail(err *RoomError) {
	s.log.Info().Msgf("rejected: %v", err.Code)
	s.Send(api.NewError(err.Code))
	s.ws.Close()
}
