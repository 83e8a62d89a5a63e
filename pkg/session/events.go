package session

import (
	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/logger"
)

// EventType tags the values coming out of Session.Events.
type EventType string

const (
	EventStateChanged    EventType = "state_changed"
	EventLobbyUpdated    EventType = "lobby_updated"
	EventPeerConnected   EventType = "peer_connected"
	EventPeerLeft        EventType = "peer_left"
	EventMatchReady      EventType = "match_ready"
	EventRoomClosed      EventType = "room_closed"
	EventConnectionError EventType = "connection_error"
)

// Event is one tagged notification; which extra fields are set depends
// on the type.
type Event struct {
	T     EventType
	State State
	Peer  int
	Rooms []api.LobbyRoom
	Err   error
}

// eventBuffer caps the outbound event queue; a consumer that stops
// draining loses events instead of freezing the tick loop.
const eventBuffer = 32

type events struct {
	ch  chan Event
	log *logger.Logger
}

func newEvents(log *logger.Logger) *events {
	return &events{ch: make(chan Event, eventBuffer), log: log}
}

func (e *events) emit(ev Event) {
	select {
	case e.ch <- ev:
	default:
		e.log.Warn().Msgf("event %v dropped, consumer is behind", ev.T)
	}
}
