// Package api defines the wire protocol shared by the relay server and its peers.
//
// Every message is a single flat JSON object carrying a "type" discriminator
// next to the message fields:
//
//	{"type":"join","room_id":"alpha","is_host_intent":true,"topology":"mesh","capacity":2}
//
// Messages are decoded in two passes: first the type tag alone, then the full
// typed structure once the handler knows what to expect. Unknown or malformed
// input never produces a partial message, only an error from the first pass or
// a nil from Unwrap.
package api

import (
	"errors"

	"github.com/goccy/go-json"
)

// PT is a message type tag.
type PT string

// Client to relay. Signal travels both ways: with target_id inbound,
// rewritten to from_id on the way out.
const (
	MsgJoin             PT = "join"
	MsgSignal           PT = "signal"
	MsgPeerConnected    PT = "peer_connected"
	MsgListLobbies      PT = "list_lobbies"
	MsgSubscribeLobbies PT = "subscribe_lobbies"
	MsgUnsubLobbies     PT = "unsubscribe_lobbies"
)

// Relay to client.
const (
	MsgIdAssigned    PT = "id_assigned"
	MsgPeerJoined    PT = "peer_joined"
	MsgPeerLeft      PT = "peer_left"
	MsgLobbyList     PT = "lobby_list"
	MsgLobbySnapshot PT = "lobby_snapshot"
	MsgLobbyDelta    PT = "lobby_delta"
	MsgMatchReady    PT = "match_ready"
	MsgRoomClosed    PT = "room_closed"
	MsgError         PT = "error"
)

func (p PT) String() string { return string(p) }

var (
	ErrMalformed = errors.New("malformed")
	ErrNoType    = errors.New("no message type")
)

// envelope is the first-pass view of any inbound message.
type envelope struct {
	T PT `json:"type"`
}

// Peek extracts the type tag of a raw message.
func Peek(data []byte) (PT, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return "", ErrMalformed
	}
	if e.T == "" {
		return "", ErrNoType
	}
	return e.T, nil
}

// Unwrap decodes the full message of an already peeked type,
// returns nil when the data doesn't fit.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// Wrap encodes an outbound message.
func Wrap(m any) ([]byte, error) { return json.Marshal(m) }
