// Package session implements the relay client: a tick-driven state
// machine that joins rooms over the signaling connection, negotiates a
// transport per remote peer, and mirrors the lobby listing.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofrs/uuid"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/network/websocket"
	"github.com/rondohq/rondo/pkg/rtc"
)

const (
	// tickEvery paces the Run convenience loop.
	tickEvery = 50 * time.Millisecond
	// inboxBuffer holds inbound frames between ticks. Pushes block when
	// it fills, which preserves arrival order at the cost of read pump
	// backpressure.
	inboxBuffer = 256

	defaultHandshakeTimeout = 15 * time.Second
)

// Session is one relay client. Everything moves during Tick, on the
// caller's goroutine: inbound signaling is drained in arrival order,
// then the peer transports are polled, then the lobby feed, then the
// handshake deadlines. Events and LobbyRooms are safe from any
// goroutine; the rest of the API belongs to the ticking goroutine.
type Session struct {
	id      string
	conf    config.Peer
	log     *logger.Logger
	factory rtc.Factory

	lifecycle fsm
	events    *events
	cache     *LobbyCache
	neg       *negotiator

	signal  *websocket.WS
	inbox   chan []byte
	feed    *websocket.WS
	feedbox chan []byte

	peerId   int
	hostId   int
	capacity int
	topology api.Topology

	// ready is set on match_ready; links is how many transports are
	// still expected to come up before the relay can be dropped.
	ready bool
	links int
}

func New(conf config.Peer, factory rtc.Factory, log *logger.Logger) *Session {
	if conf.HandshakeTimeout <= 0 {
		conf.HandshakeTimeout = defaultHandshakeTimeout
	}
	id := uuid.Must(uuid.NewV4()).String()
	s := &Session{
		id:      id,
		conf:    conf,
		factory: factory,
		cache:   newLobbyCache(),
		inbox:   make(chan []byte, inboxBuffer),
		feedbox: make(chan []byte, inboxBuffer),
	}
	s.log = log.Extend(log.With().Str("sid", id[:8]))
	s.events = newEvents(s.log)
	s.neg = newNegotiator(factory, conf.HandshakeTimeout, s.log)
	return s
}

func (s *Session) State() State                { return s.lifecycle.current() }
func (s *Session) PeerId() int                 { return s.peerId }
func (s *Session) Events() <-chan Event        { return s.events.ch }
func (s *Session) LobbyRooms() []api.LobbyRoom { return s.cache.Rooms() }

// Host creates the room and takes its first seat, leaving any current
// room first.
func (s *Session) Host(roomId string, topology api.Topology, capacity int, tags []string) error {
	return s.start(api.NewJoin(roomId, true, topology, capacity, tags))
}

// Join enters an existing room, leaving any current room first.
func (s *Session) Join(roomId string, topology api.Topology) error {
	return s.start(api.NewJoin(roomId, false, topology, 0, nil))
}

func (s *Session) start(j api.Join) error {
	s.Leave()
	ws, err := s.dial(s.inbox)
	if err != nil {
		return fmt.Errorf("relay is unreachable: %w", err)
	}
	if err := s.lifecycle.to(Signaling); err != nil {
		ws.Close()
		return err
	}
	s.signal = ws
	s.emitState()
	data, err := api.Wrap(j)
	if err != nil {
		s.Leave()
		return err
	}
	if err := ws.Write(data); err != nil {
		s.Leave()
		return err
	}
	s.log.Info().Msgf("joining room %v", j.RoomId)
	return nil
}

// Leave tears the session down from any state and lands back in idle:
// deadlines die with their records, transports are closed, and the
// signaling socket is dropped. Redundant calls are no-ops.
func (s *Session) Leave() {
	if s.lifecycle.current() == Idle {
		return
	}
	if s.lifecycle.current() != Cleanup {
		if err := s.lifecycle.to(Cleanup); err != nil {
			s.log.Error().Err(err).Msg("lifecycle")
			return
		}
		s.emitState()
	}
	s.neg.reset()
	if s.signal != nil {
		s.signal.Close()
		s.signal = nil
	}
	drain(s.inbox)
	s.peerId, s.hostId, s.capacity, s.topology = 0, 0, 0, ""
	s.ready, s.links = false, 0
	if err := s.lifecycle.to(Idle); err != nil {
		s.log.Error().Err(err).Msg("lifecycle")
		return
	}
	s.emitState()
}

// Close leaves any room and drops the lobby feed connection.
func (s *Session) Close() {
	s.Leave()
	if s.feed != nil {
		s.feed.Close()
		s.feed = nil
	}
}

// Tick makes one pass of progress: signaling first so membership and
// remote signals land before transports are polled, the lobby feed
// after, deadlines and housekeeping last.
func (s *Session) Tick(now time.Time) {
	s.drainSignaling(now)
	s.pollPeers(now)
	s.drainFeed()
	s.checkDeadlines(now)
	s.maybeDetach()
	s.checkSocket()
}

// Run ticks the session until the context ends.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Tick(t)
		}
	}
}

// SubscribeLobbies opens the lobby feed connection when there is none
// and asks for the filtered stream; the snapshot and every delta land
// in the cache during Tick.
func (s *Session) SubscribeLobbies(filter []string) error {
	if err := s.ensureFeed(); err != nil {
		return err
	}
	return s.sendFeed(api.NewSubscribeLobbies(filter))
}

func (s *Session) UnsubscribeLobbies() error {
	if s.feed == nil {
		return nil
	}
	return s.sendFeed(api.UnsubLobbiesPacket)
}

// ListLobbies asks for a one-shot listing; the reply replaces the
// cache the same way a snapshot does.
func (s *Session) ListLobbies(filter []string) error {
	if err := s.ensureFeed(); err != nil {
		return err
	}
	return s.sendFeed(api.NewListLobbies(filter))
}

func (s *Session) drainSignaling(now time.Time) {
	for {
		select {
		case message := <-s.inbox:
			s.handleSignaling(message, now)
		default:
			return
		}
	}
}

func (s *Session) handleSignaling(message []byte, now time.Time) {
	pt, err := api.Peek(message)
	if err != nil {
		s.log.Debug().Msg("unreadable relay packet")
		return
	}
	switch pt {
	case api.MsgIdAssigned:
		in := api.Unwrap[api.IdAssigned](message)
		if in == nil {
			return
		}
		s.peerId, s.hostId = in.PeerId, in.HostId
		s.capacity, s.topology = in.Capacity, in.Topology
		if len(in.IceServers) > 0 {
			s.factory.SetIceServers(in.IceServers)
		}
		s.log.Info().Msgf("assigned peer id %v (host %v, %v, %v seats)",
			in.PeerId, in.HostId, in.Topology, in.Capacity)
	case api.MsgPeerJoined:
		in := api.Unwrap[api.PeerChange](message)
		if in == nil {
			return
		}
		if s.ready {
			s.links++
		}
		if s.shouldInitiate(in.PeerId) {
			if err := s.neg.initiate(in.PeerId, now); err != nil {
				s.fatal(fmt.Errorf("offer to peer %v failed: %w", in.PeerId, err))
			}
		}
	case api.MsgPeerLeft:
		in := api.Unwrap[api.PeerChange](message)
		if in == nil {
			return
		}
		s.neg.drop(in.PeerId)
		if s.ready {
			s.links--
		}
		s.events.emit(Event{T: EventPeerLeft, Peer: in.PeerId})
	case api.MsgSignal:
		in := api.Unwrap[api.SignalFrom](message)
		if in == nil {
			return
		}
		if err := s.neg.handleSignal(in, now); err != nil {
			s.fatal(fmt.Errorf("negotiation with peer %v failed: %w", in.FromId, err))
		}
	case api.MsgMatchReady:
		if err := s.lifecycle.to(Connected); err != nil {
			s.log.Debug().Err(err).Msg("match_ready ignored")
			return
		}
		s.ready = true
		s.links = s.expectedLinks()
		s.events.emit(Event{T: EventMatchReady})
		s.emitState()
	case api.MsgRoomClosed:
		s.events.emit(Event{T: EventRoomClosed})
		s.Leave()
	case api.MsgError:
		in := api.Unwrap[api.Error](message)
		if in == nil {
			return
		}
		s.fatal(errors.New(in.Message))
	default:
		s.log.Debug().Msgf("unexpected relay packet %v", pt)
	}
}

// shouldInitiate applies the initiator policy. In mesh rooms every
// seated member offers toward the newcomer it is told about; since
// peer ids grow monotonically and joiners are never told about the
// existing members, the lower id always offers and glare cannot
// happen. In server_authoritative rooms only the host offers.
func (s *Session) shouldInitiate(peer int) bool {
	if peer == s.peerId {
		return false
	}
	if s.topology == api.TopologyAuthority {
		return s.peerId == s.hostId
	}
	return true
}

func (s *Session) pollPeers(now time.Time) {
	res := s.neg.poll()
	for _, sig := range res.outs {
		s.sendPacket(api.NewSignal(sig.target, sig.out.SDP, sig.out.ICE))
	}
	for _, id := range res.connected {
		s.log.Info().Msgf("peer %v transport connected", id)
		s.sendPacket(api.PeerConnectedPacket)
		s.events.emit(Event{T: EventPeerConnected, Peer: id})
	}
	for _, id := range res.failed {
		s.neg.drop(id)
		s.fatal(fmt.Errorf("transport with peer %v failed", id))
		return
	}
}

func (s *Session) drainFeed() {
	for {
		select {
		case message := <-s.feedbox:
			s.handleFeed(message)
		default:
			return
		}
	}
}

func (s *Session) handleFeed(message []byte) {
	pt, err := api.Peek(message)
	if err != nil {
		s.log.Debug().Msg("unreadable feed packet")
		return
	}
	switch pt {
	case api.MsgLobbySnapshot, api.MsgLobbyList:
		in := api.Unwrap[api.LobbyRooms](message)
		if in == nil {
			return
		}
		s.cache.ApplySnapshot(in.Lobbies)
		s.events.emit(Event{T: EventLobbyUpdated, Rooms: s.cache.Rooms()})
	case api.MsgLobbyDelta:
		in := api.Unwrap[api.LobbyDelta](message)
		if in == nil {
			return
		}
		s.cache.ApplyDelta(in)
		s.events.emit(Event{T: EventLobbyUpdated, Rooms: s.cache.Rooms()})
	default:
		s.log.Debug().Msgf("unexpected feed packet %v", pt)
	}
}

func (s *Session) checkDeadlines(now time.Time) {
	for _, id := range s.neg.expired(now) {
		s.fatal(fmt.Errorf("handshake timeout with peer %v", id))
		return
	}
}

// maybeDetach closes the signaling socket once the match is ready and
// every expected link is up; past that point the relay has nothing
// left to carry for this client.
func (s *Session) maybeDetach() {
	if s.lifecycle.current() != Connected || s.signal == nil {
		return
	}
	if s.neg.size() >= s.links && s.neg.connectedCount() == s.neg.size() {
		s.log.Info().Msg("all peers connected, detaching from the relay")
		s.signal.Close()
		s.signal = nil
	}
}

// checkSocket turns an unexpected signaling socket death into a fatal
// error, but only while the session still needs the relay.
func (s *Session) checkSocket() {
	if s.lifecycle.current() != Signaling || s.signal == nil {
		return
	}
	select {
	case <-s.signal.Done:
		s.fatal(errors.New("signaling socket closed"))
	default:
	}
}

// fatal funnels every client-fatal condition through the one leave
// path.
func (s *Session) fatal(err error) {
	state := s.lifecycle.current()
	if state == Idle || state == Cleanup {
		return
	}
	s.log.Warn().Err(err).Msg("session error")
	s.events.emit(Event{T: EventConnectionError, Err: err})
	s.Leave()
}

// expectedLinks is how many transports this member ends up with once
// the room seals: one per other member in a mesh, a single link to the
// host for a plain member of a server_authoritative room.
func (s *Session) expectedLinks() int {
	if s.topology == api.TopologyAuthority && s.peerId != s.hostId {
		return 1
	}
	return s.capacity - 1
}

func (s *Session) ensureFeed() error {
	if s.feed != nil {
		select {
		case <-s.feed.Done:
			s.feed = nil
		default:
			return nil
		}
	}
	ws, err := s.dial(s.feedbox)
	if err != nil {
		return fmt.Errorf("lobby feed is unreachable: %w", err)
	}
	s.feed = ws
	return nil
}

func (s *Session) sendFeed(m any) error {
	data, err := api.Wrap(m)
	if err != nil {
		return err
	}
	return s.feed.Write(data)
}

func (s *Session) sendPacket(m any) {
	if s.signal == nil {
		return
	}
	data, err := api.Wrap(m)
	if err != nil {
		s.log.Error().Err(err).Msgf("broken packet %v", m)
		return
	}
	if err := s.signal.Write(data); err != nil {
		s.log.Warn().Err(err).Msg("signaling write fail")
	}
}

func (s *Session) dial(box chan []byte) (*websocket.WS, error) {
	addr := url.URL{Scheme: "ws", Host: s.conf.Network.RelayAddress, Path: "/ws"}
	if s.conf.Network.Secure {
		addr.Scheme = "wss"
	}
	ws, err := websocket.NewClient(addr, s.log)
	if err != nil {
		return nil, err
	}
	ws.SetMessageHandler(func(message []byte, err error) {
		if err != nil {
			return
		}
		box <- message
	})
	return ws, nil
}

func (s *Session) emitState() {
	s.events.emit(Event{T: EventStateChanged, State: s.lifecycle.current()})
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
