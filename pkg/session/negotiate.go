package session

import (
	"sort"
	"time"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/rtc"
)

// role says which side of the offer-answer exchange we take.
type role int

const (
	offerer role = iota
	answerer
)

// peerRecord tracks negotiation with one remote peer. The deadline is
// armed when the record is created and zeroed once the link connects;
// a record that still carries a deadline past its time is a handshake
// timeout.
type peerRecord struct {
	id        int
	role      role
	transport rtc.Transport
	state     rtc.TransportState
	deadline  time.Time
	acked     bool
}

// outboundSignal is a locally produced signal addressed to one peer.
type outboundSignal struct {
	target int
	out    rtc.Outbound
}

// negotiator owns the peer records and the transports under them.
// Only the session tick goroutine touches it.
type negotiator struct {
	factory rtc.Factory
	log     *logger.Logger
	timeout time.Duration
	peers   map[int]*peerRecord
}

func newNegotiator(factory rtc.Factory, timeout time.Duration, log *logger.Logger) *negotiator {
	return &negotiator{factory: factory, log: log, timeout: timeout, peers: make(map[int]*peerRecord)}
}

// initiate starts an offer toward a freshly announced peer. Nothing
// happens when a record already exists.
func (n *negotiator) initiate(peerId int, now time.Time) error {
	if _, ok := n.peers[peerId]; ok {
		return nil
	}
	t, err := n.factory.NewTransport()
	if err != nil {
		return err
	}
	n.peers[peerId] = &peerRecord{id: peerId, role: offerer, transport: t, deadline: now.Add(n.timeout)}
	n.log.Debug().Msgf("offering to peer %v", peerId)
	return t.CreateOffer()
}

// ensure returns the record for the peer, creating an answering one on
// first contact.
func (n *negotiator) ensure(peerId int, now time.Time) (*peerRecord, error) {
	if rec, ok := n.peers[peerId]; ok {
		return rec, nil
	}
	t, err := n.factory.NewTransport()
	if err != nil {
		return nil, err
	}
	rec := &peerRecord{id: peerId, role: answerer, transport: t, deadline: now.Add(n.timeout)}
	n.peers[peerId] = rec
	n.log.Debug().Msgf("answering peer %v", peerId)
	return rec, nil
}

// handleSignal applies one inbound signal, creating the sender's
// record lazily when this is the first we hear of it.
func (n *negotiator) handleSignal(in *api.SignalFrom, now time.Time) error {
	rec, err := n.ensure(in.FromId, now)
	if err != nil {
		return err
	}
	if in.SDP != nil {
		return rec.transport.SetRemoteDescription(in.SDP)
	}
	if in.ICE != nil {
		return rec.transport.AddICECandidate(in.ICE)
	}
	return nil
}

// drop forgets the peer and releases its transport.
func (n *negotiator) drop(peerId int) {
	if rec, ok := n.peers[peerId]; ok {
		rec.transport.Close()
		delete(n.peers, peerId)
	}
}

// reset releases every record; safe to call repeatedly.
func (n *negotiator) reset() {
	for id, rec := range n.peers {
		rec.transport.Close()
		delete(n.peers, id)
	}
}

// pollResult is what one pass over the records turned up.
type pollResult struct {
	outs      []outboundSignal
	connected []int
	failed    []int
}

// poll refreshes every record from its transport: drains outbound
// signals, disarms the deadline of a link on its first connected
// report, and flags links that died. Records are visited in peer id
// order so the produced signal sequence is stable.
func (n *negotiator) poll() (res pollResult) {
	for _, id := range n.ids() {
		rec := n.peers[id]
		state, outs := rec.transport.Poll()
		for _, out := range outs {
			res.outs = append(res.outs, outboundSignal{target: id, out: out})
		}
		prev := rec.state
		rec.state = state
		switch state {
		case rtc.StateConnected:
			if prev != rtc.StateConnected {
				rec.deadline = time.Time{}
			}
			if !rec.acked {
				rec.acked = true
				res.connected = append(res.connected, id)
			}
		case rtc.StateFailed, rtc.StateClosed:
			res.failed = append(res.failed, id)
		}
	}
	return res
}

// expired returns the peers whose handshake deadline has passed,
// lowest id first.
func (n *negotiator) expired(now time.Time) (ids []int) {
	for id, rec := range n.peers {
		if !rec.deadline.IsZero() && now.After(rec.deadline) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (n *negotiator) size() int { return len(n.peers) }

func (n *negotiator) connectedCount() (c int) {
	for _, rec := range n.peers {
		if rec.state == rtc.StateConnected {
			c++
		}
	}
	return c
}

func (n *negotiator) ids() []int {
	ids := make([]int, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
