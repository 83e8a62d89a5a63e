package rtc

import (
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/logger"
)

// Peer runs one pion peer connection with a single data channel. The
// offering side declares the channel before the offer so it rides in
// the SDP; the answering side adopts it from OnDataChannel. The link
// counts as connected when the channel opens, not when ICE settles.
type Peer struct {
	conn *webrtc.PeerConnection
	log  *logger.Logger

	mu        sync.Mutex
	state     TransportState
	out       []Outbound
	pending   []webrtc.ICECandidateInit
	remoteSet bool
}

func newPeer(conn *webrtc.PeerConnection, log *logger.Logger) *Peer {
	p := &Peer{conn: conn, log: log, state: StateNew}
	conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		ice := &api.ICE{Candidate: init.Candidate}
		if init.SDPMid != nil {
			ice.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			ice.SDPMLineIndex = *init.SDPMLineIndex
		}
		p.queue(Outbound{ICE: ice})
	})
	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Debug().Msgf("peer connection state is %v", state)
		switch state {
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
			p.setState(StateFailed)
		case webrtc.PeerConnectionStateClosed:
			p.setState(StateClosed)
		}
	})
	conn.OnDataChannel(func(ch *webrtc.DataChannel) { p.adopt(ch) })
	return p
}

func (p *Peer) CreateOffer() error {
	ch, err := p.conn.CreateDataChannel("data", nil)
	if err != nil {
		return err
	}
	p.adopt(ch)
	p.setState(StateConnecting)
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := p.conn.SetLocalDescription(offer); err != nil {
		return err
	}
	p.queue(Outbound{SDP: &api.SDP{Type: api.SDPOffer, SDP: offer.SDP}})
	return nil
}

func (p *Peer) SetRemoteDescription(sdp *api.SDP) error {
	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(sdp.Type), SDP: sdp.SDP}
	if err := p.conn.SetRemoteDescription(desc); err != nil {
		return err
	}
	p.flushPending()
	if desc.Type == webrtc.SDPTypeOffer {
		p.setState(StateConnecting)
		answer, err := p.conn.CreateAnswer(nil)
		if err != nil {
			return err
		}
		if err := p.conn.SetLocalDescription(answer); err != nil {
			return err
		}
		p.queue(Outbound{SDP: &api.SDP{Type: api.SDPAnswer, SDP: answer.SDP}})
	}
	return nil
}

// AddICECandidate applies a remote candidate, holding it back until
// the remote description lands when trickled candidates outrun it.
func (p *Peer) AddICECandidate(ice *api.ICE) error {
	mid, idx := ice.SDPMid, ice.SDPMLineIndex
	cand := webrtc.ICECandidateInit{Candidate: ice.Candidate, SDPMid: &mid, SDPMLineIndex: &idx}
	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, cand)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.conn.AddICECandidate(cand)
}

func (p *Peer) Poll() (TransportState, []Outbound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.out
	p.out = nil
	return p.state, out
}

func (p *Peer) Close() {
	if err := p.conn.Close(); err != nil {
		p.log.Warn().Err(err).Msg("peer connection close fail")
	}
	p.setState(StateClosed)
}

func (p *Peer) adopt(ch *webrtc.DataChannel) {
	ch.OnOpen(func() {
		p.log.Debug().Msgf("data channel [%v] is open", ch.Label())
		p.setState(StateConnected)
	})
	ch.OnClose(func() {
		p.log.Debug().Msgf("data channel [%v] is closed", ch.Label())
		p.setState(StateClosed)
	})
}

func (p *Peer) flushPending() {
	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, cand := range pending {
		if err := p.conn.AddICECandidate(cand); err != nil {
			p.log.Warn().Err(err).Msg("late candidate was not accepted")
		}
	}
}

func (p *Peer) queue(out Outbound) {
	p.mu.Lock()
	p.out = append(p.out, out)
	p.mu.Unlock()
}

// setState moves the link state forward. Closed is terminal, and a
// failed link can only be closed.
func (p *Peer) setState(state TransportState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed || p.state == state {
		return
	}
	if p.state == StateFailed && state != StateClosed {
		return
	}
	p.state = state
}
