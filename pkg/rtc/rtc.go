// Package rtc binds peer transports to the signaling layer. The
// negotiation loop drives transports through the Transport interface
// only, so tests can swap the pion stack for a deterministic fake.
package rtc

import (
	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/config"
)

// TransportState tracks one peer link from first signal to data flow.
type TransportState int

const (
	StateNew TransportState = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s TransportState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Outbound is a locally produced signaling payload on its way to the
// remote side of the transport. Exactly one field is set.
type Outbound struct {
	SDP *api.SDP
	ICE *api.ICE
}

// Transport is one peer link. CreateOffer starts negotiation from this
// side; SetRemoteDescription applies the remote description and, for
// offers, produces the answer; Poll reports the link state and drains
// whatever signals the transport generated since the last poll.
type Transport interface {
	CreateOffer() error
	SetRemoteDescription(sdp *api.SDP) error
	AddICECandidate(ice *api.ICE) error
	Poll() (TransportState, []Outbound)
	Close()
}

// Factory mints transports, one per remote peer. The ICE server list
// usually comes from the relay on join, so it is swappable after the
// factory is built.
type Factory interface {
	SetIceServers(servers []config.IceServer)
	NewTransport() (Transport, error)
}
