package rtc

import (
	"sync"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/config"
)

// Fake is an in-memory transport that negotiates on command. It
// answers offers like the real thing but moves to connected only when
// a test says so, which makes handshake order and timeout behavior
// reproducible.
type Fake struct {
	mu    sync.Mutex
	state TransportState
	out   []Outbound

	remote []api.SDP
	cands  []api.ICE
}

func (f *Fake) CreateOffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateConnecting
	f.out = append(f.out, Outbound{SDP: &api.SDP{Type: api.SDPOffer, SDP: "o=fake"}})
	return nil
}

func (f *Fake) SetRemoteDescription(sdp *api.SDP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = append(f.remote, *sdp)
	if sdp.Type == api.SDPOffer {
		f.state = StateConnecting
		f.out = append(f.out, Outbound{SDP: &api.SDP{Type: api.SDPAnswer, SDP: "a=fake"}})
	}
	return nil
}

func (f *Fake) AddICECandidate(ice *api.ICE) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cands = append(f.cands, *ice)
	return nil
}

func (f *Fake) Poll() (TransportState, []Outbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.out
	f.out = nil
	return f.state, out
}

func (f *Fake) Close() {
	f.mu.Lock()
	f.state = StateClosed
	f.mu.Unlock()
}

// Connect flips the link to connected, as if the channel opened.
func (f *Fake) Connect() {
	f.mu.Lock()
	f.state = StateConnected
	f.mu.Unlock()
}

// Break flips the link to failed, as if ICE gave up.
func (f *Fake) Break() {
	f.mu.Lock()
	f.state = StateFailed
	f.mu.Unlock()
}

// Trickle queues a locally gathered candidate.
func (f *Fake) Trickle(candidate string) {
	f.mu.Lock()
	f.out = append(f.out, Outbound{ICE: &api.ICE{Candidate: candidate}})
	f.mu.Unlock()
}

// Remote returns the remote descriptions applied so far.
func (f *Fake) Remote() []api.SDP {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.SDP{}, f.remote...)
}

// Candidates returns the remote candidates applied so far.
func (f *Fake) Candidates() []api.ICE {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.ICE{}, f.cands...)
}

// FakeFactory hands out Fakes and remembers them in creation order.
type FakeFactory struct {
	mu   sync.Mutex
	made []*Fake
	ice  []config.IceServer
}

func (f *FakeFactory) SetIceServers(servers []config.IceServer) {
	f.mu.Lock()
	f.ice = servers
	f.mu.Unlock()
}

func (f *FakeFactory) NewTransport() (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &Fake{state: StateNew}
	f.made = append(f.made, t)
	return t, nil
}

// Made returns every transport the factory produced, oldest first.
func (f *FakeFactory) Made() []*Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Fake{}, f.made...)
}

// IceServers returns the last list the factory was given.
func (f *FakeFactory) IceServers() []config.IceServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ice
}
