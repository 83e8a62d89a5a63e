package rtc

import (
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/network/socket"
)

// ApiFactory builds pion transports sharing one settings engine and,
// in the single port mode, one UDP socket. The media engine stays
// empty on purpose: data channels need no codecs.
type ApiFactory struct {
	api *webrtc.API
	log *logger.Logger

	mu   sync.Mutex
	conf webrtc.Configuration
}

func NewApiFactory(conf config.Webrtc, log *logger.Logger) (*ApiFactory, error) {
	m := &webrtc.MediaEngine{}
	i := &interceptor.Registry{}
	if !conf.DisableDefaultInterceptors {
		if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return nil, err
		}
	}
	customLogger := logger.NewPionLogger(log, conf.LogLevel)
	s := webrtc.SettingEngine{LoggerFactory: customLogger}
	if conf.HasDtlsRole() {
		log.Info().Msgf("a custom DTLS role [%v]", conf.DtlsRole)
		if err := s.SetAnsweringDTLSRole(webrtc.DTLSRole(conf.DtlsRole)); err != nil {
			return nil, err
		}
	}
	if conf.IceLite {
		s.SetLite(conf.IceLite)
	}
	if conf.HasPortRange() {
		if err := s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return nil, err
		}
	}
	if conf.HasSinglePort() {
		udp, err := socket.ListenUDPRoll(conf.SinglePort)
		if err != nil {
			return nil, err
		}
		s.SetICEUDPMux(webrtc.NewICEUDPMux(customLogger, udp))
		log.Info().Msgf("the single port mode is active for %s", udp.LocalAddr())
	}
	if conf.HasIceIpMap() {
		s.SetNAT1To1IPs([]string{conf.IceIpMap}, webrtc.ICECandidateTypeHost)
		log.Info().Msgf("the NAT mapping is active for %v", conf.IceIpMap)
	}

	f := &ApiFactory{
		api: webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		log: log,
	}
	f.SetIceServers(conf.IceServers)
	return f, nil
}

// SetIceServers swaps the ICE server list for transports made after
// the call.
func (f *ApiFactory) SetIceServers(servers []config.IceServer) {
	c := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	for _, server := range servers {
		c.ICEServers = append(c.ICEServers, webrtc.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	f.mu.Lock()
	f.conf = c
	f.mu.Unlock()
}

func (f *ApiFactory) NewTransport() (Transport, error) {
	f.mu.Lock()
	conf := f.conf
	f.mu.Unlock()
	conn, err := f.api.NewPeerConnection(conf)
	if err != nil {
		return nil, err
	}
	return newPeer(conn, f.log), nil
}
