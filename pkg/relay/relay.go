package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/monitoring"
	"github.com/rondohq/rondo/pkg/service"
)

// Relay bundles the signaling server with its side services: the
// monitoring endpoint, the stale room sweeper, and the config watcher
// that lets ICE servers change without a restart.
type Relay struct {
	conf     config.RelayConfig
	log      *logger.Logger
	hub      *Hub
	ice      *iceStore
	watcher  *config.Watcher
	services service.Group
}

func New(conf config.RelayConfig, log *logger.Logger) (*Relay, error) {
	r := &Relay{conf: conf, log: log, ice: newIceStore(conf.Webrtc.IceServers)}
	r.hub = NewHub(conf, r.ice.get, log)

	server, err := NewHTTPServer(conf, r.hub, log)
	if err != nil {
		return nil, err
	}
	r.services.Add(server, newSweeper(r.hub, conf.Relay.Rooms.SweepEvery, log))
	if conf.Relay.Monitoring.IsEnabled() {
		r.services.Add(monitoring.New(conf.Relay.Monitoring, "relay", log))
	}
	return r, nil
}

func (r *Relay) Run() {
	r.watchConfig()
	r.services.Start()
}

func (r *Relay) Shutdown(ctx context.Context) error {
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	r.hub.Drain()
	return r.services.Shutdown(ctx)
}

// watchConfig re-reads the ICE server list whenever the config file
// changes. New rooms hand out the fresh list, seated peers keep what
// they were given.
func (r *Relay) watchConfig() {
	file, ok := config.File("")
	if !ok {
		return
	}
	watcher, err := config.NewWatcher(file, r.log, r.reloadIce)
	if err != nil {
		r.log.Warn().Err(err).Msg("config watch is off")
		return
	}
	r.watcher = watcher
}

func (r *Relay) reloadIce(string) {
	fresh := config.RelayConfig{Webrtc: config.Webrtc{IceServers: config.DefaultIceServers()}}
	if err := config.LoadConfig(&fresh, ""); err != nil {
		r.log.Warn().Err(err).Msg("config reload failed, keeping the old ICE servers")
		return
	}
	fresh.Webrtc.AddIceServersEnv()
	if err := fresh.Webrtc.Validate(); err != nil {
		r.log.Warn().Err(err).Msg("bad ICE servers in config, keeping the old ones")
		return
	}
	r.ice.set(fresh.Webrtc.IceServers)
	r.log.Info().Msgf("ICE servers reloaded, %v entries", len(fresh.Webrtc.IceServers))
}

// Drain closes every live signaling connection.
func (h *Hub) Drain() {
	h.sessions.ForEach(func(s *Session) { s.Disconnect() })
}

// iceStore hands out the current ICE server list to new rooms.
type iceStore struct {
	v atomic.Value
}

func newIceStore(list []config.IceServer) *iceStore {
	s := &iceStore{}
	s.set(list)
	return s
}

func (s *iceStore) get() []config.IceServer { return s.v.Load().([]config.IceServer) }
func (s *iceStore) set(list []config.IceServer) {
	if list == nil {
		list = []config.IceServer{}
	}
	s.v.Store(list)
}

// sweeper periodically asks the hub to cull stale rooms.
type sweeper struct {
	hub   *Hub
	every time.Duration
	log   *logger.Logger
	done  chan struct{}
}

func newSweeper(hub *Hub, every time.Duration, log *logger.Logger) *sweeper {
	return &sweeper{hub: hub, every: every, log: log, done: make(chan struct{})}
}

func (s *sweeper) Run() {
	if s.every <= 0 {
		s.log.Info().Msg("room sweeper is off")
		return
	}
	go func() {
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.hub.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

func (s *sweeper) Shutdown(context.Context) error {
	close(s.done)
	return nil
}

func (s *sweeper) String() string { return "sweeper" }
