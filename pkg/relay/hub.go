package relay

import (
	"net/http"
	"time"

	"github.com/rondohq/rondo/pkg/com"
	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/network/websocket"
)

// Hub owns the shared relay state: the room registry, the lobby feed,
// and the set of live signaling connections.
type Hub struct {
	conf      config.RelayConfig
	log       *logger.Logger
	reg       *Registry
	feed      *Lobby
	sessions  com.NetMap[com.Uid, *Session]
	upgrader  *websocket.Upgrader
	startedAt time.Time
}

func NewHub(conf config.RelayConfig, ice func() []config.IceServer, log *logger.Logger) *Hub {
	feed := NewLobby()
	return &Hub{
		conf:      conf,
		log:       log,
		feed:      feed,
		reg:       NewRegistry(conf.Relay.Rooms, feed, ice, log),
		sessions:  com.NewNetMap[com.Uid, *Session](),
		upgrader:  websocket.NewUpgrader(conf.Relay.Origin),
		startedAt: time.Now(),
	}
}

// handleWS runs one signaling connection from upgrade to cleanup.
// The handler goroutine sticks around until the socket dies, the way
// net/http gives us one goroutine per connection anyway.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		h.log.Error().Err(err).Msg("socket upgrade fail")
		return
	}
	ws := websocket.NewServerWithConn(conn, h.log)
	s := NewSession(ws, h.reg, h.feed, h.conf.Relay.Rooms, h.log)
	h.sessions.Add(s)
	defer h.sessions.Remove(s)
	defer s.Finish()

	s.HandleRequests()
	s.WaitDisconnect()
}

// Sweep culls rooms that have gone quiet.
func (h *Hub) Sweep() { h.reg.Sweep() }

// Uptime reports how long the hub has been serving.
func (h *Hub) Uptime() time.Duration { return time.Since(h.startedAt) }
