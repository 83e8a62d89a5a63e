package relay

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/network/httpx"
)

func NewHTTPServer(conf config.RelayConfig, hub *Hub, log *logger.Logger) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.Relay.Server.GetAddr(),
		func(*httpx.Server) http.Handler { return hub.Handler() },
		httpx.WithServerConfig(conf.Relay.Server),
		httpx.WithLogger(log),
	)
}

// Handler builds the relay routes: the index page, the signaling
// socket, and the read-only room endpoints.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", index(h.conf))
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/lobbies", h.handleLobbies)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/heartbeat", h.handleHeartbeat)
	return mux
}

var indexTpl = template.Must(template.New("index").Parse(
	`<!doctype html><html><head><title>rondo relay</title></head>` +
		`<body><h1>rondo relay</h1><p>v{{.Version}} is up, signaling lives at <code>/ws</code>.</p></body></html>`))

func index(conf config.RelayConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_ = indexTpl.Execute(w, conf)
	})
}

type lobbiesReply struct {
	Lobbies []api.LobbyRoom `json:"lobbies"`
}

// handleLobbies lists visible rooms, optionally narrowed by
// ?tags=a,b (rooms must carry every named tag).
func (h *Hub) handleLobbies(w http.ResponseWriter, r *http.Request) {
	var filter []string
	if tags := r.URL.Query().Get("tags"); tags != "" {
		filter = strings.Split(tags, ",")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lobbiesReply{Lobbies: h.feed.List(filter)})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type heartbeat struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Uptime    int64  `json:"uptime_seconds"`
	Timestamp int64  `json:"timestamp_unix"`
	Rooms     int    `json:"rooms"`
	Peers     int    `json:"peers"`
}

func (h *Hub) handleHeartbeat(w http.ResponseWriter, _ *http.Request) {
	rooms, peers := h.reg.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(heartbeat{
		Status:    "ok",
		Service:   "relay",
		Uptime:    int64(h.Uptime().Seconds()),
		Timestamp: time.Now().Unix(),
		Rooms:     rooms,
		Peers:     peers,
	})
}
