package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rondohq/rondo/pkg/com"
	"github.com/rondohq/rondo/pkg/logger"
)

const (
	maxMessageSize = 10 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	// sendBuffer caps the per-connection outbound queue; writes over it
	// are dropped so one slow consumer can't stall everyone else.
	sendBuffer = 64
)

var (
	ErrBackpressure = errors.New("send queue overflow")
	ErrClosed       = errors.New("connection closed")
)

type WS struct {
	id   com.Uid
	conn deadlinedConn
	send chan []byte
	log  *logger.Logger

	pingPong bool

	mu        sync.Mutex
	onMessage WSMessageHandler
	closed    bool
	shutdown  sync.WaitGroup
	finish    sync.Once

	// Done is closed when both pumps have stopped and the socket is gone.
	Done chan struct{}
}

type WSMessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
		CheckOrigin:     func(r *http.Request) bool { return true },
	},
}

// NewUpgrader restricts connection upgrades to the given origin;
// an empty or * origin allows everyone in.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	if origin != "" && origin != "*" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return u.Upgrader.Upgrade(w, r, nil)
}

// NewServerWithConn wraps an already upgraded server-side connection.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) *WS {
	return newSocket(conn, true, log)
}

// NewServer upgrades the request and wraps the resulting connection.
func NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*WS, error) {
	conn, err := DefaultUpgrader.Upgrade(w, r)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

// NewClient dials the address and wraps the resulting connection.
func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	ws := &WS{
		id:       com.NewUid(),
		conn:     deadlinedConn{sock: conn, wt: writeWait},
		send:     make(chan []byte, sendBuffer),
		pingPong: pingPong,
		Done:     make(chan struct{}),
	}
	ws.log = log.Extend(log.With().Str("ws", ws.id.Short()))
	ws.shutdown.Add(2)

	go ws.writer()
	go ws.reader()

	return ws
}

func (ws *WS) Id() com.Uid { return ws.id }

// SetMessageHandler wires the callback the read pump delivers inbound
// frames to. Frames arriving before any handler is set are discarded.
func (ws *WS) SetMessageHandler(fn WSMessageHandler) {
	ws.mu.Lock()
	ws.onMessage = fn
	ws.mu.Unlock()
}

func (ws *WS) handler() WSMessageHandler {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.onMessage
}

// Write queues one outbound frame. The frame is dropped with
// ErrBackpressure when the queue is full and with ErrClosed after
// the connection went away.
func (ws *WS) Write(data []byte) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return ErrClosed
	}
	select {
	case ws.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close stops accepting writes and lets the write pump flush what is
// queued, say goodbye, and tear the connection down.
func (ws *WS) Close() {
	ws.mu.Lock()
	wasClosed := ws.closed
	ws.closed = true
	ws.mu.Unlock()
	if !wasClosed {
		close(ws.send)
	}
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.Close()
		ws.shutdown.Done()
		ws.teardown()
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(pongTime)); return nil })
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.log.Debug().Err(err).Msg("unexpected close")
			}
			return
		}
		if fn := ws.handler(); fn != nil {
			fn(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
// The socket close unblocks the read pump on exit.
func (ws *WS) writer() {
	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() {
		_ = ws.conn.close()
		ws.shutdown.Done()
		ws.teardown()
	}()
	for {
		select {
		case message, ok := <-ws.send:
			if !ok {
				_ = ws.conn.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Debug().Err(err).Msg("write fail")
				return
			}
		case <-ping:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown closes Done exactly once after both pumps have stopped.
func (ws *WS) teardown() {
	ws.finish.Do(func() {
		go func() {
			ws.shutdown.Wait()
			close(ws.Done)
			ws.log.Debug().Msg("disconnect")
		}()
	})
}
