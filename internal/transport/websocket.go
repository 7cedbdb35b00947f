package transport

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

const (
	// eventsPath is the WebSocket endpoint serving the JSON event stream.
	eventsPath = "/events"

	// writeWait bounds a single client write. A client that cannot take
	// an event within this window is dropped.
	writeWait = 1 * time.Second

	// minOnsetInterval caps the onset debug stream at roughly 60 Hz.
	// Every other event type is low-rate and passes unthrottled.
	minOnsetInterval = 16 * time.Millisecond
)

// WebSocketTransport serves the event stream as JSON over WebSocket.
// Events queue into a bounded broadcast channel; when the channel is
// full the event is dropped rather than stalling the caller. Clients
// that cannot keep up with the write deadline are disconnected.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	drops     atomic.Uint64

	lastOnset time.Time // touched only by the broadcast goroutine
}

// NewWebSocketTransport starts an HTTP server on the given port with
// the event stream mounted at /events, plus the broadcast goroutine.
func NewWebSocketTransport(port string) *WebSocketTransport {
	t := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Browser clients connect from any local page.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle(eventsPath, t)
	t.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		applog.Infof("WebSocketTransport: serving %s on port %s", eventsPath, port)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("WebSocketTransport: server error: %v", err)
		}
	}()
	go t.handleBroadcasts()

	return t
}

// ServeHTTP upgrades the connection and registers the client. The
// read loop exists only to notice the peer going away.
func (t *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: upgrade error: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: client connected, total: %d", total)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.dropClient(conn)
				return
			}
		}
	}()
}

// Send queues an event for broadcast. It never blocks: a full queue
// drops the event and counts it.
func (t *WebSocketTransport) Send(data any) error {
	if t.closed.Load() {
		return nil
	}
	select {
	case t.broadcast <- data:
	default:
		t.drops.Add(1)
	}
	return nil
}

// handleBroadcasts delivers queued events to every client, applying
// the onset rate cap and sweeping clients whose writes fail or time
// out.
func (t *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case data := <-t.broadcast:
			if evt, ok := data.(events.Event); ok && evt.Type == events.TypeOnset {
				now := time.Now()
				if now.Sub(t.lastOnset) < minOnsetInterval {
					t.drops.Add(1)
					continue
				}
				t.lastOnset = now
			}
			t.broadcastToClients(data)
		case <-t.done:
			return
		}
	}
}

func (t *WebSocketTransport) broadcastToClients(data any) {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()

	for client := range t.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(data); err != nil {
			applog.Warnf("WebSocketTransport: dropping client: %v", err)
			client.Close()
			delete(t.clients, client)
		}
	}
}

func (t *WebSocketTransport) dropClient(conn *websocket.Conn) {
	t.clientsMu.Lock()
	if _, ok := t.clients[conn]; ok {
		delete(t.clients, conn)
		conn.Close()
		applog.Infof("WebSocketTransport: client disconnected, total: %d", len(t.clients))
	}
	t.clientsMu.Unlock()
}

// ClientCount reports the number of connected clients.
func (t *WebSocketTransport) ClientCount() int {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()
	return len(t.clients)
}

// Dropped reports how many events were discarded by the queue or the
// onset rate cap.
func (t *WebSocketTransport) Dropped() uint64 {
	return t.drops.Load()
}

// Close disconnects every client and shuts the server down. Idempotent.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)

		t.clientsMu.Lock()
		for client := range t.clients {
			client.Close()
		}
		t.clients = make(map[*websocket.Conn]bool)
		t.clientsMu.Unlock()

		if t.server != nil {
			err = t.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface at compile time.
var _ Transport = (*WebSocketTransport)(nil)
