// Package websrv is the session's local observation surface: a
// Prometheus metrics endpoint, a health check, and a WebSocket mirror
// that streams session events to a browser. It subscribes to the event
// bus and never touches the engine, so it can run on its own goroutines.
package websrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/crystal-mush/gofugue/pkg/events"
	"github.com/crystal-mush/gofugue/pkg/world"
)

// Config holds configuration for the web server.
type Config struct {
	Host string // bind address; default loopback
	Port int
}

// WSMessage is the JSON message format sent to mirror clients.
type WSMessage struct {
	Type  string         `json:"type"`
	World string         `json:"world,omitempty"`
	Text  string         `json:"text,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Time  time.Time      `json:"time"`
}

// Server mirrors one session over HTTP. It subscribes globally to the
// bus; every event is counted and fanned out to attached clients.
type Server struct {
	worlds   *world.Registry
	httpSrv  *http.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	metrics  *Metrics

	mu      sync.Mutex
	clients map[string]*mirrorClient
	closed  bool
}

// New creates a web server observing the given bus and world registry.
func New(bus *events.Bus, worlds *world.Registry, cfg Config) *Server {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	s := &Server{
		worlds:  worlds,
		mux:     http.NewServeMux(),
		clients: make(map[string]*mirrorClient),
		upgrader: websocket.Upgrader{
			// Loopback-only mirror; any local origin may attach.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: NewMetrics(worlds, time.Now()),
	}
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, cfg.Port),
		Handler: s.mux,
	}
	bus.SubscribeGlobal(s)
	return s
}

// Receive implements events.Subscriber: count the event and fan it out
// to every attached mirror client.
func (s *Server) Receive(ev events.Event) {
	s.metrics.Observe(ev)
	msg := WSMessage{
		Type:  ev.Type.String(),
		World: ev.World,
		Text:  ev.Text,
		Data:  ev.Data,
		Time:  ev.Time,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		if !c.enqueue(payload) {
			delete(s.clients, id)
		}
	}
	s.metrics.SetMirrorClients(len(s.clients))
}

// Closed implements events.Subscriber.
func (s *Server) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start begins listening. Blocks until Stop or a listen error.
func (s *Server) Start() error {
	log.Printf("websrv: listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop detaches from the bus, drops mirror clients, and shuts the
// HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for id, c := range s.clients {
		c.close()
		delete(s.clients, id)
	}
	s.mu.Unlock()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	clients := len(s.clients)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"worlds":  len(s.worlds.Names()),
		"clients": clients,
	})
}

// handleWebSocket upgrades the connection and attaches it as a mirror
// client. The mirror is read-only; inbound frames are discarded.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websrv: upgrade: %v", err)
		return
	}
	c := &mirrorClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c.id] = c
	s.metrics.SetMirrorClients(len(s.clients))
	s.mu.Unlock()
	log.Printf("websrv: mirror client %s attached from %s", c.id, r.RemoteAddr)

	go c.writeLoop()
	go c.readLoop(func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.metrics.SetMirrorClients(len(s.clients))
		s.mu.Unlock()
	})
}

// mirrorClient is one attached WebSocket observer.
type mirrorClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	once sync.Once
}

// enqueue hands a frame to the writer. A full buffer means the client
// has stopped reading; it gets dropped.
func (c *mirrorClient) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		c.close()
		return false
	}
}

func (c *mirrorClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *mirrorClient) writeLoop() {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	c.conn.Close()
}

// readLoop discards inbound frames and fires onClose when the peer
// goes away.
func (c *mirrorClient) readLoop(onClose func()) {
	defer func() {
		onClose()
		c.close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
