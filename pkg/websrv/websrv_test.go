package websrv

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystal-mush/gofugue/pkg/events"
	"github.com/crystal-mush/gofugue/pkg/world"
)

func testServer(t *testing.T) (*Server, *events.Bus, *world.Registry) {
	t.Helper()
	bus := events.NewBus()
	worlds := world.NewRegistry()
	s := New(bus, worlds, Config{Port: 0})
	return s, bus, worlds
}

func TestHealthEndpoint(t *testing.T) {
	s, _, worlds := testServer(t)
	worlds.Add(world.Info{Name: "moo", Host: "h", Port: 1})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if body["status"] != "ok" || body["worlds"].(float64) != 1 {
		t.Errorf("body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, bus, worlds := testServer(t)
	worlds.Add(world.Info{Name: "moo", Host: "h", Port: 1, Connected: true})
	bus.Emit(events.Event{Type: events.EvOutput, World: "moo", Text: "hi", Time: time.Now()})
	bus.Emit(events.Event{Type: events.EvSent, World: "moo", Text: "say hi", Time: time.Now()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`gofugue_worlds_connected 1`,
		`gofugue_events_total{type="output"} 1`,
		`gofugue_events_total{type="sent"} 1`,
		`gofugue_lines_received_total{world="moo"} 1`,
		`gofugue_lines_sent_total{world="moo"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestWebSocketMirror(t *testing.T) {
	s, bus, _ := testServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server a moment to register the client.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.clients)
		s.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	bus.Emit(events.Event{Type: events.EvOutput, World: "moo", Text: "A bell tolls.", Time: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if msg.Type != "output" || msg.World != "moo" || msg.Text != "A bell tolls." {
		t.Errorf("msg = %+v", msg)
	}
}

func TestClosedServerStopsReceiving(t *testing.T) {
	s, bus, _ := testServer(t)
	if s.Closed() {
		t.Fatal("closed before stop")
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if !s.Closed() {
		t.Fatal("not closed after stop")
	}
	// The bus drops closed subscribers on the next emit.
	bus.Emit(events.Event{Type: events.EvEcho, Time: time.Now()})
}
