package events

import (
	"sync"
	"testing"
)

// mockSubscriber implements Subscriber for testing.
type mockSubscriber struct {
	mu       sync.Mutex
	events   []Event
	isClosed bool
}

func (m *mockSubscriber) Receive(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockSubscriber) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClosed
}

func (m *mockSubscriber) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(m.events))
	copy(cp, m.events)
	return cp
}

func TestBusEmitToWorld(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe("moo", sub)

	bus.Emit(Event{Type: EvOutput, World: "moo", Text: "Bob waves."})
	bus.Emit(Event{Type: EvOutput, World: "elsewhere", Text: "not for us"})

	got := sub.Events()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Text != "Bob waves." {
		t.Errorf("expected text %q, got %q", "Bob waves.", got[0].Text)
	}
}

func TestBusGlobalSubscriber(t *testing.T) {
	bus := NewBus()
	global := &mockSubscriber{}
	bus.SubscribeGlobal(global)

	bus.Emit(Event{Type: EvConnect, World: "moo"})
	bus.Emit(Event{Type: EvOutput, World: "mush", Text: "hi"})

	got := global.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 global events, got %d", len(got))
	}
}

func TestBusDropsClosedSubscribers(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe("moo", sub)

	sub.mu.Lock()
	sub.isClosed = true
	sub.mu.Unlock()

	bus.Emit(Event{Type: EvOutput, World: "moo", Text: "x"})
	if got := sub.Events(); len(got) != 0 {
		t.Fatalf("closed subscriber received %d events", len(got))
	}

	bus.mu.RLock()
	remaining := len(bus.subscribers["moo"])
	bus.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("closed subscriber not pruned")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe("moo", sub)
	bus.Unsubscribe("moo", sub)

	bus.Emit(Event{Type: EvOutput, World: "moo", Text: "x"})
	if got := sub.Events(); len(got) != 0 {
		t.Errorf("unsubscribed subscriber received %d events", len(got))
	}
}

func TestHookNames(t *testing.T) {
	if got := EvSent.HookName(); got != "send" {
		t.Errorf("EvSent hook = %q, want send", got)
	}
	if got := EvConnect.HookName(); got != "connect" {
		t.Errorf("EvConnect hook = %q, want connect", got)
	}
	if got := EvOutput.HookName(); got != "" {
		t.Errorf("EvOutput hook = %q, want none", got)
	}
}
