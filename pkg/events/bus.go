package events

import "sync"

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-world pub/sub event bus with support for global
// subscribers. Session code emits structured events; each subscriber
// (renderer, scrollback writer, web mirror, hook dispatcher) consumes
// them as it sees fit. Closed subscribers are dropped lazily on emit.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	global      []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific world's events.
func (b *Bus) Subscribe(world string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[world] = append(b.subscribers[world], sub)
}

// Unsubscribe removes a subscriber for a specific world.
func (b *Bus) Unsubscribe(world string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[world]
	for i, s := range subs {
		if s == sub {
			b.subscribers[world] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[world]) == 0 {
		delete(b.subscribers, world)
	}
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit sends an event to the subscribers of ev.World and to all global
// subscribers. Subscribers reporting Closed are removed.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[ev.World]...)
	globals := append([]Subscriber(nil), b.global...)
	b.mu.RUnlock()

	dropped := false
	for _, s := range subs {
		if s.Closed() {
			dropped = true
			continue
		}
		s.Receive(ev)
	}
	for _, s := range globals {
		if s.Closed() {
			dropped = true
			continue
		}
		s.Receive(ev)
	}
	if dropped {
		b.prune(ev.World)
	}
}

// EmitToWorld sends an event to a specific world (overriding ev.World).
func (b *Bus) EmitToWorld(world string, ev Event) {
	ev.World = world
	b.Emit(ev)
}

// prune discards closed subscribers for a world and the global list.
func (b *Bus) prune(world string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keep := b.subscribers[world][:0]
	for _, s := range b.subscribers[world] {
		if !s.Closed() {
			keep = append(keep, s)
		}
	}
	if len(keep) == 0 {
		delete(b.subscribers, world)
	} else {
		b.subscribers[world] = keep
	}
	keepG := b.global[:0]
	for _, s := range b.global {
		if !s.Closed() {
			keepG = append(keepG, s)
		}
	}
	b.global = keepG
}
