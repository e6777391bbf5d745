// Package world describes the MUD servers a client session knows about.
// The scripting engine only ever sees read-only Info snapshots; the live
// Registry belongs to the host.
package world

import (
	"fmt"
	"sort"
	"sync"
)

// Info describes one world (server) definition. Connected is runtime
// state and is never persisted.
type Info struct {
	Name     string `yaml:"name" json:"name"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user,omitempty" json:"user,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	TLS      bool   `yaml:"tls,omitempty" json:"tls,omitempty"`

	Connected bool `yaml:"-" json:"connected"`
}

// Addr returns the dial address for the world.
func (w Info) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// Registry is the mutable set of known worlds, owned by the host session.
type Registry struct {
	mu     sync.RWMutex
	worlds map[string]*Info
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{worlds: make(map[string]*Info)}
}

// Add registers or replaces a world definition.
func (r *Registry) Add(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := info
	r.worlds[info.Name] = &w
}

// Get returns a copy of the named world definition.
func (r *Registry) Get(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.worlds[name]
	if !ok {
		return Info{}, false
	}
	return *w, true
}

// Remove deletes a world definition. Returns false if it did not exist.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.worlds[name]; !ok {
		return false
	}
	delete(r.worlds, name)
	return true
}

// SetConnected flips the runtime connected flag for a world.
func (r *Registry) SetConnected(name string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.worlds[name]; ok {
		w.Connected = connected
	}
}

// Names returns all world names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.worlds))
	for name := range r.worlds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a value copy of every world, keyed by name. This is
// the form handed to the scripting engine before each command.
func (r *Registry) Snapshot() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(map[string]Info, len(r.worlds))
	for name, w := range r.worlds {
		snap[name] = *w
	}
	return snap
}
