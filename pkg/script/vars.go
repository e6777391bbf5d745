package script

import "sort"

// VarStore holds the global variable table plus a stack of local scopes.
// A scope is pushed when a macro body starts executing and popped when it
// finishes; locals are purely lexical to one execution and never persist.
type VarStore struct {
	global   map[string]Value
	scopes   []map[string]Value
	exported map[string]bool
}

// NewVarStore creates an empty store with no open scopes.
func NewVarStore() *VarStore {
	return &VarStore{
		global:   make(map[string]Value),
		exported: make(map[string]bool),
	}
}

// Get looks a name up in the local scopes innermost-to-outermost, then
// falls back to the global table.
func (s *VarStore) Get(name string) (Value, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v, true
		}
	}
	v, ok := s.global[name]
	return v, ok
}

// SetGlobal writes a name into the global table.
func (s *VarStore) SetGlobal(name string, v Value) {
	s.global[name] = v
}

// SetLocal writes a name into the innermost scope, or the global table
// when no scope is open.
func (s *VarStore) SetLocal(name string, v Value) {
	if len(s.scopes) == 0 {
		s.global[name] = v
		return
	}
	s.scopes[len(s.scopes)-1][name] = v
}

// Unset removes the innermost definition of a name. Returns false if the
// name was not defined anywhere.
func (s *VarStore) Unset(name string) bool {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if _, ok := s.scopes[i][name]; ok {
			delete(s.scopes[i], name)
			return true
		}
	}
	if _, ok := s.global[name]; ok {
		delete(s.global, name)
		delete(s.exported, name)
		return true
	}
	return false
}

// PushScope opens a new local scope.
func (s *VarStore) PushScope() {
	s.scopes = append(s.scopes, make(map[string]Value))
}

// PopScope closes the innermost scope. Popping with no open scope is a
// no-op; the stack must be empty outside macro-body execution.
func (s *VarStore) PopScope() {
	if len(s.scopes) > 0 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// Depth returns the number of open local scopes.
func (s *VarStore) Depth() int { return len(s.scopes) }

// Export marks a global name for export to spawned processes.
func (s *VarStore) Export(name string) { s.exported[name] = true }

// IsExported reports whether a name is in the export set.
func (s *VarStore) IsExported(name string) bool { return s.exported[name] }

// GlobalNames returns every global variable name in sorted order.
func (s *VarStore) GlobalNames() []string {
	names := make([]string, 0, len(s.global))
	for name := range s.global {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global returns a global value directly, skipping local scopes.
func (s *VarStore) Global(name string) (Value, bool) {
	v, ok := s.global[name]
	return v, ok
}
