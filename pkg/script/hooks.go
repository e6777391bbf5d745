package script

import "strings"

// Lifecycle events the host may raise. A macro whose Hook field names
// one of these fires when the event is dispatched.
const (
	HookConnect    = "connect"
	HookDisconnect = "disconnect"
	HookLogin      = "login"
	HookPrompt     = "prompt"
	HookSend       = "send"
	HookActivity   = "activity"
	HookWorld      = "world"
	HookResize     = "resize"
	HookLoad       = "load"
	HookRedef      = "redef"
	HookBackground = "background"
	HookGMCP       = "gmcp"
	HookMSDP       = "msdp"
)

var hookNames = map[string]struct{}{
	HookConnect: {}, HookDisconnect: {}, HookLogin: {}, HookPrompt: {},
	HookSend: {}, HookActivity: {}, HookWorld: {}, HookResize: {},
	HookLoad: {}, HookRedef: {}, HookBackground: {}, HookGMCP: {}, HookMSDP: {},
}

// KnownHook reports whether event is a recognized lifecycle event name.
func KnownHook(event string) bool {
	_, ok := hookNames[strings.ToLower(event)]
	return ok
}

// FireHook dispatches a lifecycle event against the macro registry.
// Order and skip rules match trigger matching; the event name replaces
// pattern matching and args become the body's positional parameters.
// Returns how many macros fired.
func (e *Engine) FireHook(event, args string) int {
	event = strings.ToLower(event)
	fired := 0
	var exhausted []*Macro
	for _, m := range e.firingOrder() {
		if m.Hook != event || !e.worldEligible(m) {
			continue
		}
		if !e.guardPasses(m) {
			continue
		}
		fired++
		if m.Shots > 0 {
			m.Shots--
			if m.Shots == 0 {
				exhausted = append(exhausted, m)
			}
		}
		if err := e.runMacroBody(m, args); err != nil {
			e.fx.QueueEcho("% " + m.Name + ": " + err.Error())
		}
		if !m.FallThru {
			break
		}
	}
	for _, m := range exhausted {
		e.UndefMacro(m.Name)
	}
	return fired
}
