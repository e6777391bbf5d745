package events

import "time"

// EventType classifies client events for subscribers.
type EventType int

const (
	EvOutput     EventType = iota // line of game output
	EvPrompt                      // prompt/status fragment
	EvSent                        // line sent to a world
	EvEcho                        // locally generated line
	EvConnect                     // world connection established
	EvDisconnect                  // world connection lost or closed
	EvLogin                       // login sequence completed
	EvActivity                    // activity in a background world
	EvWorld                       // foreground world changed
	EvResize                      // display size changed
	EvLoad                        // script file loaded or reloaded
	EvRedef                       // macro redefined
	EvBackground                  // session moved to the background
	EvGMCP                        // decoded GMCP package
	EvMSDP                        // decoded MSDP variable set
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvOutput:
		return "output"
	case EvPrompt:
		return "prompt"
	case EvSent:
		return "sent"
	case EvEcho:
		return "echo"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvLogin:
		return "login"
	case EvActivity:
		return "activity"
	case EvWorld:
		return "world"
	case EvResize:
		return "resize"
	case EvLoad:
		return "load"
	case EvRedef:
		return "redef"
	case EvBackground:
		return "background"
	case EvGMCP:
		return "gmcp"
	case EvMSDP:
		return "msdp"
	default:
		return "unknown"
	}
}

// HookName maps an event type to the scripting engine's lifecycle hook
// name, or "" for event types that never raise hooks.
func (t EventType) HookName() string {
	switch t {
	case EvConnect, EvDisconnect, EvLogin, EvPrompt, EvActivity,
		EvWorld, EvResize, EvLoad, EvRedef, EvBackground, EvGMCP, EvMSDP:
		return t.String()
	case EvSent:
		return "send"
	default:
		return ""
	}
}

// Event is a structured client event that flows through the bus.
// Subscribers (renderer, scrollback writer, web mirror, hook dispatch)
// each consume the fields they care about.
type Event struct {
	Type  EventType
	World string // originating world; "" for world-independent events
	Text  string // line or payload text
	Data  map[string]any
	Time  time.Time
}
