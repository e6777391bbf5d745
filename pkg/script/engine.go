// Package script implements a TinyFugue-compatible scripting and macro
// engine: #-prefixed commands, expression evaluation and variable
// substitution, multi-line control-flow blocks, trigger/hook/keybinding
// macros, and a scheduler for timed background commands.
//
// The engine is single-threaded and cooperative. All mutation happens
// inside one call to Execute, MatchLine, FireHook, or Due; outward
// effects accumulate in queues the host drains after each call.
package script

import (
	"math/rand"
	"strings"
	"time"

	"github.com/crystal-mush/gofugue/pkg/world"
)

// NumCaptures is the number of %P0..%P9 regex capture slots.
const NumCaptures = 10

// KeyboardState is a read-only snapshot of the host's input buffer.
type KeyboardState struct {
	Buffer string
	Point  int // cursor position as a byte offset into Buffer
}

// Engine is the aggregate root of one scripting session: variable store,
// macro registry, pattern cache, process list, load guards, capture
// slots, and all pending-effect queues. One Engine per client session,
// exclusively owned by a single calling goroutine.
type Engine struct {
	Vars *VarStore

	fx       *Effects
	macros   []*Macro
	nextSeq  int
	inRedef  bool
	onRedef  func(name string)
	patterns *patternCache
	procs    []*Process
	nextPID  int

	captures [NumCaptures]string

	block *blockState

	loading      []string
	loadedTokens map[string]struct{}

	// break sentinel for the innermost running loop
	loopDepth int
	breakFlag bool

	currentWorld string
	worlds       map[string]world.Info
	keyboard     KeyboardState

	funcs map[string]*Function
	rng   *rand.Rand

	now func() time.Time
}

// NewEngine creates an engine with the builtin function catalog
// registered and no macros, processes, or variables.
func NewEngine() *Engine {
	e := &Engine{
		Vars:         NewVarStore(),
		fx:           NewEffects(),
		patterns:     newPatternCache(),
		nextSeq:      1,
		nextPID:      1,
		loadedTokens: make(map[string]struct{}),
		funcs:        make(map[string]*Function),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
		block:        &blockState{},
	}
	registerBuiltins(e)
	return e
}

// Effects exposes the pending-effect queues for the host to drain.
func (e *Engine) Effects() *Effects { return e.fx }

// SetCurrentWorld tells the engine which world is in the foreground.
func (e *Engine) SetCurrentWorld(name string) { e.currentWorld = name }

// CurrentWorld returns the foreground world name.
func (e *Engine) CurrentWorld() string { return e.currentWorld }

// SetWorlds installs a read-only snapshot of the known worlds.
func (e *Engine) SetWorlds(snap map[string]world.Info) { e.worlds = snap }

// SetKeyboard installs a snapshot of the host input buffer and cursor.
func (e *Engine) SetKeyboard(k KeyboardState) { e.keyboard = k }

// SetRedefNotifier installs a host callback invoked after a macro is
// redefined, alongside the redef hook.
func (e *Engine) SetRedefNotifier(fn func(name string)) { e.onRedef = fn }

// Captures returns the current %P0..%P9 capture slots.
func (e *Engine) Captures() [NumCaptures]string { return e.captures }

func (e *Engine) setCaptures(args []string) {
	for i := range e.captures {
		if i < len(args) {
			e.captures[i] = args[i]
		} else {
			e.captures[i] = ""
		}
	}
}

// Loading reports whether a file load is in progress.
func (e *Engine) Loading() bool { return len(e.loading) > 0 }

// Execute runs one line of input through the parser and dispatcher.
// Lines that do not start with the command prefix pass through as raw
// game input. While a multi-line block is open, lines are buffered until
// the block closes, then the whole block runs atomically.
func (e *Engine) Execute(line string) CommandResult {
	if e.block.collecting() {
		done, err := e.block.feed(line)
		if err != nil {
			e.block.reset()
			return errMsg("%v", err)
		}
		if !done {
			return okResult()
		}
		lines := e.block.take()
		return e.runBlock(lines)
	}
	if !strings.HasPrefix(line, commandPrefix) {
		return passThrough()
	}
	return e.dispatch(line)
}

// executeInternal runs a line from a non-interactive context (macro
// body, loop body, loaded file, process command). Results that would
// interactively come back to the caller are converted into effects:
// plain text is sent to the current world, sends and quotes are queued,
// and errors come back as Go errors so callers can abort.
func (e *Engine) executeInternal(line string) error {
	res := e.Execute(line)
	if res.Kind == ResultPassThrough {
		e.fx.QueueSend(e.currentWorld, e.Substitute(line))
		return nil
	}
	return e.applyResult(res)
}

func (e *Engine) applyResult(res CommandResult) error {
	switch res.Kind {
	case ResultSuccess:
		if res.Message != "" {
			e.fx.QueueEcho(res.Message)
		}
		return nil
	case ResultError:
		return scriptError(res.Message)
	case ResultSend:
		// Internal contexts resolve the target now so a process running
		// with its own world current sends to that world.
		world := res.World
		if world == "" {
			world = e.currentWorld
		}
		e.fx.QueueSend(world, res.Text)
		return nil
	case ResultPassThrough:
		return nil
	case ResultClientCommand:
		// The host drains delegated commands interactively; from a body
		// the best the engine can do is surface them as an echo.
		e.fx.QueueEcho("% " + res.Text + ": not available in this context")
		return nil
	case ResultRecall:
		e.fx.QueueEcho("% #recall: only available interactively")
		return nil
	case ResultProcess:
		if res.Message != "" {
			e.fx.QueueEcho(res.Message)
		}
		return nil
	case ResultQuote:
		e.applyQuote(res.Quote)
		return nil
	case ResultAbortLoad:
		return errAbortLoad
	case ResultUnknown:
		return scriptError(res.Message)
	}
	return nil
}

func (e *Engine) applyQuote(q *QuoteSpec) {
	if q == nil {
		return
	}
	for _, line := range q.Lines {
		switch q.Disposition {
		case QuoteEcho:
			e.fx.QueueEcho(line)
		case QuoteExec:
			if err := e.executeInternal(line); err != nil {
				e.fx.QueueEcho("% " + err.Error())
				return
			}
		default:
			e.fx.QueueSend(q.World, line)
		}
	}
}

// scriptError distinguishes in-script failures from host I/O errors.
type scriptErr string

func (s scriptErr) Error() string { return string(s) }

func scriptError(msg string) error { return scriptErr(msg) }
