// Package client is the host side of a gofugue session: it owns the
// scripting engine, the server connections, input history, scrollback,
// and session persistence, and wires them together through the event
// bus. The engine is single-threaded; everything here funnels through
// the session goroutine.
package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/crystal-mush/gofugue/pkg/events"
	"github.com/crystal-mush/gofugue/pkg/script"
	"github.com/crystal-mush/gofugue/pkg/scrollback"
	"github.com/crystal-mush/gofugue/pkg/store"
	"github.com/crystal-mush/gofugue/pkg/telnet"
	"github.com/crystal-mush/gofugue/pkg/world"
)

const (
	// tickInterval drives the #repeat scheduler.
	tickInterval = 250 * time.Millisecond

	// maxDrainPasses bounds effect-queue draining so a macro that
	// endlessly queues new work cannot wedge the session.
	maxDrainPasses = 100
)

// Session owns one scripting engine and everything around it. All
// methods must be called from the session goroutine; other goroutines
// hand work over with Post.
type Session struct {
	cfg    *Config
	eng    *script.Engine
	worlds *world.Registry
	bus    *events.Bus
	hist   *History
	scroll *scrollback.Store // nil = scrollback disabled
	sstore *store.Store      // nil = persistence disabled

	conns map[string]worldConn
	netCh chan netChunk
	inCh  chan string
	ctl   chan func()

	dial    func(w world.Info, ch chan<- netChunk) (worldConn, error)
	display func(string)

	keyboard   script.KeyboardState
	loaded     []string
	inSendHook bool
	quitting   bool
}

// NewSession builds a session from config: opens the stores, restores
// persisted state, registers configured worlds, and autoloads scripts.
func NewSession(cfg *Config) (*Session, error) {
	s := &Session{
		cfg:     cfg,
		eng:     script.NewEngine(),
		worlds:  world.NewRegistry(),
		bus:     events.NewBus(),
		hist:    NewHistory(cfg.HistorySize),
		conns:   make(map[string]worldConn),
		netCh:   make(chan netChunk, 64),
		inCh:    make(chan string, 16),
		ctl:     make(chan func(), 16),
		dial:    dialWorld,
		display: func(line string) { fmt.Println(line) },
	}
	s.eng.SetRedefNotifier(func(name string) {
		s.bus.Emit(events.Event{Type: events.EvRedef, Text: name, Time: time.Now()})
	})

	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		s.sstore = st
		if err := st.LoadSession(s.eng, s.worlds); err != nil {
			st.Close()
			return nil, err
		}
	}
	// Config worlds override persisted definitions of the same name.
	for _, w := range cfg.Worlds {
		s.worlds.Add(w)
	}

	if cfg.ScrollbackPath != "" {
		sb, err := scrollback.Open(cfg.ScrollbackPath)
		if err != nil {
			s.closeStores()
			return nil, err
		}
		s.scroll = sb
		if cfg.ScrollbackRetention > 0 {
			retention := time.Duration(cfg.ScrollbackRetention) * time.Second
			if n, err := sb.Purge(retention, time.Now()); err != nil {
				log.Printf("client: scrollback purge: %v", err)
			} else if n > 0 {
				DebugLog("scrollback: purged %d expired lines", n)
			}
		}
	}

	if cfg.DefaultWorld != "" {
		s.eng.SetCurrentWorld(cfg.DefaultWorld)
	}

	for _, path := range cfg.Scripts {
		if err := s.LoadScript(path); err != nil {
			s.display("% " + err.Error())
		}
	}
	return s, nil
}

// dialWorld is the production dial function: a real telnet connection
// with its read loop feeding the session channel.
func dialWorld(w world.Info, ch chan<- netChunk) (worldConn, error) {
	c, err := Dial(w)
	if err != nil {
		return nil, err
	}
	go c.readLoop(ch)
	return c, nil
}

// Engine exposes the scripting engine (for the binary's startup code).
func (s *Session) Engine() *script.Engine { return s.eng }

// Bus exposes the event bus so observers (web mirror, metrics) can
// subscribe before Run starts.
func (s *Session) Bus() *events.Bus { return s.bus }

// Worlds exposes the world registry.
func (s *Session) Worlds() *world.Registry { return s.worlds }

// History exposes the input history ring.
func (s *Session) History() *History { return s.hist }

// SetDisplay replaces the line renderer. The default prints to stdout.
func (s *Session) SetDisplay(fn func(string)) { s.display = fn }

// Input returns the channel Run reads typed lines from.
func (s *Session) Input() chan<- string { return s.inCh }

// Post hands a function to the session goroutine (used by the script
// watcher and the web server).
func (s *Session) Post(fn func()) { s.ctl <- fn }

// Quitting reports whether #exit or #quit has been issued.
func (s *Session) Quitting() bool { return s.quitting }

// syncEngine refreshes the engine's world and keyboard snapshots before
// handing it control.
func (s *Session) syncEngine() {
	s.eng.SetWorlds(s.worlds.Snapshot())
	s.eng.SetKeyboard(s.keyboard)
}

// HandleInput runs one typed line through the engine and applies every
// effect it produced.
func (s *Session) HandleInput(line string) {
	s.hist.Add(line)
	if s.scroll != nil && line != "" {
		s.scroll.Insert(s.eng.CurrentWorld(), scrollback.SourceInput, line, false, time.Now())
	}
	s.syncEngine()
	res := s.eng.Execute(line)
	s.routeResult(line, res)
	s.drainEffects()
}

// routeResult applies one interactive CommandResult.
func (s *Session) routeResult(line string, res script.CommandResult) {
	switch res.Kind {
	case script.ResultSuccess:
		if res.Message != "" {
			s.echo(res.Message)
		}
	case script.ResultError, script.ResultUnknown:
		s.echo("% " + res.Message)
	case script.ResultSend:
		w := res.World
		if w == "" {
			w = s.eng.CurrentWorld()
		}
		s.sendLine(w, res.Text)
	case script.ResultPassThrough:
		s.sendLine(s.eng.CurrentWorld(), s.eng.Substitute(line))
	case script.ResultClientCommand:
		s.clientCommand(res.Text)
	case script.ResultRecall:
		s.runRecall(res.Recall)
	case script.ResultProcess:
		if res.Message != "" {
			s.echo(res.Message)
		}
	case script.ResultQuote:
		s.applyQuote(res.Quote)
	case script.ResultAbortLoad:
		// #exit outside a load surfaces as a client command instead;
		// nothing to do here.
	}
}

func (s *Session) applyQuote(q *script.QuoteSpec) {
	if q == nil {
		return
	}
	for _, line := range q.Lines {
		switch q.Disposition {
		case script.QuoteEcho:
			s.echo(line)
		case script.QuoteExec:
			s.HandleInput(line)
		default:
			w := q.World
			if w == "" {
				w = s.eng.CurrentWorld()
			}
			s.sendLine(w, line)
		}
	}
}

// drainEffects empties every engine queue in FIFO order. Applying one
// effect may enqueue more (a connect hook that sends, say), so this
// loops until the queues are quiet.
func (s *Session) drainEffects() {
	fx := s.eng.Effects()
	for pass := 0; pass < maxDrainPasses && !fx.Empty(); pass++ {
		for _, ps := range fx.DrainSends() {
			w := ps.World
			if w == "" {
				w = s.eng.CurrentWorld()
			}
			s.sendLine(w, ps.Text)
		}
		for _, line := range fx.DrainEchoes() {
			s.echo(line)
		}
		// Substitutions outside line matching have nothing to replace.
		for range fx.DrainSubstitutions() {
		}
		for _, op := range fx.DrainWorldOps() {
			s.applyWorldOp(op)
		}
		for _, ed := range fx.DrainKeyEdits() {
			s.applyKeyEdit(ed)
		}
	}
	if !fx.Empty() {
		log.Printf("client: effect queues still busy after %d passes, discarding", maxDrainPasses)
		fx.DrainSends()
		fx.DrainEchoes()
		fx.DrainSubstitutions()
		fx.DrainWorldOps()
		fx.DrainKeyEdits()
	}
}

// echo displays a locally generated line and records it.
func (s *Session) echo(line string) {
	s.display(line)
	if s.scroll != nil {
		s.scroll.Insert(s.eng.CurrentWorld(), scrollback.SourceLocal, line, false, time.Now())
	}
	s.bus.Emit(events.Event{Type: events.EvEcho, World: s.eng.CurrentWorld(), Text: line, Time: time.Now()})
}

// sendLine writes one line to a world's connection, records it, and
// raises the send hook.
func (s *Session) sendLine(worldName, text string) {
	conn, ok := s.conns[worldName]
	if !ok {
		if worldName == "" {
			s.echo("% No world is connected.")
		} else {
			s.echo(fmt.Sprintf("%% Not connected to %s.", worldName))
		}
		return
	}
	if err := conn.Send(text); err != nil {
		s.echo("% " + err.Error())
		return
	}
	if s.scroll != nil {
		s.scroll.Insert(worldName, scrollback.SourceSent, text, false, time.Now())
	}
	s.bus.Emit(events.Event{Type: events.EvSent, World: worldName, Text: text, Time: time.Now()})
	// The send hook itself sending must not recurse into the hook.
	if !s.inSendHook {
		s.inSendHook = true
		s.eng.FireHook("send", text)
		s.inSendHook = false
	}
}

func (s *Session) applyWorldOp(op script.WorldOp) {
	switch op.Kind {
	case script.WorldOpAdd, script.WorldOpEdit:
		info := world.Info{
			Name:     op.Name,
			Host:     op.Host,
			Port:     op.Port,
			User:     op.User,
			Password: op.Password,
			TLS:      op.TLS,
		}
		if op.Kind == script.WorldOpEdit {
			if old, ok := s.worlds.Get(op.Name); ok {
				if info.Host == "" {
					info.Host = old.Host
				}
				if info.Port == 0 {
					info.Port = old.Port
				}
				if info.User == "" {
					info.User = old.User
				}
				if info.Password == "" {
					info.Password = old.Password
				}
				info.Connected = old.Connected
			}
		}
		s.worlds.Add(info)
		if s.sstore != nil {
			if err := s.sstore.PutWorld(info); err != nil {
				log.Printf("client: persist world %q: %v", info.Name, err)
			}
		}
		s.bus.Emit(events.Event{Type: events.EvWorld, World: info.Name, Time: time.Now()})
	case script.WorldOpConnect:
		s.connectWorld(op.Name)
	case script.WorldOpDisconnect:
		s.disconnectWorld(op.Name)
	}
}

// connectWorld dials a world (or foregrounds it if already connected)
// and raises the connect hook.
func (s *Session) connectWorld(name string) {
	if name == "" {
		name = s.eng.CurrentWorld()
	}
	w, ok := s.worlds.Get(name)
	if !ok {
		s.echo(fmt.Sprintf("%% Unknown world: %s", name))
		return
	}
	prev := s.eng.CurrentWorld()
	if _, connected := s.conns[name]; connected {
		s.eng.SetCurrentWorld(name)
		if prev != name {
			s.fireWorldChange(name)
		}
		return
	}
	conn, err := s.dial(w, s.netCh)
	if err != nil {
		s.echo("% " + err.Error())
		return
	}
	s.conns[name] = conn
	s.worlds.SetConnected(name, true)
	s.eng.SetCurrentWorld(name)
	log.Printf("client: connected to %s (%s)", name, w.Addr())
	s.bus.Emit(events.Event{Type: events.EvConnect, World: name, Time: time.Now()})
	s.syncEngine()
	s.eng.FireHook("connect", name)
	if prev != name && prev != "" {
		s.fireWorldChange(name)
	}
	if w.User != "" {
		s.sendLine(name, "connect "+w.User+" "+w.Password)
		s.eng.FireHook("login", name)
		s.bus.Emit(events.Event{Type: events.EvLogin, World: name, Time: time.Now()})
	}
}

// disconnectWorld closes a connection and raises the disconnect hook.
func (s *Session) disconnectWorld(name string) {
	if name == "" {
		name = s.eng.CurrentWorld()
	}
	conn, ok := s.conns[name]
	if !ok {
		s.echo(fmt.Sprintf("%% Not connected to %s.", name))
		return
	}
	conn.Close()
	s.dropWorld(name, "closed")
}

// dropWorld is the shared teardown for deliberate disconnects and
// dropped connections.
func (s *Session) dropWorld(name, reason string) {
	delete(s.conns, name)
	s.worlds.SetConnected(name, false)
	s.echo(fmt.Sprintf("%% Connection to %s %s.", name, reason))
	s.bus.Emit(events.Event{Type: events.EvDisconnect, World: name, Time: time.Now()})
	s.syncEngine()
	s.eng.FireHook("disconnect", name)
}

func (s *Session) fireWorldChange(name string) {
	s.bus.Emit(events.Event{Type: events.EvWorld, World: name, Time: time.Now()})
	s.eng.FireHook("world", name)
}

// HandleNetwork applies one decoded chunk (or connection error) from a
// world's read loop.
func (s *Session) HandleNetwork(nc netChunk) {
	if nc.Err != nil {
		if _, ok := s.conns[nc.World]; ok {
			s.dropWorld(nc.World, "lost: "+nc.Err.Error())
			s.drainEffects()
		}
		return
	}
	switch nc.Chunk.Kind {
	case telnet.ChunkLine:
		s.processOutput(nc.World, nc.Chunk.Line)
	case telnet.ChunkPrompt:
		s.processPrompt(nc.World, nc.Chunk.Line)
	case telnet.ChunkGMCP:
		s.bus.Emit(events.Event{
			Type: events.EvGMCP, World: nc.World, Text: nc.Chunk.Package,
			Data: map[string]any{"payload": nc.Chunk.Payload}, Time: time.Now(),
		})
		s.syncEngine()
		s.eng.FireHook("gmcp", nc.Chunk.Package+" "+nc.Chunk.Payload)
		s.drainEffects()
	case telnet.ChunkMSDP:
		pairs := make(map[string]any, len(nc.Chunk.Pairs))
		args := ""
		for k, v := range nc.Chunk.Pairs {
			pairs[k] = v
			if args != "" {
				args += " "
			}
			args += k + "=" + v
		}
		s.bus.Emit(events.Event{Type: events.EvMSDP, World: nc.World, Data: pairs, Time: time.Now()})
		s.syncEngine()
		s.eng.FireHook("msdp", args)
		s.drainEffects()
	}
}

// processOutput runs one received line through trigger matching, then
// records and displays it subject to gag/norecord attributes.
func (s *Session) processOutput(worldName, line string) {
	s.syncEngine()

	// World-restricted triggers judge eligibility against the current
	// world, so matching happens in the originating world's context.
	fg := s.eng.CurrentWorld()
	s.eng.SetCurrentWorld(worldName)
	attrs, _ := s.eng.MatchLine(line)
	text := line
	if subs := s.eng.Effects().DrainSubstitutions(); len(subs) > 0 {
		text = subs[len(subs)-1]
	}
	s.eng.SetCurrentWorld(fg)

	gag := attrs&script.AttrGag != 0
	norecord := attrs&script.AttrNoRecord != 0
	if s.scroll != nil && !norecord {
		s.scroll.Insert(worldName, scrollback.SourceOutput, text, gag, time.Now())
	}
	if !gag {
		s.display(text)
		s.bus.Emit(events.Event{Type: events.EvOutput, World: worldName, Text: text, Time: time.Now()})
	}
	if worldName != fg && fg != "" {
		s.bus.Emit(events.Event{Type: events.EvActivity, World: worldName, Text: text, Time: time.Now()})
		s.eng.FireHook("activity", worldName)
	}
	s.drainEffects()
}

// processPrompt displays a prompt fragment, raises the prompt hook, and
// releases on-prompt processes.
func (s *Session) processPrompt(worldName, text string) {
	if text != "" {
		s.display(text)
	}
	s.bus.Emit(events.Event{Type: events.EvPrompt, World: worldName, Text: text, Time: time.Now()})
	s.syncEngine()
	s.eng.FireHook("prompt", text)
	s.eng.FirePrompt(time.Now())
	s.drainEffects()
}

// runRecall executes a parsed #recall against the scrollback store.
func (s *Session) runRecall(opts *script.RecallOptions) {
	if opts == nil {
		return
	}
	if s.scroll == nil {
		s.echo("% #recall: no scrollback store configured")
		return
	}
	lines, err := s.scroll.Query(opts, time.Now())
	if err != nil {
		s.echo("% #recall: " + err.Error())
		return
	}
	if !opts.Quiet {
		s.display(fmt.Sprintf("================ Recall: %d lines ================", len(lines)))
	}
	for _, l := range lines {
		out := l.Body
		if opts.Timestamps {
			out = l.Time.Format("[15:04:05] ") + out
		}
		s.display(out)
	}
	if !opts.Quiet {
		s.display("================ Recall end ================")
	}
}

// clientCommand handles the engine's delegated host commands.
func (s *Session) clientCommand(cmd string) {
	switch cmd {
	case "exit", "quit":
		s.quitting = true
	case "help":
		for _, line := range helpText {
			s.display(line)
		}
	default:
		s.echo("% Unhandled client command: " + cmd)
	}
}

// applyKeyEdit mutates the keyboard snapshot. The binary mirrors the
// snapshot back into its line editor after each drain.
func (s *Session) applyKeyEdit(ed script.KeyEdit) {
	buf := []rune(s.keyboard.Buffer)
	pt := runePoint(buf, s.keyboard.Point)
	switch ed.Kind {
	case script.KeyInsert:
		ins := []rune(ed.Text)
		buf = append(buf[:pt], append(ins, buf[pt:]...)...)
		pt += len(ins)
	case script.KeyDelete:
		end := pt + ed.N
		if end > len(buf) {
			end = len(buf)
		}
		buf = append(buf[:pt], buf[end:]...)
	case script.KeySetLine:
		buf = []rune(ed.Text)
		pt = len(buf)
	case script.KeyGoto:
		pt = ed.Pos
		if pt < 0 {
			pt = 0
		}
		if pt > len(buf) {
			pt = len(buf)
		}
	}
	s.keyboard.Buffer = string(buf)
	s.keyboard.Point = len(string(buf[:pt]))
}

// runePoint converts a byte offset into a rune index, clamped.
func runePoint(buf []rune, byteOff int) int {
	off := 0
	for i := range buf {
		if off >= byteOff {
			return i
		}
		off += len(string(buf[i]))
	}
	return len(buf)
}

// Keyboard returns the current keyboard snapshot.
func (s *Session) Keyboard() script.KeyboardState { return s.keyboard }

// SetKeyboard installs the host line editor's buffer and cursor.
func (s *Session) SetKeyboard(k script.KeyboardState) { s.keyboard = k }

// HandleKey runs a key sequence through the binding table. Returns
// true when a binding consumed the key.
func (s *Session) HandleKey(seq string) bool {
	s.syncEngine()
	fired := s.eng.FireBinding(seq)
	if fired {
		s.drainEffects()
	}
	return fired
}

// HandleResize raises the resize hook with the new terminal size. The
// hook args are "cols rows", so a body sees them as %1 and %2.
func (s *Session) HandleResize(cols, rows int) {
	s.syncEngine()
	size := fmt.Sprintf("%d %d", cols, rows)
	s.eng.FireHook(script.HookResize, size)
	s.drainEffects()
	s.bus.Emit(events.Event{Type: events.EvResize, Text: size, Time: time.Now()})
}

// Tick advances the #repeat scheduler.
func (s *Session) Tick(now time.Time) {
	s.syncEngine()
	if s.eng.Tick(now) > 0 {
		s.bus.Emit(events.Event{Type: events.EvBackground, Time: now})
	}
	s.drainEffects()
}

// LoadScript loads one script file through the engine and raises the
// load hook.
func (s *Session) LoadScript(path string) error {
	s.syncEngine()
	err := s.eng.LoadFile(path)
	s.drainEffects()
	if err != nil {
		return err
	}
	found := false
	for _, p := range s.loaded {
		if p == path {
			found = true
			break
		}
	}
	if !found {
		s.loaded = append(s.loaded, path)
	}
	s.bus.Emit(events.Event{Type: events.EvLoad, Text: path, Time: time.Now()})
	s.eng.FireHook("load", path)
	s.drainEffects()
	return nil
}

// LoadedScripts returns every script file loaded this session.
func (s *Session) LoadedScripts() []string {
	out := make([]string, len(s.loaded))
	copy(out, s.loaded)
	return out
}

// Run is the session main loop: input lines, network chunks, posted
// work, and scheduler ticks, all on one goroutine.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-s.inCh:
			s.HandleInput(line)
		case nc := <-s.netCh:
			s.HandleNetwork(nc)
		case fn := <-s.ctl:
			fn()
		case now := <-ticker.C:
			s.Tick(now)
		}
		if s.quitting {
			return
		}
	}
}

// Close persists the session and releases every resource. Safe to call
// once, after Run returns.
func (s *Session) Close() error {
	for name, conn := range s.conns {
		conn.Close()
		delete(s.conns, name)
	}
	var firstErr error
	if s.sstore != nil {
		if err := s.sstore.SaveSession(s.eng, s.worlds); err != nil {
			firstErr = err
		}
	}
	if err := s.closeStores(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Session) closeStores() error {
	var firstErr error
	if s.scroll != nil {
		if err := s.scroll.Close(); err != nil {
			firstErr = err
		}
		s.scroll = nil
	}
	if s.sstore != nil {
		if err := s.sstore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.sstore = nil
	}
	return firstErr
}

var helpText = []string{
	"gofugue commands:",
	"  #set name=value      set a global variable",
	"  #let name=value      set a local variable",
	"  #def [flags] name = body   define a macro (-t trigger, -b key, -h hook)",
	"  #send [-wWORLD] text send a line",
	"  #world name host port      define a world",
	"  #connect [name] / #disconnect [name]",
	"  #recall [range] [pattern]  search scrollback",
	"  #repeat [-S] interval[,count] command",
	"  #load file / #save file",
	"  #quote [-dDISP] 'file     batch file lines (send/echo/exec)",
	"  #help, #version, #exit",
}
