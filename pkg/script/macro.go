package script

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Attr is a display-attribute bitmask attached to a trigger macro. The
// engine records attributes; rendering them is the host's business.
type Attr uint16

const (
	AttrGag Attr = 1 << iota
	AttrNoRecord
	AttrBold
	AttrUnderline
	AttrReverse
	AttrFlash
	AttrDim
	AttrBell
	AttrHilite
)

// attrLetters maps #def -a flag letters to attribute bits. The letters
// follow TinyFugue's attribute spellings.
var attrLetters = map[byte]Attr{
	'g': AttrGag,
	'n': AttrNoRecord,
	'B': AttrBold,
	'u': AttrUnderline,
	'r': AttrReverse,
	'f': AttrFlash,
	'd': AttrDim,
	'b': AttrBell,
	'h': AttrHilite,
}

func (a Attr) String() string {
	var sb strings.Builder
	for _, l := range []byte{'g', 'n', 'B', 'u', 'r', 'f', 'd', 'b', 'h'} {
		if a&attrLetters[l] != 0 {
			sb.WriteByte(l)
		}
	}
	return sb.String()
}

// ParseAttrs parses a #def -a letter string.
func ParseAttrs(s string) (Attr, error) {
	var a Attr
	for i := 0; i < len(s); i++ {
		bit, ok := attrLetters[s[i]]
		if !ok {
			return 0, fmt.Errorf("bad attribute %q", string(s[i]))
		}
		a |= bit
	}
	return a, nil
}

// Macro is one user-defined command, optionally bound to a trigger
// pattern, a lifecycle hook, and/or a key sequence. A macro bound to
// none of these is manual, invocable only as #name.
type Macro struct {
	Name string
	Body string

	Trigger string // pattern text, "" = no output trigger
	Mode    MatchMode
	Hook    string // lifecycle event name, "" = no hook
	Bind    string // key sequence, "" = no binding

	World    string  // fire only when this world is current; "" = any
	Guard    string  // expression gating each fire; "" = always
	Prob     float64 // firing probability in [0,1]
	Priority int
	FallThru bool
	Shots    int // remaining fires; 0 = unlimited
	Attrs    Attr

	// Seq is assigned at first definition and preserved across
	// redefinition. Never reused, even after #undef.
	Seq int
}

// DefineMacro adds m to the registry. Redefining an existing name
// replaces body and bindings but keeps the original sequence number.
func (e *Engine) DefineMacro(m *Macro) (replaced bool) {
	if old := e.findMacro(m.Name); old != nil {
		m.Seq = old.Seq
		*old = *m
		return true
	}
	m.Seq = e.nextSeq
	e.nextSeq++
	e.macros = append(e.macros, m)
	return false
}

// RestoreMacro reinstates a persisted macro under its original sequence
// number, keeping the never-reuse invariant by advancing the counter
// past it.
func (e *Engine) RestoreMacro(m *Macro) {
	if old := e.findMacro(m.Name); old != nil {
		*old = *m
	} else {
		e.macros = append(e.macros, m)
	}
	if m.Seq >= e.nextSeq {
		e.nextSeq = m.Seq + 1
	}
}

// NextSeq returns the sequence number the next new macro will receive.
func (e *Engine) NextSeq() int { return e.nextSeq }

// AdvanceSeq moves the sequence counter forward to at least n. The
// counter never moves backward, so restored state cannot hand out a
// number an undeffed macro once held.
func (e *Engine) AdvanceSeq(n int) {
	if n > e.nextSeq {
		e.nextSeq = n
	}
}

// UndefMacro removes a macro by name.
func (e *Engine) UndefMacro(name string) bool {
	for i, m := range e.macros {
		if strings.EqualFold(m.Name, name) {
			e.macros = append(e.macros[:i], e.macros[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Engine) findMacro(name string) *Macro {
	for _, m := range e.macros {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// Macros returns the registry in definition order.
func (e *Engine) Macros() []*Macro {
	out := make([]*Macro, len(e.macros))
	copy(out, e.macros)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// firingOrder returns the macros in dispatch order: descending priority,
// then ascending sequence number for a stable tie-break.
func (e *Engine) firingOrder() []*Macro {
	out := make([]*Macro, len(e.macros))
	copy(out, e.macros)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// worldEligible reports whether m may fire with the current world.
func (e *Engine) worldEligible(m *Macro) bool {
	return m.World == "" || strings.EqualFold(m.World, e.currentWorld)
}

// guardPasses evaluates m's guard condition and probability.
func (e *Engine) guardPasses(m *Macro) bool {
	if m.Guard != "" {
		ok, err := e.EvalCondition(e.Substitute(m.Guard))
		if err != nil || !ok {
			return false
		}
	}
	if m.Prob < 1.0 && e.rng.Float64() >= m.Prob {
		return false
	}
	return true
}

// MatchLine runs one incoming output line through the trigger registry.
// It returns the union of display attributes from every macro that fired
// and whether any fired. Body errors are echoed and abort only that
// macro's body; later macros still get their chance.
func (e *Engine) MatchLine(line string) (Attr, bool) {
	var attrs Attr
	fired := false
	var exhausted []*Macro
	for _, m := range e.firingOrder() {
		if m.Trigger == "" || !e.worldEligible(m) {
			continue
		}
		pat, err := e.patterns.get(m.Trigger, m.Mode)
		if err != nil {
			e.fx.QueueEcho("% " + m.Name + ": " + err.Error())
			continue
		}
		ok, captures := pat.Match(line)
		if !ok {
			continue
		}
		// The guard sees this match's captures; a declined match puts
		// the previous slots back so a skip leaves no trace.
		prev := e.captures
		e.setCaptures(captures)
		if !e.guardPasses(m) {
			e.captures = prev
			continue
		}
		fired = true
		attrs |= m.Attrs
		if m.Shots > 0 {
			m.Shots--
			if m.Shots == 0 {
				exhausted = append(exhausted, m)
			}
		}
		if err := e.runMacroBody(m, line); err != nil {
			e.fx.QueueEcho("% " + m.Name + ": " + err.Error())
		}
		if !m.FallThru {
			break
		}
	}
	for _, m := range exhausted {
		e.UndefMacro(m.Name)
	}
	return attrs, fired
}

// FireBinding fires the macro bound to a key sequence, if any.
func (e *Engine) FireBinding(keyseq string) bool {
	for _, m := range e.firingOrder() {
		if m.Bind != keyseq || !e.worldEligible(m) {
			continue
		}
		if !e.guardPasses(m) {
			continue
		}
		if m.Shots > 0 {
			m.Shots--
			if m.Shots == 0 {
				defer e.UndefMacro(m.Name)
			}
		}
		if err := e.runMacroBody(m, ""); err != nil {
			e.fx.QueueEcho("% " + m.Name + ": " + err.Error())
		}
		return true
	}
	return false
}

// invokeMacro runs a macro called by name as #name args.
func (e *Engine) invokeMacro(m *Macro, args string) CommandResult {
	if err := e.runMacroBody(m, e.Substitute(args)); err != nil {
		if err == errAbortLoad {
			return abortLoad()
		}
		return errMsg("%s: %v", m.Name, err)
	}
	return okResult()
}

// runMacroBody executes a macro body in a fresh local scope. Positional
// parameters %1..%n, %* and %# are bound from args; a failing part
// aborts the remainder of this body only.
func (e *Engine) runMacroBody(m *Macro, args string) error {
	e.Vars.PushScope()
	defer e.Vars.PopScope()
	e.Vars.SetLocal("*", StringValue(args))
	fields := strings.Fields(args)
	e.Vars.SetLocal("#", IntValue(int64(len(fields))))
	for i, f := range fields {
		e.Vars.SetLocal(strconv.Itoa(i+1), ParseValue(f))
	}
	for _, part := range splitBody(m.Body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := e.executeInternal(part); err != nil {
			return err
		}
	}
	if e.block.collecting() {
		e.block.reset()
		return scriptError("unterminated block in macro body")
	}
	return nil
}

// cmdDef parses "#def [flags] name = body" (or "name {body}"). Flags:
//
//	-t<pattern>  output trigger (quote to include spaces)
//	-m<mode>     match mode: simple, glob, regexp
//	-h<event>    lifecycle hook
//	-b<keyseq>   key binding
//	-w<world>    world restriction
//	-E<expr>     guard condition
//	-p<n>        priority
//	-c<p>        firing probability in [0,1]
//	-n<n>        shots (one-shot count); -1 is shorthand for -n1
//	-a<letters>  display attributes
//	-F           fall-through
func (e *Engine) cmdDef(rest string) CommandResult {
	m := &Macro{Prob: 1.0}
	for strings.HasPrefix(rest, "-") {
		var flag string
		var err error
		flag, rest, err = takeFlag(rest)
		if err != nil {
			return errMsg("#def: %v", err)
		}
		if err := applyDefFlag(m, flag); err != nil {
			return errMsg("#def: %v", err)
		}
	}
	name, body, err := splitDefNameBody(rest)
	if err != nil {
		return errMsg("#def: %v", err)
	}
	m.Name = name
	m.Body = body
	if e.isBuiltinName(name) {
		return errMsg("#def: %s shadows a builtin command", name)
	}
	if m.Trigger != "" {
		if _, err := e.patterns.get(m.Trigger, m.Mode); err != nil {
			return errMsg("#def: %v", err)
		}
	}
	if e.DefineMacro(m) {
		e.fireRedef(m.Name)
		return okMsg("redefined macro %s", m.Name)
	}
	return okResult()
}

// fireRedef raises the redef hook for a replaced macro. A hook body
// that itself redefines a macro must not recurse.
func (e *Engine) fireRedef(name string) {
	if e.inRedef {
		return
	}
	e.inRedef = true
	e.FireHook(HookRedef, name)
	e.inRedef = false
	if e.onRedef != nil {
		e.onRedef(name)
	}
}

// takeFlag pulls one -x flag off rest. The flag argument may be quoted
// so patterns and guards can carry spaces: -t"has two words".
func takeFlag(rest string) (flag, tail string, err error) {
	if len(rest) < 2 {
		return "", "", fmt.Errorf("bad flag %q", rest)
	}
	// Letter, then a possibly quoted argument.
	head := rest[:2]
	rest = rest[2:]
	if strings.HasPrefix(rest, `"`) {
		end := -1
		for i := 1; i < len(rest); i++ {
			if rest[i] == '\\' {
				i++
				continue
			}
			if rest[i] == '"' {
				end = i
				break
			}
		}
		if end < 0 {
			return "", "", fmt.Errorf("unterminated quote in flag %s", head)
		}
		arg := strings.ReplaceAll(rest[1:end], `\"`, `"`)
		return head + arg, strings.TrimLeft(rest[end+1:], " "), nil
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		return head + rest[:i], strings.TrimLeft(rest[i+1:], " "), nil
	}
	return head + rest, "", nil
}

func applyDefFlag(m *Macro, flag string) error {
	letter, arg := flag[1], flag[2:]
	switch letter {
	case 't':
		m.Trigger = arg
	case 'm':
		mode, err := ParseMatchMode(arg)
		if err != nil {
			return err
		}
		m.Mode = mode
	case 'h':
		m.Hook = strings.ToLower(arg)
	case 'b':
		m.Bind = arg
	case 'w':
		m.World = arg
	case 'E':
		m.Guard = arg
	case 'p':
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("bad priority %q", arg)
		}
		m.Priority = n
	case 'c':
		p, err := strconv.ParseFloat(arg, 64)
		if err != nil || p < 0 || p > 1 {
			return fmt.Errorf("bad probability %q", arg)
		}
		m.Prob = p
	case 'n':
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return fmt.Errorf("bad shot count %q", arg)
		}
		m.Shots = n
	case '1':
		if arg != "" {
			return fmt.Errorf("unknown flag -1%s", arg)
		}
		m.Shots = 1
	case 'a':
		a, err := ParseAttrs(arg)
		if err != nil {
			return err
		}
		m.Attrs = a
	case 'F':
		if arg != "" {
			return fmt.Errorf("unknown flag -F%s", arg)
		}
		m.FallThru = true
	default:
		return fmt.Errorf("unknown flag -%s", string(letter))
	}
	return nil
}

// splitDefNameBody separates the macro name from its body. The body may
// follow "=" or be wrapped in balanced braces; a bare name defines a
// bodyless macro.
func splitDefNameBody(rest string) (name, body string, err error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", "", fmt.Errorf("missing macro name")
	}
	sp := strings.IndexAny(rest, " =")
	if sp < 0 {
		return rest, "", nil
	}
	name = rest[:sp]
	tail := strings.TrimLeft(rest[sp:], " ")
	switch {
	case strings.HasPrefix(tail, "="):
		body = strings.TrimLeft(tail[1:], " ")
	case strings.HasPrefix(tail, "{"):
		inner, end, found := scanBalanced(tail, 1, '{', '}')
		if !found {
			return "", "", fmt.Errorf("unbalanced braces in body")
		}
		if strings.TrimSpace(tail[end+1:]) != "" {
			return "", "", fmt.Errorf("trailing text after body")
		}
		body = inner
	default:
		return "", "", fmt.Errorf("expected = or { after macro name")
	}
	if strings.ContainsAny(name, "{}=") {
		return "", "", fmt.Errorf("bad macro name %q", name)
	}
	return name, body, nil
}

func (e *Engine) isBuiltinName(name string) bool {
	_, ok := commandWords[strings.ToLower(name)]
	return ok
}

func (e *Engine) cmdUndef(rest string) CommandResult {
	name := strings.TrimSpace(rest)
	if name == "" {
		return errMsg("#undef: usage is #undef <name>")
	}
	if !e.UndefMacro(name) {
		return errMsg("#undef: no macro named %s", name)
	}
	return okResult()
}

// cmdBind defines a key-bound macro: "#bind keyseq command". The key
// sequence may be quoted to include spaces.
func (e *Engine) cmdBind(rest string) CommandResult {
	keyseq, command, err := splitBindArgs(rest)
	if err != nil {
		return errMsg("#bind: %v", err)
	}
	m := &Macro{
		Name: "bind-" + keyseq,
		Body: command,
		Bind: keyseq,
		Prob: 1.0,
	}
	if e.DefineMacro(m) {
		e.fireRedef(m.Name)
	}
	return okResult()
}

func splitBindArgs(rest string) (keyseq, command string, err error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", "", fmt.Errorf("usage is #bind <keyseq> <command>")
	}
	if strings.HasPrefix(rest, `"`) {
		inner, end, found := scanBalanced(rest, 1, 0, '"')
		if !found {
			return "", "", fmt.Errorf("unterminated quote")
		}
		return inner, strings.TrimLeft(rest[end+1:], " "), nil
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		return rest[:i], strings.TrimLeft(rest[i+1:], " "), nil
	}
	return "", "", fmt.Errorf("usage is #bind <keyseq> <command>")
}

func (e *Engine) cmdUnbind(rest string) CommandResult {
	keyseq := strings.TrimSpace(rest)
	if keyseq == "" {
		return errMsg("#unbind: usage is #unbind <keyseq>")
	}
	for _, m := range e.macros {
		if m.Bind == keyseq {
			e.UndefMacro(m.Name)
			return okResult()
		}
	}
	return errMsg("#unbind: nothing bound to %s", keyseq)
}

// cmdHook is shorthand for a hook-only macro: "#hook event command".
func (e *Engine) cmdHook(rest string) CommandResult {
	event, command, ok := strings.Cut(rest, " ")
	if !ok || strings.TrimSpace(command) == "" {
		return errMsg("#hook: usage is #hook <event> <command>")
	}
	event = strings.ToLower(strings.TrimSpace(event))
	if !KnownHook(event) {
		return errMsg("#hook: unknown event %s", event)
	}
	m := &Macro{
		Name: "hook-" + event,
		Body: strings.TrimLeft(command, " "),
		Hook: event,
		Prob: 1.0,
	}
	if e.DefineMacro(m) {
		e.fireRedef(m.Name)
	}
	return okResult()
}

// cmdList echoes the defined macros, optionally filtered by a glob over
// macro names.
func (e *Engine) cmdList(rest string) CommandResult {
	pattern := strings.TrimSpace(rest)
	n := 0
	for _, m := range e.Macros() {
		if pattern != "" {
			if ok, _ := matchWild(pattern, m.Name); !ok {
				continue
			}
		}
		e.fx.QueueEcho("% " + m.defString())
		n++
	}
	if n == 0 {
		return okMsg("no macros defined")
	}
	return okResult()
}

// defString renders the macro as a #def line that would recreate it.
func (m *Macro) defString() string {
	var sb strings.Builder
	sb.WriteString("#def ")
	if m.Trigger != "" {
		sb.WriteString(`-t"` + strings.ReplaceAll(m.Trigger, `"`, `\"`) + `" `)
	}
	if m.Mode != MatchSubstr {
		sb.WriteString("-m" + m.Mode.String() + " ")
	}
	if m.Hook != "" {
		sb.WriteString("-h" + m.Hook + " ")
	}
	if m.Bind != "" {
		sb.WriteString(`-b"` + m.Bind + `" `)
	}
	if m.World != "" {
		sb.WriteString("-w" + m.World + " ")
	}
	if m.Guard != "" {
		sb.WriteString(`-E"` + strings.ReplaceAll(m.Guard, `"`, `\"`) + `" `)
	}
	if m.Priority != 0 {
		sb.WriteString("-p" + strconv.Itoa(m.Priority) + " ")
	}
	if m.Prob != 1.0 {
		sb.WriteString("-c" + strconv.FormatFloat(m.Prob, 'g', -1, 64) + " ")
	}
	if m.Shots == 1 {
		sb.WriteString("-1 ")
	} else if m.Shots > 1 {
		sb.WriteString("-n" + strconv.Itoa(m.Shots) + " ")
	}
	if m.Attrs != 0 {
		sb.WriteString("-a" + m.Attrs.String() + " ")
	}
	if m.FallThru {
		sb.WriteString("-F ")
	}
	sb.WriteString(m.Name + " = " + m.Body)
	return sb.String()
}
