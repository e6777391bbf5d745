package script

import (
	"sort"
	"strconv"
	"strings"
)

// commandPrefix introduces a script command; anything else is raw game
// input.
const commandPrefix = "#"

// splitCommand separates the lowercased command name from its argument
// text. Lines without the prefix return an empty name.
func splitCommand(line string) (name, rest string) {
	if !strings.HasPrefix(line, commandPrefix) {
		return "", line
	}
	body := line[len(commandPrefix):]
	if i := strings.IndexByte(body, ' '); i >= 0 {
		return strings.ToLower(body[:i]), strings.TrimLeft(body[i+1:], " ")
	}
	return strings.ToLower(body), ""
}

// commandKind is the closed set of builtin commands. The keyword is
// resolved to a kind once, then handled by one exhaustive switch; there
// is no runtime-registered command table.
type commandKind int

const (
	ckSet commandKind = iota
	ckLet
	ckUnset
	ckExport
	ckEcho
	ckSend
	ckIf
	ckElseif
	ckElse
	ckEndif
	ckWhile
	ckDone
	ckFor
	ckBreak
	ckDef
	ckUndef
	ckBind
	ckUnbind
	ckHook
	ckList
	ckLoad
	ckRequire
	ckSave
	ckRecall
	ckQuote
	ckRepeat
	ckKill
	ckPS
	ckWorld
	ckConnect
	ckDisconnect
	ckVersion
	ckExit
	ckQuit
	ckHelp
)

var commandWords = map[string]commandKind{
	"set": ckSet, "let": ckLet, "unset": ckUnset, "export": ckExport,
	"echo": ckEcho, "send": ckSend,
	"if": ckIf, "elseif": ckElseif, "else": ckElse, "endif": ckEndif,
	"while": ckWhile, "done": ckDone, "for": ckFor, "break": ckBreak,
	"def": ckDef, "undef": ckUndef, "bind": ckBind, "unbind": ckUnbind,
	"hook": ckHook, "list": ckList,
	"load": ckLoad, "require": ckRequire, "save": ckSave,
	"recall": ckRecall, "quote": ckQuote,
	"repeat": ckRepeat, "kill": ckKill, "ps": ckPS,
	"world": ckWorld, "connect": ckConnect, "disconnect": ckDisconnect,
	"version": ckVersion, "exit": ckExit, "quit": ckQuit, "help": ckHelp,
}

// dispatch routes one prefixed line to its builtin handler. The keyword
// is matched against the builtin set first; failing that, against
// defined macro names so a macro can be invoked as #name args.
func (e *Engine) dispatch(line string) CommandResult {
	name, rest := splitCommand(line)
	if name == "" {
		return errMsg("empty command")
	}
	kind, ok := commandWords[name]
	if !ok {
		if m := e.findMacro(name); m != nil {
			return e.invokeMacro(m, rest)
		}
		return unknownCommand(name)
	}
	switch kind {
	case ckSet:
		return e.cmdSet(rest, false)
	case ckLet:
		return e.cmdSet(rest, true)
	case ckUnset:
		return e.cmdUnset(rest)
	case ckExport:
		return e.cmdExport(rest)

	case ckEcho:
		e.fx.QueueEcho(e.Substitute(rest))
		return okResult()
	case ckSend:
		return e.cmdSend(rest)

	case ckIf:
		e.block.begin(blockIf, line)
		return okResult()
	case ckWhile:
		e.block.begin(blockWhile, line)
		return okResult()
	case ckFor:
		e.block.begin(blockFor, line)
		return okResult()
	case ckElseif, ckElse:
		return errMsg("#%s without #if", name)
	case ckEndif:
		return errMsg("#endif without #if")
	case ckDone:
		return errMsg("#done without #while or #for")
	case ckBreak:
		if e.loopDepth == 0 {
			return errMsg("#break outside a loop")
		}
		e.breakFlag = true
		return okResult()

	case ckDef:
		return e.cmdDef(rest)
	case ckUndef:
		return e.cmdUndef(rest)
	case ckBind:
		return e.cmdBind(rest)
	case ckUnbind:
		return e.cmdUnbind(rest)
	case ckHook:
		return e.cmdHook(rest)
	case ckList:
		return e.cmdList(rest)

	case ckLoad:
		return e.cmdLoad(rest)
	case ckRequire:
		return e.cmdRequire(rest)
	case ckSave:
		return e.cmdSave(rest)

	case ckRecall:
		return e.cmdRecall(rest)
	case ckQuote:
		return e.cmdQuote(rest)

	case ckRepeat:
		return e.cmdRepeat(rest)
	case ckKill:
		return e.cmdKill(rest)
	case ckPS:
		return e.cmdPS()

	case ckWorld:
		return e.cmdWorld(rest)
	case ckConnect:
		return e.cmdConnect(rest)
	case ckDisconnect:
		return e.cmdDisconnect(rest)

	case ckVersion:
		return okMsg("gofugue %s", Version)
	case ckExit:
		if e.Loading() {
			return abortLoad()
		}
		return clientCommand("exit")
	case ckQuit, ckHelp:
		return clientCommand(name)
	}
	return unknownCommand(name)
}

// cmdSet handles #set (global) and #let (innermost local scope). With no
// arguments, #set lists the global variables.
func (e *Engine) cmdSet(rest string, local bool) CommandResult {
	if rest == "" {
		if local {
			return errMsg("#let: usage is #let <name>=<value>")
		}
		names := e.Vars.GlobalNames()
		if len(names) == 0 {
			return okMsg("no variables set")
		}
		for _, n := range names {
			v, _ := e.Vars.Get(n)
			e.fx.QueueEcho("% " + n + "=" + v.Text())
		}
		return okResult()
	}
	name, raw, ok := splitAssignment(rest)
	if !ok {
		return errMsg("#%s: usage is #%s <name>=<value>", setWord(local), setWord(local))
	}
	val := ParseValue(e.Substitute(raw))
	if local {
		e.Vars.SetLocal(name, val)
	} else {
		e.Vars.SetGlobal(name, val)
	}
	return okResult()
}

func setWord(local bool) string {
	if local {
		return "let"
	}
	return "set"
}

// splitAssignment accepts "name=value" or "name value".
func splitAssignment(rest string) (name, value string, ok bool) {
	if i := strings.IndexByte(rest, '='); i >= 0 {
		name = strings.TrimSpace(rest[:i])
		value = rest[i+1:]
	} else if i := strings.IndexByte(rest, ' '); i >= 0 {
		name = rest[:i]
		value = strings.TrimLeft(rest[i+1:], " ")
	} else {
		name = rest
		value = ""
	}
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return name, value, true
}

func (e *Engine) cmdUnset(rest string) CommandResult {
	if rest == "" {
		return errMsg("#unset: usage is #unset <name>")
	}
	for _, name := range strings.Fields(rest) {
		e.Vars.Unset(name)
	}
	return okResult()
}

// cmdExport marks globals for inclusion in #save output.
func (e *Engine) cmdExport(rest string) CommandResult {
	if rest == "" {
		return errMsg("#export: usage is #export <name>")
	}
	for _, name := range strings.Fields(rest) {
		if _, ok := e.Vars.Get(name); !ok {
			return errMsg("#export: %s is not set", name)
		}
		e.Vars.Export(name)
	}
	return okResult()
}

// cmdSend handles "#send [-wWorld] text".
func (e *Engine) cmdSend(rest string) CommandResult {
	world := ""
	for strings.HasPrefix(rest, "-") {
		flag, tail := nextFlag(rest)
		if !strings.HasPrefix(flag, "-w") {
			return errMsg("#send: unknown flag %s", flag)
		}
		world = flag[2:]
		rest = tail
	}
	return sendResult(world, e.Substitute(rest))
}

// nextFlag pulls one space-delimited -x token off the front of rest.
func nextFlag(rest string) (flag, tail string) {
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		return rest[:i], strings.TrimLeft(rest[i+1:], " ")
	}
	return rest, ""
}

// cmdWorld handles "#world name host port [user [password]]" and queues
// a world add/edit for the host to apply.
func (e *Engine) cmdWorld(rest string) CommandResult {
	fields := strings.Fields(e.Substitute(rest))
	if len(fields) == 0 {
		names := make([]string, 0, len(e.worlds))
		for n := range e.worlds {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			w := e.worlds[n]
			state := "unconnected"
			if w.Connected {
				state = "connected"
			}
			e.fx.QueueEcho("% " + n + " " + w.Addr() + " (" + state + ")")
		}
		return okResult()
	}
	if len(fields) < 3 {
		return errMsg("#world: usage is #world <name> <host> <port> [user [password]]")
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil || port <= 0 || port > 65535 {
		return errMsg("#world: bad port %q", fields[2])
	}
	op := WorldOp{Kind: WorldOpAdd, Name: fields[0], Host: fields[1], Port: port}
	if _, exists := e.worlds[op.Name]; exists {
		op.Kind = WorldOpEdit
	}
	if len(fields) > 3 {
		op.User = fields[3]
	}
	if len(fields) > 4 {
		op.Password = fields[4]
	}
	e.fx.QueueWorldOp(op)
	return okResult()
}

func (e *Engine) cmdConnect(rest string) CommandResult {
	name := strings.TrimSpace(e.Substitute(rest))
	if name == "" {
		name = e.currentWorld
	}
	if name == "" {
		return errMsg("#connect: no world named and no current world")
	}
	e.fx.QueueWorldOp(WorldOp{Kind: WorldOpConnect, Name: name})
	return okResult()
}

func (e *Engine) cmdDisconnect(rest string) CommandResult {
	name := strings.TrimSpace(e.Substitute(rest))
	if name == "" {
		name = e.currentWorld
	}
	if name == "" {
		return errMsg("#disconnect: no world named and no current world")
	}
	e.fx.QueueWorldOp(WorldOp{Kind: WorldOpDisconnect, Name: name})
	return okResult()
}
