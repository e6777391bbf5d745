package script

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FnHandler is the signature of a builtin function implementation.
type FnHandler func(e *Engine, args []Value) (Value, error)

// Function is a registered builtin callable from expressions.
// MaxArgs of -1 means variadic.
type Function struct {
	Name    string
	Handler FnHandler
	MinArgs int
	MaxArgs int
}

// RegisterFunction adds a builtin to the catalog.
func (e *Engine) RegisterFunction(name string, handler FnHandler, minArgs, maxArgs int) {
	e.funcs[strings.ToLower(name)] = &Function{
		Name:    name,
		Handler: handler,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
	}
}

func (e *Engine) callFunction(name string, args []Value) (Value, error) {
	fn, ok := e.funcs[strings.ToLower(name)]
	if !ok {
		return Value{}, fmt.Errorf("%s: no such function", name)
	}
	if len(args) < fn.MinArgs {
		return Value{}, fmt.Errorf("%s: expects at least %d arguments, got %d", fn.Name, fn.MinArgs, len(args))
	}
	if fn.MaxArgs >= 0 && len(args) > fn.MaxArgs {
		return Value{}, fmt.Errorf("%s: expects at most %d arguments, got %d", fn.Name, fn.MaxArgs, len(args))
	}
	return fn.Handler(e, args)
}

// registerBuiltins installs the builtin catalog. Functions with external
// effect (send, echo, substitute) never act immediately: they enqueue on
// the effect queues and return a placeholder so evaluation stays pure.
func registerBuiltins(e *Engine) {
	// Arithmetic
	e.RegisterFunction("abs", fnAbs, 1, 1)
	e.RegisterFunction("max", fnMax, 1, -1)
	e.RegisterFunction("min", fnMin, 1, -1)
	e.RegisterFunction("mod", fnMod, 2, 2)
	e.RegisterFunction("trunc", fnTrunc, 1, 1)
	e.RegisterFunction("rand", fnRand, 0, 1)

	// Strings
	e.RegisterFunction("strlen", fnStrlen, 1, 1)
	e.RegisterFunction("strcat", fnStrcat, 0, -1)
	e.RegisterFunction("substr", fnSubstr, 2, 3)
	e.RegisterFunction("strstr", fnStrstr, 2, 2)
	e.RegisterFunction("strrep", fnStrrep, 2, 2)
	e.RegisterFunction("tolower", fnTolower, 1, 1)
	e.RegisterFunction("toupper", fnToupper, 1, 1)
	e.RegisterFunction("replace", fnReplace, 3, 3)
	e.RegisterFunction("pad", fnPad, 1, 2)
	e.RegisterFunction("ascii", fnAscii, 1, 1)
	e.RegisterFunction("char", fnChar, 1, 1)

	// Pattern matching
	e.RegisterFunction("regmatch", fnRegmatch, 2, 2)

	// Effectful (deferred)
	e.RegisterFunction("echo", fnEcho, 1, 1)
	e.RegisterFunction("send", fnSend, 1, 2)
	e.RegisterFunction("substitute", fnSubstituteLine, 1, 1)

	// Keyboard buffer accessors
	e.RegisterFunction("kbhead", fnKbhead, 0, 0)
	e.RegisterFunction("kbtail", fnKbtail, 0, 0)
	e.RegisterFunction("kbpoint", fnKbpoint, 0, 0)
	e.RegisterFunction("kblen", fnKblen, 0, 0)

	// Keyboard buffer editors (deferred, like echo/send)
	e.RegisterFunction("grab", fnGrab, 1, 1)
	e.RegisterFunction("input", fnInput, 1, 1)
	e.RegisterFunction("kbgoto", fnKbgoto, 1, 1)
	e.RegisterFunction("kbdel", fnKbdel, 1, 1)

	// World info accessors
	e.RegisterFunction("world_info", fnWorldInfo, 1, 2)

	// Time
	e.RegisterFunction("time", fnTime, 0, 0)
	e.RegisterFunction("ftime", fnFtime, 0, 2)
}

func fnAbs(e *Engine, args []Value) (Value, error) {
	v := args[0]
	if !v.IsNumber() {
		return Value{}, fmt.Errorf("abs: not a number")
	}
	if v.Kind() == KindFloat {
		f := v.Float()
		if f < 0 {
			f = -f
		}
		return FloatValue(f), nil
	}
	n := v.Int()
	if n < 0 {
		n = -n
	}
	return IntValue(n), nil
}

func fnMax(e *Engine, args []Value) (Value, error) {
	best := args[0]
	for _, v := range args[1:] {
		if v.Float() > best.Float() {
			best = v
		}
	}
	return best, nil
}

func fnMin(e *Engine, args []Value) (Value, error) {
	best := args[0]
	for _, v := range args[1:] {
		if v.Float() < best.Float() {
			best = v
		}
	}
	return best, nil
}

func fnMod(e *Engine, args []Value) (Value, error) {
	if args[1].Int() == 0 {
		return Value{}, fmt.Errorf("mod: division by zero")
	}
	return IntValue(args[0].Int() % args[1].Int()), nil
}

func fnTrunc(e *Engine, args []Value) (Value, error) {
	return IntValue(args[0].Int()), nil
}

func fnRand(e *Engine, args []Value) (Value, error) {
	if len(args) == 0 {
		return FloatValue(e.rng.Float64()), nil
	}
	n := args[0].Int()
	if n <= 0 {
		return Value{}, fmt.Errorf("rand: bound must be positive")
	}
	return IntValue(e.rng.Int63n(n)), nil
}

func fnStrlen(e *Engine, args []Value) (Value, error) {
	return IntValue(int64(len(args[0].Text()))), nil
}

func fnStrcat(e *Engine, args []Value) (Value, error) {
	var sb strings.Builder
	for _, v := range args {
		sb.WriteString(v.Text())
	}
	return StringValue(sb.String()), nil
}

func fnSubstr(e *Engine, args []Value) (Value, error) {
	s := args[0].Text()
	start := int(args[1].Int())
	if start < 0 {
		start = len(s) + start
	}
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	end := len(s)
	if len(args) == 3 {
		n := int(args[2].Int())
		if n < 0 {
			n = 0
		}
		if start+n < end {
			end = start + n
		}
	}
	return StringValue(s[start:end]), nil
}

func fnStrstr(e *Engine, args []Value) (Value, error) {
	return IntValue(int64(strings.Index(args[0].Text(), args[1].Text()))), nil
}

func fnStrrep(e *Engine, args []Value) (Value, error) {
	n := int(args[1].Int())
	if n < 0 {
		n = 0
	}
	return StringValue(strings.Repeat(args[0].Text(), n)), nil
}

func fnTolower(e *Engine, args []Value) (Value, error) {
	return StringValue(strings.ToLower(args[0].Text())), nil
}

func fnToupper(e *Engine, args []Value) (Value, error) {
	return StringValue(strings.ToUpper(args[0].Text())), nil
}

func fnReplace(e *Engine, args []Value) (Value, error) {
	return StringValue(strings.ReplaceAll(args[2].Text(), args[0].Text(), args[1].Text())), nil
}

func fnPad(e *Engine, args []Value) (Value, error) {
	s := args[0].Text()
	width := 0
	if len(args) == 2 {
		width = int(args[1].Int())
	}
	if width >= 0 {
		for len(s) < width {
			s = s + " "
		}
	} else {
		for len(s) < -width {
			s = " " + s
		}
	}
	return StringValue(s), nil
}

func fnAscii(e *Engine, args []Value) (Value, error) {
	s := args[0].Text()
	if s == "" {
		return Value{}, fmt.Errorf("ascii: empty string")
	}
	return IntValue(int64(s[0])), nil
}

func fnChar(e *Engine, args []Value) (Value, error) {
	n := args[0].Int()
	if n < 0 || n > 255 {
		return Value{}, fmt.Errorf("char: out of range")
	}
	return StringValue(string(rune(n))), nil
}

// fnRegmatch matches a regular expression against a string, returning 1
// on a match and 0 otherwise. On success the numbered capture slots
// %P0..%P9 are populated for later substitutions in the same command.
func fnRegmatch(e *Engine, args []Value) (Value, error) {
	re, err := regexp.Compile(args[0].Text())
	if err != nil {
		return Value{}, fmt.Errorf("regmatch: %v", err)
	}
	m := re.FindStringSubmatch(args[1].Text())
	if m == nil {
		return IntValue(0), nil
	}
	e.setCaptures(m)
	return IntValue(1), nil
}

func fnEcho(e *Engine, args []Value) (Value, error) {
	e.fx.QueueEcho(args[0].Text())
	return IntValue(1), nil
}

func fnSend(e *Engine, args []Value) (Value, error) {
	world := ""
	if len(args) == 2 {
		world = args[1].Text()
	}
	e.fx.QueueSend(world, args[0].Text())
	return IntValue(1), nil
}

func fnSubstituteLine(e *Engine, args []Value) (Value, error) {
	e.fx.QueueSubstitution(args[0].Text())
	return IntValue(1), nil
}

func fnKbhead(e *Engine, args []Value) (Value, error) {
	k := e.keyboard
	if k.Point > len(k.Buffer) {
		return StringValue(k.Buffer), nil
	}
	return StringValue(k.Buffer[:k.Point]), nil
}

func fnKbtail(e *Engine, args []Value) (Value, error) {
	k := e.keyboard
	if k.Point > len(k.Buffer) {
		return StringValue(""), nil
	}
	return StringValue(k.Buffer[k.Point:]), nil
}

func fnKbpoint(e *Engine, args []Value) (Value, error) {
	return IntValue(int64(e.keyboard.Point)), nil
}

func fnKblen(e *Engine, args []Value) (Value, error) {
	return IntValue(int64(len(e.keyboard.Buffer))), nil
}

// fnGrab replaces the whole input buffer (TF grab()).
func fnGrab(e *Engine, args []Value) (Value, error) {
	e.fx.QueueKeyEdit(KeyEdit{Kind: KeySetLine, Text: args[0].Text()})
	return IntValue(1), nil
}

// fnInput inserts text at the cursor (TF input()).
func fnInput(e *Engine, args []Value) (Value, error) {
	e.fx.QueueKeyEdit(KeyEdit{Kind: KeyInsert, Text: args[0].Text()})
	return IntValue(1), nil
}

func fnKbgoto(e *Engine, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return Value{}, fmt.Errorf("kbgoto: not a number")
	}
	e.fx.QueueKeyEdit(KeyEdit{Kind: KeyGoto, Pos: int(args[0].Int())})
	return IntValue(1), nil
}

func fnKbdel(e *Engine, args []Value) (Value, error) {
	if !args[0].IsNumber() {
		return Value{}, fmt.Errorf("kbdel: not a number")
	}
	e.fx.QueueKeyEdit(KeyEdit{Kind: KeyDelete, N: int(args[0].Int())})
	return IntValue(1), nil
}

// fnWorldInfo reads a field from the world snapshot. With one argument
// the field is read from the current world.
func fnWorldInfo(e *Engine, args []Value) (Value, error) {
	name := e.currentWorld
	field := args[0].Text()
	if len(args) == 2 {
		name = args[0].Text()
		field = args[1].Text()
	}
	w, ok := e.worlds[name]
	if !ok {
		return StringValue(""), nil
	}
	switch strings.ToLower(field) {
	case "name":
		return StringValue(w.Name), nil
	case "host":
		return StringValue(w.Host), nil
	case "port":
		return IntValue(int64(w.Port)), nil
	case "user", "character":
		return StringValue(w.User), nil
	case "connected":
		return BoolValue(w.Connected), nil
	case "ssl", "tls":
		return BoolValue(w.TLS), nil
	}
	return Value{}, fmt.Errorf("world_info: unknown field %q", field)
}

func fnTime(e *Engine, args []Value) (Value, error) {
	return IntValue(e.now().Unix()), nil
}

func fnFtime(e *Engine, args []Value) (Value, error) {
	layout := "15:04:05"
	t := e.now()
	if len(args) >= 1 {
		layout = args[0].Text()
	}
	if len(args) == 2 {
		t = time.Unix(args[1].Int(), 0)
	}
	return StringValue(t.Format(layout)), nil
}
