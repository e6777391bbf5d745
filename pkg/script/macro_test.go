package script

import (
	"testing"
)

func defineTrigger(t *testing.T, e *Engine, line string) {
	t.Helper()
	if res := e.Execute(line); res.IsError() {
		t.Fatalf("%q: %s", line, res.Message)
	}
}

// Redefinition preserves the original sequence number; new macros get
// strictly increasing, never-reused numbers.
func TestSequenceNumbersStableAcrossRedefinition(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, "#def alpha = #echo one")
	defineTrigger(t, e, "#def beta = #echo two")
	first := e.findMacro("alpha").Seq
	second := e.findMacro("beta").Seq
	if second <= first {
		t.Fatalf("sequence numbers not increasing: %d then %d", first, second)
	}

	defineTrigger(t, e, "#def alpha = #echo redefined")
	if got := e.findMacro("alpha").Seq; got != first {
		t.Errorf("redefined alpha seq = %d, want original %d", got, first)
	}

	e.Execute("#undef alpha")
	defineTrigger(t, e, "#def gamma = #echo three")
	if got := e.findMacro("gamma").Seq; got <= second {
		t.Errorf("gamma seq = %d not strictly above %d; numbers must never be reused", got, second)
	}
}

func TestTriggerMatchModes(t *testing.T) {
	tests := []struct {
		def   string
		line  string
		fires bool
	}{
		{`#def -t"pages you" t1 = #echo hit`, "Bob pages you: hi", true},
		{`#def -t"pages you" t1 = #echo hit`, "nothing here", false},
		{`#def -t"* pages you: *" -mglob t2 = #echo from %P1`, "Bob pages you: hi", true},
		{`#def -t"* pages you: *" -mglob t2 = #echo from %P1`, "Bob says hi", false},
		{`#def -t"^(\w+) has arrived" -mregexp t3 = #echo %P1 came`, "Ann has arrived.", true},
		{`#def -t"^(\w+) has arrived" -mregexp t3 = #echo %P1 came`, "has arrived", false},
	}
	for _, tt := range tests {
		e := NewEngine()
		defineTrigger(t, e, tt.def)
		_, fired := e.MatchLine(tt.line)
		if fired != tt.fires {
			t.Errorf("%q against %q: fired = %v, want %v", tt.def, tt.line, fired, tt.fires)
		}
	}
}

func TestGlobCapturesInBody(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, `#def -t"* pages you: *" -mglob pg = #echo page from %P1: %P2`)
	if _, fired := e.MatchLine("Bob pages you: hello there"); !fired {
		t.Fatalf("trigger did not fire")
	}
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 1 || echoes[0] != "page from Bob: hello there" {
		t.Errorf("echoes = %v", echoes)
	}
}

func TestPriorityOrderAndFallThrough(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, `#def -t"ouch" -p1 low = #echo low`)
	defineTrigger(t, e, `#def -t"ouch" -p5 -F high = #echo high`)
	e.MatchLine("ouch that hurt")
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 2 || echoes[0] != "high" || echoes[1] != "low" {
		t.Fatalf("echoes = %v, want [high low]", echoes)
	}

	// Without fall-through the first fire stops the scan.
	e2 := NewEngine()
	defineTrigger(t, e2, `#def -t"ouch" -p1 low = #echo low`)
	defineTrigger(t, e2, `#def -t"ouch" -p5 high = #echo high`)
	e2.MatchLine("ouch again")
	echoes = e2.Effects().DrainEchoes()
	if len(echoes) != 1 || echoes[0] != "high" {
		t.Errorf("echoes = %v, want [high]", echoes)
	}
}

func TestOneShotMacroRemovedAfterFiring(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, `#def -t"once" -1 solo = #echo fired`)
	if _, fired := e.MatchLine("once upon a time"); !fired {
		t.Fatalf("one-shot did not fire")
	}
	if e.findMacro("solo") != nil {
		t.Fatalf("one-shot still defined after firing")
	}
	if _, fired := e.MatchLine("once more"); fired {
		t.Errorf("removed one-shot fired again")
	}
}

func TestGuardCondition(t *testing.T) {
	e := NewEngine()
	e.Execute("#set armed=0")
	defineTrigger(t, e, `#def -t"boom" -E"armed" g = #echo bang`)
	if _, fired := e.MatchLine("boom"); fired {
		t.Fatalf("guarded macro fired with a false guard")
	}
	e.Execute("#set armed=1")
	if _, fired := e.MatchLine("boom"); !fired {
		t.Errorf("guarded macro did not fire with a true guard")
	}
}

// The guard must judge the captures of the line being matched, and a
// declined match must leave the previous slots untouched.
func TestGuardSeesCurrentCaptures(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, `#def -t"HP: *" -mglob -E"%P1 < 50" lowhp = #echo heal at %P1`)

	if _, fired := e.MatchLine("HP: 90"); fired {
		t.Fatalf("guard passed at full health")
	}
	if got := e.Captures()[1]; got != "" {
		t.Errorf("declined guard left captures behind: %q", got)
	}

	if _, fired := e.MatchLine("HP: 30"); !fired {
		t.Fatalf("guard did not see this line's captures")
	}
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 1 || echoes[0] != "heal at 30" {
		t.Errorf("echoes = %v", echoes)
	}

	if _, fired := e.MatchLine("HP: 80"); fired {
		t.Fatalf("guard passed at 80")
	}
	if got := e.Captures()[1]; got != "30" {
		t.Errorf("captures after declined match = %q, want 30", got)
	}
}

func TestRedefHookFires(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, "#hook redef #echo saw %1")
	defineTrigger(t, e, "#def tgt = #echo a")
	if echoes := e.Effects().DrainEchoes(); len(echoes) != 0 {
		t.Fatalf("redef fired on first definition: %v", echoes)
	}
	defineTrigger(t, e, "#def tgt = #echo b")
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 1 || echoes[0] != "saw tgt" {
		t.Errorf("echoes = %v, want [saw tgt]", echoes)
	}
}

// A redef hook body that itself redefines a macro must not dispatch the
// hook again.
func TestRedefHookDoesNotRecurse(t *testing.T) {
	e := NewEngine()
	e.Execute("#set hits=0")
	defineTrigger(t, e, "#def tgt = #echo old")
	defineTrigger(t, e, "#hook redef #set hits=$[hits+1]%;#def tgt = #echo replaced")
	defineTrigger(t, e, "#def other = x")
	defineTrigger(t, e, "#def other = y")
	if v, _ := e.Vars.Global("hits"); v.Int() != 1 {
		t.Errorf("hits = %v, want 1 dispatch", v)
	}
	if got := e.findMacro("tgt").Body; got != "#echo replaced" {
		t.Errorf("tgt body = %q", got)
	}
}

func TestWorldRestriction(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, `#def -t"hi" -wmoo w = #echo here`)
	e.SetCurrentWorld("other")
	if _, fired := e.MatchLine("hi"); fired {
		t.Fatalf("world-restricted macro fired in the wrong world")
	}
	e.SetCurrentWorld("moo")
	if _, fired := e.MatchLine("hi"); !fired {
		t.Errorf("macro did not fire in its own world")
	}
}

func TestGagAttribute(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, `#def -t"spam" -ag quiet =`)
	attrs, fired := e.MatchLine("spam spam spam")
	if !fired {
		t.Fatalf("gag trigger did not fire")
	}
	if attrs&AttrGag == 0 {
		t.Errorf("attrs = %v, want the gag bit", attrs)
	}
}

func TestHookDispatch(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, `#def -hconnect onconn = #echo connected to %1`)
	if n := e.FireHook("connect", "moo"); n != 1 {
		t.Fatalf("FireHook fired %d macros, want 1", n)
	}
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 1 || echoes[0] != "connected to moo" {
		t.Errorf("echoes = %v", echoes)
	}
	if n := e.FireHook("disconnect", "moo"); n != 0 {
		t.Errorf("wrong event fired %d macros", n)
	}
}

func TestHookShorthand(t *testing.T) {
	e := NewEngine()
	if res := e.Execute("#hook prompt #echo saw prompt"); res.IsError() {
		t.Fatalf("#hook: %s", res.Message)
	}
	if res := e.Execute("#hook nosuchevent #echo x"); !res.IsError() {
		t.Errorf("unknown event accepted: %v", res.Kind)
	}
	e.FireHook("prompt", "")
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 1 || echoes[0] != "saw prompt" {
		t.Errorf("echoes = %v", echoes)
	}
}

func TestBindAndFire(t *testing.T) {
	e := NewEngine()
	if res := e.Execute("#bind ^K #echo killed line"); res.IsError() {
		t.Fatalf("#bind: %s", res.Message)
	}
	if !e.FireBinding("^K") {
		t.Fatalf("binding did not fire")
	}
	if e.FireBinding("^X") {
		t.Errorf("unbound sequence fired")
	}
	if res := e.Execute("#unbind ^K"); res.IsError() {
		t.Fatalf("#unbind: %s", res.Message)
	}
	if e.FireBinding("^K") {
		t.Errorf("unbound binding still fires")
	}
}

func TestDefRejectsBuiltinShadow(t *testing.T) {
	e := NewEngine()
	if res := e.Execute("#def set = #echo no"); !res.IsError() {
		t.Errorf("#def set accepted: %v", res.Kind)
	}
}

func TestDefBraceBody(t *testing.T) {
	e := NewEngine()
	defineTrigger(t, e, "#def hail {#send Hail, %1!}")
	res := e.Execute("#hail Ann")
	if res.IsError() {
		t.Fatalf("#hail: %s", res.Message)
	}
	sends := e.Effects().DrainSends()
	if len(sends) != 1 || sends[0].Text != "Hail, Ann!" {
		t.Errorf("sends = %v", sends)
	}
}

func TestBadRegexpRejectedAtDefine(t *testing.T) {
	e := NewEngine()
	if res := e.Execute(`#def -t"(unclosed" -mregexp bad = #echo x`); !res.IsError() {
		t.Errorf("bad regexp accepted: %v", res.Kind)
	}
}
