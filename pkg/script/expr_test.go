package script

import "testing"

func TestEvalArithmetic(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		expr string
		want string
	}{
		{"1+2", "3"},
		{"2*3+4", "10"},
		{"2+3*4", "14"},
		{"(2+3)*4", "20"},
		{"10/4", "2"},
		{"10.0/4", "2.5"},
		{"7%3", "1"},
		{"-5+2", "-3"},
		{"2>1", "1"},
		{"2<1", "0"},
		{"3>=3", "1"},
		{"1==1", "1"},
		{"1!=1", "0"},
		{"1&0", "0"},
		{"1|0", "1"},
		{"!0", "1"},
		{"!5", "0"},
		{`"abc"=~"abc"`, "1"},
		{`"abc"!~"abd"`, "1"},
		{`"foo"+"bar"`, "foobar"},
		{`"n="+3`, "n=3"},
		{`max(3,9,5)`, "9"},
		{`min(3,9,5)`, "3"},
		{`abs(-4)`, "4"},
		{`strlen("hello")`, "5"},
		{`toupper("abc")`, "ABC"},
		{`substr("abcdef",2,3)`, "cde"},
		{`strcat("a","b","c")`, "abc"},
		{`mod(10,3)`, "1"},
	}
	for _, tt := range tests {
		v, err := e.Eval(tt.expr)
		if err != nil {
			t.Errorf("Eval(%q): %v", tt.expr, err)
			continue
		}
		if v.Text() != tt.want {
			t.Errorf("Eval(%q) = %q, want %q", tt.expr, v.Text(), tt.want)
		}
	}
}

func TestEvalVariables(t *testing.T) {
	e := NewEngine()
	e.Vars.SetGlobal("hp", IntValue(30))
	v, err := e.Eval("hp<50")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Truthy() {
		t.Errorf("hp<50 with hp=30 is false")
	}

	// An unset variable evaluates as empty text, not an error.
	v, err = e.Eval(`nothere=~""`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Truthy() {
		t.Errorf("unset variable did not read as empty text")
	}
}

func TestEvalErrors(t *testing.T) {
	e := NewEngine()
	for _, expr := range []string{"1/0", "mod(1,0)", "1+", "((1)", `nosuchfn(1)`} {
		if _, err := e.Eval(expr); err == nil {
			t.Errorf("Eval(%q): expected an error", expr)
		}
	}
}

func TestEffectfulFunctionsDefer(t *testing.T) {
	e := NewEngine()
	v, err := e.Eval(`echo("hi")`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Truthy() {
		t.Errorf("echo() returned a falsy placeholder")
	}
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 1 || echoes[0] != "hi" {
		t.Errorf("echoes = %v, want [hi]", echoes)
	}
}

func TestRegmatchFillsCaptures(t *testing.T) {
	e := NewEngine()
	v, err := e.Eval(`regmatch("(\\w+) says (\\w+)", "bob says hi")`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Truthy() {
		t.Fatalf("regmatch did not match")
	}
	if got := e.Substitute("%P1 heard %P2"); got != "bob heard hi" {
		t.Errorf("capture substitution = %q", got)
	}
}
