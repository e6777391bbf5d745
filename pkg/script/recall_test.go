package script

import (
	"testing"
	"time"
)

func TestParseRecallDefaults(t *testing.T) {
	opts, err := ParseRecallArgs("")
	if err != nil {
		t.Fatalf("ParseRecallArgs: %v", err)
	}
	if opts.Source != RecallWorld || opts.Last != 20 {
		t.Errorf("defaults = %+v", opts)
	}
}

func TestParseRecallForms(t *testing.T) {
	tests := []struct {
		args  string
		check func(*RecallOptions) bool
	}{
		{"50", func(o *RecallOptions) bool { return o.Last == 50 }},
		{"all", func(o *RecallOptions) bool { return o.All && o.Last == 0 }},
		{"10-30", func(o *RecallOptions) bool { return o.StartLine == 10 && o.EndLine == 30 }},
		{"-3", func(o *RecallOptions) bool { return o.Back == 3 }},
		{"5m", func(o *RecallOptions) bool { return o.Window == 5*time.Minute }},
		{"-i 100", func(o *RecallOptions) bool { return o.Source == RecallInput && o.Last == 100 }},
		{"-g", func(o *RecallOptions) bool { return o.Source == RecallGlobal }},
		{"-l", func(o *RecallOptions) bool { return o.Source == RecallLocal }},
		{"-wmoo 10", func(o *RecallOptions) bool { return o.Source == RecallWorld && o.World == "moo" }},
		{"-v -q pages", func(o *RecallOptions) bool { return o.Invert && o.Quiet && o.Pattern == "pages" }},
		{"-t -G 20", func(o *RecallOptions) bool { return o.Timestamps && o.IncludeGagged }},
		{"-B2 -A3 50 tells you", func(o *RecallOptions) bool {
			return o.Before == 2 && o.After == 3 && o.Last == 50 && o.Pattern == "tells you"
		}},
		{"-mglob *pages*", func(o *RecallOptions) bool { return o.Mode == MatchGlob && o.Pattern == "*pages*" }},
	}
	for _, tt := range tests {
		opts, err := ParseRecallArgs(tt.args)
		if err != nil {
			t.Errorf("ParseRecallArgs(%q): %v", tt.args, err)
			continue
		}
		if !tt.check(opts) {
			t.Errorf("ParseRecallArgs(%q) = %+v", tt.args, opts)
		}
	}
}

func TestParseRecallBadFlag(t *testing.T) {
	if _, err := ParseRecallArgs("-Z"); err == nil {
		t.Errorf("bad flag accepted")
	}
}

func TestRecallCommandDelegates(t *testing.T) {
	e := NewEngine()
	e.SetCurrentWorld("moo")
	res := e.Execute("#recall 10 pages")
	if res.Kind != ResultRecall {
		t.Fatalf("kind = %v, want ResultRecall", res.Kind)
	}
	if res.Recall.World != "moo" {
		t.Errorf("recall world = %q, want the current world", res.Recall.World)
	}
	if res.Recall.Last != 10 || res.Recall.Pattern != "pages" {
		t.Errorf("recall opts = %+v", res.Recall)
	}
}
