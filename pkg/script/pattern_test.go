package script

import "testing"

func TestMatchWildCaptures(t *testing.T) {
	tests := []struct {
		pattern string
		line    string
		match   bool
		args    []string
	}{
		{"* pages you: *", "Bob pages you: hi there", true, []string{"Bob", "hi there"}},
		{"hello", "hello", true, nil},
		{"he?lo", "helo", false, nil},
		{"he?lo", "hexlo", true, []string{"x"}},
		{"*", "anything", true, []string{"anything"}},
		{"*", "", true, []string{""}},
		{"a*c", "abc", true, []string{"b"}},
		{"a*c", "ac", true, []string{""}},
		{"a*c", "abd", false, nil},
	}
	for _, tt := range tests {
		ok, args := matchWild(tt.pattern, tt.line)
		if ok != tt.match {
			t.Errorf("matchWild(%q, %q) = %v, want %v", tt.pattern, tt.line, ok, tt.match)
			continue
		}
		if !ok {
			continue
		}
		if len(args) != len(tt.args) {
			t.Errorf("matchWild(%q, %q) args = %v, want %v", tt.pattern, tt.line, args, tt.args)
			continue
		}
		for i := range args {
			if args[i] != tt.args[i] {
				t.Errorf("matchWild(%q, %q) args[%d] = %q, want %q", tt.pattern, tt.line, i, args[i], tt.args[i])
			}
		}
	}
}

func TestMatchWildCaseInsensitivePreservesCase(t *testing.T) {
	ok, args := matchWild("* HAS ARRIVED", "MrBig has arrived")
	if !ok {
		t.Fatalf("case-insensitive match failed")
	}
	if len(args) != 1 || args[0] != "MrBig" {
		t.Errorf("args = %v, want original-case MrBig", args)
	}
}

func TestPatternCacheReuses(t *testing.T) {
	c := newPatternCache()
	p1, err := c.get("a.*b", MatchRegexp)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	p2, _ := c.get("a.*b", MatchRegexp)
	if p1 != p2 {
		t.Errorf("identical pattern compiled twice")
	}
	// Same text under a different mode is a distinct entry.
	p3, _ := c.get("a.*b", MatchSubstr)
	if p3 == p1 {
		t.Errorf("modes share a cache entry")
	}
}

func TestBadRegexpCached(t *testing.T) {
	c := newPatternCache()
	if _, err := c.get("(oops", MatchRegexp); err == nil {
		t.Errorf("bad regexp compiled")
	}
}

func TestParseMatchMode(t *testing.T) {
	for in, want := range map[string]MatchMode{
		"":       MatchSubstr,
		"simple": MatchSubstr,
		"glob":   MatchGlob,
		"regexp": MatchRegexp,
		"regex":  MatchRegexp,
	} {
		got, err := ParseMatchMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMatchMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMatchMode("fuzzy"); err == nil {
		t.Errorf("bad mode accepted")
	}
}
