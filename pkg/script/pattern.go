package script

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchMode selects how a trigger pattern is applied to a line.
type MatchMode int

const (
	MatchSubstr MatchMode = iota // plain substring
	MatchGlob                    // wildcard glob with * and ?
	MatchRegexp                  // full regular expression
)

// ParseMatchMode maps the textual mode names used in #def flags.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(s) {
	case "", "simple", "substr":
		return MatchSubstr, nil
	case "glob", "wild":
		return MatchGlob, nil
	case "regexp", "regex", "re":
		return MatchRegexp, nil
	}
	return MatchSubstr, fmt.Errorf("bad match mode %q", s)
}

// String returns the canonical flag spelling of the mode.
func (m MatchMode) String() string {
	switch m {
	case MatchGlob:
		return "glob"
	case MatchRegexp:
		return "regexp"
	default:
		return "simple"
	}
}

// MatchText applies a one-off pattern in the given mode to a line. The
// registry's compiled cache is for triggers; callers outside the engine
// (recall filtering) use this instead.
func MatchText(pattern string, mode MatchMode, line string) (bool, error) {
	switch mode {
	case MatchRegexp:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("bad regexp %q: %v", pattern, err)
		}
		return re.MatchString(line), nil
	case MatchGlob:
		ok, _ := matchWild(pattern, line)
		return ok, nil
	default:
		return strings.Contains(line, pattern), nil
	}
}

type patternKey struct {
	text string
	mode MatchMode
}

// compiledPattern is a trigger pattern ready to match. Regexp patterns
// carry their compiled form; substring and glob patterns match directly.
type compiledPattern struct {
	text string
	mode MatchMode
	re   *regexp.Regexp
}

// Match applies the pattern to a line. On success the returned captures
// hold the matched text in slot 0 and any group captures after it.
func (p *compiledPattern) Match(line string) (bool, []string) {
	switch p.mode {
	case MatchRegexp:
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			return false, nil
		}
		return true, m
	case MatchGlob:
		ok, args := matchWild(p.text, line)
		if !ok {
			return false, nil
		}
		return true, append([]string{line}, args...)
	default:
		if !strings.Contains(line, p.text) {
			return false, nil
		}
		return true, []string{p.text}
	}
}

// patternCache compiles each canonical (pattern, mode) pair once.
type patternCache struct {
	compiled map[patternKey]*compiledPattern
}

func newPatternCache() *patternCache {
	return &patternCache{compiled: make(map[patternKey]*compiledPattern)}
}

func (c *patternCache) get(text string, mode MatchMode) (*compiledPattern, error) {
	key := patternKey{text: text, mode: mode}
	if p, ok := c.compiled[key]; ok {
		return p, nil
	}
	p := &compiledPattern{text: text, mode: mode}
	if mode == MatchRegexp {
		re, err := regexp.Compile(text)
		if err != nil {
			return nil, fmt.Errorf("bad regexp %q: %v", text, err)
		}
		p.re = re
	}
	c.compiled[key] = p
	return p, nil
}

// matchWild performs wildcard matching and captures * and ? groups.
// Matching is case-insensitive; captures preserve the original case.
func matchWild(pattern, str string) (bool, []string) {
	var args []string
	matched := matchWildHelper(strings.ToLower(pattern), strings.ToLower(str), str, 0, &args)
	return matched, args
}

// matchWildHelper matches lowered pattern against lowered str, capturing
// from origStr at the corresponding offset to preserve original case.
func matchWildHelper(pattern, str, origStr string, origOff int, args *[]string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			pattern = pattern[1:]
			if len(pattern) == 0 {
				*args = append(*args, origStr[origOff:origOff+len(str)])
				return true
			}
			// Try matching the rest of the pattern at every position,
			// longest capture first.
			for i := len(str); i >= 0; i-- {
				testArgs := make([]string, len(*args))
				copy(testArgs, *args)
				testArgs = append(testArgs, origStr[origOff:origOff+i])
				if matchWildHelper(pattern, str[i:], origStr, origOff+i, &testArgs) {
					*args = testArgs
					return true
				}
			}
			return false
		case '?':
			if len(str) == 0 {
				return false
			}
			*args = append(*args, string(origStr[origOff]))
			pattern = pattern[1:]
			str = str[1:]
			origOff++
		default:
			if len(str) == 0 || pattern[0] != str[0] {
				return false
			}
			pattern = pattern[1:]
			str = str[1:]
			origOff++
		}
	}
	return len(str) == 0
}
