package script

import "strings"

// Substitute replaces %{name}, %name, and numbered capture references
// %P0..%P9 with each variable's string form. An unresolved name
// substitutes as empty text; that is the contract, not an error.
// $[expr] evaluates an inline expression; %% yields a literal percent.
// Substitution itself never evaluates arithmetic: after "#set x=5",
// "%{x}+1" becomes the literal text "5+1".
func (e *Engine) Substitute(text string) string {
	if !strings.ContainsAny(text, "%$\\") {
		return text
	}
	var buf strings.Builder
	buf.Grow(len(text) + 16)
	pos := 0
	for pos < len(text) {
		ch := text[pos]
		switch ch {
		case '\\':
			pos++
			if pos < len(text) {
				buf.WriteByte(text[pos])
				pos++
			}
		case '$':
			// Inline expression: $[...]
			if pos+1 < len(text) && text[pos+1] == '[' {
				inner, end, found := scanBalanced(text, pos+2, '[', ']')
				if found {
					v, err := e.Eval(inner)
					if err == nil {
						buf.WriteString(v.Text())
					}
					pos = end + 1
					continue
				}
			}
			buf.WriteByte('$')
			pos++
		case '%':
			pos++
			if pos >= len(text) {
				buf.WriteByte('%')
				continue
			}
			pos = e.handlePercent(&buf, text, pos)
		default:
			start := pos
			for pos < len(text) && text[pos] != '%' && text[pos] != '$' && text[pos] != '\\' {
				pos++
			}
			buf.WriteString(text[start:pos])
		}
	}
	return buf.String()
}

// handlePercent processes the substitution starting at text[pos], the
// character after '%'. Returns the position after the substitution.
func (e *Engine) handlePercent(buf *strings.Builder, text string, pos int) int {
	switch ch := text[pos]; {
	case ch == '%':
		buf.WriteByte('%')
		return pos + 1

	case ch == ';':
		// Body separator, handled by the body splitter; keep literal.
		buf.WriteByte('%')
		buf.WriteByte(';')
		return pos + 1

	case ch == '{':
		end := strings.IndexByte(text[pos:], '}')
		if end < 0 {
			buf.WriteByte('%')
			buf.WriteByte('{')
			return pos + 1
		}
		name := text[pos+1 : pos+end]
		buf.WriteString(e.lookupSub(name))
		return pos + end + 1

	case ch == '*' || ch == '#':
		// %* is all positional arguments of the running macro body;
		// %# is their count.
		buf.WriteString(e.lookupSub(string(ch)))
		return pos + 1

	case ch == 'P' && pos+1 < len(text) && text[pos+1] >= '0' && text[pos+1] <= '9':
		idx := int(text[pos+1] - '0')
		buf.WriteString(e.captures[idx])
		return pos + 2

	case isNameByte(ch):
		start := pos
		for pos < len(text) && isNameByte(text[pos]) {
			pos++
		}
		buf.WriteString(e.lookupSub(text[start:pos]))
		return pos

	default:
		buf.WriteByte('%')
		buf.WriteByte(ch)
		return pos + 1
	}
}

// lookupSub resolves a variable name to its string form, or empty text.
func (e *Engine) lookupSub(name string) string {
	if v, ok := e.Vars.Get(name); ok {
		return v.Text()
	}
	return ""
}

func isNameByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

// scanBalanced finds the closer matching an already-consumed opener,
// respecting nesting. Returns the inner text, the closer position, and
// whether it was found.
func scanBalanced(s string, pos int, open, close byte) (string, int, bool) {
	depth := 0
	start := pos
	for pos < len(s) {
		switch s[pos] {
		case '\\':
			pos++
		case open:
			depth++
		case close:
			if depth == 0 {
				return s[start:pos], pos, true
			}
			depth--
		}
		pos++
	}
	return s[start:], pos, false
}

// splitBody splits a macro body on the %; separator, respecting the
// \ escape.
func splitBody(body string) []string {
	if !strings.Contains(body, "%;") {
		return []string{body}
	}
	var parts []string
	start := 0
	for i := 0; i+1 < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '%':
			if body[i+1] == ';' {
				parts = append(parts, body[start:i])
				start = i + 2
				i++
			}
		}
	}
	parts = append(parts, body[start:])
	return parts
}
