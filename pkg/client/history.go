package client

// History is a fixed-capacity ring buffer of typed input lines with a
// cursor for up/down recall. The newest line is at the logical end.
type History struct {
	lines []string
	max   int
	pos   int // recall cursor; len(lines) = not browsing
}

// NewHistory creates a history buffer holding at most max lines.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 500
	}
	return &History{max: max, pos: 0}
}

// Add appends a line. Empty lines and immediate duplicates are skipped.
// Adding resets the recall cursor.
func (h *History) Add(line string) {
	defer func() { h.pos = len(h.lines) }()
	if line == "" {
		return
	}
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.max {
		h.lines = h.lines[len(h.lines)-h.max:]
	}
}

// Len returns the number of stored lines.
func (h *History) Len() int { return len(h.lines) }

// Last returns up to n most recent lines, oldest first.
func (h *History) Last(n int) []string {
	if n <= 0 || len(h.lines) == 0 {
		return nil
	}
	start := len(h.lines) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(h.lines)-start)
	copy(out, h.lines[start:])
	return out
}

// Prev moves the cursor one line back and returns it. At the oldest
// line it stays put.
func (h *History) Prev() (string, bool) {
	if h.pos == 0 || len(h.lines) == 0 {
		return "", false
	}
	h.pos--
	return h.lines[h.pos], true
}

// Next moves the cursor one line forward. Past the newest line it
// returns false, meaning the edit buffer should be restored.
func (h *History) Next() (string, bool) {
	if h.pos >= len(h.lines) {
		return "", false
	}
	h.pos++
	if h.pos == len(h.lines) {
		return "", false
	}
	return h.lines[h.pos], true
}
