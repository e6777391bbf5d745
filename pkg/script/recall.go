package script

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecallSource selects which history a #recall reads.
type RecallSource int

const (
	RecallWorld  RecallSource = iota // current or named world's output
	RecallLocal                      // local engine output (echoes)
	RecallGlobal                     // all worlds
	RecallInput                      // input history
)

// RecallOptions is the parsed form of one #recall invocation. It is
// ephemeral: the engine hands it to the host, which runs the query
// against its scrollback store.
type RecallOptions struct {
	Source RecallSource
	World  string // named world for RecallWorld; "" = current

	// Range. Exactly one of these is active: Last (last N lines),
	// StartLine/EndLine (absolute range), Back (the single Nth-previous
	// line), Window (time window ending now), or All.
	Last      int
	StartLine int
	EndLine   int
	Back      int
	Window    time.Duration
	All       bool

	Pattern string
	Mode    MatchMode
	Invert  bool // -v: lines NOT matching the pattern
	Quiet   bool // -q: suppress the recall header/footer

	Timestamps    bool // -t: show each line's timestamp
	IncludeGagged bool // include lines gagged at display time

	Before int // context lines before each match
	After  int // context lines after each match
}

// cmdRecall parses the argument text and returns a delegation result;
// scrollback lives with the host, not the engine.
func (e *Engine) cmdRecall(rest string) CommandResult {
	opts, err := ParseRecallArgs(e.Substitute(rest))
	if err != nil {
		return errMsg("#recall: %v", err)
	}
	if opts.World == "" && opts.Source == RecallWorld {
		opts.World = e.currentWorld
	}
	return CommandResult{Kind: ResultRecall, Recall: opts}
}

// ParseRecallArgs parses "#recall [-w[world]|-g|-l|-i] [-v] [-q] [-t]
// [-G] [-B<n>] [-A<n>] [-m<mode>] [range] [pattern]". The range is one
// of N (last N), N-M (line range), -N (the Nth previous line), a
// duration like 5m (time window), or "all".
func ParseRecallArgs(rest string) (*RecallOptions, error) {
	opts := &RecallOptions{Source: RecallWorld, Last: 20}
	fields := strings.Fields(rest)
	i := 0
	for ; i < len(fields); i++ {
		f := fields[i]
		if !strings.HasPrefix(f, "-") || f == "-" {
			break
		}
		// A leading -N is the previous-Nth range, not a flag.
		if n, err := strconv.Atoi(f[1:]); err == nil {
			opts.Last = 0
			opts.Back = n
			i++
			break
		}
		letter, arg := f[1], f[2:]
		switch letter {
		case 'w':
			opts.Source = RecallWorld
			opts.World = arg
		case 'g':
			opts.Source = RecallGlobal
		case 'l':
			opts.Source = RecallLocal
		case 'i':
			opts.Source = RecallInput
		case 'v':
			opts.Invert = true
		case 'q':
			opts.Quiet = true
		case 't':
			opts.Timestamps = true
		case 'G':
			opts.IncludeGagged = true
		case 'm':
			mode, err := ParseMatchMode(arg)
			if err != nil {
				return nil, err
			}
			opts.Mode = mode
		case 'B', 'A':
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("bad context count %q", arg)
			}
			if letter == 'B' {
				opts.Before = n
			} else {
				opts.After = n
			}
		default:
			return nil, fmt.Errorf("unknown flag %s", f)
		}
	}
	if i < len(fields) {
		if parseRecallRange(opts, fields[i]) {
			i++
		}
	}
	if i < len(fields) {
		opts.Pattern = strings.Join(fields[i:], " ")
	}
	return opts, nil
}

// parseRecallRange reports whether token was a range; a non-range token
// is left for the pattern.
func parseRecallRange(opts *RecallOptions, token string) bool {
	if strings.EqualFold(token, "all") {
		opts.Last = 0
		opts.All = true
		return true
	}
	if lo, hi, ok := strings.Cut(token, "-"); ok && lo != "" {
		start, err1 := strconv.Atoi(lo)
		end, err2 := strconv.Atoi(hi)
		if err1 == nil && err2 == nil && start > 0 && end >= start {
			opts.Last = 0
			opts.StartLine = start
			opts.EndLine = end
			return true
		}
		return false
	}
	if n, err := strconv.Atoi(token); err == nil && n > 0 {
		opts.Last = n
		return true
	}
	if d, err := time.ParseDuration(token); err == nil && d > 0 {
		opts.Last = 0
		opts.Window = d
		return true
	}
	return false
}
