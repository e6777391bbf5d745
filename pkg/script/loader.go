package script

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// errAbortLoad is the sentinel for #exit inside a loaded file: it stops
// the current file only and never escapes to an interactive caller.
var errAbortLoad = errors.New("script load aborted")

// LoadFile streams a script file through the same line-by-line pipeline
// as interactive input, so multi-line blocks spanning file lines behave
// identically. A path already on the loading stack is refused outright
// rather than recursed into. Errors inside the file abort only its
// remaining lines; they are echoed with file and line context and do
// not fail the caller that issued the load.
func (e *Engine) LoadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("bad path %q: %v", path, err)
	}
	for _, p := range e.loading {
		if p == abs {
			return fmt.Errorf("%s is already loading; refusing the cycle", path)
		}
	}
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("cannot open %s: %v", path, err)
	}
	defer f.Close()

	e.loading = append(e.loading, abs)
	defer func() { e.loading = e.loading[:len(e.loading)-1] }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	pending := ""
	pendingStart := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if pending != "" {
			line = pending + line
		} else {
			pendingStart = lineNo
		}
		// A trailing backslash continues onto the next line.
		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			pending = line[:len(line)-1]
			continue
		}
		pending = ""
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}
		if err := e.executeInternal(trimmed); err != nil {
			if err == errAbortLoad {
				return nil
			}
			e.fx.QueueEcho(fmt.Sprintf("%% %s:%d: %v", path, pendingStart, err))
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		e.fx.QueueEcho(fmt.Sprintf("%% %s: read error: %v", path, err))
		return nil
	}
	if e.block.collecting() {
		e.block.reset()
		e.fx.QueueEcho(fmt.Sprintf("%% %s: unterminated block at end of file", path))
	}
	return nil
}

func (e *Engine) cmdLoad(rest string) CommandResult {
	path := strings.TrimSpace(e.Substitute(rest))
	if path == "" {
		return errMsg("#load: usage is #load <path>")
	}
	if err := e.LoadFile(path); err != nil {
		return errMsg("#load: %v", err)
	}
	return okResult()
}

// cmdQuote handles "#quote [-dsend|-decho|-dexec] [-w<world>] '<path>".
// Each line of the named file is batched with the chosen disposition;
// send is the default. The ' prefix marks a file source.
func (e *Engine) cmdQuote(rest string) CommandResult {
	disp := QuoteSend
	world := ""
	for strings.HasPrefix(rest, "-") {
		flag, tail := nextFlag(rest)
		switch {
		case flag == "-dsend":
			disp = QuoteSend
		case flag == "-decho":
			disp = QuoteEcho
		case flag == "-dexec":
			disp = QuoteExec
		case strings.HasPrefix(flag, "-w"):
			world = flag[2:]
		default:
			return errMsg("#quote: unknown flag %s", flag)
		}
		rest = tail
	}
	src := strings.TrimSpace(e.Substitute(rest))
	if !strings.HasPrefix(src, "'") {
		return errMsg("#quote: usage is #quote [-d<disp>] [-w<world>] '<path>")
	}
	path := strings.TrimSpace(src[1:])
	if path == "" {
		return errMsg("#quote: missing file path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errMsg("#quote: cannot read %s: %v", path, err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return CommandResult{Kind: ResultQuote, Quote: &QuoteSpec{
		Lines:       lines,
		Disposition: disp,
		World:       world,
	}}
}

// cmdRequire loads a file at most once per session, keyed by token:
// "#require <token> <path>". Re-requiring a loaded token is a no-op.
func (e *Engine) cmdRequire(rest string) CommandResult {
	token, path, ok := strings.Cut(strings.TrimSpace(e.Substitute(rest)), " ")
	if !ok || strings.TrimSpace(path) == "" {
		return errMsg("#require: usage is #require <token> <path>")
	}
	if _, loaded := e.loadedTokens[token]; loaded {
		return okResult()
	}
	if err := e.LoadFile(strings.TrimSpace(path)); err != nil {
		return errMsg("#require: %v", err)
	}
	e.loadedTokens[token] = struct{}{}
	return okResult()
}
