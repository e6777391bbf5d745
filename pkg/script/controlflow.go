package script

import (
	"fmt"
	"strings"
)

// maxLoopIterations bounds #while so a script bug cannot hang the
// session. TF has no such cap but a cooperative engine needs one.
const maxLoopIterations = 1000

type blockKind int

const (
	blockIf blockKind = iota
	blockWhile
	blockFor
)

func (k blockKind) String() string {
	switch k {
	case blockWhile:
		return "#while"
	case blockFor:
		return "#for"
	default:
		return "#if"
	}
}

// blockState buffers the lines of an open multi-line block. Script lines
// arrive one at a time with no lookahead, so the collector persists
// across Execute calls until the block is syntactically closed.
type blockState struct {
	stack []blockKind
	lines []string
}

func (b *blockState) collecting() bool { return len(b.stack) > 0 }

func (b *blockState) begin(kind blockKind, line string) {
	b.stack = append(b.stack[:0], kind)
	b.lines = append(b.lines[:0], line)
}

// feed buffers one line and tracks nesting. It reports true when the
// outermost block just closed.
func (b *blockState) feed(line string) (bool, error) {
	b.lines = append(b.lines, line)
	name, _ := splitCommand(line)
	switch name {
	case "if":
		b.stack = append(b.stack, blockIf)
	case "while":
		b.stack = append(b.stack, blockWhile)
	case "for":
		b.stack = append(b.stack, blockFor)
	case "endif":
		top := b.stack[len(b.stack)-1]
		if top != blockIf {
			return false, fmt.Errorf("#endif inside %s block", top)
		}
		b.stack = b.stack[:len(b.stack)-1]
	case "done":
		top := b.stack[len(b.stack)-1]
		if top == blockIf {
			return false, fmt.Errorf("#done inside #if block; use #endif")
		}
		b.stack = b.stack[:len(b.stack)-1]
	case "elseif", "else":
		if b.stack[len(b.stack)-1] != blockIf {
			return false, fmt.Errorf("#%s outside #if block", name)
		}
	}
	return len(b.stack) == 0, nil
}

func (b *blockState) take() []string {
	lines := b.lines
	b.reset()
	return lines
}

func (b *blockState) reset() {
	b.stack = b.stack[:0]
	b.lines = b.lines[:0]
}

// runBlock executes a fully collected block as one unit. The block is
// atomic from the caller's view: exactly one result for the whole thing.
func (e *Engine) runBlock(lines []string) CommandResult {
	if err := e.runLines(lines); err != nil {
		if err == errAbortLoad {
			return abortLoad()
		}
		return errMsg("%v", err)
	}
	return okResult()
}

// runLines executes a slice of already-buffered block lines, handling
// nested control flow structurally rather than through the collector.
func (e *Engine) runLines(lines []string) error {
	i := 0
	for i < len(lines) {
		if e.breakFlag {
			return nil
		}
		name, rest := splitCommand(lines[i])
		switch name {
		case "if":
			end, err := e.runIf(lines, i)
			if err != nil {
				return err
			}
			i = end + 1
		case "while":
			end, err := e.runWhile(lines, i, rest)
			if err != nil {
				return err
			}
			i = end + 1
		case "for":
			end, err := e.runFor(lines, i, rest)
			if err != nil {
				return err
			}
			i = end + 1
		case "break":
			if e.loopDepth == 0 {
				return scriptError("#break outside a loop")
			}
			e.breakFlag = true
			return nil
		default:
			if err := e.executeInternal(lines[i]); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}

// ifBranch is one arm of an #if / #elseif / #else chain. An empty cond
// marks the #else arm.
type ifBranch struct {
	cond  string
	start int // first body line
	end   int // one past the last body line
}

// runIf executes the #if chain opening at lines[i] and returns the index
// of its #endif.
func (e *Engine) runIf(lines []string, i int) (int, error) {
	_, cond := splitCommand(lines[i])
	branches := []ifBranch{{cond: cond, start: i + 1}}
	depth := 1
	j := i + 1
	endif := -1
	for ; j < len(lines); j++ {
		name, rest := splitCommand(lines[j])
		switch name {
		case "if", "while", "for":
			depth++
		case "done":
			depth--
		case "endif":
			depth--
			if depth == 0 {
				endif = j
			}
		case "elseif":
			if depth == 1 {
				branches[len(branches)-1].end = j
				branches = append(branches, ifBranch{cond: rest, start: j + 1})
			}
		case "else":
			if depth == 1 {
				branches[len(branches)-1].end = j
				branches = append(branches, ifBranch{cond: "", start: j + 1})
			}
		}
		if endif >= 0 {
			break
		}
	}
	if endif < 0 {
		return 0, scriptError("#if without #endif")
	}
	branches[len(branches)-1].end = endif

	for k, br := range branches {
		take := true
		if !(br.cond == "" && k == len(branches)-1) {
			v, err := e.EvalCondition(e.Substitute(br.cond))
			if err != nil {
				return 0, err
			}
			take = v
		}
		if take {
			return endif, e.runLines(lines[br.start:br.end])
		}
	}
	return endif, nil
}

// runWhile executes the loop opening at lines[i] and returns the index
// of its #done. The condition is re-substituted and re-evaluated before
// every pass; #break is detected after the body runs.
func (e *Engine) runWhile(lines []string, i int, cond string) (int, error) {
	done, err := findDone(lines, i)
	if err != nil {
		return 0, err
	}
	body := lines[i+1 : done]
	e.loopDepth++
	defer func() { e.loopDepth-- }()
	for iter := 0; ; iter++ {
		if iter >= maxLoopIterations {
			return 0, scriptError("#while exceeded the iteration limit")
		}
		v, err := e.EvalCondition(e.Substitute(cond))
		if err != nil {
			return 0, err
		}
		if !v {
			break
		}
		if err := e.runLines(body); err != nil {
			return 0, err
		}
		if e.breakFlag {
			e.breakFlag = false
			break
		}
	}
	return done, nil
}

// runFor executes "#for var in item item ..." and returns the index of
// its #done. The item list is substituted once, before the first pass.
func (e *Engine) runFor(lines []string, i int, rest string) (int, error) {
	done, err := findDone(lines, i)
	if err != nil {
		return 0, err
	}
	varName, list, ok := parseForHeader(rest)
	if !ok {
		return 0, scriptError("#for: usage is #for <var> in <list>")
	}
	body := lines[i+1 : done]
	items := strings.Fields(e.Substitute(list))
	e.loopDepth++
	defer func() { e.loopDepth-- }()
	for _, item := range items {
		e.Vars.SetLocal(varName, ParseValue(item))
		if err := e.runLines(body); err != nil {
			return 0, err
		}
		if e.breakFlag {
			e.breakFlag = false
			break
		}
	}
	return done, nil
}

func parseForHeader(rest string) (varName, list string, ok bool) {
	fields := strings.SplitN(rest, " ", 3)
	if len(fields) < 3 || !strings.EqualFold(fields[1], "in") {
		return "", "", false
	}
	return fields[0], fields[2], true
}

// findDone locates the #done closing the loop opened at lines[i].
func findDone(lines []string, i int) (int, error) {
	depth := 1
	for j := i + 1; j < len(lines); j++ {
		switch name, _ := splitCommand(lines[j]); name {
		case "if", "while", "for":
			depth++
		case "endif":
			depth--
		case "done":
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, scriptError("loop without #done")
}
