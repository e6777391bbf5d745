package script

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Process is one #repeat job. Remaining counts down from Total; a Total
// of zero repeats forever.
type Process struct {
	ID        int
	Command   string
	Interval  time.Duration
	Total     int
	Remaining int
	NextRun   time.Time
	World     string // run with this world current; "" = session's
	Sync      bool
	OnPrompt  bool // fire on the next prompt event, not on the clock
	Priority  int
}

// Processes returns the active process list ordered by id.
func (e *Engine) Processes() []*Process {
	out := make([]*Process, len(e.procs))
	copy(out, e.procs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// KillProcess removes a process by id.
func (e *Engine) KillProcess(id int) bool {
	for i, p := range e.procs {
		if p.ID == id {
			e.procs = append(e.procs[:i], e.procs[i+1:]...)
			return true
		}
	}
	return false
}

// Due returns the clock-driven processes whose next run is at or before
// now, ordered by descending priority. Each returned process has its
// remaining count decremented and its next run pushed one interval
// forward; exhausted processes are removed from the active list.
func (e *Engine) Due(now time.Time) []*Process {
	var due []*Process
	for _, p := range e.procs {
		if !p.OnPrompt && !p.NextRun.After(now) {
			due = append(due, p)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ID < due[j].ID
	})
	for _, p := range due {
		p.NextRun = now.Add(p.Interval)
		if p.Total > 0 {
			p.Remaining--
			if p.Remaining <= 0 {
				e.KillProcess(p.ID)
			}
		}
	}
	return due
}

// PromptDue returns the on-prompt processes, for the host to run when a
// prompt event arrives. Count bookkeeping matches Due.
func (e *Engine) PromptDue(now time.Time) []*Process {
	var due []*Process
	for _, p := range e.procs {
		if p.OnPrompt {
			due = append(due, p)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ID < due[j].ID
	})
	for _, p := range due {
		p.NextRun = now.Add(p.Interval)
		if p.Total > 0 {
			p.Remaining--
			if p.Remaining <= 0 {
				e.KillProcess(p.ID)
			}
		}
	}
	return due
}

// Tick runs every due process command and returns how many ran. The
// scheduler never blocks; command effects land on the usual queues.
func (e *Engine) Tick(now time.Time) int {
	due := e.Due(now)
	for _, p := range due {
		e.runProcess(p)
	}
	return len(due)
}

// FirePrompt runs the on-prompt processes.
func (e *Engine) FirePrompt(now time.Time) int {
	due := e.PromptDue(now)
	for _, p := range due {
		e.runProcess(p)
	}
	return len(due)
}

// runProcess executes one process command, with the process's world
// temporarily current so its sends target the right connection.
func (e *Engine) runProcess(p *Process) {
	if p.World != "" {
		saved := e.currentWorld
		e.currentWorld = p.World
		defer func() { e.currentWorld = saved }()
	}
	if err := e.executeInternal(p.Command); err != nil {
		e.fx.QueueEcho(fmt.Sprintf("%% repeat %d: %v", p.ID, err))
	}
}

// cmdRepeat parses "#repeat [-w<world>] [-p<n>] [-S] [-P] interval[,count] command".
// The interval accepts a plain number of seconds or a duration string.
func (e *Engine) cmdRepeat(rest string) CommandResult {
	p := &Process{Total: 0}
	for strings.HasPrefix(rest, "-") {
		var flag string
		var err error
		flag, rest, err = takeFlag(rest)
		if err != nil {
			return errMsg("#repeat: %v", err)
		}
		switch letter, arg := flag[1], flag[2:]; letter {
		case 'w':
			p.World = arg
		case 'p':
			n, err := strconv.Atoi(arg)
			if err != nil {
				return errMsg("#repeat: bad priority %q", arg)
			}
			p.Priority = n
		case 'S':
			p.Sync = true
		case 'P':
			p.OnPrompt = true
		default:
			return errMsg("#repeat: unknown flag -%s", string(letter))
		}
	}
	spec, command, ok := strings.Cut(rest, " ")
	if !ok || strings.TrimSpace(command) == "" {
		return errMsg("#repeat: usage is #repeat <interval>[,<count>] <command>")
	}
	intervalText, countText, hasCount := strings.Cut(spec, ",")
	interval, err := parseInterval(intervalText)
	if err != nil {
		return errMsg("#repeat: %v", err)
	}
	if hasCount {
		n, err := strconv.Atoi(countText)
		if err != nil || n < 1 {
			return errMsg("#repeat: bad count %q", countText)
		}
		p.Total = n
		p.Remaining = n
	}
	p.Interval = interval
	p.Command = strings.TrimLeft(command, " ")
	p.ID = e.nextPID
	e.nextPID++
	p.NextRun = e.now().Add(interval)
	e.procs = append(e.procs, p)
	return CommandResult{Kind: ResultProcess, Message: fmt.Sprintf("repeat process %d started", p.ID), Proc: p}
}

func parseInterval(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("interval must be positive")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("bad interval %q", s)
	}
	return d, nil
}

func (e *Engine) cmdKill(rest string) CommandResult {
	id, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return errMsg("#kill: usage is #kill <id>")
	}
	if !e.KillProcess(id) {
		return errMsg("#kill: no process %d", id)
	}
	return okMsg("killed process %d", id)
}

func (e *Engine) cmdPS() CommandResult {
	if len(e.procs) == 0 {
		return okMsg("no processes running")
	}
	now := e.now()
	for _, p := range e.Processes() {
		left := "forever"
		if p.Total > 0 {
			left = strconv.Itoa(p.Remaining)
		}
		when := "on prompt"
		if !p.OnPrompt {
			when = p.NextRun.Sub(now).Truncate(time.Millisecond).String()
		}
		e.fx.QueueEcho(fmt.Sprintf("%% %d: every %s (%s left, next in %s) %s",
			p.ID, p.Interval, left, when, p.Command))
	}
	return okResult()
}
