package script

import (
	"strconv"
	"testing"
	"time"
)

func newClockEngine(start time.Time) (*Engine, *time.Time) {
	e := NewEngine()
	now := start
	e.now = func() time.Time { return now }
	return e, &now
}

func TestRepeatFiresExactlyCountTimes(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newClockEngine(start)

	res := e.Execute("#repeat 10,3 #echo tick")
	if res.Kind != ResultProcess {
		t.Fatalf("kind = %v, want ResultProcess", res.Kind)
	}

	fired := 0
	for i := 1; i <= 6; i++ {
		*clock = start.Add(time.Duration(i) * 11 * time.Second)
		fired += e.Tick(*clock)
	}
	if fired != 3 {
		t.Fatalf("fired %d times, want exactly 3", fired)
	}
	if len(e.Processes()) != 0 {
		t.Errorf("exhausted process still active")
	}
	echoes := e.Effects().DrainEchoes()
	if len(echoes) != 3 {
		t.Errorf("echoes = %v", echoes)
	}
}

func TestDueOrdersByPriority(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newClockEngine(start)

	e.Execute("#repeat -p1 5 #echo low")
	e.Execute("#repeat -p9 5 #echo high")

	*clock = start.Add(6 * time.Second)
	due := e.Due(*clock)
	if len(due) != 2 {
		t.Fatalf("due = %d processes, want 2", len(due))
	}
	if due[0].Priority != 9 || due[1].Priority != 1 {
		t.Errorf("priorities = %d, %d; want 9 then 1", due[0].Priority, due[1].Priority)
	}
}

func TestDueRespectsInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newClockEngine(start)

	e.Execute("#repeat 30 #echo slow")
	*clock = start.Add(10 * time.Second)
	if n := e.Tick(*clock); n != 0 {
		t.Fatalf("fired %d processes before the interval elapsed", n)
	}
	*clock = start.Add(31 * time.Second)
	if n := e.Tick(*clock); n != 1 {
		t.Fatalf("fired %d processes after the interval, want 1", n)
	}
	// Rescheduled one interval forward from the tick.
	if n := e.Tick(*clock); n != 0 {
		t.Errorf("process fired twice in one tick window")
	}
}

func TestOnPromptDefersToPromptEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newClockEngine(start)

	e.Execute("#repeat -P 1,2 #echo at prompt")
	*clock = start.Add(time.Hour)
	if n := e.Tick(*clock); n != 0 {
		t.Fatalf("on-prompt process fired from the clock")
	}
	if n := e.FirePrompt(*clock); n != 1 {
		t.Fatalf("prompt fired %d processes, want 1", n)
	}
	e.FirePrompt(*clock)
	if len(e.Processes()) != 0 {
		t.Errorf("on-prompt process not removed after its count ran out")
	}
}

func TestKillAndPS(t *testing.T) {
	e := NewEngine()
	res := e.Execute("#repeat 60 #send look")
	id := res.Proc.ID
	if res := e.Execute("#ps"); res.IsError() {
		t.Fatalf("#ps: %s", res.Message)
	}
	if got := e.Effects().DrainEchoes(); len(got) != 1 {
		t.Errorf("#ps echoed %v", got)
	}
	if res := e.Execute("#kill 99"); !res.IsError() {
		t.Errorf("#kill of a bogus id succeeded")
	}
	if res := e.Execute("#kill " + strconv.Itoa(id)); res.IsError() {
		t.Fatalf("#kill: %s", res.Message)
	}
	if len(e.Processes()) != 0 {
		t.Errorf("process survived #kill")
	}
}

func TestProcessWorldBecomesCurrentDuringRun(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newClockEngine(start)
	e.SetCurrentWorld("main")

	e.Execute("#repeat -wmoo 1 #send look")
	*clock = start.Add(2 * time.Second)
	e.Tick(*clock)

	sends := e.Effects().DrainSends()
	if len(sends) != 1 {
		t.Fatalf("sends = %v", sends)
	}
	if sends[0].World != "moo" {
		t.Errorf("send targeted %q, want moo", sends[0].World)
	}
	if e.CurrentWorld() != "main" {
		t.Errorf("current world = %q after the tick, want main", e.CurrentWorld())
	}
}
