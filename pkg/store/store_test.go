package store

import (
	"path/filepath"
	"testing"

	"github.com/crystal-mush/gofugue/pkg/script"
	"github.com/crystal-mush/gofugue/pkg/world"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)

	e := script.NewEngine()
	e.Vars.SetGlobal("hp", script.IntValue(40))
	e.Vars.SetGlobal("name", script.StringValue("Arvid"))
	e.Vars.Export("name")
	e.DefineMacro(&script.Macro{Name: "greet", Body: "#echo hello"})
	reg := world.NewRegistry()
	reg.Add(world.Info{Name: "moo", Host: "moo.example.org", Port: 8888, Connected: true})

	if err := s.SaveSession(e, reg); err != nil {
		t.Fatalf("save: %v", err)
	}

	e2 := script.NewEngine()
	reg2 := world.NewRegistry()
	if err := s.LoadSession(e2, reg2); err != nil {
		t.Fatalf("load: %v", err)
	}

	if v, ok := e2.Vars.Global("hp"); !ok || v.Int() != 40 {
		t.Errorf("hp = %v, %v", v, ok)
	}
	if !e2.Vars.IsExported("name") {
		t.Error("name lost export flag")
	}
	if e2.Vars.IsExported("hp") {
		t.Error("hp gained export flag")
	}
	macros := e2.Macros()
	if len(macros) != 1 || macros[0].Name != "greet" || macros[0].Body != "#echo hello" {
		t.Errorf("macros = %+v", macros)
	}
	w, ok := reg2.Get("moo")
	if !ok || w.Host != "moo.example.org" || w.Port != 8888 {
		t.Errorf("world = %+v, %v", w, ok)
	}
	if w.Connected {
		t.Error("connected flag persisted")
	}
}

func TestMacroSequenceSurvivesRestart(t *testing.T) {
	s := testStore(t)

	e := script.NewEngine()
	e.DefineMacro(&script.Macro{Name: "first", Body: "#echo 1"})
	e.DefineMacro(&script.Macro{Name: "second", Body: "#echo 2"})
	e.DefineMacro(&script.Macro{Name: "third", Body: "#echo 3"})
	e.UndefMacro("second")
	if err := s.SaveSession(e, world.NewRegistry()); err != nil {
		t.Fatalf("save: %v", err)
	}

	e2 := script.NewEngine()
	if err := s.LoadSession(e2, world.NewRegistry()); err != nil {
		t.Fatalf("load: %v", err)
	}
	macros := e2.Macros()
	if len(macros) != 2 {
		t.Fatalf("got %d macros, want 2", len(macros))
	}
	if macros[0].Name != "first" || macros[0].Seq != 1 {
		t.Errorf("macros[0] = %+v", macros[0])
	}
	if macros[1].Name != "third" || macros[1].Seq != 3 {
		t.Errorf("macros[1] = %+v", macros[1])
	}

	// New definitions continue past the restored counter; seq 2 is
	// never handed out again.
	e2.DefineMacro(&script.Macro{Name: "fourth", Body: "#echo 4"})
	if m := e2.Macros()[2]; m.Seq != 4 {
		t.Errorf("fourth got seq %d, want 4", m.Seq)
	}
}

func TestUndeffedSequenceStaysRetiredAfterRestart(t *testing.T) {
	s := testStore(t)

	e := script.NewEngine()
	e.DefineMacro(&script.Macro{Name: "keeper", Body: "#echo 1"})
	e.DefineMacro(&script.Macro{Name: "doomed", Body: "#echo 2"})
	e.UndefMacro("doomed")
	if err := s.SaveSession(e, world.NewRegistry()); err != nil {
		t.Fatalf("save: %v", err)
	}

	// doomed held the highest seq, so the surviving macros alone say
	// nothing about it; the persisted counter must.
	e2 := script.NewEngine()
	if err := s.LoadSession(e2, world.NewRegistry()); err != nil {
		t.Fatalf("load: %v", err)
	}
	e2.DefineMacro(&script.Macro{Name: "newcomer", Body: "#echo 3"})
	m := e2.Macros()
	if len(m) != 2 {
		t.Fatalf("got %d macros, want 2", len(m))
	}
	if m[1].Name != "newcomer" || m[1].Seq != 3 {
		t.Errorf("newcomer = %+v, want seq 3 (seq 2 belonged to doomed)", m[1])
	}
}

func TestSaveReplacesPreviousSession(t *testing.T) {
	s := testStore(t)

	e := script.NewEngine()
	e.Vars.SetGlobal("stale", script.StringValue("old"))
	e.DefineMacro(&script.Macro{Name: "old", Body: "#echo old"})
	if err := s.SaveSession(e, world.NewRegistry()); err != nil {
		t.Fatalf("save 1: %v", err)
	}

	e2 := script.NewEngine()
	e2.Vars.SetGlobal("fresh", script.StringValue("new"))
	if err := s.SaveSession(e2, world.NewRegistry()); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	e3 := script.NewEngine()
	if err := s.LoadSession(e3, world.NewRegistry()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := e3.Vars.Global("stale"); ok {
		t.Error("stale var survived resave")
	}
	if _, ok := e3.Vars.Global("fresh"); !ok {
		t.Error("fresh var missing")
	}
	if len(e3.Macros()) != 0 {
		t.Errorf("macros = %+v", e3.Macros())
	}
}

func TestWriteThroughPuts(t *testing.T) {
	s := testStore(t)

	if err := s.PutVar("hp", "40", false); err != nil {
		t.Fatalf("put var: %v", err)
	}
	if err := s.PutMacro(&script.Macro{Name: "greet", Body: "#echo hi", Seq: 7}); err != nil {
		t.Fatalf("put macro: %v", err)
	}
	if err := s.PutWorld(world.Info{Name: "Moo", Host: "h", Port: 1}); err != nil {
		t.Fatalf("put world: %v", err)
	}
	if !s.HasData() {
		t.Error("HasData = false after PutMacro")
	}

	e := script.NewEngine()
	reg := world.NewRegistry()
	if err := s.LoadSession(e, reg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, ok := e.Vars.Global("hp"); !ok || v.Int() != 40 {
		t.Errorf("hp = %v, %v", v, ok)
	}
	if m := e.Macros(); len(m) != 1 || m[0].Seq != 7 {
		t.Errorf("macros = %+v", m)
	}
	if _, ok := reg.Get("Moo"); !ok {
		t.Error("world missing")
	}

	if err := s.DeleteMacro(7); err != nil {
		t.Fatalf("delete macro: %v", err)
	}
	if s.HasData() {
		t.Error("HasData = true after delete")
	}
}
