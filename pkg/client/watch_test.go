package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcherReloadsChangedScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "triggers.tf")
	writeFile(t, script, "#set counter=1\n")

	env := newTestEnv(t, &Config{HistorySize: 50, Scripts: []string{script}})
	w, err := NewWatcher(env.sess)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	if v, _ := env.sess.Engine().Vars.Global("counter"); v.Int() != 1 {
		t.Fatalf("counter = %v after autoload", v)
	}

	writeFile(t, script, "#set counter=2\n")

	// The reload arrives as posted work on the session channel.
	select {
	case fn := <-env.sess.ctl:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("no reload posted")
	}
	if v, _ := env.sess.Engine().Vars.Global("counter"); v.Int() != 2 {
		t.Errorf("counter = %v after reload", v)
	}
	if !env.sawOutput("Reloading") {
		t.Errorf("output = %v", env.out)
	}
}

func TestWatcherIgnoresUnwatchedFiles(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "triggers.tf")
	writeFile(t, script, "#set counter=1\n")

	env := newTestEnv(t, &Config{HistorySize: 50, Scripts: []string{script}})
	w, err := NewWatcher(env.sess)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "other.txt"), "not a script\n")

	select {
	case fn := <-env.sess.ctl:
		fn()
		t.Error("reload posted for unwatched file")
	case <-time.After(500 * time.Millisecond):
	}
}
