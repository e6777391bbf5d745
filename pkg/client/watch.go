package client

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the write bursts editors produce when saving
// into one reload.
const debounceDelay = 200 * time.Millisecond

// Watcher reloads script files when they change on disk. Events arrive
// on fsnotify's goroutine; the reload itself is posted to the session
// goroutine so the engine is never touched concurrently.
type Watcher struct {
	fw   *fsnotify.Watcher
	sess *Session

	mu      sync.Mutex
	watched map[string]bool
	pending map[string]*time.Timer
	done    chan struct{}
}

// NewWatcher starts watching every script the session has loaded so
// far. Directories are watched rather than files so editors that
// replace-on-save keep triggering.
func NewWatcher(sess *Session) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		fw:      fw,
		sess:    sess,
		watched: make(map[string]bool),
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, path := range sess.LoadedScripts() {
		if err := w.Add(path); err != nil {
			log.Printf("watch: %s: %v", path, err)
		}
	}
	go w.loop()
	return w, nil
}

// Add registers one script file for change tracking.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[abs] {
		return nil
	}
	if err := w.fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: %s: %w", abs, err)
	}
	w.watched[abs] = true
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			if !w.watched[abs] {
				w.mu.Unlock()
				continue
			}
			if t, ok := w.pending[abs]; ok {
				t.Stop()
			}
			path := abs
			w.pending[abs] = time.AfterFunc(debounceDelay, func() {
				w.reload(path)
			})
			w.mu.Unlock()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		}
	}
}

// reload hands the actual file load to the session goroutine.
func (w *Watcher) reload(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
	DebugLog("watch: %s changed, reloading", path)
	w.sess.Post(func() {
		w.sess.echo(fmt.Sprintf("%% Reloading %s", path))
		if err := w.sess.LoadScript(path); err != nil {
			w.sess.echo("% " + err.Error())
		}
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
