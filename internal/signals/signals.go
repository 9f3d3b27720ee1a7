// Package signals lets other processes control a running quorum through
// files under .quorum/signals.
package signals

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StopFile is the name of the file whose creation stops the active run.
const StopFile = "stop"

// pollInterval is used when no fsnotify watcher could be started.
const pollInterval = 500 * time.Millisecond

// Dir returns the signals directory for a project.
func Dir(projectRoot string) string {
	return filepath.Join(projectRoot, ".quorum", "signals")
}

// Watcher reports stop signals for one project.
type Watcher struct {
	dir string

	mu         sync.RWMutex
	stopSignal bool
	onStop     func()

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewWatcher creates the signals directory and starts watching it.
// onStop, if non-nil, is called once when a stop signal arrives.
// When fsnotify is unavailable the directory is polled instead.
func NewWatcher(projectRoot string, onStop func()) (*Watcher, error) {
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:    dir,
		onStop: onStop,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		go w.poll()
		return w, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		go w.poll()
		return w, nil
	}
	w.watcher = watcher

	go w.watchSignals()

	return w, nil
}

// watchSignals monitors the signals directory for the stop file.
func (w *Watcher) watchSignals() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == StopFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.trigger()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if w.stopFileExists() {
				w.trigger()
			}
		}
	}
}

func (w *Watcher) stopFileExists() bool {
	_, err := os.Stat(filepath.Join(w.dir, StopFile))
	return err == nil
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	first := !w.stopSignal
	w.stopSignal = true
	onStop := w.onStop
	w.mu.Unlock()

	if first && onStop != nil {
		onStop()
	}
}

// ShouldStop returns true if a stop signal has been received.
func (w *Watcher) ShouldStop() bool {
	// Also check the file directly in case the watcher missed it.
	if w.stopFileExists() {
		w.trigger()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopSignal
}

// SendStop creates the stop signal file.
func (w *Watcher) SendStop() error {
	return SendStop(filepath.Dir(filepath.Dir(w.dir)))
}

// Clear removes the stop file and resets the signal state.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopSignal = false
	os.Remove(filepath.Join(w.dir, StopFile))
}

// Close shuts down the watcher.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// SendStop creates the stop signal file for a project.
func SendStop(projectRoot string) error {
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, StopFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// WatchStop cancels the run when the project's stop file appears. A stale
// stop file from an earlier run is removed first. The returned function
// stops watching; it is also called when ctx ends.
func WatchStop(ctx context.Context, projectRoot string, cancel context.CancelFunc) (func(), error) {
	os.Remove(filepath.Join(Dir(projectRoot), StopFile))

	w, err := NewWatcher(projectRoot, cancel)
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-w.done:
		}
	}()

	return w.Close, nil
}
