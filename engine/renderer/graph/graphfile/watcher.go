package graphfile

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a description file and the files it references. It watches the parent
// directories so editors that save by renaming a temporary file are still seen. Changes are
// collected in the background and drained by Poll, typically once per frame.
type Watcher struct {
	mu      *sync.Mutex
	watcher *fsnotify.Watcher
	paths   map[string]bool
	pending []string
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher starts watching paths, usually (*File).Paths().
//
// Parameters:
//   - paths: the files to watch
//
// Returns:
//   - *Watcher: the running watcher
//   - error: an error if a directory cannot be watched
func NewWatcher(paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	w := &Watcher{
		mu:      &sync.Mutex{},
		watcher: fw,
		paths:   make(map[string]bool),
		done:    make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("graphfile: %w", err)
		}
		w.paths[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("graphfile: watch %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.paths[name] {
				continue
			}
			w.mu.Lock()
			if !slices.Contains(w.pending, name) {
				w.pending = append(w.pending, name)
			}
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			graph.Logger().Warn("graph file watcher error", "error", err)
		}
	}
}

// Poll returns the watched files that changed since the last call, each once, without blocking.
//
// Returns:
//   - []string: the changed absolute paths, nil when nothing changed
func (w *Watcher) Poll() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := w.pending
	w.pending = nil
	return changed
}

// Close stops the watcher. It is safe to call more than once.
//
// Returns:
//   - error: an error from closing the underlying watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return nil
	default:
		close(w.done)
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
