package buildscript

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lin-qingying/kcjpm-sub000/pkg/kcerrors"
)

// debounceDelay coalesces bursts of writes (e.g. an editor's save-then-
// rewrite) into a single rebuild trigger.
const debounceDelay = 300 * time.Millisecond

// Watcher watches a build script's declared rerun-if-changed paths and
// calls OnChange, debounced, whenever one of them is modified. It is
// additive to the one-shot Run path: nothing in this package requires
// a Watcher to exist.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func([]string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	closed  chan struct{}
}

// NewWatcher watches every path in paths (files or directories) and
// invokes onChange with the debounced set of modified paths.
func NewWatcher(paths []string, onChange func([]string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, kcerrors.Wrap(kcerrors.ErrCodeBuildScript, err, "creating file watcher")
	}

	w := &Watcher{
		watcher:  fw,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		closed:   make(chan struct{}),
	}

	for _, p := range paths {
		if err := fw.Add(filepath.Clean(p)); err != nil {
			fw.Close()
			return nil, kcerrors.Wrap(kcerrors.ErrCodeBuildScript, err, "watching %s", p)
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) {
				continue
			}
			w.schedule(event.Name)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.closed:
			return
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(names) > 0 && w.onChange != nil {
		w.onChange(names)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.closed)
	return w.watcher.Close()
}
