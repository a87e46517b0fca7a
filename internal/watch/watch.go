// Package watch reports changes to a small set of files via fsnotify,
// debounced so editors that write in several steps trigger one reload.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches files by watching their parent directories, so files
// that do not exist yet or are replaced by rename are still seen.
type Watcher struct {
	files    map[string]struct{} // absolute paths
	onChange func(path string)
	debounce time.Duration
	logger   *slog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before onChange runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for paths. onChange runs on its own goroutine
// once per quiet period for each file that changed.
func New(paths []string, onChange func(path string), opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	w := &Watcher{
		files:    make(map[string]struct{}, len(paths)),
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
	}
	return w, nil
}

// Start begins watching. It returns once the directories are registered.
func (w *Watcher) Start(ctx context.Context) error {
	if w.running.Swap(true) {
		return errors.New("watch: already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.running.Store(false)
		return fmt.Errorf("watch: create watcher: %w", err)
	}

	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			w.logger.Warn("failed to create watched directory", "dir", dir, "error", err)
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			w.running.Store(false)
			return fmt.Errorf("watch: add %s: %w", dir, err)
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, fsw)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if !w.running.Load() {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer func() {
		_ = fsw.Close()
		w.running.Store(false)
		close(w.done)
	}()

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)

	trigger := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			w.logger.Debug("watched file changed", "path", path)
			w.onChange(path)
		})
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range timers {
				t.Stop()
			}
			mu.Unlock()
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if _, watched := w.files[filepath.Clean(event.Name)]; !watched {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				trigger(filepath.Clean(event.Name))
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
