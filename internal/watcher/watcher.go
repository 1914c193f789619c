// Package watcher feeds an inbox directory into the knowledge base. Files matching the configured
// glob patterns are handed to a callback once their writes have settled.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 400 * time.Millisecond

// ErrNoMatch is returned by Latest when the inbox holds no matching file.
var ErrNoMatch = errors.New("no matching file in watch directory")

// Watcher watches one directory tree. Only the most recently changed matching file is delivered:
// since the knowledge base holds a single document, a burst of drops collapses to the last one.
type Watcher struct {
	root     string
	patterns []string
	onChange func(path string)
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	pending string

	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for watch events.
func WithLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for root. Patterns are doublestar globs matched against the
// slash-separated path relative to root, case-insensitively.
func NewWatcher(root string, patterns []string, onChange func(path string), opts ...WatcherOption) *Watcher {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lowered = append(lowered, strings.ToLower(filepath.ToSlash(p)))
		}
	}
	w := &Watcher{
		root:     filepath.Clean(root),
		patterns: lowered,
		onChange: onChange,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Start creates the root if needed, registers every directory below it and begins delivering
// events. It returns once watching is set up.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	abs, err := filepath.Abs(w.root)
	if err != nil {
		return err
	}
	w.root = abs
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	if err := w.addTreeLocked(w.root); err != nil {
		fw.Close()
		w.watcher = nil
		return err
	}
	w.started = true
	w.logger.Info("Watching inbox",
		zap.String("directory", w.root),
		zap.Strings("patterns", w.patterns))

	go w.run(ctx)
	return nil
}

// Stop ends watching and drops any pending delivery. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.pending = ""
		if w.watcher != nil {
			w.watcher.Close()
			w.watcher = nil
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) {
				w.addDirectory(path)
			}
			return
		}
		if w.Matches(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// addDirectory registers a directory created after Start and picks up files already moved into it.
func (w *Watcher) addDirectory(dir string) {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	err := w.addTreeLocked(dir)
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("Failed to watch new directory", zap.String("path", dir), zap.Error(err))
		return
	}
	if latest, err := w.latestUnder(dir); err == nil {
		w.schedule(latest)
	}
}

func (w *Watcher) addTreeLocked(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// schedule makes path the pending delivery and restarts the debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	w.pending = path
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	path := w.pending
	w.pending = ""
	w.timer = nil
	w.mu.Unlock()

	if path == "" || w.onChange == nil {
		return
	}
	w.logger.Debug("Inbox file settled", zap.String("path", path))
	w.onChange(path)
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != path {
		return
	}
	w.pending = ""
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Matches reports whether path lies under the root and matches one of the patterns. Hidden files
// and office lock files never match.
func (w *Watcher) Matches(path string) bool {
	if hidden(filepath.Base(path)) {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = strings.ToLower(filepath.ToSlash(rel))
	for _, p := range w.patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Latest returns the most recently modified matching file under the root.
func (w *Watcher) Latest() (string, error) {
	return w.latestUnder(w.root)
}

func (w *Watcher) latestUnder(dir string) (string, error) {
	var (
		best    string
		bestMod time.Time
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.Matches(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if best == "" {
		return "", ErrNoMatch
	}
	return best, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}
