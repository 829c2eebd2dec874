// Package watcher maintains a live listing of the candidate files in a skin
// cache using fsnotify, so server-mode scans can skip the directory walk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Newly written cache files settle before they join the listing.
const defaultDebounce = 400 * time.Millisecond

// Listing tracks the regular files under one cache root.
type Listing struct {
	root      string
	recursive bool
	debounce  time.Duration
	logger    *zap.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	files    map[string]struct{}
	timers   map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Listing.
type Option func(*Listing)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Listing) { w.logger = l }
}

// WithDebounce overrides how long a changed file must stay quiet before it
// is listed.
func WithDebounce(d time.Duration) Option {
	return func(w *Listing) { w.debounce = d }
}

// NewListing creates a listing for the cache at root.
func NewListing(root string, recursive bool, opts ...Option) *Listing {
	w := &Listing{
		root:      root,
		recursive: recursive,
		debounce:  defaultDebounce,
		files:     make(map[string]struct{}),
		timers:    make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start walks the cache once and then keeps the listing current until ctx is
// cancelled or Stop is called. The root is created when missing.
func (w *Listing) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	abs, err := filepath.Abs(w.root)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.root = abs
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if err := w.addTreeLocked(abs); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	if w.logger != nil {
		w.logger.Debug("watcher started",
			zap.String("root", abs),
			zap.Bool("recursive", w.recursive),
			zap.Int("files", len(w.files)),
		)
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

// addTreeLocked registers watches for root (and subdirectories when
// recursive) and records the regular files already present.
func (w *Listing) addTreeLocked(root string) error {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !w.recursive && path != root {
				return fs.SkipDir
			}
			return w.watcher.Add(path)
		}
		info, statErr := os.Stat(path)
		if statErr == nil && info.Mode().IsRegular() {
			w.files[path] = struct{}{}
		}
		return nil
	})
}

func (w *Listing) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Listing) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		w.debounceAdd(path)
	case fsnotify.Remove, fsnotify.Rename:
		w.cancelTimer(path)
		w.forget(path)
	}
}

// handleNewDirectory watches a directory that appeared after start and lists
// the files it already contains (a directory moved into the cache arrives
// with its contents but without per-file events).
func (w *Listing) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	recursive := w.recursive
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil || !recursive {
		return
	}

	filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := watcher.Add(path); addErr != nil && w.logger != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(addErr))
			}
			return nil
		}
		info, statErr := os.Stat(path)
		if statErr == nil && info.Mode().IsRegular() {
			w.mu.Lock()
			w.files[path] = struct{}{}
			w.mu.Unlock()
		}
		return nil
	})
}

func (w *Listing) underRoot(path string) bool {
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()
	clean := filepath.Clean(path)
	return clean == root || inDir(root, clean)
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Listing) debounceAdd(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		w.mu.Lock()
		delete(w.timers, path)
		w.files[path] = struct{}{}
		logger := w.logger
		w.mu.Unlock()
		if logger != nil {
			logger.Debug("watcher listed file", zap.String("path", path))
		}
	})
	w.timers[path] = t
}

func (w *Listing) cancelTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// forget drops path and, when it was a directory, everything beneath it.
func (w *Listing) forget(path string) {
	prefix := path + string(filepath.Separator)
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.files, path)
	for f := range w.files {
		if strings.HasPrefix(f, prefix) {
			delete(w.files, f)
		}
	}
}

// Snapshot returns the current candidate files, sorted.
func (w *Listing) Snapshot() []string {
	w.mu.Lock()
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	w.mu.Unlock()
	sort.Strings(files)
	return files
}

// Count returns how many files the listing currently holds.
func (w *Listing) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

// Root returns the absolute cache root once Start has resolved it.
func (w *Listing) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Stop stops watching and releases resources.
func (w *Listing) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
