// SPDX-License-Identifier: MPL-2.0

// Package watch provides debounced change notification for a set of files.
//
// The watcher tracks an explicit set of absolute file paths, the files a
// compile pass touched, by watching their parent directories. Events for
// untracked or ignored paths are dropped. Events within the debounce window
// are coalesced so the callback fires once with the full set of changed
// paths, and a batch that arrives while the callback is still running is
// held and delivered after it returns.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the delay before firing the onChange callback after the
// last filesystem event. This allows rapid successive events (e.g., an editor
// writing then renaming a temp file) to coalesce into a single callback.
const defaultDebounce = 100 * time.Millisecond

// ErrAlreadyRunning is returned when Run is called a second time.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores lists path patterns that never trigger callbacks,
// regardless of user-supplied ignore patterns: VCS metadata, editor swap
// files and OS metadata files.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Files is the initial set of absolute paths to track.
		Files []string

		// Ignore are additional doublestar-compatible glob patterns, matched
		// against paths relative to BaseDir, for files that should never
		// trigger callbacks. These are merged with the built-in defaults.
		Ignore []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// BaseDir anchors the ignore patterns. Paths outside it are matched
		// in their absolute slash form.
		BaseDir string

		// OnChange is called after the debounce window closes with the
		// sorted, deduplicated list of changed absolute paths. A nil callback
		// is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives diagnostics. nil discards them.
		Logger *log.Logger
	}

	// Watcher monitors a set of files and fires a debounced callback when
	// any of them changes. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool

		mu    sync.Mutex
		files map[string]bool
		// dirs counts tracked files per watched directory.
		dirs map[string]int
	}
)

// New creates a Watcher from the given Config and starts watching the
// directories of cfg.Files.
func New(cfg Config) (*Watcher, error) {
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	absBase := ""
	if cfg.BaseDir != "" {
		var err error
		if absBase, err = filepath.Abs(cfg.BaseDir); err != nil {
			return nil, fmt.Errorf("watch: resolve base directory: %w", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ignores := make([]string, 0, len(defaultIgnores)+len(cfg.Ignore))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, cfg.Ignore...)

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  ignores,
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
	}

	if err := w.SetFiles(cfg.Files); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close after init failure", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// SetFiles replaces the tracked set. Directories that no longer hold a
// tracked file are unwatched. It is safe to call while Run is active,
// including from OnChange.
func (w *Watcher) SetFiles(paths []string) error {
	next := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch: resolve %q: %w", p, err)
		}
		next[abs] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wantDirs := make(map[string]int)
	for p := range next {
		wantDirs[filepath.Dir(p)]++
	}

	var errs []error
	for dir := range wantDirs {
		if w.dirs[dir] > 0 {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			if watchExhausted(err) {
				return fmt.Errorf("watch: add directory %q: %w", dir, err)
			}
			// The directory may be gone; keep tracking so the rest still works.
			errs = append(errs, fmt.Errorf("add directory %q: %w", dir, err))
			delete(wantDirs, dir)
		}
	}
	for dir := range w.dirs {
		if wantDirs[dir] == 0 {
			if err := w.fsw.Remove(dir); err != nil {
				w.logger.Debug("unwatch directory", "dir", dir, "err", err)
			}
		}
	}

	w.files = next
	w.dirs = wantDirs
	for _, err := range errs {
		w.logger.Warn("watch", "err", err)
	}
	return nil
}

// Files returns the tracked paths, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.files))
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.dirs))
}

func (w *Watcher) tracked(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[path]
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on clean context
// cancellation and propagates fatal watcher errors.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu       sync.Mutex
		pending  = make(map[string]struct{})
		timer    *time.Timer
		running  atomic.Bool
		stopped  bool
		inflight sync.WaitGroup
	)

	// fire drains the pending set and invokes the OnChange callback. A batch
	// that fires while the previous callback runs is rescheduled instead of
	// dropped, so callbacks never overlap and no change is lost. Callbacks
	// are counted in inflight under mu so shutdown can wait for them.
	fire := func() {
		mu.Lock()
		if stopped || ctx.Err() != nil {
			mu.Unlock()
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous pass still running, deferring batch")
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		if len(pending) == 0 {
			running.Store(false)
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		inflight.Add(1)
		mu.Unlock()

		defer inflight.Done()
		defer running.Store(false)

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("change callback failed", "err", err)
			}
		}
	}

	// Stop scheduling, wait for a running callback, then close fsnotify so
	// no callback outlives Run or sees a closed watcher.
	defer func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		inflight.Wait()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify", "err", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			path := filepath.Clean(evt.Name)
			if !w.tracked(path) || w.isIgnored(path) {
				continue
			}
			w.logger.Debug("change", "path", path, "op", evt.Op.String())

			mu.Lock()
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if watchExhausted(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// isIgnored reports whether path matches any ignore pattern. Patterns are
// matched against the path relative to BaseDir when it lies inside it.
func (w *Watcher) isIgnored(path string) bool {
	rel := path
	if w.baseDir != "" {
		if r, err := filepath.Rel(w.baseDir, path); err == nil && filepath.IsLocal(r) {
			rel = r
		}
	}
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if matched, matchErr := doublestar.Match(pat, normalized); matchErr == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

// validatePatterns checks that every pattern in the slice is a valid doublestar
// glob. The label is used in error messages.
func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
