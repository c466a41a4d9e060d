package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"complyhq/sentinel/pkg/rules"
)

// DefaultDebounce is the quiet period before a reload fires.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a FileSource whenever its files change and hands the new rule set
// to a callback. Bursts of events are debounced into a single reload. A reload that
// fails validation is logged and the previous rule set stays in effect.
type Watcher struct {
	source   *FileSource
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for source. A zero debounce uses DefaultDebounce.
func NewWatcher(source *FileSource, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		source:   source,
		debounce: debounce,
		logger:   logger.With("component", "rules.watcher"),
	}
}

// Watch blocks until ctx is cancelled, calling onReload with the freshly loaded rules
// after every debounced change.
func (w *Watcher) Watch(ctx context.Context, onReload func([]*rules.Rule)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	target, err := filepath.Abs(w.source.Path())
	if err != nil {
		return err
	}
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", target, err)
	}

	// Editors often replace files rather than write them in place, so a single file
	// is watched through its parent directory.
	single := !info.IsDir()
	if single {
		err = fsw.Add(filepath.Dir(target))
	} else {
		err = addTree(fsw, target)
	}
	if err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	w.logger.Info("rule watcher started",
		"path", target,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	debouncer := newDebouncer(w.debounce)
	defer debouncer.stop()

	reload := func() {
		loaded, err := w.source.LoadRules(ctx)
		if err != nil {
			w.logger.Error("rule reload failed, keeping previous rules", "error", err)
			return
		}
		w.logger.Info("rules reloaded", "rule_count", len(loaded))
		onReload(loaded)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("rule watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if single {
				if abs, _ := filepath.Abs(event.Name); abs != target {
					continue
				}
			} else {
				if event.Op&fsnotify.Create != 0 {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
						_ = addTree(fsw, event.Name)
					}
				}
				if !IsRuleFile(event.Name) || strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}
			}

			w.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
			debouncer.trigger(reload)

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("rule watcher error", "error", err)
		}
	}
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

// debouncer runs the most recent callback once no trigger has arrived for interval.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
