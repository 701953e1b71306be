// Package watcher keeps an index current by running an incremental update
// each time the files under its root settle after a change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"bxr/internal/logging"
	"bxr/internal/scanner"
	"bxr/internal/store"
	"bxr/internal/updater"
)

// DefaultDebounce is the quiet window before an update runs.
const DefaultDebounce = 500 * time.Millisecond

// Options controls a Watcher.
type Options struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	Update updater.Options

	// OnUpdate is called from the watcher goroutine after every update,
	// including the catch-up update Run performs on start (batch is nil).
	OnUpdate func(batch []Event, res *updater.Result, err error)

	Logger *slog.Logger
}

// Watcher runs updater.Update for root whenever eligible files change.
// Updates run one at a time on the goroutine that called Run.
type Watcher struct {
	root      string
	st        *store.Store
	opts      Options
	logger    *slog.Logger
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
}

// New creates a watcher for the index of root held by st.
func New(root string, st *store.Store, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	if err := scanner.CheckRoot(abs); err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Update.Logger == nil {
		opts.Update.Logger = opts.Logger
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &Watcher{
		root:      abs,
		st:        st,
		opts:      opts,
		logger:    logging.Or(opts.Logger),
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce),
	}, nil
}

// Run watches until ctx is cancelled, which is not an error. It first brings
// the index up to date with whatever changed while nobody was watching.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.logger.Info("watching", "root", w.root)

	if err := w.update(ctx, nil); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			if err := w.update(ctx, batch); err != nil && ctx.Err() == nil {
				w.logger.Error("update failed", "error", err)
			}
		}
	}
}

func (w *Watcher) update(ctx context.Context, batch []Event) error {
	w.logger.Debug("updating index", "events", len(batch))

	res, err := updater.Update(ctx, w.root, w.st, w.opts.Update)
	if w.opts.OnUpdate != nil {
		w.opts.OnUpdate(batch, res, err)
	}
	return err
}

// handle turns one fsnotify event into a debouncer event, dropping anything
// a scan would not look at. Writes to the index itself are hidden files and
// never reach the debouncer.
func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)
	scan := w.opts.Update.Scan

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			if scan.SkipDir(rel) {
				return
			}
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("failed to watch directory", "path", rel, "error", err)
			}
			w.debouncer.Add(Event{Path: rel, Operation: OpCreate})
			return
		}
		op = OpCreate
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A removed directory has no extension and may hold indexed files.
		if path.Ext(rel) == "" && !scanner.Hidden(rel) {
			w.debouncer.Add(Event{Path: rel, Operation: OpDelete})
			return
		}
		op = OpDelete
	default:
		return
	}

	if !scan.Eligible(rel) {
		return
	}
	w.debouncer.Add(Event{Path: rel, Operation: op})
}

// addRecursive watches dir and every directory below it that a scan visits.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		if rel != "." && w.opts.Update.Scan.SkipDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(p); err != nil {
			if p == dir {
				return err
			}
			w.logger.Debug("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) close() {
	w.debouncer.Stop()
	if err := w.fsw.Close(); err != nil {
		w.logger.Debug("closing watcher", "error", err)
	}
}
