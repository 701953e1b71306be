// Package updater builds and refreshes an index. Create rescans the whole
// tree; Update reindexes only files whose mtime changed. Either way every
// write happens in one transaction.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bxr/internal/logging"
	"bxr/internal/scanner"
	"bxr/internal/store"
)

// ChangeType describes what an operation did to the index.
type ChangeType string

const (
	ChangeFull        ChangeType = "full"
	ChangeIncremental ChangeType = "incremental"
	ChangeNone        ChangeType = "none"
)

// Options controls Create and Update.
type Options struct {
	Scan scanner.Options

	// Prune deletes tags left without occurrences.
	Prune bool

	Logger *slog.Logger
}

// Result reports the outcome of Create or Update.
type Result struct {
	Type ChangeType

	// Changes is nil for a full create.
	Changes *Changes

	Scan     scanner.Result
	Pruned   int64
	Duration time.Duration
}

// Create replaces whatever index st holds with a fresh scan of root.
func Create(ctx context.Context, root string, st *store.Store, opts Options) (*Result, error) {
	start := time.Now()
	logger := logging.Or(opts.Logger)

	if err := scanner.CheckRoot(root); err != nil {
		return nil, err
	}

	w, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer w.Rollback()

	if err := w.CreateSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	scanOpts := opts.Scan
	if scanOpts.Logger == nil {
		scanOpts.Logger = logger
	}
	res, err := scanner.Scan(ctx, root, w, scanOpts)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	if err := w.Commit(); err != nil {
		return nil, err
	}

	result := &Result{
		Type:     ChangeFull,
		Scan:     res,
		Duration: time.Since(start),
	}
	logger.Info("index created",
		"root", root,
		"files", res.Files,
		"occurrences", res.Occurrences,
		"duration", result.Duration)
	return result, nil
}

// Update brings st in line with the tree under root. Removed files are
// deleted, new files indexed and changed files deleted then reindexed.
func Update(ctx context.Context, root string, st *store.Store, opts Options) (*Result, error) {
	start := time.Now()
	logger := logging.Or(opts.Logger)

	scanOpts := opts.Scan
	if scanOpts.Logger == nil {
		scanOpts.Logger = logger
	}

	current, err := scanner.Walk(root, scanOpts)
	if err != nil {
		return nil, err
	}

	w, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer w.Rollback()

	ok, err := w.Initialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking index: %w", err)
	}
	if !ok {
		return nil, store.ErrNotInitialized
	}

	stored, err := w.FileTimes(ctx)
	if err != nil {
		return nil, err
	}

	changes := Diff(stored, current)
	result := &Result{Type: ChangeIncremental, Changes: changes}

	if changes.IsEmpty() && !opts.Prune {
		result.Type = ChangeNone
		result.Duration = time.Since(start)
		logger.Debug("index up to date", "root", root)
		return result, nil
	}

	for _, path := range changes.Deleted {
		if err := w.DeleteFile(ctx, path); err != nil {
			return nil, err
		}
	}
	for _, path := range changes.Modified {
		if err := w.DeleteFile(ctx, path); err != nil {
			return nil, err
		}
	}
	for _, path := range changes.AllChanged() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := scanner.IndexPath(ctx, root, path, w, scanOpts)
		if err != nil {
			return nil, err
		}
		result.Scan.Add(n)
	}

	if opts.Prune {
		if result.Pruned, err = w.PruneOrphanTags(ctx); err != nil {
			return nil, err
		}
	}

	if err := w.Commit(); err != nil {
		return nil, err
	}

	if changes.IsEmpty() {
		result.Type = ChangeNone
	}
	result.Duration = time.Since(start)
	logger.Info("index updated",
		"root", root,
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"deleted", len(changes.Deleted),
		"pruned", result.Pruned,
		"duration", result.Duration)
	return result, nil
}
