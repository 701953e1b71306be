package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"bxr/internal/config"
	"bxr/internal/project"
	"bxr/internal/updater"
	"bxr/internal/watcher"
)

func newCreateCmd(g *globals) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:     "create [path]",
		Aliases: []string{"c"},
		Short:   "Scan a tree and create its index",
		Long: `Scan path (default: the current directory) and create the index there.
An existing index is replaced; it stays usable until the new one is committed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runCreate(cmd.Context(), cmd.OutOrStdout(), g, root, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not list files as they are scanned")

	return cmd
}

func runCreate(ctx context.Context, out io.Writer, g *globals, root string, quiet bool) error {
	cfg, err := config.LoadProjectConfig(filepath.Join(root, config.FileName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.DefaultProjectConfig()
	}
	cfg.Scan = cfg.WithEnv().Scan

	p, err := project.Init(root, cfg)
	if err != nil {
		return err
	}

	lock, err := p.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	st, err := p.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer st.Close()

	opts := p.ScanOptions(g.logger)
	if !quiet {
		sty := newStyles(g.output.color)
		opts.Progress = func(path string) {
			fmt.Fprintf(out, "Scanning: %s\n", sty.file.Render(path))
		}
	}

	res, err := updater.Create(ctx, p.Root, st, updater.Options{Scan: opts, Logger: g.logger})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Indexed %d files, %d occurrences in %s (%s)\n",
		res.Scan.Files, res.Scan.Occurrences, p.Root, res.Duration.Round(time.Millisecond))
	return nil
}

func newUpdateCmd(g *globals) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:     "update",
		Aliases: []string{"u"},
		Short:   "Reindex files that changed since the last scan",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd.Context(), cmd.OutOrStdout(), g, prune)
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Also delete tags no longer found in any file")

	return cmd
}

func runUpdate(ctx context.Context, out io.Writer, g *globals, prune bool) error {
	p, err := locate()
	if err != nil {
		return err
	}

	lock, err := p.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	st, err := p.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer st.Close()

	res, err := updater.Update(ctx, p.Root, st, updater.Options{
		Scan:   p.ScanOptions(g.logger),
		Prune:  prune,
		Logger: g.logger,
	})
	if err != nil {
		return err
	}

	printUpdate(out, res)
	return nil
}

func printUpdate(out io.Writer, res *updater.Result) {
	if res.Type == updater.ChangeNone && res.Pruned == 0 {
		fmt.Fprintln(out, "Index is up to date")
		return
	}
	fmt.Fprintf(out, "Updated: %d added, %d modified, %d deleted",
		len(res.Changes.Added), len(res.Changes.Modified), len(res.Changes.Deleted))
	if res.Pruned > 0 {
		fmt.Fprintf(out, ", %d tags pruned", res.Pruned)
	}
	fmt.Fprintf(out, " (%s)\n", res.Duration.Round(time.Millisecond))
}

func newWatchCmd(g *globals) *cobra.Command {
	var debounce time.Duration
	var prune bool

	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Keep the index updated as files change",
		Long: `Watch the indexed tree and run an incremental update each time changes
settle. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), g, debounce, prune)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Quiet period before an update runs")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete orphaned tags on every update")

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, g *globals, debounce time.Duration, prune bool) error {
	p, err := locate()
	if err != nil {
		return err
	}

	lock, err := p.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	st, err := p.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer st.Close()

	w, err := watcher.New(p.Root, st, watcher.Options{
		Debounce: debounce,
		Update: updater.Options{
			Scan:  p.ScanOptions(g.logger),
			Prune: prune,
		},
		OnUpdate: func(_ []watcher.Event, res *updater.Result, err error) {
			if err == nil && res.Type != updater.ChangeNone {
				printUpdate(out, res)
			}
		},
		Logger: g.logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", p.Root)
	return w.Run(ctx)
}
