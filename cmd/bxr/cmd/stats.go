package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newStatsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, g)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.store.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Root:        %s\n", s.project.Root)
			fmt.Fprintf(out, "Index:       %s\n", s.project.Database())
			fmt.Fprintf(out, "Files:       %d\n", stats.Files)
			fmt.Fprintf(out, "Tags:        %d\n", stats.Tags)
			fmt.Fprintf(out, "Occurrences: %d\n", stats.Occurrences)
			fmt.Fprintf(out, "Orphan tags: %d\n", stats.OrphanTags)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bxr %s (%s %s/%s)\n",
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}
