// Package cmd provides the bxr CLI commands.
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bxr/internal/config"
	"bxr/internal/logging"
	"bxr/internal/project"
	"bxr/internal/store"
)

// Version is set at build time with -ldflags "-X bxr/cmd/bxr/cmd.Version=...".
var Version = "dev"

// globals holds the flags shared by every subcommand.
type globals struct {
	output  outputOptions
	verbose bool
	logger  *slog.Logger
}

// NewRootCmd creates the root command for the bxr CLI.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "bxr",
		Short: "Lexical cross-reference index for source trees",
		Long: `bxr scans a source tree into a local index of identifiers and answers
queries against it: where an identifier appears (strongest definitions
first), free-text search through the code including comments, and file
lookup by name.

Commands may be abbreviated: 'bxr i Foo' runs 'bxr identifier Foo'.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if wd, err := os.Getwd(); err == nil {
				if err := config.LoadDotEnv(wd); err != nil {
					return err
				}
			}
			logCfg := logging.ConfigFromEnv()
			logCfg.Output = cmd.ErrOrStderr()
			if g.verbose {
				logCfg.Level = "info"
			}
			g.logger = logging.New("bxr", logCfg)
			return nil
		},
	}
	cmd.SetVersionTemplate("bxr version {{.Version}}\n")

	g.output.register(cmd)
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log progress at info level")

	cmd.AddCommand(newCreateCmd(g))
	cmd.AddCommand(newUpdateCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newIdentifierCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newFileCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func init() {
	cobra.EnablePrefixMatching = true
}

// Execute runs the root command until it finishes or the process is
// interrupted. Errors are logged before being returned.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		logger := logging.Default("bxr")
		switch {
		case errors.Is(err, project.ErrNotFound), errors.Is(err, store.ErrNotInitialized):
			logger.Error("no index found, scan the tree with `bxr create`")
		case errors.Is(err, project.ErrLocked):
			logger.Error("another bxr process is writing the index", "error", err)
		default:
			logger.Error("command failed", "error", err)
		}
	}
	return err
}

// locate finds the index for the current directory.
func locate() (*project.Project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return project.Locate(wd)
}
