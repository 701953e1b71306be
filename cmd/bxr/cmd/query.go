package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bxr/internal/config"
	"bxr/internal/project"
	"bxr/internal/query"
	"bxr/internal/store"
)

// session is an open index ready for queries.
type session struct {
	project *project.Project
	store   *store.Store
	engine  *query.Engine
}

func openSession(ctx context.Context, g *globals) (*session, error) {
	p, err := locate()
	if err != nil {
		return nil, err
	}

	st, err := p.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	cli := config.LoadCLIConfigFromEnv()
	eng, err := query.New(st, p.Root, query.Config{
		CacheSize:      cli.LineCacheSize,
		MinTokenLength: p.Effective().Scan.MinTokenLength,
		Logger:         g.logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &session{project: p, store: st, engine: eng}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func newIdentifierCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "identifier <name>",
		Aliases: []string{"i"},
		Short:   "Find every occurrence of an identifier",
		Long: `Type the full name of an identifier (a function name, variable name,
typedef, etc.). Matches are case-sensitive; definitions are listed first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, g, args[0], func(ctx context.Context, e *query.Engine, opts query.Options) ([]query.Result, error) {
				return e.Identifier(ctx, args[0], opts)
			})
		},
	}
}

func newSearchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "search <text>",
		Aliases: []string{"s"},
		Short:   "Free-text search through the source, comments included",
		Long: `Find lines containing text exactly (case-sensitive). Several arguments
are joined with single spaces.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return runQuery(cmd, g, text, func(ctx context.Context, e *query.Engine, opts query.Options) ([]query.Result, error) {
				return e.Search(ctx, text, opts)
			})
		},
	}
}

func runQuery(cmd *cobra.Command, g *globals, input string, run func(context.Context, *query.Engine, query.Options) ([]query.Result, error)) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, g)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := run(ctx, s.engine, query.Options{Max: g.output.max})
	if err != nil {
		return err
	}

	return emit(ctx, cmd, &g.output, func(w io.Writer) {
		newPrinter(w, &g.output, s.project.Resolve).results(input, rows)
	})
}

func newFileCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "file <name>",
		Aliases: []string{"f"},
		Short:   "Find files whose name contains a string",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, g)
			if err != nil {
				return err
			}
			defer s.Close()

			paths, err := s.engine.Files(ctx, args[0], query.Options{Max: g.output.max})
			if err != nil {
				return err
			}

			return emit(ctx, cmd, &g.output, func(w io.Writer) {
				newPrinter(w, &g.output, s.project.Resolve).files(args[0], paths)
			})
		},
	}
}
