package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"bxr/internal/config"
	"bxr/internal/query"
)

// Terminal colors of the three highlighted fields.
const (
	colorResult = "1" // red
	colorLine   = "2" // green
	colorFile   = "3" // yellow
)

// outputOptions are the presentation flags shared by the query commands.
type outputOptions struct {
	max    int
	vi     bool
	color  bool
	tool   string
	noTool bool
	line   int
}

func (o *outputOptions) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.IntVarP(&o.max, "max", "m", 0, "Show at most this many results (0 = all)")
	flags.BoolVarP(&o.vi, "vi", "V", false, "Print path:line:[col:]text, one result per line")
	flags.BoolVarP(&o.color, "color", "c", false, "Colorize output")
	flags.StringVarP(&o.tool, "tool", "t", "", "Pager the results are piped through (default: $BXR_PAGER or \""+config.DefaultCLIConfig().Pager+"\")")
	flags.BoolVarP(&o.noTool, "no-tool", "T", false, "Write results directly instead of through a pager")
	flags.IntVarP(&o.line, "line", "l", 0, "Line the pager jumps to (passed as +N)")
}

// pagerArgs returns the pager command line, or nil when results go straight
// to out. Vi output and non-terminal outputs never use a pager.
func (o *outputOptions) pagerArgs(out io.Writer) []string {
	if o.vi || o.noTool || !isTerminal(out) {
		return nil
	}
	return pagerCommand(o.pagerTool(), o.line)
}

// pagerTool returns --tool, falling back to BXR_PAGER. The environment is
// read here rather than at flag registration so a .env file counts.
func (o *outputOptions) pagerTool() string {
	if o.tool != "" {
		return o.tool
	}
	return config.LoadCLIConfigFromEnv().Pager
}

// pagerCommand splits tool into arguments and appends +line when set.
func pagerCommand(tool string, line int) []string {
	args := strings.Fields(tool)
	if len(args) == 0 {
		return nil
	}
	if line != 0 {
		args = append(args, "+"+strconv.Itoa(line))
	}
	return args
}

// styles renders the highlighted fields.
type styles struct {
	result lipgloss.Style
	line   lipgloss.Style
	file   lipgloss.Style
}

// newStyles returns ANSI styles when enabled, plain ones otherwise. The
// profile is fixed rather than detected because output usually goes to a
// pager's pipe. NO_COLOR always wins.
func newStyles(enabled bool) styles {
	r := lipgloss.NewRenderer(io.Discard)
	if enabled && !termenv.EnvNoColor() {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		result: r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorResult)),
		line:   r.NewStyle().Foreground(lipgloss.Color(colorLine)),
		file:   r.NewStyle().Foreground(lipgloss.Color(colorFile)),
	}
}

// printer formats query results.
type printer struct {
	w       io.Writer
	vi      bool
	styles  styles
	resolve func(string) string
}

func newPrinter(w io.Writer, o *outputOptions, resolve func(string) string) *printer {
	return &printer{
		w:       w,
		vi:      o.vi,
		styles:  newStyles(o.color),
		resolve: resolve,
	}
}

// results prints rows either grouped by file:
//
//	Result for: input
//
//	File: path
//	Line: 12 -> text
//
// or, in vi mode, as path:line:col:text.
func (p *printer) results(input string, rows []query.Result) {
	if p.vi {
		for _, r := range rows {
			fmt.Fprintf(p.w, "%s:%d:", p.resolve(r.Path), r.Line)
			if r.Column > 0 {
				fmt.Fprintf(p.w, "%d:", r.Column)
			}
			fmt.Fprintln(p.w, r.Text)
		}
		return
	}

	fmt.Fprintf(p.w, "Result for: %s\n", p.styles.result.Render(input))
	prev := ""
	for i, r := range rows {
		if i == 0 || r.Path != prev {
			fmt.Fprintf(p.w, "\nFile: %s\n", p.styles.file.Render(p.resolve(r.Path)))
		}
		fmt.Fprintf(p.w, "Line: %s -> %s\n", p.styles.line.Render(strconv.Itoa(r.Line)), r.Text)
		prev = r.Path
	}
}

// files prints matching paths.
func (p *printer) files(input string, paths []string) {
	if p.vi {
		for _, path := range paths {
			fmt.Fprintln(p.w, p.resolve(path))
		}
		return
	}

	fmt.Fprintf(p.w, "Result for: %s\n\n", p.styles.result.Render(input))
	for _, path := range paths {
		fmt.Fprintf(p.w, "File: %s\n", p.styles.file.Render(p.resolve(path)))
	}
}

// emit renders through fn into memory, then writes the result to out or
// pipes it to the pager. Rows are always complete before a pager starts.
func emit(ctx context.Context, cmd *cobra.Command, o *outputOptions, fn func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	args := o.pagerArgs(out)
	if args == nil {
		fn(out)
		return nil
	}

	var buf bytes.Buffer
	fn(&buf)

	pager := exec.CommandContext(ctx, args[0], args[1:]...)
	pager.Stdin = &buf
	pager.Stdout = out
	pager.Stderr = cmd.ErrOrStderr()
	if err := pager.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			_, err = out.Write(buf.Bytes())
			return err
		}
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
