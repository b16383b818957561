package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/tui"
)

func newShellCmd(opts *rootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "shell <project>",
		Short: "Open an interactive terminal in a project",
		Long: `Open an interactive terminal in a project.

On a terminal this is a full-screen UI with history on the arrow keys.
With --plain, or when input is piped, commands are read one per line:

  printf 'ls\ncat package.json\n' | codepad shell "My App"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}

				stdin, stdinIsFile := cmd.InOrStdin().(*os.File)
				stdout, stdoutIsFile := cmd.OutOrStdout().(*os.File)
				interactive := stdinIsFile && stdoutIsFile && isTerminal(stdin) && isTerminal(stdout)

				switch {
				case interactive && !plain:
					m := tui.NewModel(ctx, a.interp, a.vfs, p.ID, p.Name)
					_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
					if errors.Is(err, tea.ErrProgramKilled) {
						return nil
					}
					return err
				case interactive:
					return rawRepl(ctx, a, p.ID, p.Name, stdin, stdout)
				default:
					r := &scanReader{sc: bufio.NewScanner(cmd.InOrStdin())}
					return repl(ctx, a, p.ID, p.Name, r, cmd.OutOrStdout(), false)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "line-oriented prompt instead of the full-screen UI")
	return cmd
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// lineReader yields one command line per call and io.EOF at the end.
type lineReader interface {
	ReadLine() (string, error)
	SetPrompt(prompt string)
}

// scanReader reads piped input. It prints no prompt.
type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) ReadLine() (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scanReader) SetPrompt(string) {}

// rawRepl runs the line prompt on a real terminal, with x/term providing
// line editing and history.
func rawRepl(ctx context.Context, a *app, projectID, title string, in, out *os.File) error {
	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set terminal raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, state) }()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, "")
	if w, h, err := term.GetSize(int(out.Fd())); err == nil {
		_ = t.SetSize(w, h)
	}
	return repl(ctx, a, projectID, title, t, t, true)
}

// repl reads lines until EOF or exit and runs each in one session.
func repl(ctx context.Context, a *app, projectID, title string, r lineReader, out io.Writer, tty bool) error {
	session := shell.NewSession()
	for {
		r.SetPrompt(fmt.Sprintf("%s:%s$ ", title, session.CurrentDirectory))
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch strings.TrimSpace(line) {
		case "exit", "quit":
			return nil
		}

		sc, err := shell.Bind(ctx, a.vfs, projectID)
		if err != nil {
			return err
		}
		res := a.interp.Execute(ctx, session, line, sc)
		if res.Kind == shell.KindClear {
			if tty {
				fmt.Fprint(out, "\x1b[H\x1b[2J")
			}
			continue
		}
		_ = printResult(out, out, res)
	}
}
