package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// errCommandFailed marks an error-kind shell result so the process exits
// non-zero without cobra printing a second message.
type errCommandFailed struct{ kind shell.Kind }

func (e errCommandFailed) Error() string { return fmt.Sprintf("command finished with %s", e.kind) }

func newExecCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <project> -- <command line>",
		Short: "Run one shell command line in a project",
		Long: `Run one line through the project shell in a fresh session.

Examples:
  codepad exec "My App" -- ls src
  codepad exec "My App" -- npm install lodash
  codepad exec "My App" -- node index.js`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args[1:], " ")
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				sc, err := shell.Bind(ctx, a.vfs, p.ID)
				if err != nil {
					return err
				}
				res := a.interp.Execute(ctx, shell.NewSession(), line, sc)
				if err := printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res); err != nil {
					cmd.SilenceErrors = true
					return err
				}
				return nil
			})
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <project> <file>",
		Short: "Run a project file in the script sandbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				fp, err := vfs.NormalizePath(args[1])
				if err != nil {
					return err
				}
				f, ok := p.Files[fp]
				if !ok {
					return fmt.Errorf("%w: %s", vfs.ErrFileNotFound, fp)
				}
				res := a.executor.Run(ctx, f.Content)
				fmt.Fprint(cmd.OutOrStdout(), res.Output)
				if res.Failed() {
					fmt.Fprintln(cmd.ErrOrStderr(), res.Err)
					cmd.SilenceErrors = true
					return errCommandFailed{kind: shell.KindError}
				}
				return nil
			})
		},
	}
}

// printResult writes a shell result, error kinds to stderr.
func printResult(stdout, stderr io.Writer, res shell.Result) error {
	if res.Kind == shell.KindClear || res.Output == "" {
		return nil
	}
	if res.Kind == shell.KindError {
		fmt.Fprintln(stderr, res.Output)
		return errCommandFailed{kind: res.Kind}
	}
	fmt.Fprintln(stdout, res.Output)
	return nil
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "preview <project>",
		Short: "Render a project as a standalone HTML document",
		Long: `Render a project as one HTML document that loads React and Babel from a
CDN and runs the project's scripts in path order, entry file last.

Examples:
  codepad preview "My App" -o preview.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				doc, err := a.synth.Synthesize(p)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = io.WriteString(cmd.OutOrStdout(), doc)
					return err
				}
				if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d bytes)\n", output, len(doc))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file instead of stdout")
	return cmd
}
