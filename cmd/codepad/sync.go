package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/codepad/internal/hostsync"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		project  string
		template string
		watch    bool
		maxSize  int64
	)
	cmd := &cobra.Command{
		Use:   "sync <dir>",
		Short: "Import a host directory into a project",
		Long: `Copy every text file under dir into a project. Paths matched by
.gitignore or .codepadignore are skipped, as are .git and node_modules.

Without --project a new project named after the directory is created.
With --watch, later edits under dir are mirrored until interrupted.

Examples:
  codepad sync ./my-app
  codepad sync ./my-app --project "My App" --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return opts.withApp(cmd, func(_ context.Context, a *app) error {
				var p *vfs.Project
				if project != "" {
					p, err = a.resolveProject(ctx, project)
				} else {
					p, err = a.vfs.CreateProject(ctx, filepath.Base(root), template)
				}
				if err != nil {
					return err
				}

				s := hostsync.New(a.vfs,
					hostsync.WithLogger(a.logger),
					hostsync.WithMaxFileSize(maxSize),
					hostsync.WithDebounce(a.cfg.Editor.AutosaveWindow))

				report, err := s.Import(ctx, root, p.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d files into %q (%s)\n", len(report.Imported), p.Name, p.ID)
				for _, sk := range report.Skipped {
					fmt.Fprintf(out, "  skipped %s: %s\n", sk.Path, sk.Reason)
				}
				if !watch {
					return nil
				}

				fmt.Fprintf(out, "Watching %s, press Ctrl+C to stop\n", root)
				return s.Watch(ctx, root, p.ID)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "existing project to import into (id or name)")
	cmd.Flags().StringVarP(&template, "template", "t", vfs.DefaultTemplate, "template for a newly created project")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep mirroring changes until interrupted")
	cmd.Flags().Int64Var(&maxSize, "max-file-size", hostsync.DefaultMaxFileSize, "skip files larger than this many bytes")
	return cmd
}
