package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

func newProjectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage projects",
		Long: `Create, inspect and modify projects in the file system.

Projects are addressed by id or by name (case-insensitive).`,
	}
	cmd.AddCommand(
		newProjectCreateCmd(opts),
		newProjectListCmd(opts),
		newProjectShowCmd(opts),
		newProjectRenameCmd(opts),
		newProjectDeleteCmd(opts),
		newProjectInstallCmd(opts),
		newProjectCatCmd(opts),
		newProjectWriteCmd(opts),
	)
	return cmd
}

func newProjectCreateCmd(opts *rootOptions) *cobra.Command {
	var template string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project from a template",
		Long: `Create a project from a built-in template.

Examples:
  # Empty project
  codepad project create scratch

  # React starter
  codepad project create "My App" --template react`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.vfs.CreateProject(ctx, args[0], template)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (%s) with %d files\n", p.Name, p.ID, len(p.Files))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", vfs.DefaultTemplate, "template: "+strings.Join(vfs.BuiltinTemplates(), ", "))
	return cmd
}

func newProjectListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects, most recently modified first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				projects, err := a.vfs.GetAllProjects(ctx)
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTEMPLATE\tFILES\tMODIFIED")
				for _, p := range projects {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
						p.ID, p.Name, p.Template, len(p.Files), p.LastModified.Local().Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	}
}

// projectView is the -o json|yaml rendering of a project. File contents are
// left out.
type projectView struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Template     string     `json:"template" yaml:"template"`
	Dependencies []string   `json:"dependencies" yaml:"dependencies"`
	Files        []fileView `json:"files" yaml:"files"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	LastModified time.Time  `json:"last_modified" yaml:"last_modified"`
}

type fileView struct {
	Path     string `json:"path" yaml:"path"`
	Language string `json:"language" yaml:"language"`
	Bytes    int    `json:"bytes" yaml:"bytes"`
}

func viewOf(p *vfs.Project) projectView {
	v := projectView{
		ID:           p.ID,
		Name:         p.Name,
		Template:     p.Template,
		Dependencies: p.Dependencies,
		CreatedAt:    p.CreatedAt,
		LastModified: p.LastModified,
	}
	for _, fp := range p.Paths() {
		f := p.Files[fp]
		v.Files = append(v.Files, fileView{Path: fp, Language: f.Language, Bytes: len(f.Content)})
	}
	return v
}

func writeProject(w io.Writer, p *vfs.Project, format string) error {
	v := viewOf(p)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		fmt.Fprintf(w, "Name:         %s\n", v.Name)
		fmt.Fprintf(w, "ID:           %s\n", v.ID)
		fmt.Fprintf(w, "Template:     %s\n", v.Template)
		fmt.Fprintf(w, "Dependencies: %s\n", strings.Join(v.Dependencies, ", "))
		fmt.Fprintf(w, "Modified:     %s\n", v.LastModified.Local().Format(time.DateTime))
		fmt.Fprintf(w, "Files:\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, f := range v.Files {
			fmt.Fprintf(tw, "  %s\t%s\t%d\n", f.Path, f.Language, f.Bytes)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func newProjectShowCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <project>",
		Short: "Show a project's metadata and file list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				return writeProject(cmd.OutOrStdout(), p, output)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func newProjectRenameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project> <new-name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.vfs.RenameProject(ctx, p.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %q to %q\n", p.Name, args[1])
				return nil
			})
		},
	}
}

func newProjectDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <project>",
		Aliases: []string{"rm"},
		Short:   "Delete a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.vfs.DeleteProject(ctx, p.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", p.Name)
				return nil
			})
		},
	}
}

func newProjectInstallCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install <project> [package[@version]...]",
		Short: "Record dependencies in the project manifest, or list them",
		Long: `Record dependencies in package.json. Nothing is downloaded.

Examples:
  codepad project install "My App" lodash@^4.17.21 left-pad
  codepad project install "My App"   # list`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				for _, spec := range args[1:] {
					name, version := shell.SplitPackageSpec(spec)
					if err := a.vfs.InstallPackage(ctx, p.ID, name, version); err != nil {
						return err
					}
				}
				pkgs, err := a.vfs.GetInstalledPackages(ctx, p.ID)
				if err != nil {
					return err
				}
				for _, pkg := range pkgs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\n", pkg.Name, pkg.Version)
				}
				return nil
			})
		},
	}
}

func newProjectCatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <project> <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				content, err := a.vfs.ReadFile(ctx, p.ID, args[1])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), content)
				return err
			})
		},
	}
}

func newProjectWriteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write <project> <path>",
		Short: "Save stdin as a file",
		Long: `Save stdin as a file, creating or overwriting it.

Examples:
  cat App.js | codepad project write "My App" src/App.js`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read from stdin: %w", err)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.resolveProject(ctx, args[0])
				if err != nil {
					return err
				}
				return a.vfs.SaveFile(ctx, p.ID, args[1], string(content))
			})
		},
	}
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List built-in project templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, name := range vfs.BuiltinTemplates() {
				t, _ := vfs.BuiltinTemplate(name)
				fmt.Fprintf(w, "%s\t%d files\t%s\n", name, len(t.Files), t.Description)
			}
			return w.Flush()
		},
	}
}
