// Codepad is a local host for codepad projects: a virtual file system, a
// simulated shell with a script sandbox, and single-document previews.
//
// Usage:
//
//	# Create a project and open a terminal in it
//	codepad project create "My App" --template react
//	codepad shell "My App"
//
//	# Serve the HTTP API
//	codepad serve
//
//	# Configure via environment
//	CODEPAD_STORE_BACKEND=memory CODEPAD_SERVER_HTTP_PORT=9000 codepad serve
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/codepad/internal/config"
	"github.com/fyrsmithlabs/codepad/internal/logging"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions carries what PersistentPreRunE resolved to every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "codepad",
		Short: "Mini development environment: projects, shell, sandbox and preview",
		Long: `codepad hosts code projects locally. Projects live in a virtual file
system persisted to the configured store; each one can be driven through a
simulated shell, run in a JavaScript sandbox, and rendered as a standalone
HTML preview.

Configuration is read from ~/.config/codepad/config.yaml and CODEPAD_*
environment variables. A .env file in the working directory is loaded first.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/codepad/config.yaml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newProjectCmd(opts),
		newTemplatesCmd(),
		newExecCmd(opts),
		newRunCmd(opts),
		newShellCmd(opts),
		newPreviewCmd(opts),
		newSyncCmd(opts),
	)
	return root
}

// setup loads the dotenv file, the configuration and the logger.
func (o *rootOptions) setup() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", o.envFile, err)
		}
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	o.cfg = cfg

	lc, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.logger, err = logging.NewLogger(lc, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
