package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/config"
	"github.com/fyrsmithlabs/codepad/internal/events"
	"github.com/fyrsmithlabs/codepad/internal/filestore"
	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/metrics"
	"github.com/fyrsmithlabs/codepad/internal/preview"
	"github.com/fyrsmithlabs/codepad/internal/sandbox"
	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/telemetry"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// app holds the wired services one command runs against.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	metrics   *metrics.Metrics
	telemetry *telemetry.Telemetry
	store    filestore.Store
	natsConn *nats.Conn

	vfs      *vfs.Service
	executor *sandbox.Executor
	interp   *shell.Interpreter
	synth    *preview.Synthesizer
}

// openApp initializes all dependencies in order:
//  1. Installs the trace provider when telemetry.enabled is set
//  2. Opens the configured file store
//  3. Connects to NATS when events.nats_url is set
//  4. Loads the project table
//  5. Builds the sandbox, interpreter and preview synthesizer
func (o *rootOptions) openApp(ctx context.Context) (*app, error) {
	cfg, logger := o.cfg, o.logger
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	tel, err := telemetry.New(ctx, cfg.Telemetry,
		telemetry.WithLogger(logger), telemetry.WithServiceVersion(version))
	if err != nil {
		return nil, err
	}
	a.telemetry = tel

	store, err := filestore.New(ctx, cfg.Store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	a.store = store

	vfsOpts := []vfs.Option{vfs.WithLogger(logger), vfs.WithMetrics(a.metrics)}
	if cfg.Events.NATSURL != "" {
		nc, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.natsConn = nc
		vfsOpts = append(vfsOpts, vfs.WithNotifier(events.NewNATSNotifier(nc, cfg.Events.SubjectPrefix)))
	}

	a.vfs = vfs.NewService(store, vfsOpts...)
	if err := a.vfs.Initialize(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	sbOpts := []sandbox.Option{sandbox.WithLogger(logger), sandbox.WithMetrics(a.metrics)}
	if cfg.Sandbox.Timeout > 0 {
		sbOpts = append(sbOpts, sandbox.WithTimeout(cfg.Sandbox.Timeout))
	}
	a.executor = sandbox.NewExecutor(sbOpts...)
	a.interp = shell.NewInterpreter(a.executor, shell.WithLogger(logger), shell.WithMetrics(a.metrics))
	a.synth = preview.NewSynthesizer(preview.WithEntry(cfg.Editor.EntryFile), preview.WithMetrics(a.metrics))

	logger.Debug(ctx, "dependencies initialized",
		zap.String("store", store.Type()),
		zap.Bool("nats_connected", a.natsConn != nil),
		zap.Bool("tracing", tel.Enabled()))
	return a, nil
}

// Close releases the store and the NATS connection, then flushes spans.
func (a *app) Close() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.natsConn.Close()
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(context.Background(), "closing store", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(context.Background()); err != nil {
		a.logger.Warn(context.Background(), "flushing traces", zap.Error(err))
	}
}

// withApp opens the app for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := o.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

var errAmbiguousProject = errors.New("project name is ambiguous")

// resolveProject finds a project by id, or by a case-insensitive name match
// when no id matches.
func (a *app) resolveProject(ctx context.Context, ref string) (*vfs.Project, error) {
	if p, err := a.vfs.GetProject(ctx, ref); err == nil {
		return p, nil
	} else if !errors.Is(err, vfs.ErrProjectNotFound) {
		return nil, err
	}

	all, err := a.vfs.GetAllProjects(ctx)
	if err != nil {
		return nil, err
	}
	var found *vfs.Project
	for _, p := range all {
		if !strings.EqualFold(p.Name, ref) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q matches %s and %s", errAmbiguousProject, ref, found.ID, p.ID)
		}
		found = p
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", vfs.ErrProjectNotFound, ref)
	}
	return found, nil
}
