package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	codepadhttp "github.com/fyrsmithlabs/codepad/internal/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve projects, shell sessions and previews over HTTP until SIGINT or
SIGTERM, then shut down gracefully within server.shutdown_timeout.

Examples:
  codepad serve
  codepad serve --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return opts.withApp(cmd, func(_ context.Context, a *app) error {
				cfg := a.cfg.Server
				if cmd.Flags().Changed("host") {
					cfg.Host = host
				}
				if cmd.Flags().Changed("port") {
					cfg.Port = port
				}
				return serve(ctx, a, &codepadhttp.Config{Host: cfg.Host, Port: cfg.Port, RateLimit: cfg.RateLimit})
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "override server.host")
	cmd.Flags().IntVar(&port, "port", 0, "override server.http_port")
	return cmd
}

// serve runs the server until ctx is cancelled.
func serve(ctx context.Context, a *app, cfg *codepadhttp.Config) error {
	srv, err := codepadhttp.NewServer(a.vfs, a.interp, a.synth, a.logger, cfg,
		codepadhttp.WithMetrics(a.metrics, prometheus.DefaultGatherer))
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	a.logger.Info(ctx, "codepad serving",
		zap.String("addr", srv.Addr()),
		zap.String("store", a.store.Type()),
		zap.Bool("tracing", a.telemetry.Enabled()),
		zap.String("health_endpoint", fmt.Sprintf("http://%s/health", srv.Addr())))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := a.telemetry.ForceFlush(shutdownCtx); err != nil {
		a.logger.Warn(shutdownCtx, "flushing traces", zap.Error(err))
	}
	a.logger.Info(shutdownCtx, "server shutdown complete")
	return <-errCh
}
