// Package http serves projects, shell sessions and previews over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/metrics"
	"github.com/fyrsmithlabs/codepad/internal/preview"
	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// Projects is the file system the API serves. *vfs.Service implements it.
type Projects interface {
	shell.Projects
	CreateProject(ctx context.Context, name, template string) (*vfs.Project, error)
	GetAllProjects(ctx context.Context) ([]*vfs.Project, error)
	RenameProject(ctx context.Context, id, name string) error
	ReadFile(ctx context.Context, id, path string) (string, error)
	SaveFile(ctx context.Context, id, path, content string) error
	DeleteProject(ctx context.Context, id string) error
	GetInstalledPackages(ctx context.Context, id string) ([]vfs.Package, error)
}

// Server provides HTTP endpoints for codepad.
type Server struct {
	echo        *echo.Echo
	projects    Projects
	interp      *shell.Interpreter
	synthesizer *preview.Synthesizer
	sessions    *sessionRegistry
	logger      *logging.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	config      *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables limiting.
	RateLimit float64
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves reg at /metrics.
func WithMetrics(m *metrics.Metrics, reg prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		if reg != nil {
			s.gatherer = reg
		}
	}
}

// NewServer creates a new HTTP server.
func NewServer(projects Projects, interp *shell.Interpreter, synth *preview.Synthesizer, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if projects == nil {
		return nil, fmt.Errorf("projects cannot be nil")
	}
	if interp == nil || synth == nil {
		return nil, fmt.Errorf("interpreter and synthesizer are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		projects:    projects,
		interp:      interp,
		synthesizer: synth,
		sessions:    newSessionRegistry(),
		logger:      logger.Named("http"),
		gatherer:    prometheus.DefaultGatherer,
		config:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.observe())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/projects", s.handleListProjects)
	v1.POST("/projects", s.handleCreateProject)
	v1.GET("/projects/:id", s.handleGetProject)
	v1.PATCH("/projects/:id", s.handleRenameProject)
	v1.DELETE("/projects/:id", s.handleDeleteProject)

	v1.GET("/projects/:id/files/*", s.handleReadFile)
	v1.PUT("/projects/:id/files/*", s.handleSaveFile)
	v1.DELETE("/projects/:id/files/*", s.handleDeleteFile)

	v1.GET("/projects/:id/packages", s.handleListPackages)
	v1.POST("/projects/:id/packages", s.handleInstallPackage)

	v1.GET("/projects/:id/preview", s.handlePreview)

	v1.POST("/projects/:id/sessions", s.handleOpenSession)
	v1.POST("/sessions/:sid/exec", s.handleExec)
	v1.DELETE("/sessions/:sid", s.handleCloseSession)
}

// ServeHTTP lets the server be mounted or driven directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Addr is the address Start listens on.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server. It returns nil after a clean Shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
