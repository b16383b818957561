// Package metrics holds the prometheus collectors shared by every codepad
// component.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds Prometheus metrics for codepad.
//
// A nil *Metrics is valid and records nothing, so components can take one as
// an optional dependency.
type Metrics struct {
	VFSOperations       *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	Projects            prometheus.Gauge

	ShellCommands *prometheus.CounterVec

	SandboxRuns     *prometheus.CounterVec
	SandboxDuration prometheus.Histogram

	PreviewSyntheses prometheus.Counter
	PreviewBytes     prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers the codepad collectors with the default registry the first
// time it is called and returns the same instance afterwards.
//
// Metrics:
//   - codepad_vfs_operations_total{op}
//   - codepad_persistence_failures_total{op}
//   - codepad_projects
//   - codepad_shell_commands_total{command,kind}
//   - codepad_sandbox_runs_total{outcome}
//   - codepad_sandbox_duration_seconds
//   - codepad_preview_syntheses_total
//   - codepad_preview_document_bytes
//   - codepad_http_requests_total{method,route,status}
//   - codepad_http_request_duration_seconds{method,route}
func New() *Metrics {
	once.Do(func() {
		global = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return global
}

// NewWithRegistry registers a fresh set of collectors on reg. Tests use it to
// avoid the process-wide registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		VFSOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codepad_vfs_operations_total",
			Help: "Total virtual file system operations by type",
		}, []string{"op"}),
		PersistenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codepad_persistence_failures_total",
			Help: "Project table loads or saves that failed; in-memory state was kept",
		}, []string{"op"}),
		Projects: f.NewGauge(prometheus.GaugeOpts{
			Name: "codepad_projects",
			Help: "Number of projects in the in-memory table",
		}),
		ShellCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codepad_shell_commands_total",
			Help: "Shell commands executed by verb and result kind",
		}, []string{"command", "kind"}),
		SandboxRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codepad_sandbox_runs_total",
			Help: "Sandbox script runs by outcome (ok, error, interrupted)",
		}, []string{"outcome"}),
		SandboxDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "codepad_sandbox_duration_seconds",
			Help:    "Wall time of sandbox script runs",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		PreviewSyntheses: f.NewCounter(prometheus.CounterOpts{
			Name: "codepad_preview_syntheses_total",
			Help: "Preview documents synthesized",
		}),
		PreviewBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "codepad_preview_document_bytes",
			Help:    "Size of synthesized preview documents",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codepad_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codepad_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) VFSOp(op string) {
	if m == nil {
		return
	}
	m.VFSOperations.WithLabelValues(op).Inc()
}

func (m *Metrics) PersistenceFailure(op string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) SetProjects(n int) {
	if m == nil {
		return
	}
	m.Projects.Set(float64(n))
}

func (m *Metrics) ShellCommand(command, kind string) {
	if m == nil {
		return
	}
	m.ShellCommands.WithLabelValues(command, kind).Inc()
}

func (m *Metrics) SandboxRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SandboxRuns.WithLabelValues(outcome).Inc()
	m.SandboxDuration.Observe(d.Seconds())
}

func (m *Metrics) PreviewSynthesized(size int) {
	if m == nil {
		return
	}
	m.PreviewSyntheses.Inc()
	m.PreviewBytes.Observe(float64(size))
}

func (m *Metrics) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
