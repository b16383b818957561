package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of the sample named name whose labels include
// every pair in labels. Histograms report their sample count.
func gathered(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	next:
		for _, m := range fam.GetMetric() {
			have := map[string]string{}
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestNew_Singleton(t *testing.T) {
	assert.Same(t, New(), New())
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.VFSOp("save_file")
	m.VFSOp("save_file")
	m.PersistenceFailure("save")
	m.SetProjects(3)
	m.ShellCommand("ls", "normal")
	m.SandboxRun("error", 20*time.Millisecond)
	m.PreviewSynthesized(4096)
	m.HTTPRequest("GET", "/health", "200", time.Millisecond)

	assert.Equal(t, 2.0, gathered(t, reg, "codepad_vfs_operations_total", "op", "save_file"))
	assert.Equal(t, 1.0, gathered(t, reg, "codepad_persistence_failures_total", "op", "save"))
	assert.Equal(t, 3.0, gathered(t, reg, "codepad_projects"))
	assert.Equal(t, 1.0, gathered(t, reg, "codepad_shell_commands_total", "command", "ls", "kind", "normal"))
	assert.Equal(t, 1.0, gathered(t, reg, "codepad_sandbox_runs_total", "outcome", "error"))
	assert.Equal(t, 1.0, gathered(t, reg, "codepad_sandbox_duration_seconds"))
	assert.Equal(t, 1.0, gathered(t, reg, "codepad_preview_syntheses_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "codepad_http_requests_total", "method", "GET", "route", "/health", "status", "200"))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.VFSOp("x")
		m.PersistenceFailure("x")
		m.SetProjects(1)
		m.ShellCommand("x", "normal")
		m.SandboxRun("ok", time.Second)
		m.PreviewSynthesized(1)
		m.HTTPRequest("GET", "/", "200", time.Second)
	})
}
