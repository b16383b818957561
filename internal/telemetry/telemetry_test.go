package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/codepad/internal/config"
	"github.com/fyrsmithlabs/codepad/internal/filestore"
	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

func enabledConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		Protocol:    config.ProtocolGRPC,
		SampleRate:  1,
		ServiceName: "codepad-test",
	}
}

// newRecording installs a provider backed by an in-memory exporter and
// restores the previous global provider afterwards.
func newRecording(t *testing.T, opts ...Option) (*Telemetry, *tracetest.InMemoryExporter) {
	t.Helper()
	prev := otel.GetTracerProvider()
	exp := tracetest.NewInMemoryExporter()
	tel, err := New(context.Background(), enabledConfig(), append(opts, WithExporter(exp))...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tel.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return tel, exp
}

func spanNames(exp *tracetest.InMemoryExporter) []string {
	var names []string
	for _, s := range exp.GetSpans() {
		names = append(names, s.Name)
	}
	return names
}

func TestNew_Disabled(t *testing.T) {
	prev := otel.GetTracerProvider()

	tel, err := New(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	assert.False(t, tel.Enabled())
	assert.Same(t, prev, otel.GetTracerProvider(), "disabled tracing must not touch the global provider")
	assert.NotNil(t, tel.Tracer("x"))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))

	var nilTel *Telemetry
	assert.False(t, nilTel.Enabled())
	assert.NoError(t, nilTel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := enabledConfig()
	cfg.Protocol = "carrier-pigeon"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = enabledConfig()
	cfg.SampleRate = 2
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_ExportsServiceSpans(t *testing.T) {
	log := logging.NewTestLogger()
	tel, exp := newRecording(t, WithLogger(log.Logger), WithServiceVersion("1.2.3"))
	require.True(t, tel.Enabled())
	log.AssertLogged(t, zapcore.InfoLevel, "tracing enabled")

	ctx := context.Background()
	svc := vfs.NewService(filestore.NewMemoryStore())
	require.NoError(t, svc.Initialize(ctx))
	p, err := svc.CreateProject(ctx, "traced", "")
	require.NoError(t, err)
	require.NoError(t, svc.SaveFile(ctx, p.ID, "main.js", "1;"))

	require.NoError(t, tel.ForceFlush(ctx))
	names := spanNames(exp)
	assert.Contains(t, names, "vfs.Initialize")
	assert.Contains(t, names, "vfs.CreateProject")
	assert.Contains(t, names, "vfs.save_file")

	spans := exp.GetSpans()
	require.NotEmpty(t, spans)
	attrs := spans[0].Resource.Attributes()
	assert.Contains(t, attrs, semconv.ServiceName("codepad-test"))
	assert.Contains(t, attrs, semconv.ServiceVersion("1.2.3"))
}

func TestTracer_LogsCarryTraceIDs(t *testing.T) {
	tel, exp := newRecording(t)

	ctx, span := tel.Tracer("test").Start(context.Background(), "op")
	fields := logging.ContextFields(ctx)
	span.End()

	keys := make(map[string]string)
	for _, f := range fields {
		keys[f.Key] = f.String
	}
	assert.Equal(t, span.SpanContext().TraceID().String(), keys["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), keys["span_id"])

	require.NoError(t, tel.ForceFlush(context.Background()))
	assert.Equal(t, []string{"op"}, spanNames(exp))
}

func TestShutdown_StopsExport(t *testing.T) {
	tel, exp := newRecording(t)
	require.NoError(t, tel.Shutdown(context.Background()))

	_, span := tel.Tracer("test").Start(context.Background(), "late")
	span.End()
	assert.Empty(t, exp.GetSpans())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{5, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestStripScheme(t *testing.T) {
	tests := map[string]string{
		"localhost:4317":          "localhost:4317",
		"http://collector:4318":   "collector:4318",
		"https://otel.example.io": "otel.example.io",
	}
	for in, want := range tests {
		if got := stripScheme(in); got != want {
			t.Errorf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
