package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Store.Backend = BackendMemory
	applyDefaults(cfg)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Server.RateLimit = -1 },
			wantErr: "rate limit",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Store.Backend = BackendS3 },
			wantErr: "s3_bucket",
		},
		{
			name: "s3 with bucket",
			mutate: func(c *Config) {
				c.Store.Backend = BackendS3
				c.Store.S3Bucket = "pads"
			},
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Store.Backend = BackendPostgres },
			wantErr: "postgres_dsn",
		},
		{
			name: "bolt without path",
			mutate: func(c *Config) {
				c.Store.Backend = BackendBolt
				c.Store.BoltPath = ""
			},
			wantErr: "bolt_path",
		},
		{
			name:    "absolute entry file",
			mutate:  func(c *Config) { c.Editor.EntryFile = "/src/App.js" },
			wantErr: "entry_file",
		},
		{
			name:    "negative autosave window",
			mutate:  func(c *Config) { c.Editor.AutosaveWindow = -time.Second },
			wantErr: "autosave_window",
		},
		{
			name:    "negative sandbox timeout",
			mutate:  func(c *Config) { c.Sandbox.Timeout = -time.Second },
			wantErr: "sandbox.timeout",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:   "telemetry enabled with defaults",
			mutate: func(c *Config) { c.Telemetry.Enabled = true },
		},
		{
			name: "telemetry insecure local endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Insecure = true
				c.Telemetry.Endpoint = "127.0.0.1:4318"
			},
		},
		{
			name: "telemetry insecure remote endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Insecure = true
				c.Telemetry.Endpoint = "otel.example.com:4317"
			},
			wantErr: "telemetry.insecure",
		},
		{
			name: "telemetry unknown protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "udp"
			},
			wantErr: "telemetry.protocol",
		},
		{
			name: "telemetry sample rate out of range",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SampleRate = 1.5
			},
			wantErr: "sample_rate",
		},
		{
			name: "disabled telemetry is not checked",
			mutate: func(c *Config) {
				c.Telemetry.Protocol = "udp"
				c.Telemetry.Endpoint = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")

	if got := s.String(); got != "[REDACTED]" {
		t.Errorf("String() = %q", got)
	}
	if got := fmt.Sprintf("%#v", s); strings.Contains(got, "hunter2") {
		t.Errorf("GoString leaked secret: %s", got)
	}
	b, err := json.Marshal(struct{ DSN Secret }{s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "hunter2") {
		t.Errorf("MarshalJSON leaked secret: %s", b)
	}
	if s.Value() != "hunter2" {
		t.Errorf("Value() = %q, want hunter2", s.Value())
	}
	if Secret("").IsSet() {
		t.Error("empty secret reports IsSet")
	}
}
