// Package config provides configuration loading for codepad.
//
// Configuration is assembled from an optional YAML file, environment
// variables prefixed with CODEPAD_, and hardcoded defaults, in that order of
// increasing precedence for the first two (defaults only fill gaps).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Supported store backends.
const (
	BackendBolt     = "bolt"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the complete codepad configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Editor  EditorConfig  `koanf:"editor"`
	Sandbox SandboxConfig `koanf:"sandbox"`
	Events  EventsConfig  `koanf:"events"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second per client
}

// StoreConfig selects and configures the durable project table backend.
type StoreConfig struct {
	Backend     string `koanf:"backend"`
	BoltPath    string `koanf:"bolt_path"`
	S3Bucket    string `koanf:"s3_bucket"`
	S3Prefix    string `koanf:"s3_prefix"`
	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey Secret `koanf:"s3_secret_key"`
	PostgresDSN Secret `koanf:"postgres_dsn"`
}

// EditorConfig holds editor-facing behavior shared by the CLI and the API.
type EditorConfig struct {
	AutosaveWindow time.Duration `koanf:"autosave_window"`
	EntryFile      string        `koanf:"entry_file"`
}

// SandboxConfig configures script execution for the shell's node command.
type SandboxConfig struct {
	// Timeout interrupts a running script. Zero disables the limit and a
	// runaway script blocks its caller.
	Timeout time.Duration `koanf:"timeout"`
}

// EventsConfig configures change-event publishing. An empty NATSURL
// disables publishing.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig holds the user-tunable subset of logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Supported OTLP trace export protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// TelemetryConfig configures OpenTelemetry trace export. Tracing is off
// unless Enabled is set.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"` // host:port of the OTLP collector
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"` // plaintext, local endpoints only
	SampleRate  float64 `koanf:"sample_rate"`
	ServiceName string  `koanf:"service_name"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.Server.RateLimit)
	}

	switch c.Store.Backend {
	case BackendBolt:
		if c.Store.BoltPath == "" {
			return errors.New("store.bolt_path is required for the bolt backend")
		}
	case BackendS3:
		if c.Store.S3Bucket == "" {
			return errors.New("store.s3_bucket is required for the s3 backend")
		}
	case BackendPostgres:
		if !c.Store.PostgresDSN.IsSet() {
			return errors.New("store.postgres_dsn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Editor.AutosaveWindow < 0 {
		return errors.New("editor.autosave_window cannot be negative")
	}
	if c.Editor.EntryFile == "" || strings.HasPrefix(c.Editor.EntryFile, "/") {
		return fmt.Errorf("editor.entry_file must be a relative project path, got %q", c.Editor.EntryFile)
	}
	if c.Sandbox.Timeout < 0 {
		return errors.New("sandbox.timeout cannot be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return c.Telemetry.Validate()
}

// Validate checks the telemetry section. A disabled section is always valid.
func (c *TelemetryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return fmt.Errorf("telemetry.protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.SampleRate)
	}
	if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		return errors.New("telemetry.insecure is only allowed for local endpoints (localhost, 127.0.0.1, ::1)")
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}

// DefaultDir returns the codepad configuration directory (~/.config/codepad).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "codepad"), nil
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
