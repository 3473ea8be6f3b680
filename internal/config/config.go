// Package config provides configuration types and defaults for lira.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReconnectConfig bounds automatic stream reconnection after a transport
// failure. Zero attempts disables reconnection entirely.
type ReconnectConfig struct {
	Attempts int `mapstructure:"attempts"`
	DelayMS  int `mapstructure:"delay_ms"`
}

// Delay returns the reconnect delay as a duration.
func (r ReconnectConfig) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

// TracingConfig configures the optional OpenTelemetry trace export.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // "file", "stdout", or "otlp"
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// ThemeConfig holds the color tokens used by the UI.
type ThemeConfig struct {
	Highlight string `mapstructure:"highlight"`
	Subtle    string `mapstructure:"subtle"`
	Error     string `mapstructure:"error"`
	Success   string `mapstructure:"success"`
}

// DropConfig configures the attachment drop directory: files appearing in
// the watched directory are auto-staged as pending attachments.
type DropConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Config holds all configuration options for lira.
type Config struct {
	// BackendURL is the literature-review backend root.
	BackendURL string `mapstructure:"backend_url"`

	// UserID selects the session event channel on the backend. All jobs
	// submitted by this client share the one subscription it identifies.
	UserID int `mapstructure:"user_id"`

	// RequestTimeoutS bounds each submission request, in seconds.
	RequestTimeoutS int `mapstructure:"request_timeout_s"`

	// TerminalDelayMS is the pause between a terminal stream event and
	// closing the subscription, letting the final block render first.
	TerminalDelayMS int `mapstructure:"terminal_delay_ms"`

	// HistoryPath is the local SQLite job-history database. Empty
	// disables history.
	HistoryPath string `mapstructure:"history_path"`

	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Drop      DropConfig      `mapstructure:"drop"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Theme     ThemeConfig     `mapstructure:"theme"`
}

// RequestTimeout returns the submission timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutS) * time.Second
}

// TerminalDelay returns the terminal-event close delay as a duration.
func (c Config) TerminalDelay() time.Duration {
	return time.Duration(c.TerminalDelayMS) * time.Millisecond
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BackendURL:      "http://localhost:8000",
		UserID:          1,
		RequestTimeoutS: 30,
		TerminalDelayMS: 1500,
		Reconnect:       ReconnectConfig{Attempts: 0, DelayMS: 2000},
		Drop:            DropConfig{Enabled: false, Dir: ""},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Theme: ThemeConfig{
			Highlight: "#73F59F",
			Subtle:    "#6B7280",
			Error:     "#F87171",
			Success:   "#34D399",
		},
	}
}

// DefaultHistoryPath returns the default location of the job-history
// database under the user config directory.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lira/history.db"
	}
	return filepath.Join(home, ".config", "lira", "history.db")
}

// defaultConfigTemplate is written verbatim so the generated file keeps its
// comments.
const defaultConfigTemplate = `# lira configuration

# Literature-review backend root URL.
backend_url: http://localhost:8000

# Session identifier. All jobs submitted by this client share the event
# subscription this id selects.
user_id: 1

# Seconds to wait for a submission response.
request_timeout_s: 30

# Milliseconds between a terminal stream event and closing the
# subscription (lets the final block render before the form re-enables).
terminal_delay_ms: 1500

# Bounded automatic reconnection after a stream transport failure.
# attempts: 0 disables reconnection.
reconnect:
  attempts: 0
  delay_ms: 2000

# Attachment drop directory: files created here are auto-staged as
# pending attachments for the next discovery submission.
drop:
  enabled: false
  dir: ""

# OpenTelemetry tracing of submissions and stream sessions.
# exporter: file | stdout | otlp
tracing:
  enabled: false
  exporter: file
  file_path: ""
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

theme:
  highlight: "#73F59F"
  subtle: "#6B7280"
  error: "#F87171"
  success: "#34D399"
`

// WriteDefaultConfig creates a commented default config file at path,
// creating parent directories as needed. Fails if the file already exists.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
