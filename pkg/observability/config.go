// Package observability provides OpenTelemetry tracing, pipeline metrics and
// structured logging for refdelta commands.
package observability

import (
	"io"
	"log/slog"
	"strings"
)

// AppMode identifies the command family that launched the process.
type AppMode string

const (
	// ModeCLI is used by short interactive commands (reconcile, summary).
	ModeCLI AppMode = "cli"
	// ModeBatch is used by long tool-driving loops (deltas, detect).
	ModeBatch AppMode = "batch"
)

const (
	defaultServiceName        = "refdelta"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// RunID tags every log record and span of a single invocation.
	RunID string

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables export.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool
	SampleRatio  float64

	// PrometheusAddr, when set, makes Init attach a Prometheus reader so
	// pipeline metrics can be scraped during long runs.
	PrometheusAddr string

	LogLevel slog.Level
	LogJSON  bool

	// LogWriter receives log output in addition to stderr, e.g. a run log file.
	LogWriter io.Writer

	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
