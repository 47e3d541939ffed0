// Package commands implements the refdelta subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/procexec"
	"github.com/Sumatoshi-tech/refdelta/pkg/version"
)

const (
	defaultEnvFile    = ".env"
	logFilePerm       = 0o640
	logDirPerm        = 0o750
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options holds the persistent root flags.
type Options struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool
	Quiet      bool
	LogJSON    bool
}

// Runtime is everything a command needs after startup: configuration, the
// structured logger, telemetry and the process runner.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics
	Runner  procexec.Runner
	Policy  procexec.FailurePolicy
	RunID   string

	closers []func(context.Context) error
}

// Close flushes telemetry and releases the log file and metrics listener.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error

	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i](ctx))
	}

	return errors.Join(errs...)
}

// runtimeFactory builds a Runtime. Commands take one so tests can swap in
// fakes for the external tools.
type runtimeFactory func(ctx context.Context, opts *Options, mode observability.AppMode) (*Runtime, error)

// NewRuntime loads the env file and configuration, then initializes logging,
// telemetry and the process runner.
func NewRuntime(ctx context.Context, opts *Options, mode observability.AppMode) (*Runtime, error) {
	err := loadEnv(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	policy, err := procexec.ParsePolicy(cfg.Pipeline.FailurePolicy)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Policy: policy, RunID: uuid.NewString()}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.Mode = mode
	obsCfg.RunID = rt.RunID
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.PrometheusAddr = cfg.Telemetry.PrometheusAddr
	obsCfg.LogLevel = logLevel(opts, cfg.Logging.Level)
	obsCfg.LogJSON = opts.LogJSON || cfg.Logging.JSON

	logFile, err := openLogFile(cfg)
	if err != nil {
		return nil, err
	}

	if logFile != nil {
		obsCfg.LogWriter = logFile
		rt.closers = append(rt.closers, func(context.Context) error { return logFile.Close() })
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}

	rt.closers = append(rt.closers, providers.Shutdown)
	rt.Logger = providers.Logger
	rt.Tracer = providers.Tracer

	slog.SetDefault(rt.Logger)

	rt.Metrics, err = observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}

	if providers.MetricsHandler != nil {
		stop, serveErr := serveMetrics(cfg.Telemetry.PrometheusAddr, providers.MetricsHandler, rt.Logger)
		if serveErr != nil {
			return nil, errors.Join(serveErr, rt.Close(ctx))
		}

		rt.closers = append(rt.closers, stop)
	}

	rt.Runner = procexec.NewExecRunner(rt.observeTool)

	rt.Logger.DebugContext(ctx, "runtime ready", "version", version.Version, "policy", string(policy))

	return rt, nil
}

func (rt *Runtime) observeTool(ctx context.Context, spec procexec.Spec, res procexec.Result) {
	rt.Metrics.RecordTool(ctx, spec.Tool, string(res.Outcome))
	rt.Logger.DebugContext(ctx, "tool finished",
		"tool", spec.Tool, "cmd", spec.String(), "outcome", res.Outcome, "exit_code", res.ExitCode, "duration", res.Duration)
}

// withRuntime builds a Runtime for cmd, runs fn and always closes it.
func withRuntime(
	cmd *cobra.Command, opts *Options, newRuntime runtimeFactory, mode observability.AppMode,
	fn func(ctx context.Context, rt *Runtime) error,
) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, opts, mode)
	if err != nil {
		return err
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		closeErr := rt.Close(closeCtx)
		if closeErr != nil {
			rt.Logger.Warn("shutdown incomplete", "error", closeErr)
		}
	}()

	return fn(ctx, rt)
}

// loadEnv loads an explicit env file, or ./.env when present.
func loadEnv(path string) error {
	if path != "" {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}

		return nil
	}

	err := godotenv.Load(defaultEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", defaultEnvFile, err)
	}

	return nil
}

func logLevel(opts *Options, configured string) slog.Level {
	switch {
	case opts.Verbose:
		return slog.LevelDebug
	case opts.Quiet:
		return slog.LevelError
	default:
		return observability.ParseLevel(configured)
	}
}

// openLogFile opens logging.file for appending. Relative names live under
// paths.logs_dir.
func openLogFile(cfg *config.Config) (io.WriteCloser, error) {
	name := cfg.Logging.File
	if name == "" {
		return nil, nil
	}

	if !filepath.IsAbs(name) {
		name = filepath.Join(cfg.Paths.LogsDir, name)
	}

	err := os.MkdirAll(filepath.Dir(name), logDirPerm)
	if err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return f, nil
}

// serveMetrics exposes handler on addr until the returned stop func runs.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (func(context.Context) error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", serveErr)
		}
	}()

	logger.Info("serving metrics", "addr", listener.Addr().String())

	return srv.Shutdown, nil
}
