// Package config provides configuration loading and validation for refdelta.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidTimeout       = errors.New("timeout must be positive")
	ErrInvalidFailurePolicy = errors.New("unknown failure policy")
	ErrInvalidPathLength    = errors.New("max path length must be positive")
	ErrInvalidSegments      = errors.New("flatten segments must be positive")
	ErrInvalidInterval      = errors.New("checkpoint interval must be positive")
	ErrMissingURLPattern    = errors.New("clone url pattern must contain {full_name}")
)

// Failure policy names accepted by pipeline.failure_policy.
const (
	PolicyDegrade = "degrade"
	PolicyStrict  = "strict"
)

// Dataset labels.
const (
	DatasetAgentic = "Agentic"
	DatasetHuman   = "Human"
)

// Config holds all configuration for refdelta.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PathsConfig holds directory layout settings.
type PathsConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	TablesDir      string `mapstructure:"tables_dir"`
	LogsDir        string `mapstructure:"logs_dir"`
	TempDir        string `mapstructure:"temp_dir"`
	AgenticRepoDir string `mapstructure:"agentic_repo_dir"`
	HumanRepoDir   string `mapstructure:"human_repo_dir"`
}

// ToolsConfig holds external tool locations.
type ToolsConfig struct {
	Git          string `mapstructure:"git"`
	Java         string `mapstructure:"java"`
	AnalyzerJar  string `mapstructure:"analyzer_jar"`
	AnalyzerHeap string `mapstructure:"analyzer_heap"`
	DetectorHome string `mapstructure:"detector_home"`
	DetectorMain string `mapstructure:"detector_main"`
}

// TimeoutsConfig bounds every external process.
type TimeoutsConfig struct {
	Git      time.Duration `mapstructure:"git"`
	Clone    time.Duration `mapstructure:"clone"`
	Analyzer time.Duration `mapstructure:"analyzer"`
	Detector time.Duration `mapstructure:"detector"`
}

// PipelineConfig holds delta pipeline and reconciler settings.
type PipelineConfig struct {
	Language           string   `mapstructure:"language"`
	Extensions         []string `mapstructure:"extensions"`
	FailurePolicy      string   `mapstructure:"failure_policy"`
	MaxPathLength      int      `mapstructure:"max_path_length"`
	FlattenSegments    int      `mapstructure:"flatten_segments"`
	DedupByRepo        bool     `mapstructure:"dedup_by_repo"`
	Checkpoint         bool     `mapstructure:"checkpoint"`
	CheckpointInterval int      `mapstructure:"checkpoint_interval"`
	CheckpointDir      string   `mapstructure:"checkpoint_dir"`
}

// RemoteConfig describes where repositories are cloned from.
type RemoteConfig struct {
	CloneURLPattern string `mapstructure:"clone_url_pattern"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus settings.
type TelemetryConfig struct {
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string  `mapstructure:"otlp_headers"`
	OTLPInsecure   bool    `mapstructure:"otlp_insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	PrometheusAddr string  `mapstructure:"prometheus_addr"`
	Environment    string  `mapstructure:"environment"`
}

// RepoRoot returns the local clone root for a dataset label.
func (c *Config) RepoRoot(dataset string) string {
	if strings.EqualFold(dataset, DatasetHuman) {
		return c.Paths.HumanRepoDir
	}

	return c.Paths.AgenticRepoDir
}

// CloneURL expands the remote pattern for a repository full name.
func (c *Config) CloneURL(fullName string) string {
	return strings.ReplaceAll(c.Remote.CloneURLPattern, "{full_name}", fullName)
}

// TablePath joins name onto the tables directory.
func (c *Config) TablePath(name string) string {
	return filepath.Join(c.Paths.TablesDir, name)
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("refdelta")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/refdelta")
	}

	viperCfg.SetEnvPrefix("REFDELTA")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	applyFallbacks(&config)

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("paths.data_dir", DefaultDataDir)
	viperCfg.SetDefault("paths.tables_dir", DefaultTablesDir)
	viperCfg.SetDefault("paths.logs_dir", DefaultLogsDir)
	viperCfg.SetDefault("paths.temp_dir", DefaultTempDir)
	viperCfg.SetDefault("paths.agentic_repo_dir", DefaultAgenticRepoDir)
	viperCfg.SetDefault("paths.human_repo_dir", DefaultHumanRepoDir)

	viperCfg.SetDefault("tools.git", DefaultGitBinary)
	viperCfg.SetDefault("tools.java", DefaultJavaBinary)
	viperCfg.SetDefault("tools.analyzer_jar", DefaultAnalyzerJar)
	viperCfg.SetDefault("tools.analyzer_heap", DefaultAnalyzerHeap)
	viperCfg.SetDefault("tools.detector_home", DefaultDetectorHome)
	viperCfg.SetDefault("tools.detector_main", DefaultDetectorMain)

	viperCfg.SetDefault("timeouts.git", DefaultGitTimeout.String())
	viperCfg.SetDefault("timeouts.clone", DefaultCloneTimeout.String())
	viperCfg.SetDefault("timeouts.analyzer", DefaultAnalyzerTimeout.String())
	viperCfg.SetDefault("timeouts.detector", DefaultDetectorTimeout.String())

	viperCfg.SetDefault("pipeline.language", DefaultLanguage)
	viperCfg.SetDefault("pipeline.extensions", []string{})
	viperCfg.SetDefault("pipeline.failure_policy", DefaultFailurePolicy)
	viperCfg.SetDefault("pipeline.max_path_length", DefaultMaxPathLength)
	viperCfg.SetDefault("pipeline.flatten_segments", DefaultFlattenSegments)
	viperCfg.SetDefault("pipeline.dedup_by_repo", DefaultDedupByRepo)
	viperCfg.SetDefault("pipeline.checkpoint", DefaultCheckpointEnabled)
	viperCfg.SetDefault("pipeline.checkpoint_interval", DefaultCheckpointInterval)
	viperCfg.SetDefault("pipeline.checkpoint_dir", "")

	viperCfg.SetDefault("remote.clone_url_pattern", DefaultCloneURLPattern)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)
	viperCfg.SetDefault("logging.file", "")

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 1.0)
	viperCfg.SetDefault("telemetry.prometheus_addr", "")
	viperCfg.SetDefault("telemetry.environment", "")
}

// applyFallbacks fills settings whose defaults depend on other settings.
func applyFallbacks(config *Config) {
	if strings.TrimSpace(config.Pipeline.Language) == "" && len(config.Pipeline.Extensions) == 0 {
		config.Pipeline.Extensions = slices.Clone(DefaultExtensions)
	}
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	timeouts := map[string]time.Duration{
		"git":      config.Timeouts.Git,
		"clone":    config.Timeouts.Clone,
		"analyzer": config.Timeouts.Analyzer,
		"detector": config.Timeouts.Detector,
	}

	for name, value := range timeouts {
		if value <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidTimeout, name, value)
		}
	}

	switch config.Pipeline.FailurePolicy {
	case PolicyDegrade, PolicyStrict:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFailurePolicy, config.Pipeline.FailurePolicy)
	}

	if config.Pipeline.MaxPathLength <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPathLength, config.Pipeline.MaxPathLength)
	}

	if config.Pipeline.FlattenSegments <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSegments, config.Pipeline.FlattenSegments)
	}

	if config.Pipeline.Checkpoint && config.Pipeline.CheckpointInterval <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, config.Pipeline.CheckpointInterval)
	}

	if !strings.Contains(config.Remote.CloneURLPattern, "{full_name}") {
		return fmt.Errorf("%w: %q", ErrMissingURLPattern, config.Remote.CloneURLPattern)
	}

	return nil
}
