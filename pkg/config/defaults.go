package config

import "time"

// Path defaults.
const (
	DefaultDataDir        = "data"
	DefaultTablesDir      = "tables"
	DefaultLogsDir        = "logs"
	DefaultTempDir        = "temp"
	DefaultAgenticRepoDir = "repos_forks"
	DefaultHumanRepoDir   = "repos_baseline"
)

// Tool defaults.
const (
	DefaultGitBinary       = "git"
	DefaultJavaBinary      = "java"
	DefaultAnalyzerJar     = "tools/DesigniteJava.jar"
	DefaultAnalyzerHeap    = "6G"
	DefaultDetectorHome    = "tools/RefactoringMiner"
	DefaultDetectorMain    = "org.refactoringminer.RefactoringMiner"
	DefaultCloneURLPattern = "https://github.com/{full_name}.git"
)

// Timeout defaults.
const (
	DefaultGitTimeout      = 300 * time.Second
	DefaultCloneTimeout    = 600 * time.Second
	DefaultAnalyzerTimeout = 900 * time.Second
	DefaultDetectorTimeout = 900 * time.Second
)

// Pipeline defaults.
const (
	DefaultLanguage           = "Java"
	DefaultFailurePolicy      = "degrade"
	DefaultMaxPathLength      = 240
	DefaultFlattenSegments    = 5
	DefaultDedupByRepo        = false
	DefaultCheckpointEnabled  = false
	DefaultCheckpointInterval = 25
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// DefaultExtensions is the source extension filter used when neither
// extensions nor a language are configured.
var DefaultExtensions = []string{".java"}
