// Package constants provides centralized constant values used throughout forge.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by forge for organizing data.
const (
	// ForgeHome is the hidden directory name where forge stores all its data.
	// This directory is created in the user's home directory.
	ForgeHome = ".forge"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// LogFileName is the name of the rotated log file.
	LogFileName = "forge.log"
)

// Log rotation settings for the file logger.
const (
	// LogMaxSizeMB is the maximum size of a log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is how many rotated log files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is how long rotated log files are kept.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)

// Timeout configurations for various operations.
const (
	// DefaultRecipeTimeout is the default maximum duration for a full recipe run.
	DefaultRecipeTimeout = 30 * time.Minute

	// DefaultStepTimeout is the default maximum duration for one step attempt.
	// Steps can override this individually.
	DefaultStepTimeout = 5 * time.Minute
)

// Retry and backoff defaults for step execution.
const (
	// DefaultStepRetries is the recipe-wide default number of retries per step.
	// A step that always fails is attempted 1 + DefaultStepRetries times.
	DefaultStepRetries = 2

	// RetryBaseDelay is the backoff delay before the first retry.
	// Subsequent retries double the delay up to RetryMaxDelay.
	RetryBaseDelay = 1 * time.Second

	// RetryMaxDelay caps the exponential backoff delay.
	RetryMaxDelay = 30 * time.Second

	// RetryMinDelay is the floor applied after jitter.
	RetryMinDelay = 100 * time.Millisecond

	// RetryJitterFraction is the symmetric jitter applied to each delay (±25%).
	RetryJitterFraction = 0.25
)

// Concurrency defaults for phase execution.
const (
	// DefaultMaxParallelSteps bounds how many steps of a phase run concurrently.
	DefaultMaxParallelSteps = 10
)

// Tool registry cache defaults.
const (
	// DefaultToolCacheSize bounds the number of cached tool instances.
	// Least-recently-used entries are evicted when the cache is full.
	DefaultToolCacheSize = 50

	// DefaultToolCacheTTL is how long an idle, unreferenced tool instance
	// stays cached before the sweeper evicts it.
	DefaultToolCacheTTL = 30 * time.Minute

	// DefaultToolSweepInterval is how often the background sweeper scans
	// the cache for expired entries.
	DefaultToolSweepInterval = 10 * time.Minute
)
