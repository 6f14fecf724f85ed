// Package config provides configuration management for scout.
package config

import "time"

// Default configuration values.
const (
	DefaultMaxFileSizeMB          = 10
	DefaultMaxDirectoryDepth      = 20
	DefaultEmergencyStopFileCount = 100000
	DefaultScanBatchSize          = 100
	DefaultMaxConcurrentWorkers   = 4

	DefaultMemoryLimitMB          = 1024
	DefaultEmergencyMemoryLimitMB = 2048
	DefaultCPUUsageLimit          = 50.0
	DefaultAutoPauseOnHighLoad    = true

	DefaultSampleInterval  = 5 * time.Second
	DefaultHistorySize     = 1000
	DefaultAdjustInterval  = 30 * time.Second
	DefaultPauseTimeout    = 60 * time.Second
	DefaultDebounceWindow  = 2 * time.Second
	DefaultPollInterval    = time.Second
	DefaultBufferWarnLimit = 1000

	// MinAdjustInterval is the shortest allowed time between worker pool
	// resizes.
	MinAdjustInterval = 30 * time.Second

	DefaultStoreBackend = "badger"

	// ProjectConfigName is the per-project override file looked up in the scan root.
	ProjectConfigName = ".scout.yaml"
)

// DefaultIncludePatterns selects source, config, docs and markup files.
var DefaultIncludePatterns = []string{
	"**/*.{js,ts,jsx,tsx}",
	"**/*.{py,java,cpp,c,h,cs,go}",
	"**/*.{css,scss,less,sass}",
	"**/*.{json,yaml,yml,toml,env}",
	"**/*.{md,rst,txt}",
	"**/*.{html,xml}",
	"**/*.{sql,graphql}",
}

// DefaultExcludePatterns prunes dependency, build and VCS directories.
var DefaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/build/**",
	"**/dist/**",
	"**/.git/**",
	"**/coverage/**",
	"**/__pycache__/**",
	"**/*.min.js",
	"**/*.bundle.js",
	"**/venv/**",
	"**/.venv/**",
}
