package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/scout/pkg/scout/filter"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// StoreConfig selects the persistence backend for file records.
type StoreConfig struct {
	// Backend is one of "badger", "sqlite" or "memory".
	Backend string `mapstructure:"backend"`

	// Path is the database location. Empty uses DefaultDBPath for the backend.
	Path string `mapstructure:"path"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// Config represents the application configuration.
type Config struct {
	IncludePatterns        []string `mapstructure:"include_patterns"`
	ExcludePatterns        []string `mapstructure:"exclude_patterns"`
	SkipVendored           bool     `mapstructure:"skip_vendored"`
	MaxFileSizeMB          int      `mapstructure:"max_file_size_mb"`
	MaxDirectoryDepth      int      `mapstructure:"max_directory_depth"`
	EmergencyStopFileCount int      `mapstructure:"emergency_stop_file_count"`
	ScanBatchSize          int      `mapstructure:"scan_batch_size"`
	MaxConcurrentWorkers   int      `mapstructure:"max_concurrent_workers"`

	PerformanceEnabled     bool          `mapstructure:"performance_enabled"`
	MemoryLimitMB          float64       `mapstructure:"memory_limit_mb"`
	EmergencyMemoryLimitMB float64       `mapstructure:"emergency_memory_limit_mb"`
	CPUUsageLimit          float64       `mapstructure:"cpu_usage_limit"`
	AutoPauseOnHighLoad    bool          `mapstructure:"auto_pause_on_high_load"`
	SampleInterval         time.Duration `mapstructure:"sample_interval"`
	HistorySize            int           `mapstructure:"history_size"`
	AdjustInterval         time.Duration `mapstructure:"adjust_interval"`
	PauseTimeout           time.Duration `mapstructure:"pause_timeout"`

	DebounceWindow  time.Duration `mapstructure:"debounce_window"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	BufferWarnLimit int           `mapstructure:"buffer_warn_limit"`

	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MaxFileSizeBytes returns the file size ceiling in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - <projectRoot>/.scout.yaml (merged over the user config)
//   - $XDG_CONFIG_HOME/scout/config.yaml
//   - $HOME/.config/scout/config.yaml
//
// Environment variables are prefixed with SCOUT_ (e.g., SCOUT_MAX_FILE_SIZE_MB).
// projectRoot may be empty.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "scout"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "scout"))

	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if projectRoot != "" {
		projectFile := filepath.Join(projectRoot, ProjectConfigName)
		if _, err := os.Stat(projectFile); err == nil {
			v.SetConfigFile(projectFile)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read project config %s: %w", projectFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.Path != "" {
		if cfg.Store.Path, err = ExpandPath(cfg.Store.Path); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("include_patterns", DefaultIncludePatterns)
	v.SetDefault("exclude_patterns", DefaultExcludePatterns)
	v.SetDefault("skip_vendored", false)
	v.SetDefault("max_file_size_mb", DefaultMaxFileSizeMB)
	v.SetDefault("max_directory_depth", DefaultMaxDirectoryDepth)
	v.SetDefault("emergency_stop_file_count", DefaultEmergencyStopFileCount)
	v.SetDefault("scan_batch_size", DefaultScanBatchSize)
	v.SetDefault("max_concurrent_workers", DefaultMaxConcurrentWorkers)

	v.SetDefault("performance_enabled", true)
	v.SetDefault("memory_limit_mb", DefaultMemoryLimitMB)
	v.SetDefault("emergency_memory_limit_mb", DefaultEmergencyMemoryLimitMB)
	v.SetDefault("cpu_usage_limit", DefaultCPUUsageLimit)
	v.SetDefault("auto_pause_on_high_load", DefaultAutoPauseOnHighLoad)
	v.SetDefault("sample_interval", DefaultSampleInterval)
	v.SetDefault("history_size", DefaultHistorySize)
	v.SetDefault("adjust_interval", DefaultAdjustInterval)
	v.SetDefault("pause_timeout", DefaultPauseTimeout)

	v.SetDefault("debounce_window", DefaultDebounceWindow)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("buffer_warn_limit", DefaultBufferWarnLimit)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"scanner": "info",
		"monitor": "info",
		"watcher": "warn",
		"perf":    "info",
		"service": "info",
	})

	v.SetDefault("store.backend", DefaultStoreBackend)
	v.SetDefault("store.path", "")
	v.SetDefault("metrics.addr", "")
}

// Validate checks the configuration for values that would make a scan
// impossible. Errors wrap ErrInvalidConfig, or filter.ErrInvalidPattern
// for patterns that do not compile.
func (c *Config) Validate() error {
	var errs []error

	positive := map[string]int{
		"max_file_size_mb":          c.MaxFileSizeMB,
		"max_directory_depth":       c.MaxDirectoryDepth,
		"emergency_stop_file_count": c.EmergencyStopFileCount,
		"scan_batch_size":           c.ScanBatchSize,
		"max_concurrent_workers":    c.MaxConcurrentWorkers,
	}
	for _, key := range []string{
		"max_file_size_mb", "max_directory_depth", "emergency_stop_file_count",
		"scan_batch_size", "max_concurrent_workers",
	} {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, key, positive[key]))
		}
	}

	if c.MemoryLimitMB <= 0 {
		errs = append(errs, fmt.Errorf("%w: memory_limit_mb must be positive", ErrInvalidConfig))
	}
	if c.EmergencyMemoryLimitMB < c.MemoryLimitMB {
		errs = append(errs, fmt.Errorf("%w: emergency_memory_limit_mb (%.0f) is below memory_limit_mb (%.0f)",
			ErrInvalidConfig, c.EmergencyMemoryLimitMB, c.MemoryLimitMB))
	}
	if c.CPUUsageLimit <= 0 || c.CPUUsageLimit > 100 {
		errs = append(errs, fmt.Errorf("%w: cpu_usage_limit must be in (0, 100], got %.1f", ErrInvalidConfig, c.CPUUsageLimit))
	}
	if c.SampleInterval <= 0 || c.DebounceWindow < 0 || c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: sample_interval and poll_interval must be positive, debounce_window non-negative", ErrInvalidConfig))
	}

	if c.AdjustInterval < MinAdjustInterval {
		errs = append(errs, fmt.Errorf("%w: adjust_interval must be at least %s, got %s",
			ErrInvalidConfig, MinAdjustInterval, c.AdjustInterval))
	}

	switch c.Store.Backend {
	case "badger", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend))
	}

	if _, err := filter.CompileSet(c.IncludePatterns); err != nil {
		errs = append(errs, fmt.Errorf("include_patterns: %w", err))
	}
	if _, err := filter.CompileSet(c.ExcludePatterns); err != nil {
		errs = append(errs, fmt.Errorf("exclude_patterns: %w", err))
	}

	return errors.Join(errs...)
}

// Summary returns a short human-readable description of the limits.
func (c *Config) Summary() string {
	return fmt.Sprintf("max file %s, depth %d, limit %s files, %d workers, memory %s/%s",
		humanize.IBytes(uint64(c.MaxFileSizeBytes())),
		c.MaxDirectoryDepth,
		humanize.Comma(int64(c.EmergencyStopFileCount)),
		c.MaxConcurrentWorkers,
		humanize.IBytes(uint64(c.MemoryLimitMB*1024*1024)),
		humanize.IBytes(uint64(c.EmergencyMemoryLimitMB*1024*1024)),
	)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "scout"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "scout"), nil
}

// WriteDefault writes a default config file if none exists and returns its path.
func WriteDefault() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	var b strings.Builder
	b.WriteString("# scout configuration\n\n# Files to consider (gitignore-style globs)\ninclude_patterns:\n")
	for _, p := range DefaultIncludePatterns {
		fmt.Fprintf(&b, "  - %q\n", p)
	}
	b.WriteString("\n# Files and directories to skip\nexclude_patterns:\n")
	for _, p := range DefaultExcludePatterns {
		fmt.Fprintf(&b, "  - %q\n", p)
	}
	fmt.Fprintf(&b, `
# Skip vendored dependency trees detected by name
skip_vendored: false

# Scan limits
max_file_size_mb: %d
max_directory_depth: %d
emergency_stop_file_count: %d
scan_batch_size: %d
max_concurrent_workers: %d

# Adaptive resource management
performance_enabled: true
memory_limit_mb: %d
emergency_memory_limit_mb: %d
cpu_usage_limit: %.0f
auto_pause_on_high_load: %t
sample_interval: %s

# Change monitoring
debounce_window: %s
poll_interval: %s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/scout/scout.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    scanner: info
    monitor: info
    watcher: warn
    perf: info

# Record store: badger, sqlite or memory
store:
  backend: %s
  # Empty means use default under $XDG_DATA_HOME/scout
  path: ""

# Prometheus endpoint for scout watch (empty disables)
metrics:
  addr: ""
`,
		DefaultMaxFileSizeMB, DefaultMaxDirectoryDepth, DefaultEmergencyStopFileCount,
		DefaultScanBatchSize, DefaultMaxConcurrentWorkers,
		DefaultMemoryLimitMB, DefaultEmergencyMemoryLimitMB, DefaultCPUUsageLimit,
		DefaultAutoPauseOnHighLoad, DefaultSampleInterval,
		DefaultDebounceWindow, DefaultPollInterval, DefaultStoreBackend)

	if err := os.WriteFile(configPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/scout/ for databases and pid files.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "scout")
}

// StateDir returns $XDG_STATE_HOME/scout/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "scout")
}

// DefaultPIDPath returns the default PID file path for scout watch.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "scout.pid")
}

// DefaultDBPath returns the default database location for a backend.
func DefaultDBPath(backend string) string {
	if backend == "sqlite" {
		return filepath.Join(DataDir(), "scout.db")
	}
	return filepath.Join(DataDir(), "index")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
