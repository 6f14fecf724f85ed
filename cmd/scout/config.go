package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/tuner"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage scout configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/scout/config.yaml (if set)
  2. ~/.config/scout/config.yaml
  3. .scout.yaml in the project root, merged over the above

Environment variables can override config file settings using the SCOUT_ prefix:
  SCOUT_MAX_CONCURRENT_WORKERS=8
  SCOUT_MEMORY_LIMIT_MB=512
  SCOUT_STORE_BACKEND=sqlite`,
}

var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show current configuration",
	Long:  `Display the effective configuration for a project directory.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the effective configuration.
func runConfigShow(_ *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	cfg, err := loadProjectConfig(root)
	if err != nil {
		printError("%v", err)
		cfg = config.Default()
	}

	configPath, _ := userConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file:    %s\n", configPath)
	} else {
		fmt.Println("Config file:    (using defaults, no file found)")
	}
	if _, err := os.Stat(filepath.Join(root, config.ProjectConfigName)); err == nil {
		fmt.Printf("Project file:   %s\n", filepath.Join(root, config.ProjectConfigName))
	}
	fmt.Println()

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("include_patterns:          %s\n", strings.Join(cfg.IncludePatterns, ", "))
	fmt.Printf("exclude_patterns:          %s\n", strings.Join(cfg.ExcludePatterns, ", "))
	fmt.Printf("skip_vendored:             %t\n", cfg.SkipVendored)
	fmt.Printf("max_file_size_mb:          %d\n", cfg.MaxFileSizeMB)
	fmt.Printf("max_directory_depth:       %d\n", cfg.MaxDirectoryDepth)
	fmt.Printf("emergency_stop_file_count: %d\n", cfg.EmergencyStopFileCount)
	fmt.Printf("scan_batch_size:           %d\n", cfg.ScanBatchSize)
	fmt.Printf("max_concurrent_workers:    %d\n", cfg.MaxConcurrentWorkers)
	fmt.Printf("performance_enabled:       %t\n", cfg.PerformanceEnabled)
	fmt.Printf("memory_limit_mb:           %.0f\n", cfg.MemoryLimitMB)
	fmt.Printf("emergency_memory_limit_mb: %.0f\n", cfg.EmergencyMemoryLimitMB)
	fmt.Printf("cpu_usage_limit:           %.1f\n", cfg.CPUUsageLimit)
	fmt.Printf("auto_pause_on_high_load:   %t\n", cfg.AutoPauseOnHighLoad)
	fmt.Printf("sample_interval:           %s\n", cfg.SampleInterval)
	fmt.Printf("debounce_window:           %s\n", cfg.DebounceWindow)
	fmt.Printf("poll_interval:             %s\n", cfg.PollInterval)
	fmt.Printf("store.backend:             %s\n", cfg.Store.Backend)
	fmt.Printf("store.path:                %s\n", storePath(cfg))
	fmt.Printf("metrics.addr:              %s\n", cfg.Metrics.Addr)
	fmt.Printf("logging.level:             %s\n", cfg.Logging.Level)

	if getVerbose() {
		printTuned(cfg)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println()
		printError("configuration is invalid:\n%v", err)
	}
	return nil
}

// printTuned shows the limits the host would suggest next to the configured
// ones.
func printTuned(cfg *config.Config) {
	res, err := tuner.Detect()
	if err != nil {
		printVerbose("resource detection incomplete: %v", err)
	}
	tuned := tuner.CalculateWithOverrides(res, 0, 0, 0)

	fmt.Println()
	fmt.Printf("Host (%d cores, %.0f MB RAM):\n", res.CPUCores, res.TotalRAMMB())
	fmt.Println("----------------------")
	fmt.Printf("suggested workers:         %d (configured %d)\n", tuned.MaxWorkers, cfg.MaxConcurrentWorkers)
	fmt.Printf("suggested memory_limit_mb: %.0f (configured %.0f)\n", tuned.MemoryLimitMB, cfg.MemoryLimitMB)
	fmt.Printf("suggested emergency_mb:    %.0f (configured %.0f)\n", tuned.EmergencyMemoryLimitMB, cfg.EmergencyMemoryLimitMB)
}

// runConfigInit creates a default config file.
func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath, err := userConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(_ *cobra.Command, _ []string) error {
	configPath, err := userConfigPath()
	if err != nil {
		return err
	}

	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}

func userConfigPath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
