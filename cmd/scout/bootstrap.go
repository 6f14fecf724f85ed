package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

const defaultRotationSize = 10 * 1024 * 1024

// initializeLogging is the PersistentPreRunE hook. It creates the XDG
// directories and starts file logging from the user configuration.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if err := ensureDirectories(); err != nil {
		return err
	}

	cfg, err := config.Load("")
	if err != nil {
		printVerbose("using default configuration: %v", err)
		cfg = config.Default()
	}

	consoleLevel := ""
	if getVerbose() {
		consoleLevel = "debug"
	}
	return logging.Init(loggingConfig(cfg, consoleLevel))
}

// initTUILogging restarts logging without a console mirror so log lines
// do not tear the TUI.
func initTUILogging(cfg *config.Config) error {
	return logging.Init(loggingConfig(cfg, ""))
}

func loggingConfig(cfg *config.Config, consoleLevel string) logging.Config {
	return logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		Rotation:     parseRotationConfig(cfg.Logging.Rotation),
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	}
}

// parseRotationConfig converts the configured rotation settings. An empty
// or unparsable max_size falls back to 10MB.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize := int64(defaultRotationSize)
	if rc.MaxSize != "" {
		if parsed, err := types.ParseSize(rc.MaxSize); err == nil && parsed > 0 {
			maxSize = parsed
		}
	}
	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}

func ensureDirectories() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{configDir, config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// loadProjectConfig loads the configuration for root and applies the
// command-line overrides.
func loadProjectConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if backend := viper.GetString("store"); backend != "" {
		cfg.Store.Backend = backend
	}
	return cfg, nil
}

// resolveRoot expands and validates the directory argument.
func resolveRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", abs)
		}
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", abs)
	}
	return abs, nil
}
