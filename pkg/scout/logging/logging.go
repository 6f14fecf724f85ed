// Package logging provides component loggers with file rotation for scout.
//
// Basic usage:
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("scanner")
//	logger.Info("scan started", "root", "/home/user/project")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the string representation of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel mirrors logs at this level and above to stderr.
	// Empty disables console output.
	ConsoleLevel string

	// Console replaces stderr as the console destination. Used by tests.
	Console io.Writer
}

// Logger wraps charmbracelet/log with a component name and an optional
// console mirror.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.file.Debug(msg, args...)
	if l.console != nil {
		l.console.Debug(msg, args...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.file.Info(msg, args...)
	if l.console != nil {
		l.console.Info(msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.file.Warn(msg, args...)
	if l.console != nil {
		l.console.Warn(msg, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.file.Error(msg, args...)
	if l.console != nil {
		l.console.Error(msg, args...)
	}
}

// Component returns the component name the logger was created for.
func (l *Logger) Component() string {
	return l.component
}

// With returns a new logger with additional key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	out := &Logger{
		file:      l.file.With(args...),
		component: l.component,
	}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	loggers     map[string]*Logger

	console      io.Writer
	consoleLevel Level
}

var global = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
}

// Init initializes the logging system. Loggers obtained before Init write
// to io.Discard and are rebuilt in place once Init succeeds.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.initialized && global.writer != nil {
		if err := global.writer.Close(); err != nil {
			return fmt.Errorf("closing existing writer: %w", err)
		}
		global.writer = nil
	}
	global.components = make(map[string]Level)

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	global.level = level

	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		global.components[comp] = parsed
	}

	global.console = nil
	if cfg.ConsoleLevel != "" {
		consoleLevel, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		global.consoleLevel = consoleLevel
		global.console = cfg.Console
		if global.console == nil {
			global.console = os.Stderr
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}

	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}
	global.writer = writer
	global.initialized = true

	for component := range global.loggers {
		rebuild(global.loggers[component])
	}

	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *Logger {
	global.mu.RLock()
	if logger, ok := global.loggers[component]; ok {
		global.mu.RUnlock()
		return logger
	}
	global.mu.RUnlock()

	global.mu.Lock()
	defer global.mu.Unlock()

	if logger, ok := global.loggers[component]; ok {
		return logger
	}

	logger := &Logger{component: component}
	rebuild(logger)
	global.loggers[component] = logger
	return logger
}

// rebuild points an existing logger at the current outputs so that
// package-level loggers created before Init start writing after it.
// Must be called with global.mu held.
func rebuild(l *Logger) {
	level := global.level
	if compLevel, ok := global.components[l.component]; ok {
		level = compLevel
	}

	if !global.initialized {
		l.file = log.NewWithOptions(io.Discard, log.Options{
			Level:  level.charm(),
			Prefix: l.component,
		})
		l.console = nil
		return
	}

	l.file = log.NewWithOptions(global.writer, log.Options{
		Level:           level.charm(),
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          l.component,
	})

	l.console = nil
	if global.console != nil {
		consoleLevel := global.consoleLevel
		if level > consoleLevel {
			consoleLevel = level
		}
		l.console = log.NewWithOptions(global.console, log.Options{
			Level:           consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          l.component,
		})
	}
}

// Close flushes and closes the log file. Loggers revert to discarding.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}

	var err error
	if global.writer != nil {
		if cerr := global.writer.Close(); cerr != nil {
			err = fmt.Errorf("closing log writer: %w", cerr)
		}
		global.writer = nil
	}

	global.initialized = false
	global.console = nil
	for _, l := range global.loggers {
		rebuild(l)
	}

	return err
}

// DefaultLogPath returns $XDG_STATE_HOME/scout/scout.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "scout", "scout.log")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
