// Package logging holds the process-wide zerolog logger.
//
// Call Init once from main; until then a console logger at info level is used.
// Per-service loggers come from ForService and carry a "service" field so that
// every line about a service can be filtered by it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error
	Level string
	// Format is console or json
	Format string
	// File, when set, receives a JSON copy of every line
	File string
	// Output defaults to os.Stderr
	Output io.Writer
}

var (
	log     zerolog.Logger
	mu      sync.RWMutex
	logFile *os.File
)

func init() {
	initLogger(Config{Level: "info", Format: "console", Output: os.Stderr}, nil)
}

// Init configures the global logger. It is safe to call more than once.
func Init(cfg Config) error {
	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		file = f
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	initLogger(cfg, file)
	return nil
}

// initLogger must be called with mu held
func initLogger(cfg Config, file io.Writer) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = cfg.Output
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}
	if file != nil {
		out = zerolog.MultiLevelWriter(out, file)
	}
	log = zerolog.New(out).With().Timestamp().Logger()
}

// Close releases the log file, if any
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger; tests use it to capture output
//
//nolint:gocritic // zerolog.Logger is passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// ForService returns a child logger tagged with the service name
func ForService(name string) zerolog.Logger {
	return Logger().With().Str("service", name).Logger()
}

// Component returns a child logger tagged with a component name
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Debug starts a new message at debug level on the global logger
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info starts a new message at info level on the global logger
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn starts a new message at warn level on the global logger
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error starts a new message at error level on the global logger
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

// NewTestLogger creates a JSON logger writing to w
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
