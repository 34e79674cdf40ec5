// Package logging configures the application's structured and human-readable
// loggers and hands out per-service child loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Custom level names beyond the slog defaults.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// handlerOptions returns slog handler options with custom level labels applied.
func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				levelLabel, exists := levelNames[level]
				if !exists {
					levelLabel = level.String()
				}
				a.Value = slog.StringValue(levelLabel)
			}
			return a
		},
	}
}

// Init initializes the logging system with structured and human-readable loggers.
// JSON output goes to stdout for log shipping, text output to stderr for operators.
func Init() {
	configure(os.Stdout, os.Stderr, slog.LevelDebug, slog.LevelInfo)
}

// SetLevel sets the minimum logging level for both loggers.
func SetLevel(level slog.Level) {
	configure(os.Stdout, os.Stderr, level, level)
}

// SetOutput redirects logger output, e.g. to buffers in tests.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	configure(structuredOutput, humanReadableOutput, slog.LevelDebug, slog.LevelInfo)
}

func configure(structuredOutput, humanReadableOutput io.Writer, structuredLevel, humanLevel slog.Level) {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, handlerOptions(structuredLevel)))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, handlerOptions(humanLevel)))
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// It uses the global structured logger as the base, initializing the logging
// system on first use if necessary.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		Init()
	}
	return structuredLogger.With("service", serviceName)
}

// --- Convenience functions using the default logger ---

// Debug logs a debug message using the default slog logger.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs an info message using the default slog logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs a warning message using the default slog logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs an error message using the default slog logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs a trace message using the custom Trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// FileLoggerConfig controls rotation of file-backed loggers.
type FileLoggerConfig struct {
	MaxSizeMB  int // rotate after this size
	MaxBackups int // number of rotated files to keep
	MaxAgeDays int // days to retain rotated files
}

// DefaultFileLoggerConfig returns conservative rotation defaults.
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// NewFileLogger creates a slog.Logger writing JSON logs to filePath with
// lumberjack rotation. It includes a 'service' attribute in all logs and
// returns the logger plus a close function for the underlying writer.
func NewFileLogger(filePath, serviceName string, level slog.Level, cfg FileLoggerConfig) (*slog.Logger, func() error, error) {
	// lumberjack does not create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	defaults := DefaultFileLoggerConfig()
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaults.MaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaults.MaxBackups
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = defaults.MaxAgeDays
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   false,
	}

	logger := slog.New(slog.NewJSONHandler(logWriter, handlerOptions(level))).With("service", serviceName)

	return logger, logWriter.Close, nil
}
