// Package logging provides structured logging using slog.
// Logs are written as JSON to .tidybot/debug.log and rotated by size.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LogFileName is the name of the debug log file.
	LogFileName = "debug.log"
	// ConfigDir is the directory holding tidybot state.
	ConfigDir = ".tidybot"

	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 14
)

var (
	defaultLogger *slog.Logger
	rotator       *lumberjack.Logger
	mu            sync.RWMutex
)

// Options configures Init.
type Options struct {
	// Verbose lowers the level from info to debug.
	Verbose bool
	// Stderr additionally mirrors log records to standard error.
	Stderr bool
}

// Init initializes the logger rooted at dir. Logs go to <dir>/.tidybot/debug.log.
// If dir is empty, or the directory cannot be created, file logging is disabled.
func Init(dir string, opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	closeRotator()

	var w io.Writer = io.Discard
	if dir != "" {
		stateDir := filepath.Join(dir, ConfigDir)
		if err := os.MkdirAll(stateDir, 0755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(stateDir, LogFileName),
				MaxSize:    maxSizeMB,
				MaxBackups: maxBackups,
				MaxAge:     maxAgeDays,
				Compress:   true,
			}
			w = rotator
		}
	}
	if opts.Stderr {
		if w == io.Discard {
			w = os.Stderr
		} else {
			w = io.MultiWriter(w, os.Stderr)
		}
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	defaultLogger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))

	return nil
}

func closeRotator() {
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
}

// Close flushes and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		err := rotator.Close()
		rotator = nil
		return err
	}
	return nil
}

// Logger returns the default logger, or a no-op logger before Init.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if defaultLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return defaultLogger
}

// NewAnalysisID returns a fresh id used to correlate the records of one analysis.
func NewAnalysisID() string {
	return uuid.NewString()
}

// ForAnalysis returns a logger tagged with analysis_id.
func ForAnalysis(id string) *slog.Logger {
	return Logger().With("analysis_id", id)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}
