// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// Messages are printf-formatted and emitted through a log/slog handler so that the
// json format produces structured records and the text format stays human-readable.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	format string
	slog   *slog.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
	hook          func(level, msg string)
)

// ParseLevel converts a level name into a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(level, format string, w io.Writer) {
	l := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: l.slogLevel(), AddSource: true}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &Logger{
		level:  l,
		format: format,
		slog:   slog.New(handler),
	}
}

// SetHook registers a callback that receives every emitted line. The dashboard
// uses it to show recent log output. Pass nil to remove.
func SetHook(fn func(level, msg string)) {
	mu.Lock()
	defer mu.Unlock()
	hook = fn
}

// Slog returns the underlying structured logger, or the slog default before Init.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger.slog
}

func output(l Level, name, format string, args ...interface{}) {
	mu.RLock()
	lg, h := defaultLogger, hook
	mu.RUnlock()

	if lg == nil || lg.level > l {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if h != nil {
		h(name, msg)
	}

	// skip output, this function and the exported wrapper
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), l.slogLevel(), msg, pcs[0])
	_ = lg.slog.Handler().Handle(context.Background(), r)
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, "debug", format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, "info", format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, "warn", format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, "error", format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	mu.RLock()
	lg := defaultLogger
	mu.RUnlock()
	if lg != nil {
		lg.slog.Error(msg, "fatal", true)
	} else {
		fmt.Fprintln(os.Stderr, "[FATAL] "+msg)
	}
	os.Exit(1)
}
