package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a text slog.Logger writing to w.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	return slog.New(handler)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// CronLogger routes robfig/cron internals through slog.
type CronLogger struct {
	logger *slog.Logger
}

var _ cron.Logger = CronLogger{}

// NewCronLogger wraps logger for cron.WithLogger and job wrappers.
func NewCronLogger(logger *slog.Logger) CronLogger {
	return CronLogger{logger: logger}
}

// Info logs routine scheduler messages at debug level; they fire on every tick.
func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error logs scheduler failures such as recovered panics.
func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
