package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"alex_bench/shared"
)

// Logger wraps slog.Logger with benchmark specific helpers so every phase logs
// the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler, text to stderr when nil.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", shared.ConfigError, level)
}

// New builds the logger selected by format (text or json).
func New(w io.Writer, format string, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", "text":
		return NewTextLogger(w, lvl), nil
	case "json":
		return NewJSONLogger(w, lvl), nil
	}
	return nil, fmt.Errorf("%w: unknown log format %q", shared.ConfigError, format)
}

func (l *Logger) WithUser(userID int) *Logger {
	return &Logger{Logger: l.Logger.With("user", userID)}
}

// LogBulkLoad logs the end of the bulk construction.
func (l *Logger) LogBulkLoad(userID int, numKeys int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("bulk load failed",
			"user", userID,
			"keys", humanize.Comma(int64(numKeys)),
			"error", err,
		)
		return
	}
	l.Info("bulk load completed",
		"user", userID,
		"keys", humanize.Comma(int64(numKeys)),
		"elapsed", elapsed,
	)
}

// LogUserPhase logs a finished insertion batch.
func (l *Logger) LogUserPhase(userID int, inserted int, elapsed time.Duration) {
	l.Info("user insertion completed",
		"user", userID,
		"inserted", humanize.Comma(int64(inserted)),
		"elapsed_ns", elapsed.Nanoseconds(),
	)
}

func (l *Logger) LogInsertionFailure(failure *shared.InsertionFailure) {
	l.Warn("user insertion abandoned",
		"user", failure.UserID,
		"position", humanize.Comma(int64(failure.Position)),
		"error", failure.Err,
	)
}

func (l *Logger) LogSkippedUser(userID int, err error) {
	l.Warn("user skipped",
		"user", userID,
		"error", err,
	)
}

// LogSnapshot logs where a leaf snapshot was written.
func (l *Logger) LogSnapshot(path string, numLeaves int, numModelNodes int) {
	l.Info("node info written",
		"path", path,
		"leaves", humanize.Comma(int64(numLeaves)),
		"model_nodes", humanize.Comma(int64(numModelNodes)),
	)
}

// LogIndexStats dumps the index counters at debug level.
func (l *Logger) LogIndexStats(phase string, attrs ...any) {
	l.Debug("index stats", append([]any{"phase", phase}, attrs...)...)
}
