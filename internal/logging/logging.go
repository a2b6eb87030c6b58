// Package logging provides the structured, component-tagged slog wrapper
// every jjagent command uses. Records are written as JSON lines to the
// file named at Init (JJAGENT_LOG_FILE), or to stderr when no file is
// named; if the named file cannot be opened, Init fails and nothing is
// logged.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

type componentKey struct{}

// WithComponent returns a context tagging subsequent log calls with
// component, e.g. "orchestrator", "lock", "vcs".
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey{}, component)
}

func componentFrom(ctx context.Context) string {
	if c, ok := ctx.Value(componentKey{}).(string); ok {
		return c
	}
	return ""
}

var (
	logger       *slog.Logger
	closer       io.Closer
	levelGetter  func() string
	defaultLevel = new(slog.LevelVar)
)

// SetLogLevelGetter registers a function consulted on every log call to
// resolve the current minimum level. Useful when the level can change
// after Init (e.g. read from a config file later in startup).
func SetLogLevelGetter(f func() string) {
	levelGetter = f
}

func resolveLevel() slog.Level {
	if levelGetter == nil {
		return defaultLevel.Level()
	}
	switch levelGetter() {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init opens the log output for this process invocation. logFile empty
// means stderr. sessionID is attached to every record when non-empty.
func Init(ctx context.Context, logFile, sessionID string, level string) error {
	defaultLevel.Set(parseLevel(level))

	var w io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		w = f
		closer = f
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: defaultLevel})
	l := slog.New(handler)
	if sessionID != "" {
		l = l.With(slog.String("session_id", sessionID))
	}
	logger = l
	_ = ctx
	return nil
}

// Close releases the log file opened by Init, if any. Safe to call even
// if Init was never called or used stderr.
func Close() {
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if logger == nil {
		return
	}
	if level < resolveLevel() {
		return
	}
	if comp := componentFrom(ctx); comp != "" {
		attrs = append([]any{slog.String("component", comp)}, attrs...)
	}
	logger.Log(ctx, level, msg, attrs...)
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at info level.
func Info(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at error level.
func Error(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelError, msg, attrs...)
}

// LogDuration logs msg at level with a "duration_ms" attribute computed
// from since.
func LogDuration(ctx context.Context, level slog.Level, msg string, since time.Time, attrs ...any) {
	attrs = append(attrs, slog.Int64("duration_ms", time.Since(since).Milliseconds()))
	log(ctx, level, msg, attrs...)
}
