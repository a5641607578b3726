package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// contextKey is the type used for storing the logger in a context.
type contextKey struct{}

// New creates a console logger writing to stderr. Verbose enables debug
// level; otherwise info and above.
func New(verbose bool) zerolog.Logger {
	return newWithWriter(os.Stderr, verbose)
}

// NewServer creates a logger for long-running server processes. When stderr
// is a terminal the human-readable console writer is used; otherwise plain
// JSON lines, one event per line.
func NewServer(verbose bool) zerolog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return newWithWriter(os.Stderr, verbose)
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func newWithWriter(w io.Writer, verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// WithContext returns a copy of ctx carrying the given logger.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext retrieves the logger from ctx. Falls back to a disabled
// logger so call sites never need a nil check.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}
