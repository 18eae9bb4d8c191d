// Package logging gives the recovery pipeline a leveled logger that takes a
// context on every call.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// hidden replaces secret values in log output.
const hidden = "[redacted]"

// Logger records pipeline progress. Engines and the client only log through
// this interface.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}

// New adapts logger. With a nil logger every record is dropped, so library
// code stays silent until the caller hands it a logger.
func New(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}
	return &leveled{base: logger}
}

// NewText writes text records to w: info and above, plus debug when verbose.
func NewText(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type leveled struct {
	base *slog.Logger
}

func (l *leveled) Debug(ctx context.Context, msg string, args ...any) {
	l.base.Log(ctx, slog.LevelDebug, msg, args...)
}

func (l *leveled) Info(ctx context.Context, msg string, args ...any) {
	l.base.Log(ctx, slog.LevelInfo, msg, args...)
}

func (l *leveled) Warn(ctx context.Context, msg string, args ...any) {
	l.base.Log(ctx, slog.LevelWarn, msg, args...)
}

func (l *leveled) Error(ctx context.Context, msg string, args ...any) {
	l.base.Log(ctx, slog.LevelError, msg, args...)
}

func (l *leveled) With(args ...any) Logger {
	return &leveled{base: l.base.With(args...)}
}

// Redacted stands in for a secret value, e.g. a private exponent.
func Redacted(key string) slog.Attr {
	return slog.String(key, hidden)
}
