package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Multi returns a logger that tees every record to each of the given
// loggers. Nil loggers are ignored, and a single logger is returned as is.
// The ingest command pairs terminal output with a JSON log file this way.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	sinks := make([]slog.Handler, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			sinks = append(sinks, l.Handler())
		}
	}

	switch len(sinks) {
	case 0:
		return Nop()
	case 1:
		return slog.New(sinks[0])
	default:
		return slog.New(tee(sinks))
	}
}

// tee hands each record to every sink that accepts its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range t {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every enabled sink even after one fails; failures are
// joined.
func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, sink := range t {
		if !sink.Enabled(ctx, r.Level) {
			continue
		}
		if err := sink.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return t
	}
	return t.each(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return t.each(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (t tee) each(derive func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, sink := range t {
		out[i] = derive(sink)
	}
	return out
}
