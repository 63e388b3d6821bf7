package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to every output whose level admits it.
type teeHandler []slog.Handler

// tee combines outputs into one handler. fallback is used when outputs is
// empty, and a single output is returned as is.
func tee(fallback slog.Handler, outputs ...slog.Handler) slog.Handler {
	switch len(outputs) {
	case 0:
		return fallback
	case 1:
		return outputs[0]
	}
	return teeHandler(outputs)
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps writing after a failed output and reports every failure.
func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
