// Package logger builds the process slog.Logger: JSON to stderr, fanned out to the
// OpenTelemetry log bridge when a LoggerProvider is configured.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

// New returns a JSON logger writing to w at level. When provider is non-nil, records are also
// emitted through the otelslog bridge under name.
func New(w io.Writer, level string, name string, provider otellog.LoggerProvider) *slog.Logger {
	lvl := ParseLevel(level)
	var h slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	if provider != nil {
		h = &MultiHandler{handlers: []slog.Handler{
			h,
			&levelGate{level: lvl, next: otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider))},
		}}
	}
	return slog.New(h)
}

// ParseLevel maps debug/info/warn/error to a slog.Level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler sends each record to every enabled handler.
type MultiHandler struct {
	handlers []slog.Handler
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			_ = handler.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: next}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: next}
}

// levelGate applies the configured minimum level to a handler that has none of its own.
type levelGate struct {
	level slog.Level
	next  slog.Handler
}

func (g *levelGate) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= g.level && g.next.Enabled(ctx, level)
}

func (g *levelGate) Handle(ctx context.Context, r slog.Record) error {
	return g.next.Handle(ctx, r)
}

func (g *levelGate) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelGate{level: g.level, next: g.next.WithAttrs(attrs)}
}

func (g *levelGate) WithGroup(name string) slog.Handler {
	return &levelGate{level: g.level, next: g.next.WithGroup(name)}
}
