package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
	attrRunID   = "run_id"
)

// TracingHandler is an [slog.Handler] that adds the active span's trace_id and
// span_id to each record. Service, mode, env and run attributes are attached
// once at construction so they stay at the top level under WithGroup.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner with trace context and run metadata.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode, runID string) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	if runID != "" {
		attrs = append(attrs, slog.String(attrRunID, runID))
	}

	return &TracingHandler{
		inner: inner.WithAttrs(attrs),
	}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds trace context attributes from the span context, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a new TracingHandler with additional attributes.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a new TracingHandler with a group prefix.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

// fanoutHandler writes each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (fh *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range fh.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (fh *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range fh.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}

		err := h.Handle(ctx, record.Clone())
		if err != nil {
			return err
		}
	}

	return nil
}

func (fh *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(fh.handlers))
	for i, h := range fh.handlers {
		next[i] = h.WithAttrs(attrs)
	}

	return &fanoutHandler{handlers: next}
}

func (fh *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(fh.handlers))
	for i, h := range fh.handlers {
		next[i] = h.WithGroup(name)
	}

	return &fanoutHandler{handlers: next}
}
