package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Standard field keys
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
	KeyRunID   = "run_id"
	KeyStage   = "stage"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds run-scoped logging fields.
type LogContext struct {
	RunID string
	Stage string // producer, consumer, coordinator
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// WithStage returns a context whose LogContext carries stage, keeping the
// run ID of any LogContext already present.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := &LogContext{Stage: stage}
	if parent := FromContext(ctx); parent != nil {
		lc.RunID = parent.RunID
	}
	return WithContext(ctx, lc)
}

// appendContextFields prepends LogContext fields so they appear first
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	ctxArgs := make([]any, 0, 4+len(args))
	if lc.RunID != "" {
		ctxArgs = append(ctxArgs, KeyRunID, lc.RunID)
	}
	if lc.Stage != "" {
		ctxArgs = append(ctxArgs, KeyStage, lc.Stage)
	}
	return append(ctxArgs, args...)
}

// tracingHandler injects the OpenTelemetry span of the record's context.
type tracingHandler struct {
	inner slog.Handler
}

func newTracingHandler(inner slog.Handler) *tracingHandler {
	return &tracingHandler{inner: inner}
}

func (th *tracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

func (th *tracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(KeyTraceID, sc.TraceID().String()),
			slog.String(KeySpanID, sc.SpanID().String()),
		)
	}
	return th.inner.Handle(ctx, record)
}

func (th *tracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tracingHandler{inner: th.inner.WithAttrs(attrs)}
}

func (th *tracingHandler) WithGroup(name string) slog.Handler {
	return &tracingHandler{inner: th.inner.WithGroup(name)}
}
