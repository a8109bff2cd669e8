package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vidtube/backend"

// Span pairs an OpenTelemetry span with the structured logger enriched for it.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	span   trace.Span
}

// StartSpan opens a span on the globally registered tracer provider and derives a
// logger tagged with its identifiers. Without a configured exporter the provider is
// a no-op and identifiers are generated locally so log lines still correlate.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, otelSpan := otel.Tracer(tracerName).Start(ctx, name)
	sc := otelSpan.SpanContext()

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	if traceID == "" {
		traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if traceID != TraceIDFromContext(ctx) {
		ctx = withString(ctx, traceIDKey, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	parentSpanID := SpanIDFromContext(ctx)
	spanID := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	if sc.HasSpanID() {
		spanID = sc.SpanID().String()
	}

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = withString(ctx, spanIDKey, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now(), span: otelSpan}
}

// RecordError marks the span as failed.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.span.RecordError(err)
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.span.End()
	s.logger.Debug("span completed", slog.Duration("duration", time.Since(s.start)))
}
