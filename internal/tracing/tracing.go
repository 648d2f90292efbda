// Package tracing wires up an in-process OpenTelemetry tracer exactly as
// the teacher's internal/tracing does, but swaps the teacher's OTLP/gRPC
// exporter (which ships spans to an external collector) for one that turns
// finished spans into this system's own `trace` outbound envelopes and
// `log_line` records — there is no external collector in this system's
// deployment shape, only the websocket client a span's session belongs to.
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fenced-run/agentrt/internal/interaction"
)

var tracer oteltrace.Tracer

const sessionIDKey = attribute.Key("session_id")
const interactionIDKey = attribute.Key("interaction_id")

// Config holds tracing configuration.
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// SinkRegistry maps a session ID to the interaction.Outbound a finished
// span belonging to that session renders into. otel's TracerProvider is
// process-global, but every `trace`/`log_line` envelope is scoped to one
// session's websocket, so the exporter needs this indirection to route a
// span back to the right (possibly disconnected) client.
type SinkRegistry struct {
	mu    sync.RWMutex
	sinks map[string]interaction.Outbound
}

// NewSinkRegistry creates an empty SinkRegistry.
func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{sinks: make(map[string]interaction.Outbound)}
}

// Register associates sessionID with sink, overwriting any prior sink for
// that session.
func (r *SinkRegistry) Register(sessionID string, sink interaction.Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[sessionID] = sink
}

// Unregister removes sessionID's sink, e.g. once its reconnect grace window
// expires and the session is torn down.
func (r *SinkRegistry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, sessionID)
}

func (r *SinkRegistry) get(sessionID string) (interaction.Outbound, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[sessionID]
	return s, ok
}

// Initialize sets up minimal in-process tracing. Always initializes a
// tracer handle, even if disabled, so StartSpan never panics.
func Initialize(cfg Config, logger *zap.Logger, sinks *SinkRegistry) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "agentrt"
	}
	tracer = otel.Tracer(cfg.ServiceName)

	if !cfg.Enabled {
		logger.Info("tracing disabled")
		return nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return fmt.Errorf("build tracing resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(&envelopeExporter{sinks: sinks}),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	tracer = otel.Tracer(cfg.ServiceName)

	logger.Info("tracing initialized", zap.String("service", cfg.ServiceName))
	return nil
}

// envelopeExporter implements sdktrace.SpanExporter by rendering every
// finished span as a `trace` envelope (category "span") on the session its
// session_id attribute names, with a matching `log_line` for any span that
// ended in error. A span with no registered sink, or no session_id
// attribute at all, is dropped — exactly like hub.push dropping a frame for
// a disconnected client, tracing data is best-effort, never a delivery
// guarantee.
type envelopeExporter struct {
	sinks *SinkRegistry
}

func (e *envelopeExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	for _, span := range spans {
		var sessionID, interactionID string
		for _, attr := range span.Attributes() {
			switch attr.Key {
			case sessionIDKey:
				sessionID = attr.Value.AsString()
			case interactionIDKey:
				interactionID = attr.Value.AsString()
			}
		}
		if sessionID == "" {
			continue
		}
		sink, ok := e.sinks.get(sessionID)
		if !ok {
			continue
		}

		status := span.Status()
		text := fmt.Sprintf("%s (%s)", span.Name(), span.EndTime().Sub(span.StartTime()))
		sink.Trace(interactionID, span.SpanContext().SpanID().String(), text, "span")

		if status.Code == codes.Error {
			sink.LogLine("error", "span_error", map[string]any{
				"span":    span.Name(),
				"message": status.Description,
			})
		}
	}
	return nil
}

func (e *envelopeExporter) Shutdown(ctx context.Context) error { return nil }

// StartSpan creates a new span tagged with the owning session and
// interaction, so envelopeExporter can route it back to the right client.
func StartSpan(ctx context.Context, spanName, sessionID, interactionID string) (context.Context, oteltrace.Span) {
	if tracer == nil {
		tracer = otel.Tracer("agentrt")
	}
	ctx, span := tracer.Start(ctx, spanName)
	span.SetAttributes(sessionIDKey.String(sessionID), interactionIDKey.String(interactionID))
	return ctx, span
}

// W3CTraceparent generates a W3C traceparent header value for ctx's span,
// for outbound calls to a skill's HTTP endpoint that want to propagate
// trace context.
func W3CTraceparent(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	sc := span.SpanContext()
	return fmt.Sprintf("00-%s-%s-%02x", sc.TraceID().String(), sc.SpanID().String(), sc.TraceFlags())
}

// InjectTraceparent adds a W3C traceparent header to an outbound HTTP
// request.
func InjectTraceparent(ctx context.Context, req *http.Request) {
	if tp := W3CTraceparent(ctx); tp != "" {
		req.Header.Set("traceparent", tp)
	}
}

// ParseTraceparent parses a W3C traceparent header.
func ParseTraceparent(traceparent string) (traceID, spanID string, flags byte, valid bool) {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 || parts[0] != "00" {
		return "", "", 0, false
	}
	traceID = parts[1]
	spanID = parts[2]
	var flagsInt int
	if _, err := fmt.Sscanf(parts[3], "%02x", &flagsInt); err != nil {
		return "", "", 0, false
	}
	return traceID, spanID, byte(flagsInt), true
}
