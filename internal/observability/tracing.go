// Package observability provides OpenTelemetry tracing, Prometheus-format
// metrics, structured logging, and an audit trail for sift.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies the sift tracer.
const TracerName = "github.com/xebia/sift"

// TracingConfig configures OTLP trace export. An empty OTLPEndpoint leaves
// tracing as a no-op.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is a gRPC endpoint such as "localhost:4317".
	OTLPEndpoint string
	// SampleRate in [0, 1]. Values at or above 1 sample everything.
	SampleRate float64
}

// DefaultTracingConfig samples everything under the "sift" service name.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "sift",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the SDK provider so callers can shut it down without
// importing the OTel SDK.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing sets up the global tracer provider and propagators. Without an
// endpoint it returns a provider whose spans are no-ops.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans. Safe on a no-op provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span kind attribute values for sift operations.
const (
	SpanKindAgent     = "agent"
	SpanKindLLM       = "llm"
	SpanKindEmbed     = "embed"
	SpanKindRetrieval = "retrieval"
	SpanKindIngest    = "ingest"
)

func startSpan(ctx context.Context, name, siftKind string, otelKind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("sift.span.kind", siftKind))
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(otelKind),
		trace.WithAttributes(attrs...),
	)
}

// StartAgentSpan opens a span covering one agent run.
func StartAgentSpan(ctx context.Context, agentName string) (context.Context, trace.Span) {
	return startSpan(ctx, "agent."+agentName, SpanKindAgent, trace.SpanKindInternal,
		attribute.String("sift.agent.name", agentName))
}

// SetAgentMetrics attaches run totals to an agent span.
func SetAgentMetrics(span trace.Span, toolSteps, errorCount int) {
	span.SetAttributes(
		attribute.Int("agent.tool_steps", toolSteps),
		attribute.Int("agent.error_count", errorCount),
	)
}

// StartLLMSpan opens a span covering one completion call.
func StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return startSpan(ctx, "llm.complete", SpanKindLLM, trace.SpanKindClient,
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model))
}

// RecordLLMMetrics attaches token usage to an LLM span.
func RecordLLMMetrics(span trace.Span, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// StartEmbedSpan opens a span covering one embedding batch.
func StartEmbedSpan(ctx context.Context, provider string, textCount int) (context.Context, trace.Span) {
	return startSpan(ctx, "llm.embed", SpanKindEmbed, trace.SpanKindClient,
		attribute.String("llm.provider", provider),
		attribute.Int("embed.text_count", textCount))
}

// StartRetrievalSpan opens a span covering one vector search.
func StartRetrievalSpan(ctx context.Context, topK int) (context.Context, trace.Span) {
	return startSpan(ctx, "retrieval.search", SpanKindRetrieval, trace.SpanKindInternal,
		attribute.Int("retrieval.top_k", topK))
}

// RecordRetrievalResult attaches the search outcome to a retrieval span.
func RecordRetrievalResult(span trace.Span, resultCount int, topScore float64) {
	span.SetAttributes(
		attribute.Int("retrieval.result_count", resultCount),
		attribute.Float64("retrieval.top_score", topScore),
	)
}

// StartIngestSpan opens a span covering one document ingestion.
func StartIngestSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return startSpan(ctx, "ingest.document", SpanKindIngest, trace.SpanKindInternal,
		attribute.String("ingest.source", source))
}

// RecordIngestResult attaches chunk counts to an ingest span, marking the
// span failed when chunks were lost.
func RecordIngestResult(span trace.Span, chunkCount, storedCount int) {
	span.SetAttributes(
		attribute.Int("ingest.chunk_count", chunkCount),
		attribute.Int("ingest.stored_count", storedCount),
	)
	if storedCount < chunkCount {
		span.SetStatus(codes.Error, fmt.Sprintf("stored %d of %d chunks", storedCount, chunkCount))
	}
}

// RecordError marks a span failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
