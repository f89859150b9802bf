package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of infrastructure spans
const TracerName = "github.com/fichesante/backend"

// Attribute keys of the archive storage spans
const (
	AttrStorageBackend = attribute.Key("archive.storage")
	AttrArchiveSize    = attribute.Key("archive.size")
)

// StartSpan starts an internal span on the global tracer provider. Pair it
// with EndSpan:
//
//	ctx, span := telemetry.StartSpan(ctx, "archive.publish")
//	defer func() { telemetry.EndSpan(span, err) }()
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan marks the span failed with err, or OK when err is nil, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
