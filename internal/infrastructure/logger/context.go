package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext attaches l to ctx. GinMiddleware stores the request logger
// this way so that services called from a handler log with its request_id.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or fallback when there is
// none. A nil fallback gives a no-op logger.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// WithTraceContext adds trace_id and span_id of the span in ctx
func WithTraceContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// L is FromContext with trace correlation, for code that may run in a
// span started after the request logger was built (encoders, batch workers).
//
//	logger.L(ctx, s.logger).Warn("encode failed", zap.Error(err))
func L(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx, fallback))
}
