// Package middleware provides HTTP middleware for the document API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// TracerProvider overrides the global tracer provider.
	TracerProvider trace.TracerProvider
}

// TracingWithConfig returns the otelgin middleware, which names server spans
// "METHOD route_pattern". Disabled, it is a pass-through.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// Span status descriptions by response class
var spanErrorDescriptions = map[int]string{
	http.StatusNotFound:        "Not Found",
	http.StatusTooManyRequests: "Too Many Requests",
	http.StatusBadGateway:      "Document Generation Failed",
}

// AttrDocumentError carries the readable outcome of a failed document request
const AttrDocumentError = "document.error"

// DocumentSpan decorates the server span started by TracingWithConfig. It
// adds request_id, document.id and document.variant before the handler
// runs and marks the span failed on a 4xx or 5xx response, recording the
// outcome under document.error.
func DocumentSpan() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		attrs := make([]attribute.KeyValue, 0, 3)
		if id := getRequestID(c); id != "" {
			attrs = append(attrs, attribute.String("request_id", id))
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, attribute.String("document.id", id))
		}
		// the download route carries the variant as a file name
		if v := strings.TrimSuffix(c.Param("variant"), ".pdf"); v != "" {
			attrs = append(attrs, attribute.String("document.variant", v))
		}
		span.SetAttributes(attrs...)

		c.Next()

		// the server span status is rewritten by the tracing middleware
		// once the chain returns, so the description also goes in an attribute
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			desc := spanErrorDescription(status)
			span.SetStatus(codes.Error, desc)
			span.SetAttributes(
				attribute.Int("http.status_code", status),
				attribute.String(AttrDocumentError, desc),
			)
		}
	}
}

func spanErrorDescription(status int) string {
	if d, ok := spanErrorDescriptions[status]; ok {
		return d
	}
	if status >= http.StatusInternalServerError {
		return "Internal Server Error"
	}
	return "Client Error"
}
