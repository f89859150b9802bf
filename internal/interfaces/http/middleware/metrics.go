package middleware

import (
	"mime"
	"time"

	"github.com/fichesante/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MeterSource hands out meters; *telemetry.Provider and the SDK meter provider both qualify.
type MeterSource interface {
	Meter(name string, opts ...metric.MeterOption) metric.Meter
}

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	Meters  MeterSource
	Enabled bool
	// Logger reports instrument setup failures.
	Logger *zap.Logger
}

// attrResponseKind tells PDFs, batch archives, previews and JSON apart in
// the response size histogram
const attrResponseKind = attribute.Key("http.response.kind")

// PDFs weigh tens of kilobytes, batch archives several megabytes
var responseSizeBuckets = []float64{1e3, 1e4, 5e4, 1e5, 5e5, 1e6, 5e6, 2e7}

type httpInstruments struct {
	requests *telemetry.Counter
	duration *telemetry.Histogram
	size     *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		ins httpInstruments
		err error
	)
	if ins.requests, err = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}"); err != nil {
		return nil, err
	}
	if ins.duration, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if ins.size, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if ins.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return &ins, nil
}

// HTTPMetrics records, per route pattern:
//   - http_server_request_total by method and status code
//   - http_server_request_duration_seconds by method
//   - http_server_response_size_bytes by method and response kind
//   - http_server_active_requests
//
// Disabled, or without meters, it is a pass-through.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	passThrough := func(c *gin.Context) { c.Next() }
	if !cfg.Enabled || cfg.Meters == nil {
		return passThrough
	}

	ins, err := newHTTPInstruments(cfg.Meters.Meter("http.server"))
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		ins.inFlight.Add(ctx, 1)
		defer ins.inFlight.Add(ctx, -1)

		c.Next()

		// status code stays off the histograms to keep cardinality low
		base := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(getRoutePattern(c)),
		}
		ins.requests.Inc(ctx, append(base, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
		ins.duration.RecordDuration(ctx, time.Since(start), base...)
		if size := c.Writer.Size(); size > 0 {
			kind := responseKind(c.Writer.Header().Get("Content-Type"))
			ins.size.Record(ctx, float64(size), append(base, attrResponseKind.String(kind))...)
		}
	}
}

// responseKind maps a Content-Type onto a small fixed label set
func responseKind(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "other"
	}
	switch mediaType {
	case "application/pdf":
		return "pdf"
	case "application/zip":
		return "zip"
	case "text/html":
		return "html"
	case "application/json":
		return "json"
	default:
		return "other"
	}
}

// getRoutePattern returns the route pattern (e.g., "/api/v1/documents/:id")
// instead of the actual path to avoid high cardinality issues.
func getRoutePattern(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return "unknown"
	}
	return route
}
