package logger

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the gin context key the request ID middleware writes to
const RequestIDKey = "request_id"

// GinMiddleware writes one access log line per request. The request logger
// (request_id, method, path and trace fields) is attached to the request
// context, where FromContext finds it.
//
// Successful requests on quietRoutes, e.g. the health probe, are logged at
// debug level.
func GinMiddleware(l *zap.Logger, quietRoutes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		reqLogger := WithTraceContext(req.Context(), l.With(
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
		))
		c.Request = req.WithContext(WithContext(req.Context(), reqLogger))

		c.Next()

		status := c.Writer.Status()
		fields := make([]zap.Field, 0, 8)
		fields = append(fields,
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		)
		route := c.FullPath()
		if route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if q := req.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if ua := req.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		if ce := reqLogger.Check(accessLevel(status, slices.Contains(quietRoutes, route)), "HTTP Request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func accessLevel(status int, quiet bool) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case quiet:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Recovery turns a handler panic into a logged stack trace and a 500
// response in the API error envelope
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString(RequestIDKey)
			l.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("error", rec),
				zap.Stack("stacktrace"),
			)

			errBody := gin.H{"code": "ERR_INTERNAL", "message": "internal server error"}
			if requestID != "" {
				errBody["request_id"] = requestID
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": errBody})
		}()
		c.Next()
	}
}
