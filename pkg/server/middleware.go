package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/logging"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/tracing"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// unmatchedRoute labels requests that hit no route.
const unmatchedRoute = "unmatched"

// requestID reuses the caller's request id or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// tracingMiddleware continues the caller's trace and wraps the request in a
// server span.
func tracingMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracing.InstrumentationName + "/pkg/server")

	return func(c *gin.Context) {
		ctx := tracing.Extract(c.Request.Context(), c.Request.Header)

		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, routeOf(c)),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", routeOf(c)),
				attribute.String("http.request_id", logging.GetRequestID(ctx)),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if err := c.Errors.Last(); err != nil {
			span.RecordError(err.Err)
		}
	}
}

// metricsMiddleware records request counts and latencies by route template.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		s.deps.Metrics.RecordHTTPRequest(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.Log(c.Request.Context(), level, "request completed",
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// recovery turns a panicking handler into a 500 response.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "handler panicked",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
