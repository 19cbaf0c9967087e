package server

import (
	"fmt"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avafields/internal/observability"
)

const (
	// RequestIDHeader is the header carrying the request ID.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "requestID"
	spanKey      = "otel-span"
	tracerName   = "avafields/server"
	routeUnknown = "unmatched"
)

// recovery turns a panic into a 500 response.
func recovery(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					observability.Any("error", err),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("stack", string(debug.Stack())),
				)

				if span, ok := c.Get(spanKey); ok {
					if s, ok := span.(trace.Span); ok {
						s.SetStatus(codes.Error, fmt.Sprintf("panic: %v", err))
					}
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					NewWebMessage(http.StatusInternalServerError, "internal server error"))
			}
		}()
		c.Next()
	}
}

// requestID propagates X-Request-ID, generating one when absent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(observability.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// tracing starts a server span per request.
func tracing() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(),
			propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+routeOf(c),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("http.route", routeOf(c)),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			ctx = observability.ContextWithTraceID(ctx, sc.TraceID().String())
		}

		c.Set(spanKey, span)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// accessLog logs each request at a level chosen by its status.
func accessLog(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isProbePath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logFields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.String("query", c.Request.URL.RawQuery),
			observability.Int("status", status),
			observability.Duration("latency", time.Since(start)),
			observability.String("clientIP", c.ClientIP()),
			observability.Int("bodySize", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, observability.String("errors", c.Errors.String()))
		}

		l := logger.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			l.Error("request completed", logFields...)
		case status >= http.StatusBadRequest:
			l.Warn("request completed", logFields...)
		default:
			l.Info("request completed", logFields...)
		}
	}
}

// requestMetrics records request count, latency and response size.
func requestMetrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.RecordRequest(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start), c.Writer.Size())
	}
}

// rateLimit rejects requests above the token bucket rate with 429. Probes
// and skipPaths are never limited.
func rateLimit(
	limiter *rate.Limiter,
	m *observability.Metrics,
	logger observability.Logger,
	skipPaths ...string,
) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if isProbePath(c.Request.URL.Path) || skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		r := limiter.Reserve()
		if r.OK() {
			delay := r.Delay()
			if delay == 0 {
				c.Next()
				return
			}
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		}

		if m != nil {
			m.RecordRateLimited()
		}
		logger.WithContext(c.Request.Context()).Debug("rate limit exceeded",
			observability.String("path", c.Request.URL.Path))

		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			NewWebMessage(http.StatusTooManyRequests, "rate limit exceeded"))
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return routeUnknown
}

func isProbePath(path string) bool {
	switch path {
	case "/health", "/ready", "/live":
		return true
	}
	return false
}
