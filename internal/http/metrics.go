package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/cunzhi/internal/http"

// HTTPMetrics instruments the ops HTTP server. Instruments that failed to
// register are nil and skipped.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	size     metric.Int64Histogram
	active   metric.Int64UpDownCounter
}

// NewHTTPMetrics registers the request instruments on meter, or on the
// global meter provider when meter is nil.
func NewHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var m HTTPMetrics
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	m.requests, err = meter.Int64Counter("cunzhi.http.requests_total",
		metric.WithDescription("Ops HTTP requests by method, route and status"),
		metric.WithUnit("{request}"))
	collect(err)
	m.duration, err = meter.Float64Histogram("cunzhi.http.request_duration_seconds",
		metric.WithDescription("Ops HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.025, 0.1, 0.5, 2.5))
	collect(err)
	m.size, err = meter.Int64Histogram("cunzhi.http.response_size_bytes",
		metric.WithDescription("Ops HTTP response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(128, 512, 2048, 8192, 32768))
	collect(err)
	m.active, err = meter.Int64UpDownCounter("cunzhi.http.active_requests",
		metric.WithDescription("Ops HTTP requests in flight"),
		metric.WithUnit("{request}"))
	collect(err)

	if len(errs) > 0 {
		logger.Warn("some http instruments are unavailable", zap.Error(errors.Join(errs...)))
	}
	return &m
}

// MetricsMiddleware records one sample per request, labelled with the
// route template and the final status.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()

			if m.active != nil {
				m.active.Add(ctx, 1)
				defer m.active.Add(ctx, -1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", responseStatus(c, err)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.size != nil {
				m.size.Record(ctx, c.Response().Size, attrs)
			}
			return err
		}
	}
}

// responseStatus reports the status the client will see. Handler errors are
// rendered by echo after the middleware returns.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// normalizePath returns the matched route template, so /api/v1/tools/:id is
// one series regardless of the id.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
