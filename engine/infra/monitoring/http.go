package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type httpInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// GinMiddleware records request counts, latency and in-flight requests.
// Long-lived streams are counted when they end.
func (s *Service) GinMiddleware() gin.HandlerFunc {
	inst, err := newHTTPInstruments(s.meter)
	if err != nil || !s.initialized {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		inst.inFlight.Add(ctx, 1)
		defer inst.inFlight.Add(ctx, -1)
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		inst.requests.Add(ctx, 1, attrs)
		inst.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	requests, err := meter.Int64Counter(
		"dallosh_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"dallosh_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithExplicitBucketBoundaries(.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter(
		"dallosh_http_requests_in_flight",
		metric.WithDescription("Currently active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	return &httpInstruments{requests: requests, duration: duration, inFlight: inFlight}, nil
}
