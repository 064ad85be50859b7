package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry provides the OpenTelemetry providers used for instrumentation.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Instrument wraps handlers with otelhttp, naming spans after the matched
// route.
func Instrument(serviceName string, find RouteFinder, m Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithServerName(serviceName),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if pattern, ok := find(r); ok {
					return pattern
				}
				return r.Method + " unmatched"
			}),
		)
	}
}

// Labeler adds the matched route to the otelhttp metric labels.
// It must run inside Instrument.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pattern, ok := find(r); ok {
				if l, found := otelhttp.LabelerFromContext(r.Context()); found {
					l.Add(attribute.String("http.route", pattern))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics counts requests and records their latency per route and status.
func Metrics(meter metric.Meter, find RouteFinder) (Middleware, error) {
	requests, err := meter.Int64Counter("grocery.http.requests",
		metric.WithDescription("Number of handled HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("grocery.http.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			route, ok := find(r)
			if !ok {
				route = "unmatched"
			}
			attrs := metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", sw.code()),
			)
			ctx := r.Context()
			requests.Add(ctx, 1, attrs)
			duration.Record(ctx, time.Since(start).Seconds(), attrs)
			if sw.code() == http.StatusTooManyRequests {
				zctx.From(ctx).Debug("Request throttled", zap.String("route", route))
			}
		})
	}, nil
}
