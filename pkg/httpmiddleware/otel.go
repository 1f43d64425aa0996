package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides the OpenTelemetry providers used for instrumentation.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Instrument setups otelhttp. Spans are named after the matched route.
func Instrument(serviceName string, find RouteFinder, m Telemetry) Middleware {
	return func(h http.Handler) http.Handler {
		return otelhttp.NewHandler(h, "",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithServerName(serviceName),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				if route, ok := find(r); ok {
					return route.Name()
				}
				if operation == "" {
					return r.Method
				}
				return operation
			}),
		)
	}
}

// routeKey is the semantic convention attribute for the matched route.
const routeKey = attribute.Key("http.route")

// Labeler adds the matched route to the span and to otelhttp metrics.
func Labeler(find RouteFinder) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := find(r)
			if !ok {
				h.ServeHTTP(w, r)
				return
			}
			attr := routeKey.String(route.Pattern)
			trace.SpanFromContext(r.Context()).SetAttributes(attr)

			labeler, _ := otelhttp.LabelerFromContext(r.Context())
			labeler.Add(attr)
			ctx := otelhttp.ContextWithLabeler(r.Context(), labeler)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
