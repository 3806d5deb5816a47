package snapstate

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-snapstate"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// WithTracer records one span per flush on tracer. Without it the global
// otel tracer provider is used.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *storeConfig) {
		cfg.tracer = tracer
	}
}

// WithTracerProvider is WithTracer for a provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *storeConfig) {
		if provider == nil {
			cfg.tracer = nil
			return
		}
		cfg.tracer = provider.Tracer(tracerName)
	}
}
