package snapstate

import (
	"strings"
	"time"

	"github.com/goliatone/go-snapstate/pkg/activity"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDebounce is the quiet period between the last write of a burst and
// the flush that notifies listeners.
const DefaultDebounce = time.Millisecond

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	name          string
	debounce      time.Duration
	logger        FlushLogger
	tracer        trace.Tracer
	activityHooks activity.Hooks
	channel       string
	actor         activity.Actor
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{debounce: DefaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopFlushLogger{}
	}
	if cfg.tracer == nil {
		cfg.tracer = defaultTracer()
	}
	return cfg
}

// WithName labels the store in logs, spans, metrics and activity events.
func WithName(name string) Option {
	return func(cfg *storeConfig) {
		cfg.name = strings.TrimSpace(name)
	}
}

// WithDebounce sets the quiet period before a flush. Negative values are
// treated as zero.
func WithDebounce(delay time.Duration) Option {
	return func(cfg *storeConfig) {
		if delay < 0 {
			delay = 0
		}
		cfg.debounce = delay
	}
}
