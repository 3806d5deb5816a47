// Package metrics exports store flushes and rule evaluations as Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	snapstate "github.com/goliatone/go-snapstate"
)

const (
	namespace = "snapstate"

	statusOK    = "ok"
	statusError = "error"
)

// Collector records flush and evaluation events. It satisfies both
// snapstate.FlushLogger and snapstate.EvaluatorLogger.
type Collector struct {
	flushesTotal        *prometheus.CounterVec
	flushedPathsTotal   *prometheus.CounterVec
	listenerCallsTotal  *prometheus.CounterVec
	flushDuration       *prometheus.HistogramVec
	activityErrorsTotal *prometheus.CounterVec
	evaluationsTotal    *prometheus.CounterVec
	evaluationDuration  *prometheus.HistogramVec
}

var (
	_ snapstate.FlushLogger     = (*Collector)(nil)
	_ snapstate.EvaluatorLogger = (*Collector)(nil)
)

// NewCollector builds a Collector and registers it with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		flushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "total",
			Help:      "Total flushes by store and status",
		}, []string{"store", "status"}),
		flushedPathsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "paths_total",
			Help:      "Total changed paths dispatched by store",
		}, []string{"store"}),
		listenerCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "listener_calls_total",
			Help:      "Total listener invocations by store and kind",
		}, []string{"store", "kind"}),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "duration_seconds",
			Help:      "Flush duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"store"}),
		activityErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "errors_total",
			Help:      "Total flushes whose activity hooks failed",
		}, []string{"store"}),
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rule",
			Name:      "evaluations_total",
			Help:      "Total rule evaluations by engine and status",
		}, []string{"engine", "status"}),
		evaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rule",
			Name:      "evaluation_duration_seconds",
			Help:      "Rule evaluation duration in seconds",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"engine"}),
	}
	for _, collector := range c.collectors() {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.flushesTotal,
		c.flushedPathsTotal,
		c.listenerCallsTotal,
		c.flushDuration,
		c.activityErrorsTotal,
		c.evaluationsTotal,
		c.evaluationDuration,
	}
}

// LogFlush implements snapstate.FlushLogger.
func (c *Collector) LogFlush(event snapstate.FlushLogEvent) {
	store := storeLabel(event.Store)
	c.flushesTotal.WithLabelValues(store, status(event.Err)).Inc()
	c.flushedPathsTotal.WithLabelValues(store).Add(float64(len(event.Paths)))
	c.listenerCallsTotal.WithLabelValues(store, "subscription").Add(float64(event.Subscriptions))
	c.listenerCallsTotal.WithLabelValues(store, "session").Add(float64(event.Sessions))
	c.flushDuration.WithLabelValues(store).Observe(event.Duration.Seconds())
	if event.ActivityErr != nil {
		c.activityErrorsTotal.WithLabelValues(store).Inc()
	}
}

// LogEvaluation implements snapstate.EvaluatorLogger.
func (c *Collector) LogEvaluation(event snapstate.EvaluatorLogEvent) {
	c.evaluationsTotal.WithLabelValues(event.Engine, status(event.Err)).Inc()
	c.evaluationDuration.WithLabelValues(event.Engine).Observe(event.Duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}

func storeLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
