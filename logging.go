package snapstate

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-snapstate/paths"
)

// FlushLogEvent describes one flush of queued changes.
type FlushLogEvent struct {
	Store         string
	Paths         []paths.Path
	Subscriptions int
	Sessions      int
	Duration      time.Duration
	Err           error
	ActivityErr   error
}

// FlushLogger records flush events.
type FlushLogger interface {
	LogFlush(FlushLogEvent)
}

// FlushLoggerFunc adapts a function to FlushLogger.
type FlushLoggerFunc func(FlushLogEvent)

// LogFlush implements FlushLogger.
func (f FlushLoggerFunc) LogFlush(event FlushLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopFlushLogger struct{}

func (noopFlushLogger) LogFlush(FlushLogEvent) {}

// FlushLoggers fans a flush event out to several loggers.
type FlushLoggers []FlushLogger

// LogFlush implements FlushLogger.
func (l FlushLoggers) LogFlush(event FlushLogEvent) {
	for _, logger := range l {
		if logger != nil {
			logger.LogFlush(event)
		}
	}
}

// WithFlushLogger attaches a flush logger to the store.
func WithFlushLogger(logger FlushLogger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.logger = noopFlushLogger{}
			return
		}
		cfg.logger = logger
	}
}

// SlogFlushLogger writes flush events to a slog.Logger. Successful flushes
// log at debug level, failed ones at error level.
type SlogFlushLogger struct {
	logger *slog.Logger
}

// NewSlogFlushLogger wraps logger, falling back to slog.Default.
func NewSlogFlushLogger(logger *slog.Logger) *SlogFlushLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogFlushLogger{logger: logger}
}

// LogFlush implements FlushLogger.
func (l *SlogFlushLogger) LogFlush(event FlushLogEvent) {
	changed := make([]string, len(event.Paths))
	for i, p := range event.Paths {
		changed[i] = p.String()
	}
	attrs := []slog.Attr{
		slog.String("store", event.Store),
		slog.Any("paths", changed),
		slog.Int("subscriptions", event.Subscriptions),
		slog.Int("sessions", event.Sessions),
		slog.Duration("duration", event.Duration),
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	if event.ActivityErr != nil {
		if level < slog.LevelWarn {
			level = slog.LevelWarn
		}
		attrs = append(attrs, slog.String("activity_error", event.ActivityErr.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, "snapstate flush", attrs...)
}

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Path     string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}
