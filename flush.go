package snapstate

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-snapstate/paths"
	"github.com/goliatone/go-snapstate/pkg/activity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type flushStats struct {
	subscriptions int
	sessions      int
}

// flush dispatches the queued paths in the order they were first written.
// The queue is taken up front; a failing path stops the flush and the rest
// of the queue is dropped. The store refuses writes until the flush has been
// reported to activity hooks and the logger.
func (s *Store) flush() error {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.queued = make(map[string]struct{})
	if len(queue) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.flushing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.mu.Unlock()
	}()

	ctx, span := s.cfg.tracer.Start(context.Background(), "snapstate.flush",
		trace.WithAttributes(
			attribute.String("snapstate.store", s.cfg.name),
			attribute.Int("snapstate.paths", len(queue)),
		),
	)
	defer span.End()

	start := time.Now()
	var (
		stats      flushStats
		err        error
		dispatched []change
	)
	for _, c := range queue {
		dispatched = append(dispatched, c)
		if err = s.dispatch(c.path, &stats); err != nil {
			break
		}
	}
	duration := time.Since(start)

	activityErr := s.emitActivity(ctx, dispatched)

	span.SetAttributes(
		attribute.Int("snapstate.subscriptions", stats.subscriptions),
		attribute.Int("snapstate.sessions", stats.sessions),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	changed := make([]paths.Path, len(dispatched))
	for i, c := range dispatched {
		changed[i] = c.path
	}
	s.cfg.logger.LogFlush(FlushLogEvent{
		Store:         s.cfg.name,
		Paths:         changed,
		Subscriptions: stats.subscriptions,
		Sessions:      stats.sessions,
		Duration:      duration,
		Err:           err,
		ActivityErr:   activityErr,
	})
	return err
}

// dispatch notifies every subscription, then every matching session, about
// one changed path. Writes attempted by listeners are rejected and fail the
// flush once the path has been fully dispatched; panics fail it at once.
func (s *Store) dispatch(changed paths.Path, stats *flushStats) error {
	s.mu.Lock()
	s.dispatching = true
	s.flushErr = nil
	subs := append([]*subscription(nil), s.subscriptions...)
	var matched []*session
	for _, sess := range s.sessions {
		if sess.matches(changed) {
			matched = append(matched, sess)
		}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.dispatching = false
		s.mu.Unlock()
	}()

	readable := s.Readable()
	for _, sub := range subs {
		if !s.subscribed(sub) {
			continue
		}
		stats.subscriptions++
		if err := guardListener(changed, func() { sub.fn(readable) }); err != nil {
			return err
		}
	}

	for _, sess := range matched {
		if !s.tracked(sess) {
			continue
		}
		stats.sessions++
		if err := s.rerun(sess, changed); err != nil {
			var circular *CircularError
			if !errors.As(err, &circular) {
				return err
			}
			s.noteFlushErr(err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushErr
}

func (s *Store) rerun(sess *session, changed paths.Path) error {
	value, err := s.record(sess, changed)
	if err != nil {
		return err
	}
	if sess.reaction == nil {
		return nil
	}
	return guardListener(changed, func() { sess.reaction(value) })
}

func (s *Store) noteFlushErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushErr == nil {
		s.flushErr = err
	}
}

func guardListener(changed paths.Path, fn func()) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &ListenerError{Path: changed.Clone(), Recovered: recovered}
		}
	}()
	fn()
	return nil
}

func (s *Store) emitActivity(ctx context.Context, changes []change) error {
	if !s.emitter.Enabled() {
		return nil
	}
	at := time.Now()
	var errs []error
	for _, c := range changes {
		current, exists := s.peek(c.path)
		event, ok := activity.Change{
			Path:    c.path.String(),
			Before:  c.old,
			After:   current,
			Existed: c.existed,
			Exists:  exists,
			At:      at,
		}.Event()
		if !ok {
			continue
		}
		if err := s.emitter.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
