package snapstate

import (
	"errors"
	"sync"

	"github.com/goliatone/go-snapstate/paths"
	"github.com/google/uuid"
)

// Observer reads state. Every path it reads through the view is recorded.
type Observer func(*Readable) any

// Reaction receives the observer result after a matching change.
type Reaction func(any)

// TrackOption configures a tracking session.
type TrackOption func(*trackConfig)

type trackConfig struct {
	flip   bool
	scoped bool
}

// WithFlip makes the session fire for changes at or below the paths it
// read, instead of changes at or above them.
func WithFlip() TrackOption {
	return func(cfg *trackConfig) {
		cfg.flip = true
	}
}

// withScope makes the session fire for changes at or below the view its
// observer returns, and for changes at or above anything it read on the
// way there. Substate subscriptions use it so a write next to the grabbed
// subtree does not reach them.
func withScope() TrackOption {
	return func(cfg *trackConfig) {
		cfg.scoped = true
	}
}

// Tracker registers tracking sessions. Store, Substate and Restricted
// implement it.
type Tracker interface {
	Track(observer Observer, reaction Reaction, opts ...TrackOption) (func(), error)
}

type session struct {
	id       uuid.UUID
	observer Observer
	reaction Reaction
	flip     bool
	scoped   bool

	// guarded by Store.mu
	paths []paths.Path
	scope []paths.Path
	next  *paths.Set
	err   error
}

func (sess *session) matches(changed paths.Path) bool {
	if sess.scoped {
		return paths.ContainsPathOrParents(sess.scope, changed) ||
			paths.ContainsPathOrChildren(sess.paths, changed)
	}
	if sess.flip {
		return paths.ContainsPathOrParents(sess.paths, changed)
	}
	return paths.ContainsPathOrChildren(sess.paths, changed)
}

// Track runs observer once, recording what it reads, and registers a
// session that runs again whenever a flushed path matches those reads.
// With a reaction the observer result is handed to reaction on every match;
// without one the observer is simply run again. Each run replaces the
// recorded paths with what that run read.
//
// Track fails and registers nothing when the observer writes state, panics,
// or when another session is recording.
func (s *Store) Track(observer Observer, reaction Reaction, opts ...TrackOption) (func(), error) {
	dispose, err := s.track(observer, reaction, opts...)
	if err != nil {
		return nil, err
	}
	return s.tracks.add(dispose), nil
}

// UntrackAll disposes every session registered through this store handle.
func (s *Store) UntrackAll() {
	s.tracks.drain()
}

func (s *Store) track(observer Observer, reaction Reaction, opts ...TrackOption) (func(), error) {
	if observer == nil {
		return nil, errors.New("snapstate: observer must not be nil")
	}
	cfg := trackConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	sess := &session{
		id:       uuid.New(),
		observer: observer,
		reaction: reaction,
		flip:     cfg.flip,
		scoped:   cfg.scoped,
	}
	if _, err := s.record(sess, nil); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()

	return func() { s.untrack(sess.id) }, nil
}

func (s *Store) untrack(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sess := range s.sessions {
		if sess.id == id {
			s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
			return
		}
	}
}

func (s *Store) tracked(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candidate := range s.sessions {
		if candidate == sess {
			return true
		}
	}
	return false
}

// record runs the session observer as the recording session. On success the
// session paths are replaced by what the run read.
func (s *Store) record(sess *session, changed paths.Path) (value any, err error) {
	s.mu.Lock()
	if s.recording != nil {
		s.mu.Unlock()
		return nil, &CircularError{Path: changed.Clone(), Phase: PhaseTracking}
	}
	s.recording = sess
	sess.next = paths.NewSet()
	sess.err = nil
	s.mu.Unlock()

	defer func() {
		recovered := recover()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.recording = nil
		switch {
		case recovered != nil:
			err = &ListenerError{Path: changed.Clone(), Recovered: recovered}
		case sess.err != nil:
			err = sess.err
		default:
			sess.paths = sess.next.Items()
			if view, ok := value.(*Readable); ok && sess.scoped && view != nil {
				sess.scope = []paths.Path{view.Path()}
			}
		}
		sess.next = nil
	}()

	return sess.observer(s.Readable()), nil
}

// Watch is Track with typed observer results.
func Watch[X any](t Tracker, observer func(*Readable) X, reaction func(X), opts ...TrackOption) (func(), error) {
	if observer == nil {
		return nil, errors.New("snapstate: observer must not be nil")
	}
	var react Reaction
	if reaction != nil {
		react = func(value any) {
			typed, _ := value.(X)
			reaction(typed)
		}
	}
	return t.Track(func(r *Readable) any { return observer(r) }, react, opts...)
}

// disposers is the set of cleanup functions owned by one handle.
type disposers struct {
	mu  sync.Mutex
	seq uint64
	fns map[uint64]func()
}

// add registers fn and returns an idempotent disposer that also forgets it.
func (d *disposers) add(fn func()) func() {
	d.mu.Lock()
	d.seq++
	id := d.seq
	if d.fns == nil {
		d.fns = make(map[uint64]func())
	}
	d.fns[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.fns, id)
			d.mu.Unlock()
			fn()
		})
	}
}

func (d *disposers) drain() {
	d.mu.Lock()
	fns := d.fns
	d.fns = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
