package snapstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-snapstate/paths"
)

// Grabber selects the subtree a substate is scoped to.
type Grabber func(*Readable) *Readable

// Substate is a scoped view of a store. It owns no data: reads and writes
// resolve through the root store at the path the grabber selected when the
// substate was built, and its listeners are root sessions.
type Substate struct {
	root    *Store
	parent  State
	grabber Grabber
	path    paths.Path

	tracks disposers
	subs   disposers
}

var _ State = (*Substate)(nil)

// Sub scopes parent to the subtree grabber returns from parent's readable
// view. Substates nest.
func Sub(parent State, grabber Grabber) (*Substate, error) {
	if parent == nil {
		return nil, errors.New("snapstate: substate parent must not be nil")
	}
	if grabber == nil {
		return nil, errors.New("snapstate: substate grabber must not be nil")
	}
	base := parent.Readable()
	grabbed := grabber(base)
	if grabbed == nil {
		return nil, fmt.Errorf("%w: grabber selected no group below %s", ErrStructure, base.Path())
	}
	if grabbed.store != base.store {
		return nil, errors.New("snapstate: grabber returned a view of another store")
	}
	return &Substate{
		root:    base.store,
		parent:  parent,
		grabber: grabber,
		path:    grabbed.Path(),
	}, nil
}

// Path returns the root path the substate is bound to.
func (s *Substate) Path() paths.Path {
	return s.path.Clone()
}

// Readable returns the read only view of the scoped subtree.
func (s *Substate) Readable() *Readable {
	return &Readable{core{store: s.root, path: s.path}}
}

// Readonly is an alias of Readable.
func (s *Substate) Readonly() *Readable {
	return s.Readable()
}

// Writable returns the mutable view of the scoped subtree. Writes fail with
// ErrStructure once an ancestor of the subtree stops being a group.
func (s *Substate) Writable() *Writable {
	return &Writable{core{store: s.root, path: s.path}}
}

// Subscribe calls fn whenever something at or below the grabbed subtree,
// or a path the grabber read on its way there, changes. Writes beside the
// subtree, even under the same parent, are ignored. fn receives the subtree
// as the grabber selects it at that moment, or the bound view once the
// grabber finds nothing. When registration is rejected, for instance
// because it was attempted from an observer, the returned disposer does
// nothing; TrySubscribe reports why.
func (s *Substate) Subscribe(fn Subscription) func() {
	dispose, err := s.TrySubscribe(fn)
	if err != nil {
		return func() {}
	}
	return dispose
}

// TrySubscribe is Subscribe returning the registration error.
func (s *Substate) TrySubscribe(fn Subscription) (func(), error) {
	if fn == nil {
		return nil, errors.New("snapstate: subscription must not be nil")
	}
	dispose, err := s.root.track(s.regrab, func(value any) {
		view, _ := value.(*Readable)
		fn(view)
	}, withScope())
	if err != nil {
		return nil, fmt.Errorf("snapstate: subscribe to %s: %w", s.path, err)
	}
	return s.subs.add(dispose), nil
}

// Track registers a root session whose observer reads through the
// substate view.
func (s *Substate) Track(observer Observer, reaction Reaction, opts ...TrackOption) (func(), error) {
	if observer == nil {
		return nil, errors.New("snapstate: observer must not be nil")
	}
	dispose, err := s.root.track(func(*Readable) any {
		return observer(s.Readable())
	}, reaction, opts...)
	if err != nil {
		return nil, err
	}
	return s.tracks.add(dispose), nil
}

// UnsubscribeAll disposes the subscriptions made through this substate.
func (s *Substate) UnsubscribeAll() {
	s.subs.drain()
}

// UntrackAll disposes the sessions made through this substate.
func (s *Substate) UntrackAll() {
	s.tracks.drain()
}

// Dispose releases every listener registered through this substate.
func (s *Substate) Dispose() {
	s.UnsubscribeAll()
	s.UntrackAll()
}

// Wait waits for the root store.
func (s *Substate) Wait(ctx context.Context) error {
	return s.root.Wait(ctx)
}

// regrab walks from the root to the parent, recording each step, and
// applies the grabber there.
func (s *Substate) regrab(root *Readable) any {
	base := descend(root, s.parent.Readable().Path())
	if view := s.grabber(base); view != nil {
		return view
	}
	return s.Readable()
}

func descend(r *Readable, path paths.Path) *Readable {
	current := r
	for _, key := range path {
		current = current.Group(key)
	}
	return current
}
