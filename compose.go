package snapstate

import (
	"context"
	"errors"
	"sort"

	"github.com/goliatone/go-snapstate/paths"
	"golang.org/x/sync/errgroup"
)

// Composite mounts several states into one tree of groups.
type Composite struct {
	mounts []mount
}

type mount struct {
	path  paths.Path
	state State
}

// Compose mounts every State found in tree. Nested groups are walked;
// any other value is rejected with a TreeError.
func Compose(tree map[string]any) (*Composite, error) {
	c := &Composite{}
	if err := c.collect(tree, nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Composite) collect(tree map[string]any, prefix paths.Path) error {
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := prefix.Append(key)
		switch value := tree[key].(type) {
		case State:
			c.mounts = append(c.mounts, mount{path: path, state: value})
		case map[string]any:
			if err := c.collect(value, path); err != nil {
				return err
			}
		default:
			return &TreeError{Path: path, Value: value}
		}
	}
	return nil
}

// State returns the state mounted at path, or nil.
func (c *Composite) State(path ...string) State {
	for _, m := range c.mounts {
		if paths.Equal(m.path, path) {
			return m.state
		}
	}
	return nil
}

// View returns the readable view of the state mounted at path, or nil.
func (c *Composite) View(path ...string) *Readable {
	state := c.State(path...)
	if state == nil {
		return nil
	}
	return state.Readable()
}

// Readable returns the mount tree with each state replaced by its
// readable view.
func (c *Composite) Readable() map[string]any {
	return c.build(func(s State) any { return s.Readable() })
}

// Writable returns the mount tree with each state replaced by its writable
// view.
func (c *Composite) Writable() map[string]any {
	return c.build(func(s State) any { return s.Writable() })
}

func (c *Composite) build(view func(State) any) map[string]any {
	out := map[string]any{}
	for _, m := range c.mounts {
		group := out
		for _, key := range m.path[:len(m.path)-1] {
			next, ok := group[key].(map[string]any)
			if !ok {
				next = map[string]any{}
				group[key] = next
			}
			group = next
		}
		group[m.path.Last()] = view(m.state)
	}
	return out
}

// Subscribe subscribes fn to every mounted state.
func (c *Composite) Subscribe(fn Subscription) func() {
	disposers := make([]func(), 0, len(c.mounts))
	for _, m := range c.mounts {
		disposers = append(disposers, m.state.Subscribe(fn))
	}
	return func() {
		for _, dispose := range disposers {
			dispose()
		}
	}
}

// Track registers observer on every mounted state. Each state records the
// reads made against it, so the reaction runs after a matching change in
// any of them.
func (c *Composite) Track(observer func(*Composite) any, reaction Reaction, opts ...TrackOption) (func(), error) {
	if observer == nil {
		return nil, errors.New("snapstate: observer must not be nil")
	}
	disposers := make([]func(), 0, len(c.mounts))
	disposeAll := func() {
		for _, dispose := range disposers {
			dispose()
		}
	}
	for _, m := range c.mounts {
		dispose, err := m.state.Track(func(*Readable) any { return observer(c) }, reaction, opts...)
		if err != nil {
			disposeAll()
			return nil, err
		}
		disposers = append(disposers, dispose)
	}
	return disposeAll, nil
}

// UnsubscribeAll fans out to every mounted state.
func (c *Composite) UnsubscribeAll() {
	for _, m := range c.mounts {
		m.state.UnsubscribeAll()
	}
}

// UntrackAll fans out to every mounted state.
func (c *Composite) UntrackAll() {
	for _, m := range c.mounts {
		m.state.UntrackAll()
	}
}

// Wait waits for every mounted state and returns the first error.
func (c *Composite) Wait(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range c.mounts {
		state := m.state
		g.Go(func() error {
			return state.Wait(gctx)
		})
	}
	return g.Wait()
}
