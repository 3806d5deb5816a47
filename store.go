package snapstate

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/goliatone/go-snapstate/debounce"
	"github.com/goliatone/go-snapstate/internal/hydrate"
	"github.com/goliatone/go-snapstate/layering"
	"github.com/goliatone/go-snapstate/paths"
	"github.com/goliatone/go-snapstate/pkg/activity"
)

// State is the surface shared by stores and substates.
type State interface {
	Readable() *Readable
	Writable() *Writable
	Readonly() *Readable
	Subscribe(fn Subscription) func()
	Track(observer Observer, reaction Reaction, opts ...TrackOption) (func(), error)
	UnsubscribeAll()
	UntrackAll()
	Wait(ctx context.Context) error
}

// Store owns a state tree and notifies listeners about changes to it.
//
// A store is meant to be driven by one goroutine. Flushes run on the
// debounce timer goroutine; listeners run without internal locks held.
// Writes issued at any point of a flush, including from activity hooks and
// flush loggers, are rejected with ErrCircular. Only writes rejected while
// listeners are being notified fail the flush itself, so owners that write
// from several goroutines should still sequence bursts with Wait.
type Store struct {
	cfg     storeConfig
	emitter *activity.Emitter

	mu            sync.Mutex
	tree          map[string]any
	queue         []change
	queued        map[string]struct{}
	recording     *session
	flushing      bool // from queue handoff until the flush is logged
	dispatching   bool // while listeners of one path run
	flushErr      error
	sessions      []*session
	subscriptions []*subscription
	nextSub       uint64
	closed        bool

	debouncer *debounce.Debouncer
	tracks    disposers
	subs      disposers
}

type change struct {
	path    paths.Path
	old     any
	existed bool
}

var _ State = (*Store)(nil)

// New builds a store over a deep copy of tree. Leaves that are not groups
// are shared with the caller.
func New(tree map[string]any, opts ...Option) *Store {
	cfg := applyOptions(opts)
	s := &Store{
		cfg:    cfg,
		tree:   layering.Clone(tree),
		queued: make(map[string]struct{}),
		emitter: activity.NewEmitter(cfg.activityHooks,
			activity.WithStore(cfg.name),
			activity.WithChannel(cfg.channel),
			activity.WithActor(cfg.actor),
		),
	}
	s.debouncer = debounce.New(cfg.debounce, s.flush)
	return s
}

// FromLayers builds a store whose initial tree merges layers ordered from
// strongest to weakest.
func FromLayers(layers []map[string]any, opts ...Option) *Store {
	return New(layering.MergeLayers(layers...), opts...)
}

// FromYAML builds a store from a YAML document whose root is a mapping.
func FromYAML(data []byte, opts ...Option) (*Store, error) {
	tree, err := hydrate.ParseYAML(data)
	if err != nil {
		return nil, err
	}
	return New(tree, opts...), nil
}

// FromJSON builds a store from a JSON object.
func FromJSON(data []byte, opts ...Option) (*Store, error) {
	tree, err := hydrate.ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return New(tree, opts...), nil
}

// Name returns the label configured with WithName.
func (s *Store) Name() string {
	return s.cfg.name
}

// Readable returns the read only view of the whole tree.
func (s *Store) Readable() *Readable {
	return &Readable{core{store: s}}
}

// Readonly is an alias of Readable.
func (s *Store) Readonly() *Readable {
	return s.Readable()
}

// Writable returns the mutable view of the whole tree.
func (s *Store) Writable() *Writable {
	return &Writable{core{store: s}}
}

// Wait blocks until the flush covering every write issued so far has run
// and returns its error. Listeners must not call Wait.
func (s *Store) Wait(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	err := s.debouncer.Pending().Wait(ctx)
	if errors.Is(err, debounce.ErrStopped) {
		return ErrClosed
	}
	return err
}

// Close cancels any scheduled flush and disposes every subscription and
// tracking session. The tree stays readable and writable, but no listener
// runs again.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.sessions = nil
	s.subscriptions = nil
	s.queue = nil
	s.queued = make(map[string]struct{})
	s.mu.Unlock()

	s.debouncer.Stop()
	s.tracks.drain()
	s.subs.drain()
}

// Patch merges partial into the tree, creating groups as needed and
// replacing leaves that stand in the way. Every changed path is queued.
func (s *Store) Patch(partial map[string]any) error {
	leaves := layering.Leaves(layering.Clone(partial), nil)
	if len(leaves) == 0 {
		return nil
	}

	s.mu.Lock()
	if err := s.guardLocked(leaves[0].Path); err != nil {
		s.mu.Unlock()
		return err
	}
	changed := false
	for _, leaf := range leaves {
		target := leaf.Path
		old, existed := layering.Obtain(s.tree, target)
		if at, value, ok := layering.Blocking(s.tree, target); at != nil {
			target, old, existed = at, value, ok
		} else if group, isGroup := leaf.Value.(map[string]any); isGroup && len(group) == 0 && layering.IsGroup(old) {
			continue
		}
		layering.ForceSet(s.tree, leaf.Path, leaf.Value)
		if paths.Equal(target, leaf.Path) && existed && reflect.DeepEqual(old, leaf.Value) {
			continue
		}
		s.enqueueLocked(target, old, existed)
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.schedule()
	}
	return nil
}

// read resolves path and records it against the recording session.
func (s *Store) read(path paths.Path) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording != nil && len(path) > 0 {
		s.recording.next.Add(path)
	}
	return layering.Obtain(s.tree, path)
}

// peek resolves path without recording. Groups are returned as copies.
func (s *Store) peek(path paths.Path) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := layering.Obtain(s.tree, path)
	if group, isGroup := value.(map[string]any); isGroup {
		return layering.Clone(group), ok
	}
	return value, ok
}

// snapshot copies the group at path. When record is set the path and every
// leaf below it are recorded.
func (s *Store) snapshot(path paths.Path, record bool) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := layering.Obtain(s.tree, path)
	group, isGroup := value.(map[string]any)
	if record && s.recording != nil {
		if len(path) > 0 {
			s.recording.next.Add(path)
		}
		if isGroup {
			for _, leaf := range layering.Leaves(group, path) {
				s.recording.next.Add(leaf.Path)
			}
		}
	}
	if !ok || !isGroup {
		return nil, false
	}
	return layering.Clone(group), true
}

func (s *Store) keys(path paths.Path) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, _ := layering.Obtain(s.tree, path)
	group, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return sortedKeys(group)
}

// guardLocked rejects writes while a session records or a flush runs. A
// rejection during recording fails the session; one during dispatch fails
// the flush.
func (s *Store) guardLocked(path paths.Path) error {
	switch {
	case s.recording != nil:
		err := &CircularError{Path: path.Clone(), Phase: PhaseTracking}
		if s.recording.err == nil {
			s.recording.err = err
		}
		return err
	case s.flushing:
		err := &CircularError{Path: path.Clone(), Phase: PhaseFlush}
		if s.dispatching && s.flushErr == nil {
			s.flushErr = err
		}
		return err
	}
	return nil
}

func (s *Store) set(path paths.Path, value any) error {
	if len(path) == 0 {
		return &StructureError{Path: path, At: path}
	}
	// admission may read the store, so it runs before locking
	value = layering.CloneValue(value)

	s.mu.Lock()
	if err := s.guardLocked(path); err != nil {
		s.mu.Unlock()
		return err
	}
	old, existed := layering.Obtain(s.tree, path)
	if err := layering.Attempt(s.tree, path, value); err != nil {
		s.mu.Unlock()
		return structureError(path, err)
	}
	changed := !existed || !reflect.DeepEqual(old, value)
	if changed {
		s.enqueueLocked(path, old, existed)
	}
	s.mu.Unlock()

	if changed {
		s.schedule()
	}
	return nil
}

func (s *Store) remove(path paths.Path) error {
	if len(path) == 0 {
		return &StructureError{Path: path, At: path}
	}
	s.mu.Lock()
	if err := s.guardLocked(path); err != nil {
		s.mu.Unlock()
		return err
	}
	old, existed := layering.Obtain(s.tree, path)
	removed, err := layering.Remove(s.tree, path)
	if err != nil {
		s.mu.Unlock()
		return structureError(path, err)
	}
	if removed {
		s.enqueueLocked(path, old, existed)
	}
	s.mu.Unlock()

	if removed {
		s.schedule()
	}
	return nil
}

// enqueueLocked queues path once per flush, keeping the value it held
// before the first write of the burst.
func (s *Store) enqueueLocked(path paths.Path, old any, existed bool) {
	key := path.Key()
	if _, ok := s.queued[key]; ok {
		return
	}
	s.queued[key] = struct{}{}
	s.queue = append(s.queue, change{path: path.Clone(), old: old, existed: existed})
}

func (s *Store) schedule() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.debouncer.Trigger()
	}
}

func structureError(path paths.Path, err error) error {
	var unsuitable *layering.UnsuitableError
	if errors.As(err, &unsuitable) {
		return &StructureError{Path: path.Clone(), At: unsuitable.At}
	}
	return err
}
