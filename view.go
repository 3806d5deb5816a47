package snapstate

import (
	"sort"

	"github.com/goliatone/go-snapstate/layering"
	"github.com/goliatone/go-snapstate/paths"
)

// core binds a view to a store path. Every access resolves the path against
// the live tree, so a view outlives replacements of its ancestors and reads
// as empty while they are not groups.
type core struct {
	store *Store
	path  paths.Path
}

func (c core) child(key string) paths.Path {
	return c.path.Append(key)
}

// resolve reads key under the view, recording the access.
func (c core) resolve(key string) (value any, group bool, ok bool) {
	value, ok = c.store.read(c.child(key))
	if !ok {
		return nil, false, false
	}
	return value, layering.IsGroup(value), true
}

func (c core) exists() bool {
	value, ok := c.store.peek(c.path)
	return ok && layering.IsGroup(value)
}

func (c core) admit() any {
	snapshot, ok := c.store.snapshot(c.path, false)
	if !ok {
		return nil
	}
	return snapshot
}

// Readable is an immutable projection of a subtree. Methods are safe on a
// nil receiver so lookups can be chained through missing groups.
type Readable struct {
	core
}

// Path returns the location of the view.
func (r *Readable) Path() paths.Path {
	if r == nil {
		return nil
	}
	return r.path.Clone()
}

// Store returns the store backing the view.
func (r *Readable) Store() *Store {
	if r == nil {
		return nil
	}
	return r.store
}

// Lookup returns the value at key and whether it exists. Groups come back
// as nested *Readable views.
func (r *Readable) Lookup(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	value, group, ok := r.resolve(key)
	if !ok {
		return nil, false
	}
	if group {
		return &Readable{core{store: r.store, path: r.child(key)}}, true
	}
	return value, true
}

// Get is Lookup without the presence flag.
func (r *Readable) Get(key string) any {
	value, _ := r.Lookup(key)
	return value
}

// Group returns the nested view at key, or nil when key is not a group.
func (r *Readable) Group(key string) *Readable {
	group, _ := r.Get(key).(*Readable)
	return group
}

// At walks keys one by one, recording every step.
func (r *Readable) At(keys ...string) any {
	var current any = r
	for _, key := range keys {
		view, ok := current.(*Readable)
		if !ok || view == nil {
			return nil
		}
		current = view.Get(key)
	}
	return current
}

// Has reports whether key exists. The access is recorded.
func (r *Readable) Has(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Keys lists the keys of the subtree in sorted order. Enumeration is not
// recorded; read the keys to depend on them.
func (r *Readable) Keys() []string {
	if r == nil {
		return nil
	}
	return r.store.keys(r.path)
}

// Len returns the number of keys.
func (r *Readable) Len() int {
	return len(r.Keys())
}

// Exists reports whether the view still points at a group.
func (r *Readable) Exists() bool {
	return r != nil && r.exists()
}

// Snapshot deep copies the subtree and records every path in it.
func (r *Readable) Snapshot() map[string]any {
	if r == nil {
		return nil
	}
	snapshot, _ := r.store.snapshot(r.path, true)
	return snapshot
}

// AdmitIntoState stores a detached copy when the view is written into a
// tree, never the view itself.
func (r *Readable) AdmitIntoState() any {
	if r == nil {
		return nil
	}
	return r.admit()
}

// Dynamic returns the reflective view used by script bindings.
func (r *Readable) Dynamic() View {
	if r == nil {
		return nil
	}
	return readableView{r}
}

// Writable is the mutable projection of a subtree.
type Writable struct {
	core
}

// Path returns the location of the view.
func (w *Writable) Path() paths.Path {
	if w == nil {
		return nil
	}
	return w.path.Clone()
}

// Store returns the store backing the view.
func (w *Writable) Store() *Store {
	if w == nil {
		return nil
	}
	return w.store
}

// Readable returns the read only view of the same subtree.
func (w *Writable) Readable() *Readable {
	if w == nil {
		return nil
	}
	return &Readable{w.core}
}

// Lookup returns the value at key and whether it exists. Groups come back
// as nested *Writable views.
func (w *Writable) Lookup(key string) (any, bool) {
	if w == nil {
		return nil, false
	}
	value, group, ok := w.resolve(key)
	if !ok {
		return nil, false
	}
	if group {
		return &Writable{core{store: w.store, path: w.child(key)}}, true
	}
	return value, true
}

// Get is Lookup without the presence flag.
func (w *Writable) Get(key string) any {
	value, _ := w.Lookup(key)
	return value
}

// Group returns the nested view at key, or nil when key is not a group.
func (w *Writable) Group(key string) *Writable {
	group, _ := w.Get(key).(*Writable)
	return group
}

// Has reports whether key exists.
func (w *Writable) Has(key string) bool {
	_, ok := w.Lookup(key)
	return ok
}

// Keys lists the keys of the subtree in sorted order.
func (w *Writable) Keys() []string {
	if w == nil {
		return nil
	}
	return w.store.keys(w.path)
}

// Len returns the number of keys.
func (w *Writable) Len() int {
	return len(w.Keys())
}

// Exists reports whether the view still points at a group.
func (w *Writable) Exists() bool {
	return w != nil && w.exists()
}

// Snapshot deep copies the subtree and records every path in it.
func (w *Writable) Snapshot() map[string]any {
	return w.Readable().Snapshot()
}

// AdmitIntoState stores a detached copy of the subtree.
func (w *Writable) AdmitIntoState() any {
	if w == nil {
		return nil
	}
	return w.admit()
}

// Set stores value at key and queues a notification when the value
// changed. Every ancestor of key must already be a group.
func (w *Writable) Set(key string, value any) error {
	if w == nil {
		return &StructureError{Path: paths.Path{key}, At: nil}
	}
	return w.store.set(w.child(key), value)
}

// SetPath stores value at a path relative to the view.
func (w *Writable) SetPath(path paths.Path, value any) error {
	if w == nil {
		return &StructureError{Path: path, At: nil}
	}
	return w.store.set(w.path.Append(path...), value)
}

// Delete removes key. Removing a missing key is a no-op.
func (w *Writable) Delete(key string) error {
	if w == nil {
		return &StructureError{Path: paths.Path{key}, At: nil}
	}
	return w.store.remove(w.child(key))
}

// Update replaces the value at key with fn applied to the current one.
// Groups are passed to fn as detached maps.
func (w *Writable) Update(key string, fn func(current any) any) error {
	if w == nil {
		return &StructureError{Path: paths.Path{key}, At: nil}
	}
	current, _ := w.store.peek(w.child(key))
	return w.Set(key, fn(current))
}

// Dynamic returns the reflective view used by script bindings.
func (w *Writable) Dynamic() View {
	if w == nil {
		return nil
	}
	return writableView{w}
}

// View is the reflective surface of a subtree. Readable views reject
// Assign and Remove with a ReadOnlyError naming the full path.
type View interface {
	Path() paths.Path
	Lookup(key string) (any, bool)
	Keys() []string
	Assign(key string, value any) error
	Remove(key string) error
}

type readableView struct {
	r *Readable
}

func (v readableView) Path() paths.Path { return v.r.Path() }
func (v readableView) Keys() []string   { return v.r.Keys() }

func (v readableView) Lookup(key string) (any, bool) {
	value, ok := v.r.Lookup(key)
	if nested, isView := value.(*Readable); isView {
		return readableView{nested}, ok
	}
	return value, ok
}

func (v readableView) Assign(key string, _ any) error {
	return &ReadOnlyError{Path: v.r.child(key)}
}

func (v readableView) Remove(key string) error {
	return &ReadOnlyError{Path: v.r.child(key)}
}

func (v readableView) AdmitIntoState() any { return v.r.AdmitIntoState() }

type writableView struct {
	w *Writable
}

func (v writableView) Path() paths.Path { return v.w.Path() }
func (v writableView) Keys() []string   { return v.w.Keys() }

func (v writableView) Lookup(key string) (any, bool) {
	value, ok := v.w.Lookup(key)
	if nested, isView := value.(*Writable); isView {
		return writableView{nested}, ok
	}
	return value, ok
}

func (v writableView) Assign(key string, value any) error { return v.w.Set(key, value) }
func (v writableView) Remove(key string) error            { return v.w.Delete(key) }
func (v writableView) AdmitIntoState() any                 { return v.w.AdmitIntoState() }

func sortedKeys(group map[string]any) []string {
	keys := make([]string, 0, len(group))
	for key := range group {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
