package snapstate

import (
	"errors"
	"reflect"
	"testing"
)

func grabKey(key string) Grabber {
	return func(r *Readable) *Readable { return r.Group(key) }
}

func TestSubBindsToGrabbedPath(t *testing.T) {
	s := newTestStore(t, map[string]any{
		"alpha": map[string]any{"bravo": map[string]any{"charlie": 1}},
	})

	sub, err := Sub(s, grabKey("alpha"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sub.Path().String(); got != "alpha" {
		t.Fatalf("unexpected substate path %q", got)
	}
	if got := sub.Readable().At("bravo", "charlie"); got != 1 {
		t.Fatalf("expected scoped read, got %v", got)
	}

	if err := sub.Writable().Group("bravo").Set("charlie", 2); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if got := s.Readable().At("alpha", "bravo", "charlie"); got != 2 {
		t.Fatalf("expected write through substate to reach the root, got %v", got)
	}
	if err := sub.Readonly().Dynamic().Assign("x", 1); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected readonly substate view, got %v", err)
	}
}

func TestSubRejectsMissingGroup(t *testing.T) {
	s := newTestStore(t, map[string]any{"leaf": 1})

	if _, err := Sub(s, grabKey("leaf")); !errors.Is(err, ErrStructure) {
		t.Fatalf("expected ErrStructure, got %v", err)
	}
	other := newTestStore(t, map[string]any{"x": map[string]any{}})
	if _, err := Sub(s, func(*Readable) *Readable { return other.Readable().Group("x") }); err == nil {
		t.Fatalf("expected grabber returning a foreign view to fail")
	}
}

func TestSubSubscribeFollowsSubtree(t *testing.T) {
	s := newTestStore(t, map[string]any{
		"alpha": map[string]any{"bravo": 1},
		"other": 1,
	})
	sub, err := Sub(s, grabKey("alpha"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var seen []any
	sub.Subscribe(func(r *Readable) {
		seen = append(seen, r.Get("bravo"))
	})

	_ = s.Writable().Set("other", 2)
	mustFlush(t, s)
	if len(seen) != 0 {
		t.Fatalf("expected writes outside the subtree to be ignored, got %v", seen)
	}

	_ = sub.Writable().Set("bravo", 2)
	mustFlush(t, s)
	_ = s.Writable().Set("alpha", map[string]any{"bravo": 3})
	mustFlush(t, s)

	if !reflect.DeepEqual(seen, []any{2, 3}) {
		t.Fatalf("unexpected substate notifications %v", seen)
	}
}

func TestSubTrackReadsThroughScope(t *testing.T) {
	s := newTestStore(t, map[string]any{
		"alpha": map[string]any{"bravo": 1, "charlie": 1},
	})
	sub, err := Sub(s, grabKey("alpha"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var seen []any
	if _, err := sub.Track(func(r *Readable) any { return r.Get("bravo") }, func(v any) {
		seen = append(seen, v)
	}); err != nil {
		t.Fatalf("unexpected track error: %v", err)
	}

	_ = sub.Writable().Set("charlie", 2)
	mustFlush(t, sub)
	_ = sub.Writable().Set("bravo", 2)
	mustFlush(t, sub)

	if !reflect.DeepEqual(seen, []any{2}) {
		t.Fatalf("unexpected reactions %v", seen)
	}

	sub.Dispose()
	_ = sub.Writable().Set("bravo", 3)
	mustFlush(t, sub)
	if len(seen) != 1 {
		t.Fatalf("expected Dispose to release substate sessions")
	}
}

func TestOrphanedSubstateRefusesWrites(t *testing.T) {
	s := newTestStore(t, map[string]any{
		"alpha": map[string]any{"bravo": map[string]any{"charlie": 1}},
	})
	sub, err := Sub(s, func(r *Readable) *Readable { return r.Group("alpha").Group("bravo") })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Writable().Set("alpha", "gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sub.Readable().Get("charlie"); got != nil {
		t.Fatalf("expected orphaned substate to read nil, got %v", got)
	}
	err = sub.Writable().Set("charlie", 2)
	var structure *StructureError
	if !errors.As(err, &structure) {
		t.Fatalf("expected StructureError, got %v", err)
	}
	if got := structure.At.String(); got != "alpha" {
		t.Fatalf("expected error to name alpha, got %q", got)
	}
}

func TestNestedSubstates(t *testing.T) {
	s := newTestStore(t, map[string]any{
		"alpha": map[string]any{"bravo": map[string]any{"charlie": 1}},
	})
	outer, err := Sub(s, grabKey("alpha"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inner, err := Sub(outer, grabKey("bravo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.Path().String(); got != "alpha.bravo" {
		t.Fatalf("unexpected nested path %q", got)
	}
	var seen []any
	inner.Subscribe(func(r *Readable) { seen = append(seen, r.Get("charlie")) })

	_ = inner.Writable().Set("charlie", 2)
	mustFlush(t, inner)
	if !reflect.DeepEqual(seen, []any{2}) {
		t.Fatalf("unexpected nested notifications %v", seen)
	}
	inner.UnsubscribeAll()
	_ = inner.Writable().Set("charlie", 3)
	mustFlush(t, inner)
	if len(seen) != 1 {
		t.Fatalf("expected UnsubscribeAll to release nested subscriptions")
	}
}

func TestRestrictHidesWritable(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1})
	restricted := Restrict(s)

	if _, ok := any(restricted).(interface{ Writable() *Writable }); ok {
		t.Fatalf("expected restricted state to have no writable view")
	}
	var seen []any
	if _, err := restricted.Track(func(r *Readable) any { return r.Get("a") }, func(v any) {
		seen = append(seen, v)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = s.Writable().Set("a", 2)
	mustFlush(t, restricted)
	if !reflect.DeepEqual(seen, []any{2}) {
		t.Fatalf("unexpected restricted reactions %v", seen)
	}
	if err := restricted.Readonly().Dynamic().Assign("a", 3); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestSubSubscribeIgnoresSiblingsOfScope(t *testing.T) {
	s := newTestStore(t, map[string]any{
		"group": map[string]any{
			"inner": map[string]any{"value": 1},
			"other": 0,
		},
	})
	outer, err := Sub(s, grabKey("group"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nested, err := Sub(outer, grabKey("inner"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deep, err := Sub(s, func(r *Readable) *Readable { return r.Group("group").Group("inner") })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var nestedCalls, deepCalls int
	nested.Subscribe(func(*Readable) { nestedCalls++ })
	deep.Subscribe(func(*Readable) { deepCalls++ })

	_ = s.Writable().Group("group").Set("other", 1)
	mustFlush(t, s)
	if nestedCalls != 0 || deepCalls != 0 {
		t.Fatalf("expected sibling writes to be ignored, got nested=%d deep=%d", nestedCalls, deepCalls)
	}

	_ = s.Writable().Group("group").Group("inner").Set("value", 2)
	mustFlush(t, s)
	if nestedCalls != 1 || deepCalls != 1 {
		t.Fatalf("expected writes inside the scope to fire, got nested=%d deep=%d", nestedCalls, deepCalls)
	}

	_ = s.Writable().Set("group", map[string]any{"inner": map[string]any{"value": 3}})
	mustFlush(t, s)
	if nestedCalls != 2 || deepCalls != 2 {
		t.Fatalf("expected replacing an ancestor to fire, got nested=%d deep=%d", nestedCalls, deepCalls)
	}
}

func TestSubTrySubscribeReportsRejection(t *testing.T) {
	s := newTestStore(t, map[string]any{"alpha": map[string]any{"bravo": 1}})
	sub, err := Sub(s, grabKey("alpha"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sub.TrySubscribe(nil); err == nil {
		t.Fatalf("expected a nil subscription to be refused")
	}

	s.Close()
	if _, err := sub.TrySubscribe(func(*Readable) {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	sub.Subscribe(func(*Readable) {})()
}
