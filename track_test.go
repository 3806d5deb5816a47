package snapstate

import (
	"errors"
	"reflect"
	"testing"
)

func TestTrackRunsObserverImmediately(t *testing.T) {
	s := newTestStore(t, map[string]any{"alpha": map[string]any{"bravo": 1}})
	runs := 0

	_, err := s.Track(func(r *Readable) any {
		runs++
		return r.At("alpha", "bravo")
	}, nil)
	if err != nil {
		t.Fatalf("unexpected track error: %v", err)
	}
	if runs != 1 {
		t.Fatalf("expected observer to run once on registration, got %d", runs)
	}
}

func TestTrackMatchesReadPathsAndDescendants(t *testing.T) {
	s := newTestStore(t, map[string]any{
		"alpha": map[string]any{"bravo": 1, "charlie": 2},
	})
	var seen []any
	_, err := s.Track(func(r *Readable) any {
		return r.At("alpha", "bravo")
	}, func(value any) {
		seen = append(seen, value)
	})
	if err != nil {
		t.Fatalf("unexpected track error: %v", err)
	}

	alpha := s.Writable().Group("alpha")
	_ = alpha.Set("charlie", 3)
	mustFlush(t, s)
	if len(seen) != 0 {
		t.Fatalf("expected sibling write to be ignored, got %v", seen)
	}

	_ = alpha.Set("bravo", 5)
	mustFlush(t, s)
	_ = s.Writable().Set("alpha", map[string]any{"bravo": 7})
	mustFlush(t, s)
	if !reflect.DeepEqual(seen, []any{5, 7}) {
		t.Fatalf("expected reactions for the read path and its parent, got %v", seen)
	}
}

func TestTrackFlipMatchesDescendantWrites(t *testing.T) {
	s := newTestStore(t, map[string]any{"alpha": map[string]any{"bravo": 1}})
	plain, flipped := 0, 0
	observer := func(r *Readable) any { return r.Group("alpha") }

	if _, err := s.Track(observer, func(any) { plain++ }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Track(observer, func(any) { flipped++ }, WithFlip()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = s.Writable().Group("alpha").Set("bravo", 2)
	mustFlush(t, s)
	if plain != 0 {
		t.Fatalf("expected default matching to ignore deeper writes, got %d", plain)
	}
	if flipped != 1 {
		t.Fatalf("expected flipped session to fire for a deeper write, got %d", flipped)
	}
}

func TestTrackReplacesReadSetOnEveryRun(t *testing.T) {
	s := newTestStore(t, map[string]any{"flag": false, "a": 1, "b": 1})
	var seen []any
	_, err := s.Track(func(r *Readable) any {
		if r.Get("flag") == true {
			return r.Get("a")
		}
		return r.Get("b")
	}, func(value any) { seen = append(seen, value) })
	if err != nil {
		t.Fatalf("unexpected track error: %v", err)
	}
	w := s.Writable()

	_ = w.Set("a", 2)
	mustFlush(t, s)
	if len(seen) != 0 {
		t.Fatalf("expected unread path to be ignored, got %v", seen)
	}

	_ = w.Set("flag", true)
	mustFlush(t, s)
	_ = w.Set("b", 5)
	mustFlush(t, s)
	_ = w.Set("a", 3)
	mustFlush(t, s)

	if !reflect.DeepEqual(seen, []any{2, 3}) {
		t.Fatalf("expected read set to follow the branch taken, got %v", seen)
	}
}

func TestTrackWithoutReactionRerunsObserver(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1})
	var observed []any
	_, err := s.Track(func(r *Readable) any {
		observed = append(observed, r.Get("a"))
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected track error: %v", err)
	}

	_ = s.Writable().Set("a", 2)
	mustFlush(t, s)
	if !reflect.DeepEqual(observed, []any{1, 2}) {
		t.Fatalf("unexpected observer runs %v", observed)
	}
}

func TestTrackDisposeAndUntrackAll(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1})
	first, second := 0, 0
	dispose, _ := s.Track(func(r *Readable) any { return r.Get("a") }, func(any) { first++ })
	s.Track(func(r *Readable) any { return r.Get("a") }, func(any) { second++ })

	dispose()
	_ = s.Writable().Set("a", 2)
	mustFlush(t, s)
	if first != 0 || second != 1 {
		t.Fatalf("unexpected reactions first=%d second=%d", first, second)
	}

	s.UntrackAll()
	_ = s.Writable().Set("a", 3)
	mustFlush(t, s)
	if second != 1 {
		t.Fatalf("expected UntrackAll to dispose every session")
	}
}

func TestWriteWhileTrackingIsCircular(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1})
	var writeErr error

	_, err := s.Track(func(r *Readable) any {
		writeErr = s.Writable().Set("b", 2)
		return r.Get("a")
	}, nil)
	if !errors.Is(err, ErrCircular) {
		t.Fatalf("expected Track to fail with ErrCircular, got %v", err)
	}
	var circular *CircularError
	if !errors.As(writeErr, &circular) || circular.Phase != PhaseTracking {
		t.Fatalf("expected tracking-phase CircularError, got %v", writeErr)
	}
	if s.Readable().Has("b") {
		t.Fatalf("expected rejected write to leave the tree untouched")
	}

	_ = s.Writable().Set("a", 2)
	mustFlush(t, s)
}

func TestTrackInsideObserverIsCircular(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1})
	var innerErr error

	_, err := s.Track(func(r *Readable) any {
		_, innerErr = s.Track(func(*Readable) any { return nil }, nil)
		return r.Get("a")
	}, nil)
	if err != nil {
		t.Fatalf("unexpected outer error: %v", err)
	}
	if !errors.Is(innerErr, ErrCircular) {
		t.Fatalf("expected nested Track to fail with ErrCircular, got %v", innerErr)
	}
}

func TestWriteDuringFlushFailsTheFlush(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1})
	var writeErr error
	s.Subscribe(func(*Readable) {
		writeErr = s.Writable().Set("echo", true)
	})

	_ = s.Writable().Set("a", 2)
	err := waitFlush(t, s)

	var circular *CircularError
	if !errors.As(err, &circular) || circular.Phase != PhaseFlush {
		t.Fatalf("expected flush-phase CircularError from Wait, got %v", err)
	}
	if got := circular.Path.String(); got != "echo" {
		t.Fatalf("expected error to name the written path, got %q", got)
	}
	if !errors.Is(writeErr, ErrCircular) {
		t.Fatalf("expected the write itself to fail, got %v", writeErr)
	}
	if s.Readable().Has("echo") {
		t.Fatalf("expected rejected write to leave the tree untouched")
	}
}

func TestReactionWriteFailsTheFlush(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1})
	_, err := s.Track(func(r *Readable) any { return r.Get("a") }, func(any) {
		_ = s.Writable().Set("b", 1)
	})
	if err != nil {
		t.Fatalf("unexpected track error: %v", err)
	}

	_ = s.Writable().Set("a", 2)
	if err := waitFlush(t, s); !errors.Is(err, ErrCircular) {
		t.Fatalf("expected ErrCircular, got %v", err)
	}
}

func TestListenerPanicFailsTheFlush(t *testing.T) {
	s := newTestStore(t, map[string]any{"a": 1, "b": 1})
	boom := errors.New("boom")
	calls := 0
	s.Subscribe(func(*Readable) {
		calls++
		panic(boom)
	})

	w := s.Writable()
	_ = w.Set("a", 2)
	_ = w.Set("b", 2)
	err := waitFlush(t, s)

	if !errors.Is(err, ErrListener) || !errors.Is(err, boom) {
		t.Fatalf("expected ListenerError wrapping the panic, got %v", err)
	}
	var listener *ListenerError
	if !errors.As(err, &listener) || listener.Path.String() != "a" {
		t.Fatalf("expected error to name the first path, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the flush to stop at the failing path, got %d calls", calls)
	}

	s.UnsubscribeAll()
	_ = w.Set("a", 3)
	mustFlush(t, s)
}

func TestObserverPanicRejectsTrack(t *testing.T) {
	s := newTestStore(t, map[string]any{})

	_, err := s.Track(func(*Readable) any { panic("observer") }, nil)
	var listener *ListenerError
	if !errors.As(err, &listener) || listener.Recovered != "observer" {
		t.Fatalf("expected ListenerError, got %v", err)
	}
}

func TestWatchTypesResults(t *testing.T) {
	s := newTestStore(t, map[string]any{"count": 1})
	var seen []int

	_, err := Watch(s, func(r *Readable) int {
		count, _ := r.Get("count").(int)
		return count * 10
	}, func(value int) {
		seen = append(seen, value)
	})
	if err != nil {
		t.Fatalf("unexpected watch error: %v", err)
	}

	_ = s.Writable().Set("count", 2)
	mustFlush(t, s)
	if !reflect.DeepEqual(seen, []int{20}) {
		t.Fatalf("unexpected watch results %v", seen)
	}
}
