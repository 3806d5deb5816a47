// Package activity turns flushed state changes into audit events and fans
// them out to hooks.
package activity

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
)

// Actor identifies who a store acts for. IDs stay strings so callers are
// free to pick their own identifier scheme.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

func (a Actor) trimmed() Actor {
	return Actor{
		ActorID:  strings.TrimSpace(a.ActorID),
		UserID:   strings.TrimSpace(a.UserID),
		TenantID: strings.TrimSpace(a.TenantID),
	}
}

// IsZero reports whether no identifier is set.
func (a Actor) IsZero() bool {
	return a.trimmed() == Actor{}
}

// Event is the change of one path as observed when a flush settles.
type Event struct {
	Verb       string
	Store      string
	Path       string
	Channel    string
	Before     any
	After      any
	Actor      Actor
	Metadata   map[string]any
	OccurredAt time.Time
}

// Valid reports whether the event names a verb and a path.
func (e Event) Valid() bool {
	return e.Verb != "" && e.Path != ""
}

// Normalize trims identifiers, copies metadata and stamps OccurredAt when it
// is missing.
func Normalize(event Event) Event {
	out := event
	out.Verb = strings.TrimSpace(event.Verb)
	out.Store = strings.TrimSpace(event.Store)
	out.Path = strings.TrimSpace(event.Path)
	out.Channel = strings.TrimSpace(event.Channel)
	out.Actor = event.Actor.trimmed()
	if len(event.Metadata) > 0 {
		out.Metadata = maps.Clone(event.Metadata)
	} else {
		out.Metadata = nil
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// Hook receives normalized events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc lets a plain function act as a Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks is an ordered fan-out of hooks.
type Hooks []Hook

// Compact copies h without nil entries, returning nil when nothing is left.
func (h Hooks) Compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

// Notify hands a normalized copy of event to every hook. Invalid events are
// dropped; hook errors are joined and never stop the fan-out.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	event = Normalize(event)
	if len(h) == 0 || !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
