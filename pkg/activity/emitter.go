package activity

import (
	"context"
	"strings"
)

// DefaultChannel stamps events emitted without a channel.
const DefaultChannel = "snapstate"

// Emitter stamps a store's defaults onto events before fanning them out.
type Emitter struct {
	hooks   Hooks
	store   string
	channel string
	actor   Actor
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithStore names the store on every event.
func WithStore(name string) EmitterOption {
	return func(e *Emitter) {
		e.store = strings.TrimSpace(name)
	}
}

// WithChannel sets the channel used when an event carries none.
func WithChannel(channel string) EmitterOption {
	return func(e *Emitter) {
		if channel = strings.TrimSpace(channel); channel != "" {
			e.channel = channel
		}
	}
}

// WithActor sets the actor used when an event carries none.
func WithActor(actor Actor) EmitterOption {
	return func(e *Emitter) {
		e.actor = actor.trimmed()
	}
}

// NewEmitter builds an emitter over the non-nil entries of hooks.
func NewEmitter(hooks Hooks, opts ...EmitterOption) *Emitter {
	e := &Emitter{hooks: hooks.Compact(), channel: DefaultChannel}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Enabled reports whether any hook is attached.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit fills the defaults missing from event and notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Store) == "" {
		event.Store = e.store
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if event.Actor.IsZero() {
		event.Actor = e.actor
	}
	return e.hooks.Notify(ctx, event)
}
