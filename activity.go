package snapstate

import (
	"github.com/goliatone/go-snapstate/pkg/activity"
)

// WithActivityHooks emits one activity event per flushed path to hooks.
// Nil hooks are dropped. Hook errors never fail a flush; they are reported
// through FlushLogEvent.ActivityErr.
func WithActivityHooks(hooks activity.Hooks) Option {
	compacted := hooks.Compact()
	return func(cfg *storeConfig) {
		cfg.activityHooks = compacted
	}
}

// WithActivityChannel sets the channel stamped on emitted events. The
// default is activity.DefaultChannel.
func WithActivityChannel(channel string) Option {
	return func(cfg *storeConfig) {
		cfg.channel = channel
	}
}

// WithActivityActor stamps actor on every emitted event.
func WithActivityActor(actor activity.Actor) Option {
	return func(cfg *storeConfig) {
		cfg.actor = actor
	}
}

// ActivityHooks returns a copy of the configured activity hooks.
func (s *Store) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return s.cfg.activityHooks.Compact()
}
