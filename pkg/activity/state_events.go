package activity

import "time"

const (
	VerbCreated = "state.created"
	VerbUpdated = "state.updated"
	VerbDeleted = "state.deleted"
)

// Change is one flushed path with its value before the burst of writes and
// its value once the flush ran.
type Change struct {
	Path    string
	Before  any
	After   any
	Existed bool
	Exists  bool
	At      time.Time
}

// Verb classifies the change. A path that was created and removed again
// within one burst has no verb.
func (c Change) Verb() (string, bool) {
	switch {
	case !c.Existed && c.Exists:
		return VerbCreated, true
	case c.Existed && !c.Exists:
		return VerbDeleted, true
	case c.Existed && c.Exists:
		return VerbUpdated, true
	}
	return "", false
}

// Event converts the change, reporting false when it has no verb. Before is
// left nil for created paths and After for deleted ones.
func (c Change) Event() (Event, bool) {
	verb, ok := c.Verb()
	if !ok {
		return Event{}, false
	}
	event := Event{Verb: verb, Path: c.Path, OccurredAt: c.At}
	if c.Existed {
		event.Before = c.Before
	}
	if c.Exists {
		event.After = c.After
	}
	return event, true
}
