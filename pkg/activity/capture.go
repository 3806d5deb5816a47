package activity

import (
	"context"
	"sync"
)

// CaptureHook keeps every event it receives. Err, when set, is returned
// from each Notify.
type CaptureHook struct {
	Err error

	mu     sync.Mutex
	events []Event
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	return h.Err
}

// Events returns the captured events in arrival order.
func (h *CaptureHook) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// Paths lists the path of every captured event.
func (h *CaptureHook) Paths() []string {
	events := h.Events()
	out := make([]string, len(events))
	for i, event := range events {
		out[i] = event.Path
	}
	return out
}
