package snapstate

import "context"

// Restricted exposes the read and listen surface of a state without its
// writable view.
type Restricted struct {
	state State
}

// Restrict hides the writable view of state.
func Restrict(state State) *Restricted {
	return &Restricted{state: state}
}

func (r *Restricted) Readable() *Readable { return r.state.Readable() }
func (r *Restricted) Readonly() *Readable { return r.state.Readonly() }

func (r *Restricted) Subscribe(fn Subscription) func() {
	return r.state.Subscribe(fn)
}

func (r *Restricted) Track(observer Observer, reaction Reaction, opts ...TrackOption) (func(), error) {
	return r.state.Track(observer, reaction, opts...)
}

func (r *Restricted) UnsubscribeAll() { r.state.UnsubscribeAll() }
func (r *Restricted) UntrackAll()     { r.state.UntrackAll() }

func (r *Restricted) Wait(ctx context.Context) error {
	return r.state.Wait(ctx)
}
