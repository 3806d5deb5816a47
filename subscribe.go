package snapstate

// Subscription is called once for every distinct path of a flush,
// regardless of what it reads.
type Subscription func(*Readable)

type subscription struct {
	id uint64
	fn Subscription
}

// Subscribe registers fn and returns its disposer.
func (s *Store) Subscribe(fn Subscription) func() {
	if fn == nil {
		return func() {}
	}
	return s.subs.add(s.subscribe(fn))
}

// UnsubscribeAll disposes every subscription registered through this store
// handle.
func (s *Store) UnsubscribeAll() {
	s.subs.drain()
}

func (s *Store) subscribe(fn Subscription) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	sub := &subscription{id: s.nextSub, fn: fn}
	s.subscriptions = append(s.subscriptions, sub)
	return func() { s.unsubscribe(sub.id) }
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscriptions {
		if sub.id == id {
			s.subscriptions = append(s.subscriptions[:i:i], s.subscriptions[i+1:]...)
			return
		}
	}
}

func (s *Store) subscribed(sub *subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candidate := range s.subscriptions {
		if candidate == sub {
			return true
		}
	}
	return false
}
