package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
)

// subscription is one live query on a collection.
//
// deliverMu serializes deliveries so onNext never runs concurrently for
// one subscription, and so a later delivery always reflects a database
// state at least as new as an earlier one.
type subscription struct {
	id         int64
	collection string
	filter     remote.Filter
	onNext     func([]doc.Entity)

	deliverMu sync.Mutex
	closed    atomic.Bool
}

// close stops future deliveries. It does not wait for one already running,
// so it is safe to call from inside onNext.
func (sub *subscription) close() {
	sub.closed.Store(true)
}

// Subscribe registers onNext for the filtered collection and delivers the
// current array before returning. unsubscribe is idempotent; once it
// returns no new delivery starts.
//
// onNext runs while the subscription's delivery lock is held; it must not
// write to the same collection synchronously.
func (c *Collection) Subscribe(filter remote.Filter, onNext func([]doc.Entity)) (func(), error) {
	if onNext == nil {
		return nil, fmt.Errorf("subscribe %s: nil callback", c.name)
	}
	// Validate the filter up front so a bad filter fails here, not on
	// every delivery.
	if _, err := c.store.query(context.Background(), c.name, filter); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", c.name, err)
	}

	s := c.store
	sub := &subscription{
		collection: c.name,
		filter:     cloneFilter(filter),
		onNext:     onNext,
	}

	s.mu.Lock()
	s.nextSub++
	sub.id = s.nextSub
	if s.subs[c.name] == nil {
		s.subs[c.name] = make(map[int64]*subscription)
	}
	s.subs[c.name][sub.id] = sub
	s.mu.Unlock()

	s.deliver(sub)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[sub.collection], sub.id)
			s.mu.Unlock()
			sub.close()
		})
	}
	return unsubscribe, nil
}

// Subscribers returns the number of live subscriptions on a collection.
func (s *Store) Subscribers(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[collection])
}

// notify delivers fresh snapshots to every subscription on collection.
// Called after a write commits, outside any transaction.
func (s *Store) notify(collection string) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs[collection]))
	for _, sub := range s.subs[collection] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.deliver(sub)
	}
}

// deliver queries the subscription's filter and hands the result to its
// callback. Query failures are logged; the subscription stays alive.
func (s *Store) deliver(sub *subscription) {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()

	if sub.closed.Load() {
		return
	}

	entities, err := s.query(context.Background(), sub.collection, sub.filter)
	if err != nil {
		s.logger.Error("subscription delivery failed",
			"collection", sub.collection,
			"subscription", sub.id,
			"error", err)
		return
	}
	sub.onNext(entities)
}

func cloneFilter(f remote.Filter) remote.Filter {
	out := make(remote.Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
