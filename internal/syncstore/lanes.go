package syncstore

import (
	"context"
	"slices"
	"sync"
)

// lanes serializes mutations per entity id.
//
// Each id has at most one holder. Later acquirers wait in FIFO order and
// ownership is handed directly to the next waiter on release, so
// mutations on one id resolve in the order they were issued. Waiting is
// context-aware: a cancelled waiter leaves the queue without ever holding
// the lane.
type lanes struct {
	mu   sync.Mutex
	held map[string]*lane
}

type lane struct {
	waiters []chan struct{}
}

func newLanes() *lanes {
	return &lanes{held: make(map[string]*lane)}
}

// acquire blocks until the caller holds the lane for id or ctx is done.
func (l *lanes) acquire(ctx context.Context, id string) error {
	l.mu.Lock()
	ln, busy := l.held[id]
	if !busy {
		l.held[id] = &lane{}
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	ln.waiters = append(ln.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		if i := slices.Index(ln.waiters, ch); i >= 0 {
			ln.waiters = slices.Delete(ln.waiters, i, i+1)
			l.mu.Unlock()
			return ctx.Err()
		}
		l.mu.Unlock()
		// The lane was handed over while we were giving up; pass it on.
		l.release(id)
		return ctx.Err()
	}
}

// acquireAll takes the lanes of every id in sorted order, so concurrent
// group operations cannot deadlock. On error no lane is held.
func (l *lanes) acquireAll(ctx context.Context, ids []string) (func(), error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	for i, id := range sorted {
		if err := l.acquire(ctx, id); err != nil {
			for _, held := range sorted[:i] {
				l.release(held)
			}
			return nil, err
		}
	}
	return func() {
		for _, id := range sorted {
			l.release(id)
		}
	}, nil
}

// release hands the lane to the next waiter or frees it.
func (l *lanes) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.held[id]
	if !ok {
		return
	}
	if len(ln.waiters) == 0 {
		delete(l.held, id)
		return
	}
	next := ln.waiters[0]
	ln.waiters[0] = nil
	ln.waiters = ln.waiters[1:]
	close(next)
}

// waiting returns the number of mutations queued behind the holder of id.
func (l *lanes) waiting(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ln, ok := l.held[id]; ok {
		return len(ln.waiters)
	}
	return 0
}

// busy reports whether any mutation holds the lane for id.
func (l *lanes) busy(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[id]
	return ok
}
