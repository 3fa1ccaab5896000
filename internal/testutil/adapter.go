package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
)

// ErrRejected is the default error for a failed Call.
var ErrRejected = errors.New("rejected by test adapter")

// Call is one write held by a gated MemoryAdapter until the test decides
// its outcome.
type Call struct {
	Op      string
	ID      string
	Partial doc.Object

	reply chan error
}

// Succeed lets the write through: it is applied and delivered.
func (c *Call) Succeed() {
	c.reply <- nil
}

// Fail rejects the write with err, or ErrRejected if err is nil.
func (c *Call) Fail(err error) {
	if err == nil {
		err = ErrRejected
	}
	c.reply <- err
}

type memSub struct {
	filter    remote.Filter
	onNext    func([]doc.Entity)
	deliverMu sync.Mutex
	closed    atomic.Bool
}

// MemoryAdapter is an in-memory remote.Adapter.
//
// Ungated, writes apply immediately and every subscriber receives a fresh
// snapshot before the write returns. Gated, each write blocks until the
// test takes it with Next and calls Succeed or Fail, which makes the
// in-flight window observable.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryAdapter struct {
	mu      sync.Mutex
	docs    []doc.Entity
	subs    map[int]*memSub
	nextSub int
	ids     doc.IDGenerator
	gated   bool
	pending chan *Call
	history []remote.Call
}

// NewMemoryAdapter creates an ungated adapter holding seed.
func NewMemoryAdapter(seed ...doc.Entity) *MemoryAdapter {
	return &MemoryAdapter{
		docs:    doc.CloneAll(seed),
		subs:    make(map[int]*memSub),
		ids:     doc.NewSequenceGenerator("new"),
		pending: make(chan *Call, 64),
	}
}

// Gate makes later writes wait for Next.
func (a *MemoryAdapter) Gate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gated = true
}

// Ungate makes later writes apply immediately. Writes already waiting
// still need Succeed or Fail.
func (a *MemoryAdapter) Ungate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gated = false
}

// Next returns the next held write, failing the test if none arrives
// within two seconds.
func (a *MemoryAdapter) Next(t testing.TB) *Call {
	t.Helper()
	select {
	case c := <-a.pending:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no write reached the adapter")
		return nil
	}
}

// Pending returns the number of held writes not yet taken with Next.
func (a *MemoryAdapter) Pending() int {
	return len(a.pending)
}

// History returns every write that reached the adapter, in arrival order.
func (a *MemoryAdapter) History() []remote.Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]remote.Call, len(a.history))
	copy(out, a.history)
	return out
}

// Snapshot returns the current remote state.
func (a *MemoryAdapter) Snapshot() []doc.Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return doc.CloneAll(a.docs)
}

// Set replaces the remote state and delivers it, as if another client
// had written.
func (a *MemoryAdapter) Set(entities ...doc.Entity) {
	a.mu.Lock()
	a.docs = doc.CloneAll(entities)
	a.mu.Unlock()
	a.deliverAll()
}

// Subscribers returns the number of live subscriptions.
func (a *MemoryAdapter) Subscribers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// Subscribe implements remote.Adapter.
func (a *MemoryAdapter) Subscribe(filter remote.Filter, onNext func([]doc.Entity)) (func(), error) {
	if onNext == nil {
		return nil, fmt.Errorf("subscribe: nil callback")
	}
	sub := &memSub{filter: filter, onNext: onNext}

	a.mu.Lock()
	a.nextSub++
	id := a.nextSub
	a.subs[id] = sub
	a.mu.Unlock()

	a.deliver(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
			sub.closed.Store(true)
		})
	}, nil
}

// Update implements remote.Adapter.
func (a *MemoryAdapter) Update(ctx context.Context, id string, partial doc.Object) error {
	if err := a.await(ctx, remote.OpUpdate, id, partial); err != nil {
		return err
	}

	a.mu.Lock()
	i := doc.Index(a.docs, id)
	if i < 0 {
		a.mu.Unlock()
		return fmt.Errorf("update %s: %w", id, remote.ErrNotFound)
	}
	a.docs[i] = doc.Merge(a.docs[i], partial)
	a.mu.Unlock()

	a.deliverAll()
	return nil
}

// Create implements remote.Adapter.
func (a *MemoryAdapter) Create(ctx context.Context, fields doc.Object) (string, error) {
	if err := a.await(ctx, remote.OpCreate, "", fields); err != nil {
		return "", err
	}

	a.mu.Lock()
	id := ""
	if s, ok := fields[doc.FieldID].(doc.String); ok {
		id = string(s)
	}
	if id == "" {
		id = a.ids.Generate()
	}
	a.docs = append(a.docs, doc.NewEntity(id, fields.Clone()))
	a.mu.Unlock()

	a.deliverAll()
	return id, nil
}

// Delete implements remote.Adapter.
func (a *MemoryAdapter) Delete(ctx context.Context, id string) error {
	if err := a.await(ctx, remote.OpDelete, id, nil); err != nil {
		return err
	}

	a.mu.Lock()
	i := doc.Index(a.docs, id)
	if i < 0 {
		a.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, remote.ErrNotFound)
	}
	a.docs = append(a.docs[:i], a.docs[i+1:]...)
	a.mu.Unlock()

	a.deliverAll()
	return nil
}

// await records the write and, when gated, blocks until the test
// decides its outcome.
func (a *MemoryAdapter) await(ctx context.Context, op, id string, partial doc.Object) error {
	a.mu.Lock()
	gated := a.gated
	a.mu.Unlock()

	var err error
	if gated {
		c := &Call{Op: op, ID: id, Partial: partial.Clone(), reply: make(chan error, 1)}
		a.pending <- c
		select {
		case err = <-c.reply:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	a.mu.Lock()
	a.history = append(a.history, remote.Call{Op: op, ID: id, Partial: partial.Clone(), Failed: err != nil})
	a.mu.Unlock()
	return err
}

func (a *MemoryAdapter) deliverAll() {
	a.mu.Lock()
	subs := make([]*memSub, 0, len(a.subs))
	for i := 1; i <= a.nextSub; i++ {
		if sub, ok := a.subs[i]; ok {
			subs = append(subs, sub)
		}
	}
	a.mu.Unlock()

	for _, sub := range subs {
		a.deliver(sub)
	}
}

func (a *MemoryAdapter) deliver(sub *memSub) {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
	if sub.closed.Load() {
		return
	}

	a.mu.Lock()
	out := []doc.Entity{}
	for _, e := range a.docs {
		if sub.filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	a.mu.Unlock()

	sub.onNext(out)
}
