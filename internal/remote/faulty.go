package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/labsync/internal/doc"
)

// Operation names used by Faulty rules and call records.
const (
	OpUpdate = "update"
	OpCreate = "create"
	OpDelete = "delete"
)

// Call records one write that reached a Faulty adapter.
type Call struct {
	Op      string
	ID      string
	Partial doc.Object
	Failed  bool
}

// FaultRule makes matching writes fail. An empty ID matches every id.
// Once rules are consumed by their first match.
type FaultRule struct {
	Op   string
	ID   string
	Once bool
	Err  error
}

// Faulty wraps an Adapter and rejects writes matching its rules before they
// reach the wrapped adapter. Subscriptions pass through untouched.
//
// Thread-safety: all methods are safe for concurrent use.
type Faulty struct {
	next Adapter

	mu    sync.Mutex
	rules []FaultRule
	calls []Call
}

// NewFaulty wraps next with no rules installed.
func NewFaulty(next Adapter) *Faulty {
	return &Faulty{next: next}
}

// Fail installs a rule.
func (f *Faulty) Fail(rule FaultRule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule)
}

// Reset removes every rule and forgets recorded calls.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
	f.calls = nil
}

// Calls returns a copy of the recorded writes in arrival order.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// check records the call and returns the injected error, if any.
func (f *Faulty) check(op, id string, partial doc.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var injected error
	for i, r := range f.rules {
		if r.Op != op || (r.ID != "" && r.ID != id) {
			continue
		}
		injected = r.Err
		if injected == nil {
			injected = fmt.Errorf("injected %s failure for %q", op, id)
		}
		if r.Once {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
		}
		break
	}

	f.calls = append(f.calls, Call{Op: op, ID: id, Partial: partial.Clone(), Failed: injected != nil})
	return injected
}

// Subscribe passes through to the wrapped adapter.
func (f *Faulty) Subscribe(filter Filter, onNext func([]doc.Entity)) (func(), error) {
	return f.next.Subscribe(filter, onNext)
}

// Update fails if a rule matches, otherwise forwards.
func (f *Faulty) Update(ctx context.Context, id string, partial doc.Object) error {
	if err := f.check(OpUpdate, id, partial); err != nil {
		return err
	}
	return f.next.Update(ctx, id, partial)
}

// Create fails if a rule matches, otherwise forwards.
func (f *Faulty) Create(ctx context.Context, fields doc.Object) (string, error) {
	if err := f.check(OpCreate, "", fields); err != nil {
		return "", err
	}
	return f.next.Create(ctx, fields)
}

// Delete fails if a rule matches, otherwise forwards.
func (f *Faulty) Delete(ctx context.Context, id string) error {
	if err := f.check(OpDelete, id, nil); err != nil {
		return err
	}
	return f.next.Delete(ctx, id)
}
