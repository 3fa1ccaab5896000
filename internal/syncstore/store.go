package syncstore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/metrics"
	"github.com/roach88/labsync/internal/notify"
	"github.com/roach88/labsync/internal/remote"
)

// ChangeKind says what caused a Change.
type ChangeKind string

const (
	ChangeDelivery   ChangeKind = "delivery"
	ChangeOptimistic ChangeKind = "optimistic"
	ChangeConfirmed  ChangeKind = "confirmed"
	ChangeRollback   ChangeKind = "rollback"
)

// Change is published to listeners after every state change.
// View is the merged view as of the change.
type Change struct {
	Kind        ChangeKind
	Op          string
	IDs         []string
	View        []doc.Entity
	Transitions []StatusChange
	// Statuses holds every non-synced id as of the change.
	Statuses map[string]Status
	Overall  Status
}

// Listener observes changes. Listeners run one at a time, in the order
// changes happened, on whichever goroutine caused the change.
type Listener func(Change)

// Store is the sync store for one collection, scoped to one lab.
// Create one per collection with New and release it with Dispose.
//
// Thread-safety: all methods are safe for concurrent use. The adapter is
// never called with the store's lock held.
type Store struct {
	collection  string
	adapter     remote.Adapter
	labID       string
	statusField string
	orderField  string
	logger      *slog.Logger
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	validator   Validator
	lanes       *lanes

	mu           sync.Mutex
	view         *reconciler
	status       *tracker
	listeners    map[int64]Listener
	nextListener int64
	pending      []Change
	draining     bool
	disposed     bool
	unsubscribe  func()
}

// New creates the sync store for collection and subscribes to the
// adapter with filter {labId: <lab>}. The first delivery is usually
// applied before New returns.
func New(collection string, adapter remote.Adapter, opts ...Option) (*Store, error) {
	s := &Store{
		collection:  collection,
		adapter:     adapter,
		statusField: doc.FieldStatus,
		orderField:  doc.FieldOrder,
		logger:      slog.Default(),
		lanes:       newLanes(),
		view:        newReconciler(),
		status:      newTracker(),
		listeners:   make(map[int64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{Logger: s.logger}
	}

	if s.labID == "" {
		s.logger.Warn("sync store has no lab scope; not subscribing",
			"collection", collection)
		return s, nil
	}

	unsubscribe, err := adapter.Subscribe(remote.Filter{doc.FieldLabID: doc.String(s.labID)}, s.onNext)
	if err != nil {
		return nil, fmt.Errorf("syncstore %s: subscribe: %w", collection, err)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		unsubscribe()
		return s, nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return s, nil
}

// Collection returns the collection name.
func (s *Store) Collection() string {
	return s.collection
}

// LabID returns the lab scope, "" if none.
func (s *Store) LabID() string {
	return s.labID
}

// MergedView returns the entities consumers should render.
func (s *Store) MergedView() []doc.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.merged()
}

// Confirmed returns the confirmed snapshot, without the overlay.
func (s *Store) Confirmed() []doc.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.confirmed()
}

// Get returns the merged value of one entity.
func (s *Store) Get(id string) (doc.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.lookup(id)
}

// StatusFor returns the sync status of one entity.
func (s *Store) StatusFor(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.status(id)
}

// OverallStatus returns the aggregate sync status.
func (s *Store) OverallStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.overall()
}

// Statuses returns the status of every entity that is not synced.
func (s *Store) Statuses() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.statuses()
}

// Errors returns the ids whose most recent mutation failed, sorted.
func (s *Store) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.errorIDs()
}

// OnChange registers a listener. The returned cancel func is idempotent.
// A listener may read the store but must not block or issue mutations
// synchronously; deliveries run on the adapter's goroutine.
func (s *Store) OnChange(listener Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return func() {}
	}
	s.nextListener++
	id := s.nextListener
	s.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Dispose unsubscribes from the adapter and drops every listener. Later
// mutations fail with ErrDisposed. Writes already in flight still
// resolve but publish nothing. Dispose is idempotent.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.listeners = make(map[int64]Listener)
	s.pending = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.metrics.SetOutstanding(s.collection, 0)
}

// Disposed reports whether Dispose was called.
func (s *Store) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// onNext receives subscription deliveries.
func (s *Store) onNext(entities []doc.Entity) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.view.deliver(entities)
	s.enqueueLocked(Change{Kind: ChangeDelivery})
	s.mu.Unlock()

	s.metrics.Delivered(s.collection)
	s.flush()
}

// enqueueLocked stamps a change with the current view and overall status
// and queues it for listeners. Caller holds mu.
func (s *Store) enqueueLocked(c Change) {
	if s.disposed || len(s.listeners) == 0 {
		return
	}
	c.View = s.view.merged()
	c.Statuses = s.status.statuses()
	c.Overall = s.status.overall()
	s.pending = append(s.pending, c)
}

// flush delivers queued changes. Only one goroutine drains at a time; a
// flush that finds another drainer leaves its changes to it, which keeps
// delivery in order and lets listeners re-enter the store.
func (s *Store) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		c := s.pending[0]
		s.pending[0] = Change{}
		s.pending = s.pending[1:]
		listeners := s.listenerSnapshotLocked()
		s.mu.Unlock()

		for _, l := range listeners {
			l(c)
		}

		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// listenerSnapshotLocked returns listeners in registration order.
func (s *Store) listenerSnapshotLocked() []Listener {
	ids := make([]int64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}
