package syncstore

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/notify"
	"github.com/roach88/labsync/internal/remote"
)

const testLab = "lab-1"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore builds a lab-scoped store with a recording notifier and
// disposes it when the test ends.
func newTestStore(t *testing.T, adapter remote.Adapter, opts ...Option) (*Store, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	all := append([]Option{WithLab(testLab), WithLogger(quietLogger()), WithNotifier(rec)}, opts...)
	s, err := New("supplies", adapter, all...)
	require.NoError(t, err)
	t.Cleanup(s.Dispose)
	return s, rec
}

func supply(id string, qty int64) doc.Entity {
	return doc.NewEntity(id, doc.Object{
		"labId":       doc.String(testLab),
		"name":        doc.String("supply " + id),
		"qty":         doc.Int(qty),
		"minQty":      doc.Int(5),
		"burnPerWeek": doc.Int(2),
	})
}

func task(id, status string, order int64) doc.Entity {
	return doc.NewEntity(id, doc.Object{
		"labId":  doc.String(testLab),
		"name":   doc.String("task " + id),
		"status": doc.String(status),
		"order":  doc.Int(order),
	})
}

func qtyOf(t *testing.T, s *Store, id string) int64 {
	t.Helper()
	e, ok := s.Get(id)
	require.True(t, ok, "entity %s not in view", id)
	qty, ok := e.IntField("qty")
	require.True(t, ok)
	return qty
}

func orderOf(t *testing.T, s *Store, id string) int64 {
	t.Helper()
	e, ok := s.Get(id)
	require.True(t, ok, "entity %s not in view", id)
	order, ok := e.IntField("order")
	require.True(t, ok)
	return order
}

// async runs a mutation on its own goroutine.
func async(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	return ch
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("mutation did not return")
		return nil
	}
}

// changeLog records every Change published by a store.
type changeLog struct {
	mu      sync.Mutex
	changes []Change
}

func watch(s *Store) *changeLog {
	l := &changeLog{}
	s.OnChange(func(c Change) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.changes = append(l.changes, c)
	})
	return l
}

func (l *changeLog) all() []Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Change, len(l.changes))
	copy(out, l.changes)
	return out
}

func (l *changeLog) kinds() []ChangeKind {
	var out []ChangeKind
	for _, c := range l.all() {
		out = append(out, c.Kind)
	}
	return out
}

func (l *changeLog) transitionsFor(id string) []StatusChange {
	var out []StatusChange
	for _, c := range l.all() {
		for _, tr := range c.Transitions {
			if tr.ID == id {
				out = append(out, tr)
			}
		}
	}
	return out
}

func viewIDs(es []doc.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
