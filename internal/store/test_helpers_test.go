package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/roach88/labsync/internal/doc"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// supply builds a supply entity scoped to a lab.
func supply(id, lab string, qty int64) doc.Entity {
	return doc.NewEntity(id, doc.Object{
		"labId":       doc.String(lab),
		"name":        doc.String("item " + id),
		"qty":         doc.Int(qty),
		"minQty":      doc.Int(5),
		"burnPerWeek": doc.Int(2),
	})
}

// deliveryLog collects subscription deliveries.
type deliveryLog struct {
	mu         sync.Mutex
	deliveries [][]doc.Entity
}

func (d *deliveryLog) onNext(es []doc.Entity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, es)
}

func (d *deliveryLog) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deliveries)
}

func (d *deliveryLog) last() []doc.Entity {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deliveries) == 0 {
		return nil
	}
	return d.deliveries[len(d.deliveries)-1]
}

func ids(es []doc.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
