package testutil

import (
	"fmt"
	"sync"
)

// ListIDGenerator hands out a fixed list of ids, then "<prefix>-<n>".
//
// This keeps created ids stable across runs so scenario traces can be
// compared byte for byte against golden files.
//
// Thread-safety: safe for concurrent use.
type ListIDGenerator struct {
	mu     sync.Mutex
	ids    []string
	prefix string
	n      int
}

// NewListIDGenerator returns a generator yielding ids in order.
// If prefix is empty, "test-id" is used once the list runs out.
func NewListIDGenerator(prefix string, ids ...string) *ListIDGenerator {
	if prefix == "" {
		prefix = "test-id"
	}
	return &ListIDGenerator{ids: ids, prefix: prefix}
}

// Generate returns the next id. Implements doc.IDGenerator.
func (g *ListIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id
	}
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
