package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/labsync/internal/doc"
)

var _ doc.IDGenerator = (*ListIDGenerator)(nil)

func TestListIDGenerator_ListThenSequence(t *testing.T) {
	gen := NewListIDGenerator("sup", "sup-gloves", "sup-tips")

	assert.Equal(t, "sup-gloves", gen.Generate())
	assert.Equal(t, "sup-tips", gen.Generate())
	assert.Equal(t, "sup-1", gen.Generate())
	assert.Equal(t, "sup-2", gen.Generate())
}

func TestListIDGenerator_DefaultPrefix(t *testing.T) {
	gen := NewListIDGenerator("")
	assert.Equal(t, "test-id-1", gen.Generate())
}

func TestListIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewListIDGenerator("x")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}
