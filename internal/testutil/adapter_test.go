package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
)

var _ remote.Adapter = (*MemoryAdapter)(nil)

func labEntity(id, lab string) doc.Entity {
	return doc.NewEntity(id, doc.Object{"labId": doc.String(lab), "qty": doc.Int(0)})
}

func TestMemoryAdapter_SubscribeFilters(t *testing.T) {
	a := NewMemoryAdapter(labEntity("a", "lab-1"), labEntity("b", "lab-2"))

	var got []doc.Entity
	unsubscribe, err := a.Subscribe(remote.Filter{"labId": doc.String("lab-1")}, func(es []doc.Entity) { got = es })
	require.NoError(t, err)
	defer unsubscribe()

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 1, a.Subscribers())
}

func TestMemoryAdapter_UngatedWritesDeliver(t *testing.T) {
	a := NewMemoryAdapter(labEntity("a", "lab-1"))
	ctx := context.Background()

	deliveries := 0
	var last []doc.Entity
	unsubscribe, err := a.Subscribe(nil, func(es []doc.Entity) { deliveries++; last = es })
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, a.Update(ctx, "a", doc.Object{"qty": doc.Int(3)}))
	assert.Equal(t, 2, deliveries)
	assert.Equal(t, doc.Int(3), last[0].Fields["qty"])

	id, err := a.Create(ctx, doc.Object{"labId": doc.String("lab-1")})
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)
	assert.Len(t, last, 2)

	require.NoError(t, a.Delete(ctx, "a"))
	assert.Len(t, last, 1)

	assert.ErrorIs(t, a.Update(ctx, "a", doc.Object{}), remote.ErrNotFound)
	assert.ErrorIs(t, a.Delete(ctx, "a"), remote.ErrNotFound)
}

func TestMemoryAdapter_GatedSucceedAndFail(t *testing.T) {
	a := NewMemoryAdapter(labEntity("a", "lab-1"))
	a.Gate()
	ctx := context.Background()

	var wg sync.WaitGroup
	var errs [2]error
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = a.Update(ctx, "a", doc.Object{"qty": doc.Int(1)})
	}()
	call := a.Next(t)
	assert.Equal(t, remote.OpUpdate, call.Op)
	assert.Equal(t, "a", call.ID)
	assert.Equal(t, doc.Int(0), a.Snapshot()[0].Fields["qty"], "held write not applied")
	call.Succeed()
	wg.Wait()
	require.NoError(t, errs[0])
	assert.Equal(t, doc.Int(1), a.Snapshot()[0].Fields["qty"])

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = a.Update(ctx, "a", doc.Object{"qty": doc.Int(2)})
	}()
	a.Next(t).Fail(nil)
	wg.Wait()
	assert.ErrorIs(t, errs[1], ErrRejected)
	assert.Equal(t, doc.Int(1), a.Snapshot()[0].Fields["qty"])

	history := a.History()
	require.Len(t, history, 2)
	assert.False(t, history[0].Failed)
	assert.True(t, history[1].Failed)
}

func TestMemoryAdapter_GatedHonoursContext(t *testing.T) {
	a := NewMemoryAdapter(labEntity("a", "lab-1"))
	a.Gate()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Update(ctx, "a", doc.Object{"qty": doc.Int(1)}) }()
	a.Next(t)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMemoryAdapter_SetDeliversAndUnsubscribeStops(t *testing.T) {
	a := NewMemoryAdapter()

	deliveries := 0
	unsubscribe, err := a.Subscribe(nil, func([]doc.Entity) { deliveries++ })
	require.NoError(t, err)

	a.Set(labEntity("x", "lab-1"))
	assert.Equal(t, 2, deliveries)

	unsubscribe()
	unsubscribe()
	a.Set()
	assert.Equal(t, 2, deliveries)
	assert.Equal(t, 0, a.Subscribers())
}
