package syncstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/notify"
	"github.com/roach88/labsync/internal/remote"
	"github.com/roach88/labsync/internal/schema"
	"github.com/roach88/labsync/internal/store"
)

// openSupplies seeds a SQLite database and returns a sync store over its
// supplies collection, behind a Faulty adapter.
func openSupplies(t *testing.T, seed ...doc.Entity) (*Store, *remote.Faulty, *store.Store, *notify.Recorder) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "lab.db"), store.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Seed(context.Background(), "supplies", seed)
	require.NoError(t, err)

	v, err := schema.New()
	require.NoError(t, err)

	faulty := remote.NewFaulty(db.Collection("supplies"))
	s, rec := newTestStore(t, faulty, WithValidator(v))
	return s, faulty, db, rec
}

// A stock check saves a new quantity; when the save fails the old count
// comes back and the item is flagged.
func TestStockCheck_SaveFailsAndRollsBack(t *testing.T) {
	s, faulty, db, rec := openSupplies(t, supply("sup-1", 0), supply("sup-2", 8))
	ctx := context.Background()
	before := s.MergedView()

	faulty.Fail(remote.FaultRule{Op: remote.OpUpdate, ID: "sup-1", Once: true})
	err := s.Update(ctx, "sup-1", doc.Object{"qty": doc.Int(10)})

	require.Error(t, err)
	assert.True(t, IsRemoteFailure(err))
	assert.Equal(t, before, s.MergedView())
	assert.Equal(t, StatusError, s.StatusFor("sup-1"))
	assert.Equal(t, StatusSynced, s.StatusFor("sup-2"))
	assert.Equal(t, []string{"Failed to update. Please try again."}, rec.Messages())

	persisted, err := db.Collection("supplies").Get(ctx, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Int(0), persisted.Fields["qty"], "rejected write never reached the database")

	require.NoError(t, s.Update(ctx, "sup-1", doc.Object{"qty": doc.Int(10)}))
	assert.Equal(t, int64(10), qtyOf(t, s, "sup-1"))
	assert.Equal(t, StatusSynced, s.OverallStatus())

	persisted, err = db.Collection("supplies").Get(ctx, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Int(10), persisted.Fields["qty"])
}

func TestStockCheck_ConfirmedThroughDatabase(t *testing.T) {
	s, faulty, db, _ := openSupplies(t, supply("sup-1", 0))
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "sup-1", doc.Object{"qty": doc.Int(12)}))

	assert.Equal(t, doc.Int(12), s.Confirmed()[0].Fields["qty"], "delivery from the database confirms the write")
	assert.Len(t, faulty.Calls(), 1)

	log, err := db.Mutations(ctx, "supplies")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, remote.OpUpdate, log[0].Op)
	assert.Equal(t, "sup-1", log[0].DocID)
}

func TestStockCheck_OtherClientWrite(t *testing.T) {
	s, _, db, _ := openSupplies(t, supply("sup-1", 0))
	ctx := context.Background()

	require.NoError(t, db.Collection("supplies").Update(ctx, "sup-1", doc.Object{"qty": doc.Int(4)}))

	assert.Equal(t, int64(4), qtyOf(t, s, "sup-1"))
	assert.Equal(t, StatusSynced, s.StatusFor("sup-1"))
}
