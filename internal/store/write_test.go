package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
)

func TestCollection_UpdateMergesPartial(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Seed(ctx, "supplies", []doc.Entity{supply("sup-1", "lab-1", 0)})
	require.NoError(t, err)

	c := s.Collection("supplies")
	require.NoError(t, c.Update(ctx, "sup-1", doc.Object{"qty": doc.Int(10)}))

	got, err := c.Get(ctx, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Int(10), got.Fields["qty"])
	assert.Equal(t, doc.Int(5), got.Fields["minQty"], "untouched fields survive")
}

func TestCollection_UpdateIgnoresIDField(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Seed(ctx, "supplies", []doc.Entity{supply("sup-1", "lab-1", 0)})
	require.NoError(t, err)

	c := s.Collection("supplies")
	require.NoError(t, c.Update(ctx, "sup-1", doc.Object{"id": doc.String("hijack"), "qty": doc.Int(1)}))

	_, err = c.Get(ctx, "hijack")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestCollection_UpdateMissing(t *testing.T) {
	s := createTestStore(t)

	err := s.Collection("supplies").Update(context.Background(), "ghost", doc.Object{"qty": doc.Int(1)})
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestCollection_CreateAssignsID(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(doc.NewSequenceGenerator("task")))
	ctx := context.Background()
	c := s.Collection("tasks")

	id, err := c.Create(ctx, doc.Object{"name": doc.String("Order reagents")})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Order reagents", got.StringField("name"))
}

func TestCollection_CreateWithExplicitID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := s.Collection("tasks")

	id, err := c.Create(ctx, doc.Object{"id": doc.String("t-9"), "name": doc.String("x")})
	require.NoError(t, err)
	assert.Equal(t, "t-9", id)

	_, err = c.Create(ctx, doc.Object{"id": doc.String("t-9")})
	assert.ErrorIs(t, err, ErrExists)
}

func TestCollection_CreateAppendsInOrder(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(doc.NewSequenceGenerator("t")))
	ctx := context.Background()
	c := s.Collection("tasks")
	_, err := s.Seed(ctx, "tasks", []doc.Entity{doc.NewEntity("z-first", nil)})
	require.NoError(t, err)

	_, err = c.Create(ctx, doc.Object{})
	require.NoError(t, err)

	all, err := c.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"z-first", "t-1"}, ids(all), "position, not id, decides order")
}

func TestCollection_Delete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Seed(ctx, "supplies", []doc.Entity{supply("a", "lab-1", 1)})
	require.NoError(t, err)
	c := s.Collection("supplies")

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	assert.ErrorIs(t, c.Delete(ctx, "a"), remote.ErrNotFound)
}

func TestSeed_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fixtures := []doc.Entity{supply("a", "lab-1", 1), supply("b", "lab-1", 2)}

	n, err := s.Seed(ctx, "supplies", fixtures)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Seed(ctx, "supplies", fixtures)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeed_RejectsMissingID(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Seed(context.Background(), "supplies", []doc.Entity{{Fields: doc.Object{}}})
	assert.Error(t, err)
}

func TestMutations_LogsWritesInOrder(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(doc.NewSequenceGenerator("sup")))
	ctx := context.Background()
	c := s.Collection("supplies")

	id, err := c.Create(ctx, doc.Object{"qty": doc.Int(0)})
	require.NoError(t, err)
	require.NoError(t, c.Update(ctx, id, doc.Object{"qty": doc.Int(10)}))
	require.NoError(t, c.Delete(ctx, id))

	// A failed write leaves no trace.
	require.Error(t, c.Update(ctx, "ghost", doc.Object{}))

	log, err := s.Mutations(ctx, "supplies")
	require.NoError(t, err)
	require.Len(t, log, 3)

	assert.Equal(t, []string{"create", "update", "delete"}, []string{log[0].Op, log[1].Op, log[2].Op})
	assert.Equal(t, doc.Object{"qty": doc.Int(10)}, log[1].Payload)
	assert.Less(t, log[0].Seq, log[1].Seq)
	assert.Less(t, log[1].Seq, log[2].Seq)
	for _, rec := range log {
		assert.Equal(t, id, rec.DocID)
		assert.Len(t, rec.ID, 64)
	}
}

func TestList_FilterByLab(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Seed(ctx, "supplies", []doc.Entity{
		supply("a", "lab-1", 1),
		supply("b", "lab-2", 1),
		supply("c", "lab-1", 1),
	})
	require.NoError(t, err)

	got, err := s.Collection("supplies").List(ctx, remote.Filter{"labId": doc.String("lab-1")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))

	none, err := s.Collection("supplies").List(ctx, remote.Filter{"labId": doc.String("lab-9")})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestList_LargeIntegersSurvive(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	big := doc.NewEntity("x", doc.Object{"serial": doc.Int(9007199254740993)})
	_, err := s.Seed(ctx, "equipment", []doc.Entity{big})
	require.NoError(t, err)

	got, err := s.Collection("equipment").Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, doc.Int(9007199254740993), got.Fields["serial"])
}
