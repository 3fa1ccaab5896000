package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labsync/internal/doc"
)

// recordingAdapter accepts every write and remembers it.
type recordingAdapter struct {
	updates []string
	deletes []string
	creates int
}

func (r *recordingAdapter) Subscribe(Filter, func([]doc.Entity)) (func(), error) {
	return func() {}, nil
}

func (r *recordingAdapter) Update(_ context.Context, id string, _ doc.Object) error {
	r.updates = append(r.updates, id)
	return nil
}

func (r *recordingAdapter) Create(context.Context, doc.Object) (string, error) {
	r.creates++
	return "new-1", nil
}

func (r *recordingAdapter) Delete(_ context.Context, id string) error {
	r.deletes = append(r.deletes, id)
	return nil
}

func TestFilterMatches(t *testing.T) {
	e := doc.NewEntity("t-1", doc.Object{"labId": doc.String("lab-1"), "status": doc.String("todo")})

	assert.True(t, Filter{}.Matches(e))
	assert.True(t, Filter{"labId": doc.String("lab-1")}.Matches(e))
	assert.True(t, Filter{"id": doc.String("t-1")}.Matches(e))
	assert.False(t, Filter{"labId": doc.String("lab-2")}.Matches(e))
	assert.False(t, Filter{"missing": doc.String("x")}.Matches(e))
}

func TestFilterFields_Sorted(t *testing.T) {
	f := Filter{"status": doc.String("todo"), "labId": doc.String("lab-1")}
	assert.Equal(t, []string{"labId", "status"}, f.Fields())
}

func TestFaulty_PassesThroughWithoutRules(t *testing.T) {
	next := &recordingAdapter{}
	f := NewFaulty(next)
	ctx := context.Background()

	require.NoError(t, f.Update(ctx, "a", doc.Object{"qty": doc.Int(1)}))
	require.NoError(t, f.Delete(ctx, "b"))
	id, err := f.Create(ctx, doc.Object{})
	require.NoError(t, err)

	assert.Equal(t, "new-1", id)
	assert.Equal(t, []string{"a"}, next.updates)
	assert.Equal(t, []string{"b"}, next.deletes)
	assert.Len(t, f.Calls(), 3)
}

func TestFaulty_RuleBlocksMatchingID(t *testing.T) {
	next := &recordingAdapter{}
	f := NewFaulty(next)
	f.Fail(FaultRule{Op: OpUpdate, ID: "a"})
	ctx := context.Background()

	err := f.Update(ctx, "a", doc.Object{})
	require.Error(t, err)
	require.NoError(t, f.Update(ctx, "b", doc.Object{}))

	assert.Equal(t, []string{"b"}, next.updates)
	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Failed)
	assert.False(t, calls[1].Failed)
}

func TestFaulty_OnceRuleConsumed(t *testing.T) {
	f := NewFaulty(&recordingAdapter{})
	boom := errors.New("backend down")
	f.Fail(FaultRule{Op: OpDelete, Once: true, Err: boom})
	ctx := context.Background()

	assert.ErrorIs(t, f.Delete(ctx, "x"), boom)
	assert.NoError(t, f.Delete(ctx, "x"))
}

func TestFaulty_Reset(t *testing.T) {
	f := NewFaulty(&recordingAdapter{})
	f.Fail(FaultRule{Op: OpCreate})
	_, err := f.Create(context.Background(), doc.Object{})
	require.Error(t, err)

	f.Reset()
	assert.Empty(t, f.Calls())
	_, err = f.Create(context.Background(), doc.Object{})
	assert.NoError(t, err)
}
