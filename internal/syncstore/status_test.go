package syncstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "synced", StatusSynced.String())
	assert.Equal(t, "syncing", StatusSyncing.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestStatus_TextRoundTrip(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"a": StatusSyncing})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"syncing"}`, string(data))

	var back map[string]Status
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StatusSyncing, back["a"])

	_, err = ParseStatus("pending")
	assert.Error(t, err)
}

func TestTracker_DefaultSynced(t *testing.T) {
	tr := newTracker()
	assert.Equal(t, StatusSynced, tr.status("anything"))
	assert.Equal(t, StatusSynced, tr.overall())
}

func TestTracker_Transitions(t *testing.T) {
	tr := newTracker()

	assert.Equal(t, StatusChange{ID: "a", From: StatusSynced, To: StatusSyncing}, tr.markSyncing("a"))
	assert.Equal(t, map[string]Status{"a": StatusSyncing}, tr.statuses())
	assert.Equal(t, StatusChange{ID: "a", From: StatusSyncing, To: StatusSynced}, tr.markSynced("a"))
	assert.Empty(t, tr.statuses())

	tr.markSyncing("a")
	assert.Equal(t, StatusChange{ID: "a", From: StatusSyncing, To: StatusError}, tr.markError("a"))
	assert.Equal(t, map[string]Status{"a": StatusError}, tr.statuses())

	// A new attempt clears the error the moment it starts.
	assert.Equal(t, StatusChange{ID: "a", From: StatusError, To: StatusSyncing}, tr.markSyncing("a"))
	assert.Empty(t, tr.errorIDs())
}

func TestTracker_Overall(t *testing.T) {
	tr := newTracker()

	tr.markSyncing("a")
	assert.Equal(t, StatusSyncing, tr.overall())

	tr.markSyncing("b")
	tr.markError("b")
	assert.Equal(t, StatusError, tr.overall(), "error beats syncing")

	tr.markSynced("a")
	assert.Equal(t, StatusError, tr.overall())

	tr.markSyncing("b")
	tr.markSynced("b")
	assert.Equal(t, StatusSynced, tr.overall())
}

func TestTracker_Statuses(t *testing.T) {
	tr := newTracker()
	tr.markSyncing("a")
	tr.markSyncing("b")
	tr.markError("b")

	assert.Equal(t, map[string]Status{"a": StatusSyncing, "b": StatusError}, tr.statuses())
	assert.Equal(t, []string{"b"}, tr.errorIDs())
}
