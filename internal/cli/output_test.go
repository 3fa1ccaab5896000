package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labsync/internal/notify"
	"github.com/roach88/labsync/internal/syncstore"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "bad")), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to seed", inner)
	assert.Equal(t, "failed to seed: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "bad", NewExitError(ExitFailure, "bad").Error())
}

func TestMutationExitCode(t *testing.T) {
	remote := &syncstore.MutationError{Op: syncstore.OpUpdate, ID: "a", Code: syncstore.CodeRemoteFailure, Err: errors.New("x")}
	refused := &syncstore.MutationError{Op: syncstore.OpUpdate, ID: "a", Code: syncstore.CodeNotFound, Err: errors.New("x")}

	assert.Equal(t, ExitFailure, mutationExitCode(remote))
	assert.Equal(t, ExitCommandError, mutationExitCode(refused))
	assert.Equal(t, ExitCommandError, mutationExitCode(errors.New("other")))
}

func TestOutputFormatter_Result(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Result("plain\n", map[string]int{"n": 1}))
	assert.Equal(t, "plain\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Result("plain\n", map[string]int{"n": 1}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"n": float64(1)}, resp.Data)
}

func TestOutputFormatter_Error(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}
	require.NoError(t, f.Error(ErrCodeNotFound, "file not found", "x.yaml"))
	assert.Equal(t, "Error [E002]: file not found\nDetails: x.yaml\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Error(ErrCodeNotFound, "file not found", nil))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, &CLIError{Code: "E002", Message: "file not found"}, resp.Error)
}

func TestOutputFormatter_MutationFailed(t *testing.T) {
	err := &syncstore.MutationError{Op: syncstore.OpMove, ID: "t-1", Code: syncstore.CodeRemoteFailure, Err: errors.New("timeout")}
	notes := []notify.Notification{{Level: notify.LevelError, Op: syncstore.OpMove, ID: "t-1", Message: "Failed to move. Please try again."}}

	t.Run("text", func(t *testing.T) {
		var out, errOut bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errOut}

		got := f.MutationFailed(err, notes)
		assert.Equal(t, ExitFailure, GetExitCode(got))
		assert.ErrorIs(t, got, err)
		assert.Equal(t, "! Failed to move. Please try again.\n", errOut.String())
		assert.Equal(t, "Error [REMOTE_FAILURE]: "+err.Error()+"\n", out.String())
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		f := &OutputFormatter{Format: "json", Writer: &out}

		got := f.MutationFailed(err, notes)
		assert.Equal(t, ExitFailure, GetExitCode(got))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "REMOTE_FAILURE", resp.Error.Code)
		assert.Equal(t, notes, resp.Notifications)
	})

	t.Run("not a mutation error", func(t *testing.T) {
		var out bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &out}
		got := f.MutationFailed(errors.New("boom"), nil)
		assert.Equal(t, ExitCommandError, GetExitCode(got))
		assert.Equal(t, "Error [E001]: boom\n", out.String())
	})
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut}

	f.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	f.Verbose = true
	f.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String())

	f.ErrWriter = nil
	assert.Same(t, &out, f.GetErrWriter())
}
