package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each scenario under testdata/scenarios has a golden trace with the
// same name.
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "golden file is named after the scenario")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass)
		})
	}
}

func TestMarshalTrace_OneCanonicalLinePerEvent(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Event: EventStep, Op: OpCreate},
		{Seq: 2, Event: "rollback", Op: OpUpdate, IDs: []string{"a"}, Transitions: []string{"a:syncing->error"}, Overall: "error"},
		{Seq: 3, Event: EventResult, Op: OpUpdate, IDs: []string{"a"}, Code: "REMOTE_FAILURE"},
	}

	data, err := MarshalTrace(trace)
	require.NoError(t, err)

	want := `{"event":"step","op":"create","seq":1}
{"event":"rollback","ids":["a"],"op":"update","overall":"error","seq":2,"transitions":["a:syncing->error"]}
{"code":"REMOTE_FAILURE","event":"result","ids":["a"],"op":"update","seq":3}
`
	assert.Equal(t, want, string(data))
}

func TestMarshalTrace_Empty(t *testing.T) {
	data, err := MarshalTrace(nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}
