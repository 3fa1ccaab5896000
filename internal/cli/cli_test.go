package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const suppliesYAML = `
- {id: sup-1, labId: lab-1, name: Nitrile gloves, qty: 0, minQty: 5, burnPerWeek: 2}
- {id: sup-2, labId: lab-1, name: Ethanol, qty: 40, minQty: 4}
- {id: sup-3, labId: lab-2, name: Pipette tips, qty: 1, minQty: 5}
`

const tasksYAML = `
- {id: t-1, labId: lab-1, name: Order antibodies, status: todo, order: 0}
- {id: t-2, labId: lab-1, name: Calibrate scale, status: todo, order: 1}
- {id: t-3, labId: lab-1, name: Book scope, status: todo, order: 2}
- {id: t-4, labId: lab-1, name: Write protocol, status: done, order: 0}
`

const equipmentYAML = `
- {id: eq-1, labId: lab-1, name: Centrifuge, lastMaintained: "2024-03-01", maintenanceIntervalDays: 30}
- {id: eq-2, labId: lab-1, name: Fume hood, lastMaintained: "2024-03-10", maintenanceIntervalDays: 365}
- {id: eq-3, labId: lab-1, name: Old PCR, status: retired, lastMaintained: "2020-01-01", maintenanceIntervalDays: 30}
`

// execute runs the root command with args and captures both streams.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// labDB returns a database path seeded with the given collections.
func labDB(t *testing.T, seeds map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "lab.db")
	for collection, content := range seeds {
		path := writeFile(t, dir, collection+".yaml", content)
		_, _, err := execute(t, "seed", collection, path, "--db", db)
		require.NoError(t, err, "seed %s", collection)
	}
	return db
}

// listJSON returns the lab's merged view keyed by id.
func listJSON(t *testing.T, db, collection string) map[string]map[string]any {
	t.Helper()
	stdout, _, err := execute(t, "list", collection, "--db", db, "--lab", "lab-1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	require.Equal(t, "ok", resp.Status)

	out := make(map[string]map[string]any, len(resp.Data))
	for _, e := range resp.Data {
		out[e["id"].(string)] = e
	}
	return out
}
