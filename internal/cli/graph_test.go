package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_Valid(t *testing.T) {
	out, err := execute(t, "graph", targetsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Module graph valid (engine library SQLite3)")
	assert.Contains(t, out, "SQLite3Editor (integration)\n  consumers: DemoEditor, SQLite3Tools\n")
	assert.Contains(t, out, "Demo (application)\n")
}

func TestGraph_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "graph", targetsDir)
	require.NoError(t, err)

	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "SQLite3", data["engine"])

	modules := data["modules"].([]any)
	require.Len(t, modules, 5)
	first := modules[0].(map[string]any)
	assert.Equal(t, "Demo", first["name"])
	assert.Equal(t, []any{}, first["consumers"])
}

func TestGraph_Invalid(t *testing.T) {
	dir := writeFile(t, "modules.cue", `package targets

module: Core: {
	kind: "library"
	deps: ["engine"]
}

module: A: {
	kind: "integration"
	deps: ["Core", "B"]
}

module: B: {
	kind: "integration"
	deps: ["A"]
}
`)

	out, err := execute(t, "graph", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E314")
	assert.Contains(t, out, "dependency cycle: A → B → A")
}

func TestGraph_NoCUEFiles(t *testing.T) {
	out, err := execute(t, "graph", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}
