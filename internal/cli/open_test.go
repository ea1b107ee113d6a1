package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreateThenOpen(t *testing.T) {
	dir := t.TempDir()
	game := filepath.Join(assetsDir, "game.yaml")

	out, err := execute(t, "open", game, "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ game created\n")
	assert.Contains(t, out, "path:           "+filepath.Join(dir, "game.db"))
	assert.Contains(t, out, "target:         host")
	assert.Contains(t, out, "application_id: 1196246355")
	assert.Contains(t, out, "user_version:   3")
	assert.Contains(t, out, "attached:       saves, scratch")
	assert.FileExists(t, filepath.Join(dir, "game.db"))
	assert.FileExists(t, filepath.Join(dir, "saves.db"))

	out, err = execute(t, "--format", "json", "open", game, "--dir", dir)
	require.NoError(t, err)
	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "opened", data["outcome"])
	assert.Equal(t, []any{"saves", "scratch"}, data["schemas"])
	assert.NotEmpty(t, data["handle"])
}

func TestOpen_WithTarget(t *testing.T) {
	out, err := execute(t, "--format", "json", "open", filepath.Join(assetsDir, "memory.yaml"),
		"--targets", targetsDir, "--target", "server")
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, "server", data["target"])
	assert.Equal(t, "created", data["outcome"])
	assert.Equal(t, []any{}, data["schemas"])
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		want     string
	}{
		{
			name:     "invalid asset",
			args:     []string{"open", filepath.Join(assetsDir, "invalid.yaml")},
			exitCode: ExitFailure,
			want:     "✗ Validation failed",
		},
		{
			name:     "target required",
			args:     []string{"open", filepath.Join(assetsDir, "memory.yaml"), "--targets", targetsDir},
			exitCode: ExitCommandError,
			want:     "Error [E303]",
		},
		{
			name:     "missing asset",
			args:     []string{"open", "/nonexistent/asset.yaml"},
			exitCode: ExitCommandError,
			want:     "Error [E005]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestOpen_ApplicationIDMismatch(t *testing.T) {
	dir := t.TempDir()
	assets := writeFile(t, "world.yaml", "file: world.db\napplication_id: 7\n")
	_, err := execute(t, "open", filepath.Join(assets, "world.yaml"), "--dir", dir)
	require.NoError(t, err)

	other := writeFile(t, "world.yaml", "file: world.db\napplication_id: 8\n")
	out, err := execute(t, "open", filepath.Join(other, "world.yaml"), "--dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E021]")
	assert.Contains(t, out, "application id mismatch")
}

func TestQuery_Text(t *testing.T) {
	out, err := execute(t, "query", filepath.Join(assetsDir, "game.yaml"),
		"SELECT Key FROM Properties ORDER BY Key", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Key\ncreation.date\ncreation.time\nsoftware\n", out)
}

func TestQuery_StoredJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "query", filepath.Join(assetsDir, "game.yaml"),
		"property", "--stored", "--param", "key=software", "--dir", t.TempDir())
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, []any{"Value"}, data["columns"])
	assert.Equal(t, []any{[]any{"embedsql"}}, data["rows"])
}

func TestQuery_PositionalParams(t *testing.T) {
	out, err := execute(t, "query", filepath.Join(assetsDir, "memory.yaml"),
		"SELECT ? || '-' || ?", "--param", "1=a", "--param", "2=b")
	require.NoError(t, err)
	assert.Contains(t, out, "a-b\n")
}

func TestQuery_NoRows(t *testing.T) {
	out, err := execute(t, "--format", "json", "query", filepath.Join(assetsDir, "memory.yaml"),
		"SELECT Key FROM Properties WHERE Key = 'none'")
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, []any{}, data["rows"])
}

func TestQuery_Errors(t *testing.T) {
	memory := filepath.Join(assetsDir, "memory.yaml")
	tests := []struct {
		name string
		args []string
	}{
		{"syntax", []string{"query", memory, "SELEKT 1"}},
		{"unknown stored", []string{"query", memory, "nope", "--stored"}},
		{"bad param", []string{"query", memory, "SELECT 1", "--param", "oops"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E022]")
		})
	}
}
