package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	targetsDir = filepath.Join("..", "..", "testdata", "targets")
	assetsDir  = filepath.Join("..", "..", "testdata", "assets")
)

// execute runs the root command with args and returns what it printed to
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EMBEDSQL_PROJECT", "embedsql")
	t.Setenv("EMBEDSQL_DATABASE_DIR", t.TempDir())
	t.Setenv("EMBEDSQL_LOG_LEVEL", "error")
	t.Setenv("EMBEDSQL_LOG_FORMAT", "text")

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decode parses a JSON response.
func decode(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// writeFile writes content to name under a fresh temp dir and returns the
// directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}
