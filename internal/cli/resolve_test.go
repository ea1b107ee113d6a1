package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/embedsql/internal/profile"
)

func TestResolve_Defines(t *testing.T) {
	out, err := execute(t, "resolve", targetsDir, "--target", "console")
	require.NoError(t, err)
	assert.Contains(t, out, "SQLITE_OS_OTHER=1\n")
	assert.Contains(t, out, "SQLITE_OMIT_LOAD_EXTENSION\n")
	assert.Contains(t, out, "SQLITE_THREADSAFE=1\n")
}

func TestResolve_Emit(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		want  string
		exact bool
	}{
		{
			name:  "tags",
			args:  []string{"--target", "server", "--emit", "tags"},
			want:  "sqlite_foreign_keys,sqlite_fts5,sqlite_json,sqlite_preupdate_hook\n",
			exact: true,
		},
		{
			name: "cflags",
			args: []string{"--target", "server", "--emit", "cflags"},
			want: "-DSQLITE_ENABLE_FTS5",
		},
		{
			name: "cgo",
			args: []string{"--target", "console", "--emit", "cgo", "--package", "sqlitebuild"},
			want: "package sqlitebuild\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"resolve", targetsDir}, tt.args...)...)
			require.NoError(t, err)
			if tt.exact {
				assert.Equal(t, tt.want, out)
			} else {
				assert.Contains(t, out, tt.want)
			}
		})
	}
}

func TestResolve_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "resolve", targetsDir, "--target", "console")
	require.NoError(t, err)

	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "console", data["target"])
	assert.Equal(t, true, data["custom_os_shim"])
	assert.Equal(t, false, data["extension_loading"])
	assert.Equal(t, true, data["delegated_allocator"])
	assert.Equal(t, true, data["delegated_mutex"])
}

func TestResolve_Conflict(t *testing.T) {
	dir := writeFile(t, "broken.cue", `package targets

target: broken: {
	platform:          "linux"
	custom_os_shim:    true
	extension_loading: true
}
`)

	out, err := execute(t, "--format", "json", "resolve", dir, "--target", "broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, profile.ErrTargetConflict, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "SHIM_EXTENSION_LOADING")
	assert.NotEmpty(t, resp.Error.Details)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown target", []string{"resolve", targetsDir, "--target", "toaster"}, "E303"},
		{"invalid emit", []string{"resolve", targetsDir, "--target", "server", "--emit", "make"}, "E020"},
		{"missing dir", []string{"resolve", "/nonexistent/targets", "--target", "server"}, "E005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, out, "Error ["+tt.want+"]")
		})
	}
}

func TestResolve_TargetRequired(t *testing.T) {
	_, err := execute(t, "resolve", targetsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "target" not set`)
}
