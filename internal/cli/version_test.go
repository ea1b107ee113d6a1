package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_Text(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SQLite 3."), out)
	assert.Contains(t, out, "source: ")
	assert.NotContains(t, out, "compile options:")

	out, err = execute(t, "-v", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "compile options:")
}

func TestVersion_JSONWithTarget(t *testing.T) {
	out, err := execute(t, "--format", "json", "version", "--targets", targetsDir, "--target", "desktop")
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, "desktop", data["target"])
	assert.NotEmpty(t, data["compile_options"])
	assert.Greater(t, data["version_number"], float64(3000000))
}
