package profile

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/embedsql/internal/capability"
)

func targetsDir() string {
	return filepath.Join("..", "..", "testdata", "targets")
}

func TestCompileTargetBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: console: {
			platform:       "linux"
			custom_os_shim: true
			thread_safety:  "multi_thread"
			foreign_keys:   false
			features: ["fts5", "json1"]
			overrides: ["snapshot"]
		}
	`)
	require.NoError(t, v.Err())

	target, err := CompileTarget(v.LookupPath(cue.ParsePath("target.console")))
	require.NoError(t, err)

	d := target.Descriptor
	assert.Equal(t, "console", target.Name)
	assert.Equal(t, "console", d.Target)
	assert.Equal(t, "linux", d.Platform)
	assert.True(t, d.CustomOSShim)
	assert.Equal(t, capability.ThreadSafetyMultiThread, d.ThreadSafety)
	require.NotNil(t, d.ForeignKeys)
	assert.False(t, *d.ForeignKeys)
	assert.Equal(t, map[capability.Feature]bool{"fts5": true, "json1": true}, d.Features)
	assert.Equal(t, []string{"snapshot"}, d.Overrides)
	assert.Nil(t, d.ExtensionLoading, "unset fields stay unset")
	assert.Nil(t, d.DelegatedMutex)
}

func TestCompileTargetExplicitDelegation(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: tool: {
			platform:            "linux"
			extension_loading:   true
			delegated_allocator: false
			delegated_mutex:     false
		}
	`)
	require.NoError(t, v.Err())

	target, err := CompileTarget(v.LookupPath(cue.ParsePath("target.tool")))
	require.NoError(t, err)

	d := target.Descriptor
	require.NotNil(t, d.ExtensionLoading)
	assert.True(t, *d.ExtensionLoading)
	require.NotNil(t, d.DelegatedAllocator)
	assert.False(t, *d.DelegatedAllocator)

	fs, err := target.Resolve()
	require.NoError(t, err)
	assert.True(t, fs.ExtensionLoading())
}

func TestCompileTargetUnknownField(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: bad: {
			platform: "linux"
			icu: true
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileTarget(v.LookupPath(cue.ParsePath("target.bad")))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "target", ce.Field)
	assert.Contains(t, ce.Message, `"icu"`)
	assert.True(t, ce.Pos.IsValid())
}

func TestCompileTargetWrongType(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: bad: {
			platform: 42
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileTarget(v.LookupPath(cue.ParsePath("target.bad")))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "platform", ce.Field)
}

func TestLoadTargets(t *testing.T) {
	set, errs := LoadTargets(targetsDir(), LoadModeCollectAll)
	require.Empty(t, errs)

	assert.Equal(t, 2, set.FileCount)
	assert.Equal(t, []string{"console", "desktop", "handheld", "server"}, set.Names())
	assert.Len(t, set.Modules, 5)

	for _, target := range set.Targets {
		_, err := target.Resolve()
		assert.NoError(t, err, "target %s should resolve", target.Name)
	}

	console, ok := set.Lookup("console")
	require.True(t, ok)
	fs, err := console.Resolve()
	require.NoError(t, err)
	assert.True(t, fs.CustomOSShim())
	assert.False(t, fs.ExtensionLoading())

	_, ok = set.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadTargetsErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, errs := LoadTargets(filepath.Join(t.TempDir(), "nope"), LoadModeFailFast)
		require.Len(t, errs, 1)
		var le *LoadError
		require.ErrorAs(t, errs[0], &le)
		assert.Equal(t, ErrCodeNotFound, le.Code)
	})

	t.Run("no cue files", func(t *testing.T) {
		_, errs := LoadTargets(t.TempDir(), LoadModeFailFast)
		require.Len(t, errs, 1)
		var le *LoadError
		require.ErrorAs(t, errs[0], &le)
		assert.Equal(t, ErrCodeNoFiles, le.Code)
	})

	t.Run("only nested cue files", func(t *testing.T) {
		dir := t.TempDir()
		nested := filepath.Join(dir, "nested")
		require.NoError(t, os.Mkdir(nested, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(nested, "t.cue"), []byte("package targets\n"), 0644))

		files, err := FindCUEFiles(dir)
		require.NoError(t, err)
		assert.Empty(t, files)

		_, errs := LoadTargets(dir, LoadModeFailFast)
		require.Len(t, errs, 1)
		var le *LoadError
		require.ErrorAs(t, errs[0], &le)
		assert.Equal(t, ErrCodeNoFiles, le.Code)
	})

	t.Run("collects every bad target", func(t *testing.T) {
		dir := t.TempDir()
		src := `package targets

target: a: { platform: "linux", bogus: 1 }
target: b: { platform: "linux", shim: true }
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "t.cue"), []byte(src), 0644))

		_, errs := LoadTargets(dir, LoadModeCollectAll)
		require.Len(t, errs, 2)
		for _, err := range errs {
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, ErrTargetField, le.Code)
			assert.True(t, le.Pos.IsValid())
		}

		_, errs = LoadTargets(dir, LoadModeFailFast)
		assert.Len(t, errs, 1)
	})

	t.Run("module without kind", func(t *testing.T) {
		dir := t.TempDir()
		src := `package targets

module: Core: { deps: ["engine"] }
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "m.cue"), []byte(src), 0644))

		_, errs := LoadTargets(dir, LoadModeCollectAll)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "kind is required")
	})
}
