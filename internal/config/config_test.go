package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EMBEDSQL_PROJECT", "")
	t.Setenv("EMBEDSQL_DATABASE_DIR", "")
	t.Setenv("EMBEDSQL_LOG_LEVEL", "")
	t.Setenv("EMBEDSQL_LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{Project: "embedsql", LogLevel: "info", LogFormat: "text"}, cfg)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("EMBEDSQL_PROJECT", "dungeon")
	t.Setenv("EMBEDSQL_DATABASE_DIR", "/srv/saves")
	t.Setenv("EMBEDSQL_LOG_LEVEL", "debug")
	t.Setenv("EMBEDSQL_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dungeon", cfg.Project)
	assert.Equal(t, "/srv/saves", cfg.DatabaseDir)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{"level", map[string]string{"EMBEDSQL_LOG_LEVEL": "loud"}, "EMBEDSQL_LOG_LEVEL"},
		{"format", map[string]string{"EMBEDSQL_LOG_FORMAT": "xml"}, "must be text or json"},
		{"project", map[string]string{"EMBEDSQL_PROJECT": "  "}, "EMBEDSQL_PROJECT is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse env:")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"EMBEDSQL_LOG_FORMAT": "json", "EMBEDSQL_LOG_LEVEL": "warn"})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf, false)
	logger.Info("dropped")
	logger.Warn("kept", "db", "world.db")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "world.db", entry["db"])

	buf.Reset()
	cfg.NewLogger(&buf, true).Debug("verbose")
	assert.Contains(t, buf.String(), "verbose")
}
