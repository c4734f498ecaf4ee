package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 200, cfg.Grid.Width)
	assert.Equal(t, 50, cfg.Grid.Height)
	assert.Equal(t, DefaultModelFilename, cfg.ModelPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPartialYAML(t *testing.T) {
	path := writeConfig(t, "topology.yaml", "port: 9090\nmodel_path: /srv/models/mlp.json\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/srv/models/mlp.json", cfg.ModelPath)
	// untouched fields keep defaults
	assert.Equal(t, 200, cfg.Grid.Width)
	assert.Equal(t, 16, cfg.Sessions.MaxSessions)
}

func TestLoadRejectsExtension(t *testing.T) {
	path := writeConfig(t, "topology.json", "{}")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad grid", "grid:\n  width: 0\n  height: 50\n"},
		{"bad port", "port: 70000\n"},
		{"bad timeout", "sessions:\n  idle_timeout: soon\n"},
		{"bad sessions", "sessions:\n  max_sessions: 0\n"},
		{"not yaml", "port: [1, 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "topology.yaml", tt.body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSessionIdleTimeout(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout())

	cfg.Sessions.IdleTimeout = "90s"
	assert.Equal(t, 90*time.Second, cfg.SessionIdleTimeout())

	cfg.Sessions.IdleTimeout = ""
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout())
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Empty(t, s.ModelPackPath)
	assert.Empty(t, s.ModelPackArtifact())

	s.ModelPackPath = "/packs/beam"
	s.ModelFile = "model.db"
	require.NoError(t, SaveSettings(s))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.Equal(t, filepath.Join("/packs/beam", "model.db"), loaded.ModelPackArtifact())
}
