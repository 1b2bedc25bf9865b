package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
engine: ./bin/sync-replay
jobs: 8
history: ./history.db
timeout: 10m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./bin/sync-replay", cfg.Engine)
	assert.Equal(t, 8, cfg.Jobs)
	assert.Equal(t, "./history.db", cfg.History)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "engine: [unclosed")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_BadTimeout(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "timeout: banana")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestLoadConfig_NegativeJobs(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "jobs: -1")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs")
}

func TestLoadCorpusConfig_Absent(t *testing.T) {
	cfg, err := LoadCorpusConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadCorpusConfig_Present(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "engine: ./bin/sync-replay")

	cfg, err := LoadCorpusConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "./bin/sync-replay", cfg.Engine)
}

func TestLoadEffectiveConfig_FlagsWin(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
engine: ./bin/from-config
jobs: 2
timeout: 1m
`)

	opts := &ReplayOptions{
		RootOptions: &RootOptions{},
		Engine:      "./bin/from-flag",
		Jobs:        8,
		Timeout:     5 * time.Minute,
	}
	cfg, err := loadEffectiveConfig(opts, dir)
	require.NoError(t, err)
	assert.Equal(t, "./bin/from-flag", cfg.Engine)
	assert.Equal(t, 8, cfg.Jobs)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
}

func TestLoadEffectiveConfig_ConfigFillsGaps(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
engine: ./bin/from-config
history: ./history.db
`)

	opts := &ReplayOptions{RootOptions: &RootOptions{}}
	cfg, err := loadEffectiveConfig(opts, dir)
	require.NoError(t, err)
	assert.Equal(t, "./bin/from-config", cfg.Engine)
	assert.Equal(t, "./history.db", cfg.History)
	assert.Zero(t, cfg.Jobs)
}

func TestLoadEffectiveConfig_ExplicitPath(t *testing.T) {
	confDir := t.TempDir()
	path := writeConfig(t, confDir, "engine: ./bin/explicit")

	opts := &ReplayOptions{RootOptions: &RootOptions{}, Config: path}
	cfg, err := loadEffectiveConfig(opts, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "./bin/explicit", cfg.Engine)
}
