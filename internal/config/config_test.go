package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reactsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "token: abc\n"))
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, 5, cfg.MaxProcessedPerSecond)
	assert.Equal(t, "reactsync.db", cfg.Database)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
api_url: http://localhost:9000
gateway_url: ws://localhost:9001
token: abc
self_id: bot-1
database: /var/lib/reactsync/state.db
max_processed_per_second: 2
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.APIURL)
	assert.Equal(t, "ws://localhost:9001", cfg.GatewayURL)
	assert.Equal(t, "bot-1", cfg.SelfID)
	assert.Equal(t, 2, cfg.MaxProcessedPerSecond)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("REACTSYNC_TOKEN", "from-env")

	cfg, err := Load(writeConfig(t, "token: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
}

func TestLoad_ZeroRateIsValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, "max_processed_per_second: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.MaxProcessedPerSecond)
}

func TestLoad_RejectsNegativeRate(t *testing.T) {
	_, err := Load(writeConfig(t, "max_processed_per_second: -1\n"))
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	_, err := Load(writeConfig(t, "log_level: loud\n"))
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
