package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Exchange.BaseURL = ""
	cfg.Engine.Lookback = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "lookback")
}

func TestValidateEncryptedCredentialsNeedPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.EncryptedCredentialsPath = "creds.enc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials_password")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[engine]
lookback = 100
poll_interval = "30s"

[server]
port = 9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 100, cfg.Engine.Lookback)
	assert.Equal(t, 30*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 9000, cfg.Server.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.pionex.com", cfg.Exchange.BaseURL)
	assert.Equal(t, "data/bots.json", cfg.Snapshot.Path)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"info\"\n"), 0o644))

	t.Setenv("TRADEBOT_LOG_LEVEL", "warn")
	t.Setenv("TRADEBOT_SERVER_PORT", "7777")
	t.Setenv("TRADEBOT_ENGINE_POLL_INTERVAL", "5s")
	t.Setenv("TRADEBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
