package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimra/srl-bfd-agent/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "bfd-agent", cfg.AgentName)
	assert.Equal(t, "localhost:50053", cfg.NDKAddress)
	assert.Equal(t, 2*time.Second, cfg.RetryInterval)
	assert.Equal(t, "admin", cfg.GNMI.Username)
	assert.Empty(t, cfg.GNMI.Address)
	assert.False(t, cfg.StrictInterfaces)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("BFD_AGENT_NAME", "bfdd")
	t.Setenv("BFD_AGENT_RETRY_INTERVAL", "5s")
	t.Setenv("BFD_AGENT_GNMI_ADDRESS", "clab-srl1:57400")
	t.Setenv("BFD_AGENT_STRICT_INTERFACES", "true")
	t.Setenv("BFD_AGENT_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "bfdd", cfg.AgentName)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.Equal(t, "clab-srl1:57400", cfg.GNMI.Address)
	assert.True(t, cfg.StrictInterfaces)
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BFD_AGENT_STARTUP_CONFIG=/etc/bfd.hcl\nBFD_AGENT_TEST_ONLY=1\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("BFD_AGENT_STARTUP_CONFIG")
		os.Unsetenv("BFD_AGENT_TEST_ONLY")
	})

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/bfd.hcl", cfg.StartupConfig)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	t.Run("level", func(t *testing.T) {
		t.Setenv("BFD_AGENT_LOG_LEVEL", "loud")
		_, err := config.Load()
		assert.ErrorIs(t, err, config.ErrLogLevel)
	})
	t.Run("format", func(t *testing.T) {
		t.Setenv("BFD_AGENT_LOG_FORMAT", "xml")
		_, err := config.Load()
		assert.ErrorIs(t, err, config.ErrLogFormat)
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv("BFD_AGENT_RETRY_INTERVAL", "soon")
		_, err := config.Load()
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
