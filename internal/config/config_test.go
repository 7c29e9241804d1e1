package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "be-po-approvals", cfg.Service.Name)
	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "po_approvals", cfg.Database.Database)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("POAPPROVALS_SERVER_PORT", "9095")
	t.Setenv("POAPPROVALS_DATABASE_HOST", "db.internal")
	t.Setenv("POAPPROVALS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9095, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("POAPPROVALS_SERVER_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}
