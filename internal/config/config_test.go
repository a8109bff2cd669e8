package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIDTUBE_ENV", "")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.False(t, cfg.Production())
	assert.False(t, cfg.Cookies.Secure)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	assert.NotEmpty(t, cfg.Tokens.AccessSecret)
	assert.NotEqual(t, cfg.Tokens.AccessSecret, cfg.Tokens.RefreshSecret)
	assert.False(t, cfg.ObjectStore.Enabled())
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("VIDTUBE_ENV", "production")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadProductionRejectsSharedSecret(t *testing.T) {
	t.Setenv("VIDTUBE_ENV", "production")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "same")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "same")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadProductionSecureCookies(t *testing.T) {
	t.Setenv("VIDTUBE_ENV", "production")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "access")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "refresh")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.True(t, cfg.Cookies.Secure)
	assert.Equal(t, 5*time.Minute, cfg.Tokens.AccessTTL)

	t.Setenv("VIDTUBE_COOKIE_SECURE", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.Cookies.Secure)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("VIDTUBE_STORE", "sqlite")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvertedTTLs(t *testing.T) {
	t.Setenv("VIDTUBE_ACCESS_TOKEN_TTL", "2h")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_TTL", "1h")

	_, err := Load()
	require.Error(t, err)
}
