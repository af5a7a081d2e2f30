package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBase(t *testing.T) {
	t.Setenv("DB_DATABASE", "vaxtrack")
	t.Setenv("DB_APP_USER", "vaxtrack_app")
	t.Setenv("DB_USER", "vaxtrack_user")
	t.Setenv("AUTHZ_URL", "http://localhost:8080")
	t.Setenv("AUTHZ_CLIENT_ID", "client")
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, AuthModeAuthorizer, cfg.AuthMode)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 4*time.Second, cfg.NoticeTTL)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 5, cfg.DBAppConnectionLimit)
}

func TestLoadRequired(t *testing.T) {
	setBase(t)
	t.Setenv("DB_DATABASE", "")
	_, err := Load()
	assert.EqualError(t, err, "DB_DATABASE is required")
}

func TestLoadJWTMode(t *testing.T) {
	setBase(t)
	t.Setenv("AUTH_MODE", AuthModeJWT)

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET is required")

	t.Setenv("JWT_SECRET", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.JWTSecret)
}

func TestLoadSqliteSkipsCredentials(t *testing.T) {
	setBase(t)
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_APP_USER", "")
	t.Setenv("DB_USER", "")

	_, err := Load()
	assert.NoError(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	setBase(t)
	t.Setenv("SEARCH_DEBOUNCE", "soon")
	t.Setenv("DB_CONNECTION_LIMIT", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 10, cfg.DBConnectionLimit)

	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("AUTH_MODE", "magic")
	_, err = Load()
	assert.EqualError(t, err, "unsupported AUTH_MODE: magic")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VAXTRACK_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("VAXTRACK_TEST_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("VAXTRACK_TEST_VALUE"))

	assert.NoError(t, LoadEnvFile(""))
	assert.Error(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
