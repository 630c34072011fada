package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfile(t *testing.T) {
	assert.Equal(t, Local, ParseProfile(""))
	assert.Equal(t, Local, ParseProfile(" Development "))
	assert.Equal(t, Production, ParseProfile("production"))
	assert.Equal(t, Production, ParseProfile("prod-typo"))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, Local, cfg.Profile)
	assert.Equal(t, ":5005", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 5, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, 10, cfg.Auth.LoginRateLimit)
	assert.Equal(t, 15*time.Minute, cfg.Auth.LoginRateWindow)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Google.Enabled())
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AUTH_LOCKOUT_THRESHOLD=3\nREDIS_ADDR=localhost:6379\n"), 0o600))
	t.Setenv("APP_ENV", "local")
	t.Setenv("AUTH_LOGIN_RATE_WINDOW", "1m")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	// godotenv does not overwrite variables that are already set
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "")
	os.Unsetenv("AUTH_LOCKOUT_THRESHOLD")
	t.Setenv("REDIS_ADDR", "")
	os.Unsetenv("REDIS_ADDR")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Auth.LockoutThreshold)
	assert.Equal(t, time.Minute, cfg.Auth.LoginRateWindow)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestValidate_ProductionNeedsSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_SESSION_SECRET")

	t.Setenv("AUTH_SESSION_SECRET", "s3ssion-secret-that-is-long-enough-0123")
	t.Setenv("AUTH_TOKEN_SECRET", "t0ken-secret-that-is-long-enough-01234567")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_ALLOWED_ORIGINS")

	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://*.example")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wildcards")

	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://shelf.example")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Production, cfg.Profile)
	assert.Equal(t, []string{"https://shelf.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_LocalOriginsDefault(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "")
	os.Unsetenv("SERVER_ALLOWED_ORIGINS")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:*"}, cfg.Server.AllowedOrigins)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Driver: "sqlite"},
		Auth:     AuthConfig{LockoutThreshold: 0, LoginRateLimit: 1, ResetRateLimit: 1},
	}
	assert.Error(t, cfg.Validate())

	cfg.Auth.LockoutThreshold = 5
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate())
}
