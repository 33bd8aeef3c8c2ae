package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_AuthDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenExpiry)
	assert.Equal(t, 5, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, 2*time.Hour, cfg.Auth.LockoutDuration)
	assert.Nil(t, cfg.Auth.TOTPEncryptionKey)
	assert.Equal(t, "development", cfg.Server.Env)
}

func TestLoad_ServerTimeouts(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "30s")
	t.Setenv("SERVER_WRITE_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET is required")
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DB_PASSWORD is required")
}

func TestLoad_ProductionRequiresLongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-twenty-chars!!!")
	t.Setenv("DB_PASSWORD", "test")
	t.Setenv("ENV", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "at least 32 characters")
}

func TestLoad_TOTPKey(t *testing.T) {
	setRequired(t)
	key := make([]byte, 32)
	t.Setenv("TOTP_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(key))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Auth.TOTPEncryptionKey, 32)
}

func TestLoad_TOTPKeyWrongLength(t *testing.T) {
	setRequired(t)
	t.Setenv("TOTP_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	_, err := Load()
	assert.ErrorContains(t, err, "32 bytes")
}

func TestLoad_ListsAreSplit(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", "https://landmark.example, https://admin.landmark.example")
	t.Setenv("SES_STAFF_ADDRESSES", "sales@landmark.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://landmark.example", "https://admin.landmark.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []string{"sales@landmark.example"}, cfg.Notify.StaffAddresses)
}

func TestValidateJWTSecret_WeakValue(t *testing.T) {
	assert.Error(t, validateJWTSecret("changeme", "development"))
}

func TestLoadDatabase_DoesNotNeedJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")
	t.Setenv("DB_NAME", "landmark_ops")

	cfg, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "landmark_ops", cfg.Name)
	assert.Equal(t, 5432, cfg.Port)
	assert.Contains(t, cfg.DSN(), "dbname=landmark_ops")
}

func TestLoad_Bootstrap(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Bootstrap.Enabled())
	assert.Equal(t, "Super Admin", cfg.Bootstrap.Name)

	t.Setenv("SUPER_ADMIN_EMAIL", " root@landmark.test ")
	t.Setenv("SUPER_ADMIN_PASSWORD", "Str0ng-passphrase")
	t.Setenv("SUPER_ADMIN_NAME", "Root")

	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Bootstrap.Enabled())
	assert.Equal(t, "root@landmark.test", cfg.Bootstrap.Email)
	assert.Equal(t, "Root", cfg.Bootstrap.Name)
}

func TestLoadDatabase_PoolDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "test")
	t.Setenv("DB_STATEMENT_TIMEOUT", "5s")

	cfg, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.StatementTimeout)
	assert.Equal(t, "landmark-api", cfg.ApplicationName)
}
