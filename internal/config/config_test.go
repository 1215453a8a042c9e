package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *GuardConfig {
	return &GuardConfig{
		AuthorityURL:        "https://licenses.example.com",
		AppVersion:          "1.0.0",
		AppSalt:             "unit-test-application-salt",
		ConnectivityTimeout: 5 * time.Second,
		VerifyTimeout:       30 * time.Second,
		ValidInterval:       300 * time.Second,
		GraceInterval:       60 * time.Second,
		OfflineGraceHours:   72,
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("LICENSE_GUARD_AUTHORITY_URL", "https://licenses.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://licenses.example.com", cfg.AuthorityURL)
	assert.Equal(t, "dev", cfg.AppVersion)
	assert.False(t, cfg.Production)
	assert.Equal(t, 5*time.Second, cfg.ConnectivityTimeout)
	assert.Equal(t, 30*time.Second, cfg.VerifyTimeout)
	assert.Equal(t, 300*time.Second, cfg.ValidInterval)
	assert.Equal(t, 60*time.Second, cfg.GraceInterval)
	assert.Equal(t, 72, cfg.OfflineGraceHours)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("LICENSE_GUARD_AUTHORITY_URL", "https://licenses.example.com")
	t.Setenv("LICENSE_GUARD_VALID_INTERVAL", "120s")
	t.Setenv("LICENSE_GUARD_GRACE_INTERVAL", "30s")
	t.Setenv("LICENSE_GUARD_OFFLINE_GRACE_HOURS", "168")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.ValidInterval)
	assert.Equal(t, 30*time.Second, cfg.GraceInterval)
	assert.Equal(t, 168, cfg.OfflineGraceHours)
}

func TestLoadFromEnvRequiresAuthorityURL(t *testing.T) {
	t.Setenv("LICENSE_GUARD_AUTHORITY_URL", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authority URL")
}

func TestValidateProductionRequiresSalt(t *testing.T) {
	cfg := validConfig()
	cfg.Production = true
	cfg.AppSalt = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_SALT")
}

func TestValidateProductionWithSalt(t *testing.T) {
	cfg := validConfig()
	cfg.Production = true

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsShortSalt(t *testing.T) {
	cfg := validConfig()
	cfg.AppSalt = "too-short"

	assert.Error(t, cfg.Validate())
}

func TestValidateEmptySaltAllowedOutsideProduction(t *testing.T) {
	cfg := validConfig()
	cfg.AppSalt = ""

	require.NoError(t, cfg.Validate())
}

func TestValidateIntervalRelationship(t *testing.T) {
	cfg := validConfig()
	cfg.GraceInterval = cfg.ValidInterval

	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.GraceInterval = -time.Second

	assert.Error(t, cfg.Validate())
}

func TestValidateDefaultsOfflineGraceHours(t *testing.T) {
	cfg := validConfig()
	cfg.OfflineGraceHours = 0

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 72, cfg.OfflineGraceHours)
}

func TestResolveCachePathPrefersExplicit(t *testing.T) {
	cfg := validConfig()
	cfg.CachePath = filepath.Join(t.TempDir(), "license.bin")

	path, err := cfg.ResolveCachePath()
	require.NoError(t, err)
	assert.Equal(t, cfg.CachePath, path)
}

func TestResolveCachePathDefaultsToUserConfigDir(t *testing.T) {
	cfg := validConfig()
	cfg.CachePath = ""

	path, err := cfg.ResolveCachePath()
	require.NoError(t, err)
	assert.Equal(t, "license.bin", filepath.Base(path))
	assert.Contains(t, path, "narravox")
}
