package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/narravox/lib-guard-go/constant"
)

// GuardConfig holds the configuration for the license guard
type GuardConfig struct {
	// AuthorityURL is the base URL of the license authority
	AuthorityURL string `envconfig:"AUTHORITY_URL"`
	// AppVersion is reported to the authority on each verification
	AppVersion string `envconfig:"APP_VERSION" default:"dev"`

	// AppSalt is the application-level secret salt mixed into cache key
	// derivation. Mandatory in production; there is no default.
	AppSalt string `envconfig:"APP_SALT"`
	// Production enforces the salt requirement at startup
	Production bool `envconfig:"PRODUCTION" default:"false"`

	// CachePath is the license cache file location
	CachePath string `envconfig:"CACHE_PATH"`

	// HTTP configuration
	ConnectivityTimeout time.Duration `envconfig:"CONNECTIVITY_TIMEOUT" default:"5s"`
	VerifyTimeout       time.Duration `envconfig:"VERIFY_TIMEOUT" default:"30s"`

	// Polling configuration. GraceInterval must stay shorter than
	// ValidInterval so reconnection is detected quickly during grace.
	ValidInterval time.Duration `envconfig:"VALID_INTERVAL" default:"300s"`
	GraceInterval time.Duration `envconfig:"GRACE_INTERVAL" default:"60s"`

	// OfflineGraceHours applies when the token carries no explicit value
	OfflineGraceHours int `envconfig:"OFFLINE_GRACE_HOURS" default:"72"`
}

// LoadFromEnv builds the config from LICENSE_GUARD_* environment variables
// and validates it.
func LoadFromEnv() (*GuardConfig, error) {
	var cfg GuardConfig

	if err := envconfig.Process(constant.EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load guard configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid. The production salt check is
// a hard invariant: a production build must refuse to start without a salt
// rather than fall back to a default.
func (c *GuardConfig) Validate() error {
	if c.AuthorityURL == "" {
		return errors.New("authority URL is required")
	}

	if c.Production && c.AppSalt == "" {
		return fmt.Errorf("%s is required when %s is set", constant.EnvAppSalt, constant.EnvProduction)
	}

	if c.AppSalt != "" && len(c.AppSalt) < constant.MinAppSaltLen {
		return fmt.Errorf("application salt must be at least %d bytes", constant.MinAppSaltLen)
	}

	if c.GraceInterval <= 0 || c.ValidInterval <= 0 {
		return errors.New("polling intervals must be positive")
	}

	if c.GraceInterval >= c.ValidInterval {
		return errors.New("grace interval must be shorter than the valid interval")
	}

	if c.OfflineGraceHours <= 0 {
		c.OfflineGraceHours = constant.DefaultOfflineGraceHours
	}

	return nil
}

// ResolveCachePath returns the configured cache file path, defaulting to a
// fixed per-user location.
func (c *GuardConfig) ResolveCachePath() (string, error) {
	if c.CachePath != "" {
		return c.CachePath, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}

	return filepath.Join(dir, "narravox", "license.bin"), nil
}
