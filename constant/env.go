package constant

// Environment variable prefix consumed by envconfig
const EnvPrefix = "LICENSE_GUARD"

// Fully qualified environment variable names (prefix + field)
const (
	// EnvAppSalt is the application-level secret salt used in key derivation
	EnvAppSalt = "LICENSE_GUARD_APP_SALT"

	// EnvProduction toggles the production mode flag
	EnvProduction = "LICENSE_GUARD_PRODUCTION"

	// EnvAuthorityURL is the base URL of the license authority
	EnvAuthorityURL = "LICENSE_GUARD_AUTHORITY_URL"

	// EnvAppVersion is the application version reported on verification
	EnvAppVersion = "LICENSE_GUARD_APP_VERSION"

	// EnvCachePath overrides the default license cache file location
	EnvCachePath = "LICENSE_GUARD_CACHE_PATH"
)
