package constant

import "time"

// TimeConstants defines timeout and interval values for the guard loop
const (
	// DefaultConnectivityTimeout is the timeout for the connectivity probe
	DefaultConnectivityTimeout = 5 * time.Second
	// DefaultVerifyTimeout is the timeout for the authenticated verification call
	DefaultVerifyTimeout = 30 * time.Second
	// DefaultValidInterval is the inter-cycle wait while the license is valid
	DefaultValidInterval = 300 * time.Second
	// DefaultGraceInterval is the shorter inter-cycle wait while in offline grace,
	// so reconnection is detected quickly
	DefaultGraceInterval = 60 * time.Second
	// DefaultStopTimeout bounds how long Stop waits for the worker to exit
	DefaultStopTimeout = 2 * time.Second
)

// Offline grace defaults
const (
	// DefaultOfflineGraceHours is the offline grace period applied when the
	// authority does not specify one on the token
	DefaultOfflineGraceHours = 72
)

// Clock integrity thresholds
const (
	// ClockBackwardTolerance absorbs NTP jitter when comparing wall-clock readings
	ClockBackwardTolerance = 60 * time.Second
	// ClockDriftThreshold is the maximum amount the monotonic delta may exceed
	// the wall-clock delta before the clock is considered manipulated
	ClockDriftThreshold = time.Hour
)

// Key derivation parameters
const (
	// KDFIterations is the PBKDF2 iteration count (OWASP guidance, >=480k)
	KDFIterations = 600_000
	// KDFKeyLen is the derived key length in bytes (AES-256)
	KDFKeyLen = 32
	// MinAppSaltLen is the minimum accepted application salt length in bytes
	MinAppSaltLen = 16
)

// Result cache configuration (ristretto)
const (
	// ResultCacheTTL is the time-to-live for cached verification results
	// served to on-demand callers between polling cycles
	ResultCacheTTL = 30 * time.Second
	// ResultCacheNumCounters is the number of keys to track frequency
	ResultCacheNumCounters = 1e4
	// ResultCacheMaxCost is the maximum cost of the cache
	ResultCacheMaxCost = 1 << 16
	// ResultCacheBufferItems is the number of keys per Get buffer
	ResultCacheBufferItems = 64
)
