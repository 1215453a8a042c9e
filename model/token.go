package model

import "time"

// Tier is the closed set of subscription levels.
type Tier string

const (
	TierTrial      Tier = "trial"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// LicenseToken is the cached credential bound to one device. It is owned
// exclusively by the guard and mutated only after a successful cloud
// verification.
type LicenseToken struct {
	Token             string         `json:"token"`
	UserID            string         `json:"user_id"`
	Email             string         `json:"email"`
	Tier              Tier           `json:"tier"`
	Features          map[string]any `json:"features,omitempty"`
	IssuedAt          time.Time      `json:"issued_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
	DeviceID          string         `json:"device_id"`
	DeviceFingerprint string         `json:"device_fingerprint"`
	OfflineGraceHours int            `json:"offline_grace_hours"`
	LastOnlineCheck   time.Time      `json:"last_online_check"`
}

// GracePeriod returns the offline grace window as a duration, falling back
// to the default when the token carries no explicit value.
func (t *LicenseToken) GracePeriod() time.Duration {
	hours := t.OfflineGraceHours
	if hours <= 0 {
		hours = 72
	}

	return time.Duration(hours) * time.Hour
}

// Clone returns a deep copy so snapshot readers never alias guard-owned state.
func (t *LicenseToken) Clone() *LicenseToken {
	if t == nil {
		return nil
	}

	cp := *t

	if t.Features != nil {
		cp.Features = make(map[string]any, len(t.Features))
		for k, v := range t.Features {
			cp.Features[k] = v
		}
	}

	return &cp
}
