package model

import "time"

// DeviceInfo describes another device holding the same license, returned by
// the authority when the device limit is exceeded.
type DeviceInfo struct {
	DeviceID   string    `json:"deviceId"`
	Name       string    `json:"name,omitempty"`
	LastSeenAt time.Time `json:"lastSeenAt,omitempty"`
}

// VerificationResult is the outcome of one verification cycle. It is produced
// fresh each cycle and never persisted.
type VerificationResult struct {
	Status         Status         `json:"status"`
	Message        string         `json:"message,omitempty"`
	Tier           Tier           `json:"tier,omitempty"`
	Features       map[string]any `json:"features,omitempty"`
	ExpiresAt      time.Time      `json:"expiresAt,omitempty"`
	GraceRemaining time.Duration  `json:"graceRemaining,omitempty"`
	ActiveDevices  []DeviceInfo   `json:"activeDevices,omitempty"`
	MaxDevices     int            `json:"maxDevices,omitempty"`
	NeedsAction    bool           `json:"needsAction,omitempty"`
	Action         string         `json:"action,omitempty"`
}
