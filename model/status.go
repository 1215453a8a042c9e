package model

// Status is the closed set of guard states.
type Status string

const (
	StatusNoLicense      Status = "NO_LICENSE"
	StatusValid          Status = "VALID"
	StatusExpired        Status = "EXPIRED"
	StatusTrialExpired   Status = "TRIAL_EXPIRED"
	StatusDeviceMismatch Status = "DEVICE_MISMATCH"
	StatusDeviceLimit    Status = "DEVICE_LIMIT"
	StatusRevoked        Status = "REVOKED"
	StatusOfflineGrace   Status = "OFFLINE_GRACE"
	StatusOfflineExpired Status = "OFFLINE_EXPIRED"
	StatusError          Status = "ERROR"
)

// Terminal reports whether the status is an exit state that stops the guard
// loop and forces a logout.
func (s Status) Terminal() bool {
	switch s {
	case StatusDeviceMismatch, StatusRevoked, StatusOfflineExpired:
		return true
	}

	return false
}

// Usable reports whether the application may keep running under this status.
func (s Status) Usable() bool {
	return s == StatusValid || s == StatusOfflineGrace
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}
