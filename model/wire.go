package model

// Verification outcome strings returned by the authority's verify endpoint.
const (
	OutcomeValid               = "VALID"
	OutcomeExpired             = "EXPIRED"
	OutcomeTrialExpired        = "TRIAL_EXPIRED"
	OutcomeDeviceLimitExceeded = "DEVICE_LIMIT_EXCEEDED"
	OutcomeDeviceConflict      = "DEVICE_CONFLICT"
	OutcomeDeviceDeactivated   = "DEVICE_DEACTIVATED"
	OutcomeNoSubscription      = "NO_SUBSCRIPTION"
	OutcomeError               = "ERROR"
)

// VerifyRequest is the request body posted to the verify endpoint.
type VerifyRequest struct {
	DeviceFingerprint string `json:"deviceFingerprint"`
	AppVersion        string `json:"appVersion"`
	CurrentToken      string `json:"currentToken,omitempty"`
}

// WireSubscription carries subscription details in a verify response.
type WireSubscription struct {
	Tier      Tier           `json:"tier"`
	Features  map[string]any `json:"features,omitempty"`
	PeriodEnd string         `json:"periodEnd,omitempty"`
}

// VerifyResponse is the response body of the verify endpoint.
type VerifyResponse struct {
	Status          string            `json:"status"`
	Message         string            `json:"message,omitempty"`
	Token           string            `json:"token,omitempty"`
	Subscription    *WireSubscription `json:"subscription,omitempty"`
	ServerTimestamp string            `json:"serverTimestamp,omitempty"`
	ActiveDevices   []DeviceInfo      `json:"activeDevices,omitempty"`
	MaxDevices      int               `json:"maxDevices,omitempty"`
}
