package constant

// Structured error codes for guard middleware responses
const (
	ErrCodeNoLicense      = "LGD-0001"
	ErrCodeLicenseInvalid = "LGD-0002"
	ErrCodeDeviceMismatch = "LGD-0003"
	ErrCodeDeviceLimit    = "LGD-0004"
	ErrCodeOfflineExpired = "LGD-0005"
	ErrCodeClockTampered  = "LGD-0006"
	ErrCodeGuardError     = "LGD-0007"
)
