// Package middleware exposes the guard as HTTP middleware and gRPC
// interceptors so applications can gate request handling on license state.
package middleware

import (
	"context"
	"sync"

	"github.com/LerianStudio/lib-commons/commons/log"
	cn "github.com/narravox/lib-guard-go/constant"
	"github.com/narravox/lib-guard-go/guard"
	"github.com/narravox/lib-guard-go/model"
)

// GuardMiddleware is the public client API that exposes middleware
// functionality. It's a wrapper around the guard instance.
type GuardMiddleware struct {
	guard *guard.Guard
	// initOnce ensures the guard is started only once even when both HTTP
	// middleware and gRPC interceptors are used
	initOnce sync.Once
}

// NewGuardMiddleware wraps an existing guard with middleware capabilities.
func NewGuardMiddleware(g *guard.Guard) *GuardMiddleware {
	if g == nil {
		return nil
	}

	return &GuardMiddleware{guard: g}
}

// Startup launches the background verification loop once, regardless of how
// many middleware surfaces are attached.
func (m *GuardMiddleware) Startup() {
	m.initOnce.Do(func() {
		m.guard.Start(context.Background())
	})
}

// Guard returns the wrapped guard instance.
func (m *GuardMiddleware) Guard() *guard.Guard {
	return m.guard
}

// GetLogger returns the logger used by the guard.
func (m *GuardMiddleware) GetLogger() log.Logger {
	return m.guard.Logger()
}

// denial describes the structured error returned for a blocked request.
type denial struct {
	Code    string
	Title   string
	Message string
}

// denialFor maps a non-usable guard status to a structured denial.
func denialFor(res model.VerificationResult) denial {
	switch res.Status {
	case model.StatusNoLicense:
		return denial{cn.ErrCodeNoLicense, "No License", "No active license is installed on this device"}
	case model.StatusDeviceMismatch:
		return denial{cn.ErrCodeDeviceMismatch, "Device Mismatch", "The license is bound to a different device"}
	case model.StatusDeviceLimit:
		return denial{cn.ErrCodeDeviceLimit, "Device Limit Exceeded", "The license is active on too many devices"}
	case model.StatusOfflineExpired:
		return denial{cn.ErrCodeOfflineExpired, "Offline Grace Expired", "The offline grace period is exhausted, reconnect and sign in again"}
	case model.StatusError:
		if res.Action == "reconnect" {
			return denial{cn.ErrCodeClockTampered, "Clock Integrity", "System clock manipulation detected, reconnect to restore access"}
		}

		return denial{cn.ErrCodeGuardError, "License Verification Error", "License verification is currently failing"}
	default:
		return denial{cn.ErrCodeLicenseInvalid, "Invalid License", "The license is expired or invalid"}
	}
}
