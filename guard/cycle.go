package guard

import (
	"context"
	"time"

	libErr "github.com/narravox/lib-guard-go/error"
	"github.com/narravox/lib-guard-go/internal/verifier"
	"github.com/narravox/lib-guard-go/model"
)

// nextAction tells the loop what to do after a cycle.
type nextAction int

const (
	// actionPoll schedules the next cycle after the adaptive interval
	actionPoll nextAction = iota
	// actionIdle parks the loop until a token arrives (NO_LICENSE)
	actionIdle
	// actionExit stops the loop (exit states)
	actionExit
)

// run is the worker loop. Cycles are strictly sequential and single-flight:
// a new cycle never starts before the previous one, including its network
// calls, has completed.
func (g *Guard) run(ctx context.Context) {
	defer close(g.done)

	for {
		result, next := g.cycle(ctx)

		if ctx.Err() != nil {
			return
		}

		g.publish(result)

		switch next {
		case actionExit:
			if result.Status.Terminal() {
				g.logger.Errorf("License guard stopping on terminal status %s", result.Status)
			}

			return
		case actionIdle:
			select {
			case <-ctx.Done():
				return
			case <-g.wake:
			}
		default:
			timer := time.NewTimer(g.intervalFor(result.Status))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-g.wake:
				// A new token arrived; verify it without waiting out the
				// full interval.
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// intervalFor returns the adaptive inter-cycle wait: shorter during offline
// grace so reconnection is detected quickly.
func (g *Guard) intervalFor(status model.Status) time.Duration {
	if status == model.StatusOfflineGrace {
		return g.cfg.GraceInterval
	}

	return g.cfg.ValidInterval
}

// cycle executes one verification pass and returns the resulting state.
func (g *Guard) cycle(ctx context.Context) (model.VerificationResult, nextAction) {
	g.mu.Lock()
	token := g.token.Clone()
	g.mu.Unlock()

	// 1. No cached token: wait for an external login, do not poll.
	if token == nil {
		return model.VerificationResult{
			Status:  model.StatusNoLicense,
			Message: "no license installed",
		}, actionIdle
	}

	// 2. Confirm device identity. A fingerprint mismatch is a hard failure,
	// never silently repaired.
	liveFingerprint, err := g.fingerprint.Generate()
	if err != nil {
		g.logger.Errorf("Failed to generate device fingerprint: %v", err)

		return model.VerificationResult{
			Status:  model.StatusError,
			Message: "device identity unavailable",
		}, actionPoll
	}

	if token.DeviceFingerprint != "" && token.DeviceFingerprint != liveFingerprint {
		g.logger.Errorf("Cached license is bound to a different device, forcing logout")
		g.destroyToken()
		g.forceLogout("license is bound to a different device")

		return model.VerificationResult{
			Status:  model.StatusDeviceMismatch,
			Message: "license is bound to a different device",
		}, actionExit
	}

	// 3. Probe connectivity and take the online or offline path.
	online := g.verifier.CheckConnectivity(ctx)

	if ctx.Err() != nil {
		return g.CurrentStatus(), actionExit
	}

	if online {
		return g.onlineCycle(ctx, token, liveFingerprint)
	}

	return g.offlineCycle(token)
}

// onlineCycle delegates to the remote verifier and applies its outcome.
func (g *Guard) onlineCycle(ctx context.Context, token *model.LicenseToken, liveFingerprint string) (model.VerificationResult, nextAction) {
	outcome, err := g.verifier.CloudVerify(ctx, token.Token, liveFingerprint, g.cfg.AppVersion, token)
	if err != nil {
		if ctx.Err() != nil {
			return g.CurrentStatus(), actionExit
		}

		// A timeout mid-verify is not an error; the connection dropped
		// between the probe and the call. Fall back to the offline path.
		if libErr.IsConnectionError(err) {
			g.logger.Warnf("Verification call failed with a connection error, falling back to offline path: %v", err)
			return g.offlineCycle(token)
		}

		g.logger.Errorf("Verification failed: %v", err)

		return model.VerificationResult{
			Status:  model.StatusError,
			Message: "verification failed: " + err.Error(),
		}, actionPoll
	}

	result := outcome.Result

	switch result.Status {
	case model.StatusValid:
		g.applyRefreshedToken(token, outcome, liveFingerprint)
		return result, actionPoll

	case model.StatusRevoked:
		g.logger.Errorf("License revoked by the authority: %s", result.Message)
		g.destroyToken()
		g.forceLogout(result.Message)

		return result, actionExit

	case model.StatusNoLicense:
		g.logger.Warnf("Authority reports no active subscription, clearing cached license")
		g.destroyToken()

		return result, actionIdle

	default:
		// EXPIRED, TRIAL_EXPIRED, DEVICE_LIMIT: surfaced as-is, keep polling.
		return result, actionPoll
	}
}

// applyRefreshedToken persists the refreshed credential and resets the clock
// baseline. Only a successful cloud verification mutates the token.
func (g *Guard) applyRefreshedToken(token *model.LicenseToken, outcome *verifier.Outcome, liveFingerprint string) {
	now := time.Now()

	refreshed := token.Clone()
	refreshed.DeviceFingerprint = liveFingerprint

	if outcome.Token != "" {
		refreshed.Token = outcome.Token
	}

	result := outcome.Result

	if result.Tier != "" {
		refreshed.Tier = result.Tier
	}

	if result.Features != nil {
		refreshed.Features = result.Features
	}

	if !result.ExpiresAt.IsZero() {
		refreshed.ExpiresAt = result.ExpiresAt
	}

	if refreshed.IssuedAt.IsZero() {
		refreshed.IssuedAt = now
	}

	serverTime := outcome.ServerTime
	if !serverTime.IsZero() {
		refreshed.LastOnlineCheck = serverTime
	} else {
		refreshed.LastOnlineCheck = now
	}

	if err := g.store.Save(refreshed); err != nil {
		g.logger.Errorf("Failed to persist refreshed license: %v", err)
	}

	g.mu.Lock()
	g.token = refreshed
	g.mu.Unlock()

	g.clock.ResetBaseline(serverTime)

	g.logger.Infof("License verified [tier: %s | expires: %s]",
		refreshed.Tier, refreshed.ExpiresAt.Format(time.RFC3339))
}

// offlineCycle decides grace-period validity without network access.
func (g *Guard) offlineCycle(token *model.LicenseToken) (model.VerificationResult, nextAction) {
	if g.clock.DetectManipulation() {
		g.logger.Errorf("Clock manipulation detected while offline, denying offline use")

		return model.VerificationResult{
			Status:      model.StatusError,
			Message:     "system clock manipulation detected; reconnect to restore access",
			NeedsAction: true,
			Action:      "reconnect",
		}, actionPoll
	}

	offlineFor := g.clock.SecureOfflineDuration(token.LastOnlineCheck)
	grace := token.GracePeriod()

	if offlineFor <= grace {
		remaining := grace - offlineFor

		return model.VerificationResult{
			Status:         model.StatusOfflineGrace,
			Message:        "offline, running on grace period",
			Tier:           token.Tier,
			Features:       token.Features,
			ExpiresAt:      token.ExpiresAt,
			GraceRemaining: remaining,
		}, actionPoll
	}

	g.logger.Errorf("Offline grace period exhausted (offline for %s, grace %s), forcing logout", offlineFor, grace)
	g.destroyToken()
	g.forceLogout("offline grace period exhausted")

	return model.VerificationResult{
		Status:  model.StatusOfflineExpired,
		Message: "offline grace period exhausted",
	}, actionExit
}

// destroyToken deletes the cache file and clears the in-memory token.
func (g *Guard) destroyToken() {
	g.mu.Lock()
	g.token = nil
	g.mu.Unlock()

	if err := g.store.Delete(); err != nil {
		g.logger.Warnf("Failed to delete license cache: %v", err)
	}
}

// publish records the cycle result and fires the status-change callback.
// Callback panics are recovered so they never crash the worker.
func (g *Guard) publish(result model.VerificationResult) {
	g.mu.Lock()
	g.lastResult = result
	fn := g.onStatusChange
	g.mu.Unlock()

	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Errorf("Status-change callback panicked: %v", r)
		}
	}()

	fn(cloneResult(result))
}

// forceLogout triggers the forced-logout handler. The default handler
// panics; the recover keeps the worker intact either way.
func (g *Guard) forceLogout(reason string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Errorf("Forced-logout handler panicked: %v", r)
		}
	}()

	g.logoutMgr.Trigger(reason)
}
