// Package guard implements the license guard: a background worker that
// continuously verifies whether the application holds a valid, device-bound
// subscription license, while allowing bounded offline use.
package guard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/LerianStudio/lib-commons/commons/zap"
	"github.com/narravox/lib-guard-go/constant"
	"github.com/narravox/lib-guard-go/fingerprint"
	"github.com/narravox/lib-guard-go/internal/cache"
	"github.com/narravox/lib-guard-go/internal/clock"
	"github.com/narravox/lib-guard-go/internal/config"
	"github.com/narravox/lib-guard-go/internal/logout"
	"github.com/narravox/lib-guard-go/internal/verifier"
	"github.com/narravox/lib-guard-go/model"
)

// Config is the public configuration surface re-exported for embedders.
type Config = config.GuardConfig

// LoadConfigFromEnv builds the guard configuration from LICENSE_GUARD_*
// environment variables. In production mode the application salt is
// mandatory; a missing salt is a startup error, never a silent default.
func LoadConfigFromEnv() (*Config, error) {
	return config.LoadFromEnv()
}

// tokenStore is the persistence surface the guard needs.
type tokenStore interface {
	Save(token *model.LicenseToken) error
	Load() (*model.LicenseToken, bool)
	Delete() error
}

// clockMonitor is the clock-integrity surface the guard needs.
type clockMonitor interface {
	ResetBaseline(serverTime time.Time)
	DetectManipulation() bool
	SecureOfflineDuration(lastOnlineCheck time.Time) time.Duration
}

// remoteVerifier is the authority-facing surface the guard needs.
type remoteVerifier interface {
	CheckConnectivity(ctx context.Context) bool
	CloudVerify(ctx context.Context, authToken, deviceFingerprint, appVersion string, current *model.LicenseToken) (*verifier.Outcome, error)
	LastResult(deviceFingerprint string) (model.VerificationResult, bool)
}

// Guard owns the current license state and drives the verification loop.
// All state mutation happens on the worker goroutine; readers only ever see
// immutable snapshots.
type Guard struct {
	cfg         *config.GuardConfig
	store       tokenStore
	clock       clockMonitor
	verifier    remoteVerifier
	fingerprint fingerprint.Provider
	logoutMgr   *logout.Manager
	logger      log.Logger

	// mu guards token and lastResult; taken only for copy-out, never across
	// network calls
	mu         sync.Mutex
	token      *model.LicenseToken
	lastResult model.VerificationResult

	onStatusChange func(model.VerificationResult)

	// loop lifecycle
	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	// wake interrupts the NO_LICENSE idle wait when a token arrives
	wake chan struct{}
}

// New creates a license guard. If logger is nil, defaults to a standard zap
// logger. The fingerprint provider binds the cached license to this machine.
func New(cfg *config.GuardConfig, fp fingerprint.Provider, logger *log.Logger) (*Guard, error) {
	var l log.Logger
	if logger != nil {
		l = *logger
	} else {
		l = zap.InitializeLogger()
	}

	if err := cfg.Validate(); err != nil {
		l.Errorf("Invalid guard configuration: %s", err.Error())
		return nil, err
	}

	deviceID, err := fp.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate device fingerprint: %w", err)
	}

	cachePath, err := cfg.ResolveCachePath()
	if err != nil {
		return nil, err
	}

	remote, err := verifier.New(cfg, l)
	if err != nil {
		return nil, err
	}

	g := &Guard{
		cfg:         cfg,
		store:       cache.NewStore(cachePath, deviceID, cfg.AppSalt, l),
		clock:       clock.NewMonitor(l),
		verifier:    remote,
		fingerprint: fp,
		logoutMgr:   logout.New(),
		logger:      l,
		wake:        make(chan struct{}, 1),
	}

	g.restoreFromCache()

	return g, nil
}

// restoreFromCache loads the cached token, if any, and derives the initial
// state from its presence.
func (g *Guard) restoreFromCache() {
	token, ok := g.store.Load()
	if !ok {
		g.lastResult = model.VerificationResult{
			Status:  model.StatusNoLicense,
			Message: "no cached license found",
		}

		return
	}

	g.token = token
	g.lastResult = model.VerificationResult{
		Status:    model.StatusValid,
		Message:   "restored cached license, pending verification",
		Tier:      token.Tier,
		Features:  token.Features,
		ExpiresAt: token.ExpiresAt,
	}

	g.logger.Infof("Restored cached license for %s [tier: %s | expires: %s]",
		token.Email, token.Tier, token.ExpiresAt.Format(time.RFC3339))
}

// OnStatusChange registers a callback fired exactly once per verification
// cycle, even when the new state has the same kind as the previous one.
// Invocation is best-effort: a panic inside the callback never crashes the
// worker.
func (g *Guard) OnStatusChange(fn func(model.VerificationResult)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onStatusChange = fn
}

// OnForceLogout registers the handler invoked when the guard reaches an exit
// state. The default handler panics so unlicensed use never continues
// silently.
func (g *Guard) OnForceLogout(handler func(reason string)) {
	g.logoutMgr.SetHandler(handler)
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (g *Guard) SetHTTPClient(client *http.Client) {
	if v, ok := g.verifier.(*verifier.Client); ok {
		v.SetHTTPClient(client)
	}
}

// Logger returns the logger used by the guard.
func (g *Guard) Logger() log.Logger {
	return g.logger
}

// CurrentStatus returns a non-blocking snapshot of the latest verification
// result. Safe to call from any goroutine.
func (g *Guard) CurrentStatus() model.VerificationResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	return cloneResult(g.lastResult)
}

// Verify performs an on-demand verification for callers that need a fresher
// answer than the polled snapshot, such as a login flow or a billing page.
// Bursts are served from the verifier's short-TTL result cache; only a cache
// miss reaches the authority. Offline or failing calls fall back to the
// snapshot, and the polling loop remains the sole owner of state transitions.
func (g *Guard) Verify(ctx context.Context) model.VerificationResult {
	g.mu.Lock()
	token := g.token.Clone()
	g.mu.Unlock()

	if token == nil {
		return g.CurrentStatus()
	}

	liveFingerprint, err := g.fingerprint.Generate()
	if err != nil {
		return g.CurrentStatus()
	}

	if res, ok := g.verifier.LastResult(liveFingerprint); ok {
		return cloneResult(res)
	}

	outcome, err := g.verifier.CloudVerify(ctx, token.Token, liveFingerprint, g.cfg.AppVersion, token)
	if err != nil {
		g.logger.Debugf("On-demand verification failed, serving the polled snapshot: %v", err)
		return g.CurrentStatus()
	}

	return cloneResult(outcome.Result)
}

// CurrentToken returns a copy of the cached token, or nil when logged out.
func (g *Guard) CurrentToken() *model.LicenseToken {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.token.Clone()
}

// SetToken installs a freshly issued token after an external login, binds it
// to this device, persists it and wakes the loop.
func (g *Guard) SetToken(token *model.LicenseToken) error {
	if token == nil {
		return fmt.Errorf("token must not be nil")
	}

	deviceID, err := g.fingerprint.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate device fingerprint: %w", err)
	}

	bound := token.Clone()
	bound.DeviceFingerprint = deviceID

	if bound.OfflineGraceHours <= 0 {
		bound.OfflineGraceHours = g.cfg.OfflineGraceHours
	}

	if err := g.store.Save(bound); err != nil {
		return err
	}

	g.mu.Lock()
	g.token = bound
	g.mu.Unlock()

	// Wake the loop in case it is idling in NO_LICENSE.
	select {
	case g.wake <- struct{}{}:
	default:
	}

	return nil
}

// ClearToken destroys the cached license: the file is deleted and the
// in-memory copy cleared. Used on logout.
func (g *Guard) ClearToken() error {
	g.mu.Lock()
	g.token = nil
	g.lastResult = model.VerificationResult{
		Status:  model.StatusNoLicense,
		Message: "logged out",
	}
	g.mu.Unlock()

	return g.store.Delete()
}

// Start launches the background verification worker. Calling Start on a
// running guard is a no-op.
func (g *Guard) Start(ctx context.Context) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	if g.started {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	g.started = true

	go g.run(runCtx)

	g.logger.Infof("License guard started [valid interval: %s | grace interval: %s]",
		g.cfg.ValidInterval, g.cfg.GraceInterval)
}

// Stop requests cancellation, wakes any pending wait and joins the worker
// with a bounded timeout. Idempotent and safe to call multiple times.
func (g *Guard) Stop() {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	if !g.started {
		return
	}

	g.cancel()
	g.cancel = nil
	g.started = false

	select {
	case <-g.done:
	case <-time.After(constant.DefaultStopTimeout):
		g.logger.Warnf("License guard worker did not exit within %s", constant.DefaultStopTimeout)
	}

	g.logger.Info("License guard stopped")
}

// cloneResult deep-copies the slices and maps a result carries so callers
// never alias guard-owned state.
func cloneResult(res model.VerificationResult) model.VerificationResult {
	if res.Features != nil {
		features := make(map[string]any, len(res.Features))
		for k, v := range res.Features {
			features[k] = v
		}

		res.Features = features
	}

	if res.ActiveDevices != nil {
		devices := make([]model.DeviceInfo, len(res.ActiveDevices))
		copy(devices, res.ActiveDevices)
		res.ActiveDevices = devices
	}

	return res
}
