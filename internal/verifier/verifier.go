// Package verifier performs connectivity probing and the authenticated
// verification call against the remote license authority.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/narravox/lib-guard-go/constant"
	libErr "github.com/narravox/lib-guard-go/error"
	"github.com/narravox/lib-guard-go/internal/config"
	"github.com/narravox/lib-guard-go/model"
)

// Outcome bundles what one verification attempt produced: the mapped result
// plus the refreshed credential and trusted server time needed to persist it.
type Outcome struct {
	Result     model.VerificationResult
	Token      string
	ServerTime time.Time
}

// Client handles communication with the license authority.
type Client struct {
	probeClient  *http.Client
	verifyClient *http.Client
	cfg          *config.GuardConfig
	results      *ristretto.Cache[string, model.VerificationResult]
	logger       log.Logger
}

// New creates a new verifier client.
func New(cfg *config.GuardConfig, logger log.Logger) (*Client, error) {
	results, err := ristretto.NewCache(&ristretto.Config[string, model.VerificationResult]{
		NumCounters: constant.ResultCacheNumCounters,
		MaxCost:     constant.ResultCacheMaxCost,
		BufferItems: constant.ResultCacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize result cache: %w", err)
	}

	return &Client{
		probeClient:  &http.Client{Timeout: cfg.ConnectivityTimeout},
		verifyClient: &http.Client{Timeout: cfg.VerifyTimeout},
		cfg:          cfg,
		results:      results,
		logger:       logger,
	}, nil
}

// SetHTTPClient allows overriding the HTTP clients (useful for testing)
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.probeClient = client
		c.verifyClient = client
	}
}

// CheckConnectivity runs a short-timeout health probe. Any failure is
// treated as "offline", never as a hard error.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	url := fmt.Sprintf("%s/health", c.cfg.AuthorityURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.probeClient.Do(req)
	if err != nil {
		c.logger.Debugf("Connectivity probe failed, treating as offline: %v", err)
		return false
	}

	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// Any response means the authority is reachable; its health is judged
	// by the verify call itself.
	return true
}

// CloudVerify posts to the authority's verification endpoint and maps the
// response to exactly one verification outcome. Connection failures and
// timeouts are reported as ErrOffline so the caller falls back to the
// offline path; they are never surfaced as ERROR.
func (c *Client) CloudVerify(ctx context.Context, authToken, deviceFingerprint, appVersion string, current *model.LicenseToken) (*Outcome, error) {
	url := fmt.Sprintf("%s/v1/licenses/verify", c.cfg.AuthorityURL)

	reqBody := model.VerifyRequest{
		DeviceFingerprint: deviceFingerprint,
		AppVersion:        appVersion,
	}
	if current != nil {
		reqBody.CurrentToken = current.Token
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.verifyClient.Do(req)
	if err != nil {
		c.logger.Warnf("License verification request failed - error: %s", err.Error())

		if libErr.IsConnectionError(err) {
			return nil, fmt.Errorf("%w: %s", libErr.ErrOffline, err.Error())
		}

		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, &libErr.ApiError{
			StatusCode: resp.StatusCode,
			Msg:        fmt.Sprintf("verify endpoint returned status %d", resp.StatusCode),
		}
	}

	var wire model.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %s", libErr.ErrMalformedResponse, err.Error())
	}

	outcome, err := mapResponse(&wire)
	if err != nil {
		return nil, err
	}

	c.results.SetWithTTL(deviceFingerprint, outcome.Result, 1, constant.ResultCacheTTL)

	return outcome, nil
}

// LastResult serves the most recent verification result for burst reads
// between polling cycles.
func (c *Client) LastResult(deviceFingerprint string) (model.VerificationResult, bool) {
	return c.results.Get(deviceFingerprint)
}

// mapResponse converts the wire response to a verification outcome.
func mapResponse(wire *model.VerifyResponse) (*Outcome, error) {
	out := &Outcome{
		Result: model.VerificationResult{Message: wire.Message},
		Token:  wire.Token,
	}

	if wire.ServerTimestamp != "" {
		if ts, err := time.Parse(time.RFC3339, wire.ServerTimestamp); err == nil {
			out.ServerTime = ts
		}
	}

	if sub := wire.Subscription; sub != nil {
		out.Result.Tier = sub.Tier
		out.Result.Features = sub.Features

		if sub.PeriodEnd != "" {
			if end, err := time.Parse(time.RFC3339, sub.PeriodEnd); err == nil {
				out.Result.ExpiresAt = end
			}
		}
	}

	switch wire.Status {
	case model.OutcomeValid:
		out.Result.Status = model.StatusValid
	case model.OutcomeExpired:
		out.Result.Status = model.StatusExpired
		out.Result.NeedsAction = true
		out.Result.Action = "renew_subscription"
	case model.OutcomeTrialExpired:
		out.Result.Status = model.StatusTrialExpired
		out.Result.NeedsAction = true
		out.Result.Action = "upgrade_subscription"
	case model.OutcomeDeviceLimitExceeded:
		out.Result.Status = model.StatusDeviceLimit
		out.Result.ActiveDevices = wire.ActiveDevices
		out.Result.MaxDevices = wire.MaxDevices
		out.Result.NeedsAction = true
		out.Result.Action = "deactivate_device"
	case model.OutcomeDeviceConflict:
		out.Result.Status = model.StatusRevoked
		out.Result.Message = "device is registered to a different account"
	case model.OutcomeDeviceDeactivated:
		out.Result.Status = model.StatusRevoked
		out.Result.Message = "device was deactivated"
	case model.OutcomeNoSubscription:
		out.Result.Status = model.StatusNoLicense
		out.Result.NeedsAction = true
		out.Result.Action = "subscribe"
	default:
		return nil, fmt.Errorf("%w: unknown status %q", libErr.ErrMalformedResponse, wire.Status)
	}

	return out, nil
}
