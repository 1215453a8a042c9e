package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	libErr "github.com/narravox/lib-guard-go/error"
	"github.com/narravox/lib-guard-go/internal/config"
	"github.com/narravox/lib-guard-go/model"
	"github.com/narravox/lib-guard-go/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, httpClient *http.Client) *Client {
	t.Helper()

	cfg := &config.GuardConfig{
		AuthorityURL:        "https://licenses.example.com",
		AppVersion:          "test",
		ConnectivityTimeout: 5 * time.Second,
		VerifyTimeout:       30 * time.Second,
		ValidInterval:       300 * time.Second,
		GraceInterval:       60 * time.Second,
	}

	c, err := New(cfg, mocks.NewLogger())
	require.NoError(t, err)

	c.SetHTTPClient(httpClient)

	return c
}

func verifyResponseBody(t *testing.T, resp model.VerifyResponse) []byte {
	t.Helper()

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	return body
}

func TestCheckConnectivityReachable(t *testing.T) {
	client := newTestClient(t, mocks.HTTPClientWithStatusMock(http.StatusOK, []byte(`{"status":"up"}`)))

	assert.True(t, client.CheckConnectivity(context.Background()))
}

func TestCheckConnectivityDegradedAuthorityStillCountsAsOnline(t *testing.T) {
	client := newTestClient(t, mocks.HTTPClientWithStatusMock(http.StatusInternalServerError, nil))

	assert.True(t, client.CheckConnectivity(context.Background()))
}

func TestCheckConnectivityOffline(t *testing.T) {
	client := newTestClient(t, mocks.HTTPClientConnectionErrorMock())

	assert.False(t, client.CheckConnectivity(context.Background()))
}

func TestCloudVerifyValid(t *testing.T) {
	body := verifyResponseBody(t, model.VerifyResponse{
		Status: model.OutcomeValid,
		Token:  "tok_refreshed",
		Subscription: &model.WireSubscription{
			Tier:      model.TierPro,
			Features:  map[string]any{"export": true},
			PeriodEnd: "2025-06-01T10:00:00Z",
		},
		ServerTimestamp: "2025-05-10T12:00:00Z",
	})

	var gotReq model.VerifyRequest

	client := newTestClient(t, mocks.NewHTTPClientMock(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/v1/licenses/verify", req.URL.Path)
		assert.Equal(t, "Bearer tok_current", req.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(req.Body).Decode(&gotReq))

		return mocks.NewHTTPResponse(http.StatusOK, body), nil
	}))

	current := &model.LicenseToken{Token: "tok_current"}

	outcome, err := client.CloudVerify(context.Background(), "tok_current", "fp-1", "1.2.3", current)
	require.NoError(t, err)

	assert.Equal(t, "fp-1", gotReq.DeviceFingerprint)
	assert.Equal(t, "1.2.3", gotReq.AppVersion)
	assert.Equal(t, "tok_current", gotReq.CurrentToken)

	assert.Equal(t, model.StatusValid, outcome.Result.Status)
	assert.Equal(t, "tok_refreshed", outcome.Token)
	assert.Equal(t, model.TierPro, outcome.Result.Tier)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), outcome.Result.ExpiresAt)
	assert.Equal(t, time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC), outcome.ServerTime)
	assert.False(t, outcome.Result.NeedsAction)
}

func TestCloudVerifyOutcomeMapping(t *testing.T) {
	cases := []struct {
		name        string
		wire        model.VerifyResponse
		wantStatus  model.Status
		wantAction  string
		needsAction bool
	}{
		{
			name:        "expired",
			wire:        model.VerifyResponse{Status: model.OutcomeExpired},
			wantStatus:  model.StatusExpired,
			wantAction:  "renew_subscription",
			needsAction: true,
		},
		{
			name:        "trial expired",
			wire:        model.VerifyResponse{Status: model.OutcomeTrialExpired},
			wantStatus:  model.StatusTrialExpired,
			wantAction:  "upgrade_subscription",
			needsAction: true,
		},
		{
			name: "device limit",
			wire: model.VerifyResponse{
				Status:        model.OutcomeDeviceLimitExceeded,
				ActiveDevices: []model.DeviceInfo{{DeviceID: "dev-1"}, {DeviceID: "dev-2"}},
				MaxDevices:    2,
			},
			wantStatus:  model.StatusDeviceLimit,
			wantAction:  "deactivate_device",
			needsAction: true,
		},
		{
			name:       "device conflict",
			wire:       model.VerifyResponse{Status: model.OutcomeDeviceConflict},
			wantStatus: model.StatusRevoked,
		},
		{
			name:       "device deactivated",
			wire:       model.VerifyResponse{Status: model.OutcomeDeviceDeactivated},
			wantStatus: model.StatusRevoked,
		},
		{
			name:        "no subscription",
			wire:        model.VerifyResponse{Status: model.OutcomeNoSubscription},
			wantStatus:  model.StatusNoLicense,
			wantAction:  "subscribe",
			needsAction: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := verifyResponseBody(t, tc.wire)
			client := newTestClient(t, mocks.HTTPClientWithStatusMock(http.StatusOK, body))

			outcome, err := client.CloudVerify(context.Background(), "tok", "fp-1", "1.0.0", nil)
			require.NoError(t, err)

			assert.Equal(t, tc.wantStatus, outcome.Result.Status)
			assert.Equal(t, tc.needsAction, outcome.Result.NeedsAction)
			assert.Equal(t, tc.wantAction, outcome.Result.Action)

			if tc.wantStatus == model.StatusDeviceLimit {
				assert.Len(t, outcome.Result.ActiveDevices, 2)
				assert.Equal(t, 2, outcome.Result.MaxDevices)
			}
		})
	}
}

func TestCloudVerifyConnectionErrorMapsToOffline(t *testing.T) {
	client := newTestClient(t, mocks.HTTPClientConnectionErrorMock())

	_, err := client.CloudVerify(context.Background(), "tok", "fp-1", "1.0.0", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, libErr.ErrOffline)
	assert.True(t, libErr.IsConnectionError(err))
}

func TestProbeSucceedsWhileVerifyConnectionDrops(t *testing.T) {
	// The connection can drop between the health probe and the verify call;
	// the probe answer must not mask the verify failure.
	client := newTestClient(t, mocks.HTTPClientPerPathMock(map[string]mocks.RoundTripFunc{
		"/health": func(*http.Request) (*http.Response, error) {
			return mocks.NewHTTPResponse(http.StatusOK, nil), nil
		},
		"/v1/licenses/verify": func(*http.Request) (*http.Response, error) {
			return nil, errors.New("read tcp: connection reset by peer")
		},
	}))

	assert.True(t, client.CheckConnectivity(context.Background()))

	_, err := client.CloudVerify(context.Background(), "tok", "fp-1", "1.0.0", nil)
	assert.ErrorIs(t, err, libErr.ErrOffline)
}

func TestCloudVerifyNonOKStatus(t *testing.T) {
	client := newTestClient(t, mocks.HTTPClientWithStatusMock(http.StatusBadGateway, nil))

	_, err := client.CloudVerify(context.Background(), "tok", "fp-1", "1.0.0", nil)
	require.Error(t, err)

	assert.True(t, libErr.IsServerError(err))
	assert.NotErrorIs(t, err, libErr.ErrOffline)
}

func TestCloudVerifyMalformedBody(t *testing.T) {
	client := newTestClient(t, mocks.HTTPClientWithStatusMock(http.StatusOK, []byte("this is not json")))

	_, err := client.CloudVerify(context.Background(), "tok", "fp-1", "1.0.0", nil)
	assert.ErrorIs(t, err, libErr.ErrMalformedResponse)
}

func TestCloudVerifyUnknownStatus(t *testing.T) {
	body := verifyResponseBody(t, model.VerifyResponse{Status: "SOMETHING_NEW"})
	client := newTestClient(t, mocks.HTTPClientWithStatusMock(http.StatusOK, body))

	_, err := client.CloudVerify(context.Background(), "tok", "fp-1", "1.0.0", nil)
	assert.ErrorIs(t, err, libErr.ErrMalformedResponse)
}

func TestLastResultServesRecentVerification(t *testing.T) {
	body := verifyResponseBody(t, model.VerifyResponse{Status: model.OutcomeValid})
	client := newTestClient(t, mocks.HTTPClientWithStatusMock(http.StatusOK, body))

	_, err := client.CloudVerify(context.Background(), "tok", "fp-1", "1.0.0", nil)
	require.NoError(t, err)

	// The result cache applies writes asynchronously.
	require.Eventually(t, func() bool {
		res, ok := client.LastResult("fp-1")
		return ok && res.Status == model.StatusValid
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := client.LastResult("fp-other")
	assert.False(t, ok)
}
