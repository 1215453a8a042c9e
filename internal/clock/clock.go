// Package clock detects wall-clock manipulation and computes a trustworthy
// offline duration even when the local clock cannot be trusted.
package clock

import (
	"sync"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/narravox/lib-guard-go/constant"
)

// failClosedDuration is returned when no trusted baseline exists. It exceeds
// any plausible grace period so offline use is denied.
const failClosedDuration = 100 * 365 * 24 * time.Hour

// Monitor compares monotonic and wall-clock elapsed time across verification
// cycles. The monotonic reading is immune to user and OS clock changes, so a
// divergence between the two means the wall clock was moved.
type Monitor struct {
	mu sync.Mutex

	// test seams; production uses the real clocks
	nowWall func() time.Time
	nowMono func() time.Duration

	hasBaseline bool
	lastMono    time.Duration
	lastWall    time.Time
	serverTime  time.Time
	// accountedElapsed accumulates the monotonic delta of every offline
	// cycle since the last online verification, so the monotonic-anchored
	// fallback grows with real elapsed time instead of staying near zero.
	accountedElapsed time.Duration

	logger log.Logger
}

// NewMonitor creates a monitor anchored to the process start.
func NewMonitor(logger log.Logger) *Monitor {
	start := time.Now()

	return &Monitor{
		nowWall: time.Now,
		nowMono: func() time.Duration { return time.Since(start) },
		logger:  logger,
	}
}

// ResetBaseline records a trusted point in time. Called after every
// successful online verification with the authority's server timestamp.
func (m *Monitor) ResetBaseline(serverTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowWall()
	if serverTime.IsZero() {
		serverTime = now
	}

	m.hasBaseline = true
	m.lastMono = m.nowMono()
	m.lastWall = now
	m.serverTime = serverTime
	m.accountedElapsed = 0
}

// DetectManipulation compares the monotonic delta since the last check
// against the wall-clock delta and flags manipulation when the wall clock
// moved backward beyond NTP-jitter tolerance, or when the monotonic delta
// exceeds the wall-clock delta by more than an hour (clock set backward
// while the process was running).
//
// Called once per offline cycle; it also advances the per-cycle baselines
// and accumulates the monotonic delta into the accounted-elapsed counter.
func (m *Monitor) DetectManipulation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	nowMono := m.nowMono()
	nowWall := m.nowWall()

	if !m.hasBaseline {
		m.hasBaseline = true
		m.lastMono = nowMono
		m.lastWall = nowWall

		return false
	}

	monoDelta := nowMono - m.lastMono
	wallDelta := nowWall.Sub(m.lastWall)

	m.lastMono = nowMono
	m.lastWall = nowWall
	m.accountedElapsed += monoDelta

	if wallDelta < -constant.ClockBackwardTolerance {
		m.logger.Warnf("Wall clock moved backward by %s since last check", -wallDelta)
		return true
	}

	if monoDelta-wallDelta > constant.ClockDriftThreshold {
		m.logger.Warnf("Monotonic clock advanced %s but wall clock only %s, clock manipulation suspected",
			monoDelta, wallDelta)

		return true
	}

	return false
}

// SecureOfflineDuration computes how long the device has been offline since
// the given last online check. With no trusted baseline it fails closed.
// When a server timestamp is on record and the wall clock is implausibly
// behind the time that should have elapsed since it, the tamperable
// wall-clock duration is replaced by the monotonic-anchored one.
func (m *Monitor) SecureOfflineDuration(lastOnlineCheck time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lastOnlineCheck.IsZero() {
		return failClosedDuration
	}

	naive := m.nowWall().Sub(lastOnlineCheck)

	if !m.serverTime.IsZero() {
		expectedNow := m.serverTime.Add(m.accountedElapsed)

		if expectedNow.Sub(m.nowWall()) > constant.ClockBackwardTolerance {
			anchored := expectedNow.Sub(lastOnlineCheck)

			m.logger.Warnf("Wall clock is %s behind the anchored time, using monotonic-anchored offline duration %s",
				expectedNow.Sub(m.nowWall()), anchored)

			if anchored > naive {
				return anchored
			}
		}
	}

	if naive < 0 {
		// A wall clock before the recorded last check is itself suspect;
		// deny rather than grant a fresh grace window.
		return failClosedDuration
	}

	return naive
}
