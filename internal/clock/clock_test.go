package clock

import (
	"testing"
	"time"

	"github.com/narravox/lib-guard-go/test/mocks"
	"github.com/stretchr/testify/assert"
)

// fakeClock drives the monitor's wall and monotonic readings independently,
// the way a user moving the system clock would.
type fakeClock struct {
	wall time.Time
	mono time.Duration
}

func (f *fakeClock) advance(mono, wall time.Duration) {
	f.mono += mono
	f.wall = f.wall.Add(wall)
}

func newTestMonitor() (*Monitor, *fakeClock) {
	fc := &fakeClock{wall: time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)}

	m := NewMonitor(mocks.NewLogger())
	m.nowWall = func() time.Time { return fc.wall }
	m.nowMono = func() time.Duration { return fc.mono }

	return m, fc
}

func TestDetectManipulationFirstCallEstablishesBaseline(t *testing.T) {
	m, _ := newTestMonitor()

	assert.False(t, m.DetectManipulation())
}

func TestDetectManipulationNormalPassage(t *testing.T) {
	m, fc := newTestMonitor()
	m.DetectManipulation()

	fc.advance(10*time.Minute, 10*time.Minute)
	assert.False(t, m.DetectManipulation())
}

func TestDetectManipulationToleratesNTPJitter(t *testing.T) {
	m, fc := newTestMonitor()
	m.DetectManipulation()

	// Small backward correction within the 60s tolerance.
	fc.mono += 30 * time.Second
	fc.wall = fc.wall.Add(-30 * time.Second)

	assert.False(t, m.DetectManipulation())
}

func TestDetectManipulationWallClockMovedBackward(t *testing.T) {
	m, fc := newTestMonitor()
	m.DetectManipulation()

	fc.advance(10*time.Minute, 10*time.Minute)
	assert.False(t, m.DetectManipulation())

	// Operator sets the system clock back 3 hours.
	fc.mono += time.Minute
	fc.wall = fc.wall.Add(-3 * time.Hour)

	assert.True(t, m.DetectManipulation())
}

func TestDetectManipulationMonotonicOutrunsWall(t *testing.T) {
	m, fc := newTestMonitor()
	m.DetectManipulation()

	// Two hours really elapsed but the wall clock only shows 30 minutes.
	fc.advance(2*time.Hour, 30*time.Minute)

	assert.True(t, m.DetectManipulation())
}

func TestSecureOfflineDurationFailsClosedWithoutLastCheck(t *testing.T) {
	m, _ := newTestMonitor()

	d := m.SecureOfflineDuration(time.Time{})
	assert.Greater(t, d, 10*365*24*time.Hour)
}

func TestSecureOfflineDurationFailsClosedWhenLastCheckInFuture(t *testing.T) {
	m, fc := newTestMonitor()

	d := m.SecureOfflineDuration(fc.wall.Add(2 * time.Hour))
	assert.Greater(t, d, 10*365*24*time.Hour)
}

func TestSecureOfflineDurationNaivePath(t *testing.T) {
	m, fc := newTestMonitor()
	m.ResetBaseline(fc.wall)

	lastCheck := fc.wall
	fc.advance(48*time.Hour, 48*time.Hour)

	assert.Equal(t, 48*time.Hour, m.SecureOfflineDuration(lastCheck))
}

func TestAccountedElapsedAccumulatesAcrossOfflineCycles(t *testing.T) {
	m, fc := newTestMonitor()
	m.ResetBaseline(fc.wall)

	for i := 0; i < 4; i++ {
		fc.advance(30*time.Minute, 30*time.Minute)
		assert.False(t, m.DetectManipulation())
	}

	assert.Equal(t, 2*time.Hour, m.accountedElapsed)

	m.ResetBaseline(fc.wall)
	assert.Equal(t, time.Duration(0), m.accountedElapsed)
}

func TestSecureOfflineDurationSubstitutesMonotonicAnchor(t *testing.T) {
	m, fc := newTestMonitor()

	lastCheck := fc.wall
	m.ResetBaseline(fc.wall)

	// The wall clock creeps 50 minutes behind real time each cycle: below
	// the one-hour per-cycle threshold, so no single cycle flags it, but
	// after three cycles the clock is 2.5 hours behind the time that must
	// have elapsed since the trusted server timestamp.
	for i := 0; i < 3; i++ {
		fc.advance(80*time.Minute, 30*time.Minute)
		assert.False(t, m.DetectManipulation())
	}

	got := m.SecureOfflineDuration(lastCheck)
	assert.Equal(t, 4*time.Hour, got, "expected the monotonic-anchored duration, not the tamperable wall-clock one")
}

func TestResetBaselineDefaultsServerTimeToWall(t *testing.T) {
	m, fc := newTestMonitor()
	m.ResetBaseline(time.Time{})

	assert.Equal(t, fc.wall, m.serverTime)
}
