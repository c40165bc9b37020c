package fsrpad

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	usec uint32
}

func (c *testClock) Usec() uint32 {
	return c.usec
}

type testSource struct {
	value float32
	calls int
}

func (s *testSource) Measurement() float32 {
	s.calls++
	return s.value
}

// recorder keeps the events in order as strings, e.g. "hit 64".
type recorder struct {
	events []string
}

func (r *recorder) OnPressureRaw(fraction float32, step uint16) {
	r.events = append(r.events, fmt.Sprintf("raw %.2f %d", fraction, step))
}

func (r *recorder) OnPressure(fraction float32, step uint16) {
	r.events = append(r.events, fmt.Sprintf("pressure %.2f %d", fraction, step))
}

func (r *recorder) OnHit(velocity uint16) {
	r.events = append(r.events, fmt.Sprintf("hit %d", velocity))
}

func (r *recorder) OnRelease(velocity uint8) {
	r.events = append(r.events, fmt.Sprintf("release %d", velocity))
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// testConfig has no filtering and no hysteresis, the fraction equals the
// measurement.
func testConfig() Config {
	return Config{
		NSteps:   128,
		Alpha:    1,
		Lag:      0,
		Pressure: Range{Min: 0, Max: 1, Exponent: 1},
		Hit: HitConfig{
			Range:             Range{Min: 0.1, Max: 0.9, Exponent: 1},
			RisingUsec:        5000,
			HoldUsec:          10000,
			PressureDelayUsec: 20000,
			ReleaseUsec:       10000,
		},
		Release: ReleaseConfig{MinUsec: 5000, MaxUsec: 50000},
	}
}

type padTest struct {
	pad    *Pad
	clock  *testClock
	source *testSource
	events *recorder
}

func newPadTest(t *testing.T, cfg Config, start uint32) *padTest {
	t.Helper()
	pt := &padTest{
		clock:  &testClock{usec: start},
		source: &testSource{},
		events: &recorder{},
	}
	pad, err := New(&cfg, pt.clock, pt.source, pt.events)
	require.NoError(t, err)
	pad.Begin()
	pt.pad = pad
	return pt
}

// hold ticks every 500 µs for usec with a constant measurement.
func (pt *padTest) hold(value float32, usec uint32) {
	pt.source.value = value
	for i := uint32(0); i < usec/500; i++ {
		pt.clock.usec += 500
		pt.pad.Tick()
	}
}

func TestHitAndRelease(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.5, 30000)
	assert.Equal(t, HitHold, pt.pad.State())
	assert.Equal(t, []string{"raw 0.50 64", "hit 64"}, pt.events.events)

	// The fall starts with the last tick at full pressure, 27.5 ms before
	// the release is measured.
	pt.hold(0.4, 26000)
	pt.hold(0, 500)
	assert.Equal(t, HitRelease, pt.pad.State())
	pt.hold(0, 500)
	assert.Equal(t, Release, pt.pad.State())

	pt.hold(0, 20000)
	assert.Equal(t, Idle, pt.pad.State())

	assert.Equal(t, []string{
		"raw 0.50 64",
		"hit 64",
		"pressure 0.40 51",
		"raw 0.40 51",
		"release 64",
		"pressure 0.00 0",
		"raw 0.00 0",
	}, pt.events.events)
	assert.Equal(t, uint16(0), pt.pad.Step())
}

func TestFastReleaseHasMaximumVelocity(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.8, 30000)
	pt.hold(0, 30000)

	require.Equal(t, 1, pt.events.count("release"))
	assert.Contains(t, pt.events.events, "release 127")
}

func TestShortRiseIsNoHit(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.7, 2000)
	assert.Equal(t, Rising, pt.pad.State())
	pt.hold(0, 20000)

	assert.Equal(t, Idle, pt.pad.State())
	assert.Zero(t, pt.events.count("hit"))
	assert.Zero(t, pt.events.count("release"))
	assert.Equal(t, []string{"raw 0.70 89", "raw 0.00 0"}, pt.events.events)
}

func TestSlowRiseIsPressureOnly(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	// Stays below the minimum hit height within the rising window.
	pt.hold(0.08, 10000)
	assert.Equal(t, Release, pt.pad.State())

	pt.hold(0.3, 30000)
	assert.Equal(t, Release, pt.pad.State())
	assert.Equal(t, uint16(38), pt.pad.Step())

	pt.hold(0, 1000)
	assert.Equal(t, Idle, pt.pad.State())

	assert.Zero(t, pt.events.count("hit"))
	assert.Zero(t, pt.events.count("release"))
	assert.Equal(t, []string{
		"raw 0.08 10",
		"pressure 0.30 38",
		"raw 0.30 38",
		"pressure 0.00 0",
		"raw 0.00 0",
	}, pt.events.events)
}

func TestStrikeAfterAbortedRise(t *testing.T) {
	pt := newPadTest(t, testConfig(), 1000000)

	// The rise drops back to zero before it can become a hit.
	pt.hold(0.7, 1000)
	require.Equal(t, Rising, pt.pad.State())
	pt.hold(0, 2000)
	require.Equal(t, Idle, pt.pad.State())

	// A strike right after the aborted rise is still detected.
	pt.hold(0.7, 40000)
	assert.Equal(t, HitHold, pt.pad.State())
	assert.Equal(t, 1, pt.events.count("hit"))
	assert.Contains(t, pt.events.events, "hit 96")
}

func TestHoldIgnoresBounce(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.5, 6500)
	require.Equal(t, HitHold, pt.pad.State())

	// Bounce to zero within the hold time.
	pt.hold(0, 3000)
	assert.Equal(t, HitHold, pt.pad.State())

	pt.hold(0.5, 10000)
	assert.Equal(t, HitHold, pt.pad.State())
	assert.Equal(t, 1, pt.events.count("hit"))
	assert.Zero(t, pt.events.count("release"))
}

func TestFallRestartsOnRise(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.8, 20000)
	pt.hold(0.4, 10000)

	// Rising again restarts the fall, at 30.5 ms.
	pt.hold(0.9, 500)
	pt.hold(0.4, 27000)
	pt.hold(0, 500)
	require.Equal(t, HitRelease, pt.pad.State())
	pt.hold(0, 500)

	// Released 28 ms after the last rise, not 38.5 ms after the first fall.
	require.Equal(t, 1, pt.events.count("release"))
	assert.Contains(t, pt.events.events, "release 62")
}

func TestPressureWaitsForHit(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.5, 6500)
	pt.hold(0.6, 20000)

	// Confirmed pressure is delayed after the hit, raw pressure is not.
	assert.Zero(t, pt.events.count("pressure"))
	assert.Equal(t, 2, pt.events.count("raw"))

	pt.hold(0.7, 20000)
	require.Equal(t, 1, pt.events.count("pressure"))
	for i, e := range pt.events.events {
		if e == "hit 64" {
			assert.Less(t, i, len(pt.events.events)-1)
			return
		}
	}
	t.Fatalf("no hit in %v", pt.events.events)
}

func TestRisingTracksPeak(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	// A bounce within the rising window does not lower the velocity.
	pt.hold(0.9, 1500)
	pt.hold(0.3, 3500)
	pt.hold(0.3, 1000)

	assert.Contains(t, pt.events.events, "hit 127")
}

func TestHitPeakIsClamped(t *testing.T) {
	cfg := testConfig()
	cfg.Pressure.Max = 2
	pt := newPadTest(t, cfg, 0)

	pt.hold(1.9, 7000)
	assert.Contains(t, pt.events.events, "hit 127")
}

func TestConvergesToLastStep(t *testing.T) {
	cfg := testConfig()
	cfg.Alpha = 0.1
	cfg.Lag = 0.02
	cfg.Pressure = Range{Min: 0.1, Max: 0.8, Exponent: 0.5}
	pt := newPadTest(t, cfg, 0)

	pt.hold(0.95, 200000)
	assert.Equal(t, uint16(127), pt.pad.Step())
	assert.Equal(t, float32(1), pt.pad.Fraction())

	for i := 0; i < 100; i++ {
		pt.hold(0.95, 500)
		require.Equal(t, uint16(127), pt.pad.Step())
	}
}

func TestHysteresis(t *testing.T) {
	cfg := testConfig()
	cfg.Lag = 0.05
	cfg.Hit.Min = 0.95
	pt := newPadTest(t, cfg, 0)

	pt.hold(0.5, 1000)
	require.Equal(t, []string{"raw 0.50 64"}, pt.events.events)

	// A reversal smaller than the lag is ignored.
	pt.hold(0.47, 40000)
	assert.Equal(t, uint16(64), pt.pad.Step())
	assert.Equal(t, 1, pt.events.count("raw"))

	// A reversal crossing the lag is followed.
	pt.hold(0.38, 40000)
	assert.Equal(t, uint16(48), pt.pad.Step())

	// Monotonic changes are followed immediately.
	pt.hold(0.36, 40000)
	assert.Equal(t, uint16(46), pt.pad.Step())
	assert.Equal(t, 3, pt.events.count("raw"))
}

func TestPressureRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Hit.Min = 0.95
	pt := newPadTest(t, cfg, 0)

	pt.hold(0.2, 500)
	pt.hold(0.3, 500)
	pt.hold(0.4, 500)
	assert.Equal(t, uint16(25), pt.pad.Step())

	pt.hold(0.4, 20000)
	assert.Equal(t, uint16(51), pt.pad.Step())
	assert.Equal(t, []string{"raw 0.20 25", "pressure 0.40 51", "raw 0.40 51"}, pt.events.events)
}

func TestTickThrottle(t *testing.T) {
	pt := newPadTest(t, testConfig(), 1000)

	pt.pad.Tick()
	pt.pad.Tick()
	assert.Equal(t, 1, pt.source.calls)

	pt.clock.usec = 1499
	pt.pad.Tick()
	assert.Equal(t, 1, pt.source.calls)

	pt.clock.usec = 1500
	pt.pad.Tick()
	assert.Equal(t, 2, pt.source.calls)
}

func TestClockWrapAround(t *testing.T) {
	pt := newPadTest(t, testConfig(), math.MaxUint32-12000)

	pt.hold(0.5, 30000)
	pt.hold(0.4, 26000)
	pt.hold(0, 30000)

	assert.Equal(t, Idle, pt.pad.State())
	assert.Equal(t, 1, pt.events.count("hit"))
	assert.Contains(t, pt.events.events, "release 64")
}

func TestCycleEndsInResetState(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.6, 40000)
	pt.hold(0.2, 10000)
	for i := 0; pt.pad.State() != Idle; i++ {
		require.Less(t, i, 1000)
		pt.hold(0, 500)
	}
	require.Equal(t, 1, pt.events.count("release"))

	fresh := newPadTest(t, testConfig(), 0)
	fresh.pad.Reset()

	assert.Equal(t, fresh.pad.now, pt.pad.now)
	assert.Equal(t, fresh.pad.pressure, pt.pad.pressure)
	assert.Equal(t, fresh.pad.rising, pt.pad.rising)
	assert.Equal(t, fresh.pad.hit, pt.pad.hit)
	assert.Equal(t, fresh.pad.falling, pt.pad.falling)
}

func TestTerminalZerosOnce(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	for i := 0; i < 3; i++ {
		pt.hold(0.6, 40000)
		pt.hold(0.3, 30000)
		pt.hold(0, 30000)
		require.Equal(t, Idle, pt.pad.State())
	}

	assert.Equal(t, 3, pt.events.count("hit"))
	assert.Equal(t, 3, pt.events.count("release"))
	assert.Equal(t, 3, pt.events.count("pressure 0.00 0"))
	assert.Equal(t, 3, pt.events.count("raw 0.00 0"))

	// Nothing is owed after going back to idle.
	pt.hold(0, 100000)
	assert.Equal(t, 3, pt.events.count("raw 0.00 0"))
}

func TestReset(t *testing.T) {
	pt := newPadTest(t, testConfig(), 0)

	pt.hold(0.6, 20000)
	require.Equal(t, HitHold, pt.pad.State())

	pt.pad.Reset()
	assert.Equal(t, Idle, pt.pad.State())
	assert.Equal(t, uint16(0), pt.pad.Step())
	assert.Equal(t, Status{State: Idle}, pt.pad.Status())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Pressure.Max = cfg.Pressure.Min

	_, err := New(&cfg, &testClock{}, &testSource{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNilHandler(t *testing.T) {
	cfg := testConfig()
	clock := &testClock{}
	pad, err := New(&cfg, clock, SourceFunc(func() float32 { return 0.5 }), nil)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		clock.usec += 500
		pad.Tick()
	}
	assert.Equal(t, HitHold, pad.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "hit-hold", HitHold.String())
	assert.Equal(t, "state(9)", State(9).String())
}
