package fsrpad

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

const (
	// DefaultTickUsec is the minimum time between two evaluated ticks.
	DefaultTickUsec uint32 = 500

	// DefaultPressureIntervalUsec is the minimum time between two pressure events.
	DefaultPressureIntervalUsec uint32 = 20 * 1000
)

// Range is a sub-range of the normalized 0..1 measurement with a correction
// curve exponent.
type Range struct {
	Min      float32 `json:"min" yaml:"min"`
	Max      float32 `json:"max" yaml:"max"`
	Exponent float32 `json:"exponent" yaml:"exponent"`
}

// HitConfig holds the hit detection parameters.
type HitConfig struct {
	Range `yaml:",inline"`

	// Sample time to detect the rising edge. Depending on the hardware, values
	// are in the range of 2 to 50 ms.
	RisingUsec uint32 `json:"rising-usec" yaml:"rising-usec"`

	// Minimum time to hold the note. The hardware may bounce to zero while the
	// note is still held.
	HoldUsec uint32 `json:"hold-usec" yaml:"hold-usec"`

	// Delay of pressure events after a hit.
	PressureDelayUsec uint32 `json:"pressure-delay-usec" yaml:"pressure-delay-usec"`

	// Time for the release to settle.
	ReleaseUsec uint32 `json:"release-usec" yaml:"release-usec"`
}

// ReleaseConfig is the range of the falling pressure duration which is mapped
// to the release velocity.
type ReleaseConfig struct {
	MinUsec uint32 `json:"min-usec" yaml:"min-usec"`
	MaxUsec uint32 `json:"max-usec" yaml:"max-usec"`
}

// Config holds the calibration of one pad. It is read-only once a Pad is
// constructed from it.
type Config struct {
	// The number of steps to map the measurement to. 128 steps will emit values
	// from 0 to 127.
	NSteps uint16 `json:"n-steps" yaml:"n-steps"`

	// The exponential smoothing constant.
	Alpha float32 `json:"alpha" yaml:"alpha"`

	// Hysteresis lag, the amount of jitter accepted without changing the step
	// value, as a fraction of the normalized pressure range.
	Lag float32 `json:"lag" yaml:"lag"`

	Pressure Range         `json:"pressure" yaml:"pressure"`
	Hit      HitConfig     `json:"hit" yaml:"hit"`
	Release  ReleaseConfig `json:"release" yaml:"release"`

	// Zero selects DefaultTickUsec.
	TickUsec uint32 `json:"tick-usec,omitempty" yaml:"tick-usec,omitempty"`

	// Zero selects DefaultPressureIntervalUsec.
	PressureIntervalUsec uint32 `json:"pressure-interval-usec,omitempty" yaml:"pressure-interval-usec,omitempty"`
}

// DefaultConfig returns a calibration that works for a typical FSR read
// through a voltage divider.
func DefaultConfig() Config {
	return Config{
		NSteps: 128,
		Alpha:  0.3,
		Lag:    0.02,
		Pressure: Range{
			Min:      0.05,
			Max:      0.8,
			Exponent: 0.7,
		},
		Hit: HitConfig{
			Range: Range{
				Min:      0.1,
				Max:      0.9,
				Exponent: 1,
			},
			RisingUsec:        5 * 1000,
			HoldUsec:          50 * 1000,
			PressureDelayUsec: 200 * 1000,
			ReleaseUsec:       50 * 1000,
		},
		Release: ReleaseConfig{
			MinUsec: 5 * 1000,
			MaxUsec: 50 * 1000,
		},
	}
}

// Validate rejects configurations the pad cannot work with, most importantly
// zero-width ranges which would divide by zero.
func (c *Config) Validate() error {
	switch {
	case c.NSteps < 2:
		return fmt.Errorf("%w: n-steps must be >= 2, got %d", ErrInvalidConfig, c.NSteps)
	case !(c.Alpha > 0 && c.Alpha <= 1):
		return fmt.Errorf("%w: alpha must be in (0,1], got %g", ErrInvalidConfig, c.Alpha)
	case !(c.Lag >= 0):
		return fmt.Errorf("%w: lag must be >= 0, got %g", ErrInvalidConfig, c.Lag)
	}

	if err := c.Pressure.validate("pressure"); err != nil {
		return err
	}
	if err := c.Hit.Range.validate("hit"); err != nil {
		return err
	}

	if c.Release.MaxUsec <= c.Release.MinUsec {
		return fmt.Errorf("%w: release max-usec (%d) must be > min-usec (%d)",
			ErrInvalidConfig, c.Release.MaxUsec, c.Release.MinUsec)
	}
	return nil
}

func (r *Range) validate(name string) error {
	if !(r.Max > r.Min) {
		return fmt.Errorf("%w: %s max (%g) must be > min (%g)", ErrInvalidConfig, name, r.Max, r.Min)
	}
	if !(r.Exponent > 0) {
		return fmt.Errorf("%w: %s exponent must be > 0, got %g", ErrInvalidConfig, name, r.Exponent)
	}
	return nil
}

func (c *Config) tickUsec() uint32 {
	if c.TickUsec == 0 {
		return DefaultTickUsec
	}
	return c.TickUsec
}

func (c *Config) pressureIntervalUsec() uint32 {
	if c.PressureIntervalUsec == 0 {
		return DefaultPressureIntervalUsec
	}
	return c.PressureIntervalUsec
}
