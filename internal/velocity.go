package fsrpad

import "math"

// hitVelocity maps the peak of a rise to the step resolution. Ambiguous
// boundary values are rounded up.
func hitVelocity(cfg *Config, peak float32) uint16 {
	if peak > cfg.Hit.Max {
		peak = cfg.Hit.Max
	}

	// Normalized 0..1 fraction of the min..max range.
	fraction := (peak - cfg.Hit.Min) / (cfg.Hit.Max - cfg.Hit.Min)
	fraction = curve(fraction, cfg.Hit.Exponent)

	return uint16(math.Ceil(float64(fraction * float32(cfg.NSteps-1))))
}

// releaseVelocity maps the duration of the falling pressure to 127..1; a
// fast release results in a high velocity.
func releaseVelocity(cfg *Config, duration uint32) uint8 {
	if duration > cfg.Release.MaxUsec {
		duration = cfg.Release.MaxUsec
	} else if duration < cfg.Release.MinUsec {
		duration = cfg.Release.MinUsec
	}

	span := float32(cfg.Release.MaxUsec - cfg.Release.MinUsec)
	fraction := float32(duration-cfg.Release.MinUsec) / span

	return uint8(127 - fraction*126)
}

// curve applies the exponential correction curve.
func curve(fraction, exponent float32) float32 {
	return float32(math.Pow(float64(fraction), float64(exponent)))
}
