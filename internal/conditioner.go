package fsrpad

import "math"

// measure reads and smooths the measurement, maps it to the pressure range
// and quantizes it to a step.
func (p *Pad) measure() {
	p.now.analog = p.source.Measurement()

	// Low-pass filter, smooth the value.
	p.history.analog *= 1 - p.config.Alpha
	p.history.analog += p.now.analog * p.config.Alpha

	switch {
	case p.history.analog < p.config.Pressure.Min:
		p.now.fraction = 0
		p.now.step = 0
		p.history.lag = 0 - p.config.Lag

	case p.history.analog > p.config.Pressure.Max:
		p.now.fraction = 1
		p.now.step = p.config.NSteps - 1
		p.history.lag = 1 + p.config.Lag

	default:
		// Normalized 0..1 fraction of the min..max range.
		fraction := (p.history.analog - p.config.Pressure.Min) / (p.config.Pressure.Max - p.config.Pressure.Min)
		p.now.fraction = curve(fraction, p.config.Pressure.Exponent)

		// Inside the lag, keep the current step value.
		if abs32(p.now.fraction-p.history.lag) >= p.config.Lag {
			p.now.step = uint16(math.Round(float64(p.now.fraction * float32(p.config.NSteps-1))))
		} else {
			p.now.step = p.pressure.step
		}
	}
}

// sendPressure emits the pressure events for a changed step value.
func (p *Pad) sendPressure() {
	if p.pressure.step == p.now.step {
		return
	}

	if p.pressure.timed && usecSince(p.now.usec, p.pressure.usec) < p.config.pressureIntervalUsec() {
		return
	}

	// Reposition the edge of the lag. Monotonic changes are followed
	// immediately, a change of direction needs to cross the full lag.
	if p.now.fraction-p.history.lag > 0 {
		p.history.lag = p.now.fraction - p.config.Lag
	} else {
		p.history.lag = p.now.fraction + p.config.Lag
	}

	p.pressure.usec = p.now.usec
	p.pressure.timed = true
	p.pressure.fraction = p.now.fraction
	p.pressure.step = p.now.step

	// The final zero values are sent at the end of Release.
	if p.now.step == 0 {
		return
	}

	if p.pressure.enabled {
		p.pressure.sent = true
		p.handler.OnPressure(p.now.fraction, p.now.step)
	}

	p.pressure.rawSent = true
	p.handler.OnPressureRaw(p.now.fraction, p.now.step)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
