package fsrpad

import (
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"
)

// State of the hit detection.
type State uint8

const (
	// No pressure detected.
	Idle State = iota

	// Pressure rising, measured in a short timeframe. The minimum hit value
	// needs to be reached in this timeframe, a slow-rising value is a
	// pressure change only.
	Rising

	// Hit event, with the maximum value of the measured pressure as velocity.
	Hit

	// Active hit.
	HitHold

	// Hit release event.
	HitRelease

	// Wait for the pressure to be fully released and settled.
	Release
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rising:
		return "rising"
	case Hit:
		return "hit"
	case HitHold:
		return "hit-hold"
	case HitRelease:
		return "hit-release"
	case Release:
		return "release"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MarshalText renders the state name in JSON and YAML documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type nowState struct {
	state    State
	usec     uint32
	analog   float32
	fraction float32
	step     uint16
}

type historyState struct {
	// The smoothed-out, normalized analog measurement.
	analog float32

	// The edge of the lag range, set by the previous value change.
	lag float32
}

type pressureState struct {
	fraction float32
	step     uint16
	usec     uint32
	timed    bool
	enabled  bool
	sent     bool
	rawSent  bool
}

type risingState struct {
	pressure float32
	usec     uint32
}

type hitState struct {
	velocity uint16
	usec     uint32
	holding  bool
	holdUsec uint32

	// Set when a hit was released; Release then settles for
	// Hit.ReleaseUsec before going back to Idle.
	settling    bool
	releaseUsec uint32
}

type fallingState struct {
	usec     uint32
	step     uint16
	velocity uint8
}

// Pad converts the measurement of a pressure sensor into pressure, hit and
// release events. It is driven by calling Tick from a single goroutine.
type Pad struct {
	config  *Config
	clock   Clock
	source  Source
	handler Handler
	log     log.Logger

	now      nowState
	history  historyState
	pressure pressureState
	rising   risingState
	hit      hitState
	falling  fallingState
}

// New returns a pad reading from source and reporting to handler, which may
// be nil. The config must stay unchanged for the lifetime of the pad.
func New(config *Config, clock Clock, source Source, handler Handler) (*Pad, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if clock == nil || source == nil {
		return nil, errors.New("pad needs a clock and a source")
	}
	if handler == nil {
		handler = NopHandler{}
	}

	return &Pad{
		config:  config,
		clock:   clock,
		source:  source,
		handler: handler,
		log:     log.New("module", "pad"),
	}, nil
}

// SetLogger replaces the logger used for state transitions.
func (p *Pad) SetLogger(l log.Logger) {
	p.log = l
}

// Begin is called once before the first Tick.
func (p *Pad) Begin() {}

// Reset clears all runtime state and returns to Idle.
func (p *Pad) Reset() {
	p.now = nowState{}
	p.history = historyState{}
	p.pressure = pressureState{}
	p.rising = risingState{}
	p.hit = hitState{}
	p.falling = fallingState{}
}

// Tick samples the measurement and emits pressure events. A fast rising edge
// emits a hit event, the release to idle clears it. Calls closer together
// than the configured tick interval return immediately.
func (p *Pad) Tick() {
	usec := p.clock.Usec()
	if usecSince(usec, p.now.usec) < p.config.tickUsec() {
		return
	}
	p.now.usec = usec

	p.measure()
	p.sendPressure()

	switch p.now.state {
	case Idle:
		if p.now.step == 0 {
			break
		}

		p.rising.usec = usec
		p.setState(Rising)

	case Rising:
		if p.now.step == 0 {
			p.setState(Release)
			break
		}

		// Remember the maximum value, it might bounce.
		if p.now.fraction > p.rising.pressure {
			p.rising.pressure = p.now.fraction
		}

		if usecSince(usec, p.rising.usec) < p.config.Hit.RisingUsec {
			break
		}

		// If we rise too slow, it is not a hit.
		if p.rising.pressure <= p.config.Hit.Min {
			p.pressure.enabled = true
			p.setState(Release)
			break
		}

		p.setState(Hit)

	case Hit:
		p.hit.velocity = hitVelocity(p.config, p.rising.pressure)
		p.hit.usec = usec
		p.setState(HitHold)
		p.handler.OnHit(p.hit.velocity)

	case HitHold:
		if !p.hit.holding {
			p.hit.holding = true
			p.hit.holdUsec = usec
			p.falling.usec = usec
		}

		if usecSince(usec, p.hit.holdUsec) < p.config.Hit.HoldUsec {
			break
		}

		// Restart the falling duration whenever the pressure rises again.
		if p.now.step >= p.falling.step {
			p.falling.usec = usec
			p.falling.step = p.now.step
		}

		if p.now.step == 0 {
			p.pressure.enabled = true
			p.setState(HitRelease)
			break
		}

		// While holding, enable the pressure events only after the delay.
		if usecSince(usec, p.hit.holdUsec) > p.config.Hit.PressureDelayUsec {
			p.pressure.enabled = true
		}

	case HitRelease:
		p.falling.velocity = releaseVelocity(p.config, usecSince(usec, p.falling.usec))
		p.hit.settling = true
		p.hit.releaseUsec = usec
		p.setState(Release)
		p.handler.OnRelease(p.falling.velocity)

	case Release:
		if p.now.fraction > 0 {
			break
		}

		// Wait for a released hit to settle.
		if p.hit.settling && usecSince(usec, p.hit.releaseUsec) < p.config.Hit.ReleaseUsec {
			break
		}

		p.now = nowState{}
		p.rising = risingState{}
		p.hit = hitState{}
		p.falling = fallingState{}

		// Make sure to send zeros after non-zero values.
		if p.pressure.sent {
			p.handler.OnPressure(0, 0)
		}
		if p.pressure.rawSent {
			p.handler.OnPressureRaw(0, 0)
		}
		p.pressure = pressureState{}
		p.log.Debug("Pad state", "state", Idle)
	}
}

func (p *Pad) setState(s State) {
	p.now.state = s
	p.log.Debug("Pad state", "state", s, "step", p.now.step)
}

// Fraction returns the last emitted pressure fraction.
func (p *Pad) Fraction() float32 {
	return p.pressure.fraction
}

// Step returns the last emitted pressure step.
func (p *Pad) Step() uint16 {
	return p.pressure.step
}

// State returns the current state of the hit detection.
func (p *Pad) State() State {
	return p.now.state
}

// Status is a snapshot of a pad for monitoring.
type Status struct {
	State    State   `json:"state"`
	Analog   float32 `json:"analog"`
	Fraction float32 `json:"fraction"`
	Step     uint16  `json:"step"`
}

// Status returns the smoothed measurement, the current state and the last
// emitted pressure values.
func (p *Pad) Status() Status {
	return Status{
		State:    p.now.state,
		Analog:   p.history.analog,
		Fraction: p.pressure.fraction,
		Step:     p.pressure.step,
	}
}
