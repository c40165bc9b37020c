package fsrpad

// Source delivers the normalized 0..1 analog measurement. It is called once
// per evaluated tick and must not block.
type Source interface {
	Measurement() float32
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() float32

// Measurement implements Source.
func (f SourceFunc) Measurement() float32 {
	return f()
}

// Handler receives the events of a pad. The methods are called synchronously
// from Pad.Tick and must not block.
type Handler interface {
	// OnPressureRaw is called whenever the step value changes. It does not
	// wait for the hit detection.
	OnPressureRaw(fraction float32, step uint16)

	// OnPressure is called whenever the step value changes. If a hit is
	// detected, it is guaranteed to be called after OnHit.
	OnPressure(fraction float32, step uint16)

	// OnHit is called when a hit was detected. The velocity has the
	// resolution of the configured steps.
	OnHit(velocity uint16)

	// OnRelease is called when the hit is released, velocity is 1..127.
	OnRelease(velocity uint8)
}

// NopHandler ignores all events. Embed it to implement only some of the
// Handler methods.
type NopHandler struct{}

func (NopHandler) OnPressureRaw(float32, uint16) {}
func (NopHandler) OnPressure(float32, uint16)    {}
func (NopHandler) OnHit(uint16)                  {}
func (NopHandler) OnRelease(uint8)               {}

// Handlers forwards every event to each of its members, in order.
type Handlers []Handler

func (hs Handlers) OnPressureRaw(fraction float32, step uint16) {
	for _, h := range hs {
		h.OnPressureRaw(fraction, step)
	}
}

func (hs Handlers) OnPressure(fraction float32, step uint16) {
	for _, h := range hs {
		h.OnPressure(fraction, step)
	}
}

func (hs Handlers) OnHit(velocity uint16) {
	for _, h := range hs {
		h.OnHit(velocity)
	}
}

func (hs Handlers) OnRelease(velocity uint8) {
	for _, h := range hs {
		h.OnRelease(velocity)
	}
}
