package fsrpad

import (
	"fmt"

	log "github.com/inconshreveable/log15"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// MidiSettings selects the MIDI output of the pad events.
type MidiSettings struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    string `json:"port" yaml:"port"`
	Channel uint8  `json:"channel" yaml:"channel"`
	Note    uint8  `json:"note" yaml:"note"`

	// Send the raw pressure as control change.
	RawEnabled    bool  `json:"raw-enabled" yaml:"raw-enabled"`
	RawController uint8 `json:"raw-controller" yaml:"raw-controller"`
}

// MidiHandler plays the pad as a note: hits are note-on, releases note-off
// with release velocity, confirmed pressure is polyphonic aftertouch.
type MidiHandler struct {
	settings MidiSettings
	nSteps   uint16
	send     func(msg gomidi.Message) error
	log      log.Logger
}

// OpenMidi opens the output port with the configured name.
func OpenMidi(settings MidiSettings, nSteps uint16) (*MidiHandler, error) {
	out, err := gomidi.FindOutPort(settings.Port)
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", settings.Port, err)
	}
	return NewMidiHandler(settings, nSteps, out)
}

// NewMidiHandler sends the pad events to out.
func NewMidiHandler(settings MidiSettings, nSteps uint16, out drivers.Out) (*MidiHandler, error) {
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return newMidiHandler(settings, nSteps, send), nil
}

func newMidiHandler(settings MidiSettings, nSteps uint16, send func(msg gomidi.Message) error) *MidiHandler {
	return &MidiHandler{
		settings: settings,
		nSteps:   nSteps,
		send:     send,
		log:      log.New("module", "midi", "note", settings.Note),
	}
}

func (m *MidiHandler) OnPressureRaw(fraction float32, step uint16) {
	if !m.settings.RawEnabled {
		return
	}
	m.write(gomidi.ControlChange(m.settings.Channel, m.settings.RawController, scale7(step, m.nSteps)))
}

func (m *MidiHandler) OnPressure(fraction float32, step uint16) {
	m.write(gomidi.PolyAfterTouch(m.settings.Channel, m.settings.Note, scale7(step, m.nSteps)))
}

func (m *MidiHandler) OnHit(velocity uint16) {
	// A note-on with velocity 0 is a note-off.
	v := scale7(velocity, m.nSteps)
	if v == 0 {
		v = 1
	}
	m.write(gomidi.NoteOn(m.settings.Channel, m.settings.Note, v))
}

func (m *MidiHandler) OnRelease(velocity uint8) {
	m.write(gomidi.NoteOffVelocity(m.settings.Channel, m.settings.Note, velocity))
}

func (m *MidiHandler) write(msg gomidi.Message) {
	if err := m.send(msg); err != nil {
		m.log.Warn("Failed to send MIDI message", "msg", msg.String(), "error", err)
	}
}
