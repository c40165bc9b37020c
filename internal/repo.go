package fsrpad

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigDir holds config.yaml.
var ConfigDir = "."

const settingsFile = "config.yaml"

// CaptureSettings selects the area of the camera image measured as pressure.
type CaptureSettings struct {
	Width      int `json:"capture-w" yaml:"capture-w"`
	Height     int `json:"capture-h" yaml:"capture-h"`
	OffsetX    int `json:"offset-x" yaml:"offset-x"`
	OffsetY    int `json:"offset-y" yaml:"offset-y"`
	Contrast   int `json:"contrast" yaml:"contrast"`
	Brightness int `json:"brightness" yaml:"brightness"`

	// Brighter means more pressure, unless inverted.
	Invert bool `json:"invert" yaml:"invert"`
}

// Settings is the content of config.yaml.
type Settings struct {
	Pad            Config          `json:"pad" yaml:"pad"`
	SampleInterval string          `json:"sample-interval" yaml:"sample-interval"`
	Capture        CaptureSettings `json:"capture" yaml:"capture"`
	Mqtt           MqttSettings    `json:"mqtt" yaml:"mqtt"`
	Midi           MidiSettings    `json:"midi" yaml:"midi"`
}

// DefaultSettings is used when there is no config file.
func DefaultSettings() Settings {
	return Settings{
		Pad:            DefaultConfig(),
		// Below the pad's tick interval, the pad throttles itself.
		SampleInterval: "250us",
		Capture: CaptureSettings{
			Width:      10,
			Height:     30,
			OffsetX:    5,
			OffsetY:    15,
			Contrast:   128,
			Brightness: 128,
		},
		Mqtt: MqttSettings{
			Host:  "localhost",
			Port:  1883,
			Topic: "fsrpad",
		},
		Midi: MidiSettings{
			Channel: 9,
			Note:    38,
		},
	}
}

var (
	mu       sync.RWMutex
	settings *Settings
	preview  = make([]byte, 0)
)

// LoadSettings returns the settings from config.yaml, or the defaults if the
// file does not exist.
func LoadSettings() (Settings, error) {
	mu.RLock()
	if settings != nil {
		s := *settings
		mu.RUnlock()
		return s, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	s := DefaultSettings()
	data, err := os.ReadFile(filepath.Join(ConfigDir, settingsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Settings{}, err
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", settingsFile, err)
		}
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	settings = &s
	return s, nil
}

// SaveSettings validates and writes config.yaml. The pad picks up the new
// calibration on the next start.
func SaveSettings(s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if err := os.WriteFile(filepath.Join(ConfigDir, settingsFile), data, 0644); err != nil {
		return err
	}
	settings = &s
	return nil
}

func savePreview(jpeg []byte) {
	mu.Lock()
	defer mu.Unlock()
	preview = jpeg
}

func loadPreview() []byte {
	mu.RLock()
	defer mu.RUnlock()
	return preview
}

// Interval returns the parsed sample interval.
func (s *Settings) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(s.SampleInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: sample-interval: %v", ErrInvalidConfig, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: sample-interval must be > 0, got %s", ErrInvalidConfig, d)
	}
	return d, nil
}

func (s *Settings) validate() error {
	if err := s.Pad.Validate(); err != nil {
		return err
	}
	_, err := s.Interval()
	return err
}
