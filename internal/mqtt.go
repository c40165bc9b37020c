package fsrpad

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/inconshreveable/log15"
)

// MqttSettings selects the broker and topic of the pad events.
type MqttSettings struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Topic   string `json:"topic" yaml:"topic"`

	// Publish raw pressure events; they arrive at up to 50/s.
	Raw bool `json:"raw" yaml:"raw"`
}

// Event is the MQTT payload of a pad event.
type Event struct {
	Type      string  `json:"type"`
	Velocity  int     `json:"velocity,omitempty"`
	Fraction  float32 `json:"fraction"`
	Step      uint16  `json:"step"`
	Timestamp int64   `json:"ts"`
}

const (
	EventHit         = "hit"
	EventRelease     = "release"
	EventPressure    = "pressure"
	EventPressureRaw = "pressure-raw"
)

const mqttQueueSize = 64

// MqttHandler publishes the pad events as JSON. The handler methods only
// queue the event, publishing happens in Run.
type MqttHandler struct {
	settings MqttSettings
	events   chan Event
	now      func() time.Time
	log      log.Logger
}

// NewMqttHandler returns a handler for the given settings; call Run to
// connect and publish.
func NewMqttHandler(settings MqttSettings) *MqttHandler {
	return &MqttHandler{
		settings: settings,
		events:   make(chan Event, mqttQueueSize),
		now:      time.Now,
		log:      log.New("module", "mqtt"),
	}
}

func (m *MqttHandler) OnPressureRaw(fraction float32, step uint16) {
	if !m.settings.Raw {
		return
	}
	m.queue(Event{Type: EventPressureRaw, Fraction: fraction, Step: step})
}

func (m *MqttHandler) OnPressure(fraction float32, step uint16) {
	m.queue(Event{Type: EventPressure, Fraction: fraction, Step: step})
}

func (m *MqttHandler) OnHit(velocity uint16) {
	m.queue(Event{Type: EventHit, Velocity: int(velocity)})
}

func (m *MqttHandler) OnRelease(velocity uint8) {
	m.queue(Event{Type: EventRelease, Velocity: int(velocity)})
}

func (m *MqttHandler) queue(e Event) {
	e.Timestamp = m.now().UnixNano() / int64(time.Millisecond)
	select {
	case m.events <- e:
	default:
		eventsDropped.WithLabelValues("mqtt").Inc()
	}
}

// Run connects to the broker and publishes queued events until ctx is
// cancelled.
func (m *MqttHandler) Run(ctx context.Context) error {
	broker := fmt.Sprintf("tcp://%s:%d", m.settings.Host, m.settings.Port)
	m.log.Info("Connecting to MQTT broker", "broker", broker)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("fsrpad-" + uuid.NewString()).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect %s: %w", broker, token.Error())
	}
	defer client.Disconnect(250)

	return m.publishAll(ctx, func(topic string, payload []byte) error {
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		return token.Error()
	})
}

func (m *MqttHandler) publishAll(ctx context.Context, publish func(topic string, payload []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-m.events:
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}

			topic := m.settings.Topic + "/" + e.Type
			m.log.Debug("Sending event", "topic", topic, "payload", string(data))
			if err := publish(topic, data); err != nil {
				m.log.Warn("Failed to publish event", "topic", topic, "error", err)
			}
		}
	}
}
