// Package mqtt wraps the broker connection used for smart-bulb control and
// appliance event publishing, with a fake for tests.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/arrival-display/internal/logic"
)

// Default topics.
const (
	TopicButtons = "home/display/buttons"
	TopicSystem  = "home/display/system"
)

// Handler receives messages for a subscription.
type Handler func(topic string, payload []byte)

// Client is the subset of an MQTT client the appliance uses.
type Client interface {
	// Publish sends payload; while disconnected the message is buffered
	// and replayed on reconnect.
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// Subscribe registers handler for topic. Subscriptions survive
	// reconnects.
	Subscribe(topic string, qos byte, handler Handler) error

	IsConnected() bool
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a lifecycle event (STARTUP, SHUTDOWN).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted payload; if set, FormatSystemPayload returns it
	Retained   bool
}

// SystemPayload is the JSON body of a system event without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// ButtonPayload is the JSON body published for each accepted button event.
type ButtonPayload struct {
	Timestamp string   `json:"timestamp"`
	Buttons   []string `json:"buttons"`
	Mode      string   `json:"mode"`
}

// FormatButtonPayload creates the JSON payload for a button event.
func FormatButtonPayload(ts time.Time, s logic.Sample, mode logic.DisplayMode) ([]byte, error) {
	p := ButtonPayload{
		Timestamp: ts.UTC().Format(time.RFC3339),
		Buttons:   []string{},
		Mode:      mode.String(),
	}
	for b := logic.Button(0); b < logic.NumButtons; b++ {
		if s.Pressed(b) {
			p.Buttons = append(p.Buttons, b.String())
		}
	}
	return json.Marshal(p)
}

// Events publishes appliance events on a Client.
type Events struct {
	client      Client
	topicButton string
	topicSystem string
}

// NewEvents returns an Events publisher; empty topics use the defaults.
func NewEvents(client Client, topicButtons, topicSystem string) *Events {
	if topicButtons == "" {
		topicButtons = TopicButtons
	}
	if topicSystem == "" {
		topicSystem = TopicSystem
	}
	return &Events{client: client, topicButton: topicButtons, topicSystem: topicSystem}
}

// PublishButton publishes one button event at QoS 0.
func (e *Events) PublishButton(ts time.Time, s logic.Sample, mode logic.DisplayMode) error {
	payload, err := FormatButtonPayload(ts, s, mode)
	if err != nil {
		return fmt.Errorf("format button payload: %w", err)
	}
	return e.client.Publish(e.topicButton, 0, false, payload)
}

// PublishSystem publishes a system event at QoS 1.
func (e *Events) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return e.client.Publish(e.topicSystem, 1, event.Retained, payload)
}

// IsConnected reports the underlying connection state.
func (e *Events) IsConnected() bool {
	return e.client.IsConnected()
}
