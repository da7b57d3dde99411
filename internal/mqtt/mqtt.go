// Package mqtt mirrors pin events to an MQTT broker, with abstraction for
// testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pinwatch/internal/logic"
)

// Topic is the MQTT topic for pin events.
const Topic = "pinwatch/events"

// TopicSystem is the MQTT topic for daemon lifecycle events.
const TopicSystem = "pinwatch/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish mirrors a confirmed pin event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a daemon lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a daemon lifecycle event.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	PinEvent PinEventPayload `json:"pin_event"`
}

// PinEventPayload contains the pin event details.
type PinEventPayload struct {
	Timestamp string `json:"timestamp"`
	Pin       int    `json:"pin"`
	Value     int    `json:"value"`
}

// FormatPayload creates the JSON payload for a pin event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		PinEvent: PinEventPayload{
			Timestamp: event.Time.UTC().Format(time.RFC3339),
			Pin:       event.Pin,
			Value:     event.Value,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for lifecycle events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
// If event.RawPayload is set, it is returned directly (used for full status
// snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// OfflinePayload is the retained last-will message the broker publishes if
// the daemon drops off without a clean shutdown. It carries no timestamp:
// the will is registered at connect time, long before it fires.
func OfflinePayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE"}})
	return data
}
