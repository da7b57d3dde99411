package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Pins          []PinJSON  `json:"pins"`
	TotalEvents   int        `json:"total_events"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	Hostname      string     `json:"hostname,omitempty"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// PinJSON is the JSON representation of one monitored pin.
type PinJSON struct {
	Pin            int    `json:"pin"`
	Edge           string `json:"edge"`
	Value          int    `json:"value"` // -1 until the first read
	Events         int    `json:"events"`
	ScriptFailures int    `json:"script_failures"`
	LastEvent      string `json:"last_event,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ScriptDir  string `json:"script_dir"`
	Backend    string `json:"backend"`
	DebounceMs int64  `json:"debounce_ms"`
	HTTPAddr   string `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	pins := make([]PinJSON, len(snap.Pins))
	for i, p := range snap.Pins {
		pins[i] = PinJSON{
			Pin:            p.Pin,
			Edge:           p.Edge,
			Value:          p.Value,
			Events:         p.Events,
			ScriptFailures: p.ScriptFailures,
		}
		if !p.LastEvent.IsZero() {
			pins[i].LastEvent = p.LastEvent.UTC().Format(time.RFC3339)
		}
	}

	return StatusInner{
		Pins:          pins,
		TotalEvents:   snap.TotalEvents(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Hostname:      snap.Hostname,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			ScriptDir:  snap.Config.ScriptDir,
			Backend:    snap.Config.Backend,
			DebounceMs: snap.Config.DebounceMs,
			HTTPAddr:   snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
