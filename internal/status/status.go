// Package status provides a thread-safe status tracker for the pinwatch
// daemon. It is read by the HTTP status server and rendered into MQTT
// lifecycle payloads.
package status

import (
	"os"
	"sync"
	"time"

	"github.com/sweeney/pinwatch/internal/gpio"
)

// Config contains daemon configuration for display.
type Config struct {
	ScriptDir  string
	Backend    string
	DebounceMs int64
	Broker     string
	HTTPAddr   string
}

// PinStatus is the tracked state of one monitored pin.
type PinStatus struct {
	Pin            int
	Edge           string
	Value          int // last raw value read, -1 before the first read
	Events         int // confirmed events dispatched
	ScriptFailures int
	LastEvent      time.Time // zero until the first event
}

// Snapshot is a point-in-time view of daemon state. It is a value type,
// safe to use after the tracker's lock is released.
type Snapshot struct {
	Pins          []PinStatus
	StartTime     time.Time
	Now           time.Time
	Hostname      string
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// TotalEvents sums confirmed events across all pins.
func (s Snapshot) TotalEvents() int {
	total := 0
	for _, p := range s.Pins {
		total += p.Events
	}
	return total
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	index map[int]int // pin number -> Pins index
}

// NewTracker creates a Tracker seeded with the pin table and the values
// observed at startup.
func NewTracker(startTime time.Time, cfg Config, pins []gpio.Pin, initial []int) *Tracker {
	t := &Tracker{index: make(map[int]int, len(pins))}
	t.snap.StartTime = startTime
	t.snap.Config = cfg
	if host, err := os.Hostname(); err == nil {
		t.snap.Hostname = host
	}
	t.snap.Pins = make([]PinStatus, len(pins))
	for i, p := range pins {
		v := -1
		if i < len(initial) {
			v = initial[i]
		}
		t.snap.Pins[i] = PinStatus{Pin: p.Number, Edge: p.Edge.String(), Value: v}
		t.index[p.Number] = i
	}
	return t
}

// SetValue records the raw value just read for a pin.
func (t *Tracker) SetValue(pin, value int) {
	t.mu.Lock()
	if i, ok := t.index[pin]; ok {
		t.snap.Pins[i].Value = value
	}
	t.mu.Unlock()
}

// RecordEvent counts one confirmed event on a pin.
func (t *Tracker) RecordEvent(pin int, when time.Time) {
	t.mu.Lock()
	if i, ok := t.index[pin]; ok {
		t.snap.Pins[i].Events++
		t.snap.Pins[i].LastEvent = when
	}
	t.mu.Unlock()
}

// RecordScriptFailure counts one failed handler invocation on a pin.
func (t *Tracker) RecordScriptFailure(pin int) {
	t.mu.Lock()
	if i, ok := t.index[pin]; ok {
		t.snap.Pins[i].ScriptFailures++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Pins = append([]PinStatus(nil), t.snap.Pins...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
