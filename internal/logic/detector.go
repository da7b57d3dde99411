package logic

import (
	"time"

	"github.com/sweeney/pinwatch/internal/gpio"
)

// Detector applies each pin's edge policy to freshly read values.
type Detector struct {
	pins   []gpio.Pin
	window time.Duration
	state  []switchState
}

// NewDetector creates a detector for the given pin table. A window of zero
// or less falls back to DefaultDebounce.
func NewDetector(pins []gpio.Pin, window time.Duration) *Detector {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Detector{
		pins:   pins,
		window: window,
		state:  make([]switchState, len(pins)),
	}
}

// Process takes the value just read for the pin at table index i and
// returns the event to dispatch, or nil when the reading is absorbed.
//
// Pins in rising, falling or both mode fire on every notification: the
// kernel already filtered for the configured edge, so the reading is the
// event. Switch pins keep a confirmed level and accept a change only once
// the debounce window has fully elapsed since the last accepted one,
// collapsing contact bounce into a single event per actuation.
func (d *Detector) Process(i int, value int, now time.Time) *Event {
	p := d.pins[i]
	if p.Edge != gpio.EdgeSwitch {
		return &Event{Pin: p.Number, Value: value, Time: now}
	}

	st := &d.state[i]
	if value == st.level {
		return nil
	}
	if now.Sub(st.changedAt) <= d.window {
		return nil
	}
	st.level = value
	st.changedAt = now
	return &Event{Pin: p.Number, Value: value, Time: now}
}

// Level returns the confirmed level of the pin at table index i. For
// non-switch pins this is always zero; only switch pins track a level.
func (d *Detector) Level(i int) int {
	return d.state[i].level
}
