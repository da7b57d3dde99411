// Package logic decides which raw pin readings become dispatched events.
// This package has NO external dependencies (no GPIO, exec, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package logic

import "time"

// DefaultDebounce is the switch debounce window used when none is
// configured.
const DefaultDebounce = time.Second

// Event is one confirmed value change to be dispatched.
type Event struct {
	Pin   int
	Value int
	Time  time.Time
}

// switchState is the debounce memory for one switch-mode pin.
type switchState struct {
	// level is the last confirmed logical level.
	level int
	// changedAt records when level last changed. The zero time lets the
	// first genuine transition through the window check.
	changedAt time.Time
}
