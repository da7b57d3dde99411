// Package gpio provides edge-triggered GPIO input monitoring with hardware
// abstraction. Two real backends exist on Linux: the legacy sysfs interface
// (poll on exported value files) and the GPIO character device. The fake
// implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Edge selects which value changes on a pin produce events.
type Edge int

const (
	// EdgeRising fires on transitions from 0 to 1.
	EdgeRising Edge = iota
	// EdgeFalling fires on transitions from 1 to 0.
	EdgeFalling
	// EdgeBoth fires on every transition.
	EdgeBoth
	// EdgeSwitch fires on both edges with software debounce applied, so a
	// bouncy mechanical switch produces one event per actuation.
	EdgeSwitch
)

// ParseEdge parses an edge mode name as given on the command line.
func ParseEdge(s string) (Edge, error) {
	switch s {
	case "rising":
		return EdgeRising, nil
	case "falling":
		return EdgeFalling, nil
	case "both":
		return EdgeBoth, nil
	case "switch":
		return EdgeSwitch, nil
	}
	return 0, fmt.Errorf("unknown edge mode %q (want rising, falling, both or switch)", s)
}

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	case EdgeSwitch:
		return "switch"
	}
	return "unknown"
}

// sysfsName is the value written to the kernel edge attribute. Switch pins
// need both edges at the OS level; debounce happens in userspace.
func (e Edge) sysfsName() string {
	if e == EdgeSwitch {
		return "both"
	}
	return e.String()
}

// Pin describes one monitored input.
type Pin struct {
	Number int
	Edge   Edge
}

func (p Pin) String() string {
	return fmt.Sprintf("%d:%s", p.Number, p.Edge)
}

// ErrClosed is returned by Wait after the notifier has been closed.
var ErrClosed = errors.New("gpio: notifier closed")

// Notifier delivers edge notifications for a fixed pin table. Wait and Read
// are called from the monitor goroutine only; Close may be called from
// another goroutine to unblock a pending Wait.
type Notifier interface {
	// Wait blocks until at least one pin signals a value change and returns
	// the table indices of the ready pins in ascending order. After Close
	// it returns ErrClosed.
	Wait() ([]int, error)

	// Read returns the current value (0 or 1) of the pin at table index i.
	// The notification itself carries no value; the handle is re-read.
	Read(i int) (int, error)

	// InitialValues returns the values observed when the pin handles were
	// opened, indexed like the pin table.
	InitialValues() []int

	// Close unblocks a pending Wait and releases the pin handles. Calling
	// it more than once is safe.
	Close() error
}
