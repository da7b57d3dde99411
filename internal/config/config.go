// Package config holds the pinwatch daemon configuration and the pin
// table construction: parsing pin[:edge] arguments and discovering pins
// from the handler scripts present in the script directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/pinwatch/internal/gpio"
)

// Backend names accepted by --backend.
const (
	BackendSysfs = "sysfs"
	BackendCdev  = "cdev"
)

// DefaultScriptDir is where handler scripts live unless -s overrides it.
// Scripts must be named after the pin number they handle (so, for
// example, /etc/pinwatch/scripts/4).
const DefaultScriptDir = "/etc/pinwatch/scripts"

// maxProbePin bounds the discovery scan: pins 0..maxProbePin-1 are
// probed for a handler script when no pin arguments are given.
const maxProbePin = 32

// Config is the full daemon configuration, built once by the CLI layer
// and passed into constructors.
type Config struct {
	ScriptDir   string
	DefaultEdge gpio.Edge
	Debounce    time.Duration
	Backend     string
	Chip        string
	Broker      string
	Heartbeat   time.Duration
	HTTPAddr    string
	LogFile     string
	Verbosity   int
	Pins        []gpio.Pin
}

// ParsePin parses a single pin[:edge] argument. A bare number takes the
// default edge mode.
func ParsePin(spec string, defaultEdge gpio.Edge) (gpio.Pin, error) {
	numStr, edgeStr, hasEdge := strings.Cut(spec, ":")

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return gpio.Pin{}, fmt.Errorf("invalid pin number %q", numStr)
	}

	edge := defaultEdge
	if hasEdge {
		edge, err = gpio.ParseEdge(edgeStr)
		if err != nil {
			return gpio.Pin{}, fmt.Errorf("pin spec %q: %w", spec, err)
		}
	}
	return gpio.Pin{Number: n, Edge: edge}, nil
}

// ParsePins parses the positional pin arguments in order.
func ParsePins(specs []string, defaultEdge gpio.Edge) ([]gpio.Pin, error) {
	pins := make([]gpio.Pin, 0, len(specs))
	for _, spec := range specs {
		p, err := ParsePin(spec, defaultEdge)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// DiscoverPins scans the script directory for handler scripts named
// after a pin number and returns a pin table covering them, in
// ascending pin order. Discovered pins use the default edge mode.
func DiscoverPins(scriptDir string, defaultEdge gpio.Edge) []gpio.Pin {
	var pins []gpio.Pin
	for i := 0; i < maxProbePin; i++ {
		info, err := os.Stat(filepath.Join(scriptDir, strconv.Itoa(i)))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		pins = append(pins, gpio.Pin{Number: i, Edge: defaultEdge})
	}
	return pins
}

// Validate checks the finished configuration. The pin table must be
// populated (arguments or discovery) before calling it.
func (c *Config) Validate() error {
	info, err := os.Stat(c.ScriptDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("script directory %q does not exist", c.ScriptDir)
	}
	switch c.Backend {
	case BackendSysfs, BackendCdev:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSysfs, BackendCdev)
	}
	if len(c.Pins) == 0 {
		return fmt.Errorf("no pins to watch (no arguments and no scripts in %s)", c.ScriptDir)
	}
	return nil
}
