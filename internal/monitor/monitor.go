// Package monitor runs the event loop: wait for pin readiness, re-read
// values, apply each pin's edge policy and dispatch handlers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/pinwatch/internal/gpio"
	"github.com/sweeney/pinwatch/internal/logic"
	"github.com/sweeney/pinwatch/internal/script"
	"github.com/sweeney/pinwatch/internal/status"
)

// LevelTrace sits below debug; it records readings the edge policy
// absorbed. Enabled with -vv.
const LevelTrace = slog.LevelDebug - 4

// Sink receives confirmed events in addition to the script runner (the
// MQTT mirror). Sink failures are logged, never fatal.
type Sink interface {
	Publish(event logic.Event) error
}

// Options carries the optional collaborators of a Monitor.
type Options struct {
	Sink    Sink             // confirmed-event mirror, may be nil
	Tracker *status.Tracker  // status surface, may be nil
	Log     *slog.Logger     // defaults to slog.Default()
	Now     func() time.Time // defaults to time.Now
}

// Monitor owns the wait loop for one pin table. It runs on a single
// goroutine; handlers execute synchronously, so an event's script has
// exited before the next pin is even examined.
type Monitor struct {
	pins     []gpio.Pin
	notifier gpio.Notifier
	detector *logic.Detector
	runner   script.Runner

	sink    Sink
	tracker *status.Tracker
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Monitor for the pin table behind the notifier. The
// detector and notifier must be built from the same table, in the same
// order.
func New(pins []gpio.Pin, notifier gpio.Notifier, detector *logic.Detector, runner script.Runner, opts Options) *Monitor {
	m := &Monitor{
		pins:     pins,
		notifier: notifier,
		detector: detector,
		runner:   runner,
		sink:     opts.Sink,
		tracker:  opts.Tracker,
		log:      opts.Log,
		now:      opts.Now,
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Run blocks on the notifier and dispatches events until the notifier is
// closed, which returns nil. A wait failure is returned to the caller and
// terminates monitoring; per-pin read and script failures only log.
func (m *Monitor) Run() error {
	m.log.Info("monitoring pins", "count", len(m.pins))
	for {
		ready, err := m.notifier.Wait()
		if errors.Is(err, gpio.ErrClosed) {
			m.log.Info("monitor stopped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("wait for pin events: %w", err)
		}

		// Ready pins are handled strictly in table order, one handler at
		// a time.
		for _, i := range ready {
			m.handle(i)
		}
	}
}

// handle processes one ready pin: re-read, apply edge policy, dispatch.
func (m *Monitor) handle(i int) {
	pin := m.pins[i]

	value, err := m.notifier.Read(i)
	if err != nil {
		m.log.Warn("pin read failed", "pin", pin.Number, "error", err)
		return
	}
	m.log.Debug("pin event", "pin", pin.Number, "value", value)
	if m.tracker != nil {
		m.tracker.SetValue(pin.Number, value)
	}

	ev := m.detector.Process(i, value, m.now())
	if ev == nil {
		m.log.Log(context.Background(), LevelTrace, "reading absorbed", "pin", pin.Number, "value", value)
		return
	}

	if err := m.runner.Run(ev.Pin, ev.Value); err != nil {
		m.log.Warn("script failed", "pin", ev.Pin, "error", err)
		if m.tracker != nil {
			m.tracker.RecordScriptFailure(ev.Pin)
		}
	}
	if m.tracker != nil {
		m.tracker.RecordEvent(ev.Pin, ev.Time)
	}
	if m.sink != nil {
		if err := m.sink.Publish(*ev); err != nil {
			m.log.Warn("event publish failed", "pin", ev.Pin, "error", err)
		}
	}
}
