package monitor

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/pinwatch/internal/gpio"
	"github.com/sweeney/pinwatch/internal/logic"
	"github.com/sweeney/pinwatch/internal/mqtt"
	"github.com/sweeney/pinwatch/internal/script"
	"github.com/sweeney/pinwatch/internal/status"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (the monitor loop is the
// only caller).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCleanShutdown(t *testing.T) {
	// A notifier with no pending cycles reports closed straight away. That is
	// the normal shutdown path and must not surface as an error.
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0})
	runner := &script.FakeRunner{}

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Log: quietLog()})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(runner.Calls) != 0 {
		t.Errorf("expected 0 script invocations, got %d", len(runner.Calls))
	}
}

func TestRunDispatchesReading(t *testing.T) {
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0}, gpio.Wake(0, 1))
	runner := &script.FakeRunner{}

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Log: quietLog()})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(runner.Calls) != 1 {
		t.Fatalf("expected 1 script invocation, got %d", len(runner.Calls))
	}
	if runner.Calls[0].Pin != 4 || runner.Calls[0].Value != 1 {
		t.Errorf("expected invocation (4, 1), got (%d, %d)", runner.Calls[0].Pin, runner.Calls[0].Value)
	}
}

func TestRunTableOrderWithinWake(t *testing.T) {
	// Two pins wake together; handlers must run in table order, pin 3 first.
	pins := []gpio.Pin{
		{Number: 3, Edge: gpio.EdgeBoth},
		{Number: 9, Edge: gpio.EdgeBoth},
	}
	nf := gpio.NewFakeNotifier([]int{0, 0}, gpio.Cycle{Ready: []gpio.Reading{
		{Index: 0, Value: 1},
		{Index: 1, Value: 1},
	}})
	runner := &script.FakeRunner{}

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Log: quietLog()})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(runner.Calls) != 2 {
		t.Fatalf("expected 2 script invocations, got %d", len(runner.Calls))
	}
	if runner.Calls[0].Pin != 3 {
		t.Errorf("expected pin 3 first, got %d", runner.Calls[0].Pin)
	}
	if runner.Calls[1].Pin != 9 {
		t.Errorf("expected pin 9 second, got %d", runner.Calls[1].Pin)
	}
}

func TestRunRepeatedReadingsDispatch(t *testing.T) {
	// Edge-notified pins dispatch every reading, even when the value repeats.
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0},
		gpio.Wake(0, 1),
		gpio.Wake(0, 1),
		gpio.Wake(0, 0),
	)
	runner := &script.FakeRunner{}

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Log: quietLog()})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(runner.Calls) != 3 {
		t.Fatalf("expected 3 script invocations, got %d", len(runner.Calls))
	}
	wantValues := []int{1, 1, 0}
	for i, want := range wantValues {
		if runner.Calls[i].Value != want {
			t.Errorf("invocation %d: expected value %d, got %d", i, want, runner.Calls[i].Value)
		}
	}
}

func TestRunSwitchDebounce(t *testing.T) {
	// A switch pin bouncing inside the debounce window collapses to a single
	// invocation per settled level: fire on the first transition, absorb the
	// bounce, fire again once the window has passed.
	pins := []gpio.Pin{{Number: 17, Edge: gpio.EdgeSwitch}}
	nf := gpio.NewFakeNotifier([]int{0},
		gpio.Wake(0, 1), // t0: first transition fires
		gpio.Wake(0, 0), // +400ms: inside window, absorbed
		gpio.Wake(0, 1), // +800ms: same level as tracked, absorbed
		gpio.Wake(0, 0), // +1200ms: outside window, fires
	)
	runner := &script.FakeRunner{}
	clock := fakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 400*time.Millisecond)

	mon := New(pins, nf, logic.NewDetector(pins, time.Second), runner, Options{Log: quietLog(), Now: clock})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(runner.Calls) != 2 {
		t.Fatalf("expected 2 script invocations, got %d", len(runner.Calls))
	}
	if runner.Calls[0].Value != 1 {
		t.Errorf("expected first invocation with value 1, got %d", runner.Calls[0].Value)
	}
	if runner.Calls[1].Value != 0 {
		t.Errorf("expected second invocation with value 0, got %d", runner.Calls[1].Value)
	}
}

func TestRunWaitErrorFatal(t *testing.T) {
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0})
	waitErr := errors.New("poll failed")
	nf.WaitError = waitErr
	runner := &script.FakeRunner{}

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Log: quietLog()})
	err := mon.Run()
	if err == nil {
		t.Fatal("expected an error from Run")
	}
	if !errors.Is(err, waitErr) {
		t.Errorf("expected error to wrap the wait failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "wait for pin events") {
		t.Errorf("expected wait context in error, got %q", err)
	}
}

func TestRunReadErrorSkipsReading(t *testing.T) {
	// A failed re-read drops that reading but keeps the loop alive.
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0}, gpio.Wake(0, 1), gpio.Wake(0, 1))
	nf.ReadError = errors.New("read fault")
	runner := &script.FakeRunner{}
	pub := mqtt.NewFakePublisher()

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Sink: pub, Log: quietLog()})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if nf.Waits < 3 {
		t.Errorf("expected the loop to keep waiting past read errors, got %d waits", nf.Waits)
	}
	if len(runner.Calls) != 0 {
		t.Errorf("expected 0 script invocations, got %d", len(runner.Calls))
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected 0 published events, got %d", len(pub.Events))
	}
}

func TestRunScriptFailureKeepsGoing(t *testing.T) {
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0}, gpio.Wake(0, 1), gpio.Wake(0, 0))
	runner := &script.FakeRunner{Err: errors.New("script exited with status 1")}
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{}, pins, []int{0})

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Sink: pub, Tracker: tracker, Log: quietLog()})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Every reading still reaches the script, and the events are still
	// counted and published; only the failure tally grows.
	if len(runner.Calls) != 2 {
		t.Errorf("expected 2 script invocations, got %d", len(runner.Calls))
	}
	if len(pub.Events) != 2 {
		t.Errorf("expected 2 published events, got %d", len(pub.Events))
	}
	snap := tracker.Snapshot()
	if snap.Pins[0].ScriptFailures != 2 {
		t.Errorf("expected 2 script failures, got %d", snap.Pins[0].ScriptFailures)
	}
	if snap.Pins[0].Events != 2 {
		t.Errorf("expected 2 events recorded, got %d", snap.Pins[0].Events)
	}
}

func TestRunPublishesToSink(t *testing.T) {
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0}, gpio.Wake(0, 1), gpio.Wake(0, 0))
	runner := &script.FakeRunner{}
	pub := mqtt.NewFakePublisher()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := fakeClock(start, time.Minute)

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Sink: pub, Log: quietLog(), Now: clock})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(pub.Events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.Events))
	}
	first := pub.Events[0]
	if first.Pin != 4 || first.Value != 1 {
		t.Errorf("expected event (4, 1), got (%d, %d)", first.Pin, first.Value)
	}
	if !first.Time.Equal(start) {
		t.Errorf("expected event time %v, got %v", start, first.Time)
	}
	second := pub.Events[1]
	if second.Value != 0 {
		t.Errorf("expected second event value 0, got %d", second.Value)
	}
	if !second.Time.Equal(start.Add(time.Minute)) {
		t.Errorf("expected event time %v, got %v", start.Add(time.Minute), second.Time)
	}
}

func TestRunSinkErrorTolerated(t *testing.T) {
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0}, gpio.Wake(0, 1), gpio.Wake(0, 0))
	runner := &script.FakeRunner{}
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker unavailable")
	tracker := status.NewTracker(time.Now(), status.Config{}, pins, []int{0})

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Sink: pub, Tracker: tracker, Log: quietLog()})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Scripts and local bookkeeping are unaffected by a dead broker.
	if len(runner.Calls) != 2 {
		t.Errorf("expected 2 script invocations, got %d", len(runner.Calls))
	}
	if got := tracker.Snapshot().TotalEvents(); got != 2 {
		t.Errorf("expected 2 events recorded, got %d", got)
	}
}

func TestRunUpdatesTracker(t *testing.T) {
	pins := []gpio.Pin{
		{Number: 4, Edge: gpio.EdgeBoth},
		{Number: 17, Edge: gpio.EdgeBoth},
	}
	nf := gpio.NewFakeNotifier([]int{0, 1},
		gpio.Wake(0, 1),
		gpio.Wake(0, 0),
	)
	runner := &script.FakeRunner{}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := fakeClock(start, time.Minute)
	tracker := status.NewTracker(start, status.Config{}, pins, []int{0, 1})

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{Tracker: tracker, Log: quietLog(), Now: clock})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	snap := tracker.Snapshot()
	if snap.Pins[0].Value != 0 {
		t.Errorf("expected pin 4 value 0 after last reading, got %d", snap.Pins[0].Value)
	}
	if snap.Pins[0].Events != 2 {
		t.Errorf("expected 2 events for pin 4, got %d", snap.Pins[0].Events)
	}
	wantLast := start.Add(time.Minute)
	if !snap.Pins[0].LastEvent.Equal(wantLast) {
		t.Errorf("expected last event at %v, got %v", wantLast, snap.Pins[0].LastEvent)
	}

	// The idle pin keeps its initial value and records nothing.
	if snap.Pins[1].Value != 1 {
		t.Errorf("expected pin 17 to keep initial value 1, got %d", snap.Pins[1].Value)
	}
	if snap.Pins[1].Events != 0 {
		t.Errorf("expected 0 events for pin 17, got %d", snap.Pins[1].Events)
	}
}

func TestRunWithoutSinkOrTracker(t *testing.T) {
	// Zero options: no sink, no tracker, default logger and clock. The loop
	// must still dispatch scripts without tripping over the absent extras.
	pins := []gpio.Pin{{Number: 4, Edge: gpio.EdgeBoth}}
	nf := gpio.NewFakeNotifier([]int{0}, gpio.Wake(0, 1))
	runner := &script.FakeRunner{}

	mon := New(pins, nf, logic.NewDetector(pins, 0), runner, Options{})
	if err := mon.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(runner.Calls) != 1 {
		t.Fatalf("expected 1 script invocation, got %d", len(runner.Calls))
	}
}
