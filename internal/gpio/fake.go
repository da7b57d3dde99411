package gpio

// FakeNotifier is a test double that replays scripted wake cycles.
type FakeNotifier struct {
	// Cycles are returned by successive Wait calls. Once they are spent,
	// Wait reports ErrClosed, which ends a monitor loop cleanly.
	Cycles []Cycle

	// Initial holds the values reported by InitialValues.
	Initial []int

	// ReadError, if set, is returned by every Read.
	ReadError error

	// WaitError, if set, is returned once the cycles are spent, in place
	// of ErrClosed.
	WaitError error

	// Closed tracks if Close was called.
	Closed bool

	// Waits counts Wait calls.
	Waits int

	pos    int
	values map[int]int
}

// Cycle is one wake of the notifier: the pins that became ready, with the
// values a following Read should observe.
type Cycle struct {
	Ready []Reading
}

// Reading pairs a pin table index with the value read back after the wake.
type Reading struct {
	Index int
	Value int
}

// Wake builds a single-pin cycle.
func Wake(index, value int) Cycle {
	return Cycle{Ready: []Reading{{Index: index, Value: value}}}
}

// NewFakeNotifier creates a FakeNotifier with the given initial values and
// scripted cycles.
func NewFakeNotifier(initial []int, cycles ...Cycle) *FakeNotifier {
	f := &FakeNotifier{
		Cycles:  cycles,
		Initial: initial,
		values:  make(map[int]int, len(initial)),
	}
	for i, v := range initial {
		f.values[i] = v
	}
	return f
}

// Wait consumes the next scripted cycle, updating the values Read will
// observe, and returns the ready indices in table order.
func (f *FakeNotifier) Wait() ([]int, error) {
	f.Waits++
	if f.Closed {
		return nil, ErrClosed
	}
	if f.pos >= len(f.Cycles) {
		if f.WaitError != nil {
			return nil, f.WaitError
		}
		return nil, ErrClosed
	}

	c := f.Cycles[f.pos]
	f.pos++
	ready := make([]int, 0, len(c.Ready))
	for _, r := range c.Ready {
		f.values[r.Index] = r.Value
		ready = append(ready, r.Index)
	}
	return ready, nil
}

// Read returns the value set by the most recent cycle touching index i, or
// the initial value.
func (f *FakeNotifier) Read(i int) (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.values[i], nil
}

// InitialValues returns a copy of the configured initial values.
func (f *FakeNotifier) InitialValues() []int {
	return append([]int(nil), f.Initial...)
}

// Close marks the notifier as closed; subsequent Waits report ErrClosed.
func (f *FakeNotifier) Close() error {
	f.Closed = true
	return nil
}
