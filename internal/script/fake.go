package script

// Invocation records one Run call.
type Invocation struct {
	Pin   int
	Value int
}

// FakeRunner is a test double that records invocations.
type FakeRunner struct {
	// Calls holds every invocation in dispatch order.
	Calls []Invocation

	// Err, if set, is returned by every Run.
	Err error

	// OnRun, if set, is called during each Run with the invocation.
	OnRun func(Invocation)
}

// Run records the invocation and returns Err.
func (f *FakeRunner) Run(pin, value int) error {
	inv := Invocation{Pin: pin, Value: value}
	f.Calls = append(f.Calls, inv)
	if f.OnRun != nil {
		f.OnRun(inv)
	}
	return f.Err
}
