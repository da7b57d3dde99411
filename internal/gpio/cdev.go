//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultChip is the GPIO character device most boards expose.
const DefaultChip = "gpiochip0"

const consumerLabel = "pinwatch"

// CdevNotifier waits for edge events delivered by the GPIO character
// device. The library raises events on its own goroutine; they are funneled
// into a buffered channel and drained by Wait, which reports ready pins in
// table order.
type CdevNotifier struct {
	pins    []Pin
	chip    *gpiocdev.Chip
	lines   []*gpiocdev.Line
	index   map[int]int // line offset -> pin table index
	events  chan int    // pin table indices
	done    chan struct{}
	initial []int

	closeOnce sync.Once
}

// NewCdevNotifier requests every pin as an input with edge detection
// matching its mode and reads the initial values. Any failure releases the
// lines already requested.
func NewCdevNotifier(chip string, pins []Pin) (*CdevNotifier, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumerLabel))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	n := &CdevNotifier{
		pins:    pins,
		chip:    c,
		lines:   make([]*gpiocdev.Line, 0, len(pins)),
		index:   make(map[int]int, len(pins)),
		events:  make(chan int, 256),
		done:    make(chan struct{}),
		initial: make([]int, 0, len(pins)),
	}
	for i, p := range pins {
		n.index[p.Number] = i

		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithEventHandler(n.handleEvent),
		}
		switch p.Edge {
		case EdgeRising:
			opts = append(opts, gpiocdev.WithRisingEdge)
		case EdgeFalling:
			opts = append(opts, gpiocdev.WithFallingEdge)
		default:
			// Both and switch watch both edges; switch debounce happens in
			// the detector.
			opts = append(opts, gpiocdev.WithBothEdges)
		}

		line, err := c.RequestLine(p.Number, opts...)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("request pin %d: %w", p.Number, err)
		}
		n.lines = append(n.lines, line)

		v, err := line.Value()
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("read pin %d: %w", p.Number, err)
		}
		n.initial = append(n.initial, v)
	}
	return n, nil
}

// handleEvent runs on the gpiocdev event goroutine. A full channel means
// notifications are already pending for this wake; dropping the event is
// fine because Wait re-reads values anyway.
func (n *CdevNotifier) handleEvent(ev gpiocdev.LineEvent) {
	i, ok := n.index[ev.Offset]
	if !ok {
		return
	}
	select {
	case n.events <- i:
	default:
	}
}

// Wait blocks until at least one edge event arrives, then drains whatever
// else is queued so a burst collapses into one wake covering all ready
// pins.
func (n *CdevNotifier) Wait() ([]int, error) {
	var first int
	select {
	case first = <-n.events:
	case <-n.done:
		return nil, ErrClosed
	}

	pending := make([]bool, len(n.pins))
	pending[first] = true
	for {
		select {
		case i := <-n.events:
			pending[i] = true
		default:
			ready := make([]int, 0, len(n.pins))
			for i, p := range pending {
				if p {
					ready = append(ready, i)
				}
			}
			return ready, nil
		}
	}
}

// Read returns the current value of the pin at table index i.
func (n *CdevNotifier) Read(i int) (int, error) {
	v, err := n.lines[i].Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", n.pins[i].Number, err)
	}
	return v, nil
}

// InitialValues returns the values read when the lines were requested.
func (n *CdevNotifier) InitialValues() []int {
	return append([]int(nil), n.initial...)
}

// Close releases the requested lines and unblocks a pending Wait.
func (n *CdevNotifier) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		for _, line := range n.lines {
			line.Close()
		}
		n.chip.Close()
	})
	return nil
}

// CdevValues reads the current value of each pin once, without edge
// detection. Used by the one-shot read command.
func CdevValues(chip string, pins []Pin) ([]int, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumerLabel))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}
	defer c.Close()

	values := make([]int, len(pins))
	for i, p := range pins {
		line, err := c.RequestLine(p.Number, gpiocdev.AsInput)
		if err != nil {
			return nil, fmt.Errorf("request pin %d: %w", p.Number, err)
		}
		v, err := line.Value()
		line.Close()
		if err != nil {
			return nil, fmt.Errorf("read pin %d: %w", p.Number, err)
		}
		values[i] = v
	}
	return values, nil
}
