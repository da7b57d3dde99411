//go:build linux

package gpio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// DefaultSysfsRoot is where the kernel exposes the legacy GPIO interface.
const DefaultSysfsRoot = "/sys/class/gpio"

// Sysfs performs pin setup and one-shot reads through the legacy sysfs
// interface. Root is normally DefaultSysfsRoot; tests point it at a temp
// directory.
type Sysfs struct {
	Root string
}

func (s Sysfs) pinDir(n int) string {
	return filepath.Join(s.Root, fmt.Sprintf("gpio%d", n))
}

func (s Sysfs) valuePath(n int) string {
	return filepath.Join(s.pinDir(n), "value")
}

// Export makes pin n visible under Root. Exporting a pin that is already
// exported is not an error.
func (s Sysfs) Export(n int) error {
	if _, err := os.Stat(s.pinDir(n)); err == nil {
		return nil
	}
	return writeAttr(filepath.Join(s.Root, "export"), strconv.Itoa(n))
}

// Configure exports pin p, sets its direction to input and selects the edge
// that makes its value file poll-ready. Monitoring must not start unless
// all three steps succeed.
func (s Sysfs) Configure(p Pin) error {
	if err := s.Export(p.Number); err != nil {
		return fmt.Errorf("export pin %d: %w", p.Number, err)
	}
	if err := writeAttr(filepath.Join(s.pinDir(p.Number), "direction"), "in"); err != nil {
		return fmt.Errorf("set pin %d direction: %w", p.Number, err)
	}
	if err := writeAttr(filepath.Join(s.pinDir(p.Number), "edge"), p.Edge.sysfsName()); err != nil {
		return fmt.Errorf("set pin %d edge: %w", p.Number, err)
	}
	return nil
}

// ReadValue reads the current value of pin n once, for use outside a
// monitoring loop.
func (s Sysfs) ReadValue(n int) (int, error) {
	b, err := os.ReadFile(s.valuePath(n))
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", n, err)
	}
	return parseValue(b)
}

// writeAttr writes a sysfs attribute. Attribute files exist already, so
// this never creates anything.
func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// parseValue interprets a sysfs value read. Only the first byte matters;
// the kernel appends a newline.
func parseValue(b []byte) (int, error) {
	if len(b) > 0 {
		switch b[0] {
		case '0':
			return 0, nil
		case '1':
			return 1, nil
		}
	}
	return 0, fmt.Errorf("unexpected pin value %q", b)
}

// SysfsNotifier waits for edge events by polling exported value files for
// the priority condition. A pipe shares the poll set so that Close can wake
// a blocked Wait.
type SysfsNotifier struct {
	pins    []Pin
	fds     []int
	initial []int
	pollfds []unix.PollFd // pin value fds, then the wake pipe read end
	wakeR   int
	wakeW   int

	closed    atomic.Bool
	closeOnce sync.Once
	freeOnce  sync.Once
}

// NewSysfsNotifier opens the value file of every configured pin and reads
// it once, clearing any readiness pending from before startup. Any failure
// releases what was already opened.
func NewSysfsNotifier(fs Sysfs, pins []Pin) (*SysfsNotifier, error) {
	n := &SysfsNotifier{
		pins:    pins,
		fds:     make([]int, 0, len(pins)),
		initial: make([]int, 0, len(pins)),
		wakeR:   -1,
		wakeW:   -1,
	}
	for _, p := range pins {
		fd, err := unix.Open(fs.valuePath(p.Number), unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			n.free()
			return nil, fmt.Errorf("open pin %d value: %w", p.Number, err)
		}
		n.fds = append(n.fds, fd)
		v, err := n.Read(len(n.fds) - 1)
		if err != nil {
			n.free()
			return nil, err
		}
		n.initial = append(n.initial, v)
	}

	var pipe [2]int
	if err := unix.Pipe2(pipe[:], unix.O_CLOEXEC); err != nil {
		n.free()
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}
	n.wakeR, n.wakeW = pipe[0], pipe[1]

	n.pollfds = make([]unix.PollFd, len(pins)+1)
	for i, fd := range n.fds {
		n.pollfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLPRI}
	}
	n.pollfds[len(pins)] = unix.PollFd{Fd: int32(n.wakeR), Events: unix.POLLIN}
	return n, nil
}

// Wait blocks in poll(2) until a pin reports the priority condition.
// Interrupted waits restart; any other poll failure is returned to the
// caller, which treats it as fatal.
func (n *SysfsNotifier) Wait() ([]int, error) {
	for {
		if n.closed.Load() {
			n.free()
			return nil, ErrClosed
		}

		for i := range n.pollfds {
			n.pollfds[i].Revents = 0
		}
		_, err := unix.Poll(n.pollfds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("poll pins: %w", err)
		}
		if n.closed.Load() || n.pollfds[len(n.pins)].Revents != 0 {
			n.free()
			return nil, ErrClosed
		}

		ready := make([]int, 0, len(n.pins))
		for i := range n.pins {
			if n.pollfds[i].Revents&unix.POLLPRI != 0 {
				ready = append(ready, i)
			}
		}
		if len(ready) > 0 {
			return ready, nil
		}
		// Spurious wake, poll again.
	}
}

// Read re-reads the value of pin i from the start of its file. The file
// position is left wherever the last read put it, so every read seeks
// first.
func (n *SysfsNotifier) Read(i int) (int, error) {
	fd := n.fds[i]
	if _, err := unix.Seek(fd, 0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek pin %d value: %w", n.pins[i].Number, err)
	}
	var buf [8]byte
	nr, err := unix.Read(fd, buf[:])
	if err != nil {
		return 0, fmt.Errorf("read pin %d value: %w", n.pins[i].Number, err)
	}
	v, err := parseValue(buf[:nr])
	if err != nil {
		return 0, fmt.Errorf("pin %d: %w", n.pins[i].Number, err)
	}
	return v, nil
}

// InitialValues returns the values read when the pins were opened.
func (n *SysfsNotifier) InitialValues() []int {
	return append([]int(nil), n.initial...)
}

// Close wakes a pending Wait by closing the write end of the wake pipe.
// The waiter releases the descriptors on its way out; if Wait is never
// called again they are released by process exit.
func (n *SysfsNotifier) Close() error {
	n.closeOnce.Do(func() {
		n.closed.Store(true)
		if n.wakeW >= 0 {
			unix.Close(n.wakeW)
		}
	})
	return nil
}

// free closes the pin descriptors and the wake pipe read end. Called from
// the waiter once Wait has observed the close, and from constructor error
// paths.
func (n *SysfsNotifier) free() {
	n.freeOnce.Do(func() {
		for _, fd := range n.fds {
			unix.Close(fd)
		}
		if n.wakeR >= 0 {
			unix.Close(n.wakeR)
		}
	})
}
