//go:build !linux

package gpio

import "errors"

// The real backends need Linux. These stubs keep the daemon compiling on
// development machines; constructing a notifier fails at runtime.

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// DefaultSysfsRoot matches the Linux value for flag defaults.
const DefaultSysfsRoot = "/sys/class/gpio"

// DefaultChip matches the Linux value for flag defaults.
const DefaultChip = "gpiochip0"

// Sysfs is not available on non-Linux platforms.
type Sysfs struct {
	Root string
}

func (Sysfs) Configure(Pin) error { return errUnsupported }

func (Sysfs) ReadValue(int) (int, error) { return 0, errUnsupported }

// SysfsNotifier is not available on non-Linux platforms.
type SysfsNotifier struct{}

func NewSysfsNotifier(Sysfs, []Pin) (*SysfsNotifier, error) { return nil, errUnsupported }

func (*SysfsNotifier) Wait() ([]int, error) { return nil, errUnsupported }

func (*SysfsNotifier) Read(int) (int, error) { return 0, errUnsupported }

func (*SysfsNotifier) InitialValues() []int { return nil }

func (*SysfsNotifier) Close() error { return nil }

// CdevNotifier is not available on non-Linux platforms.
type CdevNotifier struct{}

func NewCdevNotifier(string, []Pin) (*CdevNotifier, error) { return nil, errUnsupported }

func (*CdevNotifier) Wait() ([]int, error) { return nil, errUnsupported }

func (*CdevNotifier) Read(int) (int, error) { return 0, errUnsupported }

func (*CdevNotifier) InitialValues() []int { return nil }

func (*CdevNotifier) Close() error { return nil }

func CdevValues(string, []Pin) ([]int, error) { return nil, errUnsupported }
