// Package script runs per-pin handler executables in response to pin
// events. Handlers run synchronously, one at a time, in the order events
// are dispatched.
package script

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
)

// Runner dispatches one event to its handler.
type Runner interface {
	// Run executes the handler for pin with the new value and blocks until
	// it exits. A missing handler is logged and skipped, not an error; the
	// returned error reports a handler that could not be started or that
	// terminated abnormally.
	Run(pin, value int) error
}

// ScriptRunner runs executables named after the pin number from a fixed
// directory. The handler for pin 4 under /etc/pinwatch/scripts is
// /etc/pinwatch/scripts/4.
type ScriptRunner struct {
	// Dir is the script directory.
	Dir string

	// Stdout and Stderr are inherited by every handler.
	Stdout io.Writer
	Stderr io.Writer

	log *slog.Logger
}

// NewScriptRunner creates a runner for the given script directory.
// Handlers inherit the daemon's own streams unless Stdout/Stderr are
// replaced.
func NewScriptRunner(dir string, log *slog.Logger) *ScriptRunner {
	if log == nil {
		log = slog.Default()
	}
	return &ScriptRunner{
		Dir:    dir,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		log:    log,
	}
}

// Path returns the handler path for a pin.
func (r *ScriptRunner) Path(pin int) string {
	return filepath.Join(r.Dir, strconv.Itoa(pin))
}

// Run executes the handler for pin with the pin number and the new value
// as its two arguments, e.g. "/etc/pinwatch/scripts/4 4 1".
func (r *ScriptRunner) Run(pin, value int) error {
	path := r.Path(pin)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		r.log.Warn("no handler script", "pin", pin, "path", path)
		return nil
	}

	r.log.Info("running script", "pin", pin, "path", path, "value", value)

	cmd := exec.Command(path, strconv.Itoa(pin), strconv.Itoa(value))
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err = cmd.Run()
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return fmt.Errorf("script %s exited due to signal %d", path, int(ws.Signal()))
		}
		return fmt.Errorf("script %s exited with status %d", path, ee.ExitCode())
	}
	return fmt.Errorf("start script %s: %w", path, err)
}
