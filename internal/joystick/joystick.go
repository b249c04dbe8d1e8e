// Package joystick turns a game controller into axis and button events
// for the control loop.
package joystick

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/r2-control/droidctl/internal/debug"
)

var (
	// ErrDeviceClosed is returned by Drain once the event source is gone.
	ErrDeviceClosed = errors.New("joystick event source closed")
	// ErrNoDevice is returned by ResolveDevice when nothing matches.
	ErrNoDevice = errors.New("no joystick device")
)

// EventKind distinguishes axis motion from button transitions.
type EventKind int

const (
	AxisMotion EventKind = iota
	ButtonDown
	ButtonUp
)

func (k EventKind) String() string {
	switch k {
	case AxisMotion:
		return "axis"
	case ButtonDown:
		return "down"
	case ButtonUp:
		return "up"
	}
	return "unknown"
}

// Event is one input transition. Value is in [-1, 1] for axis events.
// For button events Button is the bit index and State the snapshot of
// every button right after the transition.
type Event struct {
	Kind   EventKind
	Axis   int
	Value  float64
	Button int
	State  []bool
}

// Source is a polled controller.
type Source interface {
	// Present reports whether the device node still exists.
	Present() bool
	// Drain returns every event queued since the last call without blocking.
	Drain() ([]Event, error)
	Close() error
}

// PathExists reports whether a device node is present.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Counter returns the number of attached controllers matching glob.
func Counter(glob string) func() int {
	return func() int {
		matches, err := filepath.Glob(glob)
		if err != nil {
			return 0
		}
		return len(matches)
	}
}

// ResolveDevice returns device when set, otherwise the first node matching
// glob. The by-id link is kept so presence checks follow the controller.
func ResolveDevice(device, glob string) (string, error) {
	if device != "" {
		return device, nil
	}
	matches, err := filepath.Glob(glob)
	if err != nil {
		return "", fmt.Errorf("joystick glob %q: %w", glob, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w matches %q", ErrNoDevice, glob)
	}
	return matches[0], nil
}

// WaitForDevice blocks until count reports at least one controller,
// polling every interval. It returns ctx.Err() when cancelled.
func WaitForDevice(ctx context.Context, count func() int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n := count()
		if n > 0 {
			debug.Info("Joystick found (count %d)", n)
			return nil
		}
		debug.Info("Waiting for joystick... (count %d)", n)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
