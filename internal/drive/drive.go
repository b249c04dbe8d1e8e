// Package drive abstracts the main drive motor controllers. A backend is
// selected once at startup and owns its serial channel for the process
// lifetime. Command failures are logged and dropped here; the control
// loop re-sends level commands every tick.
package drive

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/r2-control/droidctl/internal/config"
)

// Kind identifies a backend protocol.
type Kind int

const (
	KindSabertooth Kind = iota
	KindODrive
)

func (k Kind) String() string {
	switch k {
	case KindSabertooth:
		return config.DriveSabertooth
	case KindODrive:
		return config.DriveODrive
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a drive.type config value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case config.DriveSabertooth:
		return KindSabertooth, nil
	case config.DriveODrive:
		return KindODrive, nil
	}
	return 0, fmt.Errorf("drive type %q: %w", s, config.ErrUnknownDriveType)
}

// ErrNotSupported is returned by QueryErrors on backends without error registers.
var ErrNotSupported = errors.New("not supported by backend")

// AxisErrors holds one motor axis' error registers.
type AxisErrors struct {
	Axis       int
	Error      uint64
	Motor      uint64
	Controller uint64
}

// ErrorSet is the error register snapshot of every axis.
type ErrorSet []AxisErrors

func (s ErrorSet) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = fmt.Sprintf("Axis%d: %d %d %d", e.Axis, e.Error, e.Motor, e.Controller)
	}
	return strings.Join(parts, "; ")
}

// Backend is the capability set every drive protocol provides.
// Motor 0 is the left side, motor 1 the right side.
type Backend interface {
	Kind() Kind
	SendMotorCommand(motor int, power float64)
	FeedWatchdog()
	ClearErrors()
	SetEnabled(enabled bool)
	QueryErrors() (ErrorSet, error)
	Close() error
}

// Dome drives the single-channel dome rotation motor.
type Dome interface {
	Drive(power float64)
	Close() error
}

// Releaser is implemented by controllers that can drop their port without
// sending further motor frames.
type Releaser interface {
	Release() error
}

// Release closes c without commanding motors when c supports it. It is
// used once Safe-Shutdown has already stopped everything.
func Release(c io.Closer) error {
	if r, ok := c.(Releaser); ok {
		return r.Release()
	}
	return c.Close()
}
