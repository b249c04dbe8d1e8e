// Package serialbus opens the serial channels used by the motor controllers
// and locates USB devices by vendor/product id.
package serialbus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/r2-control/droidctl/internal/debug"
)

// ErrNotFound is returned by Find when no matching USB device is attached.
var ErrNotFound = errors.New("usb serial device not found")

// Config describes one serial channel.
type Config struct {
	Name        string        // e.g. /dev/ttyACM0
	Baud        int           // e.g. 9600
	ReadTimeout time.Duration // 0 = blocking reads
}

// Open opens the port with 8N1 framing.
func Open(cfg Config) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Name, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Name, err)
		}
	}
	debug.Verbose("Opened serial %s @ %d baud", cfg.Name, cfg.Baud)
	return port, nil
}

// Lister returns the attached serial ports; enumerator.GetDetailedPortsList
// in production.
type Lister func() ([]*enumerator.PortDetails, error)

// Find returns the device name of the first USB serial port that matches
// vid and pid (hex, case-insensitive).
func Find(list Lister, vid, pid string) (string, error) {
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	ports, err := list()
	if err != nil {
		return "", fmt.Errorf("enumerate serial ports: %w", err)
	}
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		debug.Trace("Serial port %s usb=%s:%s serial=%s", p.Name, p.VID, p.PID, p.SerialNumber)
		if strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%s:%s: %w", vid, pid, ErrNotFound)
}
