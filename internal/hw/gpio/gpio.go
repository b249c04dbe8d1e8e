package gpio

import (
	"fmt"
	"sort"

	"github.com/r2-control/droidctl/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MockDriver is a test implementation that simply logs actions.
type MockDriver struct{}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return Low, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}

// Pins exposes output pins by name, the way the rest of the droid
// addresses them ("set named pin to boolean state").
type Pins struct {
	drv   Driver
	names map[string]int
}

// NewPins configures every named pin as an output.
func NewPins(drv Driver, names map[string]int) (*Pins, error) {
	p := &Pins{drv: drv, names: make(map[string]int, len(names))}
	for _, name := range sortedNames(names) {
		pin := names[name]
		if err := drv.SetupPin(pin, Output); err != nil {
			return nil, fmt.Errorf("setup pin %s (%d): %w", name, pin, err)
		}
		p.names[name] = pin
	}
	return p, nil
}

// Set drives the named pin high (true) or low (false).
func (p *Pins) Set(name string, on bool) error {
	pin, ok := p.names[name]
	if !ok {
		return fmt.Errorf("unknown gpio pin %q", name)
	}
	debug.Trace("GPIO %s (pin %d) -> %v", name, pin, on)
	return p.drv.WritePin(pin, Level(on))
}

// Has reports whether name is a configured pin.
func (p *Pins) Has(name string) bool {
	_, ok := p.names[name]
	return ok
}

func sortedNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
