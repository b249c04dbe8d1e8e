package drive

import (
	"fmt"
	"io"

	"github.com/r2-control/droidctl/internal/debug"
	"github.com/r2-control/droidctl/internal/hw/sabertooth"
)

// Sabertooth is the stateless packet serial backend. It has no watchdog
// or error registers and is always enabled.
type Sabertooth struct {
	ctrl   *sabertooth.Controller
	closer io.Closer
}

// NewSabertooth wraps an opened serial channel and sends the autobaud byte.
func NewSabertooth(port io.ReadWriteCloser, address int, name string) (*Sabertooth, error) {
	ctrl := sabertooth.NewController(port, address, name)
	if err := ctrl.Bauding(); err != nil {
		return nil, fmt.Errorf("sabertooth bauding: %w", err)
	}
	return &Sabertooth{ctrl: ctrl, closer: port}, nil
}

func (s *Sabertooth) Kind() Kind { return KindSabertooth }

// SendMotorCommand maps motor 0/1 onto Sabertooth channels 1/2.
func (s *Sabertooth) SendMotorCommand(motor int, power float64) {
	if err := s.ctrl.Motor(motor+1, power); err != nil {
		debug.Error(err)
	}
}

func (s *Sabertooth) FeedWatchdog()   {}
func (s *Sabertooth) ClearErrors()    {}
func (s *Sabertooth) SetEnabled(bool) {}

func (s *Sabertooth) QueryErrors() (ErrorSet, error) {
	return nil, ErrNotSupported
}

// Close stops both channels and closes the port.
func (s *Sabertooth) Close() error {
	if err := s.ctrl.Stop(); err != nil {
		debug.Error(err)
	}
	return s.closer.Close()
}

// Release closes the port without writing to the controller.
func (s *Sabertooth) Release() error { return s.closer.Close() }

// Syren is the packet serial dome controller.
type Syren struct {
	ctrl   *sabertooth.Controller
	closer io.Closer
}

// NewSyren wraps an opened serial channel and sends the autobaud byte.
func NewSyren(port io.ReadWriteCloser, address int, name string) (*Syren, error) {
	ctrl := sabertooth.NewController(port, address, name)
	if err := ctrl.Bauding(); err != nil {
		return nil, fmt.Errorf("syren bauding: %w", err)
	}
	return &Syren{ctrl: ctrl, closer: port}, nil
}

func (s *Syren) Drive(power float64) {
	if err := s.ctrl.Drive(power); err != nil {
		debug.Error(err)
	}
}

func (s *Syren) Close() error {
	if err := s.ctrl.Drive(0); err != nil {
		debug.Error(err)
	}
	return s.closer.Close()
}

func (s *Syren) Release() error { return s.closer.Close() }
