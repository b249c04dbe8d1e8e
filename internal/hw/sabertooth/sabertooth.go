// Package sabertooth speaks Dimension Engineering packet serial to
// Sabertooth dual and SyRen single channel motor controllers.
package sabertooth

import (
	"fmt"
	"io"
	"math"

	"github.com/r2-control/droidctl/internal/debug"
)

// Packet serial commands.
const (
	cmdMotor1Forward  = 0
	cmdMotor1Backward = 1
	cmdMotor2Forward  = 4
	cmdMotor2Backward = 5

	bauding  = 0xaa
	maxValue = 127
)

// Packet builds the 4-byte frame: address, command, value, checksum.
func Packet(address, command, value uint8) []byte {
	return []byte{address, command, value, (address + command + value) & 0x7f}
}

// Controller is one addressed controller on a serial line.
type Controller struct {
	w       io.Writer
	address uint8
	name    string
}

// NewController returns a controller writing to w at the given address (128-135).
func NewController(w io.Writer, address int, name string) *Controller {
	return &Controller{w: w, address: uint8(address), name: name}
}

// Bauding sends the autobaud byte; required once after power-up.
func (c *Controller) Bauding() error {
	return c.write([]byte{bauding})
}

// Motor commands motor 1 or 2 with power in [-1, 1].
func (c *Controller) Motor(motor int, power float64) error {
	fwd, back := uint8(cmdMotor1Forward), uint8(cmdMotor1Backward)
	switch motor {
	case 1:
	case 2:
		fwd, back = cmdMotor2Forward, cmdMotor2Backward
	default:
		return fmt.Errorf("sabertooth: invalid motor %d", motor)
	}
	cmd, value := fwd, scale(power)
	if power < 0 {
		cmd = back
	}
	return c.write(Packet(c.address, cmd, value))
}

// Drive commands a single-channel SyRen (motor 1 commands).
func (c *Controller) Drive(power float64) error {
	return c.Motor(1, power)
}

// Stop zeroes both motor channels.
func (c *Controller) Stop() error {
	if err := c.Motor(1, 0); err != nil {
		return err
	}
	return c.Motor(2, 0)
}

func (c *Controller) write(frame []byte) error {
	debug.Frame(c.name, frame)
	if _, err := c.w.Write(frame); err != nil {
		return fmt.Errorf("sabertooth %s write: %w", c.name, err)
	}
	return nil
}

// scale maps |power| in [0, 1] to 0..127; out-of-range and NaN clamp.
func scale(power float64) uint8 {
	p := math.Abs(power)
	if math.IsNaN(p) {
		return 0
	}
	if p > 1 {
		p = 1
	}
	return uint8(math.Round(p * maxValue))
}
