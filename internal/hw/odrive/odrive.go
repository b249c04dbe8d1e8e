// Package odrive talks to an ODrive motor controller over its ASCII
// protocol on the native USB serial transport.
package odrive

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/r2-control/droidctl/internal/debug"
)

// USB ids used for discovery.
const (
	VendorID  = "1209"
	ProductID = "0D32"
)

// AxisState is a requested_state code.
type AxisState int

const (
	AxisStateIdle       AxisState = 1
	AxisStateClosedLoop AxisState = 8
)

// InputModeVelocity is controller.config.input_mode for velocity passthrough.
const InputModeVelocity = 2

// ErrTimeout is returned when a reply line does not arrive.
var ErrTimeout = errors.New("odrive: read timeout")

const maxLine = 128

// Port is the serial channel. Reads must time out by returning (0, nil)
// or an error, as go.bug.st/serial does with a read timeout set.
type Port interface {
	io.ReadWriter
}

type inputResetter interface {
	ResetInputBuffer() error
}

// Client issues protocol commands. It is not safe for concurrent use;
// the owner of the port is the only writer.
type Client struct {
	port Port
	name string
}

// NewClient wraps an opened port.
func NewClient(port Port, name string) *Client {
	return &Client{port: port, name: name}
}

// AxisErrors holds one axis' latched error registers.
type AxisErrors struct {
	Axis       int
	Error      uint64
	Motor      uint64
	Controller uint64
}

// Clear reports whether no register has a fault bit set.
func (e AxisErrors) Clear() bool {
	return e.Error == 0 && e.Motor == 0 && e.Controller == 0
}

func (e AxisErrors) String() string {
	return fmt.Sprintf("Axis%d: %d %d %d", e.Axis, e.Error, e.Motor, e.Controller)
}

// Configure prepares an axis for velocity teleoperation with the hardware
// watchdog armed.
func (c *Client) Configure(axis int, watchdogTimeout time.Duration) error {
	prefix := axisPrefix(axis)
	steps := []struct{ prop, value string }{
		{prefix + ".config.watchdog_timeout", strconv.FormatFloat(watchdogTimeout.Seconds(), 'f', 3, 64)},
		{prefix + ".controller.config.input_mode", strconv.Itoa(InputModeVelocity)},
		{prefix + ".config.enable_watchdog", "1"},
	}
	for _, s := range steps {
		if err := c.Write(s.prop, s.value); err != nil {
			return err
		}
	}
	return nil
}

// Write sets a property: "w <prop> <value>".
func (c *Client) Write(prop, value string) error {
	return c.send(fmt.Sprintf("w %s %s\n", prop, value))
}

// Read fetches a property: "r <prop>", returning the reply line.
func (c *Client) Read(prop string) (string, error) {
	if r, ok := c.port.(inputResetter); ok {
		_ = r.ResetInputBuffer()
	}
	if err := c.send(fmt.Sprintf("r %s\n", prop)); err != nil {
		return "", err
	}
	line, err := c.readLine()
	if err != nil {
		return "", fmt.Errorf("odrive %s read %s: %w", c.name, prop, err)
	}
	if strings.HasPrefix(line, "invalid") || strings.HasPrefix(line, "unknown") {
		return "", fmt.Errorf("odrive %s read %s: %s", c.name, prop, line)
	}
	return line, nil
}

// ReadUint reads an unsigned integer property such as an error register.
func (c *Client) ReadUint(prop string) (uint64, error) {
	line, err := c.Read(prop)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("odrive %s parse %s=%q: %w", c.name, prop, line, err)
	}
	return v, nil
}

// SetRequestedState requests an axis state.
func (c *Client) SetRequestedState(axis int, state AxisState) error {
	return c.Write(axisPrefix(axis)+".requested_state", strconv.Itoa(int(state)))
}

// FeedWatchdog resets the axis watchdog timer: "u <axis>".
func (c *Client) FeedWatchdog(axis int) error {
	return c.send(fmt.Sprintf("u %d\n", axis))
}

// SetVelocity sets the velocity setpoint: "v <axis> <vel> <torque_ff>".
func (c *Client) SetVelocity(axis int, vel float64) error {
	return c.send(fmt.Sprintf("v %d %.4f 0\n", axis, vel))
}

// ClearErrors clears latched errors on all axes: "sc".
func (c *Client) ClearErrors() error {
	return c.send("sc\n")
}

// Errors reads the axis, motor and controller error registers.
func (c *Client) Errors(axis int) (AxisErrors, error) {
	prefix := axisPrefix(axis)
	e := AxisErrors{Axis: axis}
	var err error
	if e.Error, err = c.ReadUint(prefix + ".error"); err != nil {
		return e, err
	}
	if e.Motor, err = c.ReadUint(prefix + ".motor.error"); err != nil {
		return e, err
	}
	if e.Controller, err = c.ReadUint(prefix + ".controller.error"); err != nil {
		return e, err
	}
	return e, nil
}

func (c *Client) send(cmd string) error {
	debug.Frame(c.name, []byte(cmd))
	if _, err := io.WriteString(c.port, cmd); err != nil {
		return fmt.Errorf("odrive %s write: %w", c.name, err)
	}
	return nil
}

// readLine reads one reply byte by byte; a zero-length read is a timeout.
func (c *Client) readLine() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for sb.Len() < maxLine {
		n, err := c.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", ErrTimeout
		}
		switch buf[0] {
		case '\n':
			return strings.TrimSpace(sb.String()), nil
		case '\r':
		default:
			sb.WriteByte(buf[0])
		}
	}
	return "", fmt.Errorf("odrive: reply longer than %d bytes", maxLine)
}

func axisPrefix(axis int) string {
	return "axis" + strconv.Itoa(axis)
}
