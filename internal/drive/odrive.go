package drive

import (
	"fmt"
	"io"
	"time"

	"github.com/r2-control/droidctl/internal/debug"
	"github.com/r2-control/droidctl/internal/hw/odrive"
)

var odriveAxes = [2]int{0, 1}

// ODrive is the stateful velocity-mode backend. Its hardware watchdog cuts
// motor power unless FeedWatchdog is called within WatchdogTimeout.
type ODrive struct {
	client *odrive.Client
	closer io.Closer
	maxVel float64
}

// NewODrive wraps an opened port and brings both axes into closed-loop
// velocity control with the watchdog armed. Errors latched by a previous
// run are flushed first: the board ignores a closed-loop request while an
// axis error is set.
func NewODrive(port io.ReadWriteCloser, name string, maxVel float64, watchdogTimeout time.Duration) (*ODrive, error) {
	o := &ODrive{
		client: odrive.NewClient(port, name),
		closer: port,
		maxVel: maxVel,
	}
	o.FeedWatchdog()
	o.ClearErrors()
	o.ClearErrors()
	for _, axis := range odriveAxes {
		if err := o.client.Configure(axis, watchdogTimeout); err != nil {
			return nil, fmt.Errorf("configure odrive axis%d: %w", axis, err)
		}
	}
	for _, axis := range odriveAxes {
		if err := o.client.SetRequestedState(axis, odrive.AxisStateClosedLoop); err != nil {
			return nil, fmt.Errorf("enable odrive axis%d: %w", axis, err)
		}
	}
	return o, nil
}

func (o *ODrive) Kind() Kind { return KindODrive }

// SendMotorCommand writes a velocity setpoint of power × maxVel.
func (o *ODrive) SendMotorCommand(motor int, power float64) {
	if motor < 0 || motor >= len(odriveAxes) {
		debug.Warn("odrive: invalid motor %d", motor)
		return
	}
	if err := o.client.SetVelocity(odriveAxes[motor], power*o.maxVel); err != nil {
		debug.Error(err)
	}
}

func (o *ODrive) FeedWatchdog() {
	for _, axis := range odriveAxes {
		if err := o.client.FeedWatchdog(axis); err != nil {
			debug.Error(err)
		}
	}
}

func (o *ODrive) ClearErrors() {
	if err := o.client.ClearErrors(); err != nil {
		debug.Error(err)
	}
}

// SetEnabled(true) requests closed loop, then feeds and clears errors
// twice: latched faults need a second clear to flush. SetEnabled(false)
// idles both axes.
func (o *ODrive) SetEnabled(enabled bool) {
	state := odrive.AxisStateIdle
	if enabled {
		state = odrive.AxisStateClosedLoop
	}
	for _, axis := range odriveAxes {
		if err := o.client.SetRequestedState(axis, state); err != nil {
			debug.Error(err)
		}
	}
	if !enabled {
		return
	}
	for i := 0; i < 2; i++ {
		o.FeedWatchdog()
		o.ClearErrors()
	}
}

func (o *ODrive) QueryErrors() (ErrorSet, error) {
	set := make(ErrorSet, 0, len(odriveAxes))
	for _, axis := range odriveAxes {
		e, err := o.client.Errors(axis)
		if err != nil {
			return set, err
		}
		set = append(set, AxisErrors{
			Axis:       e.Axis,
			Error:      e.Error,
			Motor:      e.Motor,
			Controller: e.Controller,
		})
	}
	return set, nil
}

// Close zeroes both setpoints, idles the axes and closes the port.
func (o *ODrive) Close() error {
	for i := range odriveAxes {
		o.SendMotorCommand(i, 0)
	}
	o.SetEnabled(false)
	return o.closer.Close()
}

// Release closes the port without writing to the board.
func (o *ODrive) Release() error { return o.closer.Close() }
