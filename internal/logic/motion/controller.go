package motion

import (
	"github.com/r2-control/droidctl/internal/debug"
	"github.com/r2-control/droidctl/internal/drive"
	"github.com/r2-control/droidctl/internal/logic/steering"
)

// Dome commands are kept just inside full scale.
const domeLimit = 0.99

// Controller sits between the control loop and the motor backends: it
// mixes stick input and sends the result to the drive and dome.
type Controller struct {
	drive drive.Backend
	dome  drive.Dome
}

func NewController(d drive.Backend, dome drive.Dome) *Controller {
	return &Controller{
		drive: d,
		dome:  dome,
	}
}

// Drive mixes turn/throttle and sends left to motor 0, right to motor 1.
func (c *Controller) Drive(turn, throttle, driveMod float64) steering.Output {
	out := steering.Mix(turn, throttle, driveMod)
	debug.Motors(out.Left, out.Right)
	c.drive.SendMotorCommand(0, out.Left)
	c.drive.SendMotorCommand(1, out.Right)
	return out
}

// Stop sends the mixed zero input to both drive motors.
func (c *Controller) Stop(driveMod float64) steering.Output {
	return c.Drive(0, 0, driveMod)
}

// Dome sends a dome rotation power, clamped to ±0.99.
func (c *Controller) Dome(power float64) {
	c.dome.Drive(steering.Clamp(power, -domeLimit, domeLimit))
}

// StopDome zeroes the dome motor.
func (c *Controller) StopDome() {
	c.dome.Drive(0)
}
