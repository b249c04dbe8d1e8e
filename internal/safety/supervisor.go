// Package safety watches for loss of control and brings the droid to a
// safe state. Once tripped it never returns to running; recovery needs a
// process restart.
package safety

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/r2-control/droidctl/internal/config"
	"github.com/r2-control/droidctl/internal/debug"
	"github.com/r2-control/droidctl/internal/drive"
	"github.com/r2-control/droidctl/internal/eventlog"
	"github.com/r2-control/droidctl/internal/logic/motion"
	"github.com/r2-control/droidctl/internal/logic/steering"
	"github.com/r2-control/droidctl/internal/notify"
)

// State of the supervisor.
type State int

const (
	Running State = iota
	Shutdown
)

func (s State) String() string {
	if s == Shutdown {
		return "SHUTDOWN"
	}
	return "RUNNING"
}

// Reason explains a transition to Shutdown.
type Reason string

const (
	ReasonDeviceLost   Reason = "joystick lost"
	ReasonShutdownFlag Reason = "shutdown flag present"
	ReasonEventSource  Reason = "joystick event source failed"
	ReasonSignal       Reason = "terminated by signal"
)

// Config is the supervisor's immutable tuning.
type Config struct {
	Keepalive   time.Duration
	SpeedFactor float64
	SpeedStep   float64
	SpeedMin    float64
	SpeedMax    float64
	Invert      int
	AlertClip   string
}

// Probes are the liveness checks run on every keepalive boundary.
type Probes struct {
	Present      func() bool
	ShutdownFlag func() bool
}

// Actuators are what Safe-Shutdown acts on. Relay may be nil.
type Actuators struct {
	Motion *motion.Controller
	Drive  drive.Backend
	Sink   notify.Sink
	Log    *eventlog.Log
	Relay  func(on bool) error
}

// Supervisor owns the watchdog state.
type Supervisor struct {
	cfg    Config
	probes Probes
	act    Actuators

	lastCommand time.Time
	speed       float64
	state       State
	reason      Reason
}

// New starts a supervisor in Running with lastCommand = now.
func New(cfg Config, probes Probes, act Actuators, now time.Time) *Supervisor {
	if act.Sink == nil {
		act.Sink = notify.Nop{}
	}
	if act.Log == nil {
		act.Log = eventlog.New(nil)
	}
	cfg.SpeedMin = steering.Clamp(cfg.SpeedMin, config.MinSpeedFactor, config.MaxSpeedFactor)
	cfg.SpeedMax = steering.Clamp(cfg.SpeedMax, cfg.SpeedMin, config.MaxSpeedFactor)
	s := &Supervisor{
		cfg:         cfg,
		probes:      probes,
		act:         act,
		lastCommand: now,
		state:       Running,
	}
	s.speed = s.clampSpeed(cfg.SpeedFactor)
	return s
}

// Touch records a received command.
func (s *Supervisor) Touch(now time.Time) {
	s.lastCommand = now
}

// Check runs the liveness probes once more than Keepalive has elapsed
// since the last command or check. It reports the reason to shut down,
// if any. The check itself counts as a command.
func (s *Supervisor) Check(now time.Time) (Reason, bool) {
	if s.state == Shutdown {
		return s.reason, true
	}
	if now.Sub(s.lastCommand) <= s.cfg.Keepalive {
		return "", false
	}
	s.lastCommand = now

	if s.probes.Present != nil && !s.probes.Present() {
		debug.Info("No joystick")
		return ReasonDeviceLost, true
	}
	debug.Verbose("Joystick still there")
	if s.probes.ShutdownFlag != nil && s.probes.ShutdownFlag() {
		debug.Info("Shutdown file is there")
		return ReasonShutdownFlag, true
	}
	return "", false
}

// AdjustSpeed moves the speed factor by steps × SpeedStep, clamped to
// [SpeedMin, SpeedMax] and rounded to two decimals.
func (s *Supervisor) AdjustSpeed(steps int) float64 {
	s.speed = s.clampSpeed(s.speed + float64(steps)*s.cfg.SpeedStep)
	debug.Speed(s.speed)
	return s.speed
}

func (s *Supervisor) clampSpeed(v float64) float64 {
	v = math.Round(v*100) / 100
	return steering.Clamp(v, s.cfg.SpeedMin, s.cfg.SpeedMax)
}

func (s *Supervisor) SpeedFactor() float64 { return s.speed }
func (s *Supervisor) State() State          { return s.state }
func (s *Supervisor) Reason() Reason        { return s.reason }

// DriveMod is speedFactor × invert.
func (s *Supervisor) DriveMod() float64 {
	return s.speed * float64(s.cfg.Invert)
}

// Trip moves to Shutdown and runs Safe-Shutdown. Only the first call has
// any effect; it reports whether this call ran the sequence.
func (s *Supervisor) Trip(ctx context.Context, reason Reason) bool {
	if s.state == Shutdown {
		return false
	}
	s.state = Shutdown
	s.reason = reason
	debug.Summary("Safe-Shutdown: " + string(reason))

	// Notifications must still go out after a cancelled context.
	ctx = context.WithoutCancel(ctx)

	debug.Info("Stopping all motion")
	if s.act.Motion != nil {
		s.act.Motion.Stop(s.DriveMod())
		s.act.Motion.StopDome()
	}

	debug.Info("Disable drives and dome")
	notify.Guarded(ctx, s.act.Sink, notify.BodyServo("ENABLE_DRIVE", 0, 0))
	notify.Guarded(ctx, s.act.Sink, notify.BodyServo("ENABLE_DOME", 0, 0))
	if s.cfg.AlertClip != "" {
		notify.Guarded(ctx, s.act.Sink, notify.Audio(s.cfg.AlertClip))
	}

	if s.act.Drive != nil {
		errs, err := s.act.Drive.QueryErrors()
		switch {
		case errors.Is(err, drive.ErrNotSupported):
		case err != nil:
			debug.Warn("query drive errors: %v", err)
		default:
			debug.Info("Drive errors: %s", errs)
			for _, e := range errs {
				s.act.Log.Printf("Axis%d: %d %d %d", e.Axis, e.Error, e.Motor, e.Controller)
			}
		}
	}

	s.act.Log.Shutdown(string(reason))

	if s.act.Relay != nil {
		if err := s.act.Relay(false); err != nil {
			debug.Warn("drop drive relay: %v", err)
		}
	}
	return true
}
