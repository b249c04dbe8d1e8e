// Package teleop runs the fixed-period control loop: stick state is
// re-mixed and re-sent every tick, the safety supervisor is checked, then
// pending joystick events are applied.
package teleop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/r2-control/droidctl/internal/combo"
	"github.com/r2-control/droidctl/internal/config"
	"github.com/r2-control/droidctl/internal/debug"
	"github.com/r2-control/droidctl/internal/drive"
	"github.com/r2-control/droidctl/internal/eventlog"
	"github.com/r2-control/droidctl/internal/joystick"
	"github.com/r2-control/droidctl/internal/logic/motion"
	"github.com/r2-control/droidctl/internal/logic/steering"
	"github.com/r2-control/droidctl/internal/notify"
	"github.com/r2-control/droidctl/internal/safety"
)

// AxisState is the latest stick position, each value in [-1, 1].
type AxisState struct {
	Throttle    float64
	Turn        float64
	DomeTurn    float64
	LastUpdated time.Time
}

// Snapshot is the loop state published after every tick.
type Snapshot struct {
	Time        time.Time `json:"time"`
	Backend     string    `json:"backend"`
	State       string    `json:"state"`
	Reason      string    `json:"reason,omitempty"`
	Throttle    float64   `json:"throttle"`
	Turn        float64   `json:"turn"`
	Dome        float64   `json:"dome"`
	Left        float64   `json:"left"`
	Right       float64   `json:"right"`
	SpeedFactor float64   `json:"speed_factor"`
	DriveMod    float64   `json:"drive_mod"`
	LastCombo   string    `json:"last_combo,omitempty"`
	Ticks       uint64    `json:"ticks"`
}

// Options configures a Loop.
type Options struct {
	Axis          config.AxisConfig
	Period        time.Duration
	Gestures      combo.Gestures
	SpeedUpClip   string
	SpeedDownClip string
}

// OptionsFromConfig extracts the loop options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Axis:          cfg.Axis,
		Period:        cfg.LoopPeriod(),
		Gestures:      combo.GesturesFromConfig(cfg.Gestures),
		SpeedUpClip:   cfg.Gestures.SpeedUpClip,
		SpeedDownClip: cfg.Gestures.SpeedDownClip,
	}
}

// Deps are the collaborators the loop drives. Sink and Log may be nil.
type Deps struct {
	Joystick   joystick.Source
	Motion     *motion.Controller
	Drive      drive.Backend
	Table      *combo.Table
	Sink       notify.Sink
	Log        *eventlog.Log
	Supervisor *safety.Supervisor
}

// Loop is single-threaded: only the goroutine calling Run or Tick may
// touch the backends. Snapshot is safe to call from anywhere.
type Loop struct {
	opts Options
	deps Deps

	axes     AxisState
	out      steering.Output
	previous string
	ticks    uint64

	snap  atomic.Pointer[Snapshot]
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a loop. It does not touch any hardware.
func New(opts Options, deps Deps) *Loop {
	if deps.Sink == nil {
		deps.Sink = notify.Nop{}
	}
	if deps.Log == nil {
		deps.Log = eventlog.New(nil)
	}
	l := &Loop{
		opts:  opts,
		deps:  deps,
		now:   time.Now,
		sleep: sleepCtx,
	}
	l.publish(time.Time{})
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run ticks every Period until the supervisor shuts the droid down or ctx
// is cancelled. Both paths end with Safe-Shutdown having run exactly once.
func (l *Loop) Run(ctx context.Context) safety.Reason {
	debug.Info("Control loop running (period %s, backend %s)", l.opts.Period, l.deps.Drive.Kind())
	l.feedWatchdog()
	for {
		if err := l.sleep(ctx, l.opts.Period); err != nil {
			l.deps.Supervisor.Trip(ctx, safety.ReasonSignal)
			l.publish(l.now())
			return l.deps.Supervisor.Reason()
		}
		if !l.Tick(ctx, l.now()) {
			debug.Info("Exited main loop")
			return l.deps.Supervisor.Reason()
		}
	}
}

// feedWatchdog keeps the ODrive hardware watchdog from cutting power.
func (l *Loop) feedWatchdog() {
	if l.deps.Drive.Kind() == drive.KindODrive {
		l.deps.Drive.FeedWatchdog()
	}
}

// Tick runs one iteration and reports whether the loop should continue.
func (l *Loop) Tick(ctx context.Context, now time.Time) bool {
	sup := l.deps.Supervisor
	if sup.State() == safety.Shutdown {
		return false
	}
	l.ticks++

	// Level driven: the current stick position is sent every tick.
	l.out = l.deps.Motion.Drive(l.axes.Turn, l.axes.Throttle, sup.DriveMod())
	l.feedWatchdog()

	if reason, trip := sup.Check(now); trip {
		sup.Trip(ctx, reason)
		l.publish(now)
		return false
	}

	events, err := l.deps.Joystick.Drain()
	if err != nil {
		if !errors.Is(err, joystick.ErrDeviceClosed) {
			debug.Error(err)
		}
		debug.Info("Something went wrong reading the joystick")
		sup.Trip(ctx, safety.ReasonEventSource)
		l.publish(now)
		return false
	}
	for _, ev := range events {
		switch ev.Kind {
		case joystick.AxisMotion:
			l.onAxis(ev, now)
		case joystick.ButtonDown:
			l.onButtonDown(ctx, combo.Bitmask(ev.State))
		case joystick.ButtonUp:
			l.onButtonUp(ctx)
		}
	}
	l.publish(now)
	return true
}

func (l *Loop) onAxis(ev joystick.Event, now time.Time) {
	v := steering.Clamp(ev.Value, -1, 1)
	switch ev.Axis {
	case l.opts.Axis.Drive:
		debug.Verbose("Value (Drive): %.4f : Speed Factor : %.2f", v, l.deps.Supervisor.SpeedFactor())
		l.axes.Throttle = v
	case l.opts.Axis.Turn:
		debug.Axis("Steer", v)
		l.axes.Turn = v
	case l.opts.Axis.Dome:
		debug.Axis("Dome", v)
		l.axes.DomeTurn = v
		l.deps.Log.Printf("Dome : %v", v)
		l.deps.Motion.Dome(v)
	default:
		return
	}
	l.axes.LastUpdated = now
	l.deps.Supervisor.Touch(now)
}

func (l *Loop) onButtonDown(ctx context.Context, mask string) {
	debug.Combo("pressed", mask)
	l.previous = mask

	sup := l.deps.Supervisor
	switch l.opts.Gestures.Classify(mask, l.deps.Drive.Kind() == drive.KindODrive) {
	case combo.GestureSpeedUp:
		f := sup.AdjustSpeed(1)
		l.deps.Log.Printf("Speed Increase : %.2f", f)
		notify.Guarded(ctx, l.deps.Sink, audioPath(l.opts.SpeedUpClip))
		return
	case combo.GestureSpeedDown:
		f := sup.AdjustSpeed(-1)
		l.deps.Log.Printf("Speed Decrease : %.2f", f)
		notify.Guarded(ctx, l.deps.Sink, audioPath(l.opts.SpeedDownClip))
		return
	case combo.GestureDriveDisable:
		debug.Live("Disable ODrive")
		l.deps.Drive.SetEnabled(false)
		l.deps.Log.Printf("Drives Disabled")
		return
	case combo.GestureDriveEnable:
		debug.Live("Enable ODrive")
		l.deps.Drive.SetEnabled(true)
		l.deps.Log.Printf("Drives Enabled")
		return
	}

	a, ok := l.deps.Table.Resolve(mask)
	if !ok {
		debug.Verbose("No combo (pressed)")
		return
	}
	l.deps.Log.Printf("Button Down event : %s,%s", mask, a.Press)
	notify.Guarded(ctx, l.deps.Sink, a.Press)
}

func (l *Loop) onButtonUp(ctx context.Context) {
	mask := l.previous
	l.previous = ""
	debug.Combo("released", mask)

	if l.opts.Gestures.Classify(mask, l.deps.Drive.Kind() == drive.KindODrive) != combo.GestureNone {
		return
	}
	a, ok := l.deps.Table.Resolve(mask)
	if !ok {
		debug.Verbose("No combo (released)")
		return
	}
	l.deps.Log.Printf("Button Up event : %s,%s", mask, a.Release)
	notify.Guarded(ctx, l.deps.Sink, a.Release)
}

func audioPath(clip string) string {
	if clip == "" {
		return ""
	}
	return notify.Audio(clip)
}

func (l *Loop) publish(now time.Time) {
	sup := l.deps.Supervisor
	s := &Snapshot{
		Time:      now,
		Throttle:  l.axes.Throttle,
		Turn:      l.axes.Turn,
		Dome:      l.axes.DomeTurn,
		Left:      l.out.Left,
		Right:     l.out.Right,
		LastCombo: l.previous,
		Ticks:     l.ticks,
	}
	if l.deps.Drive != nil {
		s.Backend = l.deps.Drive.Kind().String()
	}
	if sup != nil {
		s.State = sup.State().String()
		s.Reason = string(sup.Reason())
		s.SpeedFactor = sup.SpeedFactor()
		s.DriveMod = sup.DriveMod()
	}
	l.snap.Store(s)
}

// Snapshot returns the state after the most recent tick.
func (l *Loop) Snapshot() Snapshot {
	return *l.snap.Load()
}

// Axes returns the current stick state. Loop goroutine only.
func (l *Loop) Axes() AxisState {
	return l.axes
}
