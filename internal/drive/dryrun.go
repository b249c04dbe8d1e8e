package drive

import "github.com/r2-control/droidctl/internal/debug"

// DryRun logs commands instead of sending them. It reports the configured
// kind so kind-specific gestures behave as on the real droid.
type DryRun struct {
	kind Kind
}

// NewDryRun returns a logging backend impersonating kind.
func NewDryRun(kind Kind) *DryRun {
	return &DryRun{kind: kind}
}

func (d *DryRun) Kind() Kind { return d.kind }

func (d *DryRun) SendMotorCommand(motor int, power float64) {
	debug.Trace("dry-run %s motor %d = %.4f", d.kind, motor, power)
}

func (d *DryRun) FeedWatchdog() {}
func (d *DryRun) ClearErrors()  {}

func (d *DryRun) SetEnabled(enabled bool) {
	debug.Live("dry-run %s enabled=%v", d.kind, enabled)
}

func (d *DryRun) QueryErrors() (ErrorSet, error) {
	return nil, ErrNotSupported
}

func (d *DryRun) Close() error { return nil }

// DryRunDome logs dome commands.
type DryRunDome struct{}

func (DryRunDome) Drive(power float64) {
	debug.Trace("dry-run dome = %.4f", power)
}

func (DryRunDome) Close() error { return nil }
