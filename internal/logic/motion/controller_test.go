package motion

import (
	"math"
	"testing"

	"github.com/r2-control/droidctl/internal/drive"
)

type motorCall struct {
	motor int
	power float64
}

type recordingBackend struct {
	drive.DryRun
	calls []motorCall
}

func (b *recordingBackend) SendMotorCommand(motor int, power float64) {
	b.calls = append(b.calls, motorCall{motor, power})
}

type recordingDome struct {
	powers []float64
}

func (d *recordingDome) Drive(power float64) { d.powers = append(d.powers, power) }
func (d *recordingDome) Close() error        { return nil }

func TestController_DriveSendsLeftThenRight(t *testing.T) {
	b := &recordingBackend{}
	ctrl := NewController(b, &recordingDome{})

	out := ctrl.Drive(1, 0, 0.35)

	if len(b.calls) != 2 {
		t.Fatalf("calls = %v, want 2", b.calls)
	}
	if b.calls[0].motor != 0 || b.calls[1].motor != 1 {
		t.Errorf("motor order = %v, want [0 1]", b.calls)
	}
	if b.calls[0].power != out.Left || b.calls[1].power != out.Right {
		t.Errorf("sent %v, mixed %+v", b.calls, out)
	}
	if math.Abs(out.Left-0.35) > 1e-9 || math.Abs(out.Right+0.35) > 1e-9 {
		t.Errorf("out = %+v, want (0.35, -0.35)", out)
	}
}

func TestController_StopSendsZero(t *testing.T) {
	b := &recordingBackend{}
	ctrl := NewController(b, &recordingDome{})

	ctrl.Stop(-0.35)

	for _, c := range b.calls {
		if c.power != 0 {
			t.Errorf("motor %d got %v, want 0", c.motor, c.power)
		}
	}
	if len(b.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(b.calls))
	}
}

func TestController_DomeClamped(t *testing.T) {
	d := &recordingDome{}
	ctrl := NewController(&recordingBackend{}, d)

	ctrl.Dome(1)
	ctrl.Dome(-1)
	ctrl.Dome(0.4)
	ctrl.StopDome()

	want := []float64{0.99, -0.99, 0.4, 0}
	if len(d.powers) != len(want) {
		t.Fatalf("powers = %v, want %v", d.powers, want)
	}
	for i := range want {
		if d.powers[i] != want[i] {
			t.Errorf("power %d = %v, want %v", i, d.powers[i], want[i])
		}
	}
}
