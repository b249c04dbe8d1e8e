package gpio

import "testing"

type recordingDriver struct {
	setups []int
	writes []pinWrite
}

type pinWrite struct {
	pin   int
	level Level
}

func (d *recordingDriver) SetupPin(pin int, mode PinMode) error {
	d.setups = append(d.setups, pin)
	return nil
}

func (d *recordingDriver) WritePin(pin int, level Level) error {
	d.writes = append(d.writes, pinWrite{pin, level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (Level, error) { return Low, nil }
func (d *recordingDriver) Close() error                   { return nil }

func TestPins_SetupAllAsOutputs(t *testing.T) {
	drv := &recordingDriver{}
	if _, err := NewPins(drv, map[string]int{"drive_relay": 17, "dome_relay": 27}); err != nil {
		t.Fatalf("NewPins: %v", err)
	}
	// sorted by name: dome_relay, drive_relay
	if len(drv.setups) != 2 || drv.setups[0] != 27 || drv.setups[1] != 17 {
		t.Errorf("setups = %v, want [27 17]", drv.setups)
	}
}

func TestPins_Set(t *testing.T) {
	drv := &recordingDriver{}
	p, err := NewPins(drv, map[string]int{"drive_relay": 17})
	if err != nil {
		t.Fatalf("NewPins: %v", err)
	}
	if err := p.Set("drive_relay", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := p.Set("drive_relay", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	want := []pinWrite{{17, High}, {17, Low}}
	if len(drv.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", drv.writes, want)
	}
	for i := range want {
		if drv.writes[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, drv.writes[i], want[i])
		}
	}
	if !p.Has("drive_relay") || p.Has("nope") {
		t.Error("Has reports wrong membership")
	}
}

func TestPins_SetUnknown(t *testing.T) {
	p, _ := NewPins(&MockDriver{}, nil)
	if err := p.Set("missing", true); err == nil {
		t.Error("expected error for unknown pin, got nil")
	}
}
