package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig creates a temporary config file with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "droidctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
defaults:
  log_file: "/tmp/ps3.log"
  keepalive: 0.5
  speed_fac: 0.4
  invert: -1
  loop_period_ms: 10
  debug_level: 0
  dry_run: true
drive:
  type: "ODrive"
  max_vel: 3
  watchdog_timeout: 0.5
dome:
  port: "/dev/ttyUSB1"
  address: 130
axis:
  drive: 1
  turn: 0
  dome: 2
joystick:
  device: "/dev/input/event3"
  buttons: [304, 305, 307, 308]
gpio:
  mock: true
  pins:
    drive_relay: 17
safety:
  relay: drive_relay
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Drive.Type != DriveODrive {
		t.Errorf("drive.type = %q, want %q", cfg.Drive.Type, DriveODrive)
	}
	if cfg.Drive.MaxVel != 3 {
		t.Errorf("drive.max_vel = %v, want 3", cfg.Drive.MaxVel)
	}
	if cfg.Defaults.Invert != -1 {
		t.Errorf("invert = %d, want -1", cfg.Defaults.Invert)
	}
	if cfg.Defaults.SpeedFactor != 0.4 {
		t.Errorf("speed_fac = %v, want 0.4", cfg.Defaults.SpeedFactor)
	}
	if cfg.Keepalive() != 500*time.Millisecond {
		t.Errorf("Keepalive() = %v, want 500ms", cfg.Keepalive())
	}
	if cfg.LoopPeriod() != 10*time.Millisecond {
		t.Errorf("LoopPeriod() = %v, want 10ms", cfg.LoopPeriod())
	}
	if cfg.Dome.Address != 130 {
		t.Errorf("dome.address = %d, want 130", cfg.Dome.Address)
	}
	if len(cfg.Joystick.Buttons) != 4 || cfg.Joystick.Buttons[2] != 307 {
		t.Errorf("joystick.buttons = %v", cfg.Joystick.Buttons)
	}
	if cfg.GPIO.Pins["drive_relay"] != 17 {
		t.Errorf("gpio.pins.drive_relay = %d, want 17", cfg.GPIO.Pins["drive_relay"])
	}
}

func TestLoad_KeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Load(writeConfig(t, "defaults:\n  speed_fac: 0.5\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Drive.Type != DriveSabertooth {
		t.Errorf("drive.type = %q, want default %q", cfg.Drive.Type, DriveSabertooth)
	}
	if cfg.Drive.Address != 128 {
		t.Errorf("drive.address = %d, want 128", cfg.Drive.Address)
	}
	if cfg.Dome.Address != 129 {
		t.Errorf("dome.address = %d, want 129", cfg.Dome.Address)
	}
	if cfg.Gestures.SpeedUp != "00001111000000001" {
		t.Errorf("gestures.speed_up = %q", cfg.Gestures.SpeedUp)
	}
	if cfg.Axis != (AxisConfig{Drive: 1, Turn: 0, Dome: 3}) {
		t.Errorf("axis = %+v", cfg.Axis)
	}
	if cfg.Keepalive() != 250*time.Millisecond {
		t.Errorf("Keepalive() = %v, want 250ms", cfg.Keepalive())
	}
}

func TestLoad_UnknownDriveType(t *testing.T) {
	_, err := Load(writeConfig(t, "drive:\n  type: \"Roboclaw\"\n"))
	if !errors.Is(err, ErrUnknownDriveType) {
		t.Errorf("err = %v, want ErrUnknownDriveType", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"invert_zero", "defaults:\n  invert: 0\n"},
		{"invert_two", "defaults:\n  invert: 2\n"},
		{"address_low", "drive:\n  address: 12\n"},
		{"odrive_no_max_vel", "drive:\n  type: ODrive\n  max_vel: -1\n"},
		{"bad_bitmask", "gestures:\n  speed_up: \"0011x\"\n"},
		{"speed_bounds", "gestures:\n  speed_min: 0.9\n  speed_max: 0.5\n"},
		{"speed_min_below_floor", "gestures:\n  speed_min: 0.05\n"},
		{"speed_max_above_full", "gestures:\n  speed_max: 1.5\n"},
		{"speed_fac_above_max", "defaults:\n  speed_fac: 1.8\n"},
		{"speed_fac_below_min", "defaults:\n  speed_fac: 0.1\n"},
		{"speed_fac_outside_narrowed", "defaults:\n  speed_fac: 0.9\ngestures:\n  speed_max: 0.8\n"},
		{"unknown_relay", "safety:\n  relay: nope\n"},
		{"no_joystick_source", "joystick:\n  glob: \"\"\n"},
		{"not_yaml", "defaults: [unterminated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_NormalisesBaseURL(t *testing.T) {
	cfg, err := Load(writeConfig(t, "notify:\n  base_url: \"http://r2:5000\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Notify.BaseURL != "http://r2:5000/" {
		t.Errorf("base_url = %q, want trailing slash", cfg.Notify.BaseURL)
	}
	if cfg.NotifyTimeout() != 250*time.Millisecond {
		t.Errorf("NotifyTimeout() = %v, want 250ms", cfg.NotifyTimeout())
	}
}

func TestLoadOrCreate_WritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "droidctl.yaml")
	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	want := Default()
	if cfg.Drive != want.Drive {
		t.Errorf("drive = %+v, want %+v", cfg.Drive, want.Drive)
	}
	if cfg.Defaults.SpeedFactor != want.Defaults.SpeedFactor {
		t.Errorf("speed_fac = %v, want %v", cfg.Defaults.SpeedFactor, want.Defaults.SpeedFactor)
	}
}

func TestLoadOrCreate_KeepsExisting(t *testing.T) {
	path := writeConfig(t, "defaults:\n  speed_fac: 0.8\n")
	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if cfg.Defaults.SpeedFactor != 0.8 {
		t.Errorf("speed_fac = %v, want 0.8 from existing file", cfg.Defaults.SpeedFactor)
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "droidctl.yaml"))
	if err != nil {
		t.Fatalf("sample config: %v", err)
	}
	want := Default()
	if cfg.Drive != want.Drive || cfg.Dome != want.Dome || cfg.Axis != want.Axis {
		t.Errorf("sample config drifted from defaults: %+v", cfg)
	}
	if cfg.Gestures != want.Gestures {
		t.Errorf("gestures = %+v, want %+v", cfg.Gestures, want.Gestures)
	}
}
