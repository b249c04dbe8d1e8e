package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Drive backend types.
const (
	DriveSabertooth = "Sabertooth"
	DriveODrive     = "ODrive"
)

// Hard bounds of the drive speed factor; gestures.speed_min/speed_max
// narrow them but never widen them.
const (
	MinSpeedFactor = 0.2
	MaxSpeedFactor = 1.0
)

// ErrUnknownDriveType is returned when drive.type names no supported backend.
var ErrUnknownDriveType = errors.New("unknown drive type")

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	LogFile      string  `yaml:"log_file"`      // persisted lifecycle log
	Keepalive    float64 `yaml:"keepalive"`     // seconds between liveness checks
	SpeedFactor  float64 `yaml:"speed_fac"`     // initial drive speed factor (0.2-1.0)
	Invert       int     `yaml:"invert"`        // 1 = normal, -1 = inverted drive
	LoopPeriodMs int     `yaml:"loop_period_ms"` // control loop sleep per tick
	ShutdownFlag string  `yaml:"shutdown_flag"` // marker file that forces Safe-Shutdown
	KeysFile     string  `yaml:"keys_file"`     // combo table CSV
	DebugLevel   int     `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	DryRun       bool    `yaml:"dry_run"`       // log motor commands instead of opening serial ports
}

// DriveConfig selects and parameterises the main drive backend.
// It is immutable after startup.
type DriveConfig struct {
	Type            string  `yaml:"type"`             // "Sabertooth" or "ODrive"
	Port            string  `yaml:"port"`             // serial device; empty for ODrive means USB discovery
	Address         int     `yaml:"address"`          // Sabertooth packet serial address (128-135)
	Baud            int     `yaml:"baud"`             // serial baud rate
	MaxVel          float64 `yaml:"max_vel"`          // ODrive max velocity (turns/s) for power 1.0
	WatchdogTimeout float64 `yaml:"watchdog_timeout"` // ODrive hardware watchdog (seconds)
}

// DomeConfig describes the single-channel dome motor controller.
type DomeConfig struct {
	Type    string `yaml:"type"` // "Syren"
	Port    string `yaml:"port"`
	Address int    `yaml:"address"`
	Baud    int    `yaml:"baud"`
}

// AxisConfig maps joystick axis ids to roles.
type AxisConfig struct {
	Drive int `yaml:"drive"`
	Turn  int `yaml:"turn"`
	Dome  int `yaml:"dome"`
}

// JoystickConfig describes where the controller shows up.
type JoystickConfig struct {
	Device         string `yaml:"device"`          // evdev node; empty = first glob match
	Glob           string `yaml:"glob"`            // pattern used to count attached controllers
	WaitIntervalMs int    `yaml:"wait_interval_ms"` // poll interval while waiting for a controller
	Buttons        []int  `yaml:"buttons"`         // key codes in bitmask order; empty = device order
}

// GesturesConfig holds the reserved bitmasks interpreted by the control loop.
type GesturesConfig struct {
	SpeedUp       string  `yaml:"speed_up"`
	SpeedDown     string  `yaml:"speed_down"`
	DriveDisable  string  `yaml:"drive_disable"` // ODrive only
	DriveEnable   string  `yaml:"drive_enable"`  // ODrive only
	SpeedStep     float64 `yaml:"speed_step"`
	SpeedMin      float64 `yaml:"speed_min"`
	SpeedMax      float64 `yaml:"speed_max"`
	SpeedUpClip   string  `yaml:"speed_up_clip"`
	SpeedDownClip string  `yaml:"speed_down_clip"`
	StartupClip   string  `yaml:"startup_clip"`
	AlertClip     string  `yaml:"alert_clip"`
}

// NotifyConfig points at the remote actuation service.
type NotifyConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// GPIOConfig names output pins (BCM numbering).
type GPIOConfig struct {
	Mock bool           `yaml:"mock"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	Pins map[string]int `yaml:"pins"`
}

// SafetyConfig holds Safe-Shutdown extras.
type SafetyConfig struct {
	Relay string `yaml:"relay"` // named GPIO pin powering the drive; empty = none
}

// MQTTConfig enables the optional telemetry publisher.
type MQTTConfig struct {
	Broker     string `yaml:"broker"` // e.g. "tcp://localhost:1883"; empty disables telemetry
	Topic      string `yaml:"topic"`
	ClientID   string `yaml:"client_id"`
	IntervalMs int    `yaml:"interval_ms"`
}

// Config aggregates all application configuration.
type Config struct {
	Defaults DefaultsConfig `yaml:"defaults"`
	Drive    DriveConfig    `yaml:"drive"`
	Dome     DomeConfig     `yaml:"dome"`
	Axis     AxisConfig     `yaml:"axis"`
	Joystick JoystickConfig `yaml:"joystick"`
	Gestures GesturesConfig `yaml:"gestures"`
	Notify   NotifyConfig   `yaml:"notify"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Safety   SafetyConfig   `yaml:"safety"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			LogFile:      "/home/pi/r2_control/logs/ps3.log",
			Keepalive:    0.25,
			SpeedFactor:  0.35,
			Invert:       1,
			LoopPeriodMs: 5,
			ShutdownFlag: "/home/pi/.r2_config/.shutdown",
			KeysFile:     "/home/pi/.r2_config/ps3_keys.csv",
			DebugLevel:   1,
		},
		Drive: DriveConfig{
			Type:            DriveSabertooth,
			Port:            "/dev/ttyACM0",
			Address:         128,
			Baud:            9600,
			MaxVel:          2,
			WatchdogTimeout: 0.5,
		},
		Dome: DomeConfig{
			Type:    "Syren",
			Port:    "/dev/ttyUSB0",
			Address: 129,
			Baud:    9600,
		},
		Axis: AxisConfig{Drive: 1, Turn: 0, Dome: 3},
		Joystick: JoystickConfig{
			Glob:           "/dev/input/by-id/*-event-joystick",
			WaitIntervalMs: 5000,
		},
		Gestures: GesturesConfig{
			SpeedUp:       "00001111000000001",
			SpeedDown:     "00001111000000010",
			DriveDisable:  "00000000000100000",
			DriveEnable:   "00000000010000000",
			SpeedStep:     0.05,
			SpeedMin:      0.2,
			SpeedMax:      1.0,
			SpeedUpClip:   "Happy006",
			SpeedDownClip: "Sad__019",
			StartupClip:   "Happy007",
			AlertClip:     "MOTIVATR",
		},
		Notify: NotifyConfig{
			BaseURL:   "http://localhost:5000/",
			TimeoutMs: 250,
		},
		GPIO: GPIOConfig{Mock: true},
		MQTT: MQTTConfig{
			Topic:      "r2/ps3/status",
			ClientID:   "droidctl",
			IntervalMs: 1000,
		},
	}
}

// Load reads a YAML file and returns the configuration.
// Values missing from the file keep their built-in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreate loads path, first writing the default configuration there
// when the file does not exist yet.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
	}
	return Load(path)
}

// WriteDefault writes the built-in configuration as YAML.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Drive.Type {
	case DriveSabertooth, DriveODrive:
	default:
		return fmt.Errorf("drive.type %q: %w", c.Drive.Type, ErrUnknownDriveType)
	}
	if c.Defaults.Invert != 1 && c.Defaults.Invert != -1 {
		return fmt.Errorf("invert must be 1 or -1, got %d", c.Defaults.Invert)
	}
	if c.Defaults.Keepalive <= 0 {
		c.Defaults.Keepalive = 0.25
	}
	if c.Defaults.LoopPeriodMs <= 0 {
		c.Defaults.LoopPeriodMs = 5
	}

	g := &c.Gestures
	if g.SpeedMin <= 0 {
		g.SpeedMin = MinSpeedFactor
	}
	if g.SpeedMax <= 0 {
		g.SpeedMax = MaxSpeedFactor
	}
	if g.SpeedMin < MinSpeedFactor || g.SpeedMax > MaxSpeedFactor {
		return fmt.Errorf("gestures.speed_min/speed_max must be within [%.1f, %.1f], got [%.2f, %.2f]",
			MinSpeedFactor, MaxSpeedFactor, g.SpeedMin, g.SpeedMax)
	}
	if g.SpeedMin > g.SpeedMax {
		return fmt.Errorf("gestures.speed_min (%.2f) must be <= speed_max (%.2f)", g.SpeedMin, g.SpeedMax)
	}
	if f := c.Defaults.SpeedFactor; f < g.SpeedMin || f > g.SpeedMax {
		return fmt.Errorf("speed_fac %.2f must be within [%.2f, %.2f]", f, g.SpeedMin, g.SpeedMax)
	}
	if g.SpeedStep <= 0 {
		g.SpeedStep = 0.05
	}
	if err := checkBitmask("speed_up", g.SpeedUp); err != nil {
		return err
	}
	if err := checkBitmask("speed_down", g.SpeedDown); err != nil {
		return err
	}
	if err := checkBitmask("drive_disable", g.DriveDisable); err != nil {
		return err
	}
	if err := checkBitmask("drive_enable", g.DriveEnable); err != nil {
		return err
	}

	if c.Drive.Type == DriveSabertooth && (c.Drive.Address < 128 || c.Drive.Address > 135) {
		return fmt.Errorf("drive.address must be between 128 and 135, got %d", c.Drive.Address)
	}
	if c.Drive.Type == DriveODrive && c.Drive.MaxVel <= 0 {
		return fmt.Errorf("drive.max_vel must be > 0 for ODrive")
	}
	if c.Drive.WatchdogTimeout <= 0 {
		c.Drive.WatchdogTimeout = 0.5
	}
	if c.Drive.Baud <= 0 {
		c.Drive.Baud = 9600
	}
	if c.Dome.Baud <= 0 {
		c.Dome.Baud = 9600
	}
	if c.Notify.TimeoutMs <= 0 {
		c.Notify.TimeoutMs = 250
	}
	if c.Notify.BaseURL != "" && !strings.HasSuffix(c.Notify.BaseURL, "/") {
		c.Notify.BaseURL += "/"
	}
	if c.Joystick.Device == "" && c.Joystick.Glob == "" {
		return errors.New("joystick.device or joystick.glob must be set")
	}
	if c.Joystick.WaitIntervalMs <= 0 {
		c.Joystick.WaitIntervalMs = 5000
	}
	if c.MQTT.IntervalMs <= 0 {
		c.MQTT.IntervalMs = 1000
	}
	if c.Safety.Relay != "" {
		if _, ok := c.GPIO.Pins[c.Safety.Relay]; !ok {
			return fmt.Errorf("safety.relay %q is not a named gpio pin", c.Safety.Relay)
		}
	}
	return nil
}

// checkBitmask accepts an empty string (gesture disabled) or a run of 0/1.
func checkBitmask(name, mask string) error {
	for _, r := range mask {
		if r != '0' && r != '1' {
			return fmt.Errorf("gestures.%s must contain only 0 and 1, got %q", name, mask)
		}
	}
	return nil
}

// Keepalive returns the liveness check interval.
func (c *Config) Keepalive() time.Duration {
	return time.Duration(c.Defaults.Keepalive * float64(time.Second))
}

// LoopPeriod returns the control loop sleep per tick.
func (c *Config) LoopPeriod() time.Duration {
	return time.Duration(c.Defaults.LoopPeriodMs) * time.Millisecond
}

// WatchdogTimeout returns the ODrive hardware watchdog timeout.
func (c *Config) WatchdogTimeout() time.Duration {
	return time.Duration(c.Drive.WatchdogTimeout * float64(time.Second))
}

// NotifyTimeout bounds each notification request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutMs) * time.Millisecond
}

// JoystickWait returns the poll interval used while no controller is attached.
func (c *Config) JoystickWait() time.Duration {
	return time.Duration(c.Joystick.WaitIntervalMs) * time.Millisecond
}

// TelemetryInterval returns the MQTT status publish interval.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.MQTT.IntervalMs) * time.Millisecond
}

