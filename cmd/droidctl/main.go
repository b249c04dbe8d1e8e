package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/r2-control/droidctl/internal/combo"
	"github.com/r2-control/droidctl/internal/config"
	"github.com/r2-control/droidctl/internal/debug"
	"github.com/r2-control/droidctl/internal/drive"
	"github.com/r2-control/droidctl/internal/eventlog"
	"github.com/r2-control/droidctl/internal/hw/gpio"
	"github.com/r2-control/droidctl/internal/joystick"
	"github.com/r2-control/droidctl/internal/logic/motion"
	"github.com/r2-control/droidctl/internal/logic/teleop"
	"github.com/r2-control/droidctl/internal/notify"
	"github.com/r2-control/droidctl/internal/safety"
	"github.com/r2-control/droidctl/internal/telemetry"
	"github.com/r2-control/droidctl/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start status web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "droidctl.yaml"), "path to config file (written with defaults if missing)")
	dryRun := flag.Bool("dryrun", false, "log motor commands instead of opening the motor controllers")
	debugLevel := flag.Int("debug", -1, "debug level 0-4; -1 keeps the config value")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadOrCreate(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := applyFlags(cfg, *dryRun, *debugLevel); err != nil {
		log.Fatalf("invalid flag: %v", err)
	}

	var hub *web.Hub
	if webPort.port() > 0 {
		hub = web.NewHub()
		debug.SetOutput(io.MultiWriter(os.Stdout, hub.Writer()))
	}
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Dry run", cfg.Defaults.DryRun)

	if err := run(ctx, cfg, hub, webPort.port()); err != nil {
		log.Fatalf("droidctl: %v", err)
	}
}

// run wires the droid together and blocks until the control loop exits.
func run(ctx context.Context, cfg *config.Config, hub *web.Hub, webPort int) error {
	elog := eventlog.Open(cfg.Defaults.LogFile)
	defer elog.Close()
	elog.Started()

	debug.Step(1, "Initializing GPIO")
	gpioDriver, err := gpio.NewDriver(cfg.GPIO.Mock)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	pins, err := gpio.NewPins(gpioDriver, cfg.GPIO.Pins)
	if err != nil {
		return err
	}
	relay := relayFunc(pins, cfg.Safety.Relay)

	debug.Step(2, "Waiting for joystick")
	if err := joystick.WaitForDevice(ctx, joystick.Counter(cfg.Joystick.Glob), cfg.JoystickWait()); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	devPath, err := joystick.ResolveDevice(cfg.Joystick.Device, cfg.Joystick.Glob)
	if err != nil {
		return err
	}
	elog.Printf("Joystick found")
	debug.Value("Joystick device", devPath)

	// Set once Safe-Shutdown has stopped the motors; ports are then closed
	// without further frames.
	var stopped bool

	debug.Step(3, "Opening dome")
	debug.PrintStruct("Dome config", cfg.Dome)
	dome, err := drive.NewDome(cfg, cfg.Defaults.DryRun)
	if err != nil {
		return fmt.Errorf("init dome: %w", err)
	}
	defer func() { closeMotor("dome", dome, stopped) }()

	debug.Step(4, "Opening joystick")
	js, err := joystick.OpenEvdev(devPath, cfg.Joystick.Buttons)
	if err != nil {
		return err
	}
	defer js.Close()

	debug.Step(5, "Loading combo table")
	table, err := combo.LoadFile(cfg.Defaults.KeysFile)
	if err != nil {
		return err
	}
	debug.Value("Combos", table.Len())

	sink := newSink(cfg)
	notify.Guarded(ctx, sink, notify.Audio(cfg.Gestures.StartupClip))

	// The ODrive watchdog is armed on open, so the drive comes up last.
	debug.Step(6, "Opening drive")
	debug.PrintStruct("Drive config", cfg.Drive)
	backend, err := drive.New(cfg, cfg.Defaults.DryRun)
	if err != nil {
		return fmt.Errorf("init drive: %w", err)
	}
	defer func() { closeMotor("drive", backend, stopped) }()
	if relay != nil {
		if err := relay(true); err != nil {
			return fmt.Errorf("enable drive relay: %w", err)
		}
	}
	elog.Initialised()

	mc := motion.NewController(backend, dome)
	sup := safety.New(safetyConfig(cfg), safety.Probes{
		Present:      func() bool { return joystick.PathExists(devPath) },
		ShutdownFlag: func() bool { return joystick.PathExists(cfg.Defaults.ShutdownFlag) },
	}, safety.Actuators{
		Motion: mc,
		Drive:  backend,
		Sink:   sink,
		Log:    elog,
		Relay:  relay,
	}, time.Now())

	loop := teleop.New(teleop.OptionsFromConfig(cfg), teleop.Deps{
		Joystick:   js,
		Motion:     mc,
		Drive:      backend,
		Table:      table,
		Sink:       sink,
		Log:        elog,
		Supervisor: sup,
	})
	status := func() any { return loop.Snapshot() }

	// Side services only read snapshots; they stop once the loop is done.
	auxCtx, stopAux := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		stopAux()
		wg.Wait()
	}()

	if webPort > 0 {
		srv, err := web.NewServer(fmt.Sprintf(":%d", webPort), hub, status)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(auxCtx); err != nil {
				debug.Warn("web server: %v", err)
			}
		}()
	}
	if cfg.MQTT.Broker != "" {
		client := telemetry.Connect(cfg.MQTT)
		defer client.Disconnect(250)
		reporter := telemetry.NewReporter(client, cfg.MQTT.Topic, cfg.TelemetryInterval(), status)
		wg.Add(1)
		go func() {
			defer wg.Done()
			reporter.Run(auxCtx)
		}()
	}

	debug.Section("Control loop")
	reason := loop.Run(ctx)
	stopped = sup.State() == safety.Shutdown
	debug.Info("Control loop stopped: %s", reason)
	return nil
}

// closeMotor closes a motor controller. After Safe-Shutdown only the port
// is released.
func closeMotor(name string, c io.Closer, stopped bool) {
	closeFn := c.Close
	if stopped {
		closeFn = func() error { return drive.Release(c) }
	}
	if err := closeFn(); err != nil {
		debug.Warn("closing %s: %v", name, err)
	}
}

// applyFlags overlays command line switches on the loaded config.
func applyFlags(cfg *config.Config, dryRun bool, debugLevel int) error {
	if dryRun {
		cfg.Defaults.DryRun = true
	}
	if debugLevel >= 0 {
		if debugLevel > debug.LevelTrace {
			return fmt.Errorf("debug level must be 0-%d, got %d", debug.LevelTrace, debugLevel)
		}
		cfg.Defaults.DebugLevel = debugLevel
	}
	return nil
}

func safetyConfig(cfg *config.Config) safety.Config {
	return safety.Config{
		Keepalive:   cfg.Keepalive(),
		SpeedFactor: cfg.Defaults.SpeedFactor,
		SpeedStep:   cfg.Gestures.SpeedStep,
		SpeedMin:    cfg.Gestures.SpeedMin,
		SpeedMax:    cfg.Gestures.SpeedMax,
		Invert:      cfg.Defaults.Invert,
		AlertClip:   cfg.Gestures.AlertClip,
	}
}

// newSink returns the HTTP sink, or a Nop when no base URL is set.
func newSink(cfg *config.Config) notify.Sink {
	if cfg.Notify.BaseURL == "" {
		debug.Info("No notify base_url, remote actions disabled")
		return notify.Nop{}
	}
	return notify.NewHTTPSink(cfg.Notify.BaseURL, cfg.NotifyTimeout())
}

// relayFunc returns a switch for the named relay pin, or nil without one.
func relayFunc(pins *gpio.Pins, name string) func(on bool) error {
	if name == "" || !pins.Has(name) {
		return nil
	}
	return func(on bool) error { return pins.Set(name, on) }
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
