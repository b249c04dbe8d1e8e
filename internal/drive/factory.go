package drive

import (
	"fmt"
	"time"

	"github.com/r2-control/droidctl/internal/config"
	"github.com/r2-control/droidctl/internal/debug"
	"github.com/r2-control/droidctl/internal/hw/odrive"
	"github.com/r2-control/droidctl/internal/hw/serialbus"
)

const odriveReadTimeout = 50 * time.Millisecond

// New selects the drive backend from cfg.Drive.Type. The choice is fixed
// for the process lifetime.
func New(cfg *config.Config, dryRun bool) (Backend, error) {
	kind, err := ParseKind(cfg.Drive.Type)
	if err != nil {
		return nil, err
	}
	if dryRun {
		debug.Info("**** Dry run: %s commands are logged only ****", kind)
		return NewDryRun(kind), nil
	}

	switch kind {
	case KindSabertooth:
		debug.Info("**** Using Sabertooth for main drive ****")
		port, err := serialbus.Open(serialbus.Config{Name: cfg.Drive.Port, Baud: cfg.Drive.Baud})
		if err != nil {
			return nil, err
		}
		return NewSabertooth(port, cfg.Drive.Address, "drive")
	case KindODrive:
		debug.Info("***** Using ODrive for main drive *****")
		name := cfg.Drive.Port
		if name == "" {
			debug.Info("finding an odrive...")
			if name, err = serialbus.Find(nil, odrive.VendorID, odrive.ProductID); err != nil {
				return nil, err
			}
		}
		port, err := serialbus.Open(serialbus.Config{Name: name, Baud: cfg.Drive.Baud, ReadTimeout: odriveReadTimeout})
		if err != nil {
			return nil, err
		}
		o, err := NewODrive(port, "odrive", cfg.Drive.MaxVel, cfg.WatchdogTimeout())
		if err != nil {
			_ = port.Close()
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("drive type %q: %w", cfg.Drive.Type, config.ErrUnknownDriveType)
}

// NewDome opens the dome controller.
func NewDome(cfg *config.Config, dryRun bool) (Dome, error) {
	if dryRun {
		return DryRunDome{}, nil
	}
	port, err := serialbus.Open(serialbus.Config{Name: cfg.Dome.Port, Baud: cfg.Dome.Baud})
	if err != nil {
		return nil, err
	}
	return NewSyren(port, cfg.Dome.Address, "dome")
}
