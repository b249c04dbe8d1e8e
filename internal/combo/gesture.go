package combo

import "github.com/r2-control/droidctl/internal/config"

// Gesture is a reserved combo handled by the control loop itself.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureSpeedUp
	GestureSpeedDown
	GestureDriveDisable
	GestureDriveEnable
)

func (g Gesture) String() string {
	switch g {
	case GestureSpeedUp:
		return "speed-up"
	case GestureSpeedDown:
		return "speed-down"
	case GestureDriveDisable:
		return "drive-disable"
	case GestureDriveEnable:
		return "drive-enable"
	}
	return "none"
}

// Gestures holds the reserved bitmasks. Empty strings disable a gesture.
type Gestures struct {
	SpeedUp      string
	SpeedDown    string
	DriveDisable string
	DriveEnable  string
}

// GesturesFromConfig copies the reserved bitmasks out of cfg.
func GesturesFromConfig(cfg config.GesturesConfig) Gestures {
	return Gestures{
		SpeedUp:      cfg.SpeedUp,
		SpeedDown:    cfg.SpeedDown,
		DriveDisable: cfg.DriveDisable,
		DriveEnable:  cfg.DriveEnable,
	}
}

// Classify reports which gesture bitmask is. The drive enable/disable
// gestures only exist when stateful is true (the ODrive backend).
func (g Gestures) Classify(bitmask string, stateful bool) Gesture {
	switch {
	case bitmask == "":
		return GestureNone
	case bitmask == g.SpeedUp:
		return GestureSpeedUp
	case bitmask == g.SpeedDown:
		return GestureSpeedDown
	case stateful && bitmask == g.DriveDisable:
		return GestureDriveDisable
	case stateful && bitmask == g.DriveEnable:
		return GestureDriveEnable
	}
	return GestureNone
}
