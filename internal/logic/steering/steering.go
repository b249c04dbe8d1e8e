// Package steering mixes arcade-style stick input into differential
// drive motor powers.
package steering

import "math"

// Output is the left/right motor power pair, each in [-|driveMod|, |driveMod|].
type Output struct {
	Left  float64
	Right float64
}

// Mix converts turn and throttle in [-1, 1] into left/right powers.
//
// The stick vector (throttle, -turn) is rotated by +45°, rescaled by √2,
// clamped to [-1, 1] per side and multiplied by driveMod. Pure throttle
// drives both sides equally; a positive turn drives left forward and
// right backward.
func Mix(turn, throttle, driveMod float64) Output {
	turn = Clamp(turn, -1, 1)
	throttle = Clamp(throttle, -1, 1)

	r := math.Hypot(throttle, -turn)
	if r == 0 {
		return Output{}
	}
	theta := math.Atan2(-turn, throttle) + math.Pi/4

	left := r * math.Cos(theta) * math.Sqrt2
	right := r * math.Sin(theta) * math.Sqrt2

	return Output{
		Left:  Clamp(left, -1, 1) * driveMod,
		Right: Clamp(right, -1, 1) * driveMod,
	}
}

// Clamp limits n to [lo, hi]; NaN maps to 0 when 0 is in range.
func Clamp(n, lo, hi float64) float64 {
	switch {
	case math.IsNaN(n):
		return Clamp(0, lo, hi)
	case n < lo:
		return lo
	case n > hi:
		return hi
	}
	return n
}
