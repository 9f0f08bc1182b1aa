// Package motor defines the actuator interface the animation layers
// drive, plus a logging stand-in for running without hardware.
//
// The concrete motor HAT driver lives outside this repository; which
// implementation to use is an injected choice made at construction time,
// never detected at runtime.
package motor

// Actuator is a single DC motor channel.
type Actuator interface {
	// SetThrottle drives the motor at value in [-1, 1]; 0 stops it.
	SetThrottle(value float64) error
}

// Clamp restricts a throttle value to [-1, 1].
func Clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
