package mouth

import (
	"time"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/motor"
)

// DriverConfig holds the opening-to-pulse mapping and safety limits.
type DriverConfig struct {
	// Deadband is the opening percentage below which the mouth is held
	// shut with a minimal anti-chatter pulse.
	Deadband float64

	// Pulse intensity bounds, interpolated by opening.
	IntensityMin float64
	IntensityMax float64

	// Pulse duration bounds, interpolated by opening.
	DurationMin time.Duration
	DurationMax time.Duration

	// Anti-chatter close pulse.
	CloseIntensity float64
	CloseDuration  time.Duration

	// Duty-cycle cap over a trailing window.
	DutyWindow      time.Duration
	MaxDutyFraction float64

	// Direction flips the wiring polarity. 1 or -1.
	Direction float64

	// Workers bounds concurrent pulse goroutines.
	Workers int
}

// DefaultDriverConfig returns tuning that matches the stock fish kit.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		Deadband:        12,
		IntensityMin:    0.2,
		IntensityMax:    0.9,
		DurationMin:     25 * time.Millisecond,
		DurationMax:     80 * time.Millisecond,
		CloseIntensity:  0.35,
		CloseDuration:   30 * time.Millisecond,
		DutyWindow:      3 * time.Second,
		MaxDutyFraction: 0.45,
		Direction:       1,
		Workers:         2,
	}
}

// Driver maps opening percentages to short motor pulses. Pulses run on a
// small bounded worker pool so a pulse in flight never stalls the
// playback task; when all workers are busy the request is skipped.
type Driver struct {
	cfg  DriverConfig
	act  motor.Actuator
	duty *DutyWindow
	sem  chan struct{}

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewDriver creates a driver for the given actuator.
func NewDriver(act motor.Actuator, cfg DriverConfig) *Driver {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Driver{
		cfg:   cfg,
		act:   act,
		duty:  NewDutyWindow(cfg.DutyWindow, cfg.MaxDutyFraction),
		sem:   make(chan struct{}, workers),
		sleep: time.Sleep,
	}
}

// Drive issues the motor pulse for one opening value. It never blocks:
// busy workers or an exhausted duty budget drop the pulse silently.
func (d *Driver) Drive(opening float64) {
	var intensity float64
	var duration time.Duration

	if opening < d.cfg.Deadband {
		// Hold shut with a minimal fixed pulse to avoid chatter.
		intensity = d.cfg.CloseIntensity * d.cfg.Direction
		duration = d.cfg.CloseDuration
	} else {
		frac := opening / 100
		mag := d.cfg.IntensityMin + frac*(d.cfg.IntensityMax-d.cfg.IntensityMin)
		duration = d.cfg.DurationMin +
			time.Duration(frac*float64(d.cfg.DurationMax-d.cfg.DurationMin))
		// Open pulses drive the opposite direction from close pulses.
		intensity = -mag * d.cfg.Direction
	}

	if !d.duty.Allow() {
		// Budget spent: protect the motor, drop the pulse.
		return
	}

	select {
	case d.sem <- struct{}{}:
		go func() {
			defer func() { <-d.sem }()
			d.pulse(intensity, duration)
		}()
	default:
		// All pulse workers busy; the motor is already moving.
	}
}

// pulse energizes the motor briefly. Hardware write failures are logged
// and absorbed here; the driver keeps operating in a degraded mode.
func (d *Driver) pulse(intensity float64, duration time.Duration) {
	if err := d.act.SetThrottle(motor.Clamp(intensity)); err != nil {
		log.Warn("mouth motor write failed", "err", err)
		return
	}
	// On-time counts against the duty budget as soon as the motor is
	// energized, so a pulse still in flight is visible to the next Allow.
	d.duty.Record(duration)
	d.sleep(duration)
	if err := d.act.SetThrottle(0); err != nil {
		log.Warn("mouth motor stop failed", "err", err)
	}
}

// Stop zeroes the motor. Used during shutdown.
func (d *Driver) Stop() {
	if err := d.act.SetThrottle(0); err != nil {
		log.Warn("mouth motor stop failed", "err", err)
	}
}

// Duty exposes the duty window for inspection.
func (d *Driver) Duty() *DutyWindow {
	return d.duty
}
