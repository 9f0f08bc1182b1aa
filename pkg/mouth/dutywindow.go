package mouth

import (
	"sync"
	"time"
)

// dutySample records one issued pulse.
type dutySample struct {
	at time.Time
	on time.Duration
}

// DutyWindow tracks motor on-time over a trailing window so the duty
// fraction can be capped. Samples older than the window are pruned on
// every access.
type DutyWindow struct {
	mu      sync.Mutex
	window  time.Duration
	maxFrac float64
	samples []dutySample
	now     func() time.Time
}

// NewDutyWindow creates a window of the given length capping on-time at
// maxFraction of it.
func NewDutyWindow(window time.Duration, maxFraction float64) *DutyWindow {
	return &DutyWindow{
		window:  window,
		maxFrac: maxFraction,
		now:     time.Now,
	}
}

// Allow reports whether a new pulse may be issued right now.
func (d *DutyWindow) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.prune(d.now())

	var used time.Duration
	for _, s := range d.samples {
		used += s.on
	}
	limit := time.Duration(d.maxFrac * float64(d.window))
	return used < limit
}

// Record logs an issued pulse's on-time. Call only when the pulse was
// actually driven.
func (d *DutyWindow) Record(on time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.prune(now)
	d.samples = append(d.samples, dutySample{at: now, on: on})
}

// Used returns the total on-time currently inside the window.
func (d *DutyWindow) Used() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.prune(d.now())
	var used time.Duration
	for _, s := range d.samples {
		used += s.on
	}
	return used
}

func (d *DutyWindow) prune(now time.Time) {
	keep := d.samples[:0]
	for _, s := range d.samples {
		if now.Sub(s.at) <= d.window {
			keep = append(keep, s)
		}
	}
	d.samples = keep
}
