// Package torso drives the secondary body actuator: a forward lean
// while the fish is speaking, a timed return to rest afterward, and a
// periodic idle wag in between.
package torso

import (
	"sync"
	"time"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/motor"
)

// State is the torso position state.
type State int

const (
	// Rest: torso relaxed, idle wag permitted.
	Rest State = iota
	// Active: leaning forward while speech audio is flowing.
	Active
	// Returning: driving back toward rest for a fixed duration.
	Returning
)

func (s State) String() string {
	switch s {
	case Rest:
		return "rest"
	case Active:
		return "active"
	case Returning:
		return "returning"
	}
	return "unknown"
}

// Config holds torso motion tuning.
type Config struct {
	// ForwardThrottle leans the torso forward while speaking.
	ForwardThrottle float64
	// ReturnThrottle drives back toward rest.
	ReturnThrottle float64
	// ReturnDuration is how long the return throttle is applied.
	ReturnDuration time.Duration

	// GracePeriod is how long the playback queue must stay empty before
	// the torso starts returning; brief gaps don't flap the state.
	GracePeriod time.Duration

	// IdlePeriod is the interval between idle wag pulses at rest.
	IdlePeriod time.Duration
	// WagThrottle and WagPulse shape one two-direction oscillation.
	WagThrottle float64
	WagPulse    time.Duration

	// Direction flips the wiring polarity. 1 or -1.
	Direction float64
}

// DefaultConfig returns the stock torso tuning.
func DefaultConfig() Config {
	return Config{
		ForwardThrottle: 0.55,
		ReturnThrottle:  -0.55,
		ReturnDuration:  450 * time.Millisecond,
		GracePeriod:     time.Second,
		IdlePeriod:      3 * time.Second,
		WagThrottle:     0.3,
		WagPulse:        150 * time.Millisecond,
		Direction:       1,
	}
}

// Machine is the torso state machine. It is owned by the supervisor:
// only the supervisor's tick calls Evaluate, and only the idle-wag task
// calls Wag. Other components report signals, they never mutate state.
type Machine struct {
	cfg Config
	act motor.Actuator

	mu          sync.Mutex
	state       State
	listening   bool
	emptySince  time.Time
	returnSince time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewMachine creates a torso machine at rest with the listening gate
// enabled.
func NewMachine(act motor.Actuator, cfg Config) *Machine {
	return &Machine{
		cfg:       cfg,
		act:       act,
		state:     Rest,
		listening: true,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetListening toggles the external listening gate. With the gate off
// the idle wag is suppressed entirely.
func (m *Machine) SetListening(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = on
}

// Evaluate advances the state machine from the supervisor tick.
// chunkSeen reports whether speech audio arrived since the last tick;
// queueEmpty reports whether the playback queue is drained.
func (m *Machine) Evaluate(chunkSeen, queueEmpty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	switch m.state {
	case Rest:
		if chunkSeen {
			m.state = Active
			m.emptySince = time.Time{}
			m.setThrottle(m.cfg.ForwardThrottle * m.cfg.Direction)
			log.Debug("torso active")
		}

	case Active:
		if !queueEmpty || chunkSeen {
			m.emptySince = time.Time{}
			return
		}
		if m.emptySince.IsZero() {
			m.emptySince = now
			return
		}
		if now.Sub(m.emptySince) >= m.cfg.GracePeriod {
			m.state = Returning
			m.returnSince = now
			m.setThrottle(m.cfg.ReturnThrottle * m.cfg.Direction)
			log.Debug("torso returning")
		}

	case Returning:
		if now.Sub(m.returnSince) >= m.cfg.ReturnDuration {
			m.state = Rest
			m.emptySince = time.Time{}
			m.setThrottle(0)
			log.Debug("torso at rest")
		}
	}
}

// Wag performs one brief two-direction idle oscillation. It fires only
// at Rest with the listening gate on; any other state is a no-op.
func (m *Machine) Wag() {
	m.mu.Lock()
	if m.state != Rest || !m.listening {
		m.mu.Unlock()
		return
	}
	throttle := m.cfg.WagThrottle * m.cfg.Direction
	m.setThrottle(throttle)
	m.mu.Unlock()

	m.sleep(m.cfg.WagPulse)

	m.mu.Lock()
	// Re-check: a chunk may have arrived mid-wag.
	if m.state == Rest {
		m.setThrottle(-throttle)
	}
	m.mu.Unlock()

	m.sleep(m.cfg.WagPulse)

	m.mu.Lock()
	if m.state == Rest {
		m.setThrottle(0)
	}
	m.mu.Unlock()
}

// Stop zeroes the actuator and forces Rest. Used during shutdown;
// idempotent.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Rest
	m.emptySince = time.Time{}
	m.setThrottle(0)
}

// setThrottle writes to the actuator, absorbing hardware failures.
// Callers hold m.mu.
func (m *Machine) setThrottle(v float64) {
	if err := m.act.SetThrottle(motor.Clamp(v)); err != nil {
		log.Warn("torso motor write failed", "err", err)
	}
}
