package motor

import (
	"sync"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
)

// LogActuator is a no-op actuator that logs nonzero throttle commands.
// It stands in for the real motor driver in demo mode and in tests.
type LogActuator struct {
	Label string

	mu      sync.Mutex
	history []float64
}

// NewLogActuator creates a logging stand-in with the given label.
func NewLogActuator(label string) *LogActuator {
	return &LogActuator{Label: label}
}

// SetThrottle records the command and logs it when nonzero.
func (a *LogActuator) SetThrottle(value float64) error {
	value = Clamp(value)

	a.mu.Lock()
	a.history = append(a.history, value)
	a.mu.Unlock()

	if value != 0 {
		log.Debug("motor throttle", "motor", a.Label, "throttle", value)
	}
	return nil
}

// History returns every throttle value set so far.
func (a *LogActuator) History() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float64, len(a.history))
	copy(out, a.history)
	return out
}

// Last returns the most recent throttle value, or 0 if none.
func (a *LogActuator) Last() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.history) == 0 {
		return 0
	}
	return a.history[len(a.history)-1]
}

var _ Actuator = (*LogActuator)(nil)
