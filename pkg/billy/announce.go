package billy

import "sync"

// announcer is a mailbox for out-of-band text the supervisor delivers
// to the model between ticks. One announcement drains per tick so
// turns never interleave.
type announcer struct {
	mu      sync.Mutex
	pending []string
}

func (a *announcer) enqueue(text string) {
	if text == "" {
		return
	}
	a.mu.Lock()
	a.pending = append(a.pending, text)
	a.mu.Unlock()
}

func (a *announcer) pop() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return "", false
	}
	text := a.pending[0]
	a.pending = a.pending[1:]
	return text, true
}

func (a *announcer) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
