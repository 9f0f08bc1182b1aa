package billy

import (
	"context"
	"sync"
)

// Handle tracks one supervised goroutine: its cancel function, its
// completion, and the error it exited with.
type Handle struct {
	name string

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	running  bool
	restarts int
}

// startTask launches fn in a goroutine and returns a handle for it.
func startTask(ctx context.Context, name string, fn func(context.Context) error) *Handle {
	h := &Handle{name: name}
	h.launch(ctx, fn)
	return h
}

func (h *Handle) launch(ctx context.Context, fn func(context.Context) error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	h.mu.Lock()
	h.cancel = cancel
	h.done = done
	h.running = true
	h.err = nil
	h.mu.Unlock()

	go func() {
		err := fn(ctx)
		h.mu.Lock()
		h.err = err
		h.running = false
		h.mu.Unlock()
		cancel()
		close(done)
	}()
}

// Restart relaunches the task. The caller must confirm the task is
// not alive first.
func (h *Handle) Restart(ctx context.Context, fn func(context.Context) error) {
	h.mu.Lock()
	h.restarts++
	h.mu.Unlock()
	h.launch(ctx, fn)
}

// Alive reports whether the task goroutine is still running.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Err returns the error the task last exited with, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Restarts returns how many times the task has been relaunched.
func (h *Handle) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

// Cancel requests the task stop. It does not wait.
func (h *Handle) Cancel() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current run of the task finishes.
func (h *Handle) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}
