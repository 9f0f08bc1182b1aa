package sonic

import (
	"context"
	"sync"
)

// AudioChunk is one decoded PCM payload with its arrival sequence number.
// Chunks are created by the receive loop and consumed exactly once by the
// playback pipeline.
type AudioChunk struct {
	Seq uint64
	PCM []byte
}

// PlaybackQueue is an unbounded FIFO of audio chunks. Dequeue order
// equals enqueue order. Single producer (receive loop), single consumer
// (playback task).
type PlaybackQueue struct {
	mu      sync.Mutex
	chunks  []AudioChunk
	nextSeq uint64
	closed  bool
	signal  chan struct{}
}

// NewPlaybackQueue creates an empty queue.
func NewPlaybackQueue() *PlaybackQueue {
	return &PlaybackQueue{signal: make(chan struct{}, 1)}
}

// Put enqueues PCM bytes, stamping the next sequence number.
// Puts after Close are dropped.
func (q *PlaybackQueue) Put(pcm []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.chunks = append(q.chunks, AudioChunk{Seq: q.nextSeq, PCM: pcm})
	q.nextSeq++
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Get dequeues the next chunk, blocking while the queue is empty.
// Returns ErrSessionClosed once the queue is closed and drained.
func (q *PlaybackQueue) Get(ctx context.Context) (AudioChunk, error) {
	for {
		q.mu.Lock()
		if len(q.chunks) > 0 {
			chunk := q.chunks[0]
			q.chunks = q.chunks[1:]
			q.mu.Unlock()
			return chunk, nil
		}
		if q.closed {
			q.mu.Unlock()
			return AudioChunk{}, ErrSessionClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return AudioChunk{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of pending chunks.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Empty reports whether no chunks are pending.
func (q *PlaybackQueue) Empty() bool {
	return q.Len() == 0
}

// Close marks the queue closed. Pending chunks can still be drained;
// a blocked Get wakes up.
func (q *PlaybackQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}
