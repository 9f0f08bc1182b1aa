package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNoDevice is returned when no usable device could be opened,
// including after exhausting all fallback sample rates.
var ErrNoDevice = errors.New("audioio: no usable device")

// Source captures PCM16 frames from an input device.
type Source interface {
	// Read returns the next frame of raw PCM16 bytes, blocking until a
	// full frame is available. Returns io.EOF after Close.
	Read(ctx context.Context) ([]byte, error)

	// SampleRate returns the rate the device actually runs at.
	SampleRate() int

	// Name returns the backend name.
	Name() string

	// Close releases the device. Safe to call more than once.
	io.Closer
}

// Sink plays PCM16 audio on an output device.
type Sink interface {
	// Write queues raw PCM16 bytes for playback. The bytes must already
	// be at the sink's negotiated SampleRate.
	Write(ctx context.Context, pcm []byte) error

	// SampleRate returns the negotiated device rate, which may differ
	// from the requested rate when a fallback was used.
	SampleRate() int

	// Name returns the backend name.
	Name() string

	// Close releases the device. Safe to call more than once.
	io.Closer
}

// OpenSource opens a capture device for the configured backend.
func OpenSource(cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg), nil
	case BackendPortAudio:
		return openPortAudioSource(cfg)
	case BackendMiniaudio:
		return openMiniaudioSource(cfg)
	}
	return nil, fmt.Errorf("audioio: unsupported backend %q", cfg.Backend)
}

// OpenSink opens a playback device for the configured backend.
// The requested sample rate is tried first, then each fallback rate in
// order; ErrNoDevice wraps the last failure when all rates are rejected.
func OpenSink(cfg Config) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendMock:
		return NewMockSink(cfg), nil
	case BackendPortAudio:
		return openPortAudioSink(cfg)
	case BackendMiniaudio:
		return openMiniaudioSink(cfg)
	}
	return nil, fmt.Errorf("audioio: unsupported backend %q", cfg.Backend)
}
