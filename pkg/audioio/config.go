// Package audioio provides PCM16 audio capture and playback for the fish.
//
// Two real backends are supported:
//   - PortAudio - desktop development and the Pi with a USB sound card
//   - miniaudio (malgo) - ALSA on the Pi without PortAudio installed
//
// A mock backend is available for CI/testing without hardware. The backend
// is an explicit, injected choice - this package never sniffs the platform
// at runtime.
package audioio

import (
	"fmt"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMiniaudio uses miniaudio (malgo) for audio I/O.
	BackendMiniaudio Backend = "miniaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Canonical sample rates for a Nova Sonic session.
const (
	// CaptureRate is the microphone rate the model expects.
	CaptureRate = 16000
	// PlaybackRate is the rate of synthesized speech from the model.
	PlaybackRate = 24000
)

// Config holds audio device configuration.
type Config struct {
	// Backend selects the audio implementation.
	Backend Backend

	// SampleRate is the requested sample rate in Hz.
	SampleRate int

	// FallbackRates are tried in order when the device rejects SampleRate.
	// Only playback devices negotiate; capture must run at SampleRate.
	FallbackRates []int

	// Channels is the number of audio channels.
	Channels int

	// FrameSize is the number of samples per read/write frame.
	FrameSize int

	// DeviceIndex selects a specific device, -1 for the system default.
	DeviceIndex int
}

// DefaultCaptureConfig returns a capture Config at the canonical mic rate.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:     BackendPortAudio,
		SampleRate:  CaptureRate,
		Channels:    1,
		FrameSize:   1024,
		DeviceIndex: -1,
	}
}

// DefaultPlaybackConfig returns a playback Config at the canonical
// synthesis rate, with the fallback rates cheap USB DACs actually support.
func DefaultPlaybackConfig() Config {
	return Config{
		Backend:       BackendPortAudio,
		SampleRate:    PlaybackRate,
		FallbackRates: []int{48000, 44100},
		Channels:      1,
		FrameSize:     1024,
		DeviceIndex:   -1,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audioio: channels must be positive, got %d", c.Channels)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("audioio: frame size must be positive, got %d", c.FrameSize)
	}
	switch c.Backend {
	case BackendPortAudio, BackendMiniaudio, BackendMock:
	default:
		return fmt.Errorf("audioio: unknown backend %q", c.Backend)
	}
	return nil
}

// FrameBytes returns the size of one frame in bytes (PCM16).
func (c *Config) FrameBytes() int {
	return c.FrameSize * c.Channels * 2
}
