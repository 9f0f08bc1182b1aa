package audioio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
)

// portAudioSource captures from a PortAudio input stream.
type portAudioSource struct {
	cfg    Config
	stream *portaudio.Stream
	in     []int16

	mu     sync.Mutex
	closed bool
	term   sync.Once
}

func openPortAudioSource(cfg Config) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audioio: portaudio init: %w", err)
	}

	in := make([]int16, cfg.FrameSize*cfg.Channels)

	var stream *portaudio.Stream
	var err error
	if cfg.DeviceIndex < 0 {
		stream, err = portaudio.OpenDefaultStream(
			cfg.Channels, 0, float64(cfg.SampleRate), cfg.FrameSize, in)
	} else {
		var params portaudio.StreamParameters
		params, err = deviceParams(cfg, true)
		if err == nil {
			stream, err = portaudio.OpenStream(params, in)
		}
	}
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: open capture stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: start capture stream: %w", err)
	}

	log.Debug("portaudio capture open",
		"sample_rate", cfg.SampleRate, "frame_size", cfg.FrameSize)

	return &portAudioSource{cfg: cfg, stream: stream, in: in}, nil
}

func (s *portAudioSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("audioio: capture read: %w", err)
	}
	return SamplesToBytes(s.in), nil
}

func (s *portAudioSource) SampleRate() int { return s.cfg.SampleRate }
func (s *portAudioSource) Name() string    { return "portaudio" }

func (s *portAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Stop()
	err := s.stream.Close()
	s.term.Do(func() { portaudio.Terminate() })
	return err
}

// portAudioSink plays through a PortAudio output stream.
type portAudioSink struct {
	cfg  Config
	rate int

	stream *portaudio.Stream
	out    []int16

	mu       sync.Mutex
	closed   bool
	leftover []int16
	term     sync.Once
}

func openPortAudioSink(cfg Config) (Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audioio: portaudio init: %w", err)
	}

	out := make([]int16, cfg.FrameSize*cfg.Channels)

	var lastErr error
	for _, rate := range append([]int{cfg.SampleRate}, cfg.FallbackRates...) {
		var stream *portaudio.Stream
		var err error
		if cfg.DeviceIndex < 0 {
			stream, err = portaudio.OpenDefaultStream(
				0, cfg.Channels, float64(rate), cfg.FrameSize, out)
		} else {
			rcfg := cfg
			rcfg.SampleRate = rate
			var params portaudio.StreamParameters
			params, err = deviceParams(rcfg, false)
			if err == nil {
				stream, err = portaudio.OpenStream(params, out)
			}
		}
		if err != nil {
			lastErr = err
			continue
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			lastErr = err
			continue
		}

		if rate != cfg.SampleRate {
			log.Info("playback device negotiated fallback rate",
				"requested", cfg.SampleRate, "negotiated", rate)
		}
		return &portAudioSink{cfg: cfg, rate: rate, stream: stream, out: out}, nil
	}

	portaudio.Terminate()
	return nil, fmt.Errorf("%w: %v", ErrNoDevice, lastErr)
}

func (s *portAudioSink) Write(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}

	// Accumulate and write in full device frames; partial tail carries
	// over to the next Write.
	s.leftover = append(s.leftover, BytesToSamples(pcm)...)
	frame := len(s.out)
	for len(s.leftover) >= frame {
		if err := ctx.Err(); err != nil {
			return err
		}
		copy(s.out, s.leftover[:frame])
		s.leftover = s.leftover[frame:]
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("audioio: playback write: %w", err)
		}
	}
	return nil
}

func (s *portAudioSink) SampleRate() int { return s.rate }
func (s *portAudioSink) Name() string    { return "portaudio" }

func (s *portAudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Stop()
	err := s.stream.Close()
	s.term.Do(func() { portaudio.Terminate() })
	return err
}

// deviceParams builds stream parameters for an explicit device index.
func deviceParams(cfg Config, input bool) (portaudio.StreamParameters, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return portaudio.StreamParameters{}, fmt.Errorf("audioio: list devices: %w", err)
	}
	if cfg.DeviceIndex >= len(devices) {
		return portaudio.StreamParameters{}, fmt.Errorf("audioio: device index %d out of range", cfg.DeviceIndex)
	}
	dev := devices[cfg.DeviceIndex]

	var params portaudio.StreamParameters
	if input {
		params = portaudio.LowLatencyParameters(dev, nil)
		params.Input.Channels = cfg.Channels
	} else {
		params = portaudio.LowLatencyParameters(nil, dev)
		params.Output.Channels = cfg.Channels
	}
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FrameSize
	return params, nil
}
