package audioio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
)

// miniaudioSource captures via a malgo device. The device callback pushes
// raw bytes into a channel sized for a few frames; Read reassembles them
// into fixed-size frames.
type miniaudioSource struct {
	cfg Config

	audioCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu      sync.Mutex
	closed  bool
	pending []byte
	data    chan []byte
}

func openMiniaudioSource(cfg Config) (Source, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("audioio: malgo init: %w", err)
	}

	s := &miniaudioSource{
		cfg:      cfg,
		audioCtx: audioCtx,
		data:     make(chan []byte, 8),
	}

	dcfg := malgo.DefaultDeviceConfig(malgo.Capture)
	dcfg.SampleRate = uint32(cfg.SampleRate)
	dcfg.Capture.Format = malgo.FormatS16
	dcfg.Capture.Channels = uint32(cfg.Channels)
	dcfg.Alsa.NoMMap = 1
	dcfg.PerformanceProfile = malgo.LowLatency

	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16) * cfg.Channels
	device, err := malgo.InitDevice(audioCtx.Context, dcfg, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(pInput) < n {
				return
			}
			chunk := make([]byte, n)
			copy(chunk, pInput[:n])
			select {
			case s.data <- chunk:
			default:
				// Consumer fell behind; drop rather than block the
				// audio thread.
			}
		},
	})
	if err != nil {
		audioCtx.Uninit()
		audioCtx.Free()
		return nil, fmt.Errorf("audioio: init capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		audioCtx.Uninit()
		audioCtx.Free()
		return nil, fmt.Errorf("audioio: start capture device: %w", err)
	}

	s.device = device
	log.Debug("miniaudio capture open", "sample_rate", cfg.SampleRate)
	return s, nil
}

func (s *miniaudioSource) Read(ctx context.Context) ([]byte, error) {
	want := s.cfg.FrameBytes()
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, io.EOF
		}
		if len(s.pending) >= want {
			frame := s.pending[:want]
			s.pending = s.pending[want:]
			s.mu.Unlock()
			return frame, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-s.data:
			if !ok {
				return nil, io.EOF
			}
			s.mu.Lock()
			s.pending = append(s.pending, chunk...)
			s.mu.Unlock()
		}
	}
}

func (s *miniaudioSource) SampleRate() int { return s.cfg.SampleRate }
func (s *miniaudioSource) Name() string    { return "miniaudio" }

func (s *miniaudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.device.Uninit()
	s.audioCtx.Uninit()
	s.audioCtx.Free()
	return nil
}

// miniaudioSink plays via a malgo device. Write appends to an internal
// buffer drained by the device callback; silence is emitted on underrun.
// Write blocks while more than two device frames are buffered, so the
// caller's drain loop tracks audible output instead of racing ahead of it.
type miniaudioSink struct {
	cfg  Config
	rate int

	audioCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu      sync.Mutex
	closed  bool
	buf     []byte
	drained chan struct{}
}

func openMiniaudioSink(cfg Config) (Sink, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("audioio: malgo init: %w", err)
	}

	// miniaudio resamples internally, so the requested rate always
	// sticks; the fallback list only matters for PortAudio.
	s := &miniaudioSink{
		cfg:      cfg,
		rate:     cfg.SampleRate,
		audioCtx: audioCtx,
		drained:  make(chan struct{}, 1),
	}

	dcfg := malgo.DefaultDeviceConfig(malgo.Playback)
	dcfg.SampleRate = uint32(cfg.SampleRate)
	dcfg.Playback.Format = malgo.FormatS16
	dcfg.Playback.Channels = uint32(cfg.Channels)
	dcfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(audioCtx.Context, dcfg, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			s.fill(pOutput)
		},
	})
	if err != nil {
		audioCtx.Uninit()
		audioCtx.Free()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		audioCtx.Uninit()
		audioCtx.Free()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	s.device = device
	log.Debug("miniaudio playback open", "sample_rate", cfg.SampleRate)
	return s, nil
}

// fill copies buffered audio into the device's output buffer. Any
// remainder of out stays zeroed: silence on underrun.
func (s *miniaudioSink) fill(out []byte) {
	s.mu.Lock()
	n := copy(out, s.buf)
	s.buf = s.buf[n:]
	s.mu.Unlock()

	if n > 0 {
		select {
		case s.drained <- struct{}{}:
		default:
		}
	}
}

func (s *miniaudioSink) Write(ctx context.Context, pcm []byte) error {
	maxBacklog := 2 * s.cfg.FrameBytes()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return io.ErrClosedPipe
		}
		if len(s.buf) <= maxBacklog {
			s.buf = append(s.buf, pcm...)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.drained:
		}
	}
}

func (s *miniaudioSink) SampleRate() int { return s.rate }
func (s *miniaudioSink) Name() string    { return "miniaudio" }

func (s *miniaudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Wake a Write blocked on backlog so it observes closed.
	select {
	case s.drained <- struct{}{}:
	default:
	}

	s.device.Uninit()
	s.audioCtx.Uninit()
	s.audioCtx.Free()
	return nil
}
