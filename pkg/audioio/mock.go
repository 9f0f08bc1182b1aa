package audioio

import (
	"context"
	"io"
	"math"
	"sync"
)

// MockSource is an in-memory audio source for testing.
// It serves queued frames first, then synthesized audio (silence or a
// sine wave) on demand.
type MockSource struct {
	cfg Config

	mu     sync.Mutex
	closed bool
	queued [][]byte
	reads  int

	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave makes the mock generate a sine wave instead of silence.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, opts ...MockSourceOption) *MockSource {
	m := &MockSource{cfg: cfg, amplitude: 0.5}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue adds a frame that will be returned by Read before any
// synthesized audio.
func (m *MockSource) Enqueue(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, frame)
}

// Read returns the next frame.
func (m *MockSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, io.EOF
	}
	m.reads++

	if len(m.queued) > 0 {
		frame := m.queued[0]
		m.queued = m.queued[1:]
		return frame, nil
	}

	samples := make([]int16, m.cfg.FrameSize*m.cfg.Channels)
	if m.frequency > 0 {
		for i := 0; i < m.cfg.FrameSize; i++ {
			v := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			s := int16(v * 32767)
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = s
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	return SamplesToBytes(samples), nil
}

// Reads returns how many frames have been read.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// SampleRate returns the configured rate.
func (m *MockSource) SampleRate() int {
	return m.cfg.SampleRate
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close marks the source closed; subsequent Reads return io.EOF.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Source = (*MockSource)(nil)

// MockSink is an in-memory audio sink for testing. It records every
// write and can simulate a device that only supports certain rates.
type MockSink struct {
	cfg  Config
	rate int

	mu     sync.Mutex
	closed bool
	writes [][]byte
}

// NewMockSink creates a new mock audio sink at the requested rate.
func NewMockSink(cfg Config) *MockSink {
	return &MockSink{cfg: cfg, rate: cfg.SampleRate}
}

// NewMockSinkAtRate creates a mock sink pretending the device negotiated
// a different rate than requested.
func NewMockSinkAtRate(cfg Config, rate int) *MockSink {
	return &MockSink{cfg: cfg, rate: rate}
}

// Write records the written frame.
func (m *MockSink) Write(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	m.writes = append(m.writes, cp)
	return nil
}

// Writes returns all recorded frames.
func (m *MockSink) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// SampleRate returns the negotiated rate.
func (m *MockSink) SampleRate() int {
	return m.rate
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Sink = (*MockSink)(nil)
