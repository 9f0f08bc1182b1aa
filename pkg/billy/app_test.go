package billy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/elicazer/billy-bass-nova-sonic/pkg/audioio"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/motor"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/sonic"
)

// fakeTransport stands in for the websocket stream.
type fakeTransport struct {
	mu   sync.Mutex
	sent [][]byte

	inbound   chan []byte
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan []byte, 64)}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Receive() ([]byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return nil, errors.New("use of closed network connection")
	}
	return data, nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.inbound) })
	return nil
}

func (f *fakeTransport) pushAudio(pcm []byte) {
	payload := base64.StdEncoding.EncodeToString(pcm)
	f.inbound <- []byte(fmt.Sprintf(`{"event":{"audioOutput":{"content":"%s"}}}`, payload))
}

// countSent tallies sent events matching the given payload key.
func (f *fakeTransport) countSent(t *testing.T, key string) int {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, data := range f.sent {
		var envelope map[string]map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("invalid sent event: %v", err)
		}
		if _, ok := envelope["event"][key]; ok {
			n++
		}
	}
	return n
}

// textInputs returns the content of every sent textInput event.
func (f *fakeTransport) textInputs(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, data := range f.sent {
		var ev struct {
			Event struct {
				TextInput *struct {
					Content string `json:"content"`
				} `json:"textInput"`
			} `json:"event"`
		}
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("invalid sent event: %v", err)
		}
		if ev.Event.TextInput != nil {
			out = append(out, ev.Event.TextInput.Content)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testConfig() Config {
	cfg := DefaultConfig().WithBackend(audioio.BackendMock)
	cfg.Tick = 5 * time.Millisecond
	cfg.CaptureYield = time.Millisecond
	cfg.InactivityTimeout = time.Minute
	cfg.Sonic.SystemPrompt = "You are a test fish."
	return cfg
}

// loudPCM builds a chunk loud enough to open the mouth.
func loudPCM(samples int) []byte {
	s := make([]int16, samples)
	for i := range s {
		s[i] = 8000
	}
	return audioio.SamplesToBytes(s)
}

type appHarness struct {
	app       *App
	transport *fakeTransport
	source    *audioio.MockSource
	sink      *audioio.MockSink
	mouth     *motor.LogActuator
	torso     *motor.LogActuator
	done      chan error
	cancel    context.CancelFunc
}

func startApp(t *testing.T, cfg Config) *appHarness {
	t.Helper()

	h := &appHarness{
		transport: newFakeTransport(),
		source:    audioio.NewMockSource(cfg.Capture),
		sink:      audioio.NewMockSink(cfg.Playback),
		mouth:     motor.NewLogActuator("mouth"),
		torso:     motor.NewLogActuator("torso"),
		done:      make(chan error, 1),
	}

	app, err := New(cfg, h.mouth, h.torso)
	if err != nil {
		t.Fatalf("new app failed: %v", err)
	}
	app.Client().SetDialer(func(string) (sonic.Transport, error) { return h.transport, nil })
	app.newSource = func(audioio.Config) (audioio.Source, error) { return h.source, nil }
	app.newSink = func(audioio.Config) (audioio.Sink, error) { return h.sink, nil }
	h.app = app

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(3 * time.Second):
			t.Error("app did not shut down")
		}
	})

	go func() { h.done <- app.Run(ctx) }()

	// Session open: sessionStart, promptStart, and the system prompt block.
	waitFor(t, func() bool { return h.transport.countSent(t, "sessionStart") == 1 }, "session never started")
	return h
}

func TestAppLifecycle(t *testing.T) {
	h := startApp(t, testConfig())

	// Capture streams mic frames upstream.
	waitFor(t, func() bool { return h.transport.countSent(t, "audioInput") > 2 }, "no mic frames sent")

	// Synthesized audio reaches the speaker and moves the mouth.
	h.transport.pushAudio(loudPCM(512))
	waitFor(t, func() bool { return len(h.sink.Writes()) > 0 }, "no audio played")
	waitFor(t, func() bool {
		for _, v := range h.mouth.History() {
			if v != 0 {
				return true
			}
		}
		return false
	}, "mouth never moved")

	// Torso saw the chunk on a supervisor tick.
	waitFor(t, func() bool {
		for _, v := range h.torso.History() {
			if v != 0 {
				return true
			}
		}
		return false
	}, "torso never leaned")

	h.cancel()
	select {
	case err := <-h.done:
		h.done <- err
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if !h.source.Closed() {
		t.Error("expected capture device released")
	}
	if !h.sink.Closed() {
		t.Error("expected playback device released")
	}
	if got := h.mouth.Last(); got != 0 {
		t.Errorf("expected mouth zeroed at shutdown, got %.2f", got)
	}
	if got := h.torso.Last(); got != 0 {
		t.Errorf("expected torso zeroed at shutdown, got %.2f", got)
	}

	// Shutdown is idempotent.
	h.app.Shutdown()
}

func TestPlaybackResamplesToNegotiatedRate(t *testing.T) {
	cfg := testConfig()
	h := &appHarness{
		transport: newFakeTransport(),
		source:    audioio.NewMockSource(cfg.Capture),
		sink:      audioio.NewMockSinkAtRate(cfg.Playback, 48000),
		mouth:     motor.NewLogActuator("mouth"),
		torso:     motor.NewLogActuator("torso"),
		done:      make(chan error, 1),
	}
	app, err := New(cfg, h.mouth, h.torso)
	if err != nil {
		t.Fatalf("new app failed: %v", err)
	}
	app.Client().SetDialer(func(string) (sonic.Transport, error) { return h.transport, nil })
	app.newSource = func(audioio.Config) (audioio.Source, error) { return h.source, nil }
	app.newSink = func(audioio.Config) (audioio.Sink, error) { return h.sink, nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { h.done <- app.Run(ctx) }()
	defer func() {
		cancel()
		<-h.done
	}()

	waitFor(t, func() bool { return h.transport.countSent(t, "sessionStart") == 1 }, "session never started")

	// 240 samples at 24 kHz become 480 at the device's 48 kHz.
	h.transport.pushAudio(loudPCM(240))
	waitFor(t, func() bool { return len(h.sink.Writes()) > 0 }, "no audio played")

	if got := len(h.sink.Writes()[0]); got != 480*2 {
		t.Errorf("expected 960 bytes after resampling, got %d", got)
	}
}

func TestSupervisorRestartsFailedCapture(t *testing.T) {
	cfg := testConfig()

	h := &appHarness{
		transport: newFakeTransport(),
		source:    audioio.NewMockSource(cfg.Capture),
		sink:      audioio.NewMockSink(cfg.Playback),
		mouth:     motor.NewLogActuator("mouth"),
		torso:     motor.NewLogActuator("torso"),
		done:      make(chan error, 1),
	}
	app, err := New(cfg, h.mouth, h.torso)
	if err != nil {
		t.Fatalf("new app failed: %v", err)
	}
	app.Client().SetDialer(func(string) (sonic.Transport, error) { return h.transport, nil })

	// First open gets a source that dies immediately; the next tick
	// restarts the task, which opens a healthy replacement.
	replaced := audioio.NewMockSource(cfg.Capture)
	var mu sync.Mutex
	opens := 0
	app.newSource = func(audioio.Config) (audioio.Source, error) {
		mu.Lock()
		defer mu.Unlock()
		opens++
		if opens == 1 {
			return h.source, nil
		}
		return replaced, nil
	}
	app.newSink = func(audioio.Config) (audioio.Sink, error) { return h.sink, nil }
	h.source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- app.Run(ctx) }()
	defer func() {
		cancel()
		<-h.done
	}()

	waitFor(t, func() bool {
		app.mu.Lock()
		defer app.mu.Unlock()
		return app.capture != nil && app.capture.Restarts() >= 1
	}, "capture task never restarted")

	waitFor(t, func() bool { return replaced.Reads() > 0 }, "restarted capture never read")
}

func TestAnnouncementDrainsOnTick(t *testing.T) {
	h := startApp(t, testConfig())

	h.app.Announce("the fryer is on fire")

	waitFor(t, func() bool {
		for _, text := range h.transport.textInputs(t) {
			if text == "the fryer is on fire" {
				return true
			}
		}
		return false
	}, "announcement never delivered")
}

func TestInactivityTriggersGoodbye(t *testing.T) {
	cfg := testConfig()
	cfg.InactivityTimeout = 60 * time.Millisecond
	h := startApp(t, cfg)

	waitFor(t, func() bool {
		for _, text := range h.transport.textInputs(t) {
			if text == cfg.GoodbyeText {
				return true
			}
		}
		return false
	}, "goodbye never announced")

	if h.app.captureOn.Load() {
		t.Error("expected capture deactivated after inactivity")
	}

	// The open audio block was closed when capture wound down.
	waitFor(t, func() bool {
		return h.transport.countSent(t, "contentEnd") >= 2 // system prompt + audio block
	}, "audio block never closed")

	// Only one goodbye, ever.
	time.Sleep(5 * cfg.Tick)
	var goodbyes int
	for _, text := range h.transport.textInputs(t) {
		if text == cfg.GoodbyeText {
			goodbyes++
		}
	}
	if goodbyes != 1 {
		t.Errorf("expected exactly one goodbye, got %d", goodbyes)
	}
}
