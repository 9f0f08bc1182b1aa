// Package sonic implements the bidirectional session protocol engine for
// Amazon Nova Sonic speech-to-speech streaming.
//
// The engine owns the session/prompt/content lifecycle, serializes
// outbound events, and demultiplexes inbound events into text callbacks
// and a playback queue of decoded audio. It is the only source of audio
// for the rest of the system.
package sonic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
)

// State is the session lifecycle state. Transitions are one-way except
// Streaming, which is re-entered per utterance as audio input content
// blocks open and close.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateSessionOpen
	StatePromptOpen
	StateSystemPromptDelivered
	StateStreaming
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateSessionOpen:
		return "session-open"
	case StatePromptOpen:
		return "prompt-open"
	case StateSystemPromptDelivered:
		return "system-prompt-delivered"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// chunkWorkers bounds concurrent OnAudioChunk dispatches so a slow
// actuation computation can never stall the receive loop.
const chunkWorkers = 2

// Client drives one bidirectional Nova Sonic session.
//
// Callbacks fire from the receive loop goroutine, except OnAudioChunk
// which is dispatched on a small bounded worker pool and must tolerate
// being skipped under load.
type Client struct {
	cfg  Config
	dial func(endpoint string) (Transport, error)

	// OnUserText receives final transcriptions of user speech.
	OnUserText func(text string)
	// OnAssistantText receives finalized assistant text.
	OnAssistantText func(text string)
	// OnAssistantPreview receives speculative (draft) assistant text.
	// It is distinct from OnAssistantText and may be left nil.
	OnAssistantPreview func(text string)
	// OnAudioChunk receives each decoded PCM chunk as it arrives,
	// in parallel with it being queued for playback.
	OnAudioChunk func(pcm []byte)

	mu               sync.Mutex
	state            State
	active           bool
	transport        Transport
	promptName       string
	audioContentName string // non-empty while a USER audio block is open

	queue    *PlaybackQueue
	chunkSem chan struct{}

	// Receive-side demux state, touched only by the receive loop.
	role        string
	speculative bool
}

// NewClient creates a session engine for the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:      cfg,
		dial:     dialWebSocket,
		state:    StateDisconnected,
		queue:    NewPlaybackQueue(),
		chunkSem: make(chan struct{}, chunkWorkers),
	}, nil
}

// SetDialer overrides how the transport is established. Intended for
// tests and alternative transports.
func (c *Client) SetDialer(dial func(endpoint string) (Transport, error)) {
	c.dial = dial
}

// Queue returns the playback queue fed by the receive loop.
func (c *Client) Queue() *PlaybackQueue {
	return c.queue
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the session is streaming and usable.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Connect establishes the transport. Failure is fatal: no retry is
// attempted and the error propagates to the caller.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return fmt.Errorf("sonic: connect from state %s", c.state)
	}

	log.Info("connecting voice model stream", "endpoint", c.cfg.URL())
	t, err := c.dial(c.cfg.URL())
	if err != nil {
		return err
	}

	c.transport = t
	c.state = StateConnected
	return nil
}

// OpenSession initializes the session: inference parameters, prompt
// modalities, and the SYSTEM text block carrying the persona prompt.
// On success the session is active and streaming.
func (c *Client) OpenSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return fmt.Errorf("sonic: open session from state %s", c.state)
	}

	c.promptName = uuid.NewString()

	if err := c.sendLocked(newSessionStart(InferenceConfig{
		MaxTokens:   c.cfg.MaxTokens,
		TopP:        c.cfg.TopP,
		Temperature: c.cfg.Temperature,
	})); err != nil {
		return fmt.Errorf("sonic: session start: %w", err)
	}
	c.state = StateSessionOpen

	if err := c.sendLocked(newPromptStart(c.promptName, c.cfg.VoiceID, OutputSampleRate)); err != nil {
		return fmt.Errorf("sonic: prompt start: %w", err)
	}
	c.state = StatePromptOpen

	// System prompt rides in its own TEXT block: start, payload, end.
	sysContent := uuid.NewString()
	if err := c.sendLocked(newTextContentStart(c.promptName, sysContent, RoleSystem, false)); err != nil {
		return fmt.Errorf("sonic: system content start: %w", err)
	}
	if err := c.sendLocked(newTextInput(c.promptName, sysContent, c.cfg.SystemPrompt)); err != nil {
		return fmt.Errorf("sonic: system prompt: %w", err)
	}
	if err := c.sendLocked(newContentEnd(c.promptName, sysContent)); err != nil {
		return fmt.Errorf("sonic: system content end: %w", err)
	}
	c.state = StateSystemPromptDelivered

	c.state = StateStreaming
	c.active = true
	log.Info("session open", "prompt", c.promptName, "voice", c.cfg.VoiceID)
	return nil
}

// OpenAudioInput opens a USER audio content block for one utterance.
// The block gets a fresh contentName; calling again before
// CloseAudioInput is a protocol violation.
func (c *Client) OpenAudioInput() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return ErrSessionClosed
	}
	if c.audioContentName != "" {
		return ErrAudioInputOpen
	}

	name := uuid.NewString()
	if err := c.sendLocked(newAudioContentStart(c.promptName, name, InputSampleRate)); err != nil {
		return fmt.Errorf("sonic: audio content start: %w", err)
	}
	c.audioContentName = name
	return nil
}

// SendAudioFrame emits one audio payload for the open audio block.
// When the session is inactive or no block is open the frame is silently
// dropped - backpressure avoidance, not an error.
func (c *Client) SendAudioFrame(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.audioContentName == "" {
		return nil
	}
	return c.sendLocked(newAudioInput(c.promptName, c.audioContentName, pcm))
}

// CloseAudioInput ends the open audio block. No-op when none is open,
// so cleanup paths can call it unconditionally.
func (c *Client) CloseAudioInput() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.audioContentName == "" {
		return nil
	}
	name := c.audioContentName
	c.audioContentName = ""

	if !c.active {
		return nil
	}
	if err := c.sendLocked(newContentEnd(c.promptName, name)); err != nil {
		return fmt.Errorf("sonic: audio content end: %w", err)
	}
	return nil
}

// SendTextTurn delivers an out-of-band text turn (start, payload, end)
// without disturbing the audio content lifecycle.
func (c *Client) SendTextTurn(text, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return ErrSessionClosed
	}

	name := uuid.NewString()
	if err := c.sendLocked(newTextContentStart(c.promptName, name, role, false)); err != nil {
		return fmt.Errorf("sonic: text content start: %w", err)
	}
	if err := c.sendLocked(newTextInput(c.promptName, name, text)); err != nil {
		return fmt.Errorf("sonic: text input: %w", err)
	}
	if err := c.sendLocked(newContentEnd(c.promptName, name)); err != nil {
		return fmt.Errorf("sonic: text content end: %w", err)
	}
	return nil
}

// ReceiveLoop reads inbound events until the session goes inactive, the
// context is cancelled, or the transport fails. Transport errors during
// an active session terminate only this loop; restart policy belongs to
// the supervisor.
func (c *Client) ReceiveLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		c.mu.Lock()
		active, t := c.active, c.transport
		c.mu.Unlock()
		if !active || t == nil {
			return nil
		}

		data, err := t.Receive()
		if err != nil {
			if ctx.Err() != nil || isExpectedTeardown(err) || !c.Active() {
				return nil
			}
			log.Error("receive loop transport error", "err", err)
			return err
		}

		c.handleInbound(data)
	}
}

// handleInbound dispatches one inbound event. Malformed events are
// logged and skipped; unrecognized types are ignored.
func (c *Client) handleInbound(data []byte) {
	ev, err := parseInbound(data)
	if err != nil {
		log.Warn("dropping malformed event", "err", err)
		return
	}

	switch {
	case ev.Event.ContentStart != nil:
		c.role = ev.Event.ContentStart.Role
		c.speculative = ev.Event.ContentStart.Speculative()

	case ev.Event.TextOutput != nil:
		text := ev.Event.TextOutput.Content
		switch c.role {
		case RoleUser:
			if c.OnUserText != nil {
				c.OnUserText(text)
			}
		case RoleAssistant:
			if c.speculative {
				if c.OnAssistantPreview != nil {
					c.OnAssistantPreview(text)
				}
			} else if c.OnAssistantText != nil {
				c.OnAssistantText(text)
			}
		}

	case ev.Event.AudioOutput != nil:
		pcm, err := ev.Event.AudioOutput.Decode()
		if err != nil {
			log.Warn("dropping undecodable audio event", "err", err)
			return
		}
		c.queue.Put(pcm)
		c.dispatchChunk(pcm)

	default:
		// Unknown event type: tolerated for forward compatibility.
		log.Debug("ignoring unrecognized event")
	}
}

// dispatchChunk offers pcm to the audio chunk callback without ever
// blocking the receive loop. Callback panics are swallowed; if all
// workers are busy the offer is skipped.
func (c *Client) dispatchChunk(pcm []byte) {
	if c.OnAudioChunk == nil {
		return
	}

	select {
	case c.chunkSem <- struct{}{}:
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Debug("audio chunk callback panic", "panic", r)
				}
				<-c.chunkSem
			}()
			c.OnAudioChunk(pcm)
		}()
	default:
		log.Debug("audio chunk callback busy, skipping dispatch")
	}
}

// Close ends the session: prompt-end, session-end, transport close.
// Idempotent. Errors while tearing down an already-inactive session are
// suppressed; an error while the session was still active is reported.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	wasActive := c.active
	c.active = false
	c.state = StateClosing
	t := c.transport
	prompt := c.promptName
	c.audioContentName = ""
	c.mu.Unlock()

	var err error
	if t != nil {
		if prompt != "" {
			if e := sendEvent(t, newPromptEnd(prompt)); e != nil && err == nil {
				err = e
			}
			if e := sendEvent(t, newSessionEnd()); e != nil && err == nil {
				err = e
			}
		}
		if e := t.Close(); e != nil && err == nil {
			err = e
		}
	}
	c.queue.Close()

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()

	if err != nil {
		if !wasActive || isExpectedTeardown(err) {
			log.Debug("suppressed teardown error", "err", err)
			return nil
		}
		return fmt.Errorf("sonic: close: %w", err)
	}
	log.Info("session closed", "prompt", prompt)
	return nil
}

// sendLocked serializes and sends one event. Callers hold c.mu, which
// is what guarantees start-before-payload-before-end per content block.
func (c *Client) sendLocked(ev Event) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	return sendEvent(c.transport, ev)
}

func sendEvent(t Transport, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sonic: encode event: %w", err)
	}
	return t.Send(data)
}
