package sonic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Roles for content blocks.
const (
	RoleSystem    = "SYSTEM"
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
)

// Content block types.
const (
	ContentText  = "TEXT"
	ContentAudio = "AUDIO"
)

// generationStageSpeculative marks draft assistant text that has not
// been finalized yet.
const generationStageSpeculative = "SPECULATIVE"

// Event is the outbound wire envelope: one JSON object per event,
// wrapped as {"event": {<name>: {...}}}. Exactly one field is set.
type Event struct {
	Event EventBody `json:"event"`
}

// EventBody holds the single payload of an Event.
type EventBody struct {
	SessionStart *SessionStart `json:"sessionStart,omitempty"`
	PromptStart  *PromptStart  `json:"promptStart,omitempty"`
	ContentStart *ContentStart `json:"contentStart,omitempty"`
	TextInput    *TextInput    `json:"textInput,omitempty"`
	AudioInput   *AudioInput   `json:"audioInput,omitempty"`
	ContentEnd   *ContentEnd   `json:"contentEnd,omitempty"`
	PromptEnd    *PromptEnd    `json:"promptEnd,omitempty"`
	SessionEnd   *SessionEnd   `json:"sessionEnd,omitempty"`
}

// InferenceConfig carries the sampling parameters sent at session start.
type InferenceConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	Temperature float64 `json:"temperature"`
}

// SessionStart initializes a session.
type SessionStart struct {
	InferenceConfiguration InferenceConfig `json:"inferenceConfiguration"`
}

// TextOutputConfig declares the expected text output modality.
type TextOutputConfig struct {
	MediaType string `json:"mediaType"`
}

// AudioOutputConfig declares the expected audio output modality.
type AudioOutputConfig struct {
	MediaType     string `json:"mediaType"`
	SampleRate    int    `json:"sampleRateHertz"`
	SampleSizeBit int    `json:"sampleSizeBits"`
	ChannelCount  int    `json:"channelCount"`
	VoiceID       string `json:"voiceId"`
	Encoding      string `json:"encoding"`
	AudioType     string `json:"audioType"`
}

// PromptStart declares the prompt and its output modalities.
type PromptStart struct {
	PromptName               string            `json:"promptName"`
	TextOutputConfiguration  TextOutputConfig  `json:"textOutputConfiguration"`
	AudioOutputConfiguration AudioOutputConfig `json:"audioOutputConfiguration"`
}

// TextInputConfig declares the encoding of a TEXT content block.
type TextInputConfig struct {
	MediaType string `json:"mediaType"`
}

// AudioInputConfig declares the encoding of an AUDIO content block.
type AudioInputConfig struct {
	MediaType     string `json:"mediaType"`
	SampleRate    int    `json:"sampleRateHertz"`
	SampleSizeBit int    `json:"sampleSizeBits"`
	ChannelCount  int    `json:"channelCount"`
	AudioType     string `json:"audioType"`
	Encoding      string `json:"encoding"`
}

// ContentStart opens a content block.
type ContentStart struct {
	PromptName  string            `json:"promptName"`
	ContentName string            `json:"contentName"`
	Type        string            `json:"type"`
	Interactive bool              `json:"interactive"`
	Role        string            `json:"role"`
	TextConfig  *TextInputConfig  `json:"textInputConfiguration,omitempty"`
	AudioConfig *AudioInputConfig `json:"audioInputConfiguration,omitempty"`
}

// TextInput carries one text payload for an open TEXT block.
type TextInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

// AudioInput carries one base64-encoded PCM payload for an open AUDIO block.
type AudioInput struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

// ContentEnd closes a content block.
type ContentEnd struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
}

// PromptEnd closes the prompt.
type PromptEnd struct {
	PromptName string `json:"promptName"`
}

// SessionEnd closes the session. It has no fields.
type SessionEnd struct{}

// Builders. These guarantee field completeness and escaping structurally
// instead of assembling JSON by hand.

func newSessionStart(inf InferenceConfig) Event {
	return Event{Event: EventBody{SessionStart: &SessionStart{InferenceConfiguration: inf}}}
}

func newPromptStart(promptName, voiceID string, outputRate int) Event {
	return Event{Event: EventBody{PromptStart: &PromptStart{
		PromptName:              promptName,
		TextOutputConfiguration: TextOutputConfig{MediaType: "text/plain"},
		AudioOutputConfiguration: AudioOutputConfig{
			MediaType:     "audio/lpcm",
			SampleRate:    outputRate,
			SampleSizeBit: 16,
			ChannelCount:  1,
			VoiceID:       voiceID,
			Encoding:      "base64",
			AudioType:     "SPEECH",
		},
	}}}
}

func newTextContentStart(promptName, contentName, role string, interactive bool) Event {
	return Event{Event: EventBody{ContentStart: &ContentStart{
		PromptName:  promptName,
		ContentName: contentName,
		Type:        ContentText,
		Interactive: interactive,
		Role:        role,
		TextConfig:  &TextInputConfig{MediaType: "text/plain"},
	}}}
}

func newAudioContentStart(promptName, contentName string, inputRate int) Event {
	return Event{Event: EventBody{ContentStart: &ContentStart{
		PromptName:  promptName,
		ContentName: contentName,
		Type:        ContentAudio,
		Interactive: true,
		Role:        RoleUser,
		AudioConfig: &AudioInputConfig{
			MediaType:     "audio/lpcm",
			SampleRate:    inputRate,
			SampleSizeBit: 16,
			ChannelCount:  1,
			AudioType:     "SPEECH",
			Encoding:      "base64",
		},
	}}}
}

func newTextInput(promptName, contentName, content string) Event {
	return Event{Event: EventBody{TextInput: &TextInput{
		PromptName:  promptName,
		ContentName: contentName,
		Content:     content,
	}}}
}

func newAudioInput(promptName, contentName string, pcm []byte) Event {
	return Event{Event: EventBody{AudioInput: &AudioInput{
		PromptName:  promptName,
		ContentName: contentName,
		Content:     base64.StdEncoding.EncodeToString(pcm),
	}}}
}

func newContentEnd(promptName, contentName string) Event {
	return Event{Event: EventBody{ContentEnd: &ContentEnd{
		PromptName:  promptName,
		ContentName: contentName,
	}}}
}

func newPromptEnd(promptName string) Event {
	return Event{Event: EventBody{PromptEnd: &PromptEnd{PromptName: promptName}}}
}

func newSessionEnd() Event {
	return Event{Event: EventBody{SessionEnd: &SessionEnd{}}}
}

// Inbound events.

// InboundContentStart announces a new output content block.
type InboundContentStart struct {
	Role string `json:"role"`
	// AdditionalModelFields is a JSON string; when present it may carry
	// {"generationStage":"SPECULATIVE"}.
	AdditionalModelFields string `json:"additionalModelFields"`
}

// Speculative reports whether this block is draft (not yet finalized)
// assistant output.
func (c *InboundContentStart) Speculative() bool {
	if c.AdditionalModelFields == "" {
		return false
	}
	var fields struct {
		GenerationStage string `json:"generationStage"`
	}
	if err := json.Unmarshal([]byte(c.AdditionalModelFields), &fields); err != nil {
		return false
	}
	return fields.GenerationStage == generationStageSpeculative
}

// InboundTextOutput carries a text payload from the model.
type InboundTextOutput struct {
	Content string `json:"content"`
}

// InboundAudioOutput carries a base64-encoded PCM payload from the model.
type InboundAudioOutput struct {
	Content string `json:"content"`
}

// Decode returns the raw PCM bytes of the audio payload.
func (a *InboundAudioOutput) Decode() ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(a.Content)
	if err != nil {
		return nil, &ProtocolError{Event: "audioOutput", Reason: fmt.Sprintf("bad base64 payload: %v", err)}
	}
	return pcm, nil
}

// InboundEvent is the demultiplexed inbound envelope. Unrecognized event
// types leave all fields nil and are ignored by the receive loop.
type InboundEvent struct {
	Event struct {
		ContentStart *InboundContentStart `json:"contentStart"`
		TextOutput   *InboundTextOutput   `json:"textOutput"`
		AudioOutput  *InboundAudioOutput  `json:"audioOutput"`
	} `json:"event"`
}

// parseInbound parses one inbound wire message.
func parseInbound(data []byte) (*InboundEvent, error) {
	var ev InboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &ProtocolError{Event: "unknown", Reason: fmt.Sprintf("malformed event: %v", err)}
	}
	return &ev, nil
}
