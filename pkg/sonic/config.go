package sonic

import (
	"errors"
	"fmt"
)

// Default session parameters.
const (
	DefaultModelID     = "amazon.nova-sonic-v1:0"
	DefaultRegion      = "us-east-1"
	DefaultVoiceID     = "matthew"
	DefaultMaxTokens   = 1024
	DefaultTopP        = 0.9
	DefaultTemperature = 0.7

	// InputSampleRate is the PCM rate of microphone audio sent upstream.
	InputSampleRate = 16000
	// OutputSampleRate is the PCM rate of synthesized speech received.
	OutputSampleRate = 24000
)

// Config holds session parameters for the engine.
type Config struct {
	// ModelID is the bidirectional voice model to invoke.
	ModelID string

	// Region selects the service region; Endpoint overrides the derived
	// URL when set.
	Region   string
	Endpoint string

	// VoiceID selects the synthesis voice.
	VoiceID string

	// SystemPrompt is delivered as a SYSTEM text block at session open.
	SystemPrompt string

	// Inference parameters.
	MaxTokens   int
	TopP        float64
	Temperature float64
}

// DefaultConfig returns a Config with the stock Nova Sonic parameters.
func DefaultConfig() Config {
	return Config{
		ModelID:     DefaultModelID,
		Region:      DefaultRegion,
		VoiceID:     DefaultVoiceID,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
		Temperature: DefaultTemperature,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ModelID == "" {
		return errors.New("sonic: model ID required")
	}
	if c.Region == "" && c.Endpoint == "" {
		return errors.New("sonic: region or endpoint required")
	}
	if c.VoiceID == "" {
		return errors.New("sonic: voice ID required")
	}
	if c.TopP < 0 || c.TopP > 1 {
		return errors.New("sonic: topP must be between 0 and 1")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("sonic: temperature must be between 0 and 2")
	}
	return nil
}

// URL returns the stream endpoint for the configured region.
func (c *Config) URL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("wss://bedrock-runtime.%s.amazonaws.com/model/%s/invoke-with-bidirectional-stream",
		c.Region, c.ModelID)
}

// WithVoice returns a copy with the voice set.
func (c Config) WithVoice(voiceID string) Config {
	c.VoiceID = voiceID
	return c
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}
