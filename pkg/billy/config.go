package billy

import (
	"errors"
	"time"

	"github.com/elicazer/billy-bass-nova-sonic/internal/config"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/audioio"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/mouth"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/sonic"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/torso"
)

// Config holds all tunable parameters for the fish application.
type Config struct {
	// Sonic configures the voice model session.
	Sonic sonic.Config

	// Capture and Playback configure the audio devices.
	Capture  audioio.Config
	Playback audioio.Config

	// MouthDriver and Torso configure the actuation layers.
	MouthDriver mouth.DriverConfig
	Torso       torso.Config

	// Tick is the supervisor polling interval.
	Tick time.Duration

	// InactivityTimeout ends listening after this much silence.
	InactivityTimeout time.Duration

	// CaptureYield is the pause between mic reads that keeps the
	// scheduler responsive.
	CaptureYield time.Duration

	// GoodbyeText is announced when the inactivity timer fires.
	GoodbyeText string
}

// DefaultConfig returns a Config with stock tuning.
func DefaultConfig() Config {
	return Config{
		Sonic:             sonic.DefaultConfig(),
		Capture:           audioio.DefaultCaptureConfig(),
		Playback:          audioio.DefaultPlaybackConfig(),
		MouthDriver:       mouth.DefaultDriverConfig(),
		Torso:             torso.DefaultConfig(),
		Tick:              100 * time.Millisecond,
		InactivityTimeout: 30 * time.Second,
		CaptureYield:      10 * time.Millisecond,
		GoodbyeText:       "Say goodbye briefly, you are going back to sleep.",
	}
}

// LoadEnv applies environment overrides to a copy of the config.
func (c Config) LoadEnv() Config {
	c.Sonic.Region = config.Region()
	c.Sonic.VoiceID = config.VoiceID()
	c.Sonic.SystemPrompt = config.SystemPrompt()
	c.Capture.DeviceIndex = config.InputDeviceIndex()
	c.Playback.DeviceIndex = config.OutputDeviceIndex()
	c.MouthDriver.Direction = config.MouthDirection()
	c.Torso.Direction = config.TorsoDirection()
	c.Torso.ForwardThrottle = config.TorsoForwardThrottle()
	c.Torso.ReturnThrottle = config.TorsoReturnThrottle()
	c.Torso.ReturnDuration = time.Duration(config.TorsoReturnSeconds() * float64(time.Second))
	return c
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Sonic.Validate(); err != nil {
		return err
	}
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	if err := c.Playback.Validate(); err != nil {
		return err
	}
	if c.Tick <= 0 {
		return errors.New("billy: tick must be positive")
	}
	if c.InactivityTimeout <= 0 {
		return errors.New("billy: inactivity timeout must be positive")
	}
	return nil
}

// WithBackend returns a copy with both audio devices on the given
// backend.
func (c Config) WithBackend(b audioio.Backend) Config {
	c.Capture.Backend = b
	c.Playback.Backend = b
	return c
}
