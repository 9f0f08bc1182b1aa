package billy

import (
	"testing"
	"time"

	"github.com/elicazer/billy-bass-nova-sonic/pkg/audioio"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Tick != 100*time.Millisecond {
		t.Errorf("expected 100ms tick, got %v", cfg.Tick)
	}
	if cfg.InactivityTimeout != 30*time.Second {
		t.Errorf("expected 30s inactivity timeout, got %v", cfg.InactivityTimeout)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Errorf("expected 16kHz capture, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Playback.SampleRate != 24000 {
		t.Errorf("expected 24kHz playback, got %d", cfg.Playback.SampleRate)
	}
	if cfg.GoodbyeText == "" {
		t.Error("expected a goodbye announcement configured")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config valid, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero tick", func(c *Config) { c.Tick = 0 }, true},
		{"zero inactivity timeout", func(c *Config) { c.InactivityTimeout = 0 }, true},
		{"bad sonic config", func(c *Config) { c.Sonic.VoiceID = "" }, true},
		{"bad capture config", func(c *Config) { c.Capture.SampleRate = 0 }, true},
		{"bad playback config", func(c *Config) { c.Playback.Backend = "pulse" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithBackend(t *testing.T) {
	cfg := DefaultConfig().WithBackend(audioio.BackendMock)
	if cfg.Capture.Backend != audioio.BackendMock || cfg.Playback.Backend != audioio.BackendMock {
		t.Errorf("expected both devices on mock backend, got %s/%s",
			cfg.Capture.Backend, cfg.Playback.Backend)
	}
}
