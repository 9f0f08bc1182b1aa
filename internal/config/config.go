// Package config provides environment-driven configuration helpers
// for the billy command.
package config

import (
	"os"
	"strconv"
)

// Defaults for Nova Sonic sessions.
const (
	DefaultRegion  = "us-east-1"
	DefaultVoiceID = "matthew"

	DefaultSystemPrompt = "You are Billy Bass, a talking fish mounted on a wall. " +
		"You're helpful and conversational, but keep responses brief - one or two " +
		"sentences max. You're aware you're a fish, but don't constantly mention " +
		"it unless relevant. Be natural and friendly."
)

// Region returns the AWS region from AWS_REGION or the default.
func Region() string {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	return DefaultRegion
}

// VoiceID returns the Nova Sonic voice from BILLY_VOICE or the default.
func VoiceID() string {
	if v := os.Getenv("BILLY_VOICE"); v != "" {
		return v
	}
	return DefaultVoiceID
}

// SystemPrompt returns the persona prompt from BILLY_PROMPT or the default.
func SystemPrompt() string {
	if p := os.Getenv("BILLY_PROMPT"); p != "" {
		return p
	}
	return DefaultSystemPrompt
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}

// CredentialsPresent reports whether AWS credentials are available
// in the environment.
func CredentialsPresent() (bool, []string) {
	var missing []string
	for _, v := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return len(missing) == 0, missing
}

// InputDeviceIndex returns the capture device index from AUDIO_INPUT_INDEX.
// Returns -1 when unset (use the system default).
func InputDeviceIndex() int {
	return envInt("AUDIO_INPUT_INDEX", -1)
}

// OutputDeviceIndex returns the playback device index from AUDIO_OUTPUT_INDEX.
// Returns -1 when unset (use the system default).
func OutputDeviceIndex() int {
	return envInt("AUDIO_OUTPUT_INDEX", -1)
}

// MouthDirection returns the mouth motor direction multiplier from
// MOUTH_DIR. Set to -1 to invert the wiring.
func MouthDirection() float64 {
	return envFloat("MOUTH_DIR", 1)
}

// TorsoDirection returns the torso motor direction multiplier from
// TORSO_DIR. Set to -1 to invert the wiring.
func TorsoDirection() float64 {
	return envFloat("TORSO_DIR", 1)
}

// TorsoForwardThrottle returns the forward lean throttle from
// TORSO_THROTTLE_FWD.
func TorsoForwardThrottle() float64 {
	return envFloat("TORSO_THROTTLE_FWD", 0.55)
}

// TorsoReturnThrottle returns the return-to-rest throttle from
// TORSO_THROTTLE_BACK.
func TorsoReturnThrottle() float64 {
	return envFloat("TORSO_THROTTLE_BACK", -0.55)
}

// TorsoReturnSeconds returns the return drive duration from TORSO_BACK_SEC.
func TorsoReturnSeconds() float64 {
	return envFloat("TORSO_BACK_SEC", 0.45)
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return def
}
