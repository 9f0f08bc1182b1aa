// Billy Bass voice assistant. Streams the microphone to Amazon Nova
// Sonic over a bidirectional session and animates the fish from the
// audio coming back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/elicazer/billy-bass-nova-sonic/internal/config"
	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/audioio"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/billy"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/motor"
)

func main() {
	cfg := parseFlags()
	log.Init(config.LogLevel())

	if ok, missing := config.CredentialsPresent(); !ok {
		fmt.Fprintf(os.Stderr, "missing AWS credentials: %s\n", strings.Join(missing, ", "))
		os.Exit(1)
	}

	app, err := billy.New(cfg, motor.NewLogActuator("mouth"), motor.NewLogActuator("torso"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exited with error", "err", err)
		os.Exit(1)
	}
	log.Info("goodbye")
}

// parseFlags merges flags over environment defaults.
func parseFlags() billy.Config {
	cfg := billy.DefaultConfig().LoadEnv()

	backend := flag.String("backend", string(audioio.BackendPortAudio), "Audio backend: portaudio, miniaudio, mock")
	voice := flag.String("voice", "", "Nova Sonic voice ID (overrides BILLY_VOICE)")
	inputIdx := flag.Int("input", cfg.Capture.DeviceIndex, "Capture device index, -1 for default")
	outputIdx := flag.Int("output", cfg.Playback.DeviceIndex, "Playback device index, -1 for default")
	flag.Parse()

	cfg = cfg.WithBackend(audioio.Backend(*backend))
	if *voice != "" {
		cfg.Sonic = cfg.Sonic.WithVoice(*voice)
	}
	cfg.Capture.DeviceIndex = *inputIdx
	cfg.Playback.DeviceIndex = *outputIdx
	return cfg
}
