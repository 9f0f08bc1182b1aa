package billy

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/audioio"
)

// runCapture owns the microphone for the lifetime of one run: it opens
// the device, opens a user audio block, and streams frames until
// cancelled or the device fails. The audio block and the device are
// released on every exit path.
func (a *App) runCapture(ctx context.Context) error {
	src, err := a.openSource(a.cfg.Capture)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := a.client.OpenAudioInput(); err != nil {
		return err
	}
	defer a.client.CloseAudioInput()

	log.Info("capture started", "device", src.Name(), "rate", src.SampleRate())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := a.client.SendAudioFrame(frame); err != nil {
			return err
		}

		// Yield between reads so other goroutines run on small cores.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.cfg.CaptureYield):
		}
	}
}

// deactivateCapture stops listening without tearing the session down.
func (a *App) deactivateCapture() {
	if !a.captureOn.CompareAndSwap(true, false) {
		return
	}
	a.torso.SetListening(false)
	a.mu.Lock()
	h := a.capture
	a.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
	log.Info("capture deactivated")
}

func (a *App) openSource(cfg audioio.Config) (audioio.Source, error) {
	if a.newSource != nil {
		return a.newSource(cfg)
	}
	return audioio.OpenSource(cfg)
}
