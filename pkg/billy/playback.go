package billy

import (
	"context"
	"errors"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/audioio"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/sonic"
)

// runPlayback drains the session playback queue into the speaker in
// arrival order. Chunks stay at the canonical model rate until the
// last moment; resampling happens only when the device negotiated a
// different rate. After each write the canonical-rate chunk is offered
// to the mouth pipeline.
func (a *App) runPlayback(ctx context.Context) error {
	sink, err := a.openSink(a.cfg.Playback)
	if err != nil {
		return err
	}
	defer sink.Close()

	rate := sink.SampleRate()
	if rate != a.cfg.Playback.SampleRate {
		log.Warn("playback device fell back", "requested", a.cfg.Playback.SampleRate, "got", rate)
	}
	log.Info("playback started", "device", sink.Name(), "rate", rate)

	for {
		chunk, err := a.client.Queue().Get(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, sonic.ErrSessionClosed) {
				return nil
			}
			return err
		}

		out := chunk.PCM
		if rate != a.cfg.Playback.SampleRate {
			out = audioio.ResampleBytes(chunk.PCM, a.cfg.Playback.SampleRate, rate)
		}
		if err := sink.Write(ctx, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		a.noteChunk()
		a.dispatchMouth(chunk.PCM)
	}
}

// dispatchMouth hands a chunk to the mouth computation without ever
// blocking the playback loop. A chunk arriving while the previous one
// is still being processed is skipped; the next one carries nearly the
// same envelope.
func (a *App) dispatchMouth(pcm []byte) {
	select {
	case a.mouthSem <- struct{}{}:
	default:
		return
	}
	go func() {
		defer func() { <-a.mouthSem }()
		opening := a.mouthCtl.ProcessChunk(pcm)
		a.mouthDrv.Drive(opening)
	}()
}

func (a *App) openSink(cfg audioio.Config) (audioio.Sink, error) {
	if a.newSink != nil {
		return a.newSink(cfg)
	}
	return audioio.OpenSink(cfg)
}
