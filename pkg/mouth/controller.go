// Package mouth converts synthesized speech audio into physically safe
// mouth motor commands.
//
// The Controller maps PCM chunks to a smoothed 0-100 opening percentage;
// the Driver maps opening to short motor pulses under a duty-cycle cap.
package mouth

import (
	"math"
	"sync"
)

// Tunable parameters for the amplitude-to-opening mapping.
const (
	// SmoothingWindow is how many recent amplitudes are averaged.
	SmoothingWindow = 3

	// MinThreshold is the normalized amplitude below which audio is
	// treated as silence.
	MinThreshold = 0.015
	// MaxThreshold is the amplitude mapped to a fully open mouth.
	MaxThreshold = 0.25

	// OpenRate and CloseRate are the asymmetric smoothing factors:
	// the mouth closes faster than it opens.
	OpenRate  = 0.4
	CloseRate = 0.7

	// OpeningGamma shapes the loudness curve.
	OpeningGamma = 0.8

	// SpeakingFloor is the target opening above which the controller
	// reports speech.
	SpeakingFloor = 3.0

	// silenceFrames is how many consecutive near-silent frames force a
	// hard mute, preventing residual twitch.
	silenceFrames = 2
)

// Controller tracks amplitude history and produces mouth opening values.
// All state is owned by whichever task calls ProcessChunk; the mutex only
// guards against Reset racing a chunk in flight.
type Controller struct {
	mu sync.Mutex

	window         []float64
	currentOpening float64
	targetOpening  float64
	silenceCounter int
	speaking       bool
}

// NewController creates a controller at rest.
func NewController() *Controller {
	return &Controller{
		window: make([]float64, 0, SmoothingWindow),
	}
}

// ProcessChunk maps one chunk of 16-bit PCM to an opening percentage in
// [0, 100]. Empty chunks leave the mouth where it is and return 0.
func (c *Controller) ProcessChunk(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	amplitude := normalizedRMS(pcm)

	// Sliding window, oldest dropped.
	if len(c.window) == SmoothingWindow {
		copy(c.window, c.window[1:])
		c.window = c.window[:SmoothingWindow-1]
	}
	c.window = append(c.window, amplitude)

	var sum float64
	for _, a := range c.window {
		sum += a
	}
	smoothed := sum / float64(len(c.window))

	if smoothed < MinThreshold {
		c.targetOpening = 0
		c.silenceCounter++
		c.speaking = false
	} else {
		norm := (smoothed - MinThreshold) / (MaxThreshold - MinThreshold)
		norm = clamp(norm, 0, 1)
		c.targetOpening = math.Pow(norm, OpeningGamma) * 100
		c.silenceCounter = 0
		c.speaking = c.targetOpening > SpeakingFloor
	}

	// Fast release, slower attack.
	if c.targetOpening < c.currentOpening {
		c.currentOpening -= (c.currentOpening - c.targetOpening) * CloseRate
	} else {
		c.currentOpening += (c.targetOpening - c.currentOpening) * OpenRate
	}

	// Three near-silent frames in a row: hard mute.
	if c.silenceCounter > silenceFrames {
		c.currentOpening = 0
	}

	return c.currentOpening
}

// Speaking reports whether the last chunk's target crossed the speech
// floor. The check operates on the target, not the smoothed current
// opening.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Opening returns the current smoothed opening percentage.
func (c *Controller) Opening() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentOpening
}

// Reset clears the window and counters. Called on utterance boundaries
// so one turn's tail doesn't bleed into the next.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = c.window[:0]
	c.currentOpening = 0
	c.targetOpening = 0
	c.silenceCounter = 0
	c.speaking = false
}

// normalizedRMS computes the RMS of 16-bit little-endian samples,
// normalized to [0, 1] by the format's maximum magnitude.
func normalizedRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
