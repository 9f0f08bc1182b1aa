package mouth

import (
	"math"
	"testing"
)

// pcmConst builds a PCM16 chunk where every sample has the same value.
func pcmConst(value int16, samples int) []byte {
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		data[i*2] = byte(value)
		data[i*2+1] = byte(value >> 8)
	}
	return data
}

func TestProcessChunkQuietSpeech(t *testing.T) {
	// A constant sample of 655 normalizes to roughly 0.02, just above
	// the silence threshold.
	c := NewController()
	opening := c.ProcessChunk(pcmConst(655, 512))

	amplitude := 655.0 / 32768.0
	norm := (amplitude - MinThreshold) / (MaxThreshold - MinThreshold)
	target := math.Pow(norm, OpeningGamma) * 100
	want := target * OpenRate

	if math.Abs(opening-want) > 0.05 {
		t.Errorf("expected opening ~%.2f after first chunk, got %.2f", want, opening)
	}

	// The speech check operates on the target, not the smoothed current
	// opening: target is above the floor while current is still below it.
	if target <= SpeakingFloor {
		t.Fatalf("test setup broken: target %.2f should exceed floor", target)
	}
	if !c.Speaking() {
		t.Error("expected speaking=true while target exceeds floor")
	}
	if c.Opening() >= SpeakingFloor {
		t.Errorf("expected current opening %.2f below floor %.1f", c.Opening(), SpeakingFloor)
	}
}

func TestTargetMonotonicWithRisingAmplitude(t *testing.T) {
	c := NewController()

	prev := -1.0
	for _, v := range []int16{1000, 2000, 3500, 5000, 7000, 9000} {
		c.ProcessChunk(pcmConst(v, 512))
		if c.targetOpening < prev {
			t.Errorf("target decreased from %.2f to %.2f at amplitude %d", prev, c.targetOpening, v)
		}
		prev = c.targetOpening
	}
}

func TestHardMuteAfterSilentFrames(t *testing.T) {
	c := NewController()
	c.ProcessChunk(pcmConst(8000, 512))

	// The window keeps the smoothed amplitude above the threshold for a
	// couple of silent chunks; then three fully silent frames in a row
	// force a hard mute.
	silent := pcmConst(0, 512)
	var got float64
	for i := 0; i < 4; i++ {
		got = c.ProcessChunk(silent)
	}
	if got <= 0 {
		t.Fatalf("expected residual opening before mute, got %.4f", got)
	}

	got = c.ProcessChunk(silent)
	if got != 0 {
		t.Errorf("expected hard mute to force opening to 0, got %.4f", got)
	}
	if c.Speaking() {
		t.Error("expected speaking=false after mute")
	}
}

func TestAllZeroChunksStayAtZero(t *testing.T) {
	c := NewController()
	silent := pcmConst(0, 512)
	for i := 0; i < 3; i++ {
		if got := c.ProcessChunk(silent); got != 0 {
			t.Errorf("chunk %d: expected 0 opening for silence, got %.4f", i+1, got)
		}
	}
}

func TestProcessChunkEmpty(t *testing.T) {
	c := NewController()
	if got := c.ProcessChunk(nil); got != 0 {
		t.Errorf("expected 0 for nil chunk, got %.4f", got)
	}
	if got := c.ProcessChunk([]byte{0x01}); got != 0 {
		t.Errorf("expected 0 for sub-sample chunk, got %.4f", got)
	}
}

func TestReset(t *testing.T) {
	c := NewController()
	for i := 0; i < 3; i++ {
		c.ProcessChunk(pcmConst(9000, 512))
	}
	if c.Opening() == 0 {
		t.Fatal("test setup broken: opening should be nonzero before reset")
	}

	c.Reset()

	if c.Opening() != 0 {
		t.Errorf("expected opening 0 after reset, got %.4f", c.Opening())
	}
	if c.Speaking() {
		t.Error("expected speaking=false after reset")
	}
	if len(c.window) != 0 {
		t.Errorf("expected empty window after reset, got %d entries", len(c.window))
	}
}

func TestNormalizedRMS(t *testing.T) {
	tests := []struct {
		name    string
		value   int16
		samples int
		want    float64
	}{
		{"silence", 0, 256, 0},
		{"half scale", 16384, 256, 0.5},
		{"full scale negative", -32768, 256, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizedRMS(pcmConst(tt.value, tt.samples))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected RMS %.4f, got %.4f", tt.want, got)
			}
		})
	}
}
