package audioio

import (
	"math"
	"testing"
)

func TestBytesSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}
	got := BytesToSamples(SamplesToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestResampleLength(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		in       int
		want     int
	}{
		{"24k to 48k doubles", 24000, 48000, 240, 480},
		{"48k to 16k thirds", 48000, 16000, 480, 160},
		{"same rate untouched", 16000, 16000, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]int16, tt.in)
			got := Resample(in, tt.from, tt.to)
			if len(got) != tt.want {
				t.Errorf("expected %d samples, got %d", tt.want, len(got))
			}
		})
	}
}

func TestResampleFractionalRate(t *testing.T) {
	// 24k to 44.1k is not an integer ratio; the length lands within a
	// sample of the ideal.
	got := Resample(make([]int16, 240), 24000, 44100)
	if len(got) < 440 || len(got) > 441 {
		t.Errorf("expected ~441 samples, got %d", len(got))
	}
}

func TestResampleInterpolatesLinearly(t *testing.T) {
	// Upsampling a ramp must stay a ramp: each output sample lies
	// between its neighbors.
	in := make([]int16, 100)
	for i := range in {
		in[i] = int16(i * 100)
	}

	out := Resample(in, 16000, 48000)
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("ramp broke at %d: %d then %d", i, out[i-1], out[i])
		}
	}
}

func TestResamplePreservesSineShape(t *testing.T) {
	const freq = 440.0
	in := make([]int16, 2400)
	for i := range in {
		in[i] = int16(10000 * math.Sin(2*math.Pi*freq*float64(i)/24000))
	}

	out := Resample(in, 24000, 48000)

	// Compare against a directly synthesized sine at the target rate.
	for i := 0; i < len(out); i += 7 {
		want := 10000 * math.Sin(2*math.Pi*freq*float64(i)/48000)
		if math.Abs(float64(out[i])-want) > 500 {
			t.Fatalf("sample %d: expected ~%.0f, got %d", i, want, out[i])
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	if got := Resample(nil, 16000, 48000); len(got) != 0 {
		t.Errorf("expected empty output for empty input, got %d samples", len(got))
	}
}

func TestResampleBytesSameRatePassthrough(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	got := ResampleBytes(data, 24000, 24000)
	if &got[0] != &data[0] {
		t.Error("expected same-rate passthrough without copying")
	}
}
