package audioio

import (
	"math"
	"testing"
)

func TestChunkDuration(t *testing.T) {
	tests := []struct {
		name       string
		samples    int
		sampleRate int
		channels   int
		want       float64
	}{
		{"one second at 24k", 24000, 24000, 1, 1.0},
		{"half second at 16k", 8000, 16000, 1, 0.5},
		{"20ms at 16k", 320, 16000, 1, 0.02},
		{"stereo counts frames", 48000, 24000, 2, 1.0},
		{"zero rate", 100, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Chunk{
				Samples:    make([]int16, tt.samples),
				SampleRate: tt.sampleRate,
				Channels:   tt.channels,
			}
			if got := c.Duration(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkRMS(t *testing.T) {
	silence := Chunk{Samples: make([]int16, 320), SampleRate: 16000, Channels: 1}
	if got := silence.RMS(); got != 0 {
		t.Errorf("silence RMS = %v, want 0", got)
	}

	// Full-scale square wave has RMS ~1.0.
	loud := Chunk{SampleRate: 16000, Channels: 1}
	loud.Samples = make([]int16, 320)
	for i := range loud.Samples {
		if i%2 == 0 {
			loud.Samples[i] = 32767
		} else {
			loud.Samples[i] = -32768
		}
	}
	if got := loud.RMS(); got < 0.99 || got > 1.01 {
		t.Errorf("square wave RMS = %v, want ~1.0", got)
	}

	empty := Chunk{}
	if got := empty.RMS(); got != 0 {
		t.Errorf("empty RMS = %v, want 0", got)
	}
}

func TestChunkBytesRoundTrip(t *testing.T) {
	var c Chunk
	c.FromBytes([]byte{0x02, 0x01, 0xFF, 0xFF}, 24000, 1)

	if len(c.Samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(c.Samples))
	}
	if c.Samples[0] != 0x0102 || c.Samples[1] != -1 {
		t.Errorf("Decoded samples = %v", c.Samples)
	}

	out := c.Bytes()
	want := []byte{0x02, 0x01, 0xFF, 0xFF}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, want[i], out[i])
		}
	}
}
