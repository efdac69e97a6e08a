package capture

import (
	"sync"
	"testing"

	"github.com/miravoice/mira/pkg/audioio"
)

// recordingSender captures forwarded frames.
type recordingSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingSender) SendAudio(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]byte(nil), pcm...))
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func newTestPipeline(cfg Config, sender FrameSender) *Pipeline {
	srcCfg := audioio.DefaultInputConfig()
	srcCfg.Backend = audioio.BackendMock
	source := audioio.NewMockSource(srcCfg, nil)
	return NewPipeline(cfg, source, sender, nil)
}

func sineChunk() audioio.Chunk {
	samples := make([]int16, 320)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 8000
		} else {
			samples[i] = -8000
		}
	}
	return audioio.Chunk{Samples: samples, SampleRate: audioio.InputSampleRate, Channels: 1}
}

func TestHandleChunk_ForwardsFrames(t *testing.T) {
	sender := &recordingSender{}
	p := newTestPipeline(DefaultConfig(), sender)

	chunk := sineChunk()
	p.handleChunk(chunk)

	if sender.count() != 1 {
		t.Fatalf("expected 1 forwarded frame, got %d", sender.count())
	}
	if got, want := len(sender.frames[0]), len(chunk.Samples)*2; got != want {
		t.Errorf("frame size = %d bytes, want %d", got, want)
	}
}

func TestHandleChunk_MutedDropsFrames(t *testing.T) {
	sender := &recordingSender{}
	p := newTestPipeline(DefaultConfig(), sender)

	p.SetMuted(true)
	for i := 0; i < 5; i++ {
		p.handleChunk(sineChunk())
	}
	if sender.count() != 0 {
		t.Fatalf("expected no frames while muted, got %d", sender.count())
	}

	p.SetMuted(false)
	p.handleChunk(sineChunk())
	if sender.count() != 1 {
		t.Errorf("expected forwarding to resume after unmute, got %d frames", sender.count())
	}
}

func TestHandleChunk_MutedSuppressesVolume(t *testing.T) {
	var levels []float64
	cfg := Config{
		VolumeProbability: 1.0, // deterministic: every block publishes
		OnVolume:          func(l float64) { levels = append(levels, l) },
	}
	sender := &recordingSender{}
	p := newTestPipeline(cfg, sender)

	p.handleChunk(sineChunk())
	if len(levels) != 1 || levels[0] <= 0 {
		t.Fatalf("expected one positive level, got %v", levels)
	}

	p.SetMuted(true)
	if len(levels) != 2 || levels[1] != 0 {
		t.Fatalf("expected meter reset to zero on mute, got %v", levels)
	}

	p.handleChunk(sineChunk())
	if len(levels) != 2 {
		t.Errorf("expected no metering while muted, got %v", levels)
	}
}

func TestHandleChunk_DownmixesAndResamples(t *testing.T) {
	sender := &recordingSender{}
	p := newTestPipeline(DefaultConfig(), sender)

	// One second of stereo 48kHz must come out as one second of mono 16kHz.
	chunk := audioio.Chunk{
		Samples:    make([]int16, 48000*2),
		SampleRate: 48000,
		Channels:   2,
	}
	p.handleChunk(chunk)

	if sender.count() != 1 {
		t.Fatalf("expected 1 forwarded frame, got %d", sender.count())
	}
	if got, want := len(sender.frames[0]), audioio.InputSampleRate*2; got != want {
		t.Errorf("frame size = %d bytes, want %d", got, want)
	}
}

func TestStop_SafeWithoutStart(t *testing.T) {
	p := newTestPipeline(DefaultConfig(), &recordingSender{})
	p.Stop()
	p.Stop() // idempotent
}
