// Package capture turns a live microphone source into a steady sequence
// of outbound audio frames for the active session, with a volume
// envelope for UI feedback.
package capture

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/miravoice/mira/pkg/audioio"
)

// FrameSender receives encoded microphone frames.
// voice.Session satisfies this.
type FrameSender interface {
	SendAudio(pcm16 []byte) error
}

// Config holds capture pipeline tuning.
type Config struct {
	// VolumeProbability is the chance that any given block publishes a
	// volume sample. Publishing every block floods the UI; a random
	// subsample keeps the meter smooth without per-block overhead and
	// without aliasing against the block cadence. Default: 0.2.
	VolumeProbability float64

	// OnVolume receives the RMS level (0..1) of sampled blocks.
	// Called from the capture goroutine; must not block.
	OnVolume func(level float64)
}

// DefaultConfig returns sensible capture defaults.
func DefaultConfig() Config {
	return Config{VolumeProbability: 0.2}
}

// Pipeline pumps microphone blocks into a FrameSender.
type Pipeline struct {
	cfg    Config
	source audioio.Source
	sender FrameSender
	logger *slog.Logger

	muted atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

// NewPipeline creates a capture pipeline reading from source and
// forwarding frames to sender.
func NewPipeline(cfg Config, source audioio.Source, sender FrameSender, logger *slog.Logger) *Pipeline {
	if cfg.VolumeProbability <= 0 {
		cfg.VolumeProbability = DefaultConfig().VolumeProbability
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		source: source,
		sender: sender,
		logger: logger,
	}
}

// Start begins capture. The source's own Start must be called by the
// owner beforehand; this only starts the forwarding loop.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-p.source.Stream():
			if !ok {
				return
			}
			p.handleChunk(chunk)
		}
	}
}

// handleChunk processes one captured block: meters volume, encodes and
// forwards. Muted blocks are neither metered nor sent.
func (p *Pipeline) handleChunk(chunk audioio.Chunk) {
	if p.muted.Load() {
		return
	}

	if p.cfg.OnVolume != nil && rand.Float64() < p.cfg.VolumeProbability {
		p.cfg.OnVolume(chunk.RMS())
	}

	samples := chunk.Samples
	if chunk.Channels == 2 {
		samples = audioio.StereoToMono(samples)
	}
	if chunk.SampleRate != audioio.InputSampleRate {
		samples = audioio.Resample(samples, chunk.SampleRate, audioio.InputSampleRate)
	}

	// Fire-and-forget: transport back-pressure is not a capture concern.
	if err := p.sender.SendAudio(audioio.SamplesToBytes(samples)); err != nil {
		p.logger.Debug("capture: frame send failed", "err", err)
	}
}

// SetMuted toggles the mute flag, effective from the next block.
// Muting resets the published volume to zero so the meter doesn't
// freeze at a stale level.
func (p *Pipeline) SetMuted(muted bool) {
	p.muted.Store(muted)
	if muted && p.cfg.OnVolume != nil {
		p.cfg.OnVolume(0)
	}
}

// Muted reports the current mute state.
func (p *Pipeline) Muted() bool {
	return p.muted.Load()
}

// Stop halts forwarding and waits for the loop to exit.
// Safe to call multiple times, or if Start was never called.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	_ = p.source.Stop()
	if started {
		<-p.done
	}
}
