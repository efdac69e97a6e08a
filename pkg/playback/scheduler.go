// Package playback schedules decoded model speech for gapless playback.
//
// Chunks arrive from the session independently and at network pace; the
// scheduler lines them up back-to-back on the output clock. A "next
// start" cursor advances by each chunk's effective duration, so chunks
// arriving faster than real time queue up seamlessly and chunks arriving
// late self-heal by starting at the live clock instead of a stale cursor.
package playback

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/miravoice/mira/pkg/audioio"
)

// Config holds playback voice tuning.
type Config struct {
	// Rate is the playback speed multiplier. Default: 1.0.
	Rate float64

	// Detune shifts pitch in cents. Detune changes effective playback
	// speed by 2^(cents/1200) and must be compensated in the cursor
	// advance, or back-to-back chunks drift apart.
	Detune float64
}

// DefaultConfig returns neutral voice tuning.
func DefaultConfig() Config {
	return Config{Rate: 1.0}
}

// EffectiveSpeed combines rate and detune into one speed factor.
func (c Config) EffectiveSpeed() float64 {
	rate := c.Rate
	if rate <= 0 {
		rate = 1.0
	}
	return rate * math.Pow(2, c.Detune/1200)
}

// handle tracks one scheduled chunk from enqueue to natural completion.
type handle struct {
	begin  *time.Timer
	finish *time.Timer
}

// Scheduler sequences audio chunks onto a Sink with no gaps or overlaps.
// Safe for use from a single goroutine (the session event loop) plus
// timer callbacks; internal state is mutex-guarded.
type Scheduler struct {
	clock  Clock
	sink   audioio.Sink
	logger *slog.Logger
	speed  float64

	mu      sync.Mutex
	cursor  float64
	handles map[int]*handle
	nextID  int
}

// NewScheduler creates a scheduler writing to sink, timed by clock.
func NewScheduler(cfg Config, sink audioio.Sink, clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = NewClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:   clock,
		sink:    sink,
		logger:  logger,
		speed:   cfg.EffectiveSpeed(),
		handles: make(map[int]*handle),
	}
}

// Enqueue schedules a chunk and returns its start time on the output
// clock. The chunk begins at the cursor, or immediately if the cursor
// has fallen behind the live clock.
func (s *Scheduler) Enqueue(chunk audioio.Chunk) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	start := s.cursor
	if start < now {
		start = now
	}

	duration := chunk.Duration() / s.speed
	s.cursor = start + duration

	id := s.nextID
	s.nextID++

	h := &handle{}
	s.handles[id] = h

	delay := secondsToDuration(start - now)
	h.begin = time.AfterFunc(delay, func() {
		s.deliver(chunk)
	})
	h.finish = time.AfterFunc(delay+secondsToDuration(duration), func() {
		s.remove(id)
	})

	return start
}

// deliver writes a chunk to the sink, resampling when the configured
// speed is non-unity.
func (s *Scheduler) deliver(chunk audioio.Chunk) {
	if s.sink == nil {
		return
	}

	if s.speed != 1.0 {
		fromRate := int(float64(chunk.SampleRate) * s.speed)
		chunk = audioio.Chunk{
			Samples:    audioio.Resample(chunk.Samples, fromRate, chunk.SampleRate),
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
		}
	}

	if err := s.sink.Write(context.Background(), chunk); err != nil {
		s.logger.Warn("playback: sink write failed", "err", err)
	}
}

// remove drops a handle after its chunk finished playing.
func (s *Scheduler) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, id)
}

// Interrupt hard-stops everything scheduled or playing and resets the
// cursor to zero, so the next chunk starts fresh at the live clock.
// Used when the remote signals the user barged in.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	for id, h := range s.handles {
		if h.begin != nil {
			h.begin.Stop()
		}
		if h.finish != nil {
			h.finish.Stop()
		}
		delete(s.handles, id)
	}
	s.cursor = 0
	s.mu.Unlock()

	if s.sink != nil {
		if err := s.sink.Clear(); err != nil {
			s.logger.Warn("playback: sink clear failed", "err", err)
		}
	}
}

// Cursor returns the current next-start cursor.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Active returns the number of chunks scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
