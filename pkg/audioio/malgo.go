package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// malgoSource captures microphone audio via miniaudio.
type malgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Chunk

	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

func newMalgoSource(cfg Config, logger *slog.Logger) (*malgoSource, error) {
	return &malgoSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan Chunk, 10),
	}, nil
}

// Start initializes the capture device and begins delivering chunks.
// Returns ErrNoDevice if no microphone can be opened.
func (s *malgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audioio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(s.cfg.BufferSize())

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			// Copy out of the device buffer; malgo reuses it.
			data := make([]byte, len(input))
			copy(data, input)

			var chunk Chunk
			chunk.FromBytes(data, s.cfg.SampleRate, s.cfg.Channels)

			select {
			case s.streamCh <- chunk:
			default:
				// Consumer is behind; drop rather than block the
				// audio callback.
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	s.mctx = mctx
	s.device = device
	s.running = true

	s.logger.Info("microphone capture started",
		"backend", s.Name(),
		"sample_rate", s.cfg.SampleRate,
		"buffer_ms", s.cfg.BufferDuration.Milliseconds(),
	)

	return nil
}

// Stop halts capture and closes the stream channel.
func (s *malgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.mctx != nil {
		s.mctx.Uninit()
		s.mctx.Free()
		s.mctx = nil
	}

	close(s.streamCh)
	return nil
}

// Read reads the next audio chunk.
func (s *malgoSource) Read(ctx context.Context) (Chunk, error) {
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk, ok := <-s.streamCh:
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *malgoSource) Stream() <-chan Chunk {
	return s.streamCh
}

// Config returns the audio configuration.
func (s *malgoSource) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *malgoSource) Name() string {
	return "malgo"
}

// Close releases resources.
func (s *malgoSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

var _ Source = (*malgoSource)(nil)

// malgoSink plays audio via miniaudio. The device callback drains an
// internal byte buffer; Clear empties it for barge-in cutoff.
type malgoSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	pending []byte

	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

func newMalgoSink(cfg Config, logger *slog.Logger) (*malgoSink, error) {
	return &malgoSink{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start initializes the playback device.
func (s *malgoSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audioio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(s.cfg.BufferSize())

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			s.mu.Lock()
			n := copy(output, s.pending)
			s.pending = s.pending[n:]
			s.mu.Unlock()
			// Remainder of output is already zeroed (silence).
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: init playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: start playback device: %w", err)
	}

	s.mctx = mctx
	s.device = device
	s.running = true

	s.logger.Info("speaker playback started",
		"backend", s.Name(),
		"sample_rate", s.cfg.SampleRate,
	)

	return nil
}

// Stop halts playback.
func (s *malgoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.pending = nil

	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.mctx != nil {
		s.mctx.Uninit()
		s.mctx.Free()
		s.mctx = nil
	}

	return nil
}

// Write queues a chunk for playback.
func (s *malgoSink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}

	s.pending = append(s.pending, chunk.Bytes()...)
	return nil
}

// Clear discards buffered audio immediately.
func (s *malgoSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	return nil
}

// Config returns the audio configuration.
func (s *malgoSink) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *malgoSink) Name() string {
	return "malgo"
}

// Close releases resources.
func (s *malgoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

var _ Sink = (*malgoSink)(nil)
