// Package session owns the lifecycle of one live conversation: it
// acquires the microphone, dials the model, and routes session events
// to playback, transcript, and tools.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/miravoice/mira/pkg/audioio"
	"github.com/miravoice/mira/pkg/capture"
	"github.com/miravoice/mira/pkg/contacts"
	"github.com/miravoice/mira/pkg/persona"
	"github.com/miravoice/mira/pkg/transcript"
	"github.com/miravoice/mira/pkg/voice"
)

// ErrAlreadyActive is returned by Connect while a session is live.
var ErrAlreadyActive = errors.New("session: already active")

// ErrNoMicrophone wraps mic acquisition failures.
var ErrNoMicrophone = errors.New("session: no microphone available")

// Player consumes model speech. playback.Scheduler satisfies this.
type Player interface {
	Enqueue(chunk audioio.Chunk) float64
	Interrupt()
}

// ToolRunner executes tool calls. tools.Dispatcher satisfies this.
type ToolRunner interface {
	Declarations() []voice.Tool
	Dispatch(ctx context.Context, call voice.ToolCall) string
}

// Config holds the controller's conversation parameters.
type Config struct {
	APIKey      string
	Model       string
	Voice       string
	Temperature float64

	// BaseInstruction is the behavioral prompt prepended to the
	// persona and contact blocks.
	BaseInstruction string

	// Capture tunes the microphone pipeline.
	Capture capture.Config
}

// Deps are the collaborators a controller routes events to.
// Source is optional; when nil the default device is opened.
type Deps struct {
	Dialer     voice.Dialer
	Player     Player
	Transcript *transcript.Log
	Tools      ToolRunner
	Persona    *persona.Profile
	Contacts   *contacts.Store
	Source     audioio.Source
}

// Controller drives one conversation at a time through the lifecycle
// idle -> connecting -> open -> closed, with errored as the failure
// terminal. A closed or errored controller can connect again.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	sess     voice.Session
	capture  *capture.Pipeline
	source   audioio.Source
	ownedSrc bool
	cancel   context.CancelFunc
	answered map[string]bool
	muted    bool

	onState func(State)
}

// NewController creates an idle controller.
func NewController(cfg Config, deps Deps, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetOnState registers a state-change callback, invoked outside the
// controller's lock.
func (c *Controller) SetOnState(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onState
	c.mu.Unlock()

	c.logger.Info("session: state", "state", s)
	if fn != nil {
		fn(s)
	}
}

// Connect brings a conversation up: microphone first, then the model
// connection, then the capture and event loops. On any failure the
// controller lands in errored with everything torn back down.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state.live() {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.state = StateConnecting
	c.answered = make(map[string]bool)
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(StateConnecting)
	}

	source, owned, err := c.acquireSource(ctx)
	if err != nil {
		c.setState(StateErrored)
		return err
	}

	vcfg := voice.DefaultConfig()
	vcfg.APIKey = c.cfg.APIKey
	if c.cfg.Model != "" {
		vcfg.Model = c.cfg.Model
	}
	if c.cfg.Voice != "" {
		vcfg.Voice = c.cfg.Voice
	}
	if c.cfg.Temperature > 0 {
		vcfg.Temperature = c.cfg.Temperature
	}
	vcfg.SystemInstruction = c.systemInstruction()
	if c.deps.Tools != nil {
		vcfg.Tools = c.deps.Tools.Declarations()
	}

	sess, err := c.deps.Dialer(ctx, vcfg)
	if err != nil {
		if owned {
			source.Close()
		} else {
			_ = source.Stop()
		}
		c.setState(StateErrored)
		return fmt.Errorf("session: dial failed: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	pipe := capture.NewPipeline(c.cfg.Capture, source, sess, c.logger)

	c.mu.Lock()
	c.sess = sess
	c.capture = pipe
	c.source = source
	c.ownedSrc = owned
	c.cancel = cancel
	muted := c.muted
	c.mu.Unlock()

	pipe.SetMuted(muted)
	pipe.Start(loopCtx)
	go c.eventLoop(loopCtx, sess)

	return nil
}

// acquireSource opens the microphone, or adopts the injected source.
func (c *Controller) acquireSource(ctx context.Context) (audioio.Source, bool, error) {
	if c.deps.Source != nil {
		if err := c.deps.Source.Start(ctx); err != nil {
			return nil, false, fmt.Errorf("session: mic start failed: %w", err)
		}
		return c.deps.Source, false, nil
	}

	source, err := audioio.NewSource(audioio.DefaultInputConfig(), c.logger)
	if err != nil {
		if errors.Is(err, audioio.ErrNoDevice) {
			return nil, false, fmt.Errorf("%w: %w", ErrNoMicrophone, err)
		}
		return nil, false, fmt.Errorf("session: mic open failed: %w", err)
	}
	if err := source.Start(ctx); err != nil {
		source.Close()
		return nil, false, fmt.Errorf("session: mic start failed: %w", err)
	}
	return source, true, nil
}

// systemInstruction assembles the behavior, persona, and contact
// blocks into one prompt.
func (c *Controller) systemInstruction() string {
	var parts []string
	if c.cfg.BaseInstruction != "" {
		parts = append(parts, c.cfg.BaseInstruction)
	}
	if c.deps.Persona != nil {
		parts = append(parts, c.deps.Persona.SystemPrompt())
	}
	if c.deps.Contacts != nil {
		if dir := contacts.Directory(c.deps.Contacts.List()); dir != "" {
			parts = append(parts, dir)
		}
	}
	return strings.Join(parts, "\n\n")
}

// eventLoop routes session events until the event channel closes.
func (c *Controller) eventLoop(ctx context.Context, sess voice.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			c.handleEvent(ctx, sess, ev)
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, sess voice.Session, ev voice.Event) {
	switch ev.Kind {
	case voice.EventOpened:
		c.setState(StateOpen)

	case voice.EventAudio:
		if c.deps.Player != nil {
			c.deps.Player.Enqueue(audioio.Chunk{
				Samples:    audioio.BytesToSamples(ev.Audio),
				SampleRate: audioio.OutputSampleRate,
				Channels:   1,
			})
		}

	case voice.EventTranscription:
		if c.deps.Transcript != nil {
			sender := transcript.SenderModel
			if ev.Direction == voice.DirectionUser {
				sender = transcript.SenderUser
			}
			c.deps.Transcript.AppendFragment(sender, ev.Text)
		}

	case voice.EventTurnComplete:
		if c.deps.Transcript != nil {
			c.deps.Transcript.FinalizeOpenFragments()
		}

	case voice.EventInterrupted:
		// Barge-in: stop speech immediately and drop the unfinished
		// model transcript entry.
		if c.deps.Player != nil {
			c.deps.Player.Interrupt()
		}
		if c.deps.Transcript != nil {
			c.deps.Transcript.DiscardOpenModel()
		}

	case voice.EventToolCall:
		c.runTool(ctx, sess, ev.Call)

	case voice.EventClosed:
		c.teardown(StateClosed)

	case voice.EventError:
		c.logger.Error("session: transport error", "err", ev.Err)
		c.teardown(StateErrored)
	}
}

// runTool executes a tool call and answers it exactly once.
func (c *Controller) runTool(ctx context.Context, sess voice.Session, call voice.ToolCall) {
	c.mu.Lock()
	if c.answered[call.ID] {
		c.mu.Unlock()
		c.logger.Warn("session: duplicate tool call ignored", "call_id", call.ID)
		return
	}
	c.answered[call.ID] = true
	c.mu.Unlock()

	// Tools may be slow (image generation, calendar); run off the
	// event loop so audio keeps flowing.
	go func() {
		result := "OK"
		if c.deps.Tools != nil {
			result = c.deps.Tools.Dispatch(ctx, call)
		}
		if err := sess.SendToolResult(call.ID, result); err != nil {
			c.logger.Warn("session: tool response failed", "call_id", call.ID, "err", err)
		}
	}()
}

// SetMuted toggles microphone muting. Ignored when no session is live;
// the preference is remembered for the next Connect.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	pipe := c.capture
	live := c.state.live()
	c.mu.Unlock()

	if live && pipe != nil {
		pipe.SetMuted(muted)
	}
}

// Muted reports the mute preference.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Disconnect ends the session. Best-effort and idempotent: every
// teardown step runs regardless of earlier failures, and calling it
// on an idle controller is a no-op.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	if !c.state.live() {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.teardown(StateClosed)
}

// teardown releases everything and lands in final. Safe to call from
// the event loop or from Disconnect; only the first caller acts.
func (c *Controller) teardown(final State) {
	c.mu.Lock()
	if !c.state.live() {
		c.mu.Unlock()
		return
	}
	c.state = final
	sess := c.sess
	pipe := c.capture
	source := c.source
	owned := c.ownedSrc
	cancel := c.cancel
	fn := c.onState
	c.sess = nil
	c.capture = nil
	c.source = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pipe != nil {
		pipe.Stop()
	}
	if sess != nil {
		if err := sess.Close(); err != nil {
			c.logger.Debug("session: close failed", "err", err)
		}
	}
	if source != nil {
		if owned {
			source.Close()
		} else if err := source.Stop(); err != nil {
			c.logger.Debug("session: mic stop failed", "err", err)
		}
	}
	if c.deps.Player != nil {
		c.deps.Player.Interrupt()
	}
	if c.deps.Transcript != nil {
		c.deps.Transcript.FinalizeOpenFragments()
	}

	c.logger.Info("session: state", "state", final)
	if fn != nil {
		fn(final)
	}
}
