// Package app wires Mira together: persona, contacts, transcript,
// calendar, the live session controller, and the web dashboard.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miravoice/mira/internal/log"
	"github.com/miravoice/mira/pkg/audioio"
	"github.com/miravoice/mira/pkg/calendar"
	"github.com/miravoice/mira/pkg/capture"
	"github.com/miravoice/mira/pkg/contacts"
	"github.com/miravoice/mira/pkg/persona"
	"github.com/miravoice/mira/pkg/playback"
	"github.com/miravoice/mira/pkg/session"
	"github.com/miravoice/mira/pkg/tools"
	"github.com/miravoice/mira/pkg/transcript"
	"github.com/miravoice/mira/pkg/voice"
	"github.com/miravoice/mira/pkg/voice/gemini"
	"github.com/miravoice/mira/pkg/web"
)

// MiraInstructions is the behavioral prompt prepended to the persona
// and contact blocks.
const MiraInstructions = `You are a voice companion the user talks with naturally, like a friend on a call.

BEHAVIOR:
- Keep responses conversational, usually one or two sentences
- Speak the language the user speaks to you
- Be warm and direct; no corporate politeness
- Remember what the user tells you during the conversation and refer back to it

TOOLS:
- Use your tools when the user asks you to message someone, call someone, draw something, or deal with their calendar
- Execute tools silently; never announce which tool you are calling
- When the user asks what you look like, call generate_image with self_portrait set, then describe yourself while the picture loads

IMPORTANT:
- Never mention that you are an AI or a language model
- You are the person described above; own that identity`

// App is the main application orchestrator.
type App struct {
	config Config
	logger *slog.Logger

	transcript *transcript.Log
	contacts   *contacts.Store
	personaDB  *persona.Store
	profile    *persona.Profile
	generator  *persona.Generator
	calendar   *calendar.Client

	speaker    audioio.Sink
	scheduler  *playback.Scheduler
	dispatcher *tools.Dispatcher
	controller *session.Controller
	server     *web.Server
}

// New creates the application with the given configuration.
func New(cfg Config) (*App, error) {
	cfg.LoadEnvConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	return &App{config: cfg, logger: log.L()}, nil
}

// Init brings up all components. Call after New and before Run.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("mira starting")

	if err := a.initStores(); err != nil {
		return err
	}
	if err := a.initPersona(ctx); err != nil {
		return err
	}
	a.initCalendar()
	if err := a.initAudio(ctx); err != nil {
		return err
	}
	a.initSession()
	a.initWeb()

	return nil
}

func (a *App) initStores() error {
	tstore, err := transcript.NewDefaultStore()
	if err != nil {
		return fmt.Errorf("app: transcript store: %w", err)
	}
	a.transcript, err = transcript.NewLog(tstore, a.logger)
	if err != nil {
		return fmt.Errorf("app: transcript: %w", err)
	}

	a.contacts, err = contacts.NewDefaultStore()
	if err != nil {
		return fmt.Errorf("app: contacts store: %w", err)
	}
	a.logger.Info("stores ready", "contacts", a.contacts.Count(), "transcript_entries", a.transcript.Len())
	return nil
}

// initPersona loads the stored identity or generates one on first run.
func (a *App) initPersona(ctx context.Context) error {
	var err error
	a.personaDB, err = persona.NewDefaultStore()
	if err != nil {
		return fmt.Errorf("app: persona store: %w", err)
	}

	a.generator, err = persona.NewGenerator(ctx, a.config.GoogleAPIKey, a.logger)
	if err != nil {
		return fmt.Errorf("app: persona generator: %w", err)
	}

	a.profile, err = a.personaDB.Load()
	if err != nil {
		return fmt.Errorf("app: persona load: %w", err)
	}
	if a.profile != nil {
		a.logger.Info("persona loaded", "name", a.profile.Name)
		return nil
	}

	// First run: invent an identity. Generation failures fall back to
	// a plain default so the app still comes up offline.
	a.profile, err = a.generator.GenerateProfile(ctx, a.config.PersonaHint)
	if err != nil {
		a.logger.Warn("persona generation failed, using default", "err", err)
		a.profile = &persona.Profile{Name: "Mira", Bio: "You are calm, attentive, and a little wry."}
	} else if avatar, avErr := a.generator.GenerateAvatar(ctx, a.profile); avErr != nil {
		a.logger.Warn("avatar generation failed", "err", avErr)
	} else if avErr = a.personaDB.SaveAvatar(a.profile, avatar); avErr != nil {
		a.logger.Warn("avatar save failed", "err", avErr)
	}
	if err := a.personaDB.Save(a.profile); err != nil {
		return fmt.Errorf("app: persona save: %w", err)
	}
	a.logger.Info("persona created", "name", a.profile.Name)
	return nil
}

func (a *App) initCalendar() {
	if a.config.GoogleClientID == "" || a.config.GoogleClientSecret == "" {
		a.logger.Info("calendar not configured")
		return
	}
	client, err := calendar.NewClient(calendar.Config{
		ClientID:     a.config.GoogleClientID,
		ClientSecret: a.config.GoogleClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%s/api/calendar/callback", a.config.Port),
	})
	if err != nil {
		a.logger.Warn("calendar setup failed", "err", err)
		return
	}
	a.calendar = client
	a.logger.Info("calendar configured", "connected", client.IsAuthenticated())
}

func (a *App) initAudio(ctx context.Context) error {
	speaker, err := audioio.NewSink(audioio.DefaultOutputConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("app: speaker: %w", err)
	}
	if err := speaker.Start(ctx); err != nil {
		speaker.Close()
		return fmt.Errorf("app: speaker start: %w", err)
	}
	a.speaker = speaker
	a.scheduler = playback.NewScheduler(playback.DefaultConfig(), speaker, nil, log.Component("playback"))
	return nil
}

func (a *App) initSession() {
	toolCfg := tools.Config{
		Transcript: a.transcript,
		Contacts:   a.contacts,
		Images:     a.generator,
		AvatarPath: a.profile.AvatarPath,
	}
	if a.calendar != nil {
		toolCfg.Calendar = a.calendar
	}
	a.dispatcher = tools.NewDispatcher(toolCfg, log.Component("tools"))

	dialer := func(ctx context.Context, cfg voice.Config) (voice.Session, error) {
		return gemini.Dial(ctx, cfg)
	}

	a.controller = session.NewController(
		session.Config{
			APIKey:          a.config.GoogleAPIKey,
			Model:           a.config.Model,
			Voice:           a.config.Voice,
			Temperature:     a.config.Temperature,
			BaseInstruction: MiraInstructions,
			Capture: capture.Config{
				OnVolume: func(level float64) {
					if a.server != nil {
						a.server.PublishMicLevel(level)
					}
				},
			},
		},
		session.Deps{
			Dialer:     dialer,
			Player:     a.scheduler,
			Transcript: a.transcript,
			Tools:      a.dispatcher,
			Persona:    a.profile,
			Contacts:   a.contacts,
		},
		log.Component("session"),
	)
}

func (a *App) initWeb() {
	deps := web.Deps{
		Session:    a.controller,
		Transcript: a.transcript,
		Contacts:   a.contacts,
		Persona:    a.personaDB,
	}
	if a.calendar != nil {
		deps.Calendar = a.calendar
	}
	a.server = web.NewServer(web.Config{Port: a.config.Port, StaticDir: a.config.StaticDir}, deps, log.Component("web"))

	a.transcript.SetOnChange(a.server.BroadcastTranscript)
	a.controller.SetOnState(func(session.State) { a.server.BroadcastStatus() })
}

// Run serves the dashboard and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.server.StartAsync()
	a.logger.Info("mira ready", "dashboard", "http://localhost:"+a.config.Port)

	<-ctx.Done()
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	if a.controller != nil {
		a.controller.Disconnect()
	}
	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			a.logger.Warn("web shutdown failed", "err", err)
		}
	}
	if a.speaker != nil {
		a.speaker.Close()
	}
	a.logger.Info("mira stopped")
}
