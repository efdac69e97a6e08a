// Package web serves the Mira dashboard: REST endpoints for session
// control, transcript, contacts, and calendar setup, plus websocket
// feeds for live updates.
package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/miravoice/mira/pkg/contacts"
	"github.com/miravoice/mira/pkg/hub"
	"github.com/miravoice/mira/pkg/persona"
	"github.com/miravoice/mira/pkg/session"
	"github.com/miravoice/mira/pkg/transcript"
)

// SessionController is the slice of session.Controller the dashboard
// drives.
type SessionController interface {
	Connect(ctx context.Context) error
	Disconnect()
	SetMuted(muted bool)
	Muted() bool
	State() session.State
}

// CalendarAuth is the OAuth surface of calendar.Client.
type CalendarAuth interface {
	IsAuthenticated() bool
	AuthURL() string
	HandleCallback(ctx context.Context, code string) error
	Disconnect() error
}

// Deps are the collaborators the server exposes. Calendar and Persona
// may be nil when unconfigured.
type Deps struct {
	Session    SessionController
	Transcript *transcript.Log
	Contacts   *contacts.Store
	Persona    *persona.Store
	Calendar   CalendarAuth
}

// Config holds server settings.
type Config struct {
	Port string

	// StaticDir holds the dashboard assets. Default: "./web".
	StaticDir string
}

// Status is the dashboard's view of the app.
type Status struct {
	State             session.State `json:"state"`
	Muted             bool          `json:"muted"`
	MicLevel          float64       `json:"mic_level"`
	CalendarConnected bool          `json:"calendar_connected"`
	PersonaName       string        `json:"persona_name,omitempty"`
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	cfg    Config
	deps   Deps
	logger *slog.Logger

	statusHub     *hub.Hub
	transcriptHub *hub.Hub
	levelHub      *hub.Hub

	mu       sync.RWMutex
	micLevel float64
}

// NewServer creates the dashboard server and wires its routes.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "./web"
	}

	s := &Server{
		cfg:           cfg,
		deps:          deps,
		logger:        logger,
		statusHub:     hub.New("status", logger),
		transcriptHub: hub.New("transcript", logger),
		levelHub:      hub.New("level", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Mira Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Static("/", cfg.StaticDir)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/session/connect", s.handleConnect)
	api.Post("/session/disconnect", s.handleDisconnect)
	api.Post("/session/mute", s.handleMute)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/contacts", s.handleListContacts)
	api.Post("/contacts", s.handleCreateContact)
	api.Delete("/contacts/:id", s.handleDeleteContact)
	api.Get("/persona", s.handlePersona)
	api.Get("/avatar", s.handleAvatar)
	api.Get("/calendar/status", s.handleCalendarStatus)
	api.Get("/calendar/auth", s.handleCalendarAuth)
	api.Get("/calendar/callback", s.handleCalendarCallback)
	api.Post("/calendar/disconnect", s.handleCalendarDisconnect)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.serveHub(s.statusHub)))
	app.Get("/ws/transcript", websocket.New(s.serveHub(s.transcriptHub)))
	app.Get("/ws/level", websocket.New(s.serveHub(s.levelHub)))

	s.app = app
	return s
}

// Start runs the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	s.logger.Info("web: dashboard listening", "addr", "http://localhost:"+s.cfg.Port)
	go s.statusHub.Run()
	go s.transcriptHub.Run()
	go s.levelHub.Run()
	return s.app.Listen(":" + s.cfg.Port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web: server failed", "err", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// status snapshots the dashboard state.
func (s *Server) status() Status {
	s.mu.RLock()
	level := s.micLevel
	s.mu.RUnlock()

	st := Status{MicLevel: level}
	if s.deps.Session != nil {
		st.State = s.deps.Session.State()
		st.Muted = s.deps.Session.Muted()
	}
	if s.deps.Calendar != nil {
		st.CalendarConnected = s.deps.Calendar.IsAuthenticated()
	}
	if s.deps.Persona != nil {
		if p, err := s.deps.Persona.Load(); err == nil && p != nil {
			st.PersonaName = p.Name
		}
	}
	return st
}

// BroadcastStatus pushes the current status to websocket subscribers.
// Called by the app layer on session state changes.
func (s *Server) BroadcastStatus() {
	s.statusHub.BroadcastJSON(s.status())
}

// BroadcastTranscript pushes the transcript window to subscribers.
// Wired to transcript.Log.SetOnChange.
func (s *Server) BroadcastTranscript() {
	if s.deps.Transcript != nil {
		s.transcriptHub.BroadcastJSON(s.deps.Transcript.Entries())
	}
}

// PublishMicLevel pushes a mic level sample to subscribers.
// Wired to the capture pipeline's volume callback.
func (s *Server) PublishMicLevel(level float64) {
	s.mu.Lock()
	s.micLevel = level
	s.mu.Unlock()
	s.levelHub.BroadcastJSON(fiber.Map{"level": level})
}

// serveHub upgrades a connection into a hub subscriber.
func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		hub.NewClient(h, c).Run()
	}
}
