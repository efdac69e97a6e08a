// Package tools executes the assistant's function calls: messaging
// links, calls, image generation, and calendar access.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miravoice/mira/pkg/calendar"
	"github.com/miravoice/mira/pkg/contacts"
	"github.com/miravoice/mira/pkg/persona"
	"github.com/miravoice/mira/pkg/transcript"
	"github.com/miravoice/mira/pkg/voice"
)

// ImageGenerator renders an image for a prompt. persona.Generator
// satisfies this.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, opts persona.ImageOptions) ([]byte, error)
}

// Calendar is the slice of calendar.Client the dispatcher needs.
type Calendar interface {
	ListUpcoming(ctx context.Context, days int) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, ev calendar.Event) (calendar.Event, error)
}

// Config holds dispatcher dependencies and tuning. Optional
// dependencies left nil degrade to polite failure strings.
type Config struct {
	Transcript *transcript.Log
	Contacts   *contacts.Store
	Images     ImageGenerator
	Calendar   Calendar

	// AvatarPath is the assistant's stored portrait, revealed by the
	// self-portrait flow instead of generating a fresh image.
	AvatarPath string

	// RevealDelay holds back the self-portrait so the reveal lands
	// after the assistant finishes describing itself. Default: 4s.
	RevealDelay time.Duration

	// ImageDir is where generated images are written.
	// Default: os.TempDir().
	ImageDir string
}

// Dispatcher routes function calls from the live session to their
// handlers. Dispatch always produces a result string: the model is
// waiting on the answer, and an unanswered call wedges the turn.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	lastImage string
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RevealDelay == 0 {
		cfg.RevealDelay = 4 * time.Second
	}
	if cfg.ImageDir == "" {
		cfg.ImageDir = os.TempDir()
	}
	return &Dispatcher{cfg: cfg, logger: logger}
}

// Declarations returns the fixed tool set announced at session setup.
func (d *Dispatcher) Declarations() []voice.Tool {
	return []voice.Tool{
		{
			Name:        "generate_image",
			Description: "Generate an image from a text description. Set self_portrait when the user asks to see what you look like.",
			Parameters: map[string]any{
				"prompt":           map[string]any{"type": "string", "description": "What to draw"},
				"self_portrait":    map[string]any{"type": "boolean", "description": "True when the image is of you"},
				"explicit_content": map[string]any{"type": "boolean", "description": "True when the user explicitly asked for mature content"},
				"edit_existing":    map[string]any{"type": "boolean", "description": "True to modify the most recent image instead of drawing a new one"},
			},
		},
		{
			Name:        "send_email",
			Description: "Draft an email to a contact or address. Opens the user's mail app with everything prefilled.",
			Parameters: map[string]any{
				"to":      map[string]any{"type": "string", "description": "Contact name or email address"},
				"subject": map[string]any{"type": "string", "description": "Email subject"},
				"body":    map[string]any{"type": "string", "description": "Email body"},
			},
		},
		{
			Name:        "send_whatsapp",
			Description: "Send a WhatsApp message to a contact or phone number.",
			Parameters: map[string]any{
				"to":      map[string]any{"type": "string", "description": "Contact name or phone number"},
				"message": map[string]any{"type": "string", "description": "Message text"},
			},
		},
		{
			Name:        "send_telegram",
			Description: "Send a Telegram message to a contact or username.",
			Parameters: map[string]any{
				"to":      map[string]any{"type": "string", "description": "Contact name or @username"},
				"message": map[string]any{"type": "string", "description": "Message text"},
			},
		},
		{
			Name:        "make_call",
			Description: "Start a voice call to a contact or number, by phone, WhatsApp, or Telegram.",
			Parameters: map[string]any{
				"recipient": map[string]any{"type": "string", "description": "Contact name or phone number"},
				"app":       map[string]any{"type": "string", "description": "One of: phone, whatsapp, telegram"},
				"name":      map[string]any{"type": "string", "description": "Display name for the call link, when different from recipient"},
			},
		},
		{
			Name:        "get_calendar_events",
			Description: "List the user's upcoming calendar events.",
			Parameters: map[string]any{
				"days": map[string]any{"type": "integer", "description": "How many days ahead to look (default 7)"},
			},
		},
		{
			Name:        "create_calendar_event",
			Description: "Create an event on the user's calendar.",
			Parameters: map[string]any{
				"summary":          map[string]any{"type": "string", "description": "Event title"},
				"start":            map[string]any{"type": "string", "description": "Start time, RFC3339 or '2006-01-02 15:04'"},
				"duration_minutes": map[string]any{"type": "integer", "description": "Length in minutes (default 60)"},
				"location":         map[string]any{"type": "string", "description": "Where"},
				"description":      map[string]any{"type": "string", "description": "Details"},
			},
		},
	}
}

// Dispatch executes one function call and returns the result string.
// It never returns an error: failures become result strings the model
// can relay, and a panicking handler is contained the same way.
func (d *Dispatcher) Dispatch(ctx context.Context, call voice.ToolCall) (result string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tools: handler panicked", "tool", call.Name, "panic", r)
			result = "Something went wrong while doing that."
		}
	}()

	d.logger.Info("tools: dispatching", "tool", call.Name, "call_id", call.ID)

	switch call.Name {
	case "generate_image":
		return d.generateImage(ctx, call.Arguments)
	case "send_email":
		return d.sendEmail(call.Arguments)
	case "send_whatsapp":
		return d.sendWhatsApp(call.Arguments)
	case "send_telegram":
		return d.sendTelegram(call.Arguments)
	case "make_call":
		return d.makeCall(call.Arguments)
	case "get_calendar_events":
		return d.getCalendarEvents(ctx, call.Arguments)
	case "create_calendar_event":
		return d.createCalendarEvent(ctx, call.Arguments)
	default:
		// The model occasionally hallucinates a tool; acknowledge and
		// move on rather than wedging the turn.
		d.logger.Warn("tools: unknown tool", "tool", call.Name)
		return "OK"
	}
}

func (d *Dispatcher) generateImage(ctx context.Context, args map[string]any) string {
	prompt, _ := args["prompt"].(string)
	selfPortrait, _ := args["self_portrait"].(bool)
	explicit, _ := args["explicit_content"].(bool)
	editExisting, _ := args["edit_existing"].(bool)

	if selfPortrait && d.cfg.AvatarPath != "" {
		// Reveal the stored portrait after a beat, so the model's
		// spoken build-up finishes first.
		avatarPath := d.cfg.AvatarPath
		d.setLastImage(avatarPath)
		time.AfterFunc(d.cfg.RevealDelay, func() {
			d.appendImage(avatarPath)
		})
		return "Your portrait is on its way to the screen."
	}

	if prompt == "" {
		return "I need a description of what to draw."
	}
	if d.cfg.Images == nil {
		return "Image generation isn't available right now."
	}

	opts := persona.ImageOptions{Explicit: explicit}
	if editExisting {
		// Editing without an earlier image degrades to a fresh draw.
		opts.BaseImage = d.loadLastImage()
	}

	image, err := d.cfg.Images.GenerateImage(ctx, prompt, opts)
	if err != nil {
		d.logger.Warn("tools: image generation failed", "err", err)
		return "I couldn't generate that image, sorry."
	}

	path := filepath.Join(d.cfg.ImageDir, uuid.New().String()+".png")
	if err := os.WriteFile(path, image, 0644); err != nil {
		d.logger.Warn("tools: failed to save image", "err", err)
		return "I made the image but couldn't save it."
	}

	d.setLastImage(path)
	d.appendImage(path)
	return "Done! The image is on the screen."
}

func (d *Dispatcher) setLastImage(path string) {
	d.mu.Lock()
	d.lastImage = path
	d.mu.Unlock()
}

// loadLastImage reads the most recently shown image for edit_existing.
func (d *Dispatcher) loadLastImage() []byte {
	d.mu.Lock()
	path := d.lastImage
	d.mu.Unlock()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		d.logger.Warn("tools: previous image unreadable", "path", path, "err", err)
		return nil
	}
	return data
}

func (d *Dispatcher) appendImage(path string) {
	if d.cfg.Transcript != nil {
		d.cfg.Transcript.Append(transcript.SenderModel, transcript.KindImage, path)
	}
}

func (d *Dispatcher) appendAction(url, label, icon string) {
	if d.cfg.Transcript != nil {
		d.cfg.Transcript.AppendAction(url, label, icon)
	}
}

// resolveHandle turns a contact name into its stored handle. Raw
// addresses (phone numbers, emails, @usernames) pass through.
func (d *Dispatcher) resolveHandle(to string) (string, bool) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", false
	}
	if strings.ContainsAny(to, "@+") || allDigits(to) {
		return to, true
	}
	if d.cfg.Contacts == nil {
		return "", false
	}
	c, err := d.cfg.Contacts.FindByName(to)
	if err != nil {
		return "", false
	}
	return c.Handle, true
}

func (d *Dispatcher) sendEmail(args map[string]any) string {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)

	handle, ok := d.resolveHandle(to)
	if !ok {
		return fmt.Sprintf("I don't have a contact named %q.", to)
	}
	d.appendAction(MailtoLink(handle, subject, body), fmt.Sprintf("Email %s", to), "email")
	return fmt.Sprintf("I've drafted the email to %s; it's ready to send on the screen.", to)
}

func (d *Dispatcher) sendWhatsApp(args map[string]any) string {
	to, _ := args["to"].(string)
	message, _ := args["message"].(string)

	handle, ok := d.resolveHandle(to)
	if !ok {
		return fmt.Sprintf("I don't have a contact named %q.", to)
	}
	d.appendAction(WhatsAppLink(handle, message), fmt.Sprintf("Message %s on WhatsApp", to), "whatsapp")
	return fmt.Sprintf("The WhatsApp message to %s is ready on the screen.", to)
}

func (d *Dispatcher) sendTelegram(args map[string]any) string {
	to, _ := args["to"].(string)
	message, _ := args["message"].(string)

	handle, ok := d.resolveHandle(to)
	if !ok {
		return fmt.Sprintf("I don't have a contact named %q.", to)
	}
	d.appendAction(TelegramLink(handle, message), fmt.Sprintf("Message %s on Telegram", to), "telegram")
	return fmt.Sprintf("The Telegram message to %s is ready on the screen.", to)
}

func (d *Dispatcher) makeCall(args map[string]any) string {
	recipient, _ := args["recipient"].(string)
	app, _ := args["app"].(string)
	name, _ := args["name"].(string)

	handle, ok := d.resolveHandle(recipient)
	if !ok {
		return fmt.Sprintf("I don't have a contact named %q.", recipient)
	}
	if app == "" {
		app = "phone"
	}
	display := name
	if display == "" {
		display = recipient
	}

	label := "Call " + display
	switch app {
	case "whatsapp":
		label += " on WhatsApp"
	case "telegram":
		label += " on Telegram"
	}
	d.appendAction(CallLink(app, handle), label, app)
	return fmt.Sprintf("Calling %s via %s; tap the link on the screen to start.", display, app)
}

func (d *Dispatcher) getCalendarEvents(ctx context.Context, args map[string]any) string {
	if d.cfg.Calendar == nil {
		return "The calendar isn't connected. Set it up from the dashboard first."
	}
	days := 7
	if v, ok := args["days"].(float64); ok && v > 0 {
		days = int(v)
	}

	events, err := d.cfg.Calendar.ListUpcoming(ctx, days)
	if err != nil {
		d.logger.Warn("tools: calendar list failed", "err", err)
		return "I couldn't reach the calendar. Is Google Calendar connected?"
	}
	return calendar.FormatEvents(events)
}

func (d *Dispatcher) createCalendarEvent(ctx context.Context, args map[string]any) string {
	if d.cfg.Calendar == nil {
		return "The calendar isn't connected. Set it up from the dashboard first."
	}
	summary, _ := args["summary"].(string)
	if summary == "" {
		return "I need a title for the event."
	}
	startRaw, _ := args["start"].(string)
	start, err := parseEventTime(startRaw)
	if err != nil {
		return "I couldn't understand the start time. Tell me the date and time again?"
	}

	duration := 60 * time.Minute
	if v, ok := args["duration_minutes"].(float64); ok && v > 0 {
		duration = time.Duration(v) * time.Minute
	}
	location, _ := args["location"].(string)
	description, _ := args["description"].(string)

	created, err := d.cfg.Calendar.CreateEvent(ctx, calendar.Event{
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       start,
		End:         start.Add(duration),
	})
	if err != nil {
		d.logger.Warn("tools: calendar create failed", "err", err)
		return "I couldn't create the event. Is Google Calendar connected?"
	}
	return fmt.Sprintf("Created %q on %s.", created.Summary, created.Start.Format("Mon Jan 2 at 15:04"))
}

// parseEventTime accepts RFC3339 or a few colloquial layouts.
func parseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("tools: unparseable time %q", s)
}
