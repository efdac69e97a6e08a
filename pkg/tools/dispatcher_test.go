package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miravoice/mira/pkg/calendar"
	"github.com/miravoice/mira/pkg/contacts"
	"github.com/miravoice/mira/pkg/persona"
	"github.com/miravoice/mira/pkg/transcript"
	"github.com/miravoice/mira/pkg/voice"
)

type fakeImages struct {
	fail     bool
	lastOpts persona.ImageOptions
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string, opts persona.ImageOptions) ([]byte, error) {
	f.lastOpts = opts
	if f.fail {
		return nil, fmt.Errorf("boom")
	}
	return []byte("png-bytes"), nil
}

type fakeCalendar struct {
	events  []calendar.Event
	created []calendar.Event
	err     error
}

func (f *fakeCalendar) ListUpcoming(ctx context.Context, days int) ([]calendar.Event, error) {
	return f.events, f.err
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	if f.err != nil {
		return calendar.Event{}, f.err
	}
	ev.ID = "ev-1"
	f.created = append(f.created, ev)
	return ev, nil
}

func newTestDispatcher(t *testing.T, cfg Config) (*Dispatcher, *transcript.Log) {
	t.Helper()
	log, err := transcript.NewLog(nil, nil)
	if err != nil {
		t.Fatalf("NewLog() error: %v", err)
	}
	cfg.Transcript = log
	if cfg.ImageDir == "" {
		cfg.ImageDir = t.TempDir()
	}
	if cfg.Contacts == nil {
		store, err := contacts.NewStore(filepath.Join(t.TempDir(), "contacts.json"))
		if err != nil {
			t.Fatalf("NewStore() error: %v", err)
		}
		if err := store.Save(&contacts.Contact{
			Name: "Marco", Handle: "+39 123 4567", Channel: contacts.ChannelWhatsApp,
		}); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
		cfg.Contacts = store
	}
	return NewDispatcher(cfg, nil), log
}

func dispatchTool(d *Dispatcher, name string, args map[string]any) string {
	return d.Dispatch(context.Background(), voice.ToolCall{ID: "call-1", Name: name, Arguments: args})
}

func lastAction(t *testing.T, log *transcript.Log) transcript.Entry {
	t.Helper()
	entries := log.Entries()
	if len(entries) == 0 {
		t.Fatal("expected a transcript entry")
	}
	return entries[len(entries)-1]
}

func TestDispatch_MakeCall_WhatsApp(t *testing.T) {
	d, log := newTestDispatcher(t, Config{})

	result := dispatchTool(d, "make_call", map[string]any{
		"recipient": "+391234567",
		"app":       "whatsapp",
	})
	if !strings.Contains(result, "Calling") {
		t.Errorf("unexpected result: %q", result)
	}

	entry := lastAction(t, log)
	if entry.Kind != transcript.KindAction {
		t.Fatalf("expected action entry, got %+v", entry)
	}
	if entry.Text != "https://wa.me/391234567" {
		t.Errorf("unexpected link: %q", entry.Text)
	}
}

func TestDispatch_MakeCall_ResolvesContact(t *testing.T) {
	d, log := newTestDispatcher(t, Config{})

	result := dispatchTool(d, "make_call", map[string]any{
		"recipient": "Marco",
		"app":       "phone",
	})
	if !strings.Contains(result, "Marco") {
		t.Errorf("unexpected result: %q", result)
	}
	if got := lastAction(t, log).Text; got != "tel:+391234567" {
		t.Errorf("unexpected link: %q", got)
	}
}

func TestDispatch_MakeCall_DisplayName(t *testing.T) {
	d, log := newTestDispatcher(t, Config{})

	result := dispatchTool(d, "make_call", map[string]any{
		"recipient": "+391234567",
		"app":       "whatsapp",
		"name":      "Marco",
	})
	if !strings.Contains(result, "Marco") {
		t.Errorf("display name missing from result: %q", result)
	}

	entry := lastAction(t, log)
	if entry.Label != "Call Marco on WhatsApp" {
		t.Errorf("unexpected label: %q", entry.Label)
	}
	if entry.Icon != "whatsapp" {
		t.Errorf("unexpected icon: %q", entry.Icon)
	}
}

func TestDispatch_MakeCall_UnknownContact(t *testing.T) {
	d, log := newTestDispatcher(t, Config{})

	result := dispatchTool(d, "make_call", map[string]any{"recipient": "Nobody"})
	if !strings.Contains(result, "don't have a contact") {
		t.Errorf("unexpected result: %q", result)
	}
	if log.Len() != 0 {
		t.Error("no action entry should be appended for unknown contact")
	}
}

func TestDispatch_SendWhatsApp(t *testing.T) {
	d, log := newTestDispatcher(t, Config{})

	dispatchTool(d, "send_whatsapp", map[string]any{
		"to":      "Marco",
		"message": "ci vediamo alle 8",
	})
	entry := lastAction(t, log)
	if !strings.HasPrefix(entry.Text, "https://wa.me/391234567?text=") {
		t.Errorf("unexpected link: %q", entry.Text)
	}
	if !strings.Contains(entry.Text, "ci+vediamo") {
		t.Errorf("message not encoded in link: %q", entry.Text)
	}
	if entry.Label != "Message Marco on WhatsApp" {
		t.Errorf("unexpected label: %q", entry.Label)
	}
	if entry.Icon != "whatsapp" {
		t.Errorf("unexpected icon: %q", entry.Icon)
	}
}

func TestDispatch_SendEmail(t *testing.T) {
	d, log := newTestDispatcher(t, Config{})

	dispatchTool(d, "send_email", map[string]any{
		"to":      "anna@example.com",
		"subject": "Dinner",
		"body":    "Friday?",
	})
	got := lastAction(t, log).Text
	if !strings.HasPrefix(got, "mailto:anna@example.com?") {
		t.Errorf("unexpected link: %q", got)
	}
	if !strings.Contains(got, "subject=Dinner") {
		t.Errorf("subject missing: %q", got)
	}
}

func TestDispatch_SendTelegram_Username(t *testing.T) {
	d, log := newTestDispatcher(t, Config{})

	dispatchTool(d, "send_telegram", map[string]any{"to": "@marco_r", "message": "hey"})
	got := lastAction(t, log).Text
	if !strings.HasPrefix(got, "https://t.me/marco_r?text=") {
		t.Errorf("unexpected link: %q", got)
	}
}

func TestDispatch_GenerateImage(t *testing.T) {
	d, log := newTestDispatcher(t, Config{Images: &fakeImages{}})

	result := dispatchTool(d, "generate_image", map[string]any{"prompt": "a red cat"})
	if !strings.Contains(result, "Done") {
		t.Errorf("unexpected result: %q", result)
	}
	entry := lastAction(t, log)
	if entry.Kind != transcript.KindImage {
		t.Fatalf("expected image entry, got %+v", entry)
	}
	if !strings.HasSuffix(entry.Text, ".png") {
		t.Errorf("unexpected image path: %q", entry.Text)
	}
}

func TestDispatch_GenerateImage_ExplicitFlag(t *testing.T) {
	fake := &fakeImages{}
	d, _ := newTestDispatcher(t, Config{Images: fake})

	dispatchTool(d, "generate_image", map[string]any{
		"prompt":           "a red cat",
		"explicit_content": true,
	})
	if !fake.lastOpts.Explicit {
		t.Error("explicit_content flag not forwarded to the generator")
	}
}

func TestDispatch_GenerateImage_EditExisting(t *testing.T) {
	fake := &fakeImages{}
	d, _ := newTestDispatcher(t, Config{Images: fake})

	// No prior image: edit degrades to a fresh draw.
	dispatchTool(d, "generate_image", map[string]any{
		"prompt":        "a red cat",
		"edit_existing": true,
	})
	if fake.lastOpts.BaseImage != nil {
		t.Errorf("unexpected base image on first draw: %q", fake.lastOpts.BaseImage)
	}

	// The saved image becomes the base for the next edit.
	result := dispatchTool(d, "generate_image", map[string]any{
		"prompt":        "make the cat blue",
		"edit_existing": true,
	})
	if !strings.Contains(result, "Done") {
		t.Fatalf("unexpected result: %q", result)
	}
	if string(fake.lastOpts.BaseImage) != "png-bytes" {
		t.Errorf("previous image not passed as base: %q", fake.lastOpts.BaseImage)
	}
}

func TestDispatch_GenerateImage_Failure(t *testing.T) {
	d, log := newTestDispatcher(t, Config{Images: &fakeImages{fail: true}})

	result := dispatchTool(d, "generate_image", map[string]any{"prompt": "a red cat"})
	if !strings.Contains(result, "couldn't") {
		t.Errorf("unexpected result: %q", result)
	}
	if log.Len() != 0 {
		t.Error("no image entry should be appended on failure")
	}
}

func TestDispatch_SelfPortrait_RevealsStoredAvatar(t *testing.T) {
	d, log := newTestDispatcher(t, Config{
		AvatarPath:  "/data/avatar.png",
		RevealDelay: time.Millisecond,
	})

	result := dispatchTool(d, "generate_image", map[string]any{
		"prompt":        "show me what you look like",
		"self_portrait": true,
	})
	if !strings.Contains(result, "portrait") {
		t.Errorf("unexpected result: %q", result)
	}

	// The reveal is deferred; the entry appears after the delay.
	deadline := time.After(time.Second)
	for log.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("avatar entry never appeared")
		case <-time.After(5 * time.Millisecond):
		}
	}
	entry := lastAction(t, log)
	if entry.Kind != transcript.KindImage || entry.Text != "/data/avatar.png" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestDispatch_CalendarEvents(t *testing.T) {
	fake := &fakeCalendar{events: []calendar.Event{
		{Summary: "Dentist", Start: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)},
	}}
	d, _ := newTestDispatcher(t, Config{Calendar: fake})

	result := dispatchTool(d, "get_calendar_events", map[string]any{"days": float64(3)})
	if !strings.Contains(result, "Dentist") {
		t.Errorf("unexpected result: %q", result)
	}

	fake.err = calendar.ErrNotAuthenticated
	result = dispatchTool(d, "get_calendar_events", nil)
	if !strings.Contains(result, "connected") {
		t.Errorf("unexpected unauthorized result: %q", result)
	}
}

func TestDispatch_CreateCalendarEvent(t *testing.T) {
	fake := &fakeCalendar{}
	d, _ := newTestDispatcher(t, Config{Calendar: fake})

	result := dispatchTool(d, "create_calendar_event", map[string]any{
		"summary":          "Lunch",
		"start":            "2026-04-01 12:30",
		"duration_minutes": float64(45),
		"location":         "Trattoria",
	})
	if !strings.Contains(result, "Created") {
		t.Fatalf("unexpected result: %q", result)
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected one created event, got %d", len(fake.created))
	}
	ev := fake.created[0]
	if ev.End.Sub(ev.Start) != 45*time.Minute {
		t.Errorf("unexpected duration: %v", ev.End.Sub(ev.Start))
	}

	result = dispatchTool(d, "create_calendar_event", map[string]any{
		"summary": "Lunch",
		"start":   "next tuesday-ish",
	})
	if !strings.Contains(result, "start time") {
		t.Errorf("unexpected result for bad time: %q", result)
	}
}

func TestDispatch_UnknownToolAcknowledged(t *testing.T) {
	d, _ := newTestDispatcher(t, Config{})
	if result := dispatchTool(d, "order_pizza", nil); result != "OK" {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestDispatch_AlwaysReturnsAResult(t *testing.T) {
	// A nil-map panic inside a handler must not escape Dispatch.
	d := NewDispatcher(Config{}, nil)
	result := d.Dispatch(context.Background(), voice.ToolCall{Name: "send_whatsapp", Arguments: map[string]any{"to": "Marco"}})
	if result == "" {
		t.Error("expected a non-empty result")
	}
}

func TestLinks(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"whatsapp strips plus", WhatsAppLink("+39 123 4567", ""), "https://wa.me/391234567"},
		{"telegram username", TelegramLink("@anna", ""), "https://t.me/anna"},
		{"telegram phone", TelegramLink("+391234567", ""), "https://t.me/+391234567"},
		{"tel keeps plus", TelLink("+39 123 4567"), "tel:+391234567"},
		{"call defaults to phone", CallLink("", "+39123"), "tel:+39123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
