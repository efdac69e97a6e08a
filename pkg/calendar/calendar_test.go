package calendar

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenPath:    filepath.Join(t.TempDir(), "token.json"),
	})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestClient_UnauthenticatedOperations(t *testing.T) {
	c := newTestClient(t)

	if c.IsAuthenticated() {
		t.Error("fresh client should not be authenticated")
	}
	if _, err := c.ListUpcoming(context.Background(), 7); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("ListUpcoming() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := c.CreateEvent(context.Background(), Event{Summary: "x", Start: time.Now()}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CreateEvent() error = %v, want ErrNotAuthenticated", err)
	}
	if !strings.Contains(c.AuthURL(), "accounts.google.com") {
		t.Errorf("unexpected auth URL: %q", c.AuthURL())
	}
}

func TestTokenPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	c, err := NewClient(Config{ClientID: "id", ClientSecret: "secret", TokenPath: path})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	c.mu.Lock()
	c.token = &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)}
	c.mu.Unlock()
	if err := c.saveToken(); err != nil {
		t.Fatalf("saveToken() error: %v", err)
	}

	c2, err := NewClient(Config{ClientID: "id", ClientSecret: "secret", TokenPath: path})
	if err != nil {
		t.Fatalf("NewClient() reload error: %v", err)
	}
	if !c2.IsAuthenticated() {
		t.Error("expected reloaded client to be authenticated")
	}

	if err := c2.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if c2.IsAuthenticated() {
		t.Error("expected disconnect to drop the token")
	}
	// Token file gone; a third client starts unauthenticated.
	c3, err := NewClient(Config{ClientID: "id", ClientSecret: "secret", TokenPath: path})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if c3.IsAuthenticated() {
		t.Error("expected no token after disconnect")
	}
}

func TestEventConversion(t *testing.T) {
	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	ev := Event{Summary: "Dentist", Location: "Via Roma 1", Start: start, End: start.Add(time.Hour)}

	api := toAPIEvent(ev)
	if api.Start.DateTime == "" || api.Start.Date != "" {
		t.Errorf("timed event should use DateTime, got %+v", api.Start)
	}

	round := fromAPIEvent(api)
	if !round.Start.Equal(start) || round.Summary != "Dentist" || round.AllDay {
		t.Errorf("round trip mismatch: %+v", round)
	}

	allDay := Event{Summary: "Trip", Start: start, End: start.AddDate(0, 0, 1), AllDay: true}
	api = toAPIEvent(allDay)
	if api.Start.Date == "" || api.Start.DateTime != "" {
		t.Errorf("all-day event should use Date, got %+v", api.Start)
	}
	round = fromAPIEvent(api)
	if !round.AllDay {
		t.Error("all-day flag lost in round trip")
	}
}

func TestFormatEvents(t *testing.T) {
	if got := FormatEvents(nil); got != "No upcoming events." {
		t.Errorf("unexpected empty format: %q", got)
	}

	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	got := FormatEvents([]Event{
		{Summary: "Dentist", Start: start, Location: "Via Roma 1"},
		{Summary: "Trip", Start: start, AllDay: true},
	})
	if !strings.Contains(got, "Dentist") || !strings.Contains(got, "at Via Roma 1") {
		t.Errorf("missing timed event details: %q", got)
	}
	if !strings.Contains(got, "(all day)") {
		t.Errorf("missing all-day marker: %q", got)
	}
}
