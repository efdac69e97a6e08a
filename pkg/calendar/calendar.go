// Package calendar connects the assistant to the user's Google
// Calendar through OAuth2.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appconfig "github.com/miravoice/mira/internal/config"
)

// ErrNotAuthenticated is returned when no valid OAuth token is present.
var ErrNotAuthenticated = fmt.Errorf("calendar: not authenticated - please connect Google Calendar first")

// Event is a calendar entry in the shape the rest of the app uses.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
}

// Config configures the calendar client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "http://localhost:8080/api/calendar/callback"
	TokenPath    string // default: <data dir>/google_token.json
}

// Client handles OAuth2 authentication and Calendar API operations.
type Client struct {
	config    *oauth2.Config
	tokenPath string

	mu      sync.RWMutex
	token   *oauth2.Token
	service *gcal.Service
}

// NewClient creates a calendar client, loading any stored token.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("calendar: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:8080/api/calendar/callback"
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = filepath.Join(appconfig.DataDir(), "google_token.json")
	}

	c := &Client{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gcal.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
		tokenPath: cfg.TokenPath,
	}

	if err := c.loadToken(); err == nil {
		if err := c.initService(); err != nil {
			c.mu.Lock()
			c.token = nil
			c.mu.Unlock()
		}
	}

	return c, nil
}

// IsAuthenticated reports whether a valid token is present.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil && c.token.Valid()
}

// AuthURL returns the OAuth2 consent URL.
func (c *Client) AuthURL() string {
	return c.config.AuthCodeURL("mira-state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the authorization code for a token and
// brings the calendar service up.
func (c *Client) HandleCallback(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("calendar: failed to exchange code for token: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if err := c.saveToken(); err != nil {
		return fmt.Errorf("calendar: failed to save token: %w", err)
	}
	return c.initService()
}

// Disconnect clears the authentication and removes the stored token.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.token = nil
	c.service = nil
	c.mu.Unlock()

	if err := os.Remove(c.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("calendar: failed to remove token file: %w", err)
	}
	return nil
}

// ListUpcoming returns events on the primary calendar starting within
// the next days days, soonest first.
func (c *Client) ListUpcoming(ctx context.Context, days int) ([]Event, error) {
	c.mu.RLock()
	service := c.service
	c.mu.RUnlock()
	if service == nil {
		return nil, ErrNotAuthenticated
	}
	if days <= 0 {
		days = 7
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()
	result, err := service.Events.List("primary").
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.AddDate(0, 0, days).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(50).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to list events: %w", err)
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		events = append(events, fromAPIEvent(item))
	}
	return events, nil
}

// CreateEvent inserts an event on the primary calendar and returns it
// with the assigned ID.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (Event, error) {
	c.mu.RLock()
	service := c.service
	c.mu.RUnlock()
	if service == nil {
		return Event{}, ErrNotAuthenticated
	}
	if ev.Summary == "" {
		return Event{}, fmt.Errorf("calendar: event summary is required")
	}
	if ev.End.IsZero() || !ev.End.After(ev.Start) {
		ev.End = ev.Start.Add(time.Hour)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	created, err := service.Events.Insert("primary", toAPIEvent(ev)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("calendar: failed to create event: %w", err)
	}
	out := fromAPIEvent(created)
	return out, nil
}

func toAPIEvent(ev Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.AllDay {
		out.Start = &gcal.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		out.End = &gcal.EventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		out.Start = &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
		out.End = &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)}
	}
	return out
}

func fromAPIEvent(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	if item.Start != nil {
		if item.Start.DateTime != "" {
			ev.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
		} else if item.Start.Date != "" {
			ev.Start, _ = time.Parse("2006-01-02", item.Start.Date)
			ev.AllDay = true
		}
	}
	if item.End != nil {
		if item.End.DateTime != "" {
			ev.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
		} else if item.End.Date != "" {
			ev.End, _ = time.Parse("2006-01-02", item.End.Date)
		}
	}
	return ev
}

func (c *Client) initService() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return ErrNotAuthenticated
	}

	ctx := context.Background()
	httpClient := c.config.Client(ctx, c.token)
	service, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("calendar: failed to create service: %w", err)
	}
	c.service = service
	return nil
}

func (c *Client) loadToken() error {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = &token
	c.mu.Unlock()
	return nil
}

func (c *Client) saveToken() error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == nil {
		return fmt.Errorf("calendar: no token to save")
	}

	if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.tokenPath, data, 0600)
}
