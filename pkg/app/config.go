package app

import (
	"fmt"

	"github.com/miravoice/mira/internal/config"
)

// Config holds the application configuration.
type Config struct {
	// GoogleAPIKey authenticates the live session, persona generation,
	// and image generation.
	GoogleAPIKey string

	// GoogleClientID and GoogleClientSecret enable calendar access.
	// Optional; the calendar tools degrade gracefully without them.
	GoogleClientID     string
	GoogleClientSecret string

	// Model and Voice override the live conversation defaults.
	Model string
	Voice string

	// Temperature is the response randomness, 0 keeps the default.
	Temperature float64

	// PersonaHint steers first-run persona generation.
	PersonaHint string

	// Port is the dashboard HTTP port.
	Port string

	// StaticDir holds the dashboard assets.
	StaticDir string

	// Debug enables verbose logging.
	Debug bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Port:      "8080",
		StaticDir: "./web",
	}
}

// LoadEnvConfig applies environment variable overrides.
func (c *Config) LoadEnvConfig() {
	c.GoogleAPIKey = config.Env("GOOGLE_API_KEY", c.GoogleAPIKey)
	c.GoogleClientID = config.Env("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = config.Env("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.Model = config.Env("MIRA_MODEL", c.Model)
	c.Voice = config.Env("MIRA_VOICE", c.Voice)
	c.PersonaHint = config.Env("MIRA_PERSONA_HINT", c.PersonaHint)
	c.Port = config.Env("MIRA_PORT", c.Port)
	c.StaticDir = config.Env("MIRA_STATIC_DIR", c.StaticDir)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.GoogleAPIKey == "" {
		return fmt.Errorf("app: GOOGLE_API_KEY is required")
	}
	if c.Port == "" {
		return fmt.Errorf("app: port is required")
	}
	return nil
}
