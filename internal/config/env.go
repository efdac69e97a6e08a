// Package config provides configuration helpers for mira commands.
package config

import (
	"os"
	"path/filepath"
)

// Env returns the value of an environment variable or a default.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// DataDir returns the directory where mira persists its state
// (profile, contacts, transcript window, OAuth tokens).
// Defaults to ~/.mira; override with MIRA_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv("MIRA_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mira"
	}
	return filepath.Join(home, ".mira")
}
