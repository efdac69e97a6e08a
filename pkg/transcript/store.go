package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/miravoice/mira/internal/config"
)

// Store persists a transcript window to a JSON file.
type Store struct {
	path string
}

// storeData is the JSON structure for the transcript file.
type storeData struct {
	Version   int      `json:"version"`
	UpdatedAt string   `json:"updated_at"`
	Entries   []*Entry `json:"entries"`
}

const currentVersion = 1

// NewStore creates a store at the given path, creating parent
// directories as needed.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("transcript: failed to create directory: %w", err)
	}
	return &Store{path: path}, nil
}

// NewDefaultStore creates a store at the default location
// (<data dir>/transcript.json).
func NewDefaultStore() (*Store, error) {
	return NewStore(filepath.Join(config.DataDir(), "transcript.json"))
}

// Load reads persisted entries. A missing file is an empty transcript.
func (s *Store) Load() ([]*Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("transcript: failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("transcript: failed to parse JSON: %w", err)
	}
	return stored.Entries, nil
}

// Save writes the entries to disk atomically.
func (s *Store) Save(entries []*Entry) error {
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Entries:   entries,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("transcript: failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("transcript: failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("transcript: failed to rename temp file: %w", err)
	}
	return nil
}

// Path returns the file path of the store.
func (s *Store) Path() string {
	return s.path
}
