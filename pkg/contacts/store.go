package contacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miravoice/mira/internal/config"
)

// Store persists contacts in a JSON file.
type Store struct {
	path     string
	mu       sync.RWMutex
	contacts map[string]*Contact
}

// storeData is the JSON structure for the contacts file.
type storeData struct {
	Version   int        `json:"version"`
	UpdatedAt string     `json:"updated_at"`
	Contacts  []*Contact `json:"contacts"`
}

const currentVersion = 1

// NewStore creates a JSON-backed contact store at the given path.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		contacts: make(map[string]*Contact),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("contacts: failed to create directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("contacts: failed to load store: %w", err)
		}
	}
	return s, nil
}

// NewDefaultStore creates a store at <data dir>/contacts.json.
func NewDefaultStore() (*Store, error) {
	return NewStore(filepath.Join(config.DataDir(), "contacts.json"))
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	s.contacts = make(map[string]*Contact)
	for _, c := range stored.Contacts {
		s.contacts[c.ID] = c
	}
	return nil
}

func (s *Store) save() error {
	contacts := make([]*Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c)
	}
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Contacts:  contacts,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Save creates or updates a contact, assigning an ID when missing.
func (s *Store) Save(c *Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.contacts[c.ID] = c
	return s.save()
}

// Get retrieves a contact by ID.
func (s *Store) Get(id string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contacts: not found: %s", id)
	}
	return c, nil
}

// FindByName returns the first contact whose name contains the query,
// case-insensitive.
func (s *Store) FindByName(name string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(name)
	for _, c := range s.contacts {
		if strings.Contains(strings.ToLower(c.Name), q) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("contacts: not found: %s", name)
}

// List returns all contacts sorted by name.
func (s *Store) List() []*Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Delete removes a contact by ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[id]; !ok {
		return fmt.Errorf("contacts: not found: %s", id)
	}
	delete(s.contacts, id)
	return s.save()
}

// Count returns the number of contacts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}
