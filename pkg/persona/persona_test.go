package persona

import (
	"strings"
	"testing"
)

func TestParseProfile(t *testing.T) {
	response := `NAME: Livia Moretti
BIO: You grew up in a small coastal town and never lost the habit of talking with your hands. You are curious, a little nosy, and fiercely loyal.
LOOK: A woman in her forties with curly dark hair, olive skin, and laughing brown eyes.`

	p := parseProfile(response)
	if p.Name != "Livia Moretti" {
		t.Errorf("unexpected name: %q", p.Name)
	}
	if !strings.Contains(p.Bio, "coastal town") {
		t.Errorf("unexpected bio: %q", p.Bio)
	}
	if !strings.Contains(p.VisualDescription, "curly dark hair") {
		t.Errorf("unexpected look: %q", p.VisualDescription)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestParseProfile_ToleratesDecoration(t *testing.T) {
	response := `Here you go!

**NAME:** "Rocco"
**BIO:** *You fix things.*
LOOK: A tall man.

Hope that helps!`

	p := parseProfile(response)
	if p.Name != "Rocco" {
		t.Errorf("unexpected name: %q", p.Name)
	}
	if p.Bio != "You fix things." {
		t.Errorf("unexpected bio: %q", p.Bio)
	}
}

func TestParseProfile_MissingNameFailsValidation(t *testing.T) {
	p := parseProfile("BIO: something\nLOOK: someone")
	if err := p.Validate(); err == nil {
		t.Error("expected validation error without a name")
	}
}

func TestSystemPrompt(t *testing.T) {
	p := &Profile{Name: "Livia", Bio: "You are warm.", VisualDescription: "Curly hair."}
	got := p.SystemPrompt()
	for _, want := range []string{"Your name is Livia.", "You are warm.", "Curly hair."} {
		if !strings.Contains(got, want) {
			t.Errorf("system prompt missing %q:\n%s", want, got)
		}
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	// No profile yet.
	p, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected no profile, got %+v", p)
	}

	orig := &Profile{Name: "Livia", Bio: "Warm.", VisualDescription: "Curly."}
	if err := s.Save(orig); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded == nil || loaded.Name != "Livia" || loaded.Bio != "Warm." {
		t.Errorf("unexpected loaded profile: %+v", loaded)
	}
}

func TestStore_SaveAvatar(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	p := &Profile{Name: "Livia"}
	if err := s.SaveAvatar(p, []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatalf("SaveAvatar() error: %v", err)
	}
	if p.AvatarPath != s.AvatarPath() {
		t.Errorf("avatar path not recorded: %q", p.AvatarPath)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.AvatarPath == "" {
		t.Error("expected avatar path persisted")
	}
}
