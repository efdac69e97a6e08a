// Package persona manages the assistant's generated identity: a name,
// a short biography, and a visual description used for the avatar.
package persona

import (
	"fmt"
	"strings"
	"time"
)

// Profile is the assistant's identity. VisualDescription feeds the
// avatar image prompt and the self-portrait tool; AvatarPath points at
// the rendered avatar on disk, empty until generated.
type Profile struct {
	Name              string    `json:"name"`
	Bio               string    `json:"bio"`
	VisualDescription string    `json:"visual_description"`
	AvatarPath        string    `json:"avatar_path,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// SystemPrompt renders the profile as the identity block of the
// session's system instruction.
func (p *Profile) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your name is %s.\n", p.Name)
	if p.Bio != "" {
		fmt.Fprintf(&b, "About you: %s\n", p.Bio)
	}
	if p.VisualDescription != "" {
		fmt.Fprintf(&b, "Your appearance: %s\n", p.VisualDescription)
	}
	return b.String()
}

// Validate checks a profile for storage.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("persona: name is required")
	}
	return nil
}
