// Package contacts holds the user's address book: the people the
// assistant can message or call by name.
package contacts

import (
	"fmt"
	"strings"
)

// Channel is the preferred way to reach a contact.
type Channel string

const (
	ChannelPhone    Channel = "phone"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
)

// Contact is one address book entry. Handle is channel-specific: a
// phone number in E.164 form, a Telegram username, or an email address.
type Contact struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Handle  string  `json:"handle"`
	Channel Channel `json:"channel"`
}

// Validate checks a contact for storage.
func (c *Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("contacts: name is required")
	}
	if strings.TrimSpace(c.Handle) == "" {
		return fmt.Errorf("contacts: handle is required")
	}
	switch c.Channel {
	case ChannelPhone, ChannelWhatsApp, ChannelTelegram, ChannelEmail:
		return nil
	default:
		return fmt.Errorf("contacts: unknown channel %q", c.Channel)
	}
}

// Directory renders contacts as a block for the system instruction, so
// the model can resolve names to handles on its own.
func Directory(contacts []*Contact) string {
	if len(contacts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Known contacts:\n")
	for _, c := range contacts {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", c.Name, c.Handle, c.Channel)
	}
	return b.String()
}
