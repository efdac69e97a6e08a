// Package transcript maintains the conversation transcript: an
// append-only list of entries built up from streaming fragments.
package transcript

import "time"

// Sender identifies which side of the conversation produced an entry.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderModel Sender = "model"
)

// Kind describes what an entry contains.
type Kind string

const (
	// KindText is spoken or typed text, possibly still streaming.
	KindText Kind = "text"

	// KindImage is a generated image; Text holds its URL or data URI.
	KindImage Kind = "image"

	// KindAction records a side effect the assistant performed, such as
	// opening a call link or creating a calendar event.
	KindAction Kind = "action"
)

// Entry is one transcript item. Text entries start incomplete and grow
// as fragments stream in; image and action entries are born complete.
//
// Action entries carry a full descriptor: Text holds the link URL,
// Label the human-readable line ("Call Marco on WhatsApp"), and Icon
// the channel class the dashboard styles the button with.
type Entry struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Label     string    `json:"label,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
