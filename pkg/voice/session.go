// Package voice defines the contract between mira and a streaming
// conversational model. A Session is one live bidirectional connection:
// microphone frames go up, audio/text/tool-call events come down.
//
// Implementations live in subpackages (gemini). Tests fake the Session
// interface; nothing in this package touches the network.
package voice

import (
	"context"
	"errors"
)

// Common errors returned by sessions.
var (
	ErrNotConnected   = errors.New("voice: session not connected")
	ErrAlreadyStarted = errors.New("voice: session already started")
	ErrMissingAPIKey  = errors.New("voice: missing API key")
)

// Session is a live streaming connection to the conversational model.
//
// SendAudio and SendToolResult are safe to call from any goroutine.
// Events are delivered in arrival order on the Events channel; the
// channel is closed after a Closed or Error event is delivered.
type Session interface {
	// SendAudio sends one encoded microphone frame (PCM16 little-endian
	// at the configured input rate).
	SendAudio(pcm16 []byte) error

	// SendToolResult answers a tool call. Every tool-call event must be
	// answered exactly once; the model blocks its turn on the response.
	SendToolResult(callID, result string) error

	// Events returns the inbound event stream.
	Events() <-chan Event

	// Close shuts the connection down. Safe to call multiple times.
	Close() error
}

// Dialer opens a Session with the given configuration.
// The returned Session is connected and has already completed setup.
type Dialer func(ctx context.Context, cfg Config) (Session, error)
