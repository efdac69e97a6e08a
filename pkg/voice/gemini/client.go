// Package gemini implements voice.Session over the Gemini Live API.
// A single WebSocket carries realtime microphone audio up and streamed
// model speech, transcriptions and tool calls down.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/miravoice/mira/pkg/voice"
)

const (
	// Gemini Live API WebSocket endpoint.
	liveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	handshakeTimeout = 10 * time.Second

	// eventBuffer bounds the inbound event queue. The session controller
	// drains promptly; this only absorbs short bursts of audio chunks.
	eventBuffer = 64
)

// Client is a live session against the Gemini Live API.
type Client struct {
	cfg    voice.Config
	logger *slog.Logger

	ws   *websocket.Conn
	wsMu sync.Mutex

	events chan voice.Event

	mu     sync.Mutex
	closed bool
}

// Dial opens a session: connects the WebSocket, sends the setup message
// and starts the read loop. The EventOpened event is delivered once the
// remote acknowledges setup.
func Dial(ctx context.Context, cfg voice.Config) (voice.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
		events: make(chan voice.Event, eventBuffer),
	}

	url := fmt.Sprintf("%s?key=%s", liveURL, cfg.APIKey)

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("gemini: connect: %w", err)
	}
	c.ws = ws

	if err := c.sendSetup(); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("gemini: configure session: %w", err)
	}

	go c.readLoop()

	return c, nil
}

// sendSetup sends the initial session configuration.
func (c *Client) sendSetup() error {
	model := c.cfg.Model
	if model == "" {
		model = voice.DefaultModel
	}
	voiceName := c.cfg.Voice
	if voiceName == "" {
		voiceName = voice.DefaultVoice
	}

	setup := map[string]any{
		"model": model,
		"generation_config": map[string]any{
			"response_modalities": []string{"AUDIO"},
			"temperature":         c.cfg.Temperature,
			"speech_config": map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": voiceName,
					},
				},
			},
		},
		"input_audio_transcription":  map[string]any{},
		"output_audio_transcription": map[string]any{},
	}

	if c.cfg.SystemInstruction != "" {
		setup["system_instruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": c.cfg.SystemInstruction},
			},
		}
	}

	if len(c.cfg.Tools) > 0 {
		var declarations []map[string]any
		for _, tool := range c.cfg.Tools {
			declarations = append(declarations, map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			})
		}
		setup["tools"] = []map[string]any{
			{"function_declarations": declarations},
		}
	}

	return c.sendJSON(map[string]any{"setup": setup})
}

// SendAudio sends one PCM16 microphone frame.
func (c *Client) SendAudio(pcm16 []byte) error {
	if c.isClosed() {
		return voice.ErrNotConnected
	}

	encoded := base64.StdEncoding.EncodeToString(pcm16)

	return c.sendJSON(map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      encoded,
					"mime_type": "audio/pcm",
				},
			},
		},
	})
}

// SendToolResult answers a tool call by ID.
func (c *Client) SendToolResult(callID, result string) error {
	if c.isClosed() {
		return voice.ErrNotConnected
	}

	return c.sendJSON(map[string]any{
		"tool_response": map[string]any{
			"function_responses": []map[string]any{
				{
					"id":       callID,
					"response": map[string]any{"result": result},
				},
			},
		},
	})
}

// Events returns the inbound event stream.
func (c *Client) Events() <-chan voice.Event {
	return c.events
}

// Close shuts the connection down. The read loop delivers a final
// EventClosed and closes the event channel.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.ws.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readLoop pumps WebSocket messages into the event channel until the
// connection ends. It owns closing the event channel.
func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				c.events <- voice.Event{Kind: voice.EventClosed}
			} else {
				c.events <- voice.Event{Kind: voice.EventError, Err: err}
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug("gemini: unparseable message", "err", err)
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage translates one wire message into zero or more events.
func (c *Client) handleMessage(msg map[string]any) {
	if _, ok := msg["setupComplete"]; ok {
		c.events <- voice.Event{Kind: voice.EventOpened}
		return
	}

	if serverContent, ok := msg["serverContent"].(map[string]any); ok {
		c.handleServerContent(serverContent)
		return
	}

	if toolCall, ok := msg["toolCall"].(map[string]any); ok {
		c.handleToolCall(toolCall)
		return
	}

	if _, ok := msg["toolCallCancellation"]; ok {
		c.logger.Debug("gemini: tool call cancelled")
		return
	}

	if c.cfg.Debug {
		c.logger.Debug("gemini: unhandled message", "msg", msg)
	}
}

// handleServerContent processes audio, transcriptions and turn markers.
func (c *Client) handleServerContent(content map[string]any) {
	if interrupted, ok := content["interrupted"].(bool); ok && interrupted {
		c.events <- voice.Event{Kind: voice.EventInterrupted}
		return
	}

	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		c.handleModelTurn(modelTurn)
	}

	if inputTranscript, ok := content["inputTranscription"].(map[string]any); ok {
		if text, ok := inputTranscript["text"].(string); ok && text != "" {
			c.events <- voice.Event{
				Kind:      voice.EventTranscription,
				Direction: voice.DirectionUser,
				Text:      text,
			}
		}
	}

	if outputTranscript, ok := content["outputTranscription"].(map[string]any); ok {
		if text, ok := outputTranscript["text"].(string); ok && text != "" {
			c.events <- voice.Event{
				Kind:      voice.EventTranscription,
				Direction: voice.DirectionModel,
				Text:      text,
			}
		}
	}

	// turnComplete is checked last: a final message may carry both
	// trailing content and the turn marker.
	if turnComplete, ok := content["turnComplete"].(bool); ok && turnComplete {
		c.events <- voice.Event{Kind: voice.EventTurnComplete}
	}
}

// handleModelTurn extracts audio payloads from a model turn.
func (c *Client) handleModelTurn(modelTurn map[string]any) {
	parts, ok := modelTurn["parts"].([]any)
	if !ok {
		return
	}

	for _, part := range parts {
		partMap, ok := part.(map[string]any)
		if !ok {
			continue
		}

		inlineData, ok := partMap["inlineData"].(map[string]any)
		if !ok {
			continue
		}

		mimeType, _ := inlineData["mimeType"].(string)
		if !strings.HasPrefix(mimeType, "audio/pcm") {
			continue
		}

		data, ok := inlineData["data"].(string)
		if !ok {
			continue
		}

		audio, err := base64.StdEncoding.DecodeString(data)
		if err != nil || len(audio) == 0 {
			continue
		}

		c.events <- voice.Event{Kind: voice.EventAudio, Audio: audio}
	}
}

// handleToolCall emits one event per function call in the message.
func (c *Client) handleToolCall(toolCall map[string]any) {
	functionCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return
	}

	for _, fc := range functionCalls {
		fcMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}

		name, _ := fcMap["name"].(string)
		id, _ := fcMap["id"].(string)
		args, _ := fcMap["args"].(map[string]any)

		c.events <- voice.Event{
			Kind: voice.EventToolCall,
			Call: voice.ToolCall{
				ID:        id,
				Name:      name,
				Arguments: args,
			},
		}
	}
}

// sendJSON sends a JSON message over the WebSocket.
func (c *Client) sendJSON(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws == nil {
		return voice.ErrNotConnected
	}

	return c.ws.WriteJSON(v)
}

var _ voice.Session = (*Client)(nil)
