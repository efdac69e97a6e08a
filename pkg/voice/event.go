package voice

// EventKind identifies an inbound session event.
type EventKind string

const (
	// EventOpened is delivered once the remote acknowledges setup.
	EventOpened EventKind = "opened"

	// EventAudio carries a chunk of model speech (PCM16 at the output rate).
	EventAudio EventKind = "audio"

	// EventTranscription carries an incremental text fragment for one
	// direction of the conversation.
	EventTranscription EventKind = "transcription"

	// EventToolCall asks the application to execute a tool.
	EventToolCall EventKind = "tool_call"

	// EventTurnComplete marks the end of a model turn.
	EventTurnComplete EventKind = "turn_complete"

	// EventInterrupted signals the user barged in over model speech.
	EventInterrupted EventKind = "interrupted"

	// EventClosed signals the remote closed the session.
	EventClosed EventKind = "closed"

	// EventError signals a transport-level failure. Fatal to the session.
	EventError EventKind = "error"
)

// Direction identifies which side of the conversation a transcription
// fragment belongs to.
type Direction string

const (
	DirectionUser  Direction = "user"
	DirectionModel Direction = "model"
)

// Event is one inbound message from the session.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// Audio is the decoded PCM payload for EventAudio.
	Audio []byte

	// Direction and Text are set for EventTranscription.
	Direction Direction
	Text      string

	// Call is set for EventToolCall.
	Call ToolCall

	// Err is set for EventError.
	Err error
}
