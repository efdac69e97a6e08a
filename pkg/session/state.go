package session

// State is the controller's lifecycle state.
type State string

const (
	// StateIdle means no session exists yet.
	StateIdle State = "idle"

	// StateConnecting covers mic acquisition, dialing, and setup.
	StateConnecting State = "connecting"

	// StateOpen means the conversation is live.
	StateOpen State = "open"

	// StateClosed means the session ended normally.
	StateClosed State = "closed"

	// StateErrored means the session died on a failure.
	StateErrored State = "errored"
)

// live reports whether the state accepts session mutations.
func (s State) live() bool {
	return s == StateConnecting || s == StateOpen
}
