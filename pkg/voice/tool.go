package voice

// Tool declares a function the model can invoke during conversation.
// Declarations are sent once at session setup; execution happens in the
// application, which answers via Session.SendToolResult.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "make_call").
	Name string `json:"name"`

	// Description explains what the tool does, helping the model decide
	// when to use it.
	Description string `json:"description"`

	// Parameters defines the JSON schema for the tool's arguments.
	Parameters map[string]any `json:"parameters"`
}

// ToolCall is an invocation of a tool by the model.
type ToolCall struct {
	// ID correlates the eventual result back to this call.
	ID string

	// Name is the tool being invoked.
	Name string

	// Arguments contains the parsed arguments from the model.
	Arguments map[string]any
}

// ToolResult is the outcome of executing a tool call.
type ToolResult struct {
	// CallID matches the ToolCall.ID this result corresponds to.
	CallID string

	// Result is the string result to send back to the model.
	// Always non-empty, even on handler failure.
	Result string
}
