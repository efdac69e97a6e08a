package voice

import "errors"

// Default model for live conversation.
const DefaultModel = "models/gemini-2.0-flash-exp"

// DefaultVoice is the prebuilt voice used when none is configured.
const DefaultVoice = "Aoede"

// Config holds the parameters for opening a session.
type Config struct {
	// APIKey authenticates against the model provider.
	APIKey string

	// Model is the model identifier. Default: DefaultModel.
	Model string

	// SystemInstruction is the assembled persona/behavior prompt.
	SystemInstruction string

	// Voice is the prebuilt voice name for speech output.
	Voice string

	// Temperature is the response randomness, 0.0-2.0.
	Temperature float64

	// Tools are the function declarations sent at setup.
	Tools []Tool

	// Debug enables verbose logging of the wire protocol.
	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
// The API key must still be provided.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		Voice:       DefaultVoice,
		Temperature: 0.8,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("voice: temperature must be between 0 and 2")
	}
	return nil
}
