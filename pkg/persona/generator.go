package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/miravoice/mira/internal/httpc"
)

const (
	// textModel writes the profile text.
	textModel = "gemini-2.0-flash"

	// imageModel renders the avatar and ad-hoc images.
	imageModel = "gemini-2.0-flash-exp-image-generation"
)

// Generator creates profiles and images through the Gemini API.
type Generator struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGenerator creates a generator with the given API key.
func NewGenerator(ctx context.Context, apiKey string, logger *slog.Logger) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("persona: API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	// Image generation runs well past the default HTTP timeout.
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpc.NewClient(2 * time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("persona: failed to create client: %w", err)
	}
	return &Generator{client: client, logger: logger}, nil
}

// GenerateProfile invents a fresh identity. hint optionally steers the
// style ("a warm Italian grandmother", "a laconic jazz musician").
func (g *Generator) GenerateProfile(ctx context.Context, hint string) (*Profile, error) {
	prompt := `Invent a voice assistant persona: a plausible person with a distinct personality.

Respond in exactly this format:
NAME: [first name, optionally a last name]
BIO: [2-3 sentences of personality and background, second person]
LOOK: [one sentence physical description, suitable as an image prompt]`
	if hint != "" {
		prompt += "\n\nStyle hint: " + hint
	}

	resp, err := g.client.Models.GenerateContent(ctx, textModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](1.2),
	})
	if err != nil {
		return nil, fmt.Errorf("persona: profile generation failed: %w", err)
	}

	profile := parseProfile(collectText(resp))
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("persona: unparseable profile response: %w", err)
	}
	profile.CreatedAt = time.Now()
	g.logger.Info("persona: generated profile", "name", profile.Name)
	return profile, nil
}

// GenerateAvatar renders the profile's portrait and returns PNG bytes.
func (g *Generator) GenerateAvatar(ctx context.Context, profile *Profile) ([]byte, error) {
	prompt := fmt.Sprintf("A warm, softly lit portrait photograph of %s. %s Head and shoulders, looking at the camera.",
		profile.Name, profile.VisualDescription)
	return g.GenerateImage(ctx, prompt, ImageOptions{})
}

// ImageOptions tunes a single image generation call.
type ImageOptions struct {
	// Explicit relaxes the safety filters to block only the
	// highest-severity content, for images the user explicitly
	// asked for.
	Explicit bool

	// BaseImage, when set, is sent alongside the prompt so the model
	// edits it instead of drawing from scratch.
	BaseImage []byte
}

// GenerateImage renders a prompt and returns the image bytes.
func (g *Generator) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if opts.Explicit {
		for _, cat := range []genai.HarmCategory{
			genai.HarmCategoryHarassment,
			genai.HarmCategoryHateSpeech,
			genai.HarmCategorySexuallyExplicit,
			genai.HarmCategoryDangerousContent,
		} {
			cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
				Category:  cat,
				Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
			})
		}
	}

	contents := genai.Text(prompt)
	if len(opts.BaseImage) > 0 {
		contents = []*genai.Content{genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(opts.BaseImage, "image/png"),
		}, genai.RoleUser)}
	}

	resp, err := g.client.Models.GenerateContent(ctx, imageModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("persona: image generation failed: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("persona: no image in response")
}

// collectText concatenates the text parts of a response.
func collectText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// parseProfile extracts the NAME/BIO/LOOK lines from a model response.
func parseProfile(response string) *Profile {
	p := &Profile{}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "name:"):
			p.Name = cleanField(line[5:])
		case strings.HasPrefix(lower, "bio:"):
			p.Bio = cleanField(line[4:])
		case strings.HasPrefix(lower, "look:"):
			p.VisualDescription = cleanField(line[5:])
		}
	}
	return p
}

// cleanField strips whitespace, quotes and markdown emphasis.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.Trim(s, "*")
	return strings.TrimSpace(s)
}
