package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/realtime-ai/wellness-call/pkg/session"
	"google.golang.org/genai"
)

// Make sure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// GeminiConfig holds configuration for the Gemini provider
type GeminiConfig struct {
	APIKey string
	Model  string // e.g. "gemini-2.0-flash"
}

// GeminiProvider completes prompts with the Gemini API.
type GeminiProvider struct {
	config GeminiConfig
	client *genai.Client
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{config: config, client: client}, nil
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.config.Model }

func (p *GeminiProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := p.client.Models.GenerateContent(
		ctx,
		p.config.Model,
		geminiContents(prompt.Messages),
		geminiRequestConfig(prompt.System),
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(collectGeminiText(resp))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// geminiContents maps the transcript onto Gemini's user/model turns.
func geminiContents(messages []session.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == session.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents
}

func geminiRequestConfig(system string) *genai.GenerateContentConfig {
	if system == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: system},
			},
		},
	}
}

func collectGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
		// first candidate only
		break
	}

	return builder.String()
}
