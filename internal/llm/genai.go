package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dhruvdaberao/CROCO/internal/logging"
)

// StructuredClient issues one-shot, non-streamed completions with a JSON
// response hint. Memory synthesis uses it: a single request, a single
// text blob back, no session state.
type StructuredClient struct {
	client *genai.Client
	model  string
}

// NewStructuredClient creates a structured-completion client.
func NewStructuredClient(ctx context.Context, apiKey, model string) (*StructuredClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &StructuredClient{client: client, model: model}, nil
}

// CompleteJSON sends prompt and returns the raw response text. The
// request asks for application/json output; callers still parse
// defensively because the hint is not a guarantee.
func (c *StructuredClient) CompleteJSON(ctx context.Context, systemPrompt, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if strings.TrimSpace(systemPrompt) != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	logging.APIDebug("CompleteJSON: model=%s response=%d bytes", c.model, len(text))
	return text, nil
}
