package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider streams chat completions from the Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini adapter for the given API key.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Stream issues one streaming generateContent call. Gemini names the
// assistant role "model", so history roles are translated on the way in.
// Usage metadata arrives on stream chunks; the last reported value wins.
func (p *GeminiProvider) Stream(ctx context.Context, providerModelID string, history []Message, onToken TokenFunc) (*StreamResult, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	var accumulated strings.Builder
	result := &StreamResult{}

	for chunk, err := range p.client.Models.GenerateContentStream(ctx, providerModelID, contents, nil) {
		if err != nil {
			// SDK errors carry the raw API payload in their message; the
			// caller flattens them for display.
			return nil, err
		}
		if token := chunk.Text(); token != "" {
			accumulated.WriteString(token)
			if err := onToken(token); err != nil {
				return nil, err
			}
		}
		if chunk.UsageMetadata != nil {
			result.InputTokens = int(chunk.UsageMetadata.PromptTokenCount)
			result.OutputTokens = int(chunk.UsageMetadata.CandidatesTokenCount)
		}
	}

	result.Content = accumulated.String()
	return result, nil
}
