package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaiwa-app/kaiwa/internal/util"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqTimeout = 5 * time.Minute
)

// GroqProvider streams chat completions from Groq's OpenAI-compatible API.
// No SDK involved: the endpoint speaks plain chat/completions SSE.
type GroqProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGroqProvider creates a Groq adapter with default endpoint and timeout.
func NewGroqProvider(apiKey string) *GroqProvider {
	return NewGroqProviderWithClient(apiKey, defaultGroqBaseURL, nil)
}

// NewGroqProviderWithClient creates a Groq adapter with an explicit base URL
// and HTTP client, mainly for tests.
func NewGroqProviderWithClient(apiKey, baseURL string, httpClient *http.Client) *GroqProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultGroqTimeout}
	}
	return &GroqProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// IsEnabled indicates whether the adapter has a usable API key.
func (p *GroqProvider) IsEnabled() bool {
	return p != nil && p.apiKey != ""
}

// groqChunk is the slice of the SSE chunk payload this adapter reads. Usage
// rides on the final chunk under the x_groq extension.
type groqChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	XGroq *struct {
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	} `json:"x_groq"`
}

// Stream issues one streaming chat-completions request and relays each delta
// through onToken in arrival order.
func (p *GroqProvider) Stream(ctx context.Context, providerModelID string, history []Message, onToken TokenFunc) (*StreamResult, error) {
	if !p.IsEnabled() {
		return nil, fmt.Errorf("groq: API key is required")
	}

	type wireMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	wire := make([]wireMessage, 0, len(history))
	for _, m := range history {
		wire = append(wire, wireMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(map[string]any{
		"model":    providerModelID,
		"messages": wire,
		"stream":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("groq: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if msg := strings.TrimSpace(string(errBody)); msg != "" {
			// The body is normally the provider's JSON error envelope; keep it
			// intact so the caller can flatten it for display. Anything bigger
			// than an envelope (a proxy's HTML error page) gets capped.
			return nil, errors.New(util.Truncate(msg, util.DefaultTruncateLen))
		}
		return nil, fmt.Errorf("groq: unexpected status %d", resp.StatusCode)
	}

	var accumulated strings.Builder
	result := &StreamResult{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk groqChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, fmt.Errorf("groq: malformed stream chunk: %w", err)
		}

		if len(chunk.Choices) > 0 {
			if token := chunk.Choices[0].Delta.Content; token != "" {
				accumulated.WriteString(token)
				if err := onToken(token); err != nil {
					return nil, err
				}
			}
		}
		if chunk.XGroq != nil && chunk.XGroq.Usage != nil {
			result.InputTokens = chunk.XGroq.Usage.PromptTokens
			result.OutputTokens = chunk.XGroq.Usage.CompletionTokens
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("groq: read stream: %w", err)
	}

	result.Content = accumulated.String()
	return result, nil
}
