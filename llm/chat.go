package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mbolis/quick-apply/integration"
)

var providers = map[string]struct{ base, model string }{
	"openai": {"https://api.openai.com/v1", "gpt-4o-mini"},
	"groq":   {"https://api.groq.com/openai/v1", "llama-3.1-8b-instant"},
}

// Chat talks to an OpenAI-compatible chat completions endpoint.
type Chat struct {
	provider string
	apiKey   string
	model    string
	base     string
	http     *http.Client
}

func NewChat(provider, apiKey, model, baseURL string) *Chat {
	defaults := providers[provider]
	if model == "" {
		model = defaults.model
	}
	if baseURL == "" {
		baseURL = defaults.base
	}
	return &Chat{
		provider: provider,
		apiKey:   apiKey,
		model:    model,
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
	}
}

type ChatRequest struct {
	Model       string              `json:"model"`
	Messages    []map[string]string `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float32             `json:"temperature,omitempty"`
}

type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Chat) Name() string {
	return "llm." + c.provider
}

func (c *Chat) Complete(ctx context.Context, prompt string) (string, error) {
	reply, err := c.chat(ctx, ChatRequest{
		Model: c.model,
		Messages: []map[string]string{
			{"role": "system", "content": "You are a strict technical recruiter. Reply with JSON only."},
			{"role": "user", "content": prompt},
		},
		MaxTokens:   256,
		Temperature: 0.2,
	})
	return reply, integration.Classify(c.Name(), err)
}

func (c *Chat) chat(ctx context.Context, req ChatRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
	r.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(r)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &integration.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var ch ChatResponse
	if err := json.Unmarshal(body, &ch); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if ch.Error != nil {
		return "", fmt.Errorf("%w: %s", integration.ErrInvalidResponse, ch.Error.Message)
	}
	if len(ch.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", integration.ErrInvalidResponse)
	}
	return ch.Choices[0].Message.Content, nil
}

func (*Chat) Close() error { return nil }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
