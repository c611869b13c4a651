package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
)

// Provider turns a system prompt and a user message into a completion.
type Provider interface {
	Complete(ctx context.Context, system string, user string) (string, error)
}

type ProviderConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ProviderFactory builds a provider for the stored settings.
type ProviderFactory func(settings domain.AdvisorSettings) Provider

var defaultEndpoints = map[string]struct {
	baseURL string
	model   string
}{
	domain.AdvisorOpenAI: {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	domain.AdvisorGemini: {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-1.5-flash"},
}

// NewHTTPProviderFactory returns a factory for OpenAI-compatible chat
// completion endpoints. Empty config fields fall back to per-provider defaults.
func NewHTTPProviderFactory(cfg ProviderConfig) ProviderFactory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(settings domain.AdvisorSettings) Provider {
		endpoint := defaultEndpoints[settings.Provider]
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = endpoint.baseURL
		}
		model := cfg.Model
		if model == "" {
			model = endpoint.model
		}
		return &HTTPProvider{
			client:  client,
			baseURL: strings.TrimRight(baseURL, "/"),
			model:   model,
			apiKey:  settings.APIKey,
		}
	}
}

type HTTPProvider struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *HTTPProvider) Complete(ctx context.Context, system string, user string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return "", fmt.Errorf("%w: provider returned status %d", ErrDependencyUnavailable, resp.StatusCode)
	}

	var decoded completionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode completion: %v", ErrDependencyUnavailable, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion", ErrDependencyUnavailable)
	}
	return decoded.Choices[0].Message.Content, nil
}
