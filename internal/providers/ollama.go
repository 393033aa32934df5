package providers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama implements the Reviewer interface for Ollama and LM Studio (OpenAI-compatible API).
type Ollama struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func (o *Ollama) Name() string { return "ollama" }

// Configure accepts an empty API key; local servers usually need none.
func (o *Ollama) Configure(creds Credentials, model string) error {
	if model == "" {
		return permanentError(o.Name(), "model is required")
	}
	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	// Normalize URL: strip trailing /, /v1, /v1/chat/completions
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	o.apiKey = creds.APIKey
	o.model = model
	o.baseURL = baseURL + "/v1/chat/completions"
	if o.client == nil {
		o.client = &http.Client{Timeout: 300 * time.Second}
	}
	return nil
}

func (o *Ollama) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	if o.baseURL == "" {
		return ReviewResponse{}, &Error{Provider: o.Name(), Kind: Permanent, Err: ErrNotConfigured}
	}
	return chatCompletion(ctx, o.client, o.Name(), o.baseURL, o.apiKey, o.model, req)
}
