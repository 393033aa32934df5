package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrNotConfigured is returned by Review when Configure has not succeeded.
var ErrNotConfigured = errors.New("provider not configured")

// Credentials carries what a provider needs to authenticate. BaseURL
// overrides the vendor endpoint and is mostly useful for self-hosted or
// OpenAI-compatible servers.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// ReviewRequest contains the data sent to an LLM for review.
type ReviewRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// ReviewResponse contains the raw response from an LLM.
type ReviewResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// TokensUsed is the sum of input and output tokens.
func (r ReviewResponse) TokensUsed() int { return r.InputTokens + r.OutputTokens }

// Reviewer is the provider abstraction interface. Implementations make a
// single attempt per Review call and report failures as *Error so callers
// can decide whether to retry.
type Reviewer interface {
	Configure(creds Credentials, model string) error
	Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error)
	Name() string
}

const defaultMaxTokens = 4096

var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-4.1-mini",
	"deepseek":  "deepseek-chat",
	"gemini":    "gemini-2.5-flash",
	"ollama":    "qwen2.5-coder",
}

// New creates an unconfigured provider by name.
func New(provider string) (Reviewer, error) {
	switch provider {
	case "anthropic", "claude":
		return &Anthropic{}, nil
	case "openai":
		return &OpenAI{name: "openai"}, nil
	case "deepseek":
		return &OpenAI{name: "deepseek"}, nil
	case "gemini", "google":
		return &Gemini{}, nil
	case "ollama", "lmstudio":
		return &Ollama{}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// Open creates a provider by name and configures it with credentials from
// the environment. An empty model selects the provider default.
func Open(provider, model string) (Reviewer, error) {
	r, err := New(provider)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel(r.Name())
	}
	if err := r.Configure(EnvCredentials(r.Name()), model); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// Names lists the canonical provider names.
func Names() []string {
	names := make([]string, 0, len(defaultModels))
	for n := range defaultModels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EnvCredentials reads the conventional environment variables for a
// provider.
func EnvCredentials(provider string) Credentials {
	switch provider {
	case "anthropic":
		return Credentials{APIKey: os.Getenv("ANTHROPIC_API_KEY"), BaseURL: os.Getenv("ANTHROPIC_BASE_URL")}
	case "openai":
		return Credentials{APIKey: os.Getenv("OPENAI_API_KEY"), BaseURL: os.Getenv("PRCRITIC_OPENAI_BASE_URL")}
	case "deepseek":
		return Credentials{APIKey: os.Getenv("DEEPSEEK_API_KEY"), BaseURL: os.Getenv("PRCRITIC_DEEPSEEK_BASE_URL")}
	case "gemini":
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			key = os.Getenv("GOOGLE_API_KEY")
		}
		return Credentials{APIKey: key}
	case "ollama":
		return Credentials{APIKey: os.Getenv("PRCRITIC_OLLAMA_API_KEY"), BaseURL: os.Getenv("OLLAMA_HOST")}
	default:
		return Credentials{}
	}
}
