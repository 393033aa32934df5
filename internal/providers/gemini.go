package providers

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// generativeClient is the slice of the genai SDK the Gemini provider uses.
type generativeClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements the Reviewer interface for Google's Gemini API.
type Gemini struct {
	client generativeClient
	model  string
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Configure(creds Credentials, model string) error {
	if creds.APIKey == "" {
		return permanentError(g.Name(), "GEMINI_API_KEY (or GOOGLE_API_KEY) environment variable is not set")
	}
	if model == "" {
		return permanentError(g.Name(), "model is required")
	}
	cfg := &genai.ClientConfig{APIKey: creds.APIKey, Backend: genai.BackendGeminiAPI}
	if creds.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: creds.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return permanentError(g.Name(), "creating client: %v", err)
	}
	g.client = client.Models
	g.model = model
	return nil
}

func (g *Gemini) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	if g.client == nil {
		return ReviewResponse{}, &Error{Provider: g.Name(), Kind: Permanent, Err: ErrNotConfigured}
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		config.Temperature = &t
	}
	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.UserPrompt}}},
	}

	result, err := g.client.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return ReviewResponse{}, g.wrapError(err)
	}

	text := result.Text()
	if text == "" {
		return ReviewResponse{}, &Error{Provider: g.Name(), Kind: Transient, Err: errors.New("no content in response")}
	}
	resp := ReviewResponse{Content: text}
	if u := result.UsageMetadata; u != nil {
		resp.InputTokens = int(u.PromptTokenCount)
		resp.OutputTokens = int(u.CandidatesTokenCount)
	}
	return resp, nil
}

// wrapError converts genai API errors to *Error. The SDK returns APIError
// by value.
func (g *Gemini) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Provider: g.Name(), Kind: classifyStatus(apiErr.Code), StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &Error{Provider: g.Name(), Kind: classifyStatus(apiErrPtr.Code), StatusCode: apiErrPtr.Code, Err: err}
	}
	return transportError(g.Name(), err)
}
