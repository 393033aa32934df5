package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements the Reviewer interface for Anthropic's API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

func (a *Anthropic) Name() string { return "anthropic" }

// Configure builds the SDK client. The SDK's own retry loop is disabled so
// that the orchestrator's retry budget is the only one in play.
func (a *Anthropic) Configure(creds Credentials, model string) error {
	if creds.APIKey == "" {
		return permanentError(a.Name(), "ANTHROPIC_API_KEY environment variable is not set")
	}
	if model == "" {
		return permanentError(a.Name(), "model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(creds.APIKey),
		option.WithMaxRetries(0),
	}
	if creds.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(creds.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	a.client = &client
	a.model = model
	return nil
}

func (a *Anthropic) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	if a.client == nil {
		return ReviewResponse{}, &Error{Provider: a.Name(), Kind: Permanent, Err: ErrNotConfigured}
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return ReviewResponse{}, &Error{
				Provider:   a.Name(),
				Kind:       classifyStatus(apiErr.StatusCode),
				StatusCode: apiErr.StatusCode,
				Err:        err,
			}
		}
		return ReviewResponse{}, transportError(a.Name(), err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return ReviewResponse{}, &Error{Provider: a.Name(), Kind: Transient, Err: errors.New("empty text content in API response")}
	}

	return ReviewResponse{
		Content:      content.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
