package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	defaultDeepseekURL = "https://api.deepseek.com/chat/completions"
)

// OpenAI implements the Reviewer interface for OpenAI's API and for
// OpenAI-compatible vendors such as DeepSeek.
type OpenAI struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func (o *OpenAI) Name() string {
	if o.name == "" {
		return "openai"
	}
	return o.name
}

func (o *OpenAI) Configure(creds Credentials, model string) error {
	if creds.APIKey == "" {
		if o.Name() == "deepseek" {
			return permanentError(o.Name(), "DEEPSEEK_API_KEY environment variable is not set")
		}
		return permanentError(o.Name(), "OPENAI_API_KEY environment variable is not set")
	}
	if model == "" {
		return permanentError(o.Name(), "model is required")
	}
	o.apiKey = creds.APIKey
	o.model = model
	o.baseURL = creds.BaseURL
	if o.baseURL == "" {
		o.baseURL = defaultOpenAIURL
		if o.Name() == "deepseek" {
			o.baseURL = defaultDeepseekURL
		}
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 120 * time.Second}
	}
	return nil
}

func (o *OpenAI) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	if o.baseURL == "" {
		return ReviewResponse{}, &Error{Provider: o.Name(), Kind: Permanent, Err: ErrNotConfigured}
	}
	return chatCompletion(ctx, o.client, o.Name(), o.baseURL, o.apiKey, o.model, req)
}

// chatCompletion performs one OpenAI-style /chat/completions call.
func chatCompletion(ctx context.Context, client *http.Client, provider, url, apiKey, model string, req ReviewRequest) (ReviewResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]openaiMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.UserPrompt})

	body := openaiRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ReviewResponse{}, permanentError(provider, "marshaling request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return ReviewResponse{}, permanentError(provider, "creating request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return ReviewResponse{}, transportError(provider, fmt.Errorf("sending request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return ReviewResponse{}, transportError(provider, fmt.Errorf("reading response: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return ReviewResponse{}, statusError(provider, httpResp.StatusCode, string(respBody))
	}

	var result openaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return ReviewResponse{}, &Error{Provider: provider, Kind: Transient, Err: fmt.Errorf("parsing response: %w", err)}
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return ReviewResponse{}, &Error{Provider: provider, Kind: Transient, Err: errors.New("empty text content in API response")}
	}

	return ReviewResponse{
		Content:      result.Choices[0].Message.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}, nil
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
