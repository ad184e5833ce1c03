package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint
// (the hosted API, vLLM, or another serving stack exposing /v1).
type OpenAIClient struct {
	client   openai.Client
	model    string
	endpoint string
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// baseURL may be empty for the hosted API.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	endpoint := "api.openai.com"
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		endpoint = baseURL
	}
	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		model:    model,
		endpoint: endpoint,
	}
}

// ModelName returns the configured model.
func (c *OpenAIClient) ModelName() string {
	return c.model
}

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(float64(req.Temperature)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, c.classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, &UnavailableError{
			Endpoint: c.endpoint,
			Err:      errors.New("empty response from chat completion"),
		}
	}

	choice := resp.Choices[0]
	return Response{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}, nil
}

// classifyError maps SDK errors onto the retry taxonomy: rate limiting and
// server-side failures are retryable UnavailableErrors, client mistakes are
// not.
func (c *OpenAIClient) classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return &UnavailableError{Endpoint: c.endpoint, Err: err}
		}
		return fmt.Errorf("chat completion failed: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("chat completion failed: %w", err)
	}
	// SDK transport failures arrive as plain errors; treat connection
	// problems as unavailability.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "eof") || strings.Contains(msg, "reset") {
		return &UnavailableError{Endpoint: c.endpoint, Err: err}
	}
	return fmt.Errorf("chat completion failed: %w", err)
}
