package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient creates a client for the Anthropic API.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// ModelName returns the configured model.
func (c *AnthropicClient) ModelName() string {
	return string(c.model)
}

// Complete sends a message request. System messages are lifted into the
// request's System field; the rest become the message list.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(req.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, c.classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return Response{}, &UnavailableError{
			Endpoint: "api.anthropic.com",
			Err:      errors.New("empty response from messages API"),
		}
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return Response{
		Content:    text.String(),
		StopReason: string(resp.StopReason),
	}, nil
}

// classifyError maps SDK errors onto the retry taxonomy. The SDK surfaces
// HTTP status inside the error string, so rate limits and server errors are
// recognized by code when present and by message text otherwise.
func (c *AnthropicClient) classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("messages request failed: %w", err)
	}

	errStr := err.Error()
	switch extractStatusCode(errStr) {
	case 429, 500, 502, 503, 504, 529:
		return &UnavailableError{Endpoint: "api.anthropic.com", Err: err}
	case 400, 401, 403:
		return fmt.Errorf("messages request failed: %w", err)
	}

	lower := strings.ToLower(errStr)
	if strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "connection") ||
		strings.Contains(lower, "network") ||
		strings.Contains(lower, "overloaded") ||
		strings.Contains(lower, "eof") ||
		strings.Contains(lower, "reset") {
		return &UnavailableError{Endpoint: "api.anthropic.com", Err: err}
	}
	return fmt.Errorf("messages request failed: %w", err)
}

// extractStatusCode pulls an HTTP status code out of an SDK error message.
// Returns 0 when none is found.
func extractStatusCode(errStr string) int {
	lower := strings.ToLower(errStr)
	for _, pattern := range []string{"status code: ", "status: ", "http ", "code "} {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		start := idx + len(pattern)
		if start+3 > len(errStr) {
			continue
		}
		switch errStr[start : start+3] {
		case "400":
			return 400
		case "401":
			return 401
		case "403":
			return 403
		case "429":
			return 429
		case "500":
			return 500
		case "502":
			return 502
		case "503":
			return 503
		case "504":
			return 504
		case "529":
			return 529
		}
	}
	return 0
}
