// Package inference provides the LLM client used to filter and summarize CI
// failure evidence, with provider implementations, retry handling and the
// prompt registry.
package inference

import "context"

// Role identifies who authored a message in a completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a completion request.
type Message struct {
	Role    Role
	Content string
}

// Request is a completion request. A trailing assistant message acts as a
// response prefill where the provider supports it.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Response is the provider-agnostic completion result.
type Response struct {
	Content    string
	StopReason string
}

// Client is the interface every inference provider implements.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	ModelName() string
}

const (
	// DefaultMaxTokens bounds summarization replies.
	DefaultMaxTokens = 4096
	// DefaultTemperature keeps failure analysis focused, with a little
	// room to rephrase noisy log text.
	DefaultTemperature = 0.3
)

// NewRequest creates a completion request with default limits.
func NewRequest(messages []Message) Request {
	return Request{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
