package synthesis

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a model conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is a provider-neutral completion request. A negative
// Temperature means "use the provider default".
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient abstracts the language-model provider so the synthesizer
// can run against Gemini, OpenAI or Bedrock without caring which.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
