package synthesis

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAILLMClient implements LLMClient against the OpenAI chat
// completion API.
type OpenAILLMClient struct {
	client  *openai.Client
	modelID string
}

// NewOpenAILLMClient constructs an OpenAI-backed client. The model
// defaults to gpt-4o-mini when unset.
func NewOpenAILLMClient(apiKey, modelID string) (*OpenAILLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("synthesis: openai api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gpt-4o-mini"
	}
	return &OpenAILLMClient{client: openai.NewClient(apiKey), modelID: modelID}, nil
}

// Complete sends the request to the chat completion API.
func (c *OpenAILLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sys})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if len(msgs) == 0 {
		return LLMResponse{}, errors.New("synthesis: openai requires at least one message")
	}

	oaReq := openai.ChatCompletionRequest{
		Model:    c.modelID,
		Messages: msgs,
	}
	if req.Temperature >= 0 {
		oaReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		oaReq.MaxTokens = int(req.MaxTokens)
	}

	resp, err := c.client.CreateChatCompletion(ctx, oaReq)
	if err != nil {
		return LLMResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("synthesis: openai returned no choices")
	}

	return LLMResponse{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}
