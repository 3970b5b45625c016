package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/models"
)

// OpenAIClient implements Client on the OpenAI chat completions API with
// function-calling tools.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAIClient(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResult, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
		Messages:    toOpenAIMessages(messages),
		Tools:       toOpenAITools(tools),
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, c.classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &APIError{Kind: ErrorServer, Message: "empty choices in response"}
	}

	choice := resp.Choices[0]
	result := &ChatResult{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Model:            resp.Model,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, toolCallFromOpenAI(tc))
	}
	return result, nil
}

func toolCallFromOpenAI(tc openai.ToolCall) models.ToolCall {
	return models.ToolCall{
		Name:      tc.Function.Name,
		Arguments: tc.Function.Arguments,
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func (c *OpenAIClient) classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := ErrorBadRequest
		switch {
		case apiErr.HTTPStatusCode == 429:
			kind = ErrorRateLimited
		case apiErr.HTTPStatusCode >= 500:
			kind = ErrorServer
		}
		c.logger.Warn("openai api error",
			zap.Int("status", apiErr.HTTPStatusCode),
			zap.String("kind", string(kind)))
		return &APIError{
			Kind:       kind,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &APIError{Kind: ErrorNetwork, Message: netErr.Error()}
	}
	return &APIError{Kind: ErrorNetwork, Message: fmt.Sprintf("request failed: %v", err)}
}
