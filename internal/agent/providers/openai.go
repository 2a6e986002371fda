package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/toolsrt"
	"github.com/haasonsaas/agentcore/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements agent.Provider for OpenAI-dialect bots via
// a single non-streaming CreateChatCompletion round trip. Grounded on
// the teacher's internal/agent/providers.OpenAIProvider, with the
// streaming plumbing dropped per spec.md's non-streaming Provider
// contract.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
	retrier   retrier
}

// NewOpenAIProvider builds an OpenAI-dialect Provider from a BotConfig.
// An empty BaseURL uses the SDK's default (api.openai.com); a non-empty
// one lets a single dialect cover OpenAI-compatible gateways.
func NewOpenAIProvider(bot models.BotConfig) *OpenAIProvider {
	cfg := openai.DefaultConfig(bot.APIKey)
	if bot.BaseURL != "" {
		cfg.BaseURL = bot.BaseURL
	}
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		model:     bot.Model,
		maxTokens: bot.MaxTokens,
		retrier:   newRetrier(3, time.Second),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Call(ctx context.Context, req agent.Request) (*agent.Result, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: p.convertMessages(req.Messages, req.SystemPrompt),
	}
	if max := firstPositive(req.MaxTokens, p.maxTokens); max > 0 {
		chatReq.MaxTokens = max
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}

	var resp openai.ChatCompletionResponse
	var status int
	err := p.retrier.do(ctx, isRetryableMessage, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, chatReq)
		if callErr != nil {
			status = statusFromOpenAIError(callErr)
		}
		return callErr
	})
	if err != nil {
		pe := ClassifyError("openai", p.model, status, err)
		if pe.Reason != ReasonClientError {
			return nil, pe
		}
		return nil, &agent.ClientError{Err: pe}
	}
	if len(resp.Choices) == 0 {
		return nil, ClassifyError("openai", p.model, 502, fmt.Errorf("empty choices in response"))
	}

	choice := resp.Choices[0].Message
	return &agent.Result{
		Content:   choice.Content,
		ToolCalls: convertOpenAIToolCalls(choice.ToolCalls),
		Model:     resp.Model,
		Provider:  "openai",
	}, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func (p *OpenAIProvider) convertMessages(messages []models.Message, system string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, m := range messages {
		switch m.Role {
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			out = append(out, msg)
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func (p *OpenAIProvider) convertTools(tools []toolsrt.LLMTool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  schema,
			},
		})
	}
	return out
}

func convertOpenAIToolCalls(calls []openai.ToolCall) []models.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]models.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = models.ToolCall{
			ID: tc.ID,
			Function: models.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

// statusFromOpenAIError extracts the HTTP status code go-openai's
// *openai.APIError carries, falling back to 0 (transport failure) for
// any other error shape.
func statusFromOpenAIError(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}
