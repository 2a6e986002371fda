package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/toolsrt"
	"github.com/haasonsaas/agentcore/pkg/models"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements agent.Provider for Anthropic-dialect
// bots via a single non-streaming Messages.New round trip. Grounded on
// the teacher's internal/agent/providers.AnthropicProvider's
// client setup and message/tool conversion, with the SSE streaming
// path dropped and prompt-caching behavior ported from
// original_source/agent/src/agent/provider/openai_format_provider.py's
// prepare_messages_for_completion: for any model whose ID contains
// "claude-3", the system prompt and the last user message's trailing
// text block each get `cache_control: {type: ephemeral}`.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
	retrier   retrier
}

// NewAnthropicProvider builds an Anthropic-dialect Provider from a
// BotConfig.
func NewAnthropicProvider(bot models.BotConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(bot.APIKey)}
	if bot.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(bot.BaseURL))
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     bot.Model,
		maxTokens: bot.MaxTokens,
		retrier:   newRetrier(3, time.Second),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) usesPromptCaching() bool {
	return strings.Contains(p.model, "claude-3")
}

func (p *AnthropicProvider) Call(ctx context.Context, req agent.Request) (*agent.Result, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, &agent.ClientError{Err: ClassifyError("anthropic", p.model, 400, err)}
	}

	maxTokens := int64(firstPositive(req.MaxTokens, p.maxTokens, defaultAnthropicMaxTokens))
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	if req.SystemPrompt != "" {
		block := anthropic.TextBlockParam{Text: req.SystemPrompt}
		if p.usesPromptCaching() {
			block.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		params.System = []anthropic.TextBlockParam{block}
	}

	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return nil, &agent.ClientError{Err: ClassifyError("anthropic", p.model, 400, err)}
		}
		params.Tools = tools
	}

	var resp *anthropic.Message
	var status int
	err = p.retrier.do(ctx, isRetryableMessage, func() error {
		var callErr error
		resp, callErr = p.client.Messages.New(ctx, params)
		if callErr != nil {
			status = statusFromAnthropicError(callErr)
		}
		return callErr
	})
	if err != nil {
		pe := ClassifyError("anthropic", p.model, status, err)
		if pe.Reason != ReasonClientError {
			return nil, pe
		}
		return nil, &agent.ClientError{Err: pe}
	}

	content, toolCalls := p.convertResponse(resp)
	return &agent.Result{
		Content:   content,
		ToolCalls: toolCalls,
		Model:     string(resp.Model),
		Provider:  "anthropic",
	}, nil
}

// convertMessages maps our Role taxonomy onto Anthropic's two-role
// model: user and tool messages both become user turns (a tool result
// is content inside a user turn in Anthropic's wire format); assistant
// messages become assistant turns, with any tool calls rendered as
// tool_use blocks. Prompt caching, when active, marks the last text
// part of the trailing user message. Adjacent same-role turns are then
// merged, since the API requires alternating roles.
func (p *AnthropicProvider) convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	lastUserIdx := -1

	for _, m := range messages {
		var blocks []anthropic.ContentBlockParamUnion

		switch m.Role {
		case models.RoleTool:
			blocks = append(blocks, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
			out = append(out, anthropic.NewUserMessage(blocks...))
			lastUserIdx = len(out) - 1

		case models.RoleAssistant:
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				args := tc.Function.Arguments
				if args == "" {
					args = "{}"
				}
				if err := json.Unmarshal([]byte(args), &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input for %s: %w", tc.Function.Name, err)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		default:
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			out = append(out, anthropic.NewUserMessage(blocks...))
			lastUserIdx = len(out) - 1
		}
	}

	if p.usesPromptCaching() && lastUserIdx >= 0 {
		markLastTextBlockCacheable(&out[lastUserIdx])
	}

	return mergeConsecutiveSameRole(out), nil
}

// mergeConsecutiveSameRole combines adjacent same-role entries' content
// blocks into one, since Anthropic's Messages API requires turns to
// alternate user/assistant. Our message list can produce runs of the
// same Anthropic role - e.g. two consecutive tool-result messages, or
// a rejected/cancelled tool call's synthesized result immediately
// followed by another user message - that must collapse into a single
// turn. Ported from the reference implementation's
// "merge consecutive same-role messages" pass in
// original_source/cli/src/ycli/chat/provider/anthropic_format_provider.py.
func mergeConsecutiveSameRole(messages []anthropic.MessageParam) []anthropic.MessageParam {
	if len(messages) == 0 {
		return messages
	}
	merged := make([]anthropic.MessageParam, 0, len(messages))
	merged = append(merged, messages[0])
	for _, m := range messages[1:] {
		last := &merged[len(merged)-1]
		if last.Role == m.Role {
			last.Content = append(last.Content, m.Content...)
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// markLastTextBlockCacheable tags the last text content block of msg
// with an ephemeral cache_control marker, appending a near-empty text
// block if the message has no text part at all (mirroring the
// reference implementation's fallback).
func markLastTextBlockCacheable(msg *anthropic.MessageParam) {
	for i := len(msg.Content) - 1; i >= 0; i-- {
		if msg.Content[i].OfText != nil {
			msg.Content[i].OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
			return
		}
	}
	block := anthropic.NewTextBlock("...")
	block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
	msg.Content = append(msg.Content, block)
}

func (p *AnthropicProvider) convertTools(tools []toolsrt.LLMTool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Function.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(t.Function.Description)
		}
		out = append(out, toolParam)
	}
	return out, nil
}

// convertResponse flattens an Anthropic Message's content blocks back
// into our (content string, tool calls) shape.
func (p *AnthropicProvider) convertResponse(resp *anthropic.Message) (string, []models.ToolCall) {
	var text strings.Builder
	var calls []models.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			argsJSON, err := json.Marshal(tu.Input)
			if err != nil {
				argsJSON = []byte("{}")
			}
			calls = append(calls, models.ToolCall{
				ID: tu.ID,
				Function: models.ToolCallFunction{
					Name:      tu.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}
	return text.String(), calls
}

func statusFromAnthropicError(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
