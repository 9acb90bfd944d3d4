// Package anthropicmodel implements the compaction.Model boundary on the
// Anthropic Messages API, mapping provider "prompt too long" failures to
// compaction.ErrContextOverflow so the orchestrator can retry.
package anthropicmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/tokenfold/tokenfold/compaction"
	"github.com/tokenfold/tokenfold/types"
)

// Model calls the Anthropic Messages API over streaming, accumulating the
// response into plain text.
type Model struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

var _ compaction.Model = (*Model)(nil)

// New creates a Model for the given Anthropic client and model name.
// maxTokens caps each response.
func New(client *anthropic.Client, model string, maxTokens int64) *Model {
	return &Model{client: client, model: anthropic.Model(model), maxTokens: maxTokens}
}

// Complete sends the messages and returns the accumulated text response.
// Context-overflow failures come back wrapping
// compaction.ErrContextOverflow.
func (m *Model) Complete(ctx context.Context, messages []types.Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		System:    systemBlocks(messages),
		Messages:  convertMessages(messages),
	}

	stream := m.client.Messages.NewStreaming(ctx, params)

	accumulated := anthropic.Message{}
	for stream.Next() {
		if err := accumulated.Accumulate(stream.Current()); err != nil {
			return "", fmt.Errorf("accumulate stream: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return "", classify(err)
	}

	var response strings.Builder
	for _, block := range accumulated.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			response.WriteString(text.Text)
		}
	}
	return response.String(), nil
}

// systemBlocks collects system messages, which the API takes separately
// from the conversation turns.
func systemBlocks(messages []types.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

func convertMessages(messages []types.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			continue

		case types.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input any
				if len(call.Args) > 0 {
					_ = json.Unmarshal(call.Args, &input)
				}
				// API requires an object, not null
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			params = append(params, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})

		case types.RoleTool:
			params = append(params, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
				},
			})

		default:
			params = append(params, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		}
	}

	return params
}

// classify wraps provider overflow errors with the package sentinel and
// passes everything else through.
func classify(err error) error {
	if isOverflow(err) {
		return fmt.Errorf("%w: %v", compaction.ErrContextOverflow, err)
	}
	return err
}

// isOverflow checks if an error is the API's context-overflow rejection.
func isOverflow(err error) bool {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != 400 {
		return false
	}
	msg := strings.ToLower(apiErr.Error())
	return strings.Contains(msg, "prompt is too long") ||
		strings.Contains(msg, "context_length") ||
		strings.Contains(msg, "too many tokens")
}
