// Package types defines the conversation message model shared by the
// compaction engine and its model adapters.
package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Role represents the message role
type Role string

const (
	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"

	// RoleTool represents a tool result message
	RoleTool Role = "tool"

	// RoleSystem represents a system message
	RoleSystem Role = "system"
)

// ToolCall describes a single tool invocation requested by an assistant
// message. ID is unique within the conversation and is referenced by the
// tool message that answers the call.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Message is one entry in a conversation history.
//
// Variant-specific fields are set by the constructors: ToolCalls only on
// assistant messages, ToolCallID and ToolName only on tool messages.
// Messages are treated as immutable once created; every compaction
// operation copies rather than mutating, so a Message value may be shared
// freely between history versions.
type Message struct {
	ID      uuid.UUID `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`

	// ToolCalls is set on assistant messages that request tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID references the assistant tool call this tool message
	// answers. Empty when the producing runtime did not track call IDs.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the name of the tool that produced this tool message.
	ToolName string `json:"tool_name,omitempty"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{ID: uuid.New(), Role: RoleUser, Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{ID: uuid.New(), Role: RoleSystem, Content: content}
}

// NewAssistantMessage creates an assistant message, optionally carrying
// tool-call descriptors.
func NewAssistantMessage(content string, toolCalls ...ToolCall) Message {
	return Message{ID: uuid.New(), Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// NewToolMessage creates a tool result message answering the given tool
// call. toolCallID may be empty for runtimes that do not track call IDs;
// such messages are exempt from orphan repair.
func NewToolMessage(toolCallID, toolName, content string) Message {
	return Message{ID: uuid.New(), Role: RoleTool, Content: content, ToolCallID: toolCallID, ToolName: toolName}
}

// WithContent returns a copy of m carrying the given content. The copy
// keeps the original ID so the message stays correlatable across
// compaction passes.
func (m Message) WithContent(content string) Message {
	m.Content = content
	return m
}

// HasToolMetadata reports whether any message in the list carries
// tool-call descriptors or references one. When false, orphan repair
// degrades to identity.
func HasToolMetadata(messages []Message) bool {
	for _, m := range messages {
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return true
		}
	}
	return false
}
