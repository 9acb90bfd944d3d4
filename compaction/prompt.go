package compaction

import (
	"fmt"
	"strings"

	"github.com/tokenfold/tokenfold/types"
)

// DigestPrefix marks the assistant message that carries a compaction
// digest. The agent loop and later compaction passes recognize digests by
// this prefix.
const DigestPrefix = "[compaction] Previous conversation summary:"

// SummarizationSystemPrompt instructs the model to produce a digest that
// can stand in for the span it replaces.
const SummarizationSystemPrompt = `You are a conversation summarizer for an AI agent system. You will be given a portion of a conversation that must be replaced with a summary while the agent keeps working.

Write a structured summary with the following sections. Write "None" for a section with no relevant content.

1. **Goal and Constraints** — what the user is trying to accomplish and any requirements they stated.
2. **Work Completed** — what has been done so far, including files, artifacts, or outputs produced.
3. **Key Facts** — technical details, decisions, and domain knowledge established in this span.
4. **Errors and Fixes** — problems hit, how they were resolved, and approaches that did not work.
5. **Open Items** — pending tasks and unresolved questions, in priority order.
6. **Next Step** — the immediate action the agent should take when resuming.

Be concise but complete: include the specific names, paths, and values needed to continue without the original messages. Preserve chronological order within sections. Do not invent information that is not in the conversation.`

// BuildChunkSummaryPrompt wraps one serialized chunk for summarization.
func BuildChunkSummaryPrompt(conversationText string) string {
	return `Summarize the following portion of a conversation according to your instructions.

<conversation>
` + conversationText + `
</conversation>`
}

// BuildCombinePrompt wraps per-chunk summaries for the staged pass that
// merges them into one digest.
func BuildCombinePrompt(summaries []string) string {
	var b strings.Builder
	b.WriteString(`The following are summaries of consecutive portions of one conversation, oldest first. Merge them into a single summary in the same section format, removing repetition and keeping the most recent state of each item.

`)
	for i, summary := range summaries {
		fmt.Fprintf(&b, "<summary part=%q>\n%s\n</summary>\n\n", fmt.Sprintf("%d", i+1), summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// maxToolResultInSummary caps how much of a tool result is carried into
// the serialized conversation text; full results rarely help the digest.
const maxToolResultInSummary = 500

// FormatMessagesAsText serializes messages to role-prefixed plain text for
// summarization calls.
func FormatMessagesAsText(messages []types.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(roleLabel(msg.Role))
		b.WriteString(":\n")
		if msg.Content != "" {
			if msg.Role == types.RoleTool {
				b.WriteString(abbreviate(msg.Content, maxToolResultInSummary))
			} else {
				b.WriteString(msg.Content)
			}
			b.WriteString("\n")
		}
		for _, call := range msg.ToolCalls {
			fmt.Fprintf(&b, "[Tool call %s: %s %s]\n", call.ID, call.Name, string(call.Args))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func roleLabel(role types.Role) string {
	switch role {
	case types.RoleAssistant:
		return "Assistant"
	case types.RoleSystem:
		return "System"
	case types.RoleTool:
		return "Tool Result"
	default:
		return "User"
	}
}

func abbreviate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max-3] + "..."
}
