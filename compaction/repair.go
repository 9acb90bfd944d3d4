package compaction

import (
	"github.com/tokenfold/tokenfold/types"
)

// RepairReport is the result of one orphan-repair pass.
type RepairReport struct {
	// Messages is the repaired list, in the original order.
	Messages []types.Message

	// DroppedOrphans is the number of tool messages removed because their
	// originating tool call no longer exists.
	DroppedOrphans int
}

// RepairToolUseResultPairing restores the invariant that every tool
// message's tool_call_id, if set, references a call present among the
// surviving assistant messages. Orphaned tool messages are dropped; the
// relative order of survivors is preserved.
//
// A history carrying no tool-call metadata at all is returned unchanged
// with zero drops: a degraded capability, not an error.
func RepairToolUseResultPairing(messages []types.Message) RepairReport {
	if !types.HasToolMetadata(messages) {
		return RepairReport{Messages: messages}
	}

	known := make(map[string]struct{})
	for _, msg := range messages {
		if msg.Role != types.RoleAssistant {
			continue
		}
		for _, call := range msg.ToolCalls {
			known[call.ID] = struct{}{}
		}
	}

	out := make([]types.Message, 0, len(messages))
	dropped := 0
	for _, msg := range messages {
		if msg.Role == types.RoleTool && msg.ToolCallID != "" {
			if _, ok := known[msg.ToolCallID]; !ok {
				dropped++
				continue
			}
		}
		out = append(out, msg)
	}

	return RepairReport{Messages: out, DroppedOrphans: dropped}
}
