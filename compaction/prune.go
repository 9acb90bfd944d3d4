package compaction

import (
	"github.com/tokenfold/tokenfold/types"
)

// PruneContextMessages trims old tool results once context usage crosses
// the soft-trim ratio, and clears them entirely once it crosses the
// hard-clear ratio.
//
// The last KeepLastAssistants assistant turns, and every message at or
// after the oldest of them, are protected regardless of ratio. Only tool
// messages allowed by the pruning policy are touched; all other roles
// pass through untouched. The input is never mutated.
//
// Pruning is idempotent: a soft-trimmed result is already at or below the
// head+tail size, and a hard-cleared result already reads as the
// placeholder, so a second pass finds nothing further to do.
func PruneContextMessages(messages []types.Message, settings Settings) []types.Message {
	windowChars := settings.WindowChars()
	if len(messages) == 0 || windowChars <= 0 {
		return messages
	}

	ratio := float64(EstimateContextChars(messages)) / float64(windowChars)
	if ratio < settings.SoftTrimRatio {
		return messages
	}

	cutoff := protectionCutoff(messages, settings.KeepLastAssistants)

	// Total prunable volume, measured before any trimming: hard clear only
	// engages when clearing would actually buy room.
	prunableChars := 0
	for i := 0; i < cutoff; i++ {
		if isPrunableTool(messages[i], settings) {
			prunableChars += len(messages[i].Content)
		}
	}

	out := make([]types.Message, len(messages))
	copy(out, messages)

	head, tail := settings.SoftTrimHeadChars, settings.SoftTrimTailChars
	for i := 0; i < cutoff; i++ {
		msg := out[i]
		if !isPrunableTool(msg, settings) {
			continue
		}
		if len(msg.Content) > head+tail+len(SoftTrimMarker) {
			out[i] = msg.WithContent(msg.Content[:head] + SoftTrimMarker + msg.Content[len(msg.Content)-tail:])
		}
	}

	hardClear := ratio >= settings.HardClearRatio &&
		!settings.DisableHardClear &&
		prunableChars > settings.MinPrunableToolChars
	if hardClear {
		for i := 0; i < cutoff; i++ {
			msg := out[i]
			if !isPrunableTool(msg, settings) || msg.Content == settings.HardClearPlaceholder {
				continue
			}
			out[i] = msg.WithContent(settings.HardClearPlaceholder)
		}
	}

	return out
}

func isPrunableTool(msg types.Message, settings Settings) bool {
	return msg.Role == types.RoleTool && settings.ToolPruning.Prunable(msg.ToolName)
}

// protectionCutoff returns the index of the Nth-from-last assistant
// message. Every message at or after the cutoff is protected from pruning
// and summarization. If the history holds fewer than n assistant turns
// everything is protected; n <= 0 protects nothing.
func protectionCutoff(messages []types.Message, n int) int {
	if n <= 0 {
		return len(messages)
	}
	seen := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleAssistant {
			seen++
			if seen == n {
				return i
			}
		}
	}
	return 0
}
