package compaction

import (
	"strings"

	"github.com/tokenfold/tokenfold/types"
)

// CalculateMaxToolResultChars returns the per-result character budget:
// the window share capped by the hard maximum. It depends only on the
// settings value.
func CalculateMaxToolResultChars(settings Settings) int {
	maxChars := int(float64(settings.WindowTokens) * settings.MaxToolResultShare * float64(settings.CharsPerToken))
	if maxChars > settings.MaxToolResultHardCap {
		maxChars = settings.MaxToolResultHardCap
	}
	return maxChars
}

// TruncateToolResultText caps text at maxChars, keeping at least
// minKeepChars and appending suffix. When a newline exists in the last
// fifth of the kept span, the cut lands there so the result ends on a
// line boundary. Text at or under maxChars is returned unchanged.
//
// The result never exceeds max(minKeepChars, maxChars) + len(suffix), and
// never collapses to empty for non-empty input as long as minKeepChars or
// suffix is non-trivial.
func TruncateToolResultText(text string, maxChars, minKeepChars int, suffix string) string {
	if len(text) <= maxChars {
		return text
	}

	keep := maxChars - len(suffix)
	if keep < minKeepChars {
		keep = minKeepChars
	}
	if keep < 0 {
		keep = 0
	}
	if keep > len(text) {
		keep = len(text)
	}

	if keep > 0 {
		// Prefer a newline cut within [0.8*keep, keep].
		floor := keep * 4 / 5
		if idx := strings.LastIndexByte(text[:keep], '\n'); idx >= floor {
			keep = idx
		}
	}

	return text[:keep] + suffix
}

// TruncateOversizedToolResults applies TruncateToolResultText to every
// tool message whose content exceeds the per-result budget. Messages of
// other roles and in-budget tool results pass through unchanged. It
// returns the new list and the number of messages altered.
func TruncateOversizedToolResults(messages []types.Message, settings Settings) ([]types.Message, int) {
	maxChars := CalculateMaxToolResultChars(settings)

	out := make([]types.Message, len(messages))
	copy(out, messages)

	truncated := 0
	for i, msg := range out {
		if msg.Role != types.RoleTool || len(msg.Content) <= maxChars {
			continue
		}
		out[i] = msg.WithContent(TruncateToolResultText(msg.Content, maxChars, settings.MinKeepChars, settings.TruncationSuffix))
		truncated++
	}

	return out, truncated
}

// HasOversizedToolResults reports whether any tool message exceeds the
// per-result budget, using the same threshold as
// TruncateOversizedToolResults. It never modifies the input.
func HasOversizedToolResults(messages []types.Message, settings Settings) bool {
	maxChars := CalculateMaxToolResultChars(settings)
	for _, msg := range messages {
		if msg.Role == types.RoleTool && len(msg.Content) > maxChars {
			return true
		}
	}
	return false
}
