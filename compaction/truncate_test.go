package compaction

import (
	"strings"
	"testing"

	"github.com/tokenfold/tokenfold/types"
)

func truncateTestSettings() Settings {
	return Settings{
		WindowTokens:         1000,
		CharsPerToken:        4,
		MaxToolResultShare:   0.3,
		MaxToolResultHardCap: 100000,
		MinKeepChars:         100,
		TruncationSuffix:     "\n[truncated]",
	}
}

func TestCalculateMaxToolResultChars(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		expected int
	}{
		{
			name:     "share below hard cap",
			settings: Settings{WindowTokens: 1000, CharsPerToken: 4, MaxToolResultShare: 0.3, MaxToolResultHardCap: 100000},
			expected: 1200,
		},
		{
			name:     "hard cap binds",
			settings: Settings{WindowTokens: 1000, CharsPerToken: 4, MaxToolResultShare: 0.3, MaxToolResultHardCap: 500},
			expected: 500,
		},
		{
			name:     "full window share",
			settings: Settings{WindowTokens: 100, CharsPerToken: 4, MaxToolResultShare: 1.0, MaxToolResultHardCap: 100000},
			expected: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateMaxToolResultChars(tt.settings); got != tt.expected {
				t.Errorf("CalculateMaxToolResultChars() = %d, want %d", got, tt.expected)
			}
			// Depends only on the settings value.
			if again := CalculateMaxToolResultChars(tt.settings); again != tt.expected {
				t.Errorf("second call = %d, want %d", again, tt.expected)
			}
		})
	}
}

func TestTruncateToolResultTextNoOp(t *testing.T) {
	text := strings.Repeat("a", 100)
	if got := TruncateToolResultText(text, 100, 10, "..."); got != text {
		t.Error("text at the limit must pass through unchanged")
	}
	if got := TruncateToolResultText("", 100, 10, "..."); got != "" {
		t.Errorf("empty text changed to %q", got)
	}
}

func TestTruncateToolResultTextSizeBound(t *testing.T) {
	tests := []struct {
		name         string
		textLen      int
		maxChars     int
		minKeepChars int
		suffix       string
	}{
		{"plain cut", 2000, 1200, 100, "\n[truncated]"},
		{"tiny budget", 500, 10, 0, "..."},
		{"min keep dominates", 500, 10, 50, "..."},
		{"no suffix", 300, 100, 20, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.textLen)
			got := TruncateToolResultText(text, tt.maxChars, tt.minKeepChars, tt.suffix)

			bound := tt.maxChars
			if tt.minKeepChars > bound {
				bound = tt.minKeepChars
			}
			if len(got) > bound+len(tt.suffix) {
				t.Errorf("len = %d, want <= %d", len(got), bound+len(tt.suffix))
			}
			if tt.minKeepChars > 0 && len(got) < tt.minKeepChars {
				t.Errorf("len = %d, below min keep %d", len(got), tt.minKeepChars)
			}
			if !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("result does not end with suffix %q", tt.suffix)
			}
		})
	}
}

func TestTruncateToolResultTextNewlinePreference(t *testing.T) {
	suffix := "[cut]"
	// keep = 1200 - 5 = 1195, newline window is [956, 1195].
	text := strings.Repeat("a", 1100) + "\n" + strings.Repeat("b", 900)

	got := TruncateToolResultText(text, 1200, 100, suffix)

	want := strings.Repeat("a", 1100) + suffix
	if got != want {
		t.Errorf("cut at %d chars, want a cut at the newline (1100)", len(got)-len(suffix))
	}
}

func TestTruncateToolResultTextNewlineTooEarly(t *testing.T) {
	suffix := "[cut]"
	// Only newline is at 100, below the 80% window: cut lands at keep.
	text := strings.Repeat("a", 100) + "\n" + strings.Repeat("b", 2000)

	got := TruncateToolResultText(text, 1200, 100, suffix)

	if len(got) != 1195+len(suffix) {
		t.Errorf("len = %d, want %d", len(got), 1195+len(suffix))
	}
}

func TestTruncateOversizedToolResults(t *testing.T) {
	settings := truncateTestSettings() // budget 1200 chars
	big := strings.Repeat("x", 2000)
	small := strings.Repeat("y", 50)

	messages := []types.Message{
		types.NewUserMessage(big),
		types.NewAssistantMessage(big),
		types.NewToolMessage("c1", "search", big),
		types.NewToolMessage("c2", "search", small),
	}

	out, truncated := TruncateOversizedToolResults(messages, settings)

	if truncated != 1 {
		t.Fatalf("truncated = %d, want 1", truncated)
	}
	if len(out) != len(messages) {
		t.Fatalf("message count changed: %d -> %d", len(messages), len(out))
	}
	if out[0].Content != big || out[1].Content != big {
		t.Error("non-tool messages must pass through unchanged")
	}
	if out[3].Content != small {
		t.Error("in-budget tool result must pass through unchanged")
	}
	if len(out[2].Content) > 1200+len(settings.TruncationSuffix) {
		t.Errorf("oversized tool result not capped: len = %d", len(out[2].Content))
	}
	if messages[2].Content != big {
		t.Error("input list was mutated")
	}
}

func TestTruncateOversizedToolResultsEmpty(t *testing.T) {
	out, truncated := TruncateOversizedToolResults(nil, truncateTestSettings())
	if len(out) != 0 || truncated != 0 {
		t.Errorf("empty input: got %d messages, %d truncated", len(out), truncated)
	}
}

func TestHasOversizedToolResults(t *testing.T) {
	settings := truncateTestSettings()

	over := []types.Message{types.NewToolMessage("c1", "search", strings.Repeat("x", 1300))}
	if !HasOversizedToolResults(over, settings) {
		t.Error("expected oversized result to be detected")
	}

	under := []types.Message{
		types.NewToolMessage("c1", "search", strings.Repeat("x", 1200)),
		types.NewUserMessage(strings.Repeat("x", 5000)),
	}
	if HasOversizedToolResults(under, settings) {
		t.Error("in-budget tool result and oversized user message must not trigger")
	}

	if HasOversizedToolResults(nil, settings) {
		t.Error("empty input must not trigger")
	}
}
