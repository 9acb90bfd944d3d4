package compaction

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tokenfold/tokenfold/types"
)

func pruneTestSettings() Settings {
	return Settings{
		WindowTokens:         250, // 1000 chars at 4 chars/token
		CharsPerToken:        4,
		MaxToolResultShare:   0.3,
		MaxToolResultHardCap: 100000,
		MinKeepChars:         10,
		TruncationSuffix:     "[cut]",
		KeepLastAssistants:   1,
		SoftTrimRatio:        0.6,
		HardClearRatio:       0.8,
		MinPrunableToolChars: 100,
		SoftTrimHeadChars:    10,
		SoftTrimTailChars:    10,
		HardClearPlaceholder: "[TOOL OUTPUT PRUNED]",
		BaseChunkRatio:       0.4,
		MinChunkRatio:        0.05,
		SafetyMargin:         0.8,
		ProactiveRatio:       0.85,
		SummaryTargetTokens:  100,
		MaxAttempts:          3,
	}
}

func TestPruneBelowRatioNoOp(t *testing.T) {
	settings := pruneTestSettings()
	messages := []types.Message{
		types.NewToolMessage("c1", "db_query", strings.Repeat("x", 100)),
		types.NewAssistantMessage("done"),
	}

	out := PruneContextMessages(messages, settings)

	if !reflect.DeepEqual(out, messages) {
		t.Error("usage below soft-trim ratio must be a no-op")
	}
}

func TestPruneSoftTrim(t *testing.T) {
	settings := pruneTestSettings()
	body := strings.Repeat("h", 300) + strings.Repeat("t", 300) // 600 chars
	messages := []types.Message{
		types.NewToolMessage("c1", "db_query", body),
		types.NewUserMessage(strings.Repeat("u", 50)),
		types.NewAssistantMessage(strings.Repeat("a", 20)),
	}
	// 670 chars of 1000: soft-trim territory, below hard-clear.

	out := PruneContextMessages(messages, settings)

	want := strings.Repeat("h", 10) + SoftTrimMarker + strings.Repeat("t", 10)
	if out[0].Content != want {
		t.Errorf("soft-trimmed content = %q, want head+marker+tail", out[0].Content)
	}
	if out[1].Content != messages[1].Content || out[2].Content != messages[2].Content {
		t.Error("non-tool messages must pass through unchanged")
	}
	if messages[0].Content != body {
		t.Error("input list was mutated")
	}
}

func TestPruneHardClear(t *testing.T) {
	settings := pruneTestSettings()
	settings.KeepLastAssistants = 3
	messages := []types.Message{
		types.NewToolMessage("c1", "db_query", strings.Repeat("x", 850)),
		types.NewAssistantMessage("a1"),
		types.NewToolMessage("c2", "db_query", strings.Repeat("y", 40)),
		types.NewAssistantMessage("a2"),
		types.NewUserMessage("next"),
		types.NewAssistantMessage("a3"),
	}
	// ~900 chars of 1000: hard-clear territory. Cutoff is a1 (third
	// assistant from the end), so only the first tool result is old.

	out := PruneContextMessages(messages, settings)

	if out[0].Content != settings.HardClearPlaceholder {
		t.Errorf("old tool result = %q, want placeholder", out[0].Content)
	}
	if out[2].Content != messages[2].Content {
		t.Error("tool result inside the protected zone was touched")
	}
	for i := 1; i < len(messages); i++ {
		if i != 2 && out[i].Content != messages[i].Content {
			t.Errorf("message %d changed", i)
		}
	}
}

func TestPruneHardClearDisabled(t *testing.T) {
	settings := pruneTestSettings()
	settings.DisableHardClear = true
	messages := []types.Message{
		types.NewToolMessage("c1", "db_query", strings.Repeat("x", 850)),
		types.NewAssistantMessage("a1"),
	}

	out := PruneContextMessages(messages, settings)

	if out[0].Content == settings.HardClearPlaceholder {
		t.Error("hard clear ran while disabled")
	}
	if !strings.Contains(out[0].Content, SoftTrimMarker) {
		t.Error("soft trim must still apply when hard clear is disabled")
	}
}

func TestPruneHardClearNeedsVolume(t *testing.T) {
	settings := pruneTestSettings()
	settings.MinPrunableToolChars = 5000
	messages := []types.Message{
		types.NewToolMessage("c1", "db_query", strings.Repeat("x", 850)),
		types.NewAssistantMessage("a1"),
	}

	out := PruneContextMessages(messages, settings)

	if out[0].Content == settings.HardClearPlaceholder {
		t.Error("hard clear ran below the minimum prunable volume")
	}
}

func TestPruneProtectsRecentAssistants(t *testing.T) {
	settings := pruneTestSettings()
	messages := []types.Message{
		types.NewAssistantMessage("only assistant"),
		types.NewToolMessage("c1", "db_query", strings.Repeat("x", 800)),
	}
	// The single assistant turn is the protection cutoff: everything at or
	// after index 0 is protected.

	out := PruneContextMessages(messages, settings)

	if !reflect.DeepEqual(out, messages) {
		t.Error("messages inside the protected zone were modified")
	}
}

func TestPrunePolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  ToolPruningConfig
		tool    string
		pruned  bool
	}{
		{"default allows all", ToolPruningConfig{}, "anything", true},
		{"deny wins", ToolPruningConfig{Allow: []string{"*"}, Deny: []string{"secret_*"}}, "secret_fetch", false},
		{"deny misses", ToolPruningConfig{Deny: []string{"secret_*"}}, "db_query", true},
		{"allow restricts", ToolPruningConfig{Allow: []string{"db_*"}}, "web_search", false},
		{"allow matches", ToolPruningConfig{Allow: []string{"db_*"}}, "db_query", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := pruneTestSettings()
			settings.ToolPruning = tt.policy
			messages := []types.Message{
				types.NewToolMessage("c1", tt.tool, strings.Repeat("x", 850)),
				types.NewAssistantMessage("a1"),
			}

			out := PruneContextMessages(messages, settings)

			changed := out[0].Content != messages[0].Content
			if changed != tt.pruned {
				t.Errorf("tool %q pruned = %v, want %v", tt.tool, changed, tt.pruned)
			}
		})
	}
}

func TestPruneIdempotent(t *testing.T) {
	scenarios := map[string][]types.Message{
		"soft trim": {
			types.NewToolMessage("c1", "db_query", strings.Repeat("x", 600)),
			types.NewUserMessage(strings.Repeat("u", 50)),
			types.NewAssistantMessage("a1"),
		},
		"hard clear": {
			types.NewToolMessage("c1", "db_query", strings.Repeat("x", 850)),
			types.NewAssistantMessage("a1"),
		},
		"no-op": {
			types.NewUserMessage("hi"),
			types.NewAssistantMessage("hello"),
		},
	}

	settings := pruneTestSettings()
	for name, messages := range scenarios {
		t.Run(name, func(t *testing.T) {
			once := PruneContextMessages(messages, settings)
			twice := PruneContextMessages(once, settings)
			if !reflect.DeepEqual(once, twice) {
				t.Error("pruning an already-pruned list must be a no-op")
			}
		})
	}
}

func TestPruneEmptyAndDegenerate(t *testing.T) {
	settings := pruneTestSettings()

	if out := PruneContextMessages(nil, settings); len(out) != 0 {
		t.Errorf("empty input: got %d messages", len(out))
	}

	zero := Settings{}
	messages := []types.Message{types.NewUserMessage("hi")}
	if out := PruneContextMessages(messages, zero); !reflect.DeepEqual(out, messages) {
		t.Error("zero-window settings must be a no-op")
	}
}
