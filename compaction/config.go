package compaction

import (
	"fmt"

	"github.com/tidwall/match"
)

// Default settings values.
const (
	DefaultWindowTokens         = 200000 // Claude Sonnet context window
	DefaultCharsPerToken        = 4
	DefaultMaxToolResultShare   = 0.3    // one tool result may use up to 30% of the window
	DefaultMaxToolResultHardCap = 100000 // absolute per-result character cap
	DefaultMinKeepChars         = 200
	DefaultTruncationSuffix     = "\n\n[tool result truncated]"
	DefaultKeepLastAssistants   = 3
	DefaultSoftTrimRatio        = 0.6
	DefaultHardClearRatio       = 0.8
	DefaultMinPrunableToolChars = 20000
	DefaultSoftTrimHeadChars    = 1000
	DefaultSoftTrimTailChars    = 1000
	DefaultHardClearPlaceholder = "[TOOL OUTPUT PRUNED]"
	DefaultBaseChunkRatio       = 0.4
	DefaultMinChunkRatio        = 0.05
	DefaultSafetyMargin         = 0.8
	DefaultProactiveRatio       = 0.85 // trigger at 85% context usage
	DefaultSummaryTargetTokens  = 4096
	DefaultMaxAttempts          = 3
)

// SoftTrimMarker is inserted between the kept head and tail of a
// soft-trimmed tool result. Pruning recognizes already-trimmed content by
// its reduced length, which keeps the pruner idempotent.
const SoftTrimMarker = "\n\n[...trimmed...]\n\n"

// ToolPruningConfig restricts which tools' results may be pruned, by glob
// patterns over tool names. Deny overrides allow. An empty config means
// every tool result is prunable.
type ToolPruningConfig struct {
	// Allow lists glob patterns for prunable tool names. Empty means all.
	Allow []string

	// Deny lists glob patterns for tool names whose results must never be
	// pruned. Deny wins over Allow.
	Deny []string
}

// Prunable reports whether results of the named tool may be pruned.
func (p ToolPruningConfig) Prunable(toolName string) bool {
	for _, pattern := range p.Deny {
		if match.Match(toolName, pattern) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, pattern := range p.Allow {
		if match.Match(toolName, pattern) {
			return true
		}
	}
	return false
}

// Settings holds compaction configuration. A Settings value is immutable
// for the lifetime of a conversation: construct it once (normally via
// DefaultSettings, overriding individual fields) and pass it by value.
type Settings struct {
	// WindowTokens is the model's context window in tokens.
	// Default: 200000
	WindowTokens int

	// CharsPerToken converts between character and token budgets for the
	// fast ratio checks. Default: 4
	CharsPerToken int

	// MaxToolResultShare is the fraction of the window a single tool
	// result may occupy before Layer 1 truncates it. Default: 0.3
	MaxToolResultShare float64

	// MaxToolResultHardCap is the absolute character cap for a single tool
	// result, applied after the share calculation. Default: 100000
	MaxToolResultHardCap int

	// MinKeepChars is the minimum number of characters truncation keeps
	// from a tool result, so results never collapse to nothing.
	// Default: 200
	MinKeepChars int

	// TruncationSuffix is appended to truncated tool results.
	TruncationSuffix string

	// KeepLastAssistants is the number of most recent assistant turns
	// protected from pruning and summarization, along with everything
	// after the oldest of them. Default: 3
	KeepLastAssistants int

	// SoftTrimRatio is the context-usage ratio (context chars over window
	// chars) above which old tool results are soft-trimmed. Default: 0.6
	SoftTrimRatio float64

	// HardClearRatio is the usage ratio above which old tool results are
	// replaced entirely with HardClearPlaceholder. Default: 0.8
	HardClearRatio float64

	// MinPrunableToolChars is the minimum total prunable tool-result
	// volume (in characters) required before hard-clear engages; below it
	// clearing would not buy meaningful room. Default: 20000
	MinPrunableToolChars int

	// SoftTrimHeadChars and SoftTrimTailChars are the sizes of the head
	// and tail kept by a soft trim. Default: 1000 each
	SoftTrimHeadChars int
	SoftTrimTailChars int

	// HardClearPlaceholder replaces the content of hard-cleared tool
	// results. Default: "[TOOL OUTPUT PRUNED]"
	HardClearPlaceholder string

	// DisableHardClear turns off the hard-clear stage; soft trimming still
	// applies.
	DisableHardClear bool

	// DisableCompaction turns off proactive compaction entirely. The
	// explicit layer functions keep working when called directly.
	DisableCompaction bool

	// BaseChunkRatio is the starting fraction of the window used to size
	// one summarization chunk. Default: 0.4
	BaseChunkRatio float64

	// MinChunkRatio is the floor the chunk ratio shrinks toward as average
	// message size grows. Default: 0.05
	MinChunkRatio float64

	// SafetyMargin scales the chunk budget down so a chunk plus the
	// summarization prompt cannot itself overflow the call. Default: 0.8
	SafetyMargin float64

	// ProactiveRatio is the estimated-usage ratio above which the
	// orchestrator compacts before calling the model. Default: 0.85
	ProactiveRatio float64

	// SummaryTargetTokens is the size the final digest must stay below;
	// an oversized digest fails the strategy that produced it.
	// Default: 4096
	SummaryTargetTokens int

	// MaxAttempts is the total model-call budget per Completion, including
	// the first call. Default: 3
	MaxAttempts int

	// ToolPruning restricts which tools' results the pruner may touch.
	ToolPruning ToolPruningConfig
}

// DefaultSettings returns a Settings with production defaults.
func DefaultSettings() Settings {
	return Settings{
		WindowTokens:         DefaultWindowTokens,
		CharsPerToken:        DefaultCharsPerToken,
		MaxToolResultShare:   DefaultMaxToolResultShare,
		MaxToolResultHardCap: DefaultMaxToolResultHardCap,
		MinKeepChars:         DefaultMinKeepChars,
		TruncationSuffix:     DefaultTruncationSuffix,
		KeepLastAssistants:   DefaultKeepLastAssistants,
		SoftTrimRatio:        DefaultSoftTrimRatio,
		HardClearRatio:       DefaultHardClearRatio,
		MinPrunableToolChars: DefaultMinPrunableToolChars,
		SoftTrimHeadChars:    DefaultSoftTrimHeadChars,
		SoftTrimTailChars:    DefaultSoftTrimTailChars,
		HardClearPlaceholder: DefaultHardClearPlaceholder,
		BaseChunkRatio:       DefaultBaseChunkRatio,
		MinChunkRatio:        DefaultMinChunkRatio,
		SafetyMargin:         DefaultSafetyMargin,
		ProactiveRatio:       DefaultProactiveRatio,
		SummaryTargetTokens:  DefaultSummaryTargetTokens,
		MaxAttempts:          DefaultMaxAttempts,
	}
}

// ApplyDefaults fills in zero values with defaults. Boolean flags and the
// tool-pruning policy are left as provided.
func (s *Settings) ApplyDefaults() {
	if s.WindowTokens == 0 {
		s.WindowTokens = DefaultWindowTokens
	}
	if s.CharsPerToken == 0 {
		s.CharsPerToken = DefaultCharsPerToken
	}
	if s.MaxToolResultShare == 0 {
		s.MaxToolResultShare = DefaultMaxToolResultShare
	}
	if s.MaxToolResultHardCap == 0 {
		s.MaxToolResultHardCap = DefaultMaxToolResultHardCap
	}
	if s.MinKeepChars == 0 {
		s.MinKeepChars = DefaultMinKeepChars
	}
	if s.TruncationSuffix == "" {
		s.TruncationSuffix = DefaultTruncationSuffix
	}
	if s.KeepLastAssistants == 0 {
		s.KeepLastAssistants = DefaultKeepLastAssistants
	}
	if s.SoftTrimRatio == 0 {
		s.SoftTrimRatio = DefaultSoftTrimRatio
	}
	if s.HardClearRatio == 0 {
		s.HardClearRatio = DefaultHardClearRatio
	}
	if s.MinPrunableToolChars == 0 {
		s.MinPrunableToolChars = DefaultMinPrunableToolChars
	}
	if s.SoftTrimHeadChars == 0 {
		s.SoftTrimHeadChars = DefaultSoftTrimHeadChars
	}
	if s.SoftTrimTailChars == 0 {
		s.SoftTrimTailChars = DefaultSoftTrimTailChars
	}
	if s.HardClearPlaceholder == "" {
		s.HardClearPlaceholder = DefaultHardClearPlaceholder
	}
	if s.BaseChunkRatio == 0 {
		s.BaseChunkRatio = DefaultBaseChunkRatio
	}
	if s.MinChunkRatio == 0 {
		s.MinChunkRatio = DefaultMinChunkRatio
	}
	if s.SafetyMargin == 0 {
		s.SafetyMargin = DefaultSafetyMargin
	}
	if s.ProactiveRatio == 0 {
		s.ProactiveRatio = DefaultProactiveRatio
	}
	if s.SummaryTargetTokens == 0 {
		s.SummaryTargetTokens = DefaultSummaryTargetTokens
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
}

// Validate validates the settings and returns an error if invalid.
func (s Settings) Validate() error {
	if s.WindowTokens <= 0 {
		return fmt.Errorf("%w: window_tokens must be positive, got %d", ErrInvalidSettings, s.WindowTokens)
	}
	if s.CharsPerToken <= 0 {
		return fmt.Errorf("%w: chars_per_token must be positive, got %d", ErrInvalidSettings, s.CharsPerToken)
	}
	if s.MaxToolResultShare <= 0 || s.MaxToolResultShare > 1 {
		return fmt.Errorf("%w: max_tool_result_share must be in (0, 1], got %f", ErrInvalidSettings, s.MaxToolResultShare)
	}
	if s.MinKeepChars < 0 {
		return fmt.Errorf("%w: min_keep_chars must be non-negative, got %d", ErrInvalidSettings, s.MinKeepChars)
	}
	if s.KeepLastAssistants < 0 {
		return fmt.Errorf("%w: keep_last_assistants must be non-negative, got %d", ErrInvalidSettings, s.KeepLastAssistants)
	}
	if s.SoftTrimRatio <= 0 || s.SoftTrimRatio > 1 {
		return fmt.Errorf("%w: soft_trim_ratio must be in (0, 1], got %f", ErrInvalidSettings, s.SoftTrimRatio)
	}
	if s.HardClearRatio < s.SoftTrimRatio {
		return fmt.Errorf("%w: hard_clear_ratio (%f) must not be below soft_trim_ratio (%f)",
			ErrInvalidSettings, s.HardClearRatio, s.SoftTrimRatio)
	}
	if s.MinChunkRatio <= 0 || s.BaseChunkRatio < s.MinChunkRatio || s.BaseChunkRatio > 1 {
		return fmt.Errorf("%w: chunk ratios must satisfy 0 < min (%f) <= base (%f) <= 1",
			ErrInvalidSettings, s.MinChunkRatio, s.BaseChunkRatio)
	}
	if s.SafetyMargin <= 0 || s.SafetyMargin > 1 {
		return fmt.Errorf("%w: safety_margin must be in (0, 1], got %f", ErrInvalidSettings, s.SafetyMargin)
	}
	if s.ProactiveRatio <= 0 || s.ProactiveRatio > 1 {
		return fmt.Errorf("%w: proactive_ratio must be in (0, 1], got %f", ErrInvalidSettings, s.ProactiveRatio)
	}
	if s.SummaryTargetTokens <= 0 {
		return fmt.Errorf("%w: summary_target_tokens must be positive, got %d", ErrInvalidSettings, s.SummaryTargetTokens)
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive, got %d", ErrInvalidSettings, s.MaxAttempts)
	}
	return nil
}

// WindowChars returns the context window expressed in characters.
func (s Settings) WindowChars() int {
	return s.WindowTokens * s.CharsPerToken
}

// ProactiveThresholdTokens returns the estimated token count that triggers
// proactive compaction.
func (s Settings) ProactiveThresholdTokens() int {
	return int(float64(s.WindowTokens) * s.ProactiveRatio)
}
