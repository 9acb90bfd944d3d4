package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/tokenfold/tokenfold/types"
)

// Model is the asynchronous LLM boundary: an ordered message list in, a
// text response out. Adapters must wrap provider overflow errors with
// ErrContextOverflow so the orchestrator can distinguish them.
type Model interface {
	Complete(ctx context.Context, messages []types.Message) (string, error)
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(ctx context.Context, messages []types.Message) (string, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, messages []types.Message) (string, error) {
	return f(ctx, messages)
}

// Strategy identifies which compaction technique produced a result.
type Strategy string

const (
	// StrategyPrune is ratio-driven trimming of old tool results (Layer 2).
	StrategyPrune Strategy = "prune"

	// StrategySummarize is chunked, staged summarization (Layer 3).
	StrategySummarize Strategy = "summarize"

	// StrategySinglePass is the coarser one-call summarization fallback.
	StrategySinglePass Strategy = "summarize_single_pass"

	// StrategyTruncate is the deterministic last-resort fallback (Layer 1).
	StrategyTruncate Strategy = "truncate"
)

// Summarizer replaces the oldest span of a conversation with an
// LLM-generated digest. Summarization is the only layer that performs
// external calls; it may be cancelled between chunks via the context with
// no side effects.
type Summarizer struct {
	model     Model
	estimator *Estimator
	settings  Settings
	logger    Logger
}

// NewSummarizer creates a Summarizer. model may be nil, in which case
// every summarization strategy fails and Summarize degrades to plain
// truncation.
func NewSummarizer(model Model, estimator *Estimator, settings Settings, logger Logger) *Summarizer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Summarizer{model: model, estimator: estimator, settings: settings, logger: logger}
}

// summaryAttempt is one entry in the ordered recovery chain. Each attempt
// either yields a digest for the span or reports failure; failures escalate
// to the next, cruder attempt.
type summaryAttempt struct {
	strategy Strategy
	run      func(ctx context.Context, span []types.Message) (string, error)
}

// Summarize replaces everything before the protection cutoff with a single
// digest message, falling back to a single-pass summary and finally to
// plain truncation when model calls fail or the digest is oversized. The
// result is always orphan-repaired, since removing an assistant span can
// orphan surviving tool results.
//
// The only error returned is context cancellation; every summarization
// failure is recovered internally.
func (s *Summarizer) Summarize(ctx context.Context, messages []types.Message) ([]types.Message, Strategy, int, error) {
	cutoff := protectionCutoff(messages, s.settings.KeepLastAssistants)
	span, protected := messages[:cutoff], messages[cutoff:]
	if len(span) == 0 {
		return messages, "", 0, nil
	}

	attempts := []summaryAttempt{
		{StrategySummarize, s.summarizeChunked},
		{StrategySinglePass, s.summarizeSinglePass},
	}

	for _, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, "", 0, err
		}

		digest, err := attempt.run(ctx, span)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", 0, ctx.Err()
			}
			s.logger.Warn("summarization strategy failed",
				"strategy", attempt.strategy,
				"span_messages", len(span),
				"error", err,
			)
			continue
		}

		if tokens := s.estimator.EstimateTokens(digest); tokens > s.settings.SummaryTargetTokens {
			s.logger.Warn("digest oversized, escalating",
				"strategy", attempt.strategy,
				"digest_tokens", tokens,
				"target_tokens", s.settings.SummaryTargetTokens,
			)
			continue
		}

		out := make([]types.Message, 0, len(protected)+1)
		out = append(out, types.NewAssistantMessage(DigestPrefix+"\n\n"+digest))
		out = append(out, protected...)

		report := RepairToolUseResultPairing(out)
		return report.Messages, attempt.strategy, report.DroppedOrphans, nil
	}

	// Last resort: deterministic truncation, guaranteed to reduce size.
	out, truncated := TruncateOversizedToolResults(messages, s.settings)
	s.logger.Info("summarization exhausted, fell back to truncation", "truncated", truncated)
	report := RepairToolUseResultPairing(out)
	return report.Messages, StrategyTruncate, report.DroppedOrphans, nil
}

// summarizeChunked splits the span into adaptively sized chunks,
// summarizes each, and merges the chunk summaries in a staged pass.
func (s *Summarizer) summarizeChunked(ctx context.Context, span []types.Message) (string, error) {
	chunks := splitChunks(span, s.chunkBudgetChars(span))

	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		summary, err := s.complete(ctx, BuildChunkSummaryPrompt(FormatMessagesAsText(chunk)))
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		summaries = append(summaries, summary)
	}

	if len(summaries) == 1 {
		return summaries[0], nil
	}
	return s.complete(ctx, BuildCombinePrompt(summaries))
}

// summarizeSinglePass serializes the whole span, caps it to one chunk
// budget, and summarizes it in a single call. Coarser than the chunked
// pass but cheaper and with fewer ways to fail.
func (s *Summarizer) summarizeSinglePass(ctx context.Context, span []types.Message) (string, error) {
	text := FormatMessagesAsText(span)
	budget := int(float64(s.settings.WindowChars()) * s.settings.BaseChunkRatio * s.settings.SafetyMargin)
	text = TruncateToolResultText(text, budget, s.settings.MinKeepChars, s.settings.TruncationSuffix)
	return s.complete(ctx, BuildChunkSummaryPrompt(text))
}

func (s *Summarizer) complete(ctx context.Context, userPrompt string) (string, error) {
	if s.model == nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, ErrNoModel)
	}
	response, err := s.model.Complete(ctx, []types.Message{
		types.NewSystemMessage(SummarizationSystemPrompt),
		types.NewUserMessage(userPrompt),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	if strings.TrimSpace(response) == "" {
		return "", fmt.Errorf("%w: empty response from summarizer", ErrSummarizationFailed)
	}
	return response, nil
}

// chunkBudgetChars sizes one summarization chunk. The ratio starts at
// BaseChunkRatio and shrinks linearly toward MinChunkRatio as the average
// message grows relative to the base budget, then the whole budget is
// scaled by SafetyMargin so a chunk plus prompt cannot overflow the call.
// The shrink curve is a tunable heuristic, not a contract.
func (s *Summarizer) chunkBudgetChars(span []types.Message) int {
	st := s.settings
	windowChars := st.WindowChars()

	avgChars := 0
	if len(span) > 0 {
		avgChars = EstimateContextChars(span) / len(span)
	}

	ratio := st.BaseChunkRatio
	if baseBudget := float64(windowChars) * st.BaseChunkRatio; baseBudget > 0 {
		ratio = st.BaseChunkRatio * (1 - float64(avgChars)/baseBudget)
	}
	if ratio < st.MinChunkRatio {
		ratio = st.MinChunkRatio
	}

	budget := int(float64(windowChars) * ratio * st.SafetyMargin)
	if budget < 1 {
		budget = 1
	}
	return budget
}

// splitChunks partitions messages into contiguous chunks of at most
// budgetChars each. A single message larger than the budget forms its own
// chunk; order is preserved.
func splitChunks(messages []types.Message, budgetChars int) [][]types.Message {
	var chunks [][]types.Message
	var current []types.Message
	currentChars := 0

	for _, msg := range messages {
		size := EstimateMessageChars(msg)
		if len(current) > 0 && currentChars+size > budgetChars {
			chunks = append(chunks, current)
			current = nil
			currentChars = 0
		}
		current = append(current, msg)
		currentChars += size
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
