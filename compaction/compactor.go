package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/tokenfold/tokenfold/types"
)

// Result contains the outcome of a compaction operation.
type Result struct {
	// Strategy is the deepest layer that ran.
	Strategy Strategy

	// OriginalTokens is the estimated token count before compaction.
	OriginalTokens int

	// CompactedTokens is the estimated token count after compaction.
	CompactedTokens int

	// MessagesRemoved is how many messages the compacted history lost.
	MessagesRemoved int

	// DroppedOrphans is the number of tool results removed by the repair
	// pass because their originating call was summarized away.
	DroppedOrphans int

	// SummaryCreated indicates whether a digest message was created.
	SummaryCreated bool

	// Duration is how long the compaction took.
	Duration time.Duration
}

// Compactor sequences the compaction layers around model calls for one
// conversation. It holds no mutable conversation state and takes no
// locks; the caller must guarantee at most one compaction in flight per
// conversation.
type Compactor struct {
	model      Model
	settings   Settings
	estimator  *Estimator
	summarizer *Summarizer
	logger     Logger
}

// New creates a Compactor. settings nil means defaults; a non-nil value is
// copied with zero fields defaulted. tok and logger may be nil: estimation
// then falls back to the character heuristic and logging is discarded.
func New(model Model, settings *Settings, tok Tokenizer, logger Logger) *Compactor {
	var resolved Settings
	if settings == nil {
		resolved = DefaultSettings()
	} else {
		resolved = *settings
		resolved.ApplyDefaults()
	}
	if logger == nil {
		logger = noopLogger{}
	}

	estimator := NewEstimator(tok, logger)
	return &Compactor{
		model:      model,
		settings:   resolved,
		estimator:  estimator,
		summarizer: NewSummarizer(model, estimator, resolved, logger),
		logger:     logger,
	}
}

// Settings returns the compactor's resolved settings.
func (c *Compactor) Settings() Settings {
	return c.settings
}

// Estimator returns the compactor's estimator, for callers that want
// consistent token estimates.
func (c *Compactor) Estimator() *Estimator {
	return c.estimator
}

// NeedsCompaction reports whether estimated usage has crossed the
// proactive ratio.
func (c *Compactor) NeedsCompaction(messages []types.Message) bool {
	return c.estimator.EstimateMessagesTokens(messages) >= c.settings.ProactiveThresholdTokens()
}

// CompactIfNeeded runs the proactive path: when estimated usage crosses
// the proactive ratio it prunes, then summarizes if pruning was not
// enough. Result is nil when nothing was done. The returned list is the
// new canonical history; the input is untouched.
func (c *Compactor) CompactIfNeeded(ctx context.Context, messages []types.Message) ([]types.Message, *Result, error) {
	if c.settings.DisableCompaction || len(messages) == 0 {
		return messages, nil, nil
	}

	originalTokens := c.estimator.EstimateMessagesTokens(messages)
	threshold := c.settings.ProactiveThresholdTokens()
	if originalTokens < threshold {
		return messages, nil, nil
	}

	start := time.Now()
	c.logger.Info("starting compaction",
		"estimated_tokens", originalTokens,
		"threshold_tokens", threshold,
		"messages", len(messages),
	)

	out := PruneContextMessages(messages, c.settings)
	strategy := StrategyPrune
	dropped := 0

	if c.estimator.EstimateMessagesTokens(out) >= threshold {
		summarized, used, droppedOrphans, err := c.summarizer.Summarize(ctx, out)
		if err != nil {
			return messages, nil, WrapError("CompactIfNeeded", err)
		}
		if used != "" {
			out, strategy, dropped = summarized, used, droppedOrphans
		}
	}

	result := &Result{
		Strategy:        strategy,
		OriginalTokens:  originalTokens,
		CompactedTokens: c.estimator.EstimateMessagesTokens(out),
		MessagesRemoved: len(messages) - len(out),
		DroppedOrphans:  dropped,
		SummaryCreated:  strategy == StrategySummarize || strategy == StrategySinglePass,
		Duration:        time.Since(start),
	}

	c.logger.Info("compaction complete",
		"strategy", result.Strategy,
		"original_tokens", result.OriginalTokens,
		"compacted_tokens", result.CompactedTokens,
		"messages_removed", result.MessagesRemoved,
		"dropped_orphans", result.DroppedOrphans,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return out, result, nil
}

// CompactHistory runs Layer 3 directly: summarize the old span, repair
// orphans, and return the new history. It never fails except on context
// cancellation; summarization failures degrade internally down to plain
// truncation.
func (c *Compactor) CompactHistory(ctx context.Context, messages []types.Message) ([]types.Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}
	out, strategy, dropped, err := c.summarizer.Summarize(ctx, messages)
	if err != nil {
		return messages, WrapError("CompactHistory", err)
	}
	if strategy != "" {
		c.logger.Debug("history compacted",
			"strategy", strategy,
			"messages_before", len(messages),
			"messages_after", len(out),
			"dropped_orphans", dropped,
		)
	}
	return out, nil
}

// CompactHistory summarizes old history with the given model and settings.
// It is the one-shot form of (*Compactor).CompactHistory for callers that
// do not hold a Compactor.
func CompactHistory(ctx context.Context, messages []types.Message, model Model, settings Settings) ([]types.Message, error) {
	return New(model, &settings, nil, nil).CompactHistory(ctx, messages)
}

// Completion is the contract the agent loop follows around each model
// call. It compacts proactively, calls the model, and on a context
// overflow retries up to Settings.MaxAttempts total calls: each retry
// before the last re-summarizes (Layer 3); the final attempt instead
// applies deterministic tool-result truncation (Layer 1). It returns the
// model response and the message list that produced it, which the caller
// should adopt as the new canonical history.
//
// When every attempt overflows, the returned error wraps both
// ErrAttemptsExhausted and ErrContextOverflow; the agent loop must end
// the turn.
func (c *Compactor) Completion(ctx context.Context, messages []types.Message) (string, []types.Message, error) {
	if c.model == nil {
		return "", messages, NewCompactionError("Completion", ErrNoModel)
	}

	messages, _, err := c.CompactIfNeeded(ctx, messages)
	if err != nil {
		return "", messages, err
	}

	maxAttempts := c.settings.MaxAttempts
	var lastOverflow error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if attempt == maxAttempts {
				var truncated int
				messages, truncated = TruncateOversizedToolResults(messages, c.settings)
				c.logger.Info("final attempt, truncated oversized tool results", "truncated", truncated)
			} else {
				messages, err = c.CompactHistory(ctx, messages)
				if err != nil {
					return "", messages, err
				}
			}
		}

		response, err := c.model.Complete(ctx, messages)
		if err == nil {
			return response, messages, nil
		}
		if !IsContextOverflow(err) {
			return "", messages, err
		}

		lastOverflow = err
		c.logger.Warn("context overflow from model",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"estimated_tokens", c.estimator.EstimateMessagesTokens(messages),
		)
	}

	return "", messages, NewCompactionError("Completion",
		fmt.Errorf("%w: %w", ErrAttemptsExhausted, lastOverflow)).
		WithContext("attempts", maxAttempts)
}
