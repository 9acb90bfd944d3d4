package compaction

import (
	"sync"

	"github.com/tokenfold/tokenfold/types"
)

// Tokenizer counts tokens in text with provider-grade fidelity. The
// tokenizer package provides a tiktoken-backed implementation; a nil
// Tokenizer degrades the Estimator to a character heuristic.
type Tokenizer interface {
	Count(text string) int
}

// Estimator measures the token size of messages. It is an explicitly
// constructed value: there is no package-level tokenizer state, so two
// Estimators never share caches or fallback flags.
type Estimator struct {
	tok    Tokenizer
	logger Logger

	fallbackOnce sync.Once
}

// NewEstimator creates an Estimator. tok may be nil, in which case token
// estimates use the character heuristic max(1, len/4); the degradation is
// logged once, not per call, and is never an error. logger may be nil.
func NewEstimator(tok Tokenizer, logger Logger) *Estimator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Estimator{tok: tok, logger: logger}
}

// EstimateTokens returns the token count of text, via the tokenizer when
// one is configured and the character heuristic otherwise.
func (e *Estimator) EstimateTokens(text string) int {
	if e.tok != nil {
		return e.tok.Count(text)
	}
	e.fallbackOnce.Do(func() {
		e.logger.Debug("no tokenizer configured, estimating tokens from character count")
	})
	tokens := len(text) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateMessageTokens estimates tokens for a single message, counting
// serialized tool-call arguments as extra filler text on top of the
// content.
func (e *Estimator) EstimateMessageTokens(msg types.Message) int {
	total := e.EstimateTokens(msg.Content)
	for _, call := range msg.ToolCalls {
		total += e.EstimateTokens(call.Name + string(call.Args))
	}
	return total
}

// EstimateMessagesTokens sums EstimateMessageTokens across a list.
func (e *Estimator) EstimateMessagesTokens(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += e.EstimateMessageTokens(msg)
	}
	return total
}

// EstimateMessageChars mirrors EstimateMessageTokens in characters, for
// fast ratio checks that must not depend on a tokenizer.
func EstimateMessageChars(msg types.Message) int {
	total := len(msg.Content)
	for _, call := range msg.ToolCalls {
		total += len(call.Name) + len(call.Args)
	}
	return total
}

// EstimateContextChars sums EstimateMessageChars across a list.
func EstimateContextChars(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateMessageChars(msg)
	}
	return total
}
