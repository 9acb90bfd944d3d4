package compaction

import (
	"errors"
	"fmt"
)

// Sentinel errors for compaction operations.
var (
	// ErrInvalidSettings indicates invalid compaction settings.
	ErrInvalidSettings = errors.New("invalid compaction settings")

	// ErrContextOverflow indicates the model rejected a request because
	// the conversation exceeds its context window. Model adapters wrap
	// provider-specific overflow errors with this sentinel.
	ErrContextOverflow = errors.New("context window overflow")

	// ErrSummarizationFailed indicates a summarization model call failed.
	// It is recovered internally by falling back to a cruder layer and is
	// surfaced only in logs.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrNoMessagesToCompact indicates there are no messages eligible for
	// compaction.
	ErrNoMessagesToCompact = errors.New("no messages to compact")

	// ErrNoModel indicates a Compactor was asked to call a model it was
	// not constructed with.
	ErrNoModel = errors.New("no model configured")

	// ErrAttemptsExhausted indicates the retry budget ran out while the
	// model kept reporting context overflow.
	ErrAttemptsExhausted = errors.New("compaction attempt budget exhausted")
)

// IsContextOverflow reports whether err is, or wraps, a context-overflow
// error from the model boundary.
func IsContextOverflow(err error) bool {
	return errors.Is(err, ErrContextOverflow)
}

// CompactionError provides structured error context for compaction operations.
type CompactionError struct {
	// Op is the operation that failed (e.g., "Completion", "Summarize")
	Op string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *CompactionError) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *CompactionError) Unwrap() error {
	return e.Err
}

// NewCompactionError creates a new CompactionError with the given operation
// and underlying error.
func NewCompactionError(op string, err error) *CompactionError {
	return &CompactionError{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithContext adds a key-value pair to the error context and returns the
// error for chaining.
func (e *CompactionError) WithContext(key string, value any) *CompactionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WrapError wraps an error with operation context. If err is nil, returns nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewCompactionError(op, err)
}
