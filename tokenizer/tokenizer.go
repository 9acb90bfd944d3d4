// Package tokenizer provides an optional high-fidelity token counter for
// the compaction estimator, backed by tiktoken. When it is not wired in,
// the estimator silently degrades to a character heuristic.
package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/tokenfold/tokenfold/compaction"
)

// DefaultEncoding is cl100k_base, a reasonable approximation across
// providers.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a tiktoken encoding. Safe for concurrent use.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var _ compaction.Tokenizer = (*Tiktoken)(nil)

// New creates a Tiktoken using DefaultEncoding.
func New() (*Tiktoken, error) {
	return NewWithEncoding(DefaultEncoding)
}

// NewWithEncoding creates a Tiktoken with the named encoding.
func NewWithEncoding(name string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %q: %w", name, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
