// Package compaction keeps a growing conversation within a fixed token
// budget while preserving the pairing between tool calls and tool results.
//
// # Layers
//
// Compaction is layered, cheapest first:
//
//   - Layer 1, truncation: TruncateOversizedToolResults caps any single
//     tool result that exceeds its character budget. Deterministic, never
//     fails, never empties a non-empty result.
//
//   - Layer 2, pruning: PruneContextMessages soft-trims old tool results
//     (keep head and tail, drop the middle) once context usage crosses the
//     soft-trim ratio, and hard-clears them to a fixed placeholder once it
//     crosses the hard-clear ratio. The last KeepLastAssistants assistant
//     turns and everything after them are never touched. Idempotent.
//
//   - Layer 3, summarization: the Summarizer splits older history into
//     adaptively sized chunks, summarizes each with the model, combines
//     the chunk summaries in a staged pass, and replaces the span with a
//     single digest message. On failure it degrades to a single-pass
//     summary, and finally to Layer 1 truncation, which always succeeds.
//
// Every summarization is followed by an orphan-repair pass
// (RepairToolUseResultPairing), since removing an assistant span can leave
// tool results whose originating call no longer exists.
//
// # Orchestration
//
// The Compactor sequences the layers around model calls. Before a call,
// CompactIfNeeded prunes (and summarizes if pruning was not enough) once
// estimated usage crosses the proactive ratio. Completion implements the
// retry contract: on a context-overflow error it re-compacts and retries
// up to Settings.MaxAttempts; retries before the last run Layer 3, the
// final attempt applies Layer 1 truncation instead.
//
// # Purity and totality
//
// All transformation functions produce new message lists; inputs are never
// mutated and message order is never changed. Every function is defined
// for empty input and degenerate settings.
//
// # Thread Safety
//
// Everything except the Summarizer is synchronous and free of shared
// mutable state. The Summarizer performs one model call per chunk and may
// be cancelled between chunks via the context with no side effects.
// Independent conversations may compact concurrently, but the caller must
// guarantee at most one compaction in flight per conversation: compaction
// synthesizes a new canonical message list, and concurrent writers would
// race on which version is retained. The package takes no locks.
package compaction
