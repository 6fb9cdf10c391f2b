package ports

import (
	"context"

	"colsense/domain/knowledge"
	"colsense/domain/mapping"
)

// KnowledgeStore defines the interface for durable learned state.
//
// Implementations must serialize writes (one logical update commits
// atomically) while allowing concurrent reads; a reader must never observe
// a partially written confirmation list or conflict-pattern row. A missing
// or corrupt backing store is recoverable by reinitializing to an empty
// schema and must not surface as a fatal error to the caller.
type KnowledgeStore interface {
	// Snapshot returns a read-consistent copy of the whole store.
	Snapshot(ctx context.Context) (*knowledge.Snapshot, error)

	// Lookup returns the entry for a column key, or core.ErrEntryNotFound.
	Lookup(ctx context.Context, columnKey string) (*knowledge.Entry, error)

	// RecordConfirmation appends a confirmation for columnKey and truncates
	// the history to the most recent knowledge.MaxConfirmations entries.
	RecordConfirmation(ctx context.Context, columnKey string, t mapping.CanonicalType, confidence float64) error

	// RecordIgnore appends an ignore pattern deduplicated by analytics
	// context, truncated to the most recent knowledge.MaxIgnores entries.
	RecordIgnore(ctx context.Context, columnKey, analyticsContext string) error

	// RecordConflictResolution upserts a resolution record, incrementing
	// the frequency counter when the exact (type, winner, losers) tuple
	// already exists. UserConfirmed, once set, is never cleared.
	RecordConflictResolution(ctx context.Context, rec knowledge.ResolutionRecord) error

	// BestKnownWinner returns the most frequent user-confirmed winner
	// pattern for a target type, or core.ErrEntryNotFound.
	BestKnownWinner(ctx context.Context, target mapping.CanonicalType) (*knowledge.ConflictPattern, error)

	Close() error
}
