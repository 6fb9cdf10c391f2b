// Package memory provides an in-process KnowledgeStore used by tests and
// as the fallback when no durable store is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
	"colsense/ports"
)

type resolutionKey struct {
	target mapping.CanonicalType
	winner string
	losers string
}

// Store is a mutex-guarded in-memory knowledge store. Writes are
// serialized; Snapshot returns deep copies so readers never observe a
// partially applied update.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]knowledge.Entry
	resolutions map[resolutionKey]knowledge.ResolutionRecord
	now         func() time.Time
}

var _ ports.KnowledgeStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries:     map[string]knowledge.Entry{},
		resolutions: map[resolutionKey]knowledge.ResolutionRecord{},
		now:         time.Now,
	}
}

// WithClock overrides the store's clock, for tests exercising time decay.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Snapshot returns a deep copy of all entries and learned patterns.
func (s *Store) Snapshot(ctx context.Context) (*knowledge.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &knowledge.Snapshot{
		Entries:  make(map[string]knowledge.Entry, len(s.entries)),
		Patterns: s.patternsLocked(),
		TakenAt:  s.now(),
	}
	for key, e := range s.entries {
		snap.Entries[key] = copyEntry(e)
	}
	return snap, nil
}

// Lookup returns a copy of the entry for columnKey.
func (s *Store) Lookup(ctx context.Context, columnKey string) (*knowledge.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[knowledge.Key(columnKey)]
	if !ok {
		return nil, core.NewNotFoundError(columnKey)
	}
	out := copyEntry(e)
	return &out, nil
}

// RecordConfirmation appends a confirmation, truncating to the cap.
func (s *Store) RecordConfirmation(ctx context.Context, columnKey string, t mapping.CanonicalType, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := knowledge.Key(columnKey)
	e := s.entries[key]
	e.ColumnKey = key
	e.AppendConfirmation(knowledge.Confirmation{Type: t, Confidence: confidence, ConfirmedAt: s.now()})
	s.entries[key] = e
	return nil
}

// RecordIgnore appends an ignore pattern, deduplicated and capped.
func (s *Store) RecordIgnore(ctx context.Context, columnKey, analyticsContext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := knowledge.Key(columnKey)
	e := s.entries[key]
	e.ColumnKey = key
	e.AppendIgnore(knowledge.IgnorePattern{AnalyticsContext: analyticsContext, IgnoredAt: s.now()})
	s.entries[key] = e
	return nil
}

// RecordConflictResolution upserts by (type, winner, losers), incrementing
// frequency on repeats. UserConfirmed is sticky once set.
func (s *Store) RecordConflictResolution(ctx context.Context, rec knowledge.ResolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := resolutionKey{
		target: rec.TargetType,
		winner: rec.WinnerColumn,
		losers: strings.Join(rec.LoserColumns, "|"),
	}
	if existing, ok := s.resolutions[key]; ok {
		existing.Frequency++
		existing.Reasoning = rec.Reasoning
		existing.Confidence = rec.Confidence
		existing.UserConfirmed = existing.UserConfirmed || rec.UserConfirmed
		existing.RecordedAt = s.now()
		s.resolutions[key] = existing
		return nil
	}
	if rec.Frequency <= 0 {
		rec.Frequency = 1
	}
	rec.RecordedAt = s.now()
	s.resolutions[key] = rec
	return nil
}

// BestKnownWinner returns the most frequent user-confirmed winner for a
// target type.
func (s *Store) BestKnownWinner(ctx context.Context, target mapping.CanonicalType) (*knowledge.ConflictPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patterns := s.patternsLocked()
	if p, ok := patterns[target]; ok {
		return &p, nil
	}
	return nil, core.NewNotFoundError(string(target))
}

func (s *Store) Close() error { return nil }

// patternsLocked aggregates user-confirmed resolution frequencies into the
// per-type winner patterns. Caller holds at least the read lock.
func (s *Store) patternsLocked() map[mapping.CanonicalType]knowledge.ConflictPattern {
	freq := map[mapping.CanonicalType]map[string]int{}
	for _, rec := range s.resolutions {
		if !rec.UserConfirmed {
			continue
		}
		if freq[rec.TargetType] == nil {
			freq[rec.TargetType] = map[string]int{}
		}
		freq[rec.TargetType][rec.WinnerColumn] += rec.Frequency
	}

	patterns := map[mapping.CanonicalType]knowledge.ConflictPattern{}
	for t, winners := range freq {
		names := make([]string, 0, len(winners))
		for name := range winners {
			names = append(names, name)
		}
		// stable winner on frequency ties
		sort.Strings(names)
		best := names[0]
		for _, name := range names[1:] {
			if winners[name] > winners[best] {
				best = name
			}
		}
		patterns[t] = knowledge.ConflictPattern{TargetType: t, WinnerColumn: best, Frequency: winners[best]}
	}
	return patterns
}

func copyEntry(e knowledge.Entry) knowledge.Entry {
	out := e
	out.Confirmations = append([]knowledge.Confirmation(nil), e.Confirmations...)
	out.Ignores = append([]knowledge.IgnorePattern(nil), e.Ignores...)
	return out
}
