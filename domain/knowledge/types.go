package knowledge

import (
	"strings"
	"time"

	"colsense/domain/mapping"
)

// History caps. Confirmation and ignore lists are append-and-truncate;
// entries themselves are never deleted by the engine.
const (
	MaxConfirmations = 20
	MaxIgnores       = 10
)

// Confirmation is one recorded column->type confirmation.
type Confirmation struct {
	Type        mapping.CanonicalType `json:"type"`
	Confidence  float64               `json:"confidence"`
	ConfirmedAt time.Time             `json:"confirmed_at"`
}

// IgnorePattern records that a column was ignored for an analytics context.
type IgnorePattern struct {
	AnalyticsContext string    `json:"analytics_context"`
	IgnoredAt        time.Time `json:"ignored_at"`
}

// Entry is the durable state for one column key (lower-cased column name).
type Entry struct {
	ColumnKey     string                `json:"column_key"`
	MappedType    mapping.CanonicalType `json:"mapped_type"`
	Confirmations []Confirmation        `json:"confirmations"`
	Ignores       []IgnorePattern       `json:"ignores"`
}

// Key normalizes a column name into its knowledge-base key.
func Key(columnName string) string {
	return strings.ToLower(strings.TrimSpace(columnName))
}

// AppendConfirmation appends c and truncates to the most recent
// MaxConfirmations entries. The newest confirmation also becomes the
// entry's mapped type.
func (e *Entry) AppendConfirmation(c Confirmation) {
	e.Confirmations = append(e.Confirmations, c)
	if n := len(e.Confirmations); n > MaxConfirmations {
		e.Confirmations = e.Confirmations[n-MaxConfirmations:]
	}
	e.MappedType = c.Type
}

// AppendIgnore appends p deduplicated by analytics context and truncates
// to the most recent MaxIgnores entries.
func (e *Entry) AppendIgnore(p IgnorePattern) {
	for i, existing := range e.Ignores {
		if existing.AnalyticsContext == p.AnalyticsContext {
			e.Ignores[i].IgnoredAt = p.IgnoredAt
			return
		}
	}
	e.Ignores = append(e.Ignores, p)
	if n := len(e.Ignores); n > MaxIgnores {
		e.Ignores = e.Ignores[n-MaxIgnores:]
	}
}

// ResolutionRecord is one persisted conflict adjudication. Frequency counts
// how many times the exact (type, winner, losers) tuple has recurred.
type ResolutionRecord struct {
	TargetType    mapping.CanonicalType `json:"target_type"`
	WinnerColumn  string                `json:"winner_column"`
	LoserColumns  []string              `json:"loser_columns"`
	Reasoning     string                `json:"reasoning"`
	Confidence    float64               `json:"confidence"`
	Frequency     int                   `json:"frequency"`
	UserConfirmed bool                  `json:"user_confirmed"`
	RecordedAt    time.Time             `json:"recorded_at"`
}

// ConflictPattern is the most frequent user-confirmed winner for a type.
type ConflictPattern struct {
	TargetType   mapping.CanonicalType `json:"target_type"`
	WinnerColumn string                `json:"winner_column"`
	Frequency    int                   `json:"frequency"`
}

// Snapshot is a read-consistent view of the store taken once per engine
// run. All lookups during the run consult the snapshot, never the live
// store, so concurrent writers cannot produce torn reads mid-run.
type Snapshot struct {
	Entries  map[string]Entry                          `json:"entries"`
	Patterns map[mapping.CanonicalType]ConflictPattern `json:"patterns"`
	TakenAt  time.Time                                 `json:"taken_at"`
}

// EmptySnapshot returns a usable snapshot for callers with no store.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Entries:  map[string]Entry{},
		Patterns: map[mapping.CanonicalType]ConflictPattern{},
		TakenAt:  time.Now(),
	}
}

// Lookup returns the entry for a column name, keyed case-insensitively.
func (s *Snapshot) Lookup(columnName string) (Entry, bool) {
	e, ok := s.Entries[Key(columnName)]
	return e, ok
}

// BestKnownWinner returns the learned winner pattern for a target type.
func (s *Snapshot) BestKnownWinner(t mapping.CanonicalType) (ConflictPattern, bool) {
	p, ok := s.Patterns[t]
	return p, ok
}
