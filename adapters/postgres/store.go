// Package postgres persists the knowledge base in PostgreSQL, for
// deployments where several resolvers share one knowledge base.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
	"colsense/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS mappings (
	column_key     TEXT PRIMARY KEY,
	canonical_type TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS confirmations (
	id             BIGSERIAL PRIMARY KEY,
	column_key     TEXT NOT NULL,
	canonical_type TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	confirmed_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_confirmations_key ON confirmations(column_key, confirmed_at);
CREATE TABLE IF NOT EXISTS ignored_patterns (
	column_key     TEXT NOT NULL,
	analytics_type TEXT NOT NULL,
	ignored_at     TIMESTAMPTZ NOT NULL,
	UNIQUE(column_key, analytics_type)
);
CREATE TABLE IF NOT EXISTS conflict_resolutions (
	target_type    TEXT NOT NULL,
	winner_column  TEXT NOT NULL,
	loser_columns  TEXT NOT NULL,
	reasoning      TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	frequency      INTEGER NOT NULL DEFAULT 1,
	user_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	recorded_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY(target_type, winner_column, loser_columns)
);
`

// Store is a PostgreSQL-backed knowledge store.
type Store struct {
	db *sqlx.DB
}

var _ ports.KnowledgeStore = (*Store)(nil)

// Open connects to the database at url and ensures the schema exists.
func Open(ctx context.Context, url string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return core.ErrStoreClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type confirmationRow struct {
	ColumnKey   string    `db:"column_key"`
	Type        string    `db:"canonical_type"`
	Confidence  float64   `db:"confidence"`
	ConfirmedAt time.Time `db:"confirmed_at"`
}

type ignoreRow struct {
	ColumnKey string    `db:"column_key"`
	Analytics string    `db:"analytics_type"`
	IgnoredAt time.Time `db:"ignored_at"`
}

// Snapshot loads all entries and learned patterns inside one repeatable-read
// transaction.
func (s *Store) Snapshot(ctx context.Context) (*knowledge.Snapshot, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &knowledge.Snapshot{
		Entries:  map[string]knowledge.Entry{},
		Patterns: map[mapping.CanonicalType]knowledge.ConflictPattern{},
		TakenAt:  time.Now(),
	}

	var mappedRows []struct {
		ColumnKey string `db:"column_key"`
		Type      string `db:"canonical_type"`
	}
	if err := tx.SelectContext(ctx, &mappedRows,
		`SELECT column_key, canonical_type FROM mappings`); err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	for _, row := range mappedRows {
		e := snap.Entries[row.ColumnKey]
		e.ColumnKey = row.ColumnKey
		e.MappedType = mapping.CanonicalType(row.Type)
		snap.Entries[row.ColumnKey] = e
	}

	var confirmations []confirmationRow
	if err := tx.SelectContext(ctx, &confirmations, `
		SELECT column_key, canonical_type, confidence, confirmed_at
		FROM confirmations ORDER BY column_key, confirmed_at, id`); err != nil {
		return nil, fmt.Errorf("failed to load confirmations: %w", err)
	}
	for _, row := range confirmations {
		e := snap.Entries[row.ColumnKey]
		e.ColumnKey = row.ColumnKey
		e.Confirmations = append(e.Confirmations, knowledge.Confirmation{
			Type:        mapping.CanonicalType(row.Type),
			Confidence:  row.Confidence,
			ConfirmedAt: row.ConfirmedAt,
		})
		if e.MappedType == "" {
			e.MappedType = mapping.CanonicalType(row.Type)
		}
		snap.Entries[row.ColumnKey] = e
	}

	var ignores []ignoreRow
	if err := tx.SelectContext(ctx, &ignores, `
		SELECT column_key, analytics_type, ignored_at
		FROM ignored_patterns ORDER BY column_key, ignored_at`); err != nil {
		return nil, fmt.Errorf("failed to load ignores: %w", err)
	}
	for _, row := range ignores {
		e := snap.Entries[row.ColumnKey]
		e.ColumnKey = row.ColumnKey
		e.Ignores = append(e.Ignores, knowledge.IgnorePattern{
			AnalyticsContext: row.Analytics,
			IgnoredAt:        row.IgnoredAt,
		})
		snap.Entries[row.ColumnKey] = e
	}

	var patternRows []struct {
		Target string `db:"target_type"`
		Winner string `db:"winner_column"`
		Freq   int    `db:"freq"`
	}
	if err := tx.SelectContext(ctx, &patternRows, `
		SELECT target_type, winner_column, SUM(frequency) AS freq
		FROM conflict_resolutions
		WHERE user_confirmed
		GROUP BY target_type, winner_column
		ORDER BY target_type, freq DESC, winner_column`); err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	for _, row := range patternRows {
		t := mapping.CanonicalType(row.Target)
		if _, seen := snap.Patterns[t]; !seen {
			snap.Patterns[t] = knowledge.ConflictPattern{TargetType: t, WinnerColumn: row.Winner, Frequency: row.Freq}
		}
	}

	return snap, tx.Commit()
}

// Lookup loads a single entry by column key.
func (s *Store) Lookup(ctx context.Context, columnKey string) (*knowledge.Entry, error) {
	key := knowledge.Key(columnKey)
	e := knowledge.Entry{ColumnKey: key}
	found := false

	var mapped string
	err := s.db.GetContext(ctx, &mapped,
		`SELECT canonical_type FROM mappings WHERE column_key = $1`, key)
	switch {
	case err == nil:
		e.MappedType = mapping.CanonicalType(mapped)
		found = true
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("failed to lookup mapping: %w", err)
	}

	var confirmations []confirmationRow
	if err := s.db.SelectContext(ctx, &confirmations, `
		SELECT column_key, canonical_type, confidence, confirmed_at
		FROM confirmations WHERE column_key = $1 ORDER BY confirmed_at, id`, key); err != nil {
		return nil, fmt.Errorf("failed to lookup confirmations: %w", err)
	}
	for _, row := range confirmations {
		e.Confirmations = append(e.Confirmations, knowledge.Confirmation{
			Type:        mapping.CanonicalType(row.Type),
			Confidence:  row.Confidence,
			ConfirmedAt: row.ConfirmedAt,
		})
		found = true
	}

	var ignores []ignoreRow
	if err := s.db.SelectContext(ctx, &ignores, `
		SELECT column_key, analytics_type, ignored_at
		FROM ignored_patterns WHERE column_key = $1 ORDER BY ignored_at`, key); err != nil {
		return nil, fmt.Errorf("failed to lookup ignores: %w", err)
	}
	for _, row := range ignores {
		e.Ignores = append(e.Ignores, knowledge.IgnorePattern{
			AnalyticsContext: row.Analytics,
			IgnoredAt:        row.IgnoredAt,
		})
		found = true
	}

	if !found {
		return nil, core.NewNotFoundError(columnKey)
	}
	return &e, nil
}

// RecordConfirmation inserts a confirmation, prunes history beyond the cap,
// and refreshes the mapping row.
func (s *Store) RecordConfirmation(ctx context.Context, columnKey string, t mapping.CanonicalType, confidence float64) error {
	key := knowledge.Key(columnKey)
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin confirmation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO confirmations (column_key, canonical_type, confidence, confirmed_at)
		VALUES ($1, $2, $3, $4)`, key, string(t), confidence, now); err != nil {
		return fmt.Errorf("failed to insert confirmation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM confirmations
		WHERE column_key = $1 AND id NOT IN (
			SELECT id FROM confirmations
			WHERE column_key = $1
			ORDER BY confirmed_at DESC, id DESC
			LIMIT $2
		)`, key, knowledge.MaxConfirmations); err != nil {
		return fmt.Errorf("failed to prune confirmations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mappings (column_key, canonical_type, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (column_key) DO UPDATE SET
			canonical_type = EXCLUDED.canonical_type,
			updated_at     = EXCLUDED.updated_at`, key, string(t), now); err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}
	return tx.Commit()
}

// RecordIgnore upserts an ignore pattern and prunes beyond the cap.
func (s *Store) RecordIgnore(ctx context.Context, columnKey, analyticsContext string) error {
	key := knowledge.Key(columnKey)
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ignore: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ignored_patterns (column_key, analytics_type, ignored_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (column_key, analytics_type) DO UPDATE SET
			ignored_at = EXCLUDED.ignored_at`, key, analyticsContext, now); err != nil {
		return fmt.Errorf("failed to upsert ignore: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ignored_patterns
		WHERE column_key = $1 AND (analytics_type) NOT IN (
			SELECT analytics_type FROM ignored_patterns
			WHERE column_key = $1
			ORDER BY ignored_at DESC
			LIMIT $2
		)`, key, knowledge.MaxIgnores); err != nil {
		return fmt.Errorf("failed to prune ignores: %w", err)
	}
	return tx.Commit()
}

// RecordConflictResolution upserts by (type, winner, losers); repeats
// increment frequency, and user confirmation is sticky once set.
func (s *Store) RecordConflictResolution(ctx context.Context, rec knowledge.ResolutionRecord) error {
	losers, err := json.Marshal(rec.LoserColumns)
	if err != nil {
		return fmt.Errorf("failed to encode losers: %w", err)
	}
	freq := rec.Frequency
	if freq <= 0 {
		freq = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conflict_resolutions
			(target_type, winner_column, loser_columns, reasoning, confidence, frequency, user_confirmed, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (target_type, winner_column, loser_columns) DO UPDATE SET
			frequency      = conflict_resolutions.frequency + 1,
			reasoning      = EXCLUDED.reasoning,
			confidence     = EXCLUDED.confidence,
			user_confirmed = conflict_resolutions.user_confirmed OR EXCLUDED.user_confirmed,
			recorded_at    = EXCLUDED.recorded_at`,
		string(rec.TargetType), rec.WinnerColumn, string(losers),
		rec.Reasoning, rec.Confidence, freq, rec.UserConfirmed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert resolution: %w", err)
	}
	return nil
}

// BestKnownWinner returns the most frequent user-confirmed winner for the
// target type.
func (s *Store) BestKnownWinner(ctx context.Context, target mapping.CanonicalType) (*knowledge.ConflictPattern, error) {
	var row struct {
		Winner string `db:"winner_column"`
		Freq   int    `db:"freq"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT winner_column, SUM(frequency) AS freq
		FROM conflict_resolutions
		WHERE target_type = $1 AND user_confirmed
		GROUP BY winner_column
		ORDER BY freq DESC, winner_column
		LIMIT 1`, string(target))
	if err == sql.ErrNoRows {
		return nil, core.NewNotFoundError(string(target))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find best winner: %w", err)
	}
	return &knowledge.ConflictPattern{TargetType: target, WinnerColumn: row.Winner, Frequency: row.Freq}, nil
}
