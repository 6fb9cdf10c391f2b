// Package sqlite persists the knowledge base in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
	"colsense/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS mappings (
	column_key     TEXT PRIMARY KEY,
	canonical_type TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS confirmations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	column_key     TEXT NOT NULL,
	canonical_type TEXT NOT NULL,
	confidence     REAL NOT NULL,
	confirmed_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_confirmations_key ON confirmations(column_key, confirmed_at);
CREATE TABLE IF NOT EXISTS ignored_patterns (
	column_key     TEXT NOT NULL,
	analytics_type TEXT NOT NULL,
	ignored_at     TEXT NOT NULL,
	UNIQUE(column_key, analytics_type)
);
CREATE TABLE IF NOT EXISTS conflict_resolutions (
	target_type    TEXT NOT NULL,
	winner_column  TEXT NOT NULL,
	loser_columns  TEXT NOT NULL,
	reasoning      TEXT NOT NULL,
	confidence     REAL NOT NULL,
	frequency      INTEGER NOT NULL DEFAULT 1,
	user_confirmed INTEGER NOT NULL DEFAULT 0,
	recorded_at    TEXT NOT NULL,
	PRIMARY KEY(target_type, winner_column, loser_columns)
);
`

// Store is a file-backed knowledge store. A corrupt database file is moved
// aside to <path>.corrupt and a fresh one is initialized in its place, so
// opening never fails on bad history alone.
type Store struct {
	db   *sql.DB
	path string

	// Recovered reports whether Open had to discard a corrupt file.
	Recovered bool
}

var _ ports.KnowledgeStore = (*Store)(nil)

// Open opens (or creates) the knowledge base at path.
func Open(ctx context.Context, path string) (*Store, error) {
	s := &Store{path: path}
	db, err := openAndInit(ctx, path)
	if err != nil {
		if path == ":memory:" {
			return nil, core.NewCorruptStoreError(path, err)
		}
		if renameErr := os.Rename(path, path+".corrupt"); renameErr != nil {
			return nil, core.NewCorruptStoreError(path, err)
		}
		db, err = openAndInit(ctx, path)
		if err != nil {
			return nil, core.NewCorruptStoreError(path, err)
		}
		s.Recovered = true
	}
	s.db = db
	return s, nil
}

func openAndInit(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc's sqlite driver is not safe for concurrent writes on
	// multiple connections; serialize through one.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, err
	}
	var check string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check;").Scan(&check); err != nil {
		db.Close()
		return nil, err
	}
	if check != "ok" {
		db.Close()
		return nil, fmt.Errorf("integrity check failed: %s", check)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return core.ErrStoreClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Snapshot loads all entries and learned patterns inside one read
// transaction.
func (s *Store) Snapshot(ctx context.Context) (*knowledge.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &knowledge.Snapshot{
		Entries:  map[string]knowledge.Entry{},
		Patterns: map[mapping.CanonicalType]knowledge.ConflictPattern{},
		TakenAt:  time.Now(),
	}

	rows, err := tx.QueryContext(ctx, `SELECT column_key, canonical_type FROM mappings`)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	for rows.Next() {
		var key, t string
		if err := rows.Scan(&key, &t); err != nil {
			rows.Close()
			return nil, err
		}
		e := snap.Entries[key]
		e.ColumnKey = key
		e.MappedType = mapping.CanonicalType(t)
		snap.Entries[key] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT column_key, canonical_type, confidence, confirmed_at
		FROM confirmations ORDER BY column_key, confirmed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load confirmations: %w", err)
	}
	for rows.Next() {
		var key, t, at string
		var conf float64
		if err := rows.Scan(&key, &t, &conf, &at); err != nil {
			rows.Close()
			return nil, err
		}
		e := snap.Entries[key]
		e.ColumnKey = key
		e.Confirmations = append(e.Confirmations, knowledge.Confirmation{
			Type:        mapping.CanonicalType(t),
			Confidence:  conf,
			ConfirmedAt: parseTime(at),
		})
		if e.MappedType == "" {
			e.MappedType = mapping.CanonicalType(t)
		}
		snap.Entries[key] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT column_key, analytics_type, ignored_at
		FROM ignored_patterns ORDER BY column_key, ignored_at`)
	if err != nil {
		return nil, fmt.Errorf("load ignores: %w", err)
	}
	for rows.Next() {
		var key, analytics, at string
		if err := rows.Scan(&key, &analytics, &at); err != nil {
			rows.Close()
			return nil, err
		}
		e := snap.Entries[key]
		e.ColumnKey = key
		e.Ignores = append(e.Ignores, knowledge.IgnorePattern{
			AnalyticsContext: analytics,
			IgnoredAt:        parseTime(at),
		})
		snap.Entries[key] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT target_type, winner_column, SUM(frequency) AS freq
		FROM conflict_resolutions
		WHERE user_confirmed = 1
		GROUP BY target_type, winner_column
		ORDER BY target_type, freq DESC, winner_column`)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	for rows.Next() {
		var target, winner string
		var freq int
		if err := rows.Scan(&target, &winner, &freq); err != nil {
			rows.Close()
			return nil, err
		}
		t := mapping.CanonicalType(target)
		if _, seen := snap.Patterns[t]; !seen {
			snap.Patterns[t] = knowledge.ConflictPattern{TargetType: t, WinnerColumn: winner, Frequency: freq}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snap, tx.Commit()
}

// Lookup loads a single entry.
func (s *Store) Lookup(ctx context.Context, columnKey string) (*knowledge.Entry, error) {
	key := knowledge.Key(columnKey)
	e := knowledge.Entry{ColumnKey: key}
	found := false

	var mapped string
	err := s.db.QueryRowContext(ctx,
		`SELECT canonical_type FROM mappings WHERE column_key = ?`, key).Scan(&mapped)
	switch {
	case err == nil:
		e.MappedType = mapping.CanonicalType(mapped)
		found = true
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("lookup mapping: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT canonical_type, confidence, confirmed_at
		FROM confirmations WHERE column_key = ? ORDER BY confirmed_at, id`, key)
	if err != nil {
		return nil, fmt.Errorf("lookup confirmations: %w", err)
	}
	for rows.Next() {
		var t, at string
		var conf float64
		if err := rows.Scan(&t, &conf, &at); err != nil {
			rows.Close()
			return nil, err
		}
		e.Confirmations = append(e.Confirmations, knowledge.Confirmation{
			Type:        mapping.CanonicalType(t),
			Confidence:  conf,
			ConfirmedAt: parseTime(at),
		})
		found = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT analytics_type, ignored_at
		FROM ignored_patterns WHERE column_key = ? ORDER BY ignored_at`, key)
	if err != nil {
		return nil, fmt.Errorf("lookup ignores: %w", err)
	}
	for rows.Next() {
		var analytics, at string
		if err := rows.Scan(&analytics, &at); err != nil {
			rows.Close()
			return nil, err
		}
		e.Ignores = append(e.Ignores, knowledge.IgnorePattern{
			AnalyticsContext: analytics,
			IgnoredAt:        parseTime(at),
		})
		found = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, core.NewNotFoundError(columnKey)
	}
	return &e, nil
}

// RecordConfirmation inserts a confirmation and prunes history beyond the
// cap, keeping the newest rows.
func (s *Store) RecordConfirmation(ctx context.Context, columnKey string, t mapping.CanonicalType, confidence float64) error {
	key := knowledge.Key(columnKey)
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin confirmation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO confirmations (column_key, canonical_type, confidence, confirmed_at)
		VALUES (?, ?, ?, ?)`, key, string(t), confidence, now); err != nil {
		return fmt.Errorf("insert confirmation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM confirmations
		WHERE column_key = ? AND id NOT IN (
			SELECT id FROM confirmations
			WHERE column_key = ?
			ORDER BY confirmed_at DESC, id DESC
			LIMIT ?
		)`, key, key, knowledge.MaxConfirmations); err != nil {
		return fmt.Errorf("prune confirmations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mappings (column_key, canonical_type, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(column_key) DO UPDATE SET
			canonical_type = excluded.canonical_type,
			updated_at     = excluded.updated_at`, key, string(t), now); err != nil {
		return fmt.Errorf("upsert mapping: %w", err)
	}
	return tx.Commit()
}

// RecordIgnore upserts an ignore pattern and prunes beyond the cap.
func (s *Store) RecordIgnore(ctx context.Context, columnKey, analyticsContext string) error {
	key := knowledge.Key(columnKey)
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ignore: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ignored_patterns (column_key, analytics_type, ignored_at)
		VALUES (?, ?, ?)
		ON CONFLICT(column_key, analytics_type) DO UPDATE SET
			ignored_at = excluded.ignored_at`, key, analyticsContext, now); err != nil {
		return fmt.Errorf("upsert ignore: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ignored_patterns
		WHERE column_key = ? AND rowid NOT IN (
			SELECT rowid FROM ignored_patterns
			WHERE column_key = ?
			ORDER BY ignored_at DESC, rowid DESC
			LIMIT ?
		)`, key, key, knowledge.MaxIgnores); err != nil {
		return fmt.Errorf("prune ignores: %w", err)
	}
	return tx.Commit()
}

// RecordConflictResolution upserts by (type, winner, losers); repeats
// increment frequency, and user confirmation is sticky once set.
func (s *Store) RecordConflictResolution(ctx context.Context, rec knowledge.ResolutionRecord) error {
	losers, err := json.Marshal(rec.LoserColumns)
	if err != nil {
		return fmt.Errorf("encode losers: %w", err)
	}
	confirmed := 0
	if rec.UserConfirmed {
		confirmed = 1
	}
	freq := rec.Frequency
	if freq <= 0 {
		freq = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conflict_resolutions
			(target_type, winner_column, loser_columns, reasoning, confidence, frequency, user_confirmed, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_type, winner_column, loser_columns) DO UPDATE SET
			frequency      = frequency + 1,
			reasoning      = excluded.reasoning,
			confidence     = excluded.confidence,
			user_confirmed = MAX(user_confirmed, excluded.user_confirmed),
			recorded_at    = excluded.recorded_at`,
		string(rec.TargetType), rec.WinnerColumn, string(losers),
		rec.Reasoning, rec.Confidence, freq, confirmed, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert resolution: %w", err)
	}
	return nil
}

// BestKnownWinner returns the most frequent user-confirmed winner for the
// target type.
func (s *Store) BestKnownWinner(ctx context.Context, target mapping.CanonicalType) (*knowledge.ConflictPattern, error) {
	var winner string
	var freq int
	err := s.db.QueryRowContext(ctx, `
		SELECT winner_column, SUM(frequency) AS freq
		FROM conflict_resolutions
		WHERE target_type = ? AND user_confirmed = 1
		GROUP BY winner_column
		ORDER BY freq DESC, winner_column
		LIMIT 1`, string(target)).Scan(&winner, &freq)
	if err == sql.ErrNoRows {
		return nil, core.NewNotFoundError(string(target))
	}
	if err != nil {
		return nil, fmt.Errorf("best winner: %w", err)
	}
	return &knowledge.ConflictPattern{TargetType: target, WinnerColumn: winner, Frequency: freq}, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
