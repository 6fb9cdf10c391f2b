package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Recovered)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_RecoversCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0o644))

	s, err := Open(context.Background(), path)
	require.NoError(t, err, "a corrupt file must be moved aside, not fatal")
	defer s.Close()

	assert.True(t, s.Recovered)
	_, err = os.Stat(path + ".corrupt")
	assert.NoError(t, err, "the corrupt file should be preserved for inspection")

	// the fresh store is usable
	require.NoError(t, s.RecordConfirmation(context.Background(), "amount", mapping.TypeSales, 90))
}

func TestStore_ConfirmationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordConfirmation(ctx, "Order Date", mapping.TypeDate, 95))

	e, err := s.Lookup(ctx, "ORDER DATE")
	require.NoError(t, err)
	assert.Equal(t, mapping.TypeDate, e.MappedType)
	require.Len(t, e.Confirmations, 1)
	assert.Equal(t, 95.0, e.Confirmations[0].Confidence)
	assert.False(t, e.Confirmations[0].ConfirmedAt.IsZero())
}

func TestStore_ConfirmationTruncation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < knowledge.MaxConfirmations+5; i++ {
		require.NoError(t, s.RecordConfirmation(ctx, "amount", mapping.TypeSales, float64(i)))
	}

	e, err := s.Lookup(ctx, "amount")
	require.NoError(t, err)
	assert.Len(t, e.Confirmations, knowledge.MaxConfirmations)
}

func TestStore_LookupNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Lookup(context.Background(), "missing")
	assert.True(t, core.IsNotFoundError(err), "got %v", err)
}

func TestStore_IgnoreDeduplication(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordIgnore(ctx, "Notes", "general"))
	require.NoError(t, s.RecordIgnore(ctx, "Notes", "general"))
	require.NoError(t, s.RecordIgnore(ctx, "Notes", "finance"))

	e, err := s.Lookup(ctx, "notes")
	require.NoError(t, err)
	assert.Len(t, e.Ignores, 2)
}

func TestStore_ResolutionUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := knowledge.ResolutionRecord{
		TargetType:   mapping.TypeProduct,
		WinnerColumn: "item code",
		LoserColumns: []string{"item label"},
		Reasoning:    "identifier-shaped values",
		Confidence:   82,
	}
	require.NoError(t, s.RecordConflictResolution(ctx, rec))
	require.NoError(t, s.RecordConflictResolution(ctx, rec))

	// unconfirmed repeats form no pattern
	_, err := s.BestKnownWinner(ctx, mapping.TypeProduct)
	assert.True(t, core.IsNotFoundError(err), "got %v", err)

	rec.UserConfirmed = true
	require.NoError(t, s.RecordConflictResolution(ctx, rec))

	p, err := s.BestKnownWinner(ctx, mapping.TypeProduct)
	require.NoError(t, err)
	assert.Equal(t, "item code", p.WinnerColumn)
	assert.Equal(t, 3, p.Frequency)

	// confirmation is sticky across later automatic repeats
	rec.UserConfirmed = false
	require.NoError(t, s.RecordConflictResolution(ctx, rec))
	p, err = s.BestKnownWinner(ctx, mapping.TypeProduct)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Frequency)
}

func TestStore_SnapshotContents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordConfirmation(ctx, "order date", mapping.TypeDate, 95))
	require.NoError(t, s.RecordIgnore(ctx, "notes", "general"))
	require.NoError(t, s.RecordConflictResolution(ctx, knowledge.ResolutionRecord{
		TargetType:    mapping.TypeRegion,
		WinnerColumn:  "region",
		LoserColumns:  []string{"region_and_rep"},
		Confidence:    90,
		UserConfirmed: true,
	}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)

	e, ok := snap.Lookup("Order Date")
	require.True(t, ok)
	assert.Equal(t, mapping.TypeDate, e.MappedType)
	require.Len(t, e.Confirmations, 1)

	n, ok := snap.Lookup("notes")
	require.True(t, ok)
	assert.Len(t, n.Ignores, 1)

	p, ok := snap.BestKnownWinner(mapping.TypeRegion)
	require.True(t, ok)
	assert.Equal(t, "region", p.WinnerColumn)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.RecordConfirmation(ctx, "amount", mapping.TypeSales, 90))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	e, err := reopened.Lookup(ctx, "amount")
	require.NoError(t, err)
	assert.Equal(t, mapping.TypeSales, e.MappedType)
}

func TestStore_CloseIsTerminal(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), core.ErrStoreClosed)
}
