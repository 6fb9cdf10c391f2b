package memory

import (
	"context"
	"testing"
	"time"

	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
)

func TestStore_ConfirmationTruncation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < knowledge.MaxConfirmations+7; i++ {
		if err := s.RecordConfirmation(ctx, "Order Date", mapping.TypeDate, float64(i)); err != nil {
			t.Fatal(err)
		}
	}

	e, err := s.Lookup(ctx, "order date")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Confirmations) != knowledge.MaxConfirmations {
		t.Errorf("expected %d confirmations, got %d", knowledge.MaxConfirmations, len(e.Confirmations))
	}
	if e.MappedType != mapping.TypeDate {
		t.Errorf("MappedType = %s, want Date", e.MappedType)
	}
}

func TestStore_LookupNotFound(t *testing.T) {
	_, err := NewStore().Lookup(context.Background(), "missing")
	if !core.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestStore_IgnoreDeduplication(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.RecordIgnore(ctx, "Notes", "general"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordIgnore(ctx, "Notes", "finance"); err != nil {
		t.Fatal(err)
	}

	e, err := s.Lookup(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Ignores) != 2 {
		t.Errorf("expected 2 distinct ignore contexts, got %d", len(e.Ignores))
	}
}

func TestStore_ResolutionFrequencyAndStickyConfirmation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	rec := knowledge.ResolutionRecord{
		TargetType:   mapping.TypeProduct,
		WinnerColumn: "item code",
		LoserColumns: []string{"item label"},
		Confidence:   80,
	}

	if err := s.RecordConflictResolution(ctx, rec); err != nil {
		t.Fatal(err)
	}
	// automatic repeats increment frequency but stay unconfirmed
	if err := s.RecordConflictResolution(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if _, err := s.BestKnownWinner(ctx, mapping.TypeProduct); !core.IsNotFoundError(err) {
		t.Errorf("unconfirmed resolutions must not form patterns, got %v", err)
	}

	rec.UserConfirmed = true
	if err := s.RecordConflictResolution(ctx, rec); err != nil {
		t.Fatal(err)
	}

	p, err := s.BestKnownWinner(ctx, mapping.TypeProduct)
	if err != nil {
		t.Fatal(err)
	}
	if p.WinnerColumn != "item code" || p.Frequency != 3 {
		t.Errorf("pattern = %+v, want item code with frequency 3", p)
	}

	// once user-confirmed, later automatic repeats keep the flag
	rec.UserConfirmed = false
	if err := s.RecordConflictResolution(ctx, rec); err != nil {
		t.Fatal(err)
	}
	p, err = s.BestKnownWinner(ctx, mapping.TypeProduct)
	if err != nil {
		t.Fatal(err)
	}
	if p.Frequency != 4 {
		t.Errorf("frequency = %d, want 4", p.Frequency)
	}
}

func TestStore_BestKnownWinnerPicksMostFrequent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a := knowledge.ResolutionRecord{TargetType: mapping.TypeRegion, WinnerColumn: "region", UserConfirmed: true}
	b := knowledge.ResolutionRecord{TargetType: mapping.TypeRegion, WinnerColumn: "territory", UserConfirmed: true}

	for i := 0; i < 3; i++ {
		if err := s.RecordConflictResolution(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordConflictResolution(ctx, b); err != nil {
		t.Fatal(err)
	}

	p, err := s.BestKnownWinner(ctx, mapping.TypeRegion)
	if err != nil {
		t.Fatal(err)
	}
	if p.WinnerColumn != "region" {
		t.Errorf("winner = %q, want region", p.WinnerColumn)
	}
}

func TestStore_SnapshotIsIsolatedFromWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.RecordConfirmation(ctx, "amount", mapping.TypeSales, 90); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// mutate the snapshot; the store must not observe it
	e := snap.Entries["amount"]
	e.Confirmations[0].Confidence = 5
	e.MappedType = mapping.TypeIgnore
	snap.Entries["amount"] = e

	fresh, err := s.Lookup(ctx, "amount")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Confirmations[0].Confidence != 90 || fresh.MappedType != mapping.TypeSales {
		t.Error("snapshot mutation leaked into the store")
	}

	// writes after the snapshot are invisible to it
	if err := s.RecordConfirmation(ctx, "amount", mapping.TypeRevenue, 70); err != nil {
		t.Fatal(err)
	}
	if got := snap.Entries["amount"]; len(got.Confirmations) != 1 {
		t.Errorf("snapshot changed after a later write: %d confirmations", len(got.Confirmations))
	}
}

func TestStore_ClockInjection(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore().WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	if err := s.RecordConfirmation(ctx, "amount", mapping.TypeSales, 90); err != nil {
		t.Fatal(err)
	}
	e, err := s.Lookup(ctx, "amount")
	if err != nil {
		t.Fatal(err)
	}
	if !e.Confirmations[0].ConfirmedAt.Equal(fixed) {
		t.Errorf("ConfirmedAt = %v, want %v", e.Confirmations[0].ConfirmedAt, fixed)
	}
}
