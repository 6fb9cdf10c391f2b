package knowledge

import (
	"fmt"
	"testing"
	"time"

	"colsense/domain/mapping"
)

func TestKey_Normalizes(t *testing.T) {
	cases := map[string]string{
		"Sales_Amount":  "sales_amount",
		"  Order Date ": "order date",
		"REGION":        "region",
	}
	for in, want := range cases {
		if got := Key(in); got != want {
			t.Errorf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAppendConfirmation_TruncatesAndSetsMappedType(t *testing.T) {
	e := Entry{ColumnKey: "amount"}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxConfirmations+5; i++ {
		e.AppendConfirmation(Confirmation{
			Type:        mapping.TypeSales,
			Confidence:  float64(i),
			ConfirmedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	if len(e.Confirmations) != MaxConfirmations {
		t.Fatalf("expected %d confirmations, got %d", MaxConfirmations, len(e.Confirmations))
	}
	// the oldest entries must be the ones dropped
	if e.Confirmations[0].Confidence != 5 {
		t.Errorf("expected oldest surviving confidence 5, got %f", e.Confirmations[0].Confidence)
	}

	e.AppendConfirmation(Confirmation{Type: mapping.TypeRevenue, ConfirmedAt: base.Add(100 * time.Hour)})
	if e.MappedType != mapping.TypeRevenue {
		t.Errorf("expected newest confirmation to set MappedType, got %s", e.MappedType)
	}
}

func TestAppendIgnore_DeduplicatesByContext(t *testing.T) {
	e := Entry{ColumnKey: "notes"}
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	e.AppendIgnore(IgnorePattern{AnalyticsContext: "general", IgnoredAt: first})
	e.AppendIgnore(IgnorePattern{AnalyticsContext: "general", IgnoredAt: later})

	if len(e.Ignores) != 1 {
		t.Fatalf("expected deduplicated ignores, got %d", len(e.Ignores))
	}
	if !e.Ignores[0].IgnoredAt.Equal(later) {
		t.Errorf("expected duplicate to refresh timestamp, got %v", e.Ignores[0].IgnoredAt)
	}

	for i := 0; i < MaxIgnores+3; i++ {
		e.AppendIgnore(IgnorePattern{AnalyticsContext: fmt.Sprintf("ctx-%d", i), IgnoredAt: later})
	}
	if len(e.Ignores) != MaxIgnores {
		t.Errorf("expected %d ignores after truncation, got %d", MaxIgnores, len(e.Ignores))
	}
}

func TestSnapshot_LookupIsCaseInsensitive(t *testing.T) {
	snap := EmptySnapshot()
	snap.Entries["order date"] = Entry{ColumnKey: "order date", MappedType: mapping.TypeDate}

	if _, ok := snap.Lookup("Order Date"); !ok {
		t.Error("expected case-insensitive lookup to find entry")
	}
	if _, ok := snap.Lookup("missing"); ok {
		t.Error("expected miss for unknown column")
	}
}

func TestSnapshot_BestKnownWinner(t *testing.T) {
	snap := EmptySnapshot()
	snap.Patterns[mapping.TypeProduct] = ConflictPattern{
		TargetType:   mapping.TypeProduct,
		WinnerColumn: "item code",
		Frequency:    3,
	}

	p, ok := snap.BestKnownWinner(mapping.TypeProduct)
	if !ok || p.WinnerColumn != "item code" {
		t.Errorf("expected learned winner, got %+v ok=%v", p, ok)
	}
	if _, ok := snap.BestKnownWinner(mapping.TypeRegion); ok {
		t.Error("expected no pattern for Region")
	}
}
