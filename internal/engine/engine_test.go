package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colsense/adapters/memory"
	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
	"colsense/internal/config"
)

func testEngine(store *memory.Store) *Engine {
	if store == nil {
		return New(config.Default().Engine, nil, nil, nil)
	}
	return New(config.Default().Engine, nil, store, nil)
}

// salesColumns builds a representative sales export: a date column, a
// currency column, a clean region column, a composite region column that
// contests it, and a junk column nothing should claim.
func salesColumns() []mapping.Column {
	const rows = 24
	regions := []string{"North", "South", "East", "West"}
	junk := []string{"!!", "~~", "^^"}

	dates := make([]string, rows)
	amounts := make([]string, rows)
	region := make([]string, rows)
	composite := make([]string, rows)
	noise := make([]string, rows)
	for i := 0; i < rows; i++ {
		dates[i] = fmt.Sprintf("2024-%02d-%02d", i%12+1, i%28+1)
		amounts[i] = fmt.Sprintf("$%d,%03d.%02d", i+1, (i*137)%1000, (i*7)%100)
		region[i] = regions[i%len(regions)]
		composite[i] = fmt.Sprintf("%s - Rep%02d", regions[i%len(regions)], i)
		noise[i] = junk[i%len(junk)]
	}

	return []mapping.Column{
		{Name: "Order Date", Values: dates},
		{Name: "Sales_Amount", Values: amounts},
		{Name: "Region", Values: region},
		{Name: "Region_and_Rep", Values: composite},
		{Name: "zzx_internal_7", Values: noise},
	}
}

func mappedTypes(result *mapping.MappingResult) map[string]mapping.CanonicalType {
	out := map[string]mapping.CanonicalType{}
	for _, m := range result.Mapped {
		out[m.OriginalColumn] = m.CanonicalType
	}
	return out
}

func TestResolve_SalesExport(t *testing.T) {
	eng := testEngine(memory.NewStore())

	result, err := eng.Resolve(context.Background(), salesColumns(), Options{})
	require.NoError(t, err)

	mapped := mappedTypes(result)
	assert.Equal(t, mapping.TypeDate, mapped["Order Date"])
	assert.Equal(t, mapping.TypeSales, mapped["Sales_Amount"])
	assert.Equal(t, mapping.TypeRegion, mapped["Region"])

	var composite *mapping.Uncertain
	for i := range result.Uncertain {
		if result.Uncertain[i].OriginalColumn == "Region_and_Rep" {
			composite = &result.Uncertain[i]
		}
	}
	require.NotNil(t, composite, "composite header should land uncertain, not mapped")
	assert.Equal(t, mapping.TypeRegion, composite.CandidateType)

	require.Len(t, result.Unmapped, 1)
	assert.Equal(t, "zzx_internal_7", result.Unmapped[0].OriginalColumn)
	assert.NotEmpty(t, result.Unmapped[0].Reason)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, mapping.TypeRegion, conflict.TargetType)
	assert.Equal(t, "Region", conflict.WinnerColumn)
	assert.Equal(t, []string{"Region_and_Rep"}, conflict.LoserColumns)
	assert.NotEmpty(t, conflict.Recommendation)
	assert.NotEmpty(t, conflict.Alternatives)
}

func TestResolve_EveryColumnGetsExactlyOneStatus(t *testing.T) {
	eng := testEngine(memory.NewStore())
	columns := salesColumns()

	result, err := eng.Resolve(context.Background(), columns, Options{})
	require.NoError(t, err)

	total := len(result.Mapped) + len(result.Uncertain) + len(result.Unmapped)
	assert.Equal(t, len(columns), total)

	seen := map[string]int{}
	for _, m := range result.Mapped {
		seen[m.OriginalColumn]++
	}
	for _, u := range result.Uncertain {
		seen[u.OriginalColumn]++
	}
	for _, u := range result.Unmapped {
		seen[u.OriginalColumn]++
	}
	for name, n := range seen {
		assert.Equalf(t, 1, n, "column %s has %d statuses", name, n)
	}
}

func TestResolve_ConfidencesWithinRange(t *testing.T) {
	eng := testEngine(memory.NewStore())

	result, err := eng.Resolve(context.Background(), salesColumns(), Options{})
	require.NoError(t, err)

	for _, m := range result.Mapped {
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 100.0)
	}
	for _, u := range result.Uncertain {
		assert.GreaterOrEqual(t, u.Confidence, 0.0)
		assert.LessOrEqual(t, u.Confidence, 100.0)
		for _, s := range u.Suggestions {
			assert.LessOrEqual(t, s.Confidence, 100.0)
		}
	}
	for _, c := range result.Conflicts {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 100.0)
	}
}

func TestResolve_IsIdempotent(t *testing.T) {
	eng := testEngine(memory.NewStore())
	columns := salesColumns()

	first, err := eng.Resolve(context.Background(), columns, Options{})
	require.NoError(t, err)
	second, err := eng.Resolve(context.Background(), columns, Options{})
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b), "repeated runs on identical input must return identical results")
}

func TestResolve_ConfirmedColumnsShortCircuit(t *testing.T) {
	eng := testEngine(memory.NewStore())

	result, err := eng.Resolve(context.Background(), salesColumns(), Options{
		Confirmed: map[string]mapping.CanonicalType{"Region_and_Rep": mapping.TypeCustomer},
	})
	require.NoError(t, err)

	mapped := mappedTypes(result)
	assert.Equal(t, mapping.TypeCustomer, mapped["Region_and_Rep"])

	for _, m := range result.Mapped {
		if m.OriginalColumn == "Region_and_Rep" {
			assert.Equal(t, 100.0, m.Confidence)
			assert.Equal(t, mapping.MethodUserConfirmed, m.Method)
		}
	}

	// with the contender confirmed away, Region has a single claimant
	assert.Empty(t, result.Conflicts)
}

func TestResolve_SynonymHoldsWithoutValueSupport(t *testing.T) {
	eng := testEngine(memory.NewStore())

	// free-text values give no support to any monetary type
	colors := []string{"crimson", "teal", "ochre", "violet"}
	values := make([]string, 24)
	for i := range values {
		values[i] = colors[i%len(colors)]
	}

	result, err := eng.Resolve(context.Background(), []mapping.Column{{Name: "sales", Values: values}}, Options{})
	require.NoError(t, err)

	require.Len(t, result.Mapped, 1, "a literal synonym must map regardless of its values")
	assert.Equal(t, mapping.TypeSales, result.Mapped[0].CanonicalType)
	assert.GreaterOrEqual(t, result.Mapped[0].Confidence, 90.0)
	assert.Equal(t, mapping.MethodExactSynonym, result.Mapped[0].Method)
}

func TestResolve_ConfirmedNameHoldsRegardlessOfValues(t *testing.T) {
	eng := testEngine(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, eng.Confirm(ctx, "revenue", mapping.TypeRevenue, 100))

	statuses := []string{"pending", "approved", "declined"}
	values := make([]string, 24)
	for i := range values {
		values[i] = statuses[i%len(statuses)]
	}

	result, err := eng.Resolve(ctx, []mapping.Column{{Name: "revenue", Values: values}}, Options{})
	require.NoError(t, err)

	require.Len(t, result.Mapped, 1, "a confirmed name must map regardless of its values")
	assert.Equal(t, mapping.TypeRevenue, result.Mapped[0].CanonicalType)
	assert.GreaterOrEqual(t, result.Mapped[0].Confidence, 85.0)
}

func TestResolve_ConfirmedColumnWinsTypeConflict(t *testing.T) {
	eng := testEngine(memory.NewStore())

	amounts := make([]string, 24)
	takings := make([]string, 24)
	for i := range amounts {
		amounts[i] = fmt.Sprintf("$%d,%03d.%02d", i+1, (i*137)%1000, (i*7)%100)
		takings[i] = fmt.Sprintf("%d.%02d", (i*211)%9000, (i*13)%100)
	}
	columns := []mapping.Column{
		{Name: "Gross Takings", Values: takings},
		{Name: "Sales_Amount", Values: amounts},
	}

	result, err := eng.Resolve(context.Background(), columns, Options{
		Confirmed: map[string]mapping.CanonicalType{"Gross Takings": mapping.TypeSales},
	})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1, "confirmed and inferred claimants must surface as a conflict")
	conflict := result.Conflicts[0]
	assert.Equal(t, mapping.TypeSales, conflict.TargetType)
	assert.Equal(t, "Gross Takings", conflict.WinnerColumn)
	assert.Equal(t, []string{"Sales_Amount"}, conflict.LoserColumns)
	assert.Equal(t, 100.0, conflict.Confidence)

	mapped := mappedTypes(result)
	assert.Equal(t, mapping.TypeSales, mapped["Gross Takings"])
	_, stillMapped := mapped["Sales_Amount"]
	assert.False(t, stillMapped, "only one column may hold the Sales winner slot")

	var demoted bool
	for _, u := range result.Uncertain {
		if u.OriginalColumn == "Sales_Amount" {
			demoted = true
			assert.Equal(t, mapping.TypeSales, u.CandidateType)
		}
	}
	assert.True(t, demoted, "the losing claimant must land in uncertain")
}

func TestResolve_RejectsInvalidConfirmedType(t *testing.T) {
	eng := testEngine(memory.NewStore())

	result, err := eng.Resolve(context.Background(), salesColumns(), Options{
		Confirmed: map[string]mapping.CanonicalType{"Sales_Amount": mapping.CanonicalType("Salez")},
	})
	assert.ErrorIs(t, err, core.ErrInvalidType)
	assert.Nil(t, result)
}

func TestResolve_KnowledgeBaseRoundTrip(t *testing.T) {
	store := memory.NewStore()
	eng := testEngine(store)
	ctx := context.Background()

	require.NoError(t, eng.Confirm(ctx, "Fiscal Period", mapping.TypeDate, 100))

	dates := make([]string, 24)
	for i := range dates {
		dates[i] = fmt.Sprintf("2024-%02d-01", i%12+1)
	}
	result, err := eng.Resolve(ctx, []mapping.Column{{Name: "Fiscal Period", Values: dates}}, Options{})
	require.NoError(t, err)

	require.Len(t, result.Mapped, 1)
	assert.Equal(t, mapping.TypeDate, result.Mapped[0].CanonicalType)
	assert.GreaterOrEqual(t, result.Mapped[0].Confidence, 85.0)
}

func TestResolve_LearnRecordsConfirmations(t *testing.T) {
	store := memory.NewStore()
	eng := testEngine(store)
	ctx := context.Background()

	_, err := eng.Resolve(ctx, salesColumns(), Options{Learn: true})
	require.NoError(t, err)

	entry, err := store.Lookup(ctx, "order date")
	require.NoError(t, err)
	assert.Equal(t, mapping.TypeDate, entry.MappedType)
	assert.NotEmpty(t, entry.Confirmations)
}

func TestResolve_DefaultRunDoesNotLearn(t *testing.T) {
	store := memory.NewStore()
	eng := testEngine(store)
	ctx := context.Background()

	_, err := eng.Resolve(ctx, salesColumns(), Options{})
	require.NoError(t, err)

	_, err = store.Lookup(ctx, "order date")
	assert.True(t, core.IsNotFoundError(err), "pure inference runs must not record confirmations")
}

// brokenStore fails every operation, standing in for an unreachable
// database.
type brokenStore struct{}

func (brokenStore) Snapshot(ctx context.Context) (*knowledge.Snapshot, error) {
	return nil, errors.New("connection refused")
}
func (brokenStore) Lookup(ctx context.Context, key string) (*knowledge.Entry, error) {
	return nil, errors.New("connection refused")
}
func (brokenStore) RecordConfirmation(ctx context.Context, key string, t mapping.CanonicalType, conf float64) error {
	return errors.New("connection refused")
}
func (brokenStore) RecordIgnore(ctx context.Context, key, analyticsContext string) error {
	return errors.New("connection refused")
}
func (brokenStore) RecordConflictResolution(ctx context.Context, rec knowledge.ResolutionRecord) error {
	return errors.New("connection refused")
}
func (brokenStore) BestKnownWinner(ctx context.Context, t mapping.CanonicalType) (*knowledge.ConflictPattern, error) {
	return nil, errors.New("connection refused")
}
func (brokenStore) Close() error { return nil }

func TestResolve_SurvivesUnavailableStore(t *testing.T) {
	eng := New(config.Default().Engine, nil, brokenStore{}, nil)

	result, err := eng.Resolve(context.Background(), salesColumns(), Options{})
	require.NoError(t, err, "an unreachable store must not abort resolution")

	mapped := mappedTypes(result)
	assert.Equal(t, mapping.TypeDate, mapped["Order Date"])
}

func TestConfirm_Validation(t *testing.T) {
	eng := testEngine(memory.NewStore())
	ctx := context.Background()

	err := eng.Confirm(ctx, "col", mapping.CanonicalType("Widget"), 90)
	assert.ErrorIs(t, err, core.ErrInvalidType)

	err = eng.Confirm(ctx, "col", mapping.TypeDate, 150)
	assert.ErrorIs(t, err, core.ErrInvalidConfirm)

	err = eng.Confirm(ctx, "   ", mapping.TypeDate, 90)
	assert.ErrorIs(t, err, core.ErrEmptyColumnName)

	noStore := testEngine(nil)
	err = noStore.Confirm(ctx, "col", mapping.TypeDate, 90)
	assert.ErrorIs(t, err, core.ErrStoreClosed)
}

func TestConfirmResolution_FeedsLearnedPatterns(t *testing.T) {
	store := memory.NewStore()
	eng := testEngine(store)
	ctx := context.Background()

	res := mapping.ConflictResolution{
		TargetType:   mapping.TypeProduct,
		WinnerColumn: "Item Code",
		LoserColumns: []string{"Item Label"},
		Confidence:   88,
		Reasoning:    "identifier-shaped values",
	}
	require.NoError(t, eng.ConfirmResolution(ctx, res))

	pattern, err := store.BestKnownWinner(ctx, mapping.TypeProduct)
	require.NoError(t, err)
	assert.Equal(t, "item code", pattern.WinnerColumn)
}
