package conflict

import (
	"math"

	"colsense/domain/mapping"
)

// featureWeights is one row of the type-specific discrimination table.
// These weights separate columns that already look similar to the fused
// scorer, so they lean harder on shape signals (identifier patterns,
// sequential values) than the first-pass value scores do. Negative weights
// punish a feature.
type featureWeights struct {
	Numeric    float64
	Currency   float64
	Date       float64
	ID         float64
	SKU        float64
	Region     float64
	Unique     float64
	Length     float64
	Sequential float64
}

var heuristicWeights = map[mapping.CanonicalType]featureWeights{
	mapping.TypeDate: {
		Date: 0.90, ID: -0.20, Numeric: -0.10,
	},
	mapping.TypeSales: {
		Currency: 0.45, Numeric: 0.35, Unique: 0.10, ID: -0.30, Sequential: -0.15,
	},
	mapping.TypeRevenue: {
		Currency: 0.45, Numeric: 0.35, Unique: 0.10, ID: -0.30, Sequential: -0.15,
	},
	mapping.TypeExpense: {
		Currency: 0.45, Numeric: 0.35, Unique: 0.10, ID: -0.30, Sequential: -0.15,
	},
	mapping.TypePrice: {
		Currency: 0.50, Numeric: 0.35, ID: -0.30, Unique: -0.05, Sequential: -0.15,
	},
	mapping.TypeQuantity: {
		Numeric: 0.60, Currency: -0.20, ID: -0.20, Unique: -0.10,
	},
	mapping.TypeProduct: {
		SKU: 0.30, ID: 0.25, Unique: 0.25, Length: 0.15, Numeric: -0.10, Sequential: -0.25,
	},
	mapping.TypeCustomer: {
		ID: 0.25, SKU: 0.15, Unique: 0.20, Length: 0.25, Numeric: -0.10, Sequential: -0.15,
	},
	mapping.TypeRegion: {
		Region: 0.70, Length: 0.05, Unique: -0.15, Sequential: -0.20,
	},
}

// heuristicScore computes the weighted discrimination score in [0,100] for
// one candidate column, given its re-extracted fingerprint and its
// sequential-ness.
func heuristicScore(t mapping.CanonicalType, sig mapping.ValueSignal, sequentialPct float64) float64 {
	w, ok := heuristicWeights[t]
	if !ok {
		return 0
	}
	s := w.Numeric*sig.NumericPct +
		w.Currency*sig.CurrencyPct +
		w.Date*sig.DatePct +
		w.ID*sig.IDPatternPct +
		w.SKU*sig.SKUPatternPct +
		w.Region*sig.RegionGeoPct +
		w.Unique*sig.UniquePct +
		w.Length*lengthScore(sig.AvgLen) +
		w.Sequential*sequentialPct
	return math.Max(0, math.Min(100, s))
}

// lengthScore mirrors the fused scorer's treatment of average string
// length: longer strings argue for descriptive name columns.
func lengthScore(avgLen float64) float64 {
	s := (avgLen - 4) * 12
	return math.Max(0, math.Min(100, s))
}
