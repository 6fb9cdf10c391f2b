// Package inference fuses header and value evidence into per-column
// mapping candidates and buckets them by confidence.
package inference

import (
	"fmt"
	"math"
	"strings"

	"colsense/domain/mapping"
	"colsense/internal/config"
	"colsense/internal/header"
)

// Combiner is the local inference engine: it fuses the header matcher's
// score with type-specific value evidence using the canonical weight pair
// from config (header 0.45 / value 0.55 by default).
type Combiner struct {
	cfg config.EngineConfig
}

// NewCombiner creates a combiner with the given scoring contract.
func NewCombiner(cfg config.EngineConfig) *Combiner {
	return &Combiner{cfg: cfg}
}

// Score fuses evidence for one column and returns its best candidate plus
// the full per-type profile used later for suggestions and conflicts.
func (c *Combiner) Score(name string, position int, sig mapping.ValueSignal, hm header.Match) (mapping.MappingCandidate, mapping.ColumnProfile) {
	adjust, notes := adjustments(sig)

	profile := mapping.ColumnProfile{
		Name:     name,
		Position: position,
		Signal:   sig,
		Scores:   make(map[mapping.CanonicalType]float64, len(mapping.AllTypes())),
	}

	// Exact-synonym and knowledge-base hits are authoritative for their
	// type: the fused score never drops below the adjusted header
	// confidence just because value evidence is absent. A different type
	// with stronger value evidence can still win outright.
	headerFloor := 0.0
	if hm.Method == mapping.MethodExactSynonym || hm.Method == mapping.MethodKnowledgeBase {
		headerFloor = clamp(hm.Confidence * adjust)
	}

	bestType := hm.Type
	bestScore := -1.0
	for _, t := range mapping.AllTypes() {
		fused := c.cfg.HeaderWeight*hm.TypeScores[t] + c.cfg.ValueWeight*ValueScore(t, sig)
		fused = clamp(fused * multiplierFor(t, sig, adjust))
		if t == hm.Type && headerFloor > fused {
			fused = headerFloor
		}
		profile.Scores[t] = fused
		if fused > bestScore {
			bestType, bestScore = t, fused
		}
	}

	method := hm.Method
	if bestType != hm.Type {
		method = mapping.MethodValueAdjusted
	}

	return mapping.MappingCandidate{
		OriginalColumn: name,
		Position:       position,
		CanonicalType:  bestType,
		Confidence:     bestScore,
		Method:         method,
		Reasoning:      reasoning(bestType, hm, sig, notes),
	}, profile
}

// ValueScore computes the type-specific evidence score from a fingerprint.
func ValueScore(t mapping.CanonicalType, sig mapping.ValueSignal) float64 {
	switch t {
	case mapping.TypeDate:
		return sig.DatePct

	case mapping.TypeSales, mapping.TypeRevenue, mapping.TypeExpense, mapping.TypePrice:
		s := math.Max(sig.CurrencyPct, sig.NumericPct)
		// identifier-shaped values argue against a monetary reading
		if sig.IDPatternPct > 50 {
			s *= 0.5
		} else if sig.IDPatternPct > 20 {
			s *= 0.8
		}
		return s

	case mapping.TypeQuantity:
		// numeric but not currency-formatted
		s := sig.NumericPct - sig.CurrencyPct
		if s < 0 {
			s = 0
		}
		return s

	case mapping.TypeProduct, mapping.TypeCustomer:
		identifier := 0.6*math.Max(sig.SKUPatternPct, sig.IDPatternPct) + 0.4*sig.UniquePct
		descriptive := 0.8 * lengthScore(sig.AvgLen)
		s := math.Max(identifier, descriptive)
		if sig.NumericPct > 90 && sig.IDPatternPct < 20 {
			// plain numbers are neither names nor codes
			s *= 0.5
		}
		return s

	case mapping.TypeRegion:
		return sig.RegionGeoPct

	default: // TypeIgnore has no positive value evidence
		return 0
	}
}

// lengthScore rewards longer average string lengths, a positive signal for
// descriptive product or customer names.
func lengthScore(avgLen float64) float64 {
	return clamp((avgLen - 4) * 12)
}

// adjustments returns the downward multiplier for weak samples and the
// notes describing which penalties applied.
func adjustments(sig mapping.ValueSignal) (float64, []string) {
	adjust := 1.0
	var notes []string

	switch {
	case sig.SampleSize < 10:
		adjust *= 0.7
		notes = append(notes, "very small sample")
	case sig.SampleSize < 20:
		adjust *= 0.9
		notes = append(notes, "small sample")
	}

	switch {
	case sig.NullPct > 50:
		adjust *= 0.5
		notes = append(notes, "mostly null")
	case sig.NullPct > 25:
		adjust *= 0.8
		notes = append(notes, "many nulls")
	}

	return adjust, notes
}

// multiplierFor layers the contradiction penalty on top of the sample
// adjustments: very high numeric and unique percentages together suggest
// an identifier rather than a measure, unless the values are currency
// formatted.
func multiplierFor(t mapping.CanonicalType, sig mapping.ValueSignal, adjust float64) float64 {
	if t.IsMonetary() || t == mapping.TypeQuantity {
		if sig.NumericPct > 90 && sig.UniquePct > 90 && sig.CurrencyPct < 50 {
			return adjust * 0.75
		}
	}
	return adjust
}

func reasoning(t mapping.CanonicalType, hm header.Match, sig mapping.ValueSignal, notes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "header %s scored %.0f for %s; value evidence %.0f", hm.Method, hm.TypeScores[t], t, ValueScore(t, sig))
	if len(notes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(notes, ", "))
	}
	return b.String()
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
