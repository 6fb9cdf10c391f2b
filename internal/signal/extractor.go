// Package signal computes statistical fingerprints of column values.
// Cost is O(sample), not O(rows): the extractor samples head, tail and an
// even stride through the middle up to a configured cap.
package signal

import (
	"strings"

	"github.com/montanaflynn/stats"

	"colsense/domain/mapping"
	"colsense/internal/vocab"
)

// Extractor profiles a column's values into a mapping.ValueSignal.
type Extractor struct {
	vocab     *vocab.Vocabulary
	sampleCap int
}

// NewExtractor creates an extractor with the given vocabulary and cap.
func NewExtractor(v *vocab.Vocabulary, sampleCap int) *Extractor {
	return &Extractor{vocab: v, sampleCap: sampleCap}
}

// Extract samples the column and computes its fingerprint. Empty or fully
// null columns yield an all-zero signal with NullPct=100 and never error.
func (e *Extractor) Extract(col mapping.Column) (mapping.ValueSignal, error) {
	sample := Sample(col.Values, e.sampleCap)

	sig := mapping.ValueSignal{SampleSize: len(sample)}
	if len(sample) == 0 {
		sig.NullPct = 100
		return sig, nil
	}

	var (
		nonNull  []string
		lengths  []float64
		distinct = map[string]struct{}{}

		numericHits, dateHits, currencyHits int
		idHits, skuHits, regionHits         int
	)

	for _, raw := range sample {
		if IsNull(raw) {
			continue
		}
		v := trimmed(raw)
		nonNull = append(nonNull, v)
		lengths = append(lengths, float64(len(v)))
		distinct[v] = struct{}{}

		if _, ok := ParsesAsNumber(v); ok {
			numericHits++
		}
		if ParsesAsDate(v) {
			dateHits++
		}
		if vocab.MatchesCurrency(v) {
			currencyHits++
		}
		if vocab.MatchesID(v) {
			idHits++
		}
		if vocab.MatchesSKU(v) {
			skuHits++
		}
		if e.vocab.IsRegion(v) {
			regionHits++
		}
	}

	total := len(sample)
	sig.NullPct = pct(total-len(nonNull), total)
	if len(nonNull) == 0 {
		return sig, nil
	}

	n := len(nonNull)
	sig.NumericPct = pct(numericHits, n)
	sig.DatePct = pct(dateHits, n)
	sig.CurrencyPct = pct(currencyHits, n)
	sig.IDPatternPct = pct(idHits, n)
	sig.SKUPatternPct = pct(skuHits, n)
	sig.RegionGeoPct = pct(regionHits, n)
	sig.UniquePct = pct(len(distinct), n)
	sig.Entropy = entropy(nonNull)

	if avg, err := stats.Mean(lengths); err == nil {
		sig.AvgLen = avg
	}

	return sig, nil
}

func pct(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(hits) / float64(total)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
