package inference

import (
	"fmt"
	"sort"

	"colsense/domain/mapping"
	"colsense/internal/config"
)

// Classification is the tagged outcome for one column: exactly one of the
// three payload fields is set, matching the Status.
type Classification struct {
	Status    mapping.Status
	Mapped    *mapping.Mapped
	Uncertain *mapping.Uncertain
	Unmapped  *mapping.Unmapped
}

// Classifier buckets candidates into mapped / uncertain / unmapped using
// the configured confidence thresholds.
type Classifier struct {
	cfg config.EngineConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.EngineConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify assigns exactly one status to the candidate.
func (c *Classifier) Classify(cand mapping.MappingCandidate, profile mapping.ColumnProfile) Classification {
	switch {
	case cand.Confidence >= c.cfg.MappedThreshold:
		return Classification{
			Status: mapping.StatusMapped,
			Mapped: &mapping.Mapped{
				OriginalColumn: cand.OriginalColumn,
				CanonicalType:  cand.CanonicalType,
				Confidence:     cand.Confidence,
				Method:         cand.Method,
				Reasoning:      cand.Reasoning,
			},
		}

	case cand.Confidence >= c.cfg.UncertainThreshold:
		return Classification{
			Status: mapping.StatusUncertain,
			Uncertain: &mapping.Uncertain{
				OriginalColumn: cand.OriginalColumn,
				CandidateType:  cand.CanonicalType,
				Confidence:     cand.Confidence,
				Suggestions:    c.suggestions(cand, profile),
			},
		}

	default:
		return Classification{
			Status: mapping.StatusUnmapped,
			Unmapped: &mapping.Unmapped{
				OriginalColumn: cand.OriginalColumn,
				Reason:         fmt.Sprintf("no candidate type reached confidence %.0f (best: %s at %.1f)", c.cfg.UncertainThreshold, cand.CanonicalType, cand.Confidence),
			},
		}
	}
}

// suggestions ranks the runner-up candidate types, each annotated with the
// value pattern that argues for it. At most cfg.MaxSuggestions entries.
func (c *Classifier) suggestions(cand mapping.MappingCandidate, profile mapping.ColumnProfile) []mapping.Suggestion {
	ranked := make([]mapping.Suggestion, 0, len(profile.Scores))
	for _, t := range mapping.AllTypes() {
		if t == cand.CanonicalType || t == mapping.TypeIgnore {
			continue
		}
		score, ok := profile.Scores[t]
		if !ok || score < c.cfg.UncertainThreshold/2 {
			continue
		}
		ranked = append(ranked, mapping.Suggestion{
			Type:       t,
			Confidence: score,
			Reason:     suggestionReason(t, profile.Signal),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	if len(ranked) > c.cfg.MaxSuggestions {
		ranked = ranked[:c.cfg.MaxSuggestions]
	}
	return ranked
}

func suggestionReason(t mapping.CanonicalType, sig mapping.ValueSignal) string {
	switch t {
	case mapping.TypeDate:
		return fmt.Sprintf("%.0f%% of values parse as dates", sig.DatePct)
	case mapping.TypeSales, mapping.TypeRevenue, mapping.TypeExpense, mapping.TypePrice:
		if sig.CurrencyPct >= sig.NumericPct {
			return fmt.Sprintf("%.0f%% of values are currency-formatted", sig.CurrencyPct)
		}
		return fmt.Sprintf("%.0f%% of values are numeric", sig.NumericPct)
	case mapping.TypeQuantity:
		return fmt.Sprintf("%.0f%% of values are plain numbers", sig.NumericPct-sig.CurrencyPct)
	case mapping.TypeProduct, mapping.TypeCustomer:
		if sig.SKUPatternPct > 0 || sig.IDPatternPct > 0 {
			return "values contain identifier-style codes"
		}
		return fmt.Sprintf("descriptive strings (avg length %.0f)", sig.AvgLen)
	case mapping.TypeRegion:
		return fmt.Sprintf("%.0f%% of values match known geographies", sig.RegionGeoPct)
	default:
		return "weak name similarity only"
	}
}
