package conflict

import (
	"strings"

	"colsense/domain/mapping"
	"colsense/internal/vocab"
)

// businessRuleConfidence is the fixed confidence assigned when an explicit
// priority rule settles a conflict.
const businessRuleConfidence = 95

// Rule is one ordered business-priority entry: when a conflict targets
// Target and exactly one contender's name satisfies Winner, that column
// wins outright. Rules are evaluated top-to-bottom; first match wins.
type Rule struct {
	Priority int
	Target   mapping.CanonicalType
	Name     string
	Winner   func(normalized string) bool
}

// businessRules is the explicit priority table. Predicates see normalized
// names (lower case, separators collapsed to single spaces).
var businessRules = []Rule{
	{
		Priority: 10,
		Target:   mapping.TypeSales,
		Name:     "sales amount over plain amount",
		Winner: func(n string) bool {
			return strings.Contains(n, "sales") && strings.Contains(n, "amount")
		},
	},
	{
		Priority: 20,
		Target:   mapping.TypeRevenue,
		Name:     "explicit revenue amount",
		Winner: func(n string) bool {
			return strings.Contains(n, "revenue") && (strings.Contains(n, "amount") || strings.Contains(n, "total"))
		},
	},
	{
		Priority: 30,
		Target:   mapping.TypeQuantity,
		Name:     "quantity sold",
		Winner: func(n string) bool {
			return strings.Contains(n, "quantity") && strings.Contains(n, "sold")
		},
	},
	{
		Priority: 31,
		Target:   mapping.TypeQuantity,
		Name:     "unit count words over ambiguous numerics",
		Winner: func(n string) bool {
			if strings.Contains(n, "discount") {
				return false
			}
			return containsAny(n, "qty", "units", "count", "quantity")
		},
	},
	{
		Priority: 40,
		Target:   mapping.TypeProduct,
		Name:     "product identifier over category",
		Winner: func(n string) bool {
			if strings.Contains(n, "product") && strings.Contains(n, "id") {
				return true
			}
			return containsAny(n, "sku", "item id")
		},
	},
	{
		Priority: 50,
		Target:   mapping.TypeRegion,
		Name:     "exact region name over compounds",
		Winner: func(n string) bool {
			return n == "region"
		},
	},
}

// applyBusinessRules evaluates the rule table against a conflict. A rule
// fires only when exactly one contender satisfies its predicate.
func applyBusinessRules(c mapping.Conflict) (winner mapping.MappingCandidate, rule Rule, ok bool) {
	for _, r := range businessRules {
		if r.Target != c.TargetType {
			continue
		}
		matched := -1
		for i, cand := range c.Candidates {
			if r.Winner(vocab.Normalize(cand.OriginalColumn)) {
				if matched >= 0 {
					matched = -1
					break
				}
				matched = i
			}
		}
		if matched >= 0 {
			return c.Candidates[matched], r, true
		}
	}
	return mapping.MappingCandidate{}, Rule{}, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
