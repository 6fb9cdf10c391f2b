// Package header scores column names against the synonym vocabulary and
// the knowledge base of prior confirmations.
package header

import (
	"math"
	"time"

	"colsense/domain/knowledge"
	"colsense/domain/mapping"
	"colsense/internal/vocab"
)

// Confidence constants for the non-fuzzy resolution paths.
const (
	exactSynonymConfidence  = 95
	knowledgeBaseConfidence = 85
)

// Match is the header-side verdict for one column name.
type Match struct {
	Type       mapping.CanonicalType
	Confidence float64
	Method     mapping.Method

	// TypeScores holds the header-side score for every canonical type,
	// used downstream to rank alternative suggestions.
	TypeScores map[mapping.CanonicalType]float64
}

// Matcher resolves column names. Resolution order: exact synonym,
// knowledge base, fuzzy similarity.
type Matcher struct {
	vocab *vocab.Vocabulary
	now   func() time.Time
}

// NewMatcher creates a matcher over the given vocabulary.
func NewMatcher(v *vocab.Vocabulary) *Matcher {
	return &Matcher{vocab: v, now: time.Now}
}

// Match scores a column name against the vocabulary and the snapshot.
func (m *Matcher) Match(name string, snap *knowledge.Snapshot) Match {
	scores := m.fuzzyScores(name)
	fuzzyType, fuzzyScore := best(scores)

	// 1. Exact case-insensitive synonym match.
	if t, ok := m.vocab.ExactMatch(name); ok {
		scores[t] = exactSynonymConfidence
		return Match{Type: t, Confidence: exactSynonymConfidence, Method: mapping.MethodExactSynonym, TypeScores: scores}
	}

	// 2. Knowledge-base lookup by lower-cased name.
	if entry, ok := snap.Lookup(name); ok && entry.MappedType.Valid() {
		conf := m.knowledgeConfidence(entry, fuzzyType, fuzzyScore)
		scores[entry.MappedType] = conf
		return Match{Type: entry.MappedType, Confidence: conf, Method: mapping.MethodKnowledgeBase, TypeScores: scores}
	}

	// 3. Fuzzy similarity against every synonym and type name.
	return Match{Type: fuzzyType, Confidence: fuzzyScore, Method: mapping.MethodFuzzyMatch, TypeScores: scores}
}

// knowledgeConfidence derives confidence from confirmation history using a
// time-decayed weighted average: weight = max(0.1, 1 - days/365). Entries
// without history fall back to a fixed confidence, reconciled upward when
// the fuzzy score independently agrees on the same type.
func (m *Matcher) knowledgeConfidence(entry knowledge.Entry, fuzzyType mapping.CanonicalType, fuzzyScore float64) float64 {
	var weighted, weights float64
	now := m.now()
	for _, c := range entry.Confirmations {
		if c.Type != entry.MappedType {
			continue
		}
		days := now.Sub(c.ConfirmedAt).Hours() / 24
		w := math.Max(0.1, 1-days/365)
		weighted += w * c.Confidence
		weights += w
	}
	if weights > 0 {
		return clamp(weighted / weights)
	}

	if fuzzyType == entry.MappedType && fuzzyScore > knowledgeBaseConfidence {
		return clamp(fuzzyScore)
	}
	return knowledgeBaseConfidence
}

// fuzzyScores computes the best token-weighted ratio per canonical type,
// taking the max over the type's synonyms and its own name.
func (m *Matcher) fuzzyScores(name string) map[mapping.CanonicalType]float64 {
	scores := make(map[mapping.CanonicalType]float64, len(mapping.AllTypes()))
	for _, t := range mapping.AllTypes() {
		bestRatio := TokenWeightedRatio(name, string(t))
		for _, syn := range m.vocab.Synonyms(t) {
			if r := TokenWeightedRatio(name, syn); r > bestRatio {
				bestRatio = r
			}
		}
		scores[t] = clamp(bestRatio * 100)
	}
	return scores
}

func best(scores map[mapping.CanonicalType]float64) (mapping.CanonicalType, float64) {
	bestType, bestScore := mapping.TypeIgnore, -1.0
	// iterate in the enumeration's stable order so ties break the same way
	// on every run
	for _, t := range mapping.AllTypes() {
		if s, ok := scores[t]; ok && s > bestScore {
			bestType, bestScore = t, s
		}
	}
	if bestScore < 0 {
		bestScore = 0
	}
	return bestType, bestScore
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
