package header

import (
	"strings"
	"unicode"
)

// TokenWeightedRatio scores the similarity of two column names in [0,1].
// Names are tokenized on separators and camelCase boundaries; shared
// tokens count by their length, so "region" matching inside
// "region_and_rep" outweighs the leftover filler tokens. A plain
// Levenshtein ratio acts as the floor for names that share characters but
// not whole tokens.
func TokenWeightedRatio(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA, setB := tokenWeights(ta), tokenWeights(tb)

	shared, union := 0, 0
	for tok, w := range setA {
		if _, ok := setB[tok]; ok {
			shared += w
		}
		union += w
	}
	for tok, w := range setB {
		if _, ok := setA[tok]; !ok {
			union += w
		}
	}
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(shared) / float64(union)
	}

	lev := levenshteinRatio(strings.Join(ta, " "), strings.Join(tb, " "))
	if lev > jaccard {
		return lev
	}
	return jaccard
}

func tokenWeights(tokens []string) map[string]int {
	weights := make(map[string]int, len(tokens))
	for _, t := range tokens {
		if len(t) > weights[t] {
			weights[t] = len(t)
		}
	}
	return weights
}

// Tokenize splits a column name into lower-cased tokens on separators and
// camelCase boundaries.
func Tokenize(name string) []string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.' || r == '/' || r == ' ':
			b.WriteByte(' ')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte(' ')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return strings.Fields(b.String())
}

func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	longest := la
	if lb > longest {
		longest = lb
	}
	return 1 - float64(prev[lb])/float64(longest)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
