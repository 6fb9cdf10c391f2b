// Package conflict finds canonical types claimed by multiple columns and
// adjudicates a single winner per type.
package conflict

import (
	"sort"

	"colsense/domain/mapping"
)

// Detect groups candidates by target type and returns a Conflict for every
// type claimed by two or more distinct columns. Candidates within a
// conflict are ordered by confidence descending, ties by column position;
// conflicts are ordered by type name so output is stable across runs.
// Ignore is never contested: any number of columns may be ignored.
func Detect(candidates []mapping.MappingCandidate) []mapping.Conflict {
	byType := map[mapping.CanonicalType][]mapping.MappingCandidate{}
	for _, cand := range candidates {
		if cand.CanonicalType == mapping.TypeIgnore {
			continue
		}
		byType[cand.CanonicalType] = append(byType[cand.CanonicalType], cand)
	}

	var conflicts []mapping.Conflict
	for t, claims := range byType {
		if len(claims) < 2 {
			continue
		}
		sort.SliceStable(claims, func(i, j int) bool {
			if claims[i].Confidence != claims[j].Confidence {
				return claims[i].Confidence > claims[j].Confidence
			}
			return claims[i].Position < claims[j].Position
		})
		conflicts = append(conflicts, mapping.Conflict{TargetType: t, Candidates: claims})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].TargetType < conflicts[j].TargetType
	})
	return conflicts
}
