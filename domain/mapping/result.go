package mapping

// Status buckets a column after initial inference. Every column receives
// exactly one status; conflict resolution may later demote a mapped loser
// to uncertain so that at most one column holds a type's winner slot.
type Status string

const (
	StatusMapped    Status = "mapped"
	StatusUncertain Status = "uncertain"
	StatusUnmapped  Status = "unmapped"
)

// Mapped is a column resolved with high confidence.
type Mapped struct {
	OriginalColumn string        `json:"original_column"`
	CanonicalType  CanonicalType `json:"canonical_type"`
	Confidence     float64       `json:"confidence"`
	Method         Method        `json:"method"`
	Reasoning      string        `json:"reasoning"`
}

// Suggestion is a ranked alternative offered for an uncertain column.
type Suggestion struct {
	Type       CanonicalType `json:"type"`
	Confidence float64       `json:"confidence"`
	Reason     string        `json:"reason"`
}

// Uncertain is a column with a plausible but unconfirmed candidate.
// Suggestions carries at most five ranked alternatives.
type Uncertain struct {
	OriginalColumn string        `json:"original_column"`
	CandidateType  CanonicalType `json:"candidate_type"`
	Confidence     float64       `json:"confidence"`
	Suggestions    []Suggestion  `json:"suggestions"`
}

// Unmapped is a column no candidate type could claim.
type Unmapped struct {
	OriginalColumn string `json:"original_column"`
	Reason         string `json:"reason"`
}

// MergeType names a strategy for combining two competing columns.
type MergeType string

const (
	MergePreferFirst   MergeType = "prefer_first"
	MergePreferSecond  MergeType = "prefer_second"
	MergeConcatenate   MergeType = "concatenate"
	MergePreferNonNull MergeType = "prefer_non_null"
)

// Action names for resolution alternatives.
const (
	ActionAcceptWinner    = "accept_winner"
	ActionIgnoreLosers    = "ignore_losers"
	ActionMergeColumns    = "merge_columns"
	ActionManualSelection = "manual_selection"
)

// AlternativeAction is one way a user could settle a conflict instead of
// accepting the computed winner outright.
type AlternativeAction struct {
	Action      string    `json:"action"`
	Description string    `json:"description"`
	MergeType   MergeType `json:"merge_type,omitempty"`
	Example     string    `json:"example,omitempty"`
	Confidence  float64   `json:"confidence"`
}

// ConflictResolution is the adjudicated outcome for one contested type.
type ConflictResolution struct {
	TargetType     CanonicalType       `json:"target_type"`
	WinnerColumn   string              `json:"winner_column"`
	LoserColumns   []string            `json:"loser_columns"`
	Confidence     float64             `json:"confidence"`
	Reasoning      string              `json:"reasoning"`
	Scores         map[string]float64  `json:"scores"`
	Recommendation string              `json:"recommendation"`
	Alternatives   []AlternativeAction `json:"alternative_actions"`
}

// MappingResult is the engine's complete output for one dataset.
// Slices are ordered deterministically: mapped/uncertain/unmapped by the
// column's ordinal position in the input, conflicts by target type name.
type MappingResult struct {
	Mapped    []Mapped             `json:"mapped"`
	Uncertain []Uncertain          `json:"uncertain"`
	Unmapped  []Unmapped           `json:"unmapped"`
	Conflicts []ConflictResolution `json:"conflicts"`
}

// MappedType returns the mapped entry for a canonical type, if any.
func (r *MappingResult) MappedType(t CanonicalType) (Mapped, bool) {
	for _, m := range r.Mapped {
		if m.CanonicalType == t {
			return m, true
		}
	}
	return Mapped{}, false
}

// StatusOf returns the status assigned to a column, and false when the
// column does not appear in the result at all.
func (r *MappingResult) StatusOf(column string) (Status, bool) {
	for _, m := range r.Mapped {
		if m.OriginalColumn == column {
			return StatusMapped, true
		}
	}
	for _, u := range r.Uncertain {
		if u.OriginalColumn == column {
			return StatusUncertain, true
		}
	}
	for _, u := range r.Unmapped {
		if u.OriginalColumn == column {
			return StatusUnmapped, true
		}
	}
	return "", false
}
