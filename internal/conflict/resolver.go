package conflict

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
	"colsense/internal"
	"colsense/internal/config"
	"colsense/internal/signal"
	"colsense/ports"
)

// learnedBoost is added to the winner's confidence when the knowledge base
// has seen users confirm the same winner pattern before, capped at 95.
const (
	learnedBoost    = 10
	learnedBoostCap = 95
	mergeConfidence = 85
)

// Resolver adjudicates conflicts: business-priority rules first, then a
// statistical pass over re-extracted value fingerprints, then a learning
// boost from previously confirmed patterns.
type Resolver struct {
	cfg       config.EngineConfig
	extractor *signal.Extractor
	store     ports.KnowledgeStore
	log       *internal.Logger
	now       func() time.Time
}

// NewResolver creates a resolver. store may be nil, in which case
// resolutions are not persisted and no learning boost applies beyond the
// snapshot handed to Resolve.
func NewResolver(cfg config.EngineConfig, extractor *signal.Extractor, store ports.KnowledgeStore, log *internal.Logger) *Resolver {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Resolver{cfg: cfg, extractor: extractor, store: store, log: log, now: time.Now}
}

// Resolve picks one winner for a contested type and assembles the
// human-readable outcome. Persistence failures are logged and swallowed;
// the returned resolution is always valid.
func (r *Resolver) Resolve(ctx context.Context, c mapping.Conflict, columns map[string]mapping.Column, snap *knowledge.Snapshot) mapping.ConflictResolution {
	var res mapping.ConflictResolution

	if winner, ok := confirmedWinner(c); ok {
		res = assembleConfirmedResolution(c, winner)
	} else if winner, rule, ok := applyBusinessRules(c); ok {
		res = r.assembleRuleResolution(c, winner, rule, columns)
	} else {
		res = r.resolveStatistically(c, columns)
		r.applyLearnedPattern(&res, snap)
	}

	res.Recommendation = recommendation(res)
	res.Alternatives = r.alternatives(c, res, columns)

	r.log.Debug("resolution %s: %s won by %q over %s",
		core.NewResolutionID(), res.TargetType, res.WinnerColumn, strings.Join(res.LoserColumns, ", "))
	r.persist(ctx, res)
	return res
}

// confirmedWinner returns the user-confirmed claimant, if any. Should
// several confirmed columns claim the same type, the earliest wins.
func confirmedWinner(c mapping.Conflict) (mapping.MappingCandidate, bool) {
	var winner mapping.MappingCandidate
	found := false
	for _, cand := range c.Candidates {
		if cand.Method != mapping.MethodUserConfirmed {
			continue
		}
		if !found || cand.Position < winner.Position {
			winner, found = cand, true
		}
	}
	return winner, found
}

func assembleConfirmedResolution(c mapping.Conflict, winner mapping.MappingCandidate) mapping.ConflictResolution {
	scores := map[string]float64{}
	for _, cand := range c.Candidates {
		scores[cand.OriginalColumn] = cand.Confidence
	}
	return mapping.ConflictResolution{
		TargetType:   c.TargetType,
		WinnerColumn: winner.OriginalColumn,
		LoserColumns: losersOf(c, winner.OriginalColumn),
		Confidence:   100,
		Reasoning:    fmt.Sprintf("user confirmed %q as the %s column", winner.OriginalColumn, c.TargetType),
		Scores:       scores,
	}
}

func (r *Resolver) assembleRuleResolution(c mapping.Conflict, winner mapping.MappingCandidate, rule Rule, columns map[string]mapping.Column) mapping.ConflictResolution {
	scores := map[string]float64{}
	for _, cand := range c.Candidates {
		scores[cand.OriginalColumn] = cand.Confidence
	}
	return mapping.ConflictResolution{
		TargetType:   c.TargetType,
		WinnerColumn: winner.OriginalColumn,
		LoserColumns: losersOf(c, winner.OriginalColumn),
		Confidence:   businessRuleConfidence,
		Reasoning:    fmt.Sprintf("business logic priority for %s (%s)", c.TargetType, rule.Name),
		Scores:       scores,
	}
}

// resolveStatistically re-extracts each contender's fingerprint and blends
// original confidence with the type-specific discrimination score. Ties
// within the configured epsilon break deterministically: higher original
// confidence first, then earlier column position.
func (r *Resolver) resolveStatistically(c mapping.Conflict, columns map[string]mapping.Column) mapping.ConflictResolution {
	type scored struct {
		cand  mapping.MappingCandidate
		sig   mapping.ValueSignal
		seq   float64
		final float64
	}

	contenders := make([]scored, 0, len(c.Candidates))
	scores := map[string]float64{}
	for _, cand := range c.Candidates {
		col := columns[cand.OriginalColumn]
		sig, err := r.extractor.Extract(col)
		if err != nil {
			r.log.Warn("conflict signal re-extraction failed for %q: %v", cand.OriginalColumn, err)
			sig = mapping.ValueSignal{NullPct: 100}
		}
		seq := signal.Sequentialness(signal.Sample(col.Values, r.cfg.SampleCap))
		heur := heuristicScore(c.TargetType, sig, seq)
		final := r.cfg.ResolverOriginalWeight*cand.Confidence + r.cfg.ResolverHeuristicWeight*heur
		final = math.Min(100, math.Max(0, final))

		contenders = append(contenders, scored{cand: cand, sig: sig, seq: seq, final: final})
		scores[cand.OriginalColumn] = final
	}

	sort.SliceStable(contenders, func(i, j int) bool {
		a, b := contenders[i], contenders[j]
		if math.Abs(a.final-b.final) > r.cfg.TieEpsilon {
			return a.final > b.final
		}
		if a.cand.Confidence != b.cand.Confidence {
			return a.cand.Confidence > b.cand.Confidence
		}
		return a.cand.Position < b.cand.Position
	})

	win := contenders[0]
	return mapping.ConflictResolution{
		TargetType:   c.TargetType,
		WinnerColumn: win.cand.OriginalColumn,
		LoserColumns: losersOf(c, win.cand.OriginalColumn),
		Confidence:   win.final,
		Reasoning:    statisticalReasoning(c.TargetType, win.cand.OriginalColumn, win.sig, win.seq),
		Scores:       scores,
	}
}

// applyLearnedPattern boosts the winner when users previously confirmed
// the same winner column for this target type.
func (r *Resolver) applyLearnedPattern(res *mapping.ConflictResolution, snap *knowledge.Snapshot) {
	if snap == nil {
		return
	}
	pattern, ok := snap.BestKnownWinner(res.TargetType)
	if !ok || pattern.WinnerColumn != knowledge.Key(res.WinnerColumn) {
		return
	}
	res.Confidence = math.Min(learnedBoostCap, res.Confidence+learnedBoost)
	res.Reasoning += " (previously learned pattern)"
}

// statisticalReasoning names the dominant discriminating signals.
func statisticalReasoning(t mapping.CanonicalType, winner string, sig mapping.ValueSignal, seq float64) string {
	var traits []string
	if sig.IDPatternPct > 60 || sig.SKUPatternPct > 60 {
		traits = append(traits, "identifier/code-patterned values")
	}
	if sig.UniquePct > 95 {
		traits = append(traits, "near-total uniqueness")
	} else if sig.UniquePct < 5 {
		traits = append(traits, "heavily repeated values")
	}
	if sig.AvgLen > 12 {
		traits = append(traits, "long descriptive strings")
	}
	if sig.CurrencyPct > 60 {
		traits = append(traits, "currency formatting")
	} else if sig.NumericPct > 60 {
		traits = append(traits, "numeric values")
	}
	if sig.RegionGeoPct > 60 {
		traits = append(traits, "known geography names")
	}
	if seq > 60 {
		traits = append(traits, "sequential numbering")
	}
	if len(traits) == 0 {
		traits = append(traits, "overall statistical fit")
	}
	return fmt.Sprintf("%q best matches %s: %s", winner, t, strings.Join(traits, ", "))
}

func recommendation(res mapping.ConflictResolution) string {
	if len(res.LoserColumns) == 0 {
		return fmt.Sprintf("Use %q as the %s column.", res.WinnerColumn, res.TargetType)
	}
	return fmt.Sprintf("Use %q as the %s column; ignore %s or keep them as supplementary fields.",
		res.WinnerColumn, res.TargetType, quoteJoin(res.LoserColumns))
}

// alternatives builds the user-facing options: accept the winner, ignore
// the losers, merge (only for a two-way conflict where exactly one side is
// identifier-patterned), or pick manually.
func (r *Resolver) alternatives(c mapping.Conflict, res mapping.ConflictResolution, columns map[string]mapping.Column) []mapping.AlternativeAction {
	alts := []mapping.AlternativeAction{
		{
			Action:      mapping.ActionAcceptWinner,
			Description: fmt.Sprintf("Map %q to %s and proceed.", res.WinnerColumn, res.TargetType),
			Confidence:  res.Confidence,
		},
		{
			Action:      mapping.ActionIgnoreLosers,
			Description: fmt.Sprintf("Exclude %s from analytics.", quoteJoin(res.LoserColumns)),
			Confidence:  70,
		},
	}

	if merge, ok := r.mergeAlternative(c, res, columns); ok {
		alts = append(alts, merge)
	}

	alts = append(alts, mapping.AlternativeAction{
		Action:      mapping.ActionManualSelection,
		Description: fmt.Sprintf("Manually choose which column carries %s.", res.TargetType),
		Confidence:  50,
	})
	return alts
}

func (r *Resolver) mergeAlternative(c mapping.Conflict, res mapping.ConflictResolution, columns map[string]mapping.Column) (mapping.AlternativeAction, bool) {
	if len(c.Candidates) != 2 {
		return mapping.AlternativeAction{}, false
	}

	idPatterned := make([]bool, 2)
	count := 0
	for i, cand := range c.Candidates {
		sig, err := r.extractor.Extract(columns[cand.OriginalColumn])
		if err != nil {
			return mapping.AlternativeAction{}, false
		}
		idPatterned[i] = sig.IDPatternPct >= 60 || sig.SKUPatternPct >= 60
		if idPatterned[i] {
			count++
		}
	}
	if count != 1 {
		return mapping.AlternativeAction{}, false
	}

	// worked example: code column first, label column second
	codeIdx, labelIdx := 0, 1
	if idPatterned[1] {
		codeIdx, labelIdx = 1, 0
	}
	code := firstValue(columns[c.Candidates[codeIdx].OriginalColumn])
	label := firstValue(columns[c.Candidates[labelIdx].OriginalColumn])

	return mapping.AlternativeAction{
		Action: mapping.ActionMergeColumns,
		Description: fmt.Sprintf("Merge %q and %q into one %s column (concatenate; prefer_first and prefer_non_null also available).",
			c.Candidates[codeIdx].OriginalColumn, c.Candidates[labelIdx].OriginalColumn, res.TargetType),
		MergeType:  mapping.MergeConcatenate,
		Example:    fmt.Sprintf("%s - %s", code, label),
		Confidence: mergeConfidence,
	}, true
}

// persist writes the outcome to the knowledge base. Failures never affect
// the in-memory result.
func (r *Resolver) persist(ctx context.Context, res mapping.ConflictResolution) {
	if r.store == nil {
		return
	}
	losers := make([]string, len(res.LoserColumns))
	for i, l := range res.LoserColumns {
		losers[i] = knowledge.Key(l)
	}
	rec := knowledge.ResolutionRecord{
		TargetType:   res.TargetType,
		WinnerColumn: knowledge.Key(res.WinnerColumn),
		LoserColumns: losers,
		Reasoning:    res.Reasoning,
		Confidence:   res.Confidence,
		Frequency:    1,
		RecordedAt:   r.now(),
	}
	if err := r.store.RecordConflictResolution(ctx, rec); err != nil {
		r.log.Warn("persisting conflict resolution for %s failed: %v", res.TargetType, err)
	}
}

func losersOf(c mapping.Conflict, winner string) []string {
	losers := make([]string, 0, len(c.Candidates)-1)
	for _, cand := range c.Candidates {
		if cand.OriginalColumn != winner {
			losers = append(losers, cand.OriginalColumn)
		}
	}
	return losers
}

func firstValue(col mapping.Column) string {
	for _, v := range col.Values {
		if !signal.IsNull(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func quoteJoin(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
