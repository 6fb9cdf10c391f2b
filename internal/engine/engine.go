// Package engine wires the resolution pipeline: signal extraction, header
// matching, score fusion, status classification, conflict detection and
// conflict resolution, reading and writing learned state through the
// knowledge store port.
package engine

import (
	"context"
	"fmt"
	"sort"

	"colsense/domain/core"
	"colsense/domain/knowledge"
	"colsense/domain/mapping"
	"colsense/internal"
	"colsense/internal/config"
	"colsense/internal/conflict"
	"colsense/internal/header"
	"colsense/internal/inference"
	"colsense/internal/signal"
	"colsense/internal/vocab"
	"colsense/ports"
)

// Options tunes a single resolution run.
type Options struct {
	// Confirmed short-circuits inference for the named columns with
	// confidence 100 and method user_confirmed. Keys match column names
	// case-insensitively.
	Confirmed map[string]mapping.CanonicalType

	// Learn records a confirmation for every confidently mapped column.
	// Off by default: a pure inference run then leaves the knowledge base
	// untouched apart from conflict-resolution bookkeeping, so repeated
	// runs on identical input return identical results.
	Learn bool
}

// Engine is the column semantic resolution pipeline. It is synchronous and
// single-threaded per dataset; the knowledge store is the only shared
// mutable resource and serializes its own writes, so one Engine may serve
// concurrent callers.
type Engine struct {
	cfg   config.EngineConfig
	store ports.KnowledgeStore
	log   *internal.Logger

	extractor  *signal.Extractor
	matcher    *header.Matcher
	combiner   *inference.Combiner
	classifier *inference.Classifier
	resolver   *conflict.Resolver
}

// New creates an engine. store may be nil for ephemeral, non-learning use;
// log defaults to the package logger.
func New(cfg config.EngineConfig, v *vocab.Vocabulary, store ports.KnowledgeStore, log *internal.Logger) *Engine {
	if v == nil {
		v = vocab.Default()
	}
	if log == nil {
		log = internal.DefaultLogger
	}
	extractor := signal.NewExtractor(v, cfg.SampleCap)
	return &Engine{
		cfg:        cfg,
		store:      store,
		log:        log,
		extractor:  extractor,
		matcher:    header.NewMatcher(v),
		combiner:   inference.NewCombiner(cfg),
		classifier: inference.NewClassifier(cfg),
		resolver:   conflict.NewResolver(cfg, extractor, store, log),
	}
}

// Resolve classifies every column and adjudicates type conflicts. Each
// column ends with exactly one status; a failing column is marked unmapped
// with an error note and never aborts the remaining columns.
func (e *Engine) Resolve(ctx context.Context, columns []mapping.Column, opts Options) (*mapping.MappingResult, error) {
	runID := core.NewRunID()
	e.log.Debug("run %s: resolving %d columns", runID, len(columns))

	confirmed, err := normalizeConfirmed(opts.Confirmed)
	if err != nil {
		return nil, err
	}
	snap := e.snapshot(ctx)

	type slot struct {
		cls     inference.Classification
		profile mapping.ColumnProfile
	}
	slots := make([]slot, len(columns))
	byName := make(map[string]mapping.Column, len(columns))

	var candidates []mapping.MappingCandidate
	for i, col := range columns {
		byName[col.Name] = col

		if t, ok := confirmed[knowledge.Key(col.Name)]; ok {
			slots[i].cls = inference.Classification{
				Status: mapping.StatusMapped,
				Mapped: &mapping.Mapped{
					OriginalColumn: col.Name,
					CanonicalType:  t,
					Confidence:     100,
					Method:         mapping.MethodUserConfirmed,
					Reasoning:      "confirmed by user",
				},
			}
			// confirmed columns still claim their type, so an inferred
			// column claiming the same type surfaces as a conflict
			candidates = append(candidates, mapping.MappingCandidate{
				OriginalColumn: col.Name,
				Position:       i,
				CanonicalType:  t,
				Confidence:     100,
				Method:         mapping.MethodUserConfirmed,
				Reasoning:      "confirmed by user",
			})
			continue
		}

		cand, profile, err := e.evaluateColumn(col, i, snap)
		if err != nil {
			slots[i].cls = inference.Classification{
				Status: mapping.StatusUnmapped,
				Unmapped: &mapping.Unmapped{
					OriginalColumn: col.Name,
					Reason:         fmt.Sprintf("column evaluation failed: %v", err),
				},
			}
			continue
		}

		slots[i].cls = e.classifier.Classify(cand, profile)
		slots[i].profile = profile
		if slots[i].cls.Status != mapping.StatusUnmapped {
			candidates = append(candidates, cand)
		}
	}

	resolutions := make([]mapping.ConflictResolution, 0)
	demoted := map[string]mapping.ConflictResolution{}
	for _, c := range conflict.Detect(candidates) {
		res := e.resolver.Resolve(ctx, c, byName, snap)
		resolutions = append(resolutions, res)
		for _, loser := range res.LoserColumns {
			demoted[loser] = res
		}
	}

	result := &mapping.MappingResult{
		Mapped:    []mapping.Mapped{},
		Uncertain: []mapping.Uncertain{},
		Unmapped:  []mapping.Unmapped{},
		Conflicts: resolutions,
	}
	for _, s := range slots {
		switch s.cls.Status {
		case mapping.StatusMapped:
			m := *s.cls.Mapped
			if res, lost := demoted[m.OriginalColumn]; lost && res.TargetType == m.CanonicalType {
				result.Uncertain = append(result.Uncertain, demote(m, res))
				continue
			}
			result.Mapped = append(result.Mapped, m)
		case mapping.StatusUncertain:
			result.Uncertain = append(result.Uncertain, *s.cls.Uncertain)
		case mapping.StatusUnmapped:
			result.Unmapped = append(result.Unmapped, *s.cls.Unmapped)
		}
	}
	sort.SliceStable(result.Conflicts, func(i, j int) bool {
		return result.Conflicts[i].TargetType < result.Conflicts[j].TargetType
	})

	if opts.Learn {
		e.recordMapped(ctx, result.Mapped)
	}

	e.log.Info("run %s: %d mapped, %d uncertain, %d unmapped, %d conflicts",
		runID, len(result.Mapped), len(result.Uncertain), len(result.Unmapped), len(result.Conflicts))
	return result, nil
}

// evaluateColumn runs extraction, header matching and fusion for one
// column, converting a panic in any detector into a per-column error.
func (e *Engine) evaluateColumn(col mapping.Column, position int, snap *knowledge.Snapshot) (cand mapping.MappingCandidate, profile mapping.ColumnProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	sig, sigErr := e.extractor.Extract(col)
	if sigErr != nil {
		// recovered locally: fall back to an all-zero signal
		e.log.Warn("signal extraction failed for %q, using empty signal: %v", col.Name, sigErr)
		sig = mapping.ValueSignal{NullPct: 100}
	}

	hm := e.matcher.Match(col.Name, snap)
	cand, profile = e.combiner.Score(col.Name, position, sig, hm)
	return cand, profile, nil
}

// snapshot loads a read-consistent store view. An unavailable store is
// recovered by proceeding with an empty snapshot.
func (e *Engine) snapshot(ctx context.Context) *knowledge.Snapshot {
	if e.store == nil {
		return knowledge.EmptySnapshot()
	}
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		e.log.Warn("knowledge store unavailable, proceeding without learned state: %v", err)
		return knowledge.EmptySnapshot()
	}
	return snap
}

func (e *Engine) recordMapped(ctx context.Context, mapped []mapping.Mapped) {
	if e.store == nil {
		return
	}
	for _, m := range mapped {
		if m.Method == mapping.MethodUserConfirmed {
			continue
		}
		if err := e.store.RecordConfirmation(ctx, knowledge.Key(m.OriginalColumn), m.CanonicalType, m.Confidence); err != nil {
			e.log.Warn("recording confirmation for %q failed: %v", m.OriginalColumn, err)
		}
	}
}

func demote(m mapping.Mapped, res mapping.ConflictResolution) mapping.Uncertain {
	return mapping.Uncertain{
		OriginalColumn: m.OriginalColumn,
		CandidateType:  m.CanonicalType,
		Confidence:     m.Confidence,
		Suggestions: []mapping.Suggestion{{
			Type:       mapping.TypeIgnore,
			Confidence: 70,
			Reason:     fmt.Sprintf("%q was resolved as the %s column", res.WinnerColumn, res.TargetType),
		}},
	}
}

func normalizeConfirmed(confirmed map[string]mapping.CanonicalType) (map[string]mapping.CanonicalType, error) {
	if len(confirmed) == 0 {
		return nil, nil
	}
	out := make(map[string]mapping.CanonicalType, len(confirmed))
	for name, t := range confirmed {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %s (confirmed for column %q)", core.ErrInvalidType, t, name)
		}
		out[knowledge.Key(name)] = t
	}
	return out, nil
}

// Confirm records a user confirmation of a column's canonical type.
func (e *Engine) Confirm(ctx context.Context, columnName string, t mapping.CanonicalType, confidence float64) error {
	if e.store == nil {
		return core.ErrStoreClosed
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %s", core.ErrInvalidType, t)
	}
	if confidence < 0 || confidence > 100 {
		return core.ErrInvalidConfirm
	}
	if knowledge.Key(columnName) == "" {
		return core.ErrEmptyColumnName
	}
	return e.store.RecordConfirmation(ctx, knowledge.Key(columnName), t, confidence)
}

// Ignore records that a column should be excluded for an analytics context.
func (e *Engine) Ignore(ctx context.Context, columnName, analyticsContext string) error {
	if e.store == nil {
		return core.ErrStoreClosed
	}
	if knowledge.Key(columnName) == "" {
		return core.ErrEmptyColumnName
	}
	return e.store.RecordIgnore(ctx, knowledge.Key(columnName), analyticsContext)
}

// ConfirmResolution records that a user accepted a conflict resolution,
// feeding the learned winner patterns used by future runs.
func (e *Engine) ConfirmResolution(ctx context.Context, res mapping.ConflictResolution) error {
	if e.store == nil {
		return core.ErrStoreClosed
	}
	losers := make([]string, len(res.LoserColumns))
	for i, l := range res.LoserColumns {
		losers[i] = knowledge.Key(l)
	}
	return e.store.RecordConflictResolution(ctx, knowledge.ResolutionRecord{
		TargetType:    res.TargetType,
		WinnerColumn:  knowledge.Key(res.WinnerColumn),
		LoserColumns:  losers,
		Reasoning:     res.Reasoning,
		Confidence:    res.Confidence,
		Frequency:     1,
		UserConfirmed: true,
	})
}
