// Package aggregate folds per-claim verdicts into one weighted overall
// assessment. The same per-claim weight drives both the overall truth
// percentage and the overall confidence.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/prompt"
)

// Engine computes the overall assessment from debate verdicts.
type Engine struct {
	provider llm.Provider
	cfg      model.AggregateConfig
	log      *zap.Logger
}

// NewEngine creates an aggregation engine.
func NewEngine(provider llm.Provider, cfg model.AggregateConfig, log *zap.Logger) *Engine {
	return &Engine{provider: provider, cfg: cfg, log: log}
}

// Output is the aggregation stage result. Verdicts are the input verdicts
// annotated in place with triangulation and final weights.
type Output struct {
	Verdicts        []model.ClaimVerdict
	TruthPercentage float64
	Confidence      float64
	Verdict         model.Rating
	Narrative       *model.Narrative
	Gates           model.QualityGates
	Warnings        []string
}

// Aggregate annotates each verdict with its triangulation level and final
// weight, then computes the weighted overall truth percentage and confidence.
// Weights are computed once per claim and reused for both averages.
func (e *Engine) Aggregate(ctx context.Context, claims []model.AtomicClaim,
	verdicts []model.ClaimVerdict, evidence []model.EvidenceItem,
	boundaries []model.ClaimAssessmentBoundary, coverage *model.CoverageMatrix,
	aborted func() bool) (*Output, error) {

	out := &Output{Verdicts: verdicts}

	claimByID := make(map[string]model.AtomicClaim, len(claims))
	for _, c := range claims {
		claimByID[c.ID] = c
	}

	var weightSum, truthSum, confSum float64
	for i := range out.Verdicts {
		v := &out.Verdicts[i]

		level, factor, contested := triangulate(coverage.ClaimRow(v.ClaimID), e.cfg)
		v.Triangulation = level
		v.TriangulationFactor = factor
		v.IsContested = contested

		claim := claimByID[v.ClaimID]
		weight := centralityWeight(claim.Centrality, e.cfg) *
			harmMultiplier(claim.HarmPotential, e.cfg) *
			(1 + factor) *
			derivativeFactor(v.ClaimID, evidence, e.cfg)
		if weight <= 0 {
			weight = 0.01 // every verdict keeps a nonzero voice
		}
		v.FinalWeight = weight

		weightSum += weight
		truthSum += weight * v.TruthPercentage
		confSum += weight * v.Confidence
	}

	if weightSum > 0 {
		out.TruthPercentage = truthSum / weightSum
		out.Confidence = confSum / weightSum
	}
	out.Verdict = model.RatingForTruth(out.TruthPercentage)
	if len(out.Verdicts) == 0 {
		out.Verdict = model.RatingUnverifiable
		out.Warnings = append(out.Warnings, "aggregate: no verdicts to aggregate")
	}

	out.Gates = e.gates(out.Verdicts)

	e.log.Info("aggregate: weighted assessment",
		zap.Float64("truth_pct", out.TruthPercentage),
		zap.Float64("confidence", out.Confidence),
		zap.String("verdict", string(out.Verdict)))

	if aborted() {
		out.Warnings = append(out.Warnings, "aggregate: narrative skipped, run aborted")
		return out, nil
	}

	narrative, err := e.narrate(ctx, out, boundaries, coverage)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("aggregate: narrative unavailable: %v", err))
		return out, nil
	}
	out.Narrative = narrative
	return out, nil
}

// narrate asks for a reader-facing summary built from the heaviest claims.
func (e *Engine) narrate(ctx context.Context, out *Output,
	boundaries []model.ClaimAssessmentBoundary, coverage *model.CoverageMatrix) (*model.Narrative, error) {

	top := make([]model.ClaimVerdict, len(out.Verdicts))
	copy(top, out.Verdicts)
	sort.SliceStable(top, func(i, j int) bool { return top[i].FinalWeight > top[j].FinalWeight })
	limit := e.cfg.NarrativeTopClaims
	if limit <= 0 {
		limit = 7
	}
	if len(top) > limit {
		top = top[:limit]
	}

	resp, err := e.provider.Invoke(ctx, prompt.KeyNarrative, map[string]any{
		"truth":      fmt.Sprintf("%.0f", out.TruthPercentage),
		"confidence": fmt.Sprintf("%.0f", out.Confidence),
		"verdict":    string(out.Verdict),
		"claims":     top,
		"boundaries": boundaries,
		"coverage":   coverage,
	}, llm.CallOptions{Stage: "aggregate", Tier: llm.TierStandard})
	if err != nil {
		return nil, err
	}

	var narrative model.Narrative
	if err := json.Unmarshal(resp.Data, &narrative); err != nil {
		return nil, fmt.Errorf("decode narrative response: %w", err)
	}
	return &narrative, nil
}

func (e *Engine) gates(verdicts []model.ClaimVerdict) model.QualityGates {
	var g model.QualityGates
	for _, v := range verdicts {
		switch v.ConfidenceTier {
		case model.LevelHigh:
			g.HighConfidence++
		case model.LevelMedium:
			g.MediumConfidence++
		default:
			g.LowConfidence++
		}
	}
	return g
}
