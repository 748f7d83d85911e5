// Package debate implements the five-step verdict protocol: advocate,
// concurrent self-consistency and adversarial challenge, reconciliation, and
// cheap-tier validation. Each step is one batched call covering all claims.
package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/prompt"
)

// Engine produces one calibrated verdict per atomic claim.
type Engine struct {
	provider llm.Provider
	cfg      model.DebateConfig
	log      *zap.Logger
}

// NewEngine creates a debate engine.
func NewEngine(provider llm.Provider, cfg model.DebateConfig, log *zap.Logger) *Engine {
	return &Engine{provider: provider, cfg: cfg, log: log}
}

// Output is the debate stage's contribution to the shared state.
type Output struct {
	Verdicts           []model.ClaimVerdict
	Warnings           []string
	StructuralWarnings int
	Placeholders       int // claims whose verdict had to be synthesized
	Aborted            bool
}

type wireVerdict struct {
	ClaimID          string                  `json:"claim_id"`
	TruthPercentage  float64                 `json:"truth_percentage"`
	Confidence       float64                 `json:"confidence"`
	Rating           string                  `json:"rating"`
	Reasoning        string                  `json:"reasoning"`
	CitedEvidenceIDs []string                `json:"cited_evidence_ids"`
	BoundaryFindings []model.BoundaryFinding `json:"boundary_findings"`
}

type verdictsResponse struct {
	Verdicts []wireVerdict `json:"verdicts"`
}

type challenge struct {
	ClaimID         string   `json:"claim_id"`
	TruthPercentage float64  `json:"truth_percentage"`
	Objections      []string `json:"objections"`
}

type challengeResponse struct {
	Challenges []challenge `json:"challenges"`
}

// GenerateVerdicts runs the five-step protocol. Reasoning-step call failures
// (advocate, challenge, reconcile) fail fast with the structured call error;
// the optional self-consistency step and the cheap validation step degrade
// to warnings. The abort check runs before every dispatch; a positive signal
// returns best-effort partial verdicts.
func (e *Engine) GenerateVerdicts(ctx context.Context, claims []model.AtomicClaim,
	evidence []model.EvidenceItem, boundaries []model.ClaimAssessmentBoundary,
	coverage *model.CoverageMatrix, aborted func() bool) (*Output, error) {

	out := &Output{}

	// Step 1: advocate.
	if aborted() {
		out.Aborted = true
		return out, nil
	}
	drafts, err := e.advocate(ctx, claims, evidence, boundaries, coverage, nil)
	if err != nil {
		return nil, err
	}
	drafts, _ = fillMissing(drafts, claims, &out.Warnings)
	e.log.Info("debate: advocate complete", zap.Int("verdicts", len(drafts)))

	// Steps 2 and 3 read the same step-1 output and run concurrently;
	// step 4 waits on both.
	if aborted() {
		out.Aborted = true
		out.Verdicts = toModel(drafts, nil, e.cfg)
		return out, nil
	}

	var (
		wg           sync.WaitGroup
		resamples    [][]wireVerdict
		consistErr   error
		challenges   []challenge
		challengeErr error
	)

	if e.cfg.SelfConsistency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resamples, consistErr = e.resample(ctx, claims, evidence, boundaries, coverage)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		challenges, challengeErr = e.challenge(ctx, claims, drafts, evidence)
	}()

	wg.Wait()

	if challengeErr != nil {
		return nil, challengeErr
	}
	// Self-consistency is skippable by configuration and degrades on failure.
	consistency := map[string]*model.ConsistencyResult{}
	if e.cfg.SelfConsistency {
		if consistErr != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("debate: self-consistency skipped: %v", consistErr))
		} else {
			consistency = e.spreads(drafts, resamples)
		}
	}

	// Step 4: reconciliation.
	if aborted() {
		out.Aborted = true
		out.Verdicts = toModel(drafts, consistency, e.cfg)
		return out, nil
	}
	reconciled, err := e.reconcile(ctx, claims, drafts, challenges, consistency)
	if err != nil {
		return nil, err
	}
	reconciled, out.Placeholders = fillMissing(reconciled, claims, &out.Warnings)

	verdicts := toModel(reconciled, consistency, e.cfg)

	// Step 5: two independent structural checks on the cheap tier.
	if aborted() {
		out.Aborted = true
		out.Verdicts = verdicts
		return out, nil
	}
	for _, key := range []string{prompt.KeyValidateGrounding, prompt.KeyValidateDirection} {
		issues, err := e.validate(ctx, key, verdicts, evidence)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("debate: %s check failed: %v", key, err))
			continue
		}
		for _, issue := range issues {
			for i := range verdicts {
				if verdicts[i].ClaimID != issue.ClaimID {
					continue
				}
				if applyCorrection(&verdicts[i], issue, e.cfg) {
					out.Warnings = append(out.Warnings, fmt.Sprintf(
						"debate: %s correction for %s (%s): now %.0f%%",
						key, issue.ClaimID, issue.Problem, verdicts[i].TruthPercentage))
				}
			}
		}
	}

	// Deterministic invariants, harm floor, tier classification.
	structural := structuralCheck(verdicts, evidence)
	out.StructuralWarnings = len(structural)
	out.Warnings = append(out.Warnings, structural...)

	applyHarmFloor(verdicts, claims, e.cfg)
	for i := range verdicts {
		verdicts[i].ConfidenceTier = classifyTier(verdicts[i].Confidence, e.cfg)
	}

	out.Verdicts = verdicts
	return out, nil
}

func (e *Engine) advocate(ctx context.Context, claims []model.AtomicClaim, evidence []model.EvidenceItem,
	boundaries []model.ClaimAssessmentBoundary, coverage *model.CoverageMatrix, temperature *float64) ([]wireVerdict, error) {

	resp, err := e.provider.Invoke(ctx, prompt.KeyDebateAdvocate, map[string]any{
		"claims":     claims,
		"evidence":   evidence,
		"boundaries": boundaries,
		"coverage":   coverage,
	}, llm.CallOptions{Stage: "debate", Tier: llm.TierStandard, Temperature: temperature})
	if err != nil {
		return nil, err
	}

	var parsed verdictsResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("decode advocate response: %w", err)
	}
	return parsed.Verdicts, nil
}

// resample runs the two elevated-temperature samples for the
// self-consistency check.
func (e *Engine) resample(ctx context.Context, claims []model.AtomicClaim, evidence []model.EvidenceItem,
	boundaries []model.ClaimAssessmentBoundary, coverage *model.CoverageMatrix) ([][]wireVerdict, error) {

	temp := e.cfg.ConsistencyTemperature
	samples := make([][]wireVerdict, 0, 2)
	for i := 0; i < 2; i++ {
		sample, err := e.advocate(ctx, claims, evidence, boundaries, coverage, &temp)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (e *Engine) challenge(ctx context.Context, claims []model.AtomicClaim, drafts []wireVerdict,
	evidence []model.EvidenceItem) ([]challenge, error) {

	resp, err := e.provider.Invoke(ctx, prompt.KeyDebateChallenge, map[string]any{
		"claims":   claims,
		"verdicts": drafts,
		"evidence": evidence,
	}, llm.CallOptions{Stage: "debate", Tier: llm.TierStandard})
	if err != nil {
		return nil, err
	}

	var parsed challengeResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("decode challenge response: %w", err)
	}
	return parsed.Challenges, nil
}

func (e *Engine) reconcile(ctx context.Context, claims []model.AtomicClaim, drafts []wireVerdict,
	challenges []challenge, consistency map[string]*model.ConsistencyResult) ([]wireVerdict, error) {

	vars := map[string]any{
		"claims":     claims,
		"verdicts":   drafts,
		"challenges": challenges,
	}
	if len(consistency) > 0 {
		spreads := make(map[string]float64, len(consistency))
		for id, c := range consistency {
			spreads[id] = c.Spread
		}
		vars["consistency"] = spreads
	}

	resp, err := e.provider.Invoke(ctx, prompt.KeyDebateReconcile, vars,
		llm.CallOptions{Stage: "debate", Tier: llm.TierStandard})
	if err != nil {
		return nil, err
	}

	var parsed verdictsResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("decode reconcile response: %w", err)
	}
	return parsed.Verdicts, nil
}

func (e *Engine) validate(ctx context.Context, key string, verdicts []model.ClaimVerdict,
	evidence []model.EvidenceItem) ([]validationIssue, error) {

	resp, err := e.provider.Invoke(ctx, key, map[string]any{
		"verdicts": verdicts,
		"evidence": evidence,
	}, llm.CallOptions{Stage: "debate", Tier: llm.TierCheap})
	if err != nil {
		return nil, err
	}

	var parsed validationResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("decode validation response: %w", err)
	}
	return parsed.Issues, nil
}

// spreads computes per-claim consistency results from the step-1 drafts and
// the two resamples.
func (e *Engine) spreads(drafts []wireVerdict, resamples [][]wireVerdict) map[string]*model.ConsistencyResult {
	byID := func(vs []wireVerdict, id string) (float64, bool) {
		for _, v := range vs {
			if v.ClaimID == id {
				return v.TruthPercentage, true
			}
		}
		return 0, false
	}

	out := make(map[string]*model.ConsistencyResult, len(drafts))
	for _, d := range drafts {
		var extra []float64
		for _, sample := range resamples {
			if pct, ok := byID(sample, d.ClaimID); ok {
				extra = append(extra, pct)
			}
		}
		if len(extra) < 2 {
			continue // a sample missed this claim; spread would be misleading
		}
		out[d.ClaimID] = consistencyFor(d.TruthPercentage, extra, e.cfg)
	}
	return out
}

// fillMissing synthesizes a neutral placeholder for any claim the batched
// response skipped, so downstream stages always see one verdict per claim.
func fillMissing(verdicts []wireVerdict, claims []model.AtomicClaim, warnings *[]string) ([]wireVerdict, int) {
	have := make(map[string]struct{}, len(verdicts))
	for _, v := range verdicts {
		have[v.ClaimID] = struct{}{}
	}
	added := 0
	for _, c := range claims {
		if _, ok := have[c.ID]; ok {
			continue
		}
		added++
		*warnings = append(*warnings, fmt.Sprintf("debate: response missing claim %s, using neutral placeholder", c.ID))
		verdicts = append(verdicts, wireVerdict{
			ClaimID:         c.ID,
			TruthPercentage: 50,
			Confidence:      20,
			Rating:          string(model.RatingUnverifiable),
			Reasoning:       "No verdict returned for this claim.",
		})
	}
	return verdicts, added
}

// toModel converts wire verdicts into model verdicts, attaching consistency
// results and applying their confidence multipliers.
func toModel(verdicts []wireVerdict, consistency map[string]*model.ConsistencyResult, cfg model.DebateConfig) []model.ClaimVerdict {
	out := make([]model.ClaimVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		mv := model.ClaimVerdict{
			ClaimID:          v.ClaimID,
			TruthPercentage:  clampPct(v.TruthPercentage),
			Confidence:       clampPct(v.Confidence),
			Rating:           normalizeRating(v.Rating, v.TruthPercentage),
			Reasoning:        v.Reasoning,
			CitedEvidenceIDs: v.CitedEvidenceIDs,
			BoundaryFindings: v.BoundaryFindings,
		}
		if c, ok := consistency[v.ClaimID]; ok {
			mv.Consistency = c
			mv.Confidence = clampPct(mv.Confidence * c.Multiplier)
		}
		out = append(out, mv)
	}
	return out
}

func normalizeRating(s string, truthPct float64) model.Rating {
	switch model.Rating(strings.ToLower(strings.TrimSpace(s))) {
	case model.RatingTrue, model.RatingMostlyTrue, model.RatingMixed,
		model.RatingMostlyFalse, model.RatingFalse, model.RatingUnverifiable:
		return model.Rating(strings.ToLower(strings.TrimSpace(s)))
	default:
		return model.RatingForTruth(truthPct)
	}
}
