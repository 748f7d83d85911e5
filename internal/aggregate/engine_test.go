package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
)

// cannedProvider returns a single canned body, or fails every call.
type cannedProvider struct {
	body string
	err  error
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) Invoke(ctx context.Context, promptKey string, vars map[string]any, opts llm.CallOptions) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Data: json.RawMessage(p.body), Model: "canned", TokensUsed: 50}, nil
}

func never() bool { return false }

func aggFixture() ([]model.AtomicClaim, []model.ClaimVerdict, []model.EvidenceItem, []model.ClaimAssessmentBoundary, *model.CoverageMatrix) {
	claims := []model.AtomicClaim{
		{ID: "c-1", Centrality: model.LevelHigh, HarmPotential: model.LevelMedium},
		{ID: "c-2", Centrality: model.LevelLow, HarmPotential: model.LevelLow},
	}
	verdicts := []model.ClaimVerdict{
		{ClaimID: "c-1", TruthPercentage: 90, Confidence: 80, Rating: model.RatingTrue, ConfidenceTier: model.LevelHigh},
		{ClaimID: "c-2", TruthPercentage: 30, Confidence: 40, Rating: model.RatingMostlyFalse, ConfidenceTier: model.LevelMedium},
	}
	evidence := []model.EvidenceItem{
		{ID: "ev-1", ClaimDirection: model.DirectionSupports, RelevantClaimIDs: []string{"c-1"}, BoundaryID: "b-1"},
		{ID: "ev-2", ClaimDirection: model.DirectionSupports, RelevantClaimIDs: []string{"c-1"}, BoundaryID: "b-2"},
		{ID: "ev-3", ClaimDirection: model.DirectionContradicts, RelevantClaimIDs: []string{"c-2"}, BoundaryID: "b-1"},
	}
	boundaries := []model.ClaimAssessmentBoundary{{ID: "b-1", Name: "General"}, {ID: "b-2", Name: "Trials"}}
	coverage := &model.CoverageMatrix{
		ClaimIDs:    []string{"c-1", "c-2"},
		BoundaryIDs: []string{"b-1", "b-2"},
		Cells: [][]model.CoverageCell{
			{cell(1, 0, 0), cell(1, 0, 0)},
			{cell(0, 1, 0), cell(0, 0, 0)},
		},
	}
	return claims, verdicts, evidence, boundaries, coverage
}

const narrativeJSON = `{"summary":"Mostly supported.","key_evidence":["ev-1"],"limitations":["few sources"],"methodology":"weighted triangulation"}`

func TestAggregateWeightedAverage(t *testing.T) {
	provider := &cannedProvider{body: narrativeJSON}
	engine := NewEngine(provider, testAggConfig(), zap.NewNop())
	claims, verdicts, evidence, boundaries, coverage := aggFixture()

	out, err := engine.Aggregate(context.Background(), claims, verdicts, evidence, boundaries, coverage, never)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Recompute the averages with the weights the engine assigned: truth and
	// confidence must use identical weights.
	var weightSum, truthSum, confSum float64
	for _, v := range out.Verdicts {
		if v.FinalWeight <= 0 {
			t.Fatalf("verdict %s has non-positive weight %v", v.ClaimID, v.FinalWeight)
		}
		weightSum += v.FinalWeight
		truthSum += v.FinalWeight * v.TruthPercentage
		confSum += v.FinalWeight * v.Confidence
	}
	if math.Abs(out.TruthPercentage-truthSum/weightSum) > 1e-9 {
		t.Errorf("truth %.4f does not match weighted average %.4f", out.TruthPercentage, truthSum/weightSum)
	}
	if math.Abs(out.Confidence-confSum/weightSum) > 1e-9 {
		t.Errorf("confidence %.4f does not match weighted average %.4f", out.Confidence, confSum/weightSum)
	}

	// The heavier claim (high centrality, moderate triangulation) pulls the
	// overall truth above the plain mean of 60.
	if out.TruthPercentage <= 60 {
		t.Errorf("expected weighting to pull truth above 60, got %.1f", out.TruthPercentage)
	}
	if out.Narrative == nil || out.Narrative.Summary == "" {
		t.Error("narrative should be attached")
	}
}

func TestAggregateAnnotatesTriangulation(t *testing.T) {
	provider := &cannedProvider{body: narrativeJSON}
	cfg := testAggConfig()
	engine := NewEngine(provider, cfg, zap.NewNop())
	claims, verdicts, evidence, boundaries, coverage := aggFixture()

	out, err := engine.Aggregate(context.Background(), claims, verdicts, evidence, boundaries, coverage, never)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := make(map[string]model.ClaimVerdict)
	for _, v := range out.Verdicts {
		byID[v.ClaimID] = v
	}

	// c-1 has two agreeing boundaries, c-2 a single populated one.
	if byID["c-1"].Triangulation != model.TriangulationModerate {
		t.Errorf("c-1 triangulation = %s, want moderate", byID["c-1"].Triangulation)
	}
	if byID["c-2"].Triangulation != model.TriangulationWeak {
		t.Errorf("c-2 triangulation = %s, want weak", byID["c-2"].Triangulation)
	}
	if byID["c-2"].TriangulationFactor != cfg.TriangulationWeak {
		t.Errorf("c-2 factor = %v, want %v", byID["c-2"].TriangulationFactor, cfg.TriangulationWeak)
	}
}

func TestAggregateSingleVerdict(t *testing.T) {
	provider := &cannedProvider{body: narrativeJSON}
	engine := NewEngine(provider, testAggConfig(), zap.NewNop())

	claims := []model.AtomicClaim{{ID: "c-1", Centrality: model.LevelMedium, HarmPotential: model.LevelLow}}
	verdicts := []model.ClaimVerdict{{ClaimID: "c-1", TruthPercentage: 75, Confidence: 65}}
	coverage := &model.CoverageMatrix{ClaimIDs: []string{"c-1"}, BoundaryIDs: []string{"b-1"},
		Cells: [][]model.CoverageCell{{cell(2, 0, 0)}}}

	out, err := engine.Aggregate(context.Background(), claims, verdicts, nil, nil, coverage, never)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// With one verdict the weight cancels out.
	if out.TruthPercentage != 75 || out.Confidence != 65 {
		t.Errorf("single verdict should pass through: truth=%v conf=%v", out.TruthPercentage, out.Confidence)
	}
	if out.Verdict != model.RatingMostlyTrue {
		t.Errorf("expected mostly-true for 75%%, got %s", out.Verdict)
	}
}

func TestAggregateNarrativeFailureDegrades(t *testing.T) {
	provider := &cannedProvider{err: errors.New("provider down")}
	engine := NewEngine(provider, testAggConfig(), zap.NewNop())
	claims, verdicts, evidence, boundaries, coverage := aggFixture()

	out, err := engine.Aggregate(context.Background(), claims, verdicts, evidence, boundaries, coverage, never)
	if err != nil {
		t.Fatalf("narrative failure must degrade, not fail: %v", err)
	}
	if out.Narrative != nil {
		t.Error("no narrative expected after provider failure")
	}
	if len(out.Warnings) == 0 {
		t.Error("expected a warning for the missing narrative")
	}
	if out.TruthPercentage == 0 {
		t.Error("numeric assessment should still be computed")
	}
}

func TestAggregateAbortSkipsNarrative(t *testing.T) {
	provider := &cannedProvider{body: narrativeJSON}
	engine := NewEngine(provider, testAggConfig(), zap.NewNop())
	claims, verdicts, evidence, boundaries, coverage := aggFixture()

	out, err := engine.Aggregate(context.Background(), claims, verdicts, evidence, boundaries, coverage, func() bool { return true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Narrative != nil {
		t.Error("aborted run must skip the narrative call")
	}
	if out.TruthPercentage == 0 {
		t.Error("aborted run still produces the numeric assessment")
	}
}
