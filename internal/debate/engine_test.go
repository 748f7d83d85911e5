package debate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/prompt"
)

// scriptedProvider returns canned JSON per prompt key and counts calls.
type scriptedProvider struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     map[string]int
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		responses: make(map[string]string),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Invoke(ctx context.Context, promptKey string, vars map[string]any, opts llm.CallOptions) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[promptKey]++
	if err, ok := p.failures[promptKey]; ok {
		return nil, err
	}
	body, ok := p.responses[promptKey]
	if !ok {
		body = "{}"
	}
	return &llm.Response{Data: json.RawMessage(body), Model: "scripted", TokensUsed: 100}, nil
}

func (p *scriptedProvider) callCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[key]
}

func never() bool { return false }

func debateFixture() ([]model.AtomicClaim, []model.EvidenceItem, []model.ClaimAssessmentBoundary, *model.CoverageMatrix) {
	claims := []model.AtomicClaim{{ID: "c-1", Statement: "X reduces Y", Centrality: model.LevelHigh, HarmPotential: model.LevelLow}}
	evidence := []model.EvidenceItem{
		{ID: "ev-1", ClaimDirection: model.DirectionSupports, RelevantClaimIDs: []string{"c-1"}, BoundaryID: "b-1"},
	}
	boundaries := []model.ClaimAssessmentBoundary{{ID: "b-1", Name: "General"}}
	coverage := &model.CoverageMatrix{
		ClaimIDs:    []string{"c-1"},
		BoundaryIDs: []string{"b-1"},
		Cells:       [][]model.CoverageCell{{{Supporting: 1, Total: 1}}},
	}
	return claims, evidence, boundaries, coverage
}

const advocateJSON = `{"verdicts":[{"claim_id":"c-1","truth_percentage":80,"confidence":75,
"rating":"mostly-true","reasoning":"supported","cited_evidence_ids":["ev-1"]}]}`

func TestGenerateVerdictsFullProtocol(t *testing.T) {
	provider := newScriptedProvider()
	provider.responses[prompt.KeyDebateAdvocate] = advocateJSON
	provider.responses[prompt.KeyDebateChallenge] = `{"challenges":[{"claim_id":"c-1","truth_percentage":60,"objections":["weak sample"]}]}`
	provider.responses[prompt.KeyDebateReconcile] = `{"verdicts":[{"claim_id":"c-1","truth_percentage":72,"confidence":70,
"rating":"mostly-true","reasoning":"objection partially holds","cited_evidence_ids":["ev-1"]}]}`
	provider.responses[prompt.KeyValidateGrounding] = `{"issues":[]}`
	provider.responses[prompt.KeyValidateDirection] = `{"issues":[]}`

	engine := NewEngine(provider, testDebateConfig(), zap.NewNop())
	claims, evidence, boundaries, coverage := debateFixture()

	out, err := engine.GenerateVerdicts(context.Background(), claims, evidence, boundaries, coverage, never)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Verdicts) != 1 {
		t.Fatalf("expected 1 verdict, got %d", len(out.Verdicts))
	}

	v := out.Verdicts[0]
	if v.TruthPercentage != 72 {
		t.Errorf("reconciled truth = %v, want 72", v.TruthPercentage)
	}
	if v.Consistency == nil {
		t.Error("self-consistency result should be attached")
	}
	if v.ConfidenceTier == "" {
		t.Error("confidence tier should be classified")
	}

	// Advocate runs once for step 1 and twice for the resamples.
	if n := provider.callCount(prompt.KeyDebateAdvocate); n != 3 {
		t.Errorf("expected 3 advocate calls, got %d", n)
	}
	if n := provider.callCount(prompt.KeyDebateReconcile); n != 1 {
		t.Errorf("expected 1 reconcile call, got %d", n)
	}
	if n := provider.callCount(prompt.KeyValidateGrounding); n != 1 {
		t.Errorf("expected 1 grounding check, got %d", n)
	}
}

func TestGenerateVerdictsSelfConsistencyOff(t *testing.T) {
	provider := newScriptedProvider()
	provider.responses[prompt.KeyDebateAdvocate] = advocateJSON
	provider.responses[prompt.KeyDebateChallenge] = `{"challenges":[]}`
	provider.responses[prompt.KeyDebateReconcile] = advocateJSON
	provider.responses[prompt.KeyValidateGrounding] = `{"issues":[]}`
	provider.responses[prompt.KeyValidateDirection] = `{"issues":[]}`

	cfg := testDebateConfig()
	cfg.SelfConsistency = false
	engine := NewEngine(provider, cfg, zap.NewNop())
	claims, evidence, boundaries, coverage := debateFixture()

	out, err := engine.GenerateVerdicts(context.Background(), claims, evidence, boundaries, coverage, never)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := provider.callCount(prompt.KeyDebateAdvocate); n != 1 {
		t.Errorf("expected 1 advocate call with self-consistency off, got %d", n)
	}
	if out.Verdicts[0].Consistency != nil {
		t.Error("no consistency result expected when the step is skipped")
	}
}

func TestGenerateVerdictsChallengeFailureIsFatal(t *testing.T) {
	provider := newScriptedProvider()
	provider.responses[prompt.KeyDebateAdvocate] = advocateJSON
	provider.failures[prompt.KeyDebateChallenge] = errors.New("provider down")

	cfg := testDebateConfig()
	cfg.SelfConsistency = false
	engine := NewEngine(provider, cfg, zap.NewNop())
	claims, evidence, boundaries, coverage := debateFixture()

	if _, err := engine.GenerateVerdicts(context.Background(), claims, evidence, boundaries, coverage, never); err == nil {
		t.Fatal("challenge failure must fail the debate")
	}
}

func TestGenerateVerdictsValidationFailureDegrades(t *testing.T) {
	provider := newScriptedProvider()
	provider.responses[prompt.KeyDebateAdvocate] = advocateJSON
	provider.responses[prompt.KeyDebateChallenge] = `{"challenges":[]}`
	provider.responses[prompt.KeyDebateReconcile] = advocateJSON
	provider.failures[prompt.KeyValidateGrounding] = errors.New("provider down")
	provider.responses[prompt.KeyValidateDirection] = `{"issues":[]}`

	cfg := testDebateConfig()
	cfg.SelfConsistency = false
	engine := NewEngine(provider, cfg, zap.NewNop())
	claims, evidence, boundaries, coverage := debateFixture()

	out, err := engine.GenerateVerdicts(context.Background(), claims, evidence, boundaries, coverage, never)
	if err != nil {
		t.Fatalf("validation failure must degrade, not fail: %v", err)
	}
	if len(out.Warnings) == 0 {
		t.Error("expected a warning for the failed validation call")
	}
	if len(out.Verdicts) != 1 {
		t.Errorf("verdicts should survive a failed validation: got %d", len(out.Verdicts))
	}
}

func TestGenerateVerdictsValidationCorrectionApplies(t *testing.T) {
	provider := newScriptedProvider()
	provider.responses[prompt.KeyDebateAdvocate] = advocateJSON
	provider.responses[prompt.KeyDebateChallenge] = `{"challenges":[]}`
	provider.responses[prompt.KeyDebateReconcile] = `{"verdicts":[{"claim_id":"c-1","truth_percentage":90,"confidence":80,
"rating":"true","cited_evidence_ids":["ev-1"]}]}`
	provider.responses[prompt.KeyValidateGrounding] = `{"issues":[{"claim_id":"c-1","problem":"insufficient citations","correction":"downgrade","suggested_pct":null}]}`
	provider.responses[prompt.KeyValidateDirection] = `{"issues":[]}`

	cfg := testDebateConfig()
	cfg.SelfConsistency = false
	engine := NewEngine(provider, cfg, zap.NewNop())
	claims, evidence, boundaries, coverage := debateFixture()

	out, err := engine.GenerateVerdicts(context.Background(), claims, evidence, boundaries, coverage, never)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Verdicts[0].TruthPercentage; got != cfg.DowngradeBandHigh {
		t.Errorf("downgrade without suggestion should cap at %v, got %v", cfg.DowngradeBandHigh, got)
	}
}

func TestGenerateVerdictsAbortReturnsPartial(t *testing.T) {
	provider := newScriptedProvider()
	provider.responses[prompt.KeyDebateAdvocate] = advocateJSON

	cfg := testDebateConfig()
	cfg.SelfConsistency = false
	engine := NewEngine(provider, cfg, zap.NewNop())
	claims, evidence, boundaries, coverage := debateFixture()

	// Abort after the first dispatch.
	n := 0
	abortAfterFirst := func() bool {
		n++
		return n > 1
	}

	out, err := engine.GenerateVerdicts(context.Background(), claims, evidence, boundaries, coverage, abortAfterFirst)
	if err != nil {
		t.Fatalf("abort must not error: %v", err)
	}
	if !out.Aborted {
		t.Error("output should report the abort")
	}
	if len(out.Verdicts) != 1 {
		t.Errorf("best-effort partial verdicts expected, got %d", len(out.Verdicts))
	}
	if provider.callCount(prompt.KeyDebateChallenge) != 0 {
		t.Error("no dispatch should follow the abort signal")
	}
}
