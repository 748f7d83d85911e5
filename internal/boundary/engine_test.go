package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
)

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

func scope(methodology, temporal string) *model.EvidenceScope {
	return &model.EvidenceScope{Methodology: methodology, Temporal: temporal}
}

func testCfg() model.BoundaryConfig {
	return model.DefaultConfig().Boundary
}

func TestDedupScopes(t *testing.T) {
	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("rct", "2020")}, // case-insensitive duplicate
		{ID: "ev-3", Scope: scope("survey", "2021")},
		{ID: "ev-4"}, // scopeless
	}

	unique, byKey := dedupScopes(evidence)
	if len(unique) != 2 {
		t.Fatalf("expected 2 unique scopes, got %d", len(unique))
	}
	if unique[0].ID != "scope-1" || unique[1].ID != "scope-2" {
		t.Errorf("scope ids should be stable: %s, %s", unique[0].ID, unique[1].ID)
	}
	if byKey[scopeKey(*evidence[1].Scope)] != "scope-1" {
		t.Error("case variants must map to the same scope id")
	}
}

func TestClusterBoundariesHappyPath(t *testing.T) {
	provider := &cannedProvider{body: `{"boundaries":[
		{"name":"Clinical trials","internal_coherence":0.9,"evidence_scope_ids":["scope-1"]},
		{"name":"Surveys","internal_coherence":0.7,"evidence_scope_ids":["scope-2"]}]}`}
	engine := NewEngine(provider, testCfg(), zap.NewNop())

	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("survey", "2021")},
	}

	out := engine.ClusterBoundaries(context.Background(), evidence)
	if out.Fallback {
		t.Error("happy path must not take the fallback")
	}
	if len(out.Boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d", len(out.Boundaries))
	}
	if evidence[0].BoundaryID != "b-1" || evidence[1].BoundaryID != "b-2" {
		t.Errorf("evidence should follow its scope's boundary: %s, %s",
			evidence[0].BoundaryID, evidence[1].BoundaryID)
	}
}

func TestClusterBoundariesFallbackOnFailure(t *testing.T) {
	provider := &cannedProvider{err: errors.New("provider down")}
	engine := NewEngine(provider, testCfg(), zap.NewNop())

	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("survey", "2021")},
	}

	out := engine.ClusterBoundaries(context.Background(), evidence)
	if !out.Fallback {
		t.Error("clustering failure must take the fallback path")
	}
	if len(out.Boundaries) != 1 || out.Boundaries[0].Name != fallbackName {
		t.Fatalf("expected one %q boundary, got %+v", fallbackName, out.Boundaries)
	}
	for _, ev := range evidence {
		if ev.BoundaryID != out.Boundaries[0].ID {
			t.Errorf("all evidence must land in the fallback, got %q", ev.BoundaryID)
		}
	}
	if len(out.Warnings) == 0 {
		t.Error("fallback should be recorded as a warning")
	}
}

func TestClusterBoundariesOrphanCompleteness(t *testing.T) {
	// The response leaves scope-2 unassigned.
	provider := &cannedProvider{body: `{"boundaries":[
		{"name":"Clinical trials","internal_coherence":0.9,"evidence_scope_ids":["scope-1"]}]}`}
	engine := NewEngine(provider, testCfg(), zap.NewNop())

	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("survey", "2021")},
	}

	out := engine.ClusterBoundaries(context.Background(), evidence)
	if len(out.Boundaries) != 2 {
		t.Fatalf("expected the orphan scope to get a fallback boundary, got %d boundaries", len(out.Boundaries))
	}
	last := out.Boundaries[len(out.Boundaries)-1]
	if last.Name != fallbackName || !last.HasScope("scope-2") {
		t.Errorf("fallback boundary should own the orphan scope: %+v", last)
	}
	if evidence[1].BoundaryID != last.ID {
		t.Errorf("orphan evidence should land in the fallback: %q", evidence[1].BoundaryID)
	}
}

func TestClusterBoundariesDropsUnknownAndDoubleClaimed(t *testing.T) {
	provider := &cannedProvider{body: `{"boundaries":[
		{"name":"A","internal_coherence":0.8,"evidence_scope_ids":["scope-1","scope-99"]},
		{"name":"B","internal_coherence":0.6,"evidence_scope_ids":["scope-1","scope-2"]}]}`}
	engine := NewEngine(provider, testCfg(), zap.NewNop())

	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("survey", "2021")},
	}

	out := engine.ClusterBoundaries(context.Background(), evidence)
	if len(out.Boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d", len(out.Boundaries))
	}
	// scope-1 stays with the first boundary that claimed it.
	if !out.Boundaries[0].HasScope("scope-1") || out.Boundaries[1].HasScope("scope-1") {
		t.Error("double-claimed scope must stay with its first owner")
	}
	if out.Boundaries[0].HasScope("scope-99") {
		t.Error("unknown scope ids must be dropped")
	}
}

func TestClusterBoundariesCapMerge(t *testing.T) {
	cfg := testCfg()
	cfg.MaxBoundaries = 2
	provider := &cannedProvider{body: `{"boundaries":[
		{"name":"A","internal_coherence":0.9,"evidence_scope_ids":["scope-1","scope-2"]},
		{"name":"B","internal_coherence":0.5,"evidence_scope_ids":["scope-2","scope-3"]},
		{"name":"C","internal_coherence":0.7,"evidence_scope_ids":["scope-4"]}]}`}

	// Note scope-2 is double-claimed and stays with A, so A={1,2}, B={3},
	// C={4}. The merge then pairs by Jaccard over the de-duplicated sets.
	engine := NewEngine(provider, cfg, zap.NewNop())

	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("survey", "2021")},
		{ID: "ev-3", Scope: scope("meta-analysis", "2022")},
		{ID: "ev-4", Scope: scope("case study", "2019")},
	}

	out := engine.ClusterBoundaries(context.Background(), evidence)
	if len(out.Boundaries) != 2 {
		t.Fatalf("cap of 2 must hold, got %d boundaries", len(out.Boundaries))
	}
	for _, ev := range evidence {
		if ev.BoundaryID == "" {
			t.Errorf("evidence %s left unassigned after merge", ev.ID)
		}
	}
}

func TestClusterBoundariesClampsCoherence(t *testing.T) {
	provider := &cannedProvider{body: `{"boundaries":[
		{"name":"A","internal_coherence":1.7,"evidence_scope_ids":["scope-1"]},
		{"name":"B","internal_coherence":-0.3,"evidence_scope_ids":["scope-2"]}]}`}
	engine := NewEngine(provider, testCfg(), zap.NewNop())

	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("survey", "2021")},
	}

	out := engine.ClusterBoundaries(context.Background(), evidence)
	if len(out.Boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d", len(out.Boundaries))
	}
	if got := out.Boundaries[0].InternalCoherence; got != 1.0 {
		t.Errorf("coherence above 1 must clamp to 1, got %v", got)
	}
	if got := out.Boundaries[1].InternalCoherence; got != 0.0 {
		t.Errorf("coherence below 0 must clamp to 0, got %v", got)
	}
}

func TestClusterBoundariesScopelessUnderCap(t *testing.T) {
	cfg := testCfg()
	cfg.MaxBoundaries = 2
	provider := &cannedProvider{body: `{"boundaries":[
		{"name":"A","internal_coherence":0.8,"evidence_scope_ids":["scope-1"]},
		{"name":"B","internal_coherence":0.8,"evidence_scope_ids":["scope-2"]},
		{"name":"C","internal_coherence":0.8,"evidence_scope_ids":["scope-3"]}]}`}
	engine := NewEngine(provider, cfg, zap.NewNop())

	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020")},
		{ID: "ev-2", Scope: scope("survey", "2021")},
		{ID: "ev-3", Scope: scope("meta-analysis", "2022")},
		{ID: "ev-4"}, // scopeless
	}

	out := engine.ClusterBoundaries(context.Background(), evidence)
	if len(out.Boundaries) > 2 {
		t.Fatalf("cap of 2 must hold with scopeless evidence, got %d boundaries", len(out.Boundaries))
	}

	seen := make(map[string]bool)
	valid := make(map[string]bool)
	for _, b := range out.Boundaries {
		if seen[b.ID] {
			t.Errorf("duplicate boundary id %s", b.ID)
		}
		seen[b.ID] = true
		valid[b.ID] = true
	}
	for _, ev := range evidence {
		if ev.BoundaryID == "" {
			t.Errorf("evidence %s left unassigned", ev.ID)
		} else if !valid[ev.BoundaryID] {
			t.Errorf("evidence %s assigned to nonexistent boundary %s", ev.ID, ev.BoundaryID)
		}
	}
	// The scopeless item lands in the synthesized boundary, not in one of
	// the merged scoped boundaries.
	if evidence[3].BoundaryID == evidence[0].BoundaryID {
		t.Errorf("scopeless evidence shares boundary %s with scoped evidence", evidence[3].BoundaryID)
	}
}

func TestMergeMostSimilarCoherenceMean(t *testing.T) {
	boundaries := []model.ClaimAssessmentBoundary{
		{ID: "b-1", Name: "A", InternalCoherence: 0.9, EvidenceScopeIDs: []string{"scope-1", "scope-2"}},
		{ID: "b-2", Name: "B", InternalCoherence: 0.5, EvidenceScopeIDs: []string{"scope-2", "scope-3"}},
		{ID: "b-3", Name: "C", InternalCoherence: 0.7, EvidenceScopeIDs: []string{"scope-9"}},
	}

	merged := mergeMostSimilar(boundaries)
	if len(merged) != 2 {
		t.Fatalf("expected 2 boundaries after merge, got %d", len(merged))
	}
	// b-1 and b-2 share scope-2 and merge; coherence is the arithmetic mean.
	if merged[0].InternalCoherence != 0.7 {
		t.Errorf("merged coherence = %v, want 0.7", merged[0].InternalCoherence)
	}
	for _, sid := range []string{"scope-1", "scope-2", "scope-3"} {
		if !merged[0].HasScope(sid) {
			t.Errorf("merged boundary missing %s", sid)
		}
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{nil, nil, 0},
		{[]string{"x"}, nil, 0},
		{[]string{"x"}, []string{"x"}, 1},
		{[]string{"x", "y"}, []string{"y", "z"}, 1.0 / 3.0},
	}
	for _, tt := range tests {
		if got := jaccard(tt.a, tt.b); got != tt.want {
			t.Errorf("jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAssignEvidenceHappensOnce(t *testing.T) {
	evidence := []model.EvidenceItem{
		{ID: "ev-1", Scope: scope("RCT", "2020"), BoundaryID: "b-9"}, // already assigned
		{ID: "ev-2", Scope: scope("RCT", "2020")},
	}
	scopes := []model.UniqueScope{{ID: "scope-1", Scope: *scope("RCT", "2020")}}
	boundaries := []model.ClaimAssessmentBoundary{
		{ID: "b-1", Name: "A", EvidenceScopeIDs: []string{"scope-1"}},
	}

	assignEvidence(evidence, boundaries, scopes)
	if evidence[0].BoundaryID != "b-9" {
		t.Errorf("existing assignment must not change, got %q", evidence[0].BoundaryID)
	}
	if evidence[1].BoundaryID != "b-1" {
		t.Errorf("unassigned item should get its scope's owner, got %q", evidence[1].BoundaryID)
	}
}
