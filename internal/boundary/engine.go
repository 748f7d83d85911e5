// Package boundary implements evidence-boundary clustering: structural scope
// deduplication, one batched clustering call, deterministic coherence,
// completeness and cap enforcement, and evidence assignment.
package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/prompt"
)

const fallbackName = "General"

// Engine clusters evidence scopes into assessment boundaries.
type Engine struct {
	provider llm.Provider
	cfg      model.BoundaryConfig
	log      *zap.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(provider llm.Provider, cfg model.BoundaryConfig, log *zap.Logger) *Engine {
	return &Engine{provider: provider, cfg: cfg, log: log}
}

// Output is the clustering stage's contribution to the shared state.
type Output struct {
	Boundaries   []model.ClaimAssessmentBoundary
	UniqueScopes []model.UniqueScope
	Warnings     []string
	Fallback     bool // the single-boundary fallback path was taken
}

type clusterResponse struct {
	Boundaries []struct {
		Name              string   `json:"name"`
		Description       string   `json:"description"`
		ScopeSummary      string   `json:"scope_summary"`
		InternalCoherence float64  `json:"internal_coherence"`
		EvidenceScopeIDs  []string `json:"evidence_scope_ids"`
	} `json:"boundaries"`
}

// ClusterBoundaries groups the evidence pool's scopes into boundaries and
// sets every item's BoundaryID. Clustering never leaves evidence unassigned:
// total failure degrades to a single synthesized boundary.
func (e *Engine) ClusterBoundaries(ctx context.Context, evidence []model.EvidenceItem) *Output {
	out := &Output{}
	out.UniqueScopes, _ = dedupScopes(evidence)

	if len(out.UniqueScopes) == 0 {
		// Nothing to cluster; every item lands in the fallback boundary.
		out.Fallback = true
		out.Boundaries = []model.ClaimAssessmentBoundary{synthesizeFallback("b-1", nil)}
		out.Boundaries = assignEvidence(evidence, out.Boundaries, out.UniqueScopes)
		return out
	}

	candidates, err := e.requestClusters(ctx, out.UniqueScopes)
	if err != nil || len(candidates) == 0 {
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("boundary: clustering call failed: %v", err))
		} else {
			out.Warnings = append(out.Warnings, "boundary: clustering returned zero boundaries")
		}
		out.Fallback = true
		all := make([]string, len(out.UniqueScopes))
		for i, s := range out.UniqueScopes {
			all[i] = s.ID
		}
		out.Boundaries = []model.ClaimAssessmentBoundary{synthesizeFallback("b-1", all)}
		out.Boundaries = assignEvidence(evidence, out.Boundaries, out.UniqueScopes)
		return out
	}

	out.Boundaries = candidates

	// Coherence check: warn, don't reject.
	for _, b := range out.Boundaries {
		if b.InternalCoherence < e.cfg.CoherenceMinimum {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"boundary: %s (%s) coherence %.2f below minimum %.2f",
				b.ID, b.Name, b.InternalCoherence, e.cfg.CoherenceMinimum))
		}
	}

	// Completeness: orphan scopes join a synthesized fallback boundary.
	if orphans := orphanScopes(out.UniqueScopes, out.Boundaries); len(orphans) > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"boundary: %d scope(s) unassigned by clustering, moved to fallback", len(orphans)))
		out.Boundaries = append(out.Boundaries,
			synthesizeFallback(nextBoundaryID(out.Boundaries), orphans))
	}

	// Scopeless evidence needs a home before cap enforcement so the final
	// boundary count and ids are settled here, not at assignment time.
	if hasScopelessEvidence(evidence) && !hasFallback(out.Boundaries) {
		out.Boundaries = append(out.Boundaries,
			synthesizeFallback(nextBoundaryID(out.Boundaries), nil))
	}

	// Cap enforcement: merge the most similar pair until under the cap.
	for len(out.Boundaries) > e.cfg.MaxBoundaries {
		out.Boundaries = mergeMostSimilar(out.Boundaries)
	}

	out.Boundaries = assignEvidence(evidence, out.Boundaries, out.UniqueScopes)
	e.log.Info("boundary clustering complete",
		zap.Int("unique_scopes", len(out.UniqueScopes)),
		zap.Int("boundaries", len(out.Boundaries)))
	return out
}

func (e *Engine) requestClusters(ctx context.Context, scopes []model.UniqueScope) ([]model.ClaimAssessmentBoundary, error) {
	resp, err := e.provider.Invoke(ctx, prompt.KeyBoundaryCluster,
		map[string]any{"scopes": scopes},
		llm.CallOptions{Stage: "boundary", Tier: llm.TierStandard})
	if err != nil {
		return nil, err
	}

	var parsed clusterResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, fmt.Errorf("decode clustering response: %w", err)
	}

	known := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		known[s.ID] = struct{}{}
	}

	var boundaries []model.ClaimAssessmentBoundary
	claimed := make(map[string]struct{})
	for i, c := range parsed.Boundaries {
		b := model.ClaimAssessmentBoundary{
			ID:                fmt.Sprintf("b-%d", i+1),
			Name:              strings.TrimSpace(c.Name),
			Description:       c.Description,
			ScopeSummary:      c.ScopeSummary,
			InternalCoherence: clamp01(c.InternalCoherence),
		}
		if b.Name == "" {
			b.Name = fmt.Sprintf("Boundary %d", i+1)
		}
		// Unknown scope ids are dropped; a scope claimed twice stays with
		// the first boundary that claimed it, preserving exactly-one
		// ownership.
		for _, sid := range c.EvidenceScopeIDs {
			if _, ok := known[sid]; !ok {
				continue
			}
			if _, taken := claimed[sid]; taken {
				continue
			}
			claimed[sid] = struct{}{}
			b.EvidenceScopeIDs = append(b.EvidenceScopeIDs, sid)
		}
		boundaries = append(boundaries, b)
	}

	// Boundaries that ended up owning nothing add noise downstream.
	kept := boundaries[:0]
	for _, b := range boundaries {
		if len(b.EvidenceScopeIDs) > 0 {
			kept = append(kept, b)
		}
	}
	return kept, nil
}

// dedupScopes collapses structurally equal scopes into a stable-id list and
// returns the key→id lookup used at assignment time.
func dedupScopes(evidence []model.EvidenceItem) ([]model.UniqueScope, map[string]string) {
	var unique []model.UniqueScope
	byKey := make(map[string]string)
	for i := range evidence {
		if evidence[i].Scope == nil {
			continue
		}
		key := scopeKey(*evidence[i].Scope)
		if _, seen := byKey[key]; seen {
			continue
		}
		id := fmt.Sprintf("scope-%d", len(unique)+1)
		byKey[key] = id
		unique = append(unique, model.UniqueScope{ID: id, Scope: *evidence[i].Scope})
	}
	return unique, byKey
}

func scopeKey(s model.EvidenceScope) string {
	return strings.ToLower(s.Methodology) + "\x00" +
		strings.ToLower(s.Temporal) + "\x00" +
		strings.ToLower(s.Geographic) + "\x00" +
		strings.ToLower(s.SourceType)
}

func orphanScopes(scopes []model.UniqueScope, boundaries []model.ClaimAssessmentBoundary) []string {
	var orphans []string
	for _, s := range scopes {
		owned := false
		for i := range boundaries {
			if boundaries[i].HasScope(s.ID) {
				owned = true
				break
			}
		}
		if !owned {
			orphans = append(orphans, s.ID)
		}
	}
	return orphans
}

func synthesizeFallback(id string, scopeIDs []string) model.ClaimAssessmentBoundary {
	return model.ClaimAssessmentBoundary{
		ID:                id,
		Name:              fallbackName,
		Description:       "Synthesized boundary for scopes not covered by clustering",
		InternalCoherence: 0.5,
		EvidenceScopeIDs:  scopeIDs,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func hasFallback(boundaries []model.ClaimAssessmentBoundary) bool {
	for i := range boundaries {
		if boundaries[i].Name == fallbackName {
			return true
		}
	}
	return false
}

func hasScopelessEvidence(evidence []model.EvidenceItem) bool {
	for i := range evidence {
		if evidence[i].Scope == nil && evidence[i].BoundaryID == "" {
			return true
		}
	}
	return false
}

// nextBoundaryID returns a "b-N" id no existing boundary uses. Merges leave
// gaps in the sequence, so the length of the slice is not a safe source.
func nextBoundaryID(boundaries []model.ClaimAssessmentBoundary) string {
	highest := 0
	for i := range boundaries {
		var n int
		if _, err := fmt.Sscanf(boundaries[i].ID, "b-%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("b-%d", highest+1)
}

// jaccard computes set similarity over scope-id sets. It operates on opaque
// identifiers only, never on text content.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	intersection := 0
	union := len(set)
	for _, s := range b {
		if _, ok := set[s]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// mergeMostSimilar merges the pair with the highest Jaccard similarity,
// ties resolved by iteration order. Merged coherence is the arithmetic mean
// of the two inputs.
func mergeMostSimilar(boundaries []model.ClaimAssessmentBoundary) []model.ClaimAssessmentBoundary {
	bi, bj, best := 0, 1, -1.0
	for i := 0; i < len(boundaries); i++ {
		for j := i + 1; j < len(boundaries); j++ {
			if sim := jaccard(boundaries[i].EvidenceScopeIDs, boundaries[j].EvidenceScopeIDs); sim > best {
				bi, bj, best = i, j, sim
			}
		}
	}

	absorbed := boundaries[bj]
	merged := &boundaries[bi]
	merged.InternalCoherence = (merged.InternalCoherence + absorbed.InternalCoherence) / 2
	for _, sid := range absorbed.EvidenceScopeIDs {
		if !merged.HasScope(sid) {
			merged.EvidenceScopeIDs = append(merged.EvidenceScopeIDs, sid)
		}
	}
	if absorbed.ScopeSummary != "" {
		if merged.ScopeSummary != "" {
			merged.ScopeSummary += "; " + absorbed.ScopeSummary
		} else {
			merged.ScopeSummary = absorbed.ScopeSummary
		}
	}

	return append(boundaries[:bj], boundaries[bj+1:]...)
}

// assignEvidence sets every item's BoundaryID from its scope's owning
// boundary. Items without a scope, or whose scope has no owner, land in the
// fallback boundary clustering created for them.
func assignEvidence(evidence []model.EvidenceItem, boundaries []model.ClaimAssessmentBoundary, scopes []model.UniqueScope) []model.ClaimAssessmentBoundary {
	_, byKey := dedupScopesFromList(scopes)

	owner := make(map[string]string) // scope id -> boundary id
	for i := range boundaries {
		for _, sid := range boundaries[i].EvidenceScopeIDs {
			if _, taken := owner[sid]; !taken {
				owner[sid] = boundaries[i].ID
			}
		}
	}

	fallbackID := ""
	for i := range boundaries {
		if boundaries[i].Name == fallbackName {
			fallbackID = boundaries[i].ID
			break
		}
	}

	for i := range evidence {
		if evidence[i].BoundaryID != "" {
			continue // assignment happens exactly once
		}
		boundaryID := ""
		if evidence[i].Scope != nil {
			if sid, ok := byKey[scopeKey(*evidence[i].Scope)]; ok {
				boundaryID = owner[sid]
			}
		}
		if boundaryID == "" {
			if fallbackID == "" {
				if len(boundaries) == 0 {
					boundaries = append(boundaries, synthesizeFallback("b-1", nil))
				}
				// Clustering pre-creates the fallback; if a merge absorbed
				// it, stray items go to the last surviving boundary rather
				// than growing the set past the cap.
				fallbackID = boundaries[len(boundaries)-1].ID
			}
			boundaryID = fallbackID
		}
		evidence[i].BoundaryID = boundaryID
	}
	return boundaries
}

func dedupScopesFromList(scopes []model.UniqueScope) ([]model.UniqueScope, map[string]string) {
	byKey := make(map[string]string, len(scopes))
	for _, s := range scopes {
		byKey[scopeKey(s.Scope)] = s.ID
	}
	return scopes, byKey
}
