package model

// ClaimAssessmentBoundary is a cluster of evidence scopes judged mutually
// congruent. Evidence from different boundaries must not be blended without
// triangulation accounting. Boundaries are created once by clustering and
// only ever removed by merge absorption.
type ClaimAssessmentBoundary struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	ScopeSummary      string   `json:"scope_summary,omitempty"`
	InternalCoherence float64  `json:"internal_coherence"` // 0..1
	EvidenceScopeIDs  []string `json:"evidence_scope_ids"`
}

// HasScope reports whether the boundary owns the given scope id.
func (b *ClaimAssessmentBoundary) HasScope(scopeID string) bool {
	for _, id := range b.EvidenceScopeIDs {
		if id == scopeID {
			return true
		}
	}
	return false
}

// CoverageCell holds evidence-direction counts for one claim in one boundary.
type CoverageCell struct {
	Supporting    int `json:"supporting"`
	Contradicting int `json:"contradicting"`
	Neutral       int `json:"neutral"`
	Total         int `json:"total"`
}

// CoverageMatrix is the claims-by-boundaries grid of direction counts.
// Built once from the final evidence assignments and read-only afterwards.
type CoverageMatrix struct {
	ClaimIDs    []string         `json:"claim_ids"`
	BoundaryIDs []string         `json:"boundary_ids"`
	Cells       [][]CoverageCell `json:"cells"` // indexed [claim][boundary]
}

// Cell returns the cell for the claim/boundary pair, or a zero cell when
// either id is unknown.
func (m *CoverageMatrix) Cell(claimID, boundaryID string) CoverageCell {
	ci, bi := -1, -1
	for i, id := range m.ClaimIDs {
		if id == claimID {
			ci = i
			break
		}
	}
	for i, id := range m.BoundaryIDs {
		if id == boundaryID {
			bi = i
			break
		}
	}
	if ci < 0 || bi < 0 {
		return CoverageCell{}
	}
	return m.Cells[ci][bi]
}

// ClaimRow returns the per-boundary cells for one claim in boundary order.
func (m *CoverageMatrix) ClaimRow(claimID string) []CoverageCell {
	for i, id := range m.ClaimIDs {
		if id == claimID {
			return m.Cells[i]
		}
	}
	return nil
}
