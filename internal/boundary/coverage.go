package boundary

import "github.com/ppiankov/veridex/internal/model"

// BuildCoverageMatrix builds the claims-by-boundaries grid of
// evidence-direction counts from the final assignments. Deterministic,
// built once, read-only afterwards.
func BuildCoverageMatrix(claims []model.AtomicClaim, boundaries []model.ClaimAssessmentBoundary,
	evidence []model.EvidenceItem) *model.CoverageMatrix {

	m := &model.CoverageMatrix{
		ClaimIDs:    make([]string, len(claims)),
		BoundaryIDs: make([]string, len(boundaries)),
		Cells:       make([][]model.CoverageCell, len(claims)),
	}

	boundaryIdx := make(map[string]int, len(boundaries))
	for i, b := range boundaries {
		m.BoundaryIDs[i] = b.ID
		boundaryIdx[b.ID] = i
	}
	claimIdx := make(map[string]int, len(claims))
	for i, c := range claims {
		m.ClaimIDs[i] = c.ID
		claimIdx[c.ID] = i
		m.Cells[i] = make([]model.CoverageCell, len(boundaries))
	}

	for i := range evidence {
		bi, ok := boundaryIdx[evidence[i].BoundaryID]
		if !ok {
			continue
		}
		for _, claimID := range evidence[i].RelevantClaimIDs {
			ci, ok := claimIdx[claimID]
			if !ok {
				continue
			}
			cell := &m.Cells[ci][bi]
			switch evidence[i].ClaimDirection {
			case model.DirectionSupports:
				cell.Supporting++
			case model.DirectionContradicts:
				cell.Contradicting++
			default:
				cell.Neutral++
			}
			cell.Total++
		}
	}
	return m
}
