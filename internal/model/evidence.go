package model

// Direction states how a piece of evidence bears on its claims.
type Direction string

const (
	DirectionSupports    Direction = "supports"
	DirectionContradicts Direction = "contradicts"
	DirectionNeutral     Direction = "neutral"
)

// EvidenceScope describes how the originating source produced the evidence:
// its methodology, time frame, geography, and source type. This is metadata
// about the source, not about the analytical frame the pipeline itself uses;
// boundary clustering exists to exploit exactly that distinction.
type EvidenceScope struct {
	Methodology string `json:"methodology"`
	Temporal    string `json:"temporal,omitempty"`
	Geographic  string `json:"geographic,omitempty"`
	SourceType  string `json:"source_type,omitempty"`
}

// Equal reports field-wise equality, the structural identity used when
// deduplicating scopes into the unique-scope list.
func (s EvidenceScope) Equal(o EvidenceScope) bool {
	return s.Methodology == o.Methodology &&
		s.Temporal == o.Temporal &&
		s.Geographic == o.Geographic &&
		s.SourceType == o.SourceType
}

// UniqueScope is a structurally deduplicated scope with its stable id.
type UniqueScope struct {
	ID    string        `json:"id"`
	Scope EvidenceScope `json:"scope"`
}

// EvidenceItem is one piece of evidence gathered by the research loop.
// BoundaryID stays empty until boundary clustering runs, then is set exactly
// once and never reassigned. Items are owned by the shared pipeline state.
type EvidenceItem struct {
	ID               string         `json:"id"`
	Statement        string         `json:"statement"`
	SourceURL        string         `json:"source_url"`
	ClaimDirection   Direction      `json:"claim_direction"`
	ProbativeValue   Level          `json:"probative_value"`
	RelevantClaimIDs []string       `json:"relevant_claim_ids"`
	Scope            *EvidenceScope `json:"evidence_scope,omitempty"`
	BoundaryID       string         `json:"claim_boundary_id,omitempty"`
	Reliability      float64        `json:"reliability,omitempty"` // 0..1 batch-scored source reliability
	Derivative       bool           `json:"derivative,omitempty"`  // source restates another source
}

// RelevantTo reports whether the item references the given claim id.
func (e *EvidenceItem) RelevantTo(claimID string) bool {
	for _, id := range e.RelevantClaimIDs {
		if id == claimID {
			return true
		}
	}
	return false
}
