package model

import "time"

// Rating is the qualitative verdict label attached to a claim or to the
// overall assessment.
type Rating string

const (
	RatingTrue         Rating = "true"
	RatingMostlyTrue   Rating = "mostly-true"
	RatingMixed        Rating = "mixed"
	RatingMostlyFalse  Rating = "mostly-false"
	RatingFalse        Rating = "false"
	RatingUnverifiable Rating = "unverifiable"
)

// Stability buckets the self-consistency spread of step-1/step-2 samples.
type Stability string

const (
	StabilityStable   Stability = "stable"
	StabilityModerate Stability = "moderate"
	StabilityUnstable Stability = "unstable"
	StabilityVolatile Stability = "volatile"
)

// ConsistencyResult records the self-consistency spread for one claim when
// the optional debate step 2 ran.
type ConsistencyResult struct {
	Samples    []float64 `json:"samples"` // step-1 value plus the two resamples
	Spread     float64   `json:"spread"`  // max - min across the samples
	Stability  Stability `json:"stability"`
	Multiplier float64   `json:"multiplier"` // applied to confidence, never to truth
}

// TriangulationLevel classifies cross-boundary agreement for one claim.
type TriangulationLevel string

const (
	TriangulationStrong     TriangulationLevel = "strong"
	TriangulationModerate   TriangulationLevel = "moderate"
	TriangulationWeak       TriangulationLevel = "weak"
	TriangulationConflicted TriangulationLevel = "conflicted"
)

// BoundaryFinding is the debate's per-boundary reading of one claim.
type BoundaryFinding struct {
	BoundaryID string    `json:"boundary_id"`
	Direction  Direction `json:"direction"`
	Summary    string    `json:"summary,omitempty"`
}

// ClaimVerdict is the calibrated outcome for one atomic claim. The debate
// stage creates it; aggregation annotates triangulation and the final weight
// in place and never creates or removes verdicts.
type ClaimVerdict struct {
	ClaimID          string             `json:"claim_id"`
	TruthPercentage  float64            `json:"truth_percentage"` // 0..100
	Confidence       float64            `json:"confidence"`       // 0..100
	Rating           Rating             `json:"rating"`
	Reasoning        string             `json:"reasoning,omitempty"`
	CitedEvidenceIDs []string           `json:"cited_evidence_ids,omitempty"`
	BoundaryFindings []BoundaryFinding  `json:"boundary_findings,omitempty"`
	Consistency      *ConsistencyResult `json:"consistency,omitempty"`

	// Set by aggregation.
	Triangulation       TriangulationLevel `json:"triangulation,omitempty"`
	TriangulationFactor float64            `json:"triangulation_factor"`
	IsContested         bool               `json:"is_contested,omitempty"`
	FinalWeight         float64            `json:"final_weight"`
	ConfidenceTier      Level              `json:"confidence_tier,omitempty"`
}

// Narrative is the LLM-generated summary of the overall assessment.
type Narrative struct {
	Summary     string   `json:"summary"`
	KeyEvidence []string `json:"key_evidence,omitempty"`
	Limitations []string `json:"limitations,omitempty"`
	Methodology string   `json:"methodology,omitempty"`
}

// QualityGates carries pass/fail statistics from the named checkpoints.
// Gates are reported, never blocking.
type QualityGates struct {
	ExtractionTotal    int  `json:"extraction_total"`
	ExtractionKept     int  `json:"extraction_kept"`
	HighConfidence     int  `json:"high_confidence"`
	MediumConfidence   int  `json:"medium_confidence"`
	LowConfidence      int  `json:"low_confidence"`
	StructuralWarnings int  `json:"structural_warnings"`
	ClusteringFallback bool `json:"clustering_fallback"`
	DebateFallback     bool `json:"debate_fallback"`
}

// RunStatus distinguishes a genuine result from one built on fallbacks.
type RunStatus string

const (
	StatusOK       RunStatus = "ok"
	StatusDegraded RunStatus = "degraded" // aborted or budget-truncated, partial result
	StatusFallback RunStatus = "fallback" // wholesale default values substituted
)

// OverallAssessment is the terminal artifact of a verification run,
// immutable once returned.
type OverallAssessment struct {
	RunID            string                    `json:"run_id"`
	Input            string                    `json:"input"`
	Status           RunStatus                 `json:"status"`
	TruthPercentage  float64                   `json:"truth_percentage"`
	Confidence       float64                   `json:"confidence"`
	Verdict          Rating                    `json:"verdict"`
	VerdictNarrative *Narrative                `json:"verdict_narrative,omitempty"`
	ClaimVerdicts    []ClaimVerdict            `json:"claim_verdicts"`
	ClaimBoundaries  []ClaimAssessmentBoundary `json:"claim_boundaries"`
	Coverage         *CoverageMatrix           `json:"coverage_matrix,omitempty"`
	QualityGates     QualityGates              `json:"quality_gates"`
	Warnings         []string                  `json:"warnings,omitempty"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// RatingForTruth maps a truth percentage onto the verdict scale.
func RatingForTruth(pct float64) Rating {
	switch {
	case pct >= 85:
		return RatingTrue
	case pct >= 65:
		return RatingMostlyTrue
	case pct >= 40:
		return RatingMixed
	case pct >= 20:
		return RatingMostlyFalse
	default:
		return RatingFalse
	}
}
