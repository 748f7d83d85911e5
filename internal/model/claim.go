package model

// Level is a coarse high/medium/low grade used for claim centrality,
// harm potential, probative value, and confidence tiers.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Valid reports whether the level is one of the three known grades.
func (l Level) Valid() bool {
	return l == LevelHigh || l == LevelMedium || l == LevelLow
}

// AtomicClaim is the smallest independently verifiable assertion extracted
// from the input. Claims are immutable once extracted; pipeline stages
// consume them read-only.
type AtomicClaim struct {
	ID                      string `json:"id"`
	Statement               string `json:"statement"`
	Centrality              Level  `json:"centrality"`
	HarmPotential           Level  `json:"harm_potential"`
	ExpectedEvidenceProfile string `json:"expected_evidence_profile,omitempty"`
}

// ClaimUnderstanding is the output of the extraction front door: the main
// claim as stated plus its atomic decomposition and extraction gate stats.
type ClaimUnderstanding struct {
	MainClaim       string        `json:"main_claim"`
	Claims          []AtomicClaim `json:"claims"`
	ExtractionTotal int           `json:"extraction_total"` // candidates before the pre-filter
	ExtractionKept  int           `json:"extraction_kept"`  // candidates that survived
}
