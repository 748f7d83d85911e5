package aggregate

import (
	"github.com/ppiankov/veridex/internal/model"
)

// boundaryLean is one boundary's net reading of a claim.
type boundaryLean int

const (
	leanNeutral boundaryLean = iota
	leanSupports
	leanContradicts
)

func leanOf(cell model.CoverageCell) boundaryLean {
	switch {
	case cell.Supporting > cell.Contradicting:
		return leanSupports
	case cell.Contradicting > cell.Supporting:
		return leanContradicts
	default:
		return leanNeutral
	}
}

// triangulate classifies cross-boundary agreement for one claim from its
// coverage row. Only boundaries that hold evidence for the claim count.
// Returns the level, the confidence factor, and whether the claim is
// contested.
func triangulate(row []model.CoverageCell, cfg model.AggregateConfig) (model.TriangulationLevel, float64, bool) {
	var supports, contradicts, populated int
	for _, cell := range row {
		if cell.Total == 0 {
			continue
		}
		populated++
		switch leanOf(cell) {
		case leanSupports:
			supports++
		case leanContradicts:
			contradicts++
		}
	}

	switch {
	case populated <= 1:
		// A single boundary cannot corroborate anything.
		return model.TriangulationWeak, cfg.TriangulationWeak, false
	case supports == contradicts && supports > 0:
		return model.TriangulationConflicted, 0, true
	case supports >= 3 || contradicts >= 3:
		return model.TriangulationStrong, cfg.TriangulationStrong, false
	case supports >= 2 || contradicts >= 2:
		return model.TriangulationModerate, cfg.TriangulationModerate, false
	default:
		// Leaners exist but no direction dominates with two or more.
		return model.TriangulationWeak, cfg.TriangulationWeak, false
	}
}

// derivativeFactor discounts claims whose evidence base is mostly
// secondhand. Strictly more than half the relevant items must be
// derivative for the discount to apply.
func derivativeFactor(claimID string, evidence []model.EvidenceItem, cfg model.AggregateConfig) float64 {
	var relevant, derivative int
	for _, ev := range evidence {
		if !ev.RelevantTo(claimID) {
			continue
		}
		relevant++
		if ev.Derivative {
			derivative++
		}
	}
	if relevant == 0 || derivative*2 <= relevant {
		return 1.0
	}
	return cfg.DerivativeMultiplier
}

func centralityWeight(c model.Level, cfg model.AggregateConfig) float64 {
	switch c {
	case model.LevelHigh:
		return cfg.CentralityHigh
	case model.LevelLow:
		return cfg.CentralityLow
	default:
		return cfg.CentralityMedium
	}
}

func harmMultiplier(h model.Level, cfg model.AggregateConfig) float64 {
	switch h {
	case model.LevelHigh:
		return cfg.HarmHigh
	case model.LevelLow:
		return cfg.HarmLow
	default:
		return cfg.HarmMedium
	}
}
