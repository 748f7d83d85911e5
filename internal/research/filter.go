package research

import "github.com/ppiankov/veridex/internal/model"

// probativeRank orders the probative grades for threshold comparison.
func probativeRank(l model.Level) int {
	switch l {
	case model.LevelHigh:
		return 3
	case model.LevelMedium:
		return 2
	case model.LevelLow:
		return 1
	default:
		return 0
	}
}

// FilterByProbativeValue drops candidates below the threshold. Deterministic,
// stateless; no external call is ever made here.
func FilterByProbativeValue(items []model.EvidenceItem, min model.Level) []model.EvidenceItem {
	threshold := probativeRank(min)
	if threshold == 0 {
		threshold = probativeRank(model.LevelMedium)
	}

	kept := make([]model.EvidenceItem, 0, len(items))
	for _, item := range items {
		if probativeRank(item.ProbativeValue) >= threshold {
			kept = append(kept, item)
		}
	}
	return kept
}
