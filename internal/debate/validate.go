package debate

import (
	"fmt"

	"github.com/ppiankov/veridex/internal/model"
)

// validationIssue is one finding from the grounding or direction check.
type validationIssue struct {
	ClaimID      string   `json:"claim_id"`
	Problem      string   `json:"problem"`
	Correction   string   `json:"correction"` // "upgrade", "downgrade", or "none"
	SuggestedPct *float64 `json:"suggested_pct"`
}

type validationResponse struct {
	Issues []validationIssue `json:"issues"`
}

// applyCorrection adjusts one verdict's truth percentage for a validation
// issue. The suggested percentage is applied when present; otherwise the
// correction only moves the verdict into the configured band, so a single
// binary signal never swings a verdict by tens of points.
func applyCorrection(v *model.ClaimVerdict, issue validationIssue, cfg model.DebateConfig) (changed bool) {
	if issue.SuggestedPct != nil {
		pct := clampPct(*issue.SuggestedPct)
		if pct != v.TruthPercentage {
			v.TruthPercentage = pct
			return true
		}
		return false
	}

	switch issue.Correction {
	case "upgrade":
		if v.TruthPercentage < cfg.UpgradeBandLow {
			v.TruthPercentage = cfg.UpgradeBandLow
			return true
		}
		if v.TruthPercentage > cfg.UpgradeBandHigh {
			// An upgrade never lowers a verdict already above the band.
			return false
		}
	case "downgrade":
		if v.TruthPercentage > cfg.DowngradeBandHigh {
			v.TruthPercentage = cfg.DowngradeBandHigh
			return true
		}
	}
	return false
}

// structuralCheck validates deterministic invariants over the final
// verdicts. Violations are warnings only, surfaced through quality gates;
// they never block the result.
func structuralCheck(verdicts []model.ClaimVerdict, evidence []model.EvidenceItem) []string {
	byID := make(map[string]*model.EvidenceItem, len(evidence))
	for i := range evidence {
		byID[evidence[i].ID] = &evidence[i]
	}

	var warnings []string
	for i := range verdicts {
		v := &verdicts[i]

		var supports, contradicts int
		for _, id := range v.CitedEvidenceIDs {
			item, ok := byID[id]
			if !ok {
				warnings = append(warnings, fmt.Sprintf(
					"debate: verdict for %s cites unknown evidence id %s", v.ClaimID, id))
				continue
			}
			if !item.RelevantTo(v.ClaimID) {
				warnings = append(warnings, fmt.Sprintf(
					"debate: verdict for %s cites evidence %s not relevant to it", v.ClaimID, id))
				continue
			}
			switch item.ClaimDirection {
			case model.DirectionSupports:
				supports++
			case model.DirectionContradicts:
				contradicts++
			}
		}

		// A strongly supported claim must cite at least one supporting item,
		// and a strongly refuted claim at least one contradicting item.
		if v.TruthPercentage >= 70 && supports == 0 {
			warnings = append(warnings, fmt.Sprintf(
				"debate: verdict for %s rates %.0f%% true but cites no supporting evidence",
				v.ClaimID, v.TruthPercentage))
		}
		if v.TruthPercentage <= 30 && contradicts == 0 {
			warnings = append(warnings, fmt.Sprintf(
				"debate: verdict for %s rates %.0f%% true but cites no contradicting evidence",
				v.ClaimID, v.TruthPercentage))
		}
	}
	return warnings
}

// applyHarmFloor raises confidence to the configured minimum for claims
// whose harm potential is in the floor set. Strictly one-directional: it
// never lowers confidence and never touches non-floored claims.
func applyHarmFloor(verdicts []model.ClaimVerdict, claims []model.AtomicClaim, cfg model.DebateConfig) {
	harmByID := make(map[string]model.Level, len(claims))
	for _, c := range claims {
		harmByID[c.ID] = c.HarmPotential
	}

	for i := range verdicts {
		if !cfg.HarmFloorApplies(harmByID[verdicts[i].ClaimID]) {
			continue
		}
		if verdicts[i].Confidence < cfg.HarmConfidenceFloor {
			verdicts[i].Confidence = cfg.HarmConfidenceFloor
		}
	}
}

// classifyTier assigns the confidence tier: high >= TierHigh,
// medium >= TierMedium, else low.
func classifyTier(confidence float64, cfg model.DebateConfig) model.Level {
	switch {
	case confidence >= cfg.TierHigh:
		return model.LevelHigh
	case confidence >= cfg.TierMedium:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
