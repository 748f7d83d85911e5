package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/veridex/internal/budget"
	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/prompt"
	"github.com/ppiankov/veridex/internal/sources"
	"github.com/ppiankov/veridex/internal/worker"
)

// extractionJob turns one fetched page into candidate evidence items with a
// single structured call. Jobs are isolated: one failure never aborts the
// batch it runs in.
type extractionJob struct {
	provider    llm.Provider
	page        *sources.Page
	claims      []model.AtomicClaim
	reliability float64
	reservation *budget.Reservation
}

type extractionResult struct {
	url       string
	items     []model.EvidenceItem
	warnings  []string
	throttled bool
	err       error
}

func (r *extractionResult) GetError() error { return r.err }

type extractionResponse struct {
	Evidence []struct {
		Statement        string               `json:"statement"`
		RelevantClaimIDs []string             `json:"relevant_claim_ids"`
		ClaimDirection   string               `json:"claim_direction"`
		ProbativeValue   string               `json:"probative_value"`
		Derivative       bool                 `json:"derivative"`
		Scope            *model.EvidenceScope `json:"evidence_scope"`
	} `json:"evidence"`
}

// Execute runs the structured extraction call, committing actual token usage
// against the reservation (a failed call refunds it in full).
func (j *extractionJob) Execute(ctx context.Context) worker.Result {
	resp, err := j.provider.Invoke(ctx, prompt.KeyEvidenceExtract, map[string]any{
		"claims": j.claims,
		"url":    j.page.URL,
		"text":   j.page.Text,
	}, llm.CallOptions{Stage: "research", Tier: llm.TierStandard})
	if err != nil {
		j.reservation.Refund()
		return &extractionResult{
			url:       j.page.URL,
			throttled: isThrottleError(err),
			err:       fmt.Errorf("extract %s: %w", j.page.URL, err),
		}
	}
	j.reservation.Commit(resp.TokensUsed)

	var parsed extractionResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return &extractionResult{url: j.page.URL, err: fmt.Errorf("decode extraction for %s: %w", j.page.URL, err)}
	}

	result := &extractionResult{url: j.page.URL}
	for _, cand := range parsed.Evidence {
		if strings.TrimSpace(cand.Statement) == "" || len(cand.RelevantClaimIDs) == 0 {
			continue
		}

		item := model.EvidenceItem{
			Statement:        cand.Statement,
			SourceURL:        j.page.URL,
			ClaimDirection:   normalizeDirection(cand.ClaimDirection),
			ProbativeValue:   normalizeLevel(cand.ProbativeValue),
			RelevantClaimIDs: cand.RelevantClaimIDs,
			Scope:            cand.Scope,
			Reliability:      j.reliability,
			Derivative:       cand.Derivative,
		}

		// A missing methodology is a quality warning, not a rejection.
		if item.Scope == nil || strings.TrimSpace(item.Scope.Methodology) == "" {
			result.warnings = append(result.warnings,
				fmt.Sprintf("evidence from %s has no methodology in its scope", j.page.URL))
		}

		result.items = append(result.items, item)
	}
	return result
}

func normalizeDirection(s string) model.Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supports", "support":
		return model.DirectionSupports
	case "contradicts", "contradict":
		return model.DirectionContradicts
	default:
		return model.DirectionNeutral
	}
}

func normalizeLevel(s string) model.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return model.LevelHigh
	case "low":
		return model.LevelLow
	default:
		return model.LevelMedium
	}
}

// isThrottleError recognizes provider throttling signals that should halve
// batch concurrency.
func isThrottleError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "quota")
}
