// Package extract decomposes the input text into atomic claims. It is the
// pipeline's front door: everything downstream operates on the claims
// produced here.
package extract

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

// Extractor turns free-form input into a validated claim decomposition.
type Extractor struct {
	provider llm.Provider
	log      *zap.Logger
}

// NewExtractor creates a claim extractor.
func NewExtractor(provider llm.Provider, log *zap.Logger) *Extractor {
	return &Extractor{provider: provider, log: log}
}

type candidateClaim struct {
	Statement               string `json:"statement"`
	Centrality              string `json:"centrality"`
	HarmPotential           string `json:"harm_potential"`
	ExpectedEvidenceProfile string `json:"expected_evidence_profile"`
}

type extractResponse struct {
	MainClaim string           `json:"main_claim"`
	Claims    []candidateClaim `json:"claims"`
}

type validateResponse struct {
	Keep []int `json:"keep"`
}

// Understand runs the two-pass decomposition: extraction, then a validation
// pass that drops trivial, subjective, and duplicate candidates. A failed
// validation pass keeps all candidates and degrades to a warning.
func (x *Extractor) Understand(ctx context.Context, input string) (*model.ClaimUnderstanding, []string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("empty input")
	}

	resp, err := x.provider.Invoke(ctx, prompt.KeyClaimExtract, map[string]any{
		"input": input,
	}, llm.CallOptions{Stage: "extract", Tier: llm.TierStandard})
	if err != nil {
		return nil, nil, err
	}

	var parsed extractResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, nil, fmt.Errorf("decode claim extraction: %w", err)
	}
	if len(parsed.Claims) == 0 {
		return nil, nil, fmt.Errorf("no claims extracted from input")
	}

	var warnings []string
	kept, warn := x.validatePass(ctx, parsed.Claims)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	if len(kept) == 0 {
		// The validator is a filter, never a veto on the whole input.
		warnings = append(warnings, "extract: validation dropped every candidate, keeping all")
		kept = parsed.Claims
	}

	u := &model.ClaimUnderstanding{
		MainClaim:       strings.TrimSpace(parsed.MainClaim),
		ExtractionTotal: len(parsed.Claims),
		ExtractionKept:  len(kept),
	}
	if u.MainClaim == "" {
		u.MainClaim = input
	}
	for i, c := range kept {
		u.Claims = append(u.Claims, model.AtomicClaim{
			ID:                      fmt.Sprintf("c-%d", i+1),
			Statement:               strings.TrimSpace(c.Statement),
			Centrality:              normalizeLevel(c.Centrality, model.LevelMedium),
			HarmPotential:           normalizeLevel(c.HarmPotential, model.LevelLow),
			ExpectedEvidenceProfile: strings.TrimSpace(c.ExpectedEvidenceProfile),
		})
	}

	x.log.Info("extract: claims decomposed",
		zap.Int("candidates", u.ExtractionTotal),
		zap.Int("kept", u.ExtractionKept))
	return u, warnings, nil
}

// validatePass returns the surviving candidates and an optional warning.
func (x *Extractor) validatePass(ctx context.Context, candidates []candidateClaim) ([]candidateClaim, string) {
	resp, err := x.provider.Invoke(ctx, prompt.KeyClaimValidate, map[string]any{
		"claims": candidates,
	}, llm.CallOptions{Stage: "extract", Tier: llm.TierCheap})
	if err != nil {
		return candidates, fmt.Sprintf("extract: claim validation unavailable, keeping all candidates: %v", err)
	}

	var parsed validateResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return candidates, fmt.Sprintf("extract: claim validation unreadable, keeping all candidates: %v", err)
	}

	var kept []candidateClaim
	seen := make(map[int]struct{}, len(parsed.Keep))
	for _, idx := range parsed.Keep {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		kept = append(kept, candidates[idx])
	}
	return kept, ""
}

func normalizeLevel(s string, fallback model.Level) model.Level {
	l := model.Level(strings.ToLower(strings.TrimSpace(s)))
	if l.Valid() {
		return l
	}
	return fallback
}
