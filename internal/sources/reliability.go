package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/prompt"
)

// LLMReliabilityScorer scores source URLs with one cheap-tier structured
// call per batch. Scores are cached per run so repeat sources cost nothing.
type LLMReliabilityScorer struct {
	provider llm.Provider
	scores   *gocache.Cache
}

// NewLLMReliabilityScorer creates a batched scorer backed by the provider.
func NewLLMReliabilityScorer(provider llm.Provider) *LLMReliabilityScorer {
	return &LLMReliabilityScorer{
		provider: provider,
		scores:   gocache.New(1*time.Hour, 10*time.Minute),
	}
}

type reliabilityResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Score resolves cached scores and issues a single batched call for the
// rest. Unscored URLs are simply absent from the result map.
func (s *LLMReliabilityScorer) Score(ctx context.Context, urls []string) (map[string]float64, error) {
	out := make(map[string]float64, len(urls))
	var missing []string
	for _, u := range urls {
		if v, found := s.scores.Get(u); found {
			out[u] = v.(float64)
		} else {
			missing = append(missing, u)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	resp, err := s.provider.Invoke(ctx, prompt.KeyReliabilityScore,
		map[string]any{"urls": missing},
		llm.CallOptions{Stage: "research", Tier: llm.TierCheap})
	if err != nil {
		return out, err
	}

	var parsed reliabilityResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return out, fmt.Errorf("decode reliability scores: %w", err)
	}

	for u, score := range parsed.Scores {
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		out[u] = score
		s.scores.Set(u, score, gocache.DefaultExpiration)
	}
	return out, nil
}
