package sources

import "context"

// Searcher runs a web search. An empty result list is not an error; provider
// failures surface as errors the caller records and moves past.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// Fetcher retrieves one page and extracts its text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// ReliabilityScorer scores source URLs for reliability in one batched call.
// Scores are 0..1; URLs missing from the returned map were unscorable.
type ReliabilityScorer interface {
	Score(ctx context.Context, urls []string) (map[string]float64, error)
}
