package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/budget"
	"github.com/ppiankov/veridex/internal/dedup"
	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/sources"
	"github.com/ppiankov/veridex/internal/worker"
)

// fakeSearcher serves a fixed result list and counts searches.
type fakeSearcher struct {
	mu      sync.Mutex
	results []sources.SearchResult
	err     error
	calls   int
}

func (s *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]sources.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > maxResults {
		return s.results[:maxResults], nil
	}
	return s.results, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	fail  map[string]error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*sources.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.fail[url]; ok {
		return nil, err
	}
	return &sources.Page{URL: url, Title: "page", Text: "page text"}, nil
}

type fakeScorer struct{}

func (fakeScorer) Score(ctx context.Context, urls []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(urls))
	for _, u := range urls {
		scores[u] = 0.8
	}
	return scores, nil
}

// extractionProvider returns one evidence item per page, keyed on the URL so
// every extraction yields novel evidence.
type extractionProvider struct {
	mu    sync.Mutex
	calls int
	err   error
	empty bool
}

func (p *extractionProvider) Name() string { return "fake" }

func (p *extractionProvider) Invoke(ctx context.Context, promptKey string, vars map[string]any, opts llm.CallOptions) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.empty {
		return &llm.Response{Data: json.RawMessage(`{"evidence":[]}`), TokensUsed: 10}, nil
	}
	url, _ := vars["url"].(string)
	body := fmt.Sprintf(`{"evidence":[{"statement":"finding from %s","relevant_claim_ids":["c-1"],
"claim_direction":"supports","probative_value":"high","derivative":false,
"evidence_scope":{"methodology":"observational"}}]}`, url)
	return &llm.Response{Data: json.RawMessage(body), TokensUsed: 120}, nil
}

func testResearchConfig() model.ResearchConfig {
	cfg := model.DefaultConfig().Research
	cfg.MaxIterations = 4
	cfg.ContradictionReserved = 1
	cfg.ClaimSufficiency = 2
	return cfg
}

func never() bool { return false }

func searchResults(n int) []sources.SearchResult {
	out := make([]sources.SearchResult, n)
	for i := range out {
		out[i] = sources.SearchResult{URL: fmt.Sprintf("https://example.com/page-%d", i), Title: "t"}
	}
	return out
}

func TestResearchEvidenceCollects(t *testing.T) {
	searcher := &fakeSearcher{results: searchResults(6)}
	provider := &extractionProvider{}
	engine := NewEngine(searcher, &fakeFetcher{}, fakeScorer{}, provider, testResearchConfig(), 2, zap.NewNop())

	claims := []model.AtomicClaim{{ID: "c-1", Statement: "X reduces Y"}}
	out := engine.ResearchEvidence(context.Background(), claims, budget.NewTracker(0, 0), never)

	if out.Aborted || out.BudgetExhausted {
		t.Fatalf("clean run flagged aborted=%v exhausted=%v", out.Aborted, out.BudgetExhausted)
	}
	if len(out.Evidence) == 0 {
		t.Fatal("expected evidence to be collected")
	}
	for i, ev := range out.Evidence {
		if ev.ID != fmt.Sprintf("ev-%d", i+1) {
			t.Errorf("evidence ids must be sequential: got %s at %d", ev.ID, i)
		}
		if ev.Reliability != 0.8 {
			t.Errorf("reliability score should be attached: %v", ev.Reliability)
		}
	}
}

func TestResearchEvidenceAbort(t *testing.T) {
	searcher := &fakeSearcher{results: searchResults(6)}
	engine := NewEngine(searcher, &fakeFetcher{}, fakeScorer{}, &extractionProvider{}, testResearchConfig(), 2, zap.NewNop())

	out := engine.ResearchEvidence(context.Background(),
		[]model.AtomicClaim{{ID: "c-1"}}, budget.NewTracker(0, 0), func() bool { return true })

	if !out.Aborted {
		t.Error("abort signal should be reported")
	}
	if len(out.Evidence) != 0 {
		t.Errorf("immediate abort should collect nothing, got %d items", len(out.Evidence))
	}
	if searcher.calls != 0 {
		t.Errorf("no search should run after the abort signal, got %d", searcher.calls)
	}
}

func TestRunIterationCancelledJobsReleaseReservations(t *testing.T) {
	searcher := &fakeSearcher{results: searchResults(3)}
	engine := NewEngine(searcher, &fakeFetcher{}, fakeScorer{}, &extractionProvider{}, testResearchConfig(), 2, zap.NewNop())

	// Cancel before dispatch so extraction jobs are built, reserve their
	// tokens, and then never run.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tracker := budget.NewTracker(100000, 0)
	out := &Output{}
	engine.runIteration(ctx, []model.AtomicClaim{{ID: "c-1", Statement: "X reduces Y"}},
		[]string{"q"}, dedup.NewIndex(), dedup.NewIndex(), worker.NewGroup(2), tracker, out)

	if held := tracker.Snapshot().TokensReserved; held != 0 {
		t.Errorf("jobs that never ran must release their reservations, %d tokens still held", held)
	}
}

func TestResearchEvidenceStopsWhenNothingNovel(t *testing.T) {
	// The provider returns nothing, so iteration one admits zero items and
	// iteration two must not run the main loop again.
	searcher := &fakeSearcher{results: searchResults(3)}
	provider := &extractionProvider{empty: true}
	engine := NewEngine(searcher, &fakeFetcher{}, fakeScorer{}, provider, testResearchConfig(), 2, zap.NewNop())

	out := engine.ResearchEvidence(context.Background(),
		[]model.AtomicClaim{{ID: "c-1"}}, budget.NewTracker(0, 0), never)

	if len(out.Evidence) != 0 {
		t.Fatalf("expected no evidence, got %d", len(out.Evidence))
	}
	// One main iteration (3 queries without a hint is 2) plus the reserved
	// contradiction iteration (3 queries): search calls stay well below the
	// cap a full four-iteration run would produce.
	if searcher.calls > 5 {
		t.Errorf("early stop expected after a zero-novel iteration, searches=%d", searcher.calls)
	}
}

func TestResearchEvidenceCallBudget(t *testing.T) {
	searcher := &fakeSearcher{results: searchResults(6)}
	engine := NewEngine(searcher, &fakeFetcher{}, fakeScorer{}, &extractionProvider{}, testResearchConfig(), 2, zap.NewNop())

	// Budget of 1 call: the first search consumes it and the loop stops at
	// the next boundary.
	out := engine.ResearchEvidence(context.Background(),
		[]model.AtomicClaim{{ID: "c-1"}}, budget.NewTracker(0, 1), never)

	if !out.BudgetExhausted {
		t.Error("exhausted call budget should be reported")
	}
}

func TestResearchEvidenceSearchFailureIsWarning(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search down")}
	engine := NewEngine(searcher, &fakeFetcher{}, fakeScorer{}, &extractionProvider{}, testResearchConfig(), 2, zap.NewNop())

	out := engine.ResearchEvidence(context.Background(),
		[]model.AtomicClaim{{ID: "c-1"}}, budget.NewTracker(0, 0), never)

	if len(out.Evidence) != 0 {
		t.Errorf("no evidence expected when search fails, got %d", len(out.Evidence))
	}
	if len(out.Warnings) == 0 {
		t.Error("search failures should surface as warnings")
	}
	if out.Aborted {
		t.Error("search failure must not flag an abort")
	}
}

func TestResearchEvidenceDeduplicatesURLs(t *testing.T) {
	// Every iteration serves the same URLs; only the first fetch set is new.
	searcher := &fakeSearcher{results: searchResults(3)}
	fetcher := &fakeFetcher{}
	engine := NewEngine(searcher, fetcher, fakeScorer{}, &extractionProvider{}, testResearchConfig(), 2, zap.NewNop())

	engine.ResearchEvidence(context.Background(),
		[]model.AtomicClaim{{ID: "c-1"}}, budget.NewTracker(0, 0), never)

	if fetcher.calls != 3 {
		t.Errorf("each URL should be fetched once across the run, got %d fetches", fetcher.calls)
	}
}

func TestNormalizeDirection(t *testing.T) {
	tests := []struct {
		in   string
		want model.Direction
	}{
		{"supports", model.DirectionSupports},
		{"Support", model.DirectionSupports},
		{"CONTRADICTS", model.DirectionContradicts},
		{"neutral", model.DirectionNeutral},
		{"garbage", model.DirectionNeutral},
	}
	for _, tt := range tests {
		if got := normalizeDirection(tt.in); got != tt.want {
			t.Errorf("normalizeDirection(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestIsThrottleError(t *testing.T) {
	if !isThrottleError(errors.New("HTTP 429 Too Many Requests")) {
		t.Error("429 should read as throttling")
	}
	if !isThrottleError(errors.New("rate limit exceeded")) {
		t.Error("rate limit should read as throttling")
	}
	if isThrottleError(errors.New("connection refused")) {
		t.Error("generic failure is not throttling")
	}
	if isThrottleError(nil) {
		t.Error("nil is not throttling")
	}
}
