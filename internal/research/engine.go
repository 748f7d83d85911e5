// Package research implements the iterative, budget-constrained
// evidence-research loop: claim-targeted search, fetch, extraction, and
// filtering, followed by a reserved contradiction phase.
package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/budget"
	"github.com/ppiankov/veridex/internal/dedup"
	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/sources"
	"github.com/ppiankov/veridex/internal/worker"
)

// Engine drives the research loop against the external search, fetch,
// reliability, and structured-call collaborators.
type Engine struct {
	searcher sources.Searcher
	fetcher  sources.Fetcher
	scorer   sources.ReliabilityScorer
	provider llm.Provider
	cfg      model.ResearchConfig
	workers  int
	log      *zap.Logger
}

// NewEngine creates a research engine.
func NewEngine(searcher sources.Searcher, fetcher sources.Fetcher, scorer sources.ReliabilityScorer,
	provider llm.Provider, cfg model.ResearchConfig, workers int, log *zap.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		searcher: searcher,
		fetcher:  fetcher,
		scorer:   scorer,
		provider: provider,
		cfg:      cfg,
		workers:  workers,
		log:      log,
	}
}

// Output is the research loop's contribution to the shared pipeline state.
type Output struct {
	Evidence        []model.EvidenceItem
	Warnings        []string
	Aborted         bool
	BudgetExhausted bool
}

// ResearchEvidence runs the bounded main loop and the reserved contradiction
// phase. The abort check is consulted at every iteration boundary; a positive
// signal returns best-effort partial state, never an error.
func (e *Engine) ResearchEvidence(ctx context.Context, claims []model.AtomicClaim,
	tracker *budget.Tracker, aborted func() bool) *Output {

	out := &Output{}
	urlIndex := dedup.NewIndex()
	evIndex := dedup.NewIndex()
	group := worker.NewGroup(e.workers)

	maxMain := e.cfg.MaxIterations - e.cfg.ContradictionReserved
	prevNovel := -1

	for iter := 0; iter < maxMain; iter++ {
		if aborted() {
			out.Aborted = true
			out.Warnings = append(out.Warnings, "research: aborted during main loop")
			return out
		}
		if e.budgetSpent(tracker, out) {
			return out
		}
		if allSufficient(claims, out.Evidence, e.cfg.ClaimSufficiency) {
			e.log.Info("research: every claim reached sufficiency", zap.Int("iteration", iter))
			break
		}
		if iter > 0 && prevNovel == 0 {
			e.log.Info("research: previous iteration added nothing novel, stopping early",
				zap.Int("iteration", iter))
			break
		}

		target := pickTarget(claims, out.Evidence)
		novel := e.runIteration(ctx, claims, buildQueries(target), urlIndex, evIndex, group, tracker, out)
		prevNovel = novel
		e.log.Info("research iteration complete",
			zap.Int("iteration", iter),
			zap.String("target_claim", target.ID),
			zap.Int("novel_evidence", novel),
			zap.Int("pool_size", len(out.Evidence)))
	}

	// Contradiction phase: the reserved iterations target whichever claims
	// have the fewest contradicting items, with counter-phrased queries.
	for i := 0; i < e.cfg.ContradictionReserved; i++ {
		if aborted() {
			out.Aborted = true
			out.Warnings = append(out.Warnings, "research: aborted during contradiction phase")
			return out
		}
		if e.budgetSpent(tracker, out) {
			return out
		}

		target := pickContradictionTarget(claims, out.Evidence)
		novel := e.runIteration(ctx, claims, buildContradictionQueries(target), urlIndex, evIndex, group, tracker, out)
		e.log.Info("contradiction iteration complete",
			zap.Int("iteration", i),
			zap.String("target_claim", target.ID),
			zap.Int("novel_evidence", novel))
	}

	return out
}

// runIteration performs one search → fetch → score → extract → filter pass
// and returns the number of novel evidence items admitted to the pool.
func (e *Engine) runIteration(ctx context.Context, claims []model.AtomicClaim, queries []string,
	urlIndex, evIndex *dedup.Index, group *worker.Group, tracker *budget.Tracker, out *Output) int {

	// Search. A provider failure is only ever a warning; the loop sees
	// zero results and continues.
	var candidates []sources.SearchResult
	for _, query := range queries {
		if !tracker.RecordCall() {
			out.Warnings = append(out.Warnings, "research: call budget reached during search")
			break
		}
		results, err := e.searcher.Search(ctx, query, e.cfg.MaxSourcesPerIteration)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("research: search %q: %v", query, err))
			continue
		}
		candidates = append(candidates, results...)
	}

	// Deduplicate URLs against the run's index and keep the top fresh ones.
	var toFetch []sources.SearchResult
	for _, c := range candidates {
		if len(toFetch) >= e.cfg.MaxFetchPerIteration {
			break
		}
		if urlIndex.Add(dedup.URLKey(c.URL)) {
			toFetch = append(toFetch, c)
		}
	}
	if len(toFetch) == 0 {
		return 0
	}

	// Fetch. Individual failures are warnings and the source is skipped.
	var pages []*sources.Page
	for _, c := range toFetch {
		page, err := e.fetcher.Fetch(ctx, c.URL)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("research: fetch %s: %v", c.URL, err))
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return 0
	}

	// Reliability prefetch: one batched call for the whole fetch set.
	reliability := map[string]float64{}
	if tracker.RecordCall() {
		urls := make([]string, len(pages))
		for i, p := range pages {
			urls[i] = p.URL
		}
		scores, err := e.scorer.Score(ctx, urls)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("research: reliability scoring: %v", err))
		}
		reliability = scores
	}

	// Extraction: one structured call per page, dispatched as a bounded
	// batch with token reservations taken up front.
	var jobs []worker.Job
	var dispatched []*extractionJob
	for _, page := range pages {
		if !tracker.RecordCall() {
			out.Warnings = append(out.Warnings, "research: call budget reached during extraction")
			break
		}
		reservation, ok := tracker.Reserve(e.cfg.TokensPerExtraction)
		if !ok {
			out.Warnings = append(out.Warnings, "research: token budget too low to extract "+page.URL)
			out.BudgetExhausted = true
			break
		}
		job := &extractionJob{
			provider:    e.provider,
			page:        page,
			claims:      claims,
			reliability: reliability[page.URL],
			reservation: reservation,
		}
		jobs = append(jobs, job)
		dispatched = append(dispatched, job)
	}

	successes, failures := group.Run(ctx, jobs)

	// A job cancelled before execution never settles its reservation.
	// Refund is a no-op for jobs that settled normally.
	for _, j := range dispatched {
		j.reservation.Refund()
	}
	throttled := false
	for _, f := range failures {
		out.Warnings = append(out.Warnings, "research: "+f.GetError().Error())
		if er, ok := f.(*extractionResult); ok && er.throttled {
			throttled = true
		}
	}
	if throttled {
		group.Halve()
		e.log.Warn("research: provider throttling detected, halving extraction concurrency",
			zap.Int("new_limit", group.Limit()))
	}

	// Single-writer admission point: filter, deduplicate, assign ids.
	novel := 0
	for _, s := range successes {
		er := s.(*extractionResult)
		out.Warnings = append(out.Warnings, er.warnings...)
		for _, item := range FilterByProbativeValue(er.items, model.Level(e.cfg.MinProbativeValue)) {
			if !evIndex.Add(dedup.EvidenceKey(&item)) {
				continue
			}
			item.ID = fmt.Sprintf("ev-%d", len(out.Evidence)+1)
			out.Evidence = append(out.Evidence, item)
			novel++
		}
	}
	return novel
}

func (e *Engine) budgetSpent(tracker *budget.Tracker, out *Output) bool {
	if tracker.TokensExhausted() || tracker.CallsExhausted() {
		out.BudgetExhausted = true
		out.Warnings = append(out.Warnings, "research: budget exhausted, stopping early")
		return true
	}
	return false
}

// evidenceCount counts pool items referencing the claim.
func evidenceCount(claimID string, pool []model.EvidenceItem) int {
	n := 0
	for i := range pool {
		if pool[i].RelevantTo(claimID) {
			n++
		}
	}
	return n
}

// contradictionCount counts contradicting pool items referencing the claim.
func contradictionCount(claimID string, pool []model.EvidenceItem) int {
	n := 0
	for i := range pool {
		if pool[i].ClaimDirection == model.DirectionContradicts && pool[i].RelevantTo(claimID) {
			n++
		}
	}
	return n
}

// pickTarget selects the claim with the fewest evidence items, ties broken
// by claim order.
func pickTarget(claims []model.AtomicClaim, pool []model.EvidenceItem) model.AtomicClaim {
	best := claims[0]
	bestCount := evidenceCount(best.ID, pool)
	for _, c := range claims[1:] {
		if n := evidenceCount(c.ID, pool); n < bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// pickContradictionTarget selects the claim with the fewest contradicting
// items, ties broken by claim order.
func pickContradictionTarget(claims []model.AtomicClaim, pool []model.EvidenceItem) model.AtomicClaim {
	best := claims[0]
	bestCount := contradictionCount(best.ID, pool)
	for _, c := range claims[1:] {
		if n := contradictionCount(c.ID, pool); n < bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// allSufficient reports whether every claim has reached the sufficiency
// threshold.
func allSufficient(claims []model.AtomicClaim, pool []model.EvidenceItem, threshold int) bool {
	for _, c := range claims {
		if evidenceCount(c.ID, pool) < threshold {
			return false
		}
	}
	return true
}
