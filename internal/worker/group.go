// Package worker provides the bounded task groups and rate limiters the
// research loop dispatches external work through.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work executed by a Group.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one job.
type Result interface {
	GetError() error
}

// cancelledResult is recorded for jobs that never ran because the context
// ended first.
type cancelledResult struct{ err error }

func (r cancelledResult) GetError() error { return r.err }

// Group runs jobs with bounded concurrency and a wait-for-all join that
// splits successes from failures. A failed job never cancels its siblings;
// a batch completes with partial results.
type Group struct {
	mu    sync.Mutex
	limit int
}

// NewGroup creates a group with the given concurrency limit (floor 1).
func NewGroup(limit int) *Group {
	if limit < 1 {
		limit = 1
	}
	return &Group{limit: limit}
}

// Limit returns the current concurrency limit.
func (g *Group) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

// Halve reduces concurrency for subsequent batches, floor 1. Called when a
// provider signals throttling.
func (g *Group) Halve() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.limit > 1 {
		g.limit /= 2
	}
}

// Run executes all jobs and waits for every one of them, then returns the
// successful results and the failures separately.
func (g *Group) Run(ctx context.Context, jobs []Job) (successes []Result, failures []Result) {
	if len(jobs) == 0 {
		return nil, nil
	}

	results := make([]Result, len(jobs))
	sem := make(chan struct{}, g.Limit())
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, j Job) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = cancelledResult{err: ctx.Err()}
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			results[idx] = j.Execute(ctx)
		}(i, job)
	}
	wg.Wait()

	for _, r := range results {
		if r == nil {
			continue
		}
		if r.GetError() != nil {
			failures = append(failures, r)
		} else {
			successes = append(successes, r)
		}
	}
	return successes, failures
}
