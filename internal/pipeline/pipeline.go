// Package pipeline wires the four stages into one verification run and owns
// the run lifecycle: id allocation, abort signalling, status classification,
// and the terminal assessment.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/veridex/internal/aggregate"
	"github.com/ppiankov/veridex/internal/boundary"
	"github.com/ppiankov/veridex/internal/budget"
	"github.com/ppiankov/veridex/internal/debate"
	"github.com/ppiankov/veridex/internal/extract"
	"github.com/ppiankov/veridex/internal/llm"
	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/research"
	"github.com/ppiankov/veridex/internal/sources"
)

// Pipeline runs claim verification end to end. One Pipeline serves many
// sequential or concurrent runs; per-run state lives on the stack of Verify.
type Pipeline struct {
	cfg       *model.Config
	extractor *extract.Extractor
	research  *research.Engine
	boundary  *boundary.Engine
	debate    *debate.Engine
	aggregate *aggregate.Engine
	registry  *AbortRegistry
	log       *zap.Logger
}

// New assembles a pipeline from configuration: the structured-call provider,
// the search and fetch collaborators, and the four stage engines.
func New(cfg *model.Config, log *zap.Logger) (*Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}

	searcher, err := sources.NewSearxClient(cfg.HTTP, cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("init search client: %w", err)
	}
	fetcher := sources.NewHTTPFetcher(cfg.HTTP, cfg.Search, cfg.Cache)
	scorer := sources.NewLLMReliabilityScorer(provider)

	return &Pipeline{
		cfg:       cfg,
		extractor: extract.NewExtractor(provider, log),
		research: research.NewEngine(searcher, fetcher, scorer, provider,
			cfg.Research, cfg.Concurrency.ExtractionWorkers, log),
		boundary:  boundary.NewEngine(provider, cfg.Boundary, log),
		debate:    debate.NewEngine(provider, cfg.Debate, log),
		aggregate: aggregate.NewEngine(provider, cfg.Aggregate, log),
		registry:  NewAbortRegistry(),
		log:       log,
	}, nil
}

// Registry exposes the abort registry so callers can signal a running
// verification by run id.
func (p *Pipeline) Registry() *AbortRegistry { return p.registry }

// Verify runs the full pipeline over the input. Aborts and budget exhaustion
// degrade the result instead of failing it; only stage-fatal errors (claim
// extraction, debate reasoning calls) return an error.
func (p *Pipeline) Verify(ctx context.Context, input string) (*model.OverallAssessment, error) {
	runID := uuid.NewString()
	aborted := p.registry.Register(runID)
	defer p.registry.Release(runID)

	started := time.Now()
	p.log.Info("pipeline: run started", zap.String("run_id", runID))

	var warnings []string

	understanding, extractWarnings, err := p.extractor.Understand(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("claim extraction: %w", err)
	}
	warnings = append(warnings, extractWarnings...)
	claims := understanding.Claims

	tracker := budget.NewTracker(p.cfg.Research.TokenBudget, p.cfg.Research.CallBudget)
	researchOut := p.research.ResearchEvidence(ctx, claims, tracker, aborted)
	warnings = append(warnings, researchOut.Warnings...)

	boundaryOut := p.boundary.ClusterBoundaries(ctx, researchOut.Evidence)
	warnings = append(warnings, boundaryOut.Warnings...)

	coverage := boundary.BuildCoverageMatrix(claims, boundaryOut.Boundaries, researchOut.Evidence)

	debateOut, err := p.debate.GenerateVerdicts(ctx, claims, researchOut.Evidence,
		boundaryOut.Boundaries, coverage, aborted)
	if err != nil {
		return nil, fmt.Errorf("verdict debate: %w", err)
	}
	warnings = append(warnings, debateOut.Warnings...)

	aggOut, err := p.aggregate.Aggregate(ctx, claims, debateOut.Verdicts,
		researchOut.Evidence, boundaryOut.Boundaries, coverage, aborted)
	if err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}
	warnings = append(warnings, aggOut.Warnings...)

	gates := aggOut.Gates
	gates.ExtractionTotal = understanding.ExtractionTotal
	gates.ExtractionKept = understanding.ExtractionKept
	gates.StructuralWarnings = debateOut.StructuralWarnings
	gates.ClusteringFallback = boundaryOut.Fallback
	gates.DebateFallback = debateOut.Aborted || debateOut.Placeholders > 0

	assessment := &model.OverallAssessment{
		RunID:            runID,
		Input:            input,
		Status:           runStatus(researchOut, debateOut, gates),
		TruthPercentage:  aggOut.TruthPercentage,
		Confidence:       aggOut.Confidence,
		Verdict:          aggOut.Verdict,
		VerdictNarrative: aggOut.Narrative,
		ClaimVerdicts:    aggOut.Verdicts,
		ClaimBoundaries:  boundaryOut.Boundaries,
		Coverage:         coverage,
		QualityGates:     gates,
		Warnings:         warnings,
		GeneratedAt:      time.Now().UTC(),
	}

	usage := tracker.Snapshot()
	p.log.Info("pipeline: run finished",
		zap.String("run_id", runID),
		zap.String("status", string(assessment.Status)),
		zap.String("verdict", string(assessment.Verdict)),
		zap.Float64("truth_pct", assessment.TruthPercentage),
		zap.Int("claims", len(claims)),
		zap.Int("evidence", len(researchOut.Evidence)),
		zap.Int("tokens_used", usage.TokensUsed),
		zap.Int("calls_used", usage.CallsUsed),
		zap.Duration("elapsed", time.Since(started)))

	return assessment, nil
}

// runStatus classifies the run. Truncation (abort or budget) outranks
// fallback substitution; both outrank a clean run.
func runStatus(researchOut *research.Output, debateOut *debate.Output, gates model.QualityGates) model.RunStatus {
	switch {
	case researchOut.Aborted || researchOut.BudgetExhausted || debateOut.Aborted:
		return model.StatusDegraded
	case gates.ClusteringFallback || gates.DebateFallback:
		return model.StatusFallback
	default:
		return model.StatusOK
	}
}
