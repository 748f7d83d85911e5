package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/pipeline"
	"github.com/ppiankov/veridex/internal/worker"
)

var (
	batchWorkers int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify multiple claims from a file in parallel",
	Long: `Batch verifies multiple claims concurrently:
- Read claims from input file (one per line, # comments skipped)
- Verify claims in parallel with a configurable worker count
- Generate individual JSON and Markdown reports for each claim

Example:
  veridex batch claims.txt
  veridex batch claims.txt --workers 4 --output-dir ./reports
  veridex batch claims.txt --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "number of concurrent verifications (0 = config default)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./veridex-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 60*time.Minute, "total timeout for batch processing")

	// Shared with verify
	batchCmd.Flags().StringVar(&searchEndpoint, "search", "", "SearxNG-compatible search endpoint URL")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the page cache (force fresh fetches)")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmStandard, "llm-model", "", "standard-tier model name")
	batchCmd.Flags().StringVar(&llmCheap, "llm-cheap-model", "", "cheap-tier model name")
}

// batchJob verifies one claim and writes its reports.
type batchJob struct {
	input    string
	pipeline *pipeline.Pipeline
	renderer *pipeline.Renderer
	dir      string
}

type batchResult struct {
	input      string
	assessment *model.OverallAssessment
	err        error
}

func (r *batchResult) GetError() error { return r.err }

func (j *batchJob) Execute(ctx context.Context) worker.Result {
	assessment, err := j.pipeline.Verify(ctx, j.input)
	if err != nil {
		return &batchResult{input: j.input, err: err}
	}

	slug := claimSlug(j.input)
	jsonPath := filepath.Join(j.dir, slug+".json")
	mdPath := filepath.Join(j.dir, slug+".md")
	if err := writeReports(j.renderer, assessment, jsonPath, mdPath); err != nil {
		return &batchResult{input: j.input, err: err}
	}
	return &batchResult{input: j.input, assessment: assessment}
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	if batchWorkers > 0 {
		cfg.Concurrency.BatchWorkers = batchWorkers
	}

	claims, err := readClaims(file)
	if err != nil {
		return err
	}
	if len(claims) == 0 {
		return fmt.Errorf("no claims found in %s", file)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}
	renderer := pipeline.NewRenderer(cfg.Output)

	fmt.Fprintf(os.Stderr, "Verifying %d claims with %d workers, reports in %s\n\n",
		len(claims), cfg.Concurrency.BatchWorkers, outputDir)

	jobs := make([]worker.Job, 0, len(claims))
	for _, claim := range claims {
		jobs = append(jobs, &batchJob{input: claim, pipeline: p, renderer: renderer, dir: outputDir})
	}

	group := worker.NewGroup(cfg.Concurrency.BatchWorkers)
	successes, failures := group.Run(ctx, jobs)

	for _, res := range successes {
		r := res.(*batchResult)
		fmt.Fprintf(os.Stderr, "✓ %s: %s (truth %.0f%%)\n",
			truncateClaim(r.input), r.assessment.Verdict, r.assessment.TruthPercentage)
	}
	for _, res := range failures {
		if r, ok := res.(*batchResult); ok {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", truncateClaim(r.input), r.err)
		}
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete: %d succeeded, %d failed, reports in %s\n",
		len(successes), len(failures), outputDir)
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d verifications failed", len(failures), len(claims))
	}
	return nil
}

// readClaims loads one claim per line, skipping blanks and # comments.
func readClaims(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open claims file: %w", err)
	}
	defer f.Close()

	var claims []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		claims = append(claims, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read claims file: %w", err)
	}
	return claims, nil
}

// claimSlug derives a filesystem-safe report name from the claim text.
func claimSlug(claim string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(claim) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		s = "claim"
	}
	return s
}

func truncateClaim(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
