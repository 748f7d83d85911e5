package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veridex/internal/model"
	"github.com/ppiankov/veridex/internal/pipeline"
)

var (
	outJSON        string
	outMD          string
	verifyTimeout  time.Duration
	searchEndpoint string
	noCache        bool
	noFooter       bool
	insecureTLS    bool
	llmProvider    string
	llmStandard    string
	llmCheap       string
	maxIterations  int
	tokenBudget    int
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a claim against the open web",
	Long: `Verify runs the full pipeline over a single input:
- Decompose the input into atomic claims
- Research evidence with a bounded search/fetch/extract loop
- Cluster evidence scopes into assessment boundaries
- Debate each claim (advocate, challenge, reconcile, validate)
- Aggregate claim verdicts into one weighted assessment

Example:
  veridex verify "The Great Wall of China is visible from space"
  veridex verify "..." --json report.json --md report.md
  veridex verify "..." --llm-provider ollama --search http://localhost:8888/search`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// HTTP and search flags
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 10*time.Minute, "overall verification timeout")
	verifyCmd.Flags().StringVar(&searchEndpoint, "search", "", "SearxNG-compatible search endpoint URL")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the page cache (force fresh fetches)")
	verifyCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")

	// LLM flags
	verifyCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	verifyCmd.Flags().StringVar(&llmStandard, "llm-model", "", "standard-tier model name")
	verifyCmd.Flags().StringVar(&llmCheap, "llm-cheap-model", "", "cheap-tier model name")

	// Budget flags
	verifyCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override research iteration cap")
	verifyCmd.Flags().IntVar(&tokenBudget, "token-budget", 0, "override research token budget (0 = config default)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	input := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Verifying: %s\n", input)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", verifyTimeout)
		fmt.Fprintf(os.Stderr, "LLM: %s (%s / %s)\n", cfg.LLM.Provider, cfg.LLM.StandardModel, cfg.LLM.CheapModel)
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}

	assessment, err := p.Verify(ctx, input)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output)
	if err := renderer.Summary(os.Stdout, assessment); err != nil {
		return err
	}
	return writeReports(renderer, assessment, outJSON, outMD)
}

// buildConfig layers CLI flag overrides on the viper-resolved configuration
// and resolves the provider API key from the environment.
func buildConfig() (*model.Config, error) {
	cfg, err := model.LoadConfig()
	if err != nil {
		return nil, err
	}

	cfg.HTTP.InsecureTLS = cfg.HTTP.InsecureTLS || insecureTLS
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	cfg.Output.IncludeFooter = cfg.Output.IncludeFooter && !noFooter
	if noCache {
		cfg.Cache.Enabled = false
	}
	if searchEndpoint != "" {
		cfg.Search.Endpoint = searchEndpoint
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmStandard != "" {
		cfg.LLM.StandardModel = llmStandard
	}
	if llmCheap != "" {
		cfg.LLM.CheapModel = llmCheap
	}
	if maxIterations > 0 {
		cfg.Research.MaxIterations = maxIterations
	}
	if tokenBudget > 0 {
		cfg.Research.TokenBudget = tokenBudget
	}

	if err := resolveAPIKey(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// resolveAPIKey fills the provider credential from the environment when the
// configuration does not carry one.
func resolveAPIKey(cfg *model.Config) error {
	if cfg.LLM.APIKey != "" {
		return nil
	}
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

// writeReports writes the optional JSON and Markdown artifacts.
func writeReports(renderer *pipeline.Renderer, a *model.OverallAssessment, jsonPath, mdPath string) error {
	if jsonPath != "" {
		f, err := os.Create(jsonPath)
		if err != nil {
			return fmt.Errorf("create JSON report: %w", err)
		}
		if err := renderer.JSON(f, a); err != nil {
			_ = f.Close()
			return fmt.Errorf("write JSON report: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close JSON report: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", jsonPath)
		}
	}
	if mdPath != "" {
		f, err := os.Create(mdPath)
		if err != nil {
			return fmt.Errorf("create Markdown report: %w", err)
		}
		if err := renderer.Markdown(f, a); err != nil {
			_ = f.Close()
			return fmt.Errorf("write Markdown report: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close Markdown report: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", mdPath)
		}
	}
	return nil
}
