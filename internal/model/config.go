package model

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the read-only snapshot of every threshold the pipeline consumes.
// The engines never hardcode these values; they receive this snapshot at
// construction time.
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Research    ResearchConfig    `mapstructure:"research" yaml:"research"`
	Boundary    BoundaryConfig    `mapstructure:"boundary" yaml:"boundary"`
	Debate      DebateConfig      `mapstructure:"debate" yaml:"debate"`
	Aggregate   AggregateConfig   `mapstructure:"aggregate" yaml:"aggregate"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
}

// HTTPConfig controls outbound fetch traffic.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	InsecureTLS  bool          `mapstructure:"insecure_tls" yaml:"insecure_tls"`
	HTTPProxy    string        `mapstructure:"http_proxy" yaml:"http_proxy"`
	HTTPSProxy   string        `mapstructure:"https_proxy" yaml:"https_proxy"`
	NoProxy      string        `mapstructure:"no_proxy" yaml:"no_proxy"`
}

// SearchConfig controls the web-search provider client.
type SearchConfig struct {
	Endpoint         string  `mapstructure:"endpoint" yaml:"endpoint"` // SearxNG-compatible JSON endpoint
	RequestsPerSec   float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	Burst            int     `mapstructure:"burst" yaml:"burst"`
	RespectRobots    bool    `mapstructure:"respect_robots" yaml:"respect_robots"`
	FetchConcurrency int     `mapstructure:"fetch_concurrency" yaml:"fetch_concurrency"`
}

// CacheConfig controls the layered page cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// LLMConfig selects the structured-call provider and its model tiers.
type LLMConfig struct {
	Provider      string `mapstructure:"provider" yaml:"provider"` // openai, anthropic, ollama
	StandardModel string `mapstructure:"standard_model" yaml:"standard_model"`
	CheapModel    string `mapstructure:"cheap_model" yaml:"cheap_model"`
	APIKey        string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout       int    `mapstructure:"timeout" yaml:"timeout"` // seconds, per call
	MaxTokens     int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries    int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// ResearchConfig bounds the evidence-research loop.
type ResearchConfig struct {
	MaxIterations          int `mapstructure:"max_iterations" yaml:"max_iterations"`
	ContradictionReserved  int `mapstructure:"contradiction_reserved" yaml:"contradiction_reserved"`
	ClaimSufficiency       int `mapstructure:"claim_sufficiency" yaml:"claim_sufficiency"`
	MaxSourcesPerIteration int `mapstructure:"max_sources_per_iteration" yaml:"max_sources_per_iteration"`
	MaxFetchPerIteration   int `mapstructure:"max_fetch_per_iteration" yaml:"max_fetch_per_iteration"`
	TokenBudget            int `mapstructure:"token_budget" yaml:"token_budget"`
	CallBudget             int `mapstructure:"call_budget" yaml:"call_budget"`
	TokensPerExtraction    int `mapstructure:"tokens_per_extraction" yaml:"tokens_per_extraction"` // reservation estimate

	MinProbativeValue string `mapstructure:"min_probative_value" yaml:"min_probative_value"`
}

// BoundaryConfig bounds the clustering stage.
type BoundaryConfig struct {
	MaxBoundaries    int     `mapstructure:"max_boundaries" yaml:"max_boundaries"`
	CoherenceMinimum float64 `mapstructure:"coherence_minimum" yaml:"coherence_minimum"`
}

// DebateConfig controls the five-step verdict debate.
type DebateConfig struct {
	SelfConsistency        bool    `mapstructure:"self_consistency" yaml:"self_consistency"`
	ConsistencyTemperature float64 `mapstructure:"consistency_temperature" yaml:"consistency_temperature"`

	SpreadStable   float64 `mapstructure:"spread_stable" yaml:"spread_stable"`
	SpreadModerate float64 `mapstructure:"spread_moderate" yaml:"spread_moderate"`
	SpreadUnstable float64 `mapstructure:"spread_unstable" yaml:"spread_unstable"`

	MultiplierStable   float64 `mapstructure:"multiplier_stable" yaml:"multiplier_stable"`
	MultiplierModerate float64 `mapstructure:"multiplier_moderate" yaml:"multiplier_moderate"`
	MultiplierUnstable float64 `mapstructure:"multiplier_unstable" yaml:"multiplier_unstable"`
	MultiplierVolatile float64 `mapstructure:"multiplier_volatile" yaml:"multiplier_volatile"`

	// Capped fallback bands for validation corrections without a suggested
	// percentage. One binary signal must not swing a verdict by tens of points.
	UpgradeBandLow    float64 `mapstructure:"upgrade_band_low" yaml:"upgrade_band_low"`
	UpgradeBandHigh   float64 `mapstructure:"upgrade_band_high" yaml:"upgrade_band_high"`
	DowngradeBandLow  float64 `mapstructure:"downgrade_band_low" yaml:"downgrade_band_low"`
	DowngradeBandHigh float64 `mapstructure:"downgrade_band_high" yaml:"downgrade_band_high"`

	HarmFloorLevels     []string `mapstructure:"harm_floor_levels" yaml:"harm_floor_levels"`
	HarmConfidenceFloor float64  `mapstructure:"harm_confidence_floor" yaml:"harm_confidence_floor"`

	TierHigh   float64 `mapstructure:"tier_high" yaml:"tier_high"`
	TierMedium float64 `mapstructure:"tier_medium" yaml:"tier_medium"`
}

// AggregateConfig controls the weighted-triangulated aggregation.
type AggregateConfig struct {
	CentralityHigh   float64 `mapstructure:"centrality_high" yaml:"centrality_high"`
	CentralityMedium float64 `mapstructure:"centrality_medium" yaml:"centrality_medium"`
	CentralityLow    float64 `mapstructure:"centrality_low" yaml:"centrality_low"`

	HarmHigh   float64 `mapstructure:"harm_high" yaml:"harm_high"`
	HarmMedium float64 `mapstructure:"harm_medium" yaml:"harm_medium"`
	HarmLow    float64 `mapstructure:"harm_low" yaml:"harm_low"`

	TriangulationStrong   float64 `mapstructure:"triangulation_strong" yaml:"triangulation_strong"`
	TriangulationModerate float64 `mapstructure:"triangulation_moderate" yaml:"triangulation_moderate"`
	TriangulationWeak     float64 `mapstructure:"triangulation_weak" yaml:"triangulation_weak"`

	DerivativeMultiplier float64 `mapstructure:"derivative_multiplier" yaml:"derivative_multiplier"`
	NarrativeTopClaims   int     `mapstructure:"narrative_top_claims" yaml:"narrative_top_claims"`
}

// ConcurrencyConfig bounds in-stage parallelism.
type ConcurrencyConfig struct {
	ExtractionWorkers int `mapstructure:"extraction_workers" yaml:"extraction_workers"`
	BatchWorkers      int `mapstructure:"batch_workers" yaml:"batch_workers"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Verbose       bool `mapstructure:"verbose" yaml:"verbose"`
	IncludeFooter bool `mapstructure:"include_footer" yaml:"include_footer"`
}

// DefaultConfig returns the built-in defaults for every threshold.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Veridex/0.1 (+https://github.com/ppiankov/veridex)",
			MaxBodyBytes: 2_000_000,
		},
		Search: SearchConfig{
			Endpoint:         "",
			RequestsPerSec:   1.0,
			Burst:            5,
			RespectRobots:    true,
			FetchConcurrency: 5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:      "openai",
			StandardModel: "gpt-4o",
			CheapModel:    "gpt-4o-mini",
			Timeout:       60,
			MaxTokens:     4000,
			MaxRetries:    2,
		},
		Research: ResearchConfig{
			MaxIterations:          7,
			ContradictionReserved:  2,
			ClaimSufficiency:       3,
			MaxSourcesPerIteration: 8,
			MaxFetchPerIteration:   5,
			TokenBudget:            150_000,
			CallBudget:             60,
			TokensPerExtraction:    2_500,
			MinProbativeValue:      "medium",
		},
		Boundary: BoundaryConfig{
			MaxBoundaries:    6,
			CoherenceMinimum: 0.3,
		},
		Debate: DebateConfig{
			SelfConsistency:        true,
			ConsistencyTemperature: 0.9,
			SpreadStable:           5,
			SpreadModerate:         12,
			SpreadUnstable:         20,
			MultiplierStable:       1.0,
			MultiplierModerate:     0.9,
			MultiplierUnstable:     0.75,
			MultiplierVolatile:     0.6,
			UpgradeBandLow:         55,
			UpgradeBandHigh:        75,
			DowngradeBandLow:       25,
			DowngradeBandHigh:      45,
			HarmFloorLevels:        []string{"high"},
			HarmConfidenceFloor:    60,
			TierHigh:               70,
			TierMedium:             40,
		},
		Aggregate: AggregateConfig{
			CentralityHigh:        1.0,
			CentralityMedium:      0.6,
			CentralityLow:         0.3,
			HarmHigh:              1.25,
			HarmMedium:            1.0,
			HarmLow:               0.9,
			TriangulationStrong:   0.15,
			TriangulationModerate: 0.05,
			TriangulationWeak:     -0.10,
			DerivativeMultiplier:  0.5,
			NarrativeTopClaims:    7,
		},
		Concurrency: ConcurrencyConfig{
			ExtractionWorkers: 3,
			BatchWorkers:      2,
		},
		Output: OutputConfig{
			Verbose:       false,
			IncludeFooter: true,
		},
	}
}

// LoadConfig layers the viper-resolved file and environment values over the
// defaults. Unknown keys in the file are an error so typos surface early.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engines cannot run under.
func (c *Config) Validate() error {
	if c.Research.MaxIterations <= c.Research.ContradictionReserved {
		return fmt.Errorf("research.max_iterations (%d) must exceed research.contradiction_reserved (%d)",
			c.Research.MaxIterations, c.Research.ContradictionReserved)
	}
	if c.Boundary.MaxBoundaries < 1 {
		return fmt.Errorf("boundary.max_boundaries must be at least 1, got %d", c.Boundary.MaxBoundaries)
	}
	if c.Boundary.CoherenceMinimum < 0 || c.Boundary.CoherenceMinimum > 1 {
		return fmt.Errorf("boundary.coherence_minimum must be in [0,1], got %.2f", c.Boundary.CoherenceMinimum)
	}
	if c.Debate.SpreadStable > c.Debate.SpreadModerate || c.Debate.SpreadModerate > c.Debate.SpreadUnstable {
		return fmt.Errorf("debate spread thresholds must be non-decreasing: %.0f/%.0f/%.0f",
			c.Debate.SpreadStable, c.Debate.SpreadModerate, c.Debate.SpreadUnstable)
	}
	if c.Concurrency.ExtractionWorkers < 1 {
		return fmt.Errorf("concurrency.extraction_workers must be at least 1, got %d", c.Concurrency.ExtractionWorkers)
	}
	return nil
}

// HarmFloorApplies reports whether the harm confidence floor covers the level.
func (c *DebateConfig) HarmFloorApplies(harm Level) bool {
	for _, l := range c.HarmFloorLevels {
		if Level(l) == harm {
			return true
		}
	}
	return false
}
