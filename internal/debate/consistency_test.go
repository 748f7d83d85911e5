package debate

import (
	"testing"

	"github.com/ppiankov/veridex/internal/model"
)

func testDebateConfig() model.DebateConfig {
	return model.DefaultConfig().Debate
}

func TestSpreadOf(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"empty", nil, 0},
		{"single", []float64{70}, 0},
		{"identical", []float64{70, 70, 70}, 0},
		{"ordered", []float64{60, 70, 80}, 20},
		{"unordered", []float64{80, 60, 70}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spreadOf(tt.samples); got != tt.want {
				t.Errorf("spreadOf(%v) = %v, want %v", tt.samples, got, tt.want)
			}
		})
	}
}

func TestBucketSpread(t *testing.T) {
	cfg := testDebateConfig()

	tests := []struct {
		spread     float64
		stability  model.Stability
		multiplier float64
	}{
		{0, model.StabilityStable, 1.0},
		{5, model.StabilityStable, 1.0},
		{6, model.StabilityModerate, 0.9},
		{12, model.StabilityModerate, 0.9},
		{13, model.StabilityUnstable, 0.75},
		{20, model.StabilityUnstable, 0.75},
		{21, model.StabilityVolatile, 0.6},
		{55, model.StabilityVolatile, 0.6},
	}

	for _, tt := range tests {
		stability, multiplier := bucketSpread(tt.spread, cfg)
		if stability != tt.stability || multiplier != tt.multiplier {
			t.Errorf("bucketSpread(%v) = %s/%v, want %s/%v",
				tt.spread, stability, multiplier, tt.stability, tt.multiplier)
		}
	}
}

func TestConsistencyForIncludesStepOne(t *testing.T) {
	cfg := testDebateConfig()

	// Resamples agree with each other but not with step 1: the spread must
	// still see the step-1 value.
	c := consistencyFor(40, []float64{70, 72}, cfg)
	if len(c.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(c.Samples))
	}
	if c.Spread != 32 {
		t.Errorf("expected spread 32, got %v", c.Spread)
	}
	if c.Stability != model.StabilityVolatile {
		t.Errorf("expected volatile, got %s", c.Stability)
	}
	if c.Multiplier != cfg.MultiplierVolatile {
		t.Errorf("expected volatile multiplier, got %v", c.Multiplier)
	}
}

func TestConsistencyMultiplierNeverTouchesTruth(t *testing.T) {
	cfg := testDebateConfig()
	verdicts := []wireVerdict{{ClaimID: "c-1", TruthPercentage: 80, Confidence: 90}}
	consistency := map[string]*model.ConsistencyResult{
		"c-1": consistencyFor(80, []float64{50, 95}, cfg),
	}

	out := toModel(verdicts, consistency, cfg)
	if out[0].TruthPercentage != 80 {
		t.Errorf("truth must not change: got %v", out[0].TruthPercentage)
	}
	want := 90 * cfg.MultiplierVolatile
	if out[0].Confidence != want {
		t.Errorf("confidence = %v, want %v", out[0].Confidence, want)
	}
}
