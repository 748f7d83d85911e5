package debate

import (
	"github.com/ppiankov/veridex/internal/model"
)

// spreadOf returns max - min across the samples.
func spreadOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	min, max := samples[0], samples[0]
	for _, s := range samples[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return max - min
}

// bucketSpread maps a self-consistency spread to its stability bucket and
// the confidence multiplier that bucket carries. The multiplier applies to
// confidence only, never to the truth percentage.
func bucketSpread(spread float64, cfg model.DebateConfig) (model.Stability, float64) {
	switch {
	case spread <= cfg.SpreadStable:
		return model.StabilityStable, cfg.MultiplierStable
	case spread <= cfg.SpreadModerate:
		return model.StabilityModerate, cfg.MultiplierModerate
	case spread <= cfg.SpreadUnstable:
		return model.StabilityUnstable, cfg.MultiplierUnstable
	default:
		return model.StabilityVolatile, cfg.MultiplierVolatile
	}
}

// consistencyFor builds the ConsistencyResult for one claim from the step-1
// value and the two elevated-temperature resamples.
func consistencyFor(step1 float64, resamples []float64, cfg model.DebateConfig) *model.ConsistencyResult {
	samples := append([]float64{step1}, resamples...)
	spread := spreadOf(samples)
	stability, multiplier := bucketSpread(spread, cfg)
	return &model.ConsistencyResult{
		Samples:    samples,
		Spread:     spread,
		Stability:  stability,
		Multiplier: multiplier,
	}
}
