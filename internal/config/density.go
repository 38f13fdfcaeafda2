package config

import (
	"fmt"

	"kmcsim/internal/tweetbank"
)

// resolveDensity maps the config's density_function name and density_params
// table to a concrete tweetbank.Density. spec.md §6 describes
// density_function as "an expression in x"; the pack carries no expression
// evaluation library (the only expr-shaped dependency anywhere in the
// examples, cel.dev/expr, is a transitive proto dependency nothing actually
// imports, not a usable evaluator), so kmcsim instead exposes a small named
// registry of the density shapes tweetbank actually implements. Every
// scenario in spec.md §8 needs only the power-law density.
func resolveDensity(cfg TweetObservationConfig) (tweetbank.Density, error) {
	switch cfg.DensityFunction {
	case "", "power_law":
		a, hasA := cfg.DensityParams["a"]
		b, hasB := cfg.DensityParams["b"]
		if !hasA {
			a = 1
		}
		if !hasB {
			b = 1.1
		}
		if b <= 0 {
			return nil, fmt.Errorf("power_law: density_params.b must be positive, got %v", b)
		}
		return tweetbank.PowerLawDensity{A: a, B: b}, nil
	default:
		return nil, fmt.Errorf("unrecognized density_function %q (supported: power_law)", cfg.DensityFunction)
	}
}

// BuildObservationSchedule integrates the configured density into a
// tweetbank.ObservationSchedule.
func (c *Config) BuildObservationSchedule() (tweetbank.ObservationSchedule, error) {
	density, err := resolveDensity(c.TweetObservation)
	if err != nil {
		return tweetbank.ObservationSchedule{}, fmt.Errorf("config: %w", err)
	}
	return tweetbank.BuildObservationSchedule(
		density,
		c.TweetObservation.XStart,
		c.TweetObservation.XEnd,
		c.TweetObservation.InitialResolution,
		c.TweetObservation.ResolutionGrowthFactor,
	), nil
}
