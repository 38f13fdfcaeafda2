package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ConfigError names the offending key alongside the underlying problem, so
// a caller can report "analysis.max_agents: must be positive" rather than
// a bare error string, per spec.md §7's error-handling taxonomy.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s: %v", e.Key, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

var errMustBePositive = errors.New("must be positive")
var errMustBeNonNegative = errors.New("must be non-negative")
var errUnknownValue = errors.New("unrecognized value")

var validFollowModels = map[string]bool{
	"random": true, "twitter_suggest": true, "agent": true,
	"preferential_agent": true, "hashtag": true, "twitter": true, "retweet": true,
}

var validAddFunctions = map[string]bool{"constant": true, "linear": true}

// Validate checks every key Config carries and returns every violation it
// finds via errors.Join, rather than stopping at the first, so a user
// configuring kmcsim for the first time sees the whole problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Analysis.MaxAgents <= 0 {
		errs = append(errs, &ConfigError{"analysis.max_agents", errMustBePositive})
	}
	if c.Analysis.InitialAgents < 0 {
		errs = append(errs, &ConfigError{"analysis.initial_agents", errMustBeNonNegative})
	}
	if c.Analysis.InitialAgents > c.Analysis.MaxAgents {
		errs = append(errs, &ConfigError{"analysis.initial_agents", fmt.Errorf("exceeds max_agents (%d)", c.Analysis.MaxAgents)})
	}
	if _, err := parseMaxTime(c.Analysis.MaxTime); err != nil {
		errs = append(errs, &ConfigError{"analysis.max_time", err})
	}
	if c.Analysis.FollowModel != "" && !validFollowModels[c.Analysis.FollowModel] {
		errs = append(errs, &ConfigError{"analysis.follow_model", fmt.Errorf("%w: %s", errUnknownValue, c.Analysis.FollowModel)})
	}
	if c.Analysis.UseBarabasi && c.Analysis.BarabasiConnections <= 0 {
		errs = append(errs, &ConfigError{"analysis.barabasi_connections", errMustBePositive})
	}
	if c.Analysis.FollowModel == "twitter" && len(c.Analysis.ModelWeights) == 0 {
		errs = append(errs, &ConfigError{"analysis.model_weights", errors.New("required when follow_model is twitter")})
	}
	for name, w := range c.Analysis.ModelWeights {
		if w < 0 {
			errs = append(errs, &ConfigError{"analysis.model_weights." + name, errMustBeNonNegative})
		}
	}

	if c.Rates.Add.Value < 0 {
		errs = append(errs, &ConfigError{"rates.add.value", errMustBeNonNegative})
	}
	if c.Rates.Add.Function != "" && !validAddFunctions[c.Rates.Add.Function] {
		errs = append(errs, &ConfigError{"rates.add.function", fmt.Errorf("%w: %s", errUnknownValue, c.Rates.Add.Function)})
	}

	if _, err := resolveDensity(c.TweetObservation); err != nil {
		errs = append(errs, &ConfigError{"tweet_observation.density_function", err})
	}
	if c.TweetObservation.XEnd <= c.TweetObservation.XStart {
		errs = append(errs, &ConfigError{"tweet_observation.x_end", errors.New("must exceed x_start")})
	}
	if c.TweetObservation.InitialResolution <= 0 {
		errs = append(errs, &ConfigError{"tweet_observation.initial_resolution", errMustBePositive})
	}
	if c.TweetObservation.ResolutionGrowthFactor < 1 {
		errs = append(errs, &ConfigError{"tweet_observation.resolution_growth_factor", errors.New("must be >= 1")})
	}

	if len(c.Ideologies) == 0 {
		errs = append(errs, &ConfigError{"ideologies", errors.New("at least one ideology is required")})
	}
	if len(c.Regions) == 0 {
		errs = append(errs, &ConfigError{"regions", errors.New("at least one region is required")})
	}
	if len(c.PreferenceClasses) == 0 {
		errs = append(errs, &ConfigError{"preference_classes", errors.New("at least one preference class is required")})
	}
	if len(c.Agents) == 0 {
		errs = append(errs, &ConfigError{"agents", errors.New("at least one agent type is required")})
	}
	for _, a := range c.Agents {
		if a.FollowbackProbability < 0 || a.FollowbackProbability > 1 {
			errs = append(errs, &ConfigError{"agents." + a.Type + ".followback_probability", errors.New("must be between 0 and 1")})
		}
		if a.Rates.Follow < 0 {
			errs = append(errs, &ConfigError{"agents." + a.Type + ".rates.follow", errMustBeNonNegative})
		}
		if a.Rates.Tweet < 0 {
			errs = append(errs, &ConfigError{"agents." + a.Type + ".rates.tweet", errMustBeNonNegative})
		}
	}

	return errors.Join(errs...)
}

// parseMaxTime accepts either "unlimited" or a non-negative numeric string,
// matching spec.md §6's "max_time (or \"unlimited\")".
func parseMaxTime(s string) (float64, error) {
	if strings.EqualFold(strings.TrimSpace(s), "unlimited") || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number or \"unlimited\": %w", err)
	}
	if v < 0 {
		return 0, errMustBeNonNegative
	}
	return v, nil
}
