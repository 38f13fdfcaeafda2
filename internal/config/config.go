// Package config loads and validates kmcsim's YAML configuration, and
// builds the typed parameter structs internal/kmc, internal/network and
// internal/tweetbank need from it. Grounded on the teacher pack's
// internal/config.FloopConfig: a yaml+json double-tagged struct tree, a
// Default() baseline, LoadFromFile, and a Validate() that reports every
// offending key rather than stopping at the first.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of kmcsim's configuration document, covering every
// key spec.md §6 enumerates.
type Config struct {
	Analysis          AnalysisConfig            `json:"analysis" yaml:"analysis"`
	Rates             RatesConfig               `json:"rates" yaml:"rates"`
	Output            OutputConfig              `json:"output" yaml:"output"`
	TweetObservation  TweetObservationConfig    `json:"tweet_observation" yaml:"tweet_observation"`
	Ideologies        []IdeologyConfig          `json:"ideologies" yaml:"ideologies"`
	Regions           []RegionConfig            `json:"regions" yaml:"regions"`
	PreferenceClasses []PreferenceClassConfig   `json:"preference_classes" yaml:"preference_classes"`
	Agents            []AgentTypeConfig         `json:"agents" yaml:"agents"`
}

// AnalysisConfig mirrors spec.md §6's `analysis.*` key group.
type AnalysisConfig struct {
	InitialAgents         int             `json:"initial_agents" yaml:"initial_agents"`
	MaxAgents             int             `json:"max_agents" yaml:"max_agents"`
	MaxTime               string          `json:"max_time" yaml:"max_time"` // numeric string or "unlimited"
	MaxAnalysisSteps      int64           `json:"max_analysis_steps" yaml:"max_analysis_steps"`
	MaxRealTime           time.Duration   `json:"max_real_time" yaml:"max_real_time"`
	EnableInteractiveMode bool            `json:"enable_interactive_mode" yaml:"enable_interactive_mode"`
	UseBarabasi           bool            `json:"use_barabasi" yaml:"use_barabasi"`
	BarabasiConnections   int             `json:"barabasi_connections" yaml:"barabasi_connections"`
	BarabasiExponent      float64         `json:"barabasi_exponent" yaml:"barabasi_exponent"`
	UseRandomTimeIncrement bool           `json:"use_random_time_increment" yaml:"use_random_time_increment"`
	UseFollowback         bool            `json:"use_followback" yaml:"use_followback"`
	UseFollowViaRetweets  bool            `json:"use_follow_via_retweets" yaml:"use_follow_via_retweets"`
	FollowModel           string          `json:"follow_model" yaml:"follow_model"`
	ModelWeights          map[string]float64 `json:"model_weights" yaml:"model_weights"`
	Stage1Unfollow        bool            `json:"stage1_unfollow" yaml:"stage1_unfollow"`
	UnfollowTweetRate     float64         `json:"unfollow_tweet_rate" yaml:"unfollow_tweet_rate"`
	UseHashtagProbability float64         `json:"use_hashtag_probability" yaml:"use_hashtag_probability"`
	RecalcInterval        int64           `json:"recalc_interval" yaml:"recalc_interval"`
}

// RatesConfig holds the `rates.add` key group; `rates.follow`/`rates.tweet`
// live per agent type under AgentTypeConfig instead, per spec.md §6.
type RatesConfig struct {
	Add RateFunctionConfig `json:"add" yaml:"add"`
}

// RateFunctionConfig is the `{function, value}` shape spec.md §6 names for
// rates.add.
type RateFunctionConfig struct {
	Function string  `json:"function" yaml:"function"` // "constant" | "linear"
	Value    float64 `json:"value" yaml:"value"`
}

// OutputConfig holds cadences and toggles for each statistic (spec.md §6).
type OutputConfig struct {
	TimeSeriesPath   string `json:"time_series_path" yaml:"time_series_path"`
	Cadence          int64  `json:"cadence" yaml:"cadence"`
	EnableGraphDump  bool   `json:"enable_graph_dump" yaml:"enable_graph_dump"`
	EnableAgentStats bool   `json:"enable_agent_stats" yaml:"enable_agent_stats"`
	EnableWebsocket  bool   `json:"enable_websocket" yaml:"enable_websocket"`
	WebsocketAddr    string `json:"websocket_addr" yaml:"websocket_addr"`
	SnapshotPath     string `json:"snapshot_path" yaml:"snapshot_path"`
	SnapshotCadence  int64  `json:"snapshot_cadence" yaml:"snapshot_cadence"`
}

// TweetObservationConfig mirrors spec.md §4.4/§6's observation-schedule
// parameters.
type TweetObservationConfig struct {
	DensityFunction       string  `json:"density_function" yaml:"density_function"`
	DensityParams         map[string]float64 `json:"density_params" yaml:"density_params"`
	XStart                float64 `json:"x_start" yaml:"x_start"`
	XEnd                  float64 `json:"x_end" yaml:"x_end"`
	InitialResolution     float64 `json:"initial_resolution" yaml:"initial_resolution"`
	ResolutionGrowthFactor float64 `json:"resolution_growth_factor" yaml:"resolution_growth_factor"`
	TimeSpan              float64 `json:"time_span" yaml:"time_span"`
}

// IdeologyConfig names one ideology bucket and its population add-weight.
type IdeologyConfig struct {
	Name      string  `json:"name" yaml:"name"`
	AddWeight float64 `json:"add_weight" yaml:"add_weight"`
}

// RegionConfig names one region and the weight tables spec.md §6 attaches
// to it: add weight plus the preference/ideology/language distributions
// drawn for agents created in this region.
type RegionConfig struct {
	Name                   string             `json:"name" yaml:"name"`
	AddWeight              float64            `json:"add_weight" yaml:"add_weight"`
	PreferenceClassWeights map[string]float64 `json:"preference_class_weights" yaml:"preference_class_weights"`
	IdeologyWeights        map[string]float64 `json:"ideology_weights" yaml:"ideology_weights"`
	LanguageWeights        map[string]float64 `json:"language_weights" yaml:"language_weights"`
}

// PreferenceClassConfig names one preference class and its
// tweet_transmission table, keyed by {plain, different_ideology,
// same_ideology, humorous} x agent type.
type PreferenceClassConfig struct {
	Name              string                        `json:"name" yaml:"name"`
	TweetTransmission map[string]map[string]float64 `json:"tweet_transmission" yaml:"tweet_transmission"`
}

// AgentTypeConfig holds the per-agent-type weight and rate tables spec.md
// §6's `agents.*` group names.
type AgentTypeConfig struct {
	Type                  string               `json:"type" yaml:"type"`
	Weights               AgentWeightsConfig   `json:"weights" yaml:"weights"`
	FollowbackProbability float64              `json:"followback_probability" yaml:"followback_probability"`
	HashtagFollowOptions  HashtagOptionsConfig `json:"hashtag_follow_options" yaml:"hashtag_follow_options"`
	Rates                 AgentRatesConfig     `json:"rates" yaml:"rates"`
}

// AgentRatesConfig holds one agent type's `rates.follow`/`rates.tweet`
// action-initiation rates (spec.md §6), distinct from the per-follower
// reaction weight AgentWeightsConfig.Follow feeds into a tweeter's
// FollowerSet.
type AgentRatesConfig struct {
	Follow float64 `json:"follow" yaml:"follow"`
	Tweet  float64 `json:"tweet" yaml:"tweet"`
}

// AgentWeightsConfig holds the `weights.add`/`weights.follow`/
// `weights.tweet_type` keys spec.md §6 names for one agent type.
type AgentWeightsConfig struct {
	Add       float64            `json:"add" yaml:"add"`
	Follow    float64            `json:"follow" yaml:"follow"`
	TweetType map[string]float64 `json:"tweet_type" yaml:"tweet_type"`
}

// HashtagOptionsConfig configures HashtagFollow's candidate filtering for
// one agent type.
type HashtagOptionsConfig struct {
	FilterSameRegion   bool `json:"filter_same_region" yaml:"filter_same_region"`
	FilterSameIdeology bool `json:"filter_same_ideology" yaml:"filter_same_ideology"`
}

// Default returns a Config with the same baseline the teacher's Default()
// supplies: small, internally consistent, safe to run as-is.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			InitialAgents:          0,
			MaxAgents:              1000,
			MaxTime:                "unlimited",
			UseRandomTimeIncrement: true,
			UseFollowback:          true,
			FollowModel:            "random",
			RecalcInterval:         1000,
		},
		Rates: RatesConfig{
			Add: RateFunctionConfig{Function: "constant", Value: 0.001},
		},
		Output: OutputConfig{
			TimeSeriesPath: "kmcsim.out",
			Cadence:        1,
		},
		TweetObservation: TweetObservationConfig{
			DensityFunction:        "power_law",
			DensityParams:          map[string]float64{"a": 1, "b": 1.1},
			XStart:                 1.0,
			XEnd:                   480.0,
			InitialResolution:      1.0,
			ResolutionGrowthFactor: 1.2,
			TimeSpan:               480.0,
		},
	}
}

// LoadFromFile reads and parses a YAML config file, layering it over
// Default() the way the teacher's LoadFromFile does.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Hash returns a stable content hash of cfg, used as model.RunSnapshot's
// ConfigHash so a resumed run can detect it was reconfigured (spec.md §6).
func (c *Config) Hash() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config: hashing: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
