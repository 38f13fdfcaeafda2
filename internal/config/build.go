package config

import (
	"fmt"

	"kmcsim/internal/kmc"
	"kmcsim/internal/model"
	"kmcsim/internal/network"
)

// ToNetworkParams translates the population/weight sections of Config into
// a network.Params. Per-region preference/ideology/language tables are
// flattened into the single independent-draw weight lists network.Params
// models, proportionally combined by each region's own add_weight — a
// simplification documented in DESIGN.md: internal/network draws an
// agent's axes independently rather than conditioning them jointly on the
// region drawn, which this pack's RateTree design does not represent.
func (c *Config) ToNetworkParams() (network.Params, error) {
	typeWeights, err := typeWeightList(c.Agents)
	if err != nil {
		return network.Params{}, err
	}
	regionWeights, err := regionWeightList(c.Regions)
	if err != nil {
		return network.Params{}, err
	}
	catalogIdeologyWeights, err := ideologyWeightList(c.Ideologies)
	if err != nil {
		return network.Params{}, err
	}
	regionIdeologyWeights, err := flattenRegionTable(c.Regions, func(r RegionConfig) map[string]float64 { return r.IdeologyWeights }, parseIdeology)
	if err != nil {
		return network.Params{}, err
	}
	ideologyWeights := mergeWeights(catalogIdeologyWeights, regionIdeologyWeights)
	languageWeights, err := flattenRegionTable(c.Regions, func(r RegionConfig) map[string]float64 { return r.LanguageWeights }, parseLanguage)
	if err != nil {
		return network.Params{}, err
	}
	preferenceWeights, err := flattenRegionTable(c.Regions, func(r RegionConfig) map[string]float64 { return r.PreferenceClassWeights }, parsePreferenceClass)
	if err != nil {
		return network.Params{}, err
	}
	tweetTransmission, err := tweetTransmissionTable(c.PreferenceClasses)
	if err != nil {
		return network.Params{}, err
	}
	tweetTypeWeights, err := tweetTypeWeightsByType(c.Agents)
	if err != nil {
		return network.Params{}, err
	}

	followRateByType := map[model.AgentType]float64{}
	followbackByType := map[model.AgentType]float64{}
	agentTypeFollowWeight := map[model.AgentType]float64{}
	actionFollowByType := map[model.AgentType]float64{}
	actionTweetByType := map[model.AgentType]float64{}

	for _, a := range c.Agents {
		t, err := parseAgentType(a.Type)
		if err != nil {
			return network.Params{}, fmt.Errorf("config: agents: %w", err)
		}
		followRateByType[t] = a.Weights.Follow
		followbackByType[t] = a.FollowbackProbability
		// spec.md §6 names no dedicated weight for "how often AgentTypeFollow
		// picks this type"; reusing weights.add (the agent-creation weight)
		// keeps the type-selection distribution consistent with population
		// composition rather than inventing an unconfigured third weight.
		agentTypeFollowWeight[t] = a.Weights.Add
		actionFollowByType[t] = a.Rates.Follow
		actionTweetByType[t] = a.Rates.Tweet
	}

	return network.Params{
		MaxAgents:              c.Analysis.MaxAgents,
		TypeWeights:            typeWeights,
		RegionWeights:          regionWeights,
		LanguageWeights:        languageWeights,
		IdeologyWeights:        ideologyWeights,
		PreferenceClassWeights: preferenceWeights,
		FollowRateByType:       followRateByType,
		FollowbackProbability:  followbackByType,
		AgentTypeFollowWeight:  agentTypeFollowWeight,
		ActionFollowRateByType: actionFollowByType,
		ActionTweetRateByType:  actionTweetByType,
		TweetTypeWeights:       tweetTypeWeights,
		TweetTransmission:      tweetTransmission,
		RetweetRingCapacity:    defaultRetweetRingCapacity,
		DistanceBins:           defaultDistanceBins,
		StageOneUnfollow:       c.Analysis.Stage1Unfollow,
		UnfollowTweetRateThreshold: c.Analysis.UnfollowTweetRate,
		UseBarabasi:                c.Analysis.UseBarabasi,
		BarabasiConnections:        c.Analysis.BarabasiConnections,
		BarabasiExponent:           c.Analysis.BarabasiExponent,
	}, nil
}

// mergeWeights sums two weight lists by key, preserving a's key order and
// appending any keys b introduces that a didn't already carry. Used to
// combine the top-level `ideologies` catalog weight with each region's
// conditional `ideology_weights` contribution, since spec.md §6 carries
// both a flat ideology list and a per-region table for the same axis.
func mergeWeights[K comparable](a, b []network.Weight[K]) []network.Weight[K] {
	totals := make(map[K]float64, len(a)+len(b))
	var order []K
	for _, w := range a {
		if _, seen := totals[w.Key]; !seen {
			order = append(order, w.Key)
		}
		totals[w.Key] += w.Value
	}
	for _, w := range b {
		if _, seen := totals[w.Key]; !seen {
			order = append(order, w.Key)
		}
		totals[w.Key] += w.Value
	}
	out := make([]network.Weight[K], 0, len(order))
	for _, key := range order {
		out = append(out, network.Weight[K]{Key: key, Value: totals[key]})
	}
	return out
}

// tweetTransmissionTable converts each preference class's
// tweet_transmission table (string-keyed in YAML) into the
// model.PreferenceClass/model.AgentType-keyed form network.Params carries.
func tweetTransmissionTable(classes []PreferenceClassConfig) (map[model.PreferenceClass]map[string]map[model.AgentType]float64, error) {
	out := make(map[model.PreferenceClass]map[string]map[model.AgentType]float64, len(classes))
	for _, pc := range classes {
		class, err := parsePreferenceClass(pc.Name)
		if err != nil {
			return nil, fmt.Errorf("config: preference_classes: %w", err)
		}
		byCategory := make(map[string]map[model.AgentType]float64, len(pc.TweetTransmission))
		for category, byTypeName := range pc.TweetTransmission {
			byType := make(map[model.AgentType]float64, len(byTypeName))
			for typeName, weight := range byTypeName {
				t, err := parseAgentType(typeName)
				if err != nil {
					return nil, fmt.Errorf("config: preference_classes.%s.tweet_transmission.%s: %w", pc.Name, category, err)
				}
				byType[t] = weight
			}
			byCategory[category] = byType
		}
		out[class] = byCategory
	}
	return out, nil
}

// tweetTypeWeightsByType converts each agent type's weights.tweet_type
// table into the model.ContentType-keyed weighted-draw list
// network.Params.TweetTypeWeights needs.
func tweetTypeWeightsByType(agents []AgentTypeConfig) (map[model.AgentType][]network.Weight[model.ContentType], error) {
	out := make(map[model.AgentType][]network.Weight[model.ContentType], len(agents))
	for _, a := range agents {
		t, err := parseAgentType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("config: agents: %w", err)
		}
		weights := make([]network.Weight[model.ContentType], 0, len(a.Weights.TweetType))
		for name, w := range a.Weights.TweetType {
			ct, err := parseContentType(name)
			if err != nil {
				return nil, fmt.Errorf("config: agents.%s.weights.tweet_type: %w", a.Type, err)
			}
			weights = append(weights, network.Weight[model.ContentType]{Key: ct, Value: w})
		}
		out[t] = weights
	}
	return out, nil
}

const (
	defaultRetweetRingCapacity = 8
	defaultDistanceBins        = 3
)

func typeWeightList(agents []AgentTypeConfig) ([]network.Weight[model.AgentType], error) {
	out := make([]network.Weight[model.AgentType], 0, len(agents))
	for _, a := range agents {
		t, err := parseAgentType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("config: agents: %w", err)
		}
		out = append(out, network.Weight[model.AgentType]{Key: t, Value: a.Weights.Add})
	}
	return out, nil
}

func regionWeightList(regions []RegionConfig) ([]network.Weight[model.Region], error) {
	out := make([]network.Weight[model.Region], 0, len(regions))
	for _, r := range regions {
		region, err := parseRegion(r.Name)
		if err != nil {
			return nil, fmt.Errorf("config: regions: %w", err)
		}
		out = append(out, network.Weight[model.Region]{Key: region, Value: r.AddWeight})
	}
	return out, nil
}

func ideologyWeightList(ideologies []IdeologyConfig) ([]network.Weight[model.Ideology], error) {
	out := make([]network.Weight[model.Ideology], 0, len(ideologies))
	for _, i := range ideologies {
		ideology, err := parseIdeology(i.Name)
		if err != nil {
			return nil, fmt.Errorf("config: ideologies: %w", err)
		}
		out = append(out, network.Weight[model.Ideology]{Key: ideology, Value: i.AddWeight})
	}
	return out, nil
}

// flattenRegionTable combines every region's named sub-table into one
// independent-draw weight list, scaling each region's entries by that
// region's own add_weight so a populous region's language/preference mix
// dominates the flattened distribution proportionally.
func flattenRegionTable[K comparable](
	regions []RegionConfig,
	table func(RegionConfig) map[string]float64,
	parse func(string) (K, error),
) ([]network.Weight[K], error) {
	totals := make(map[K]float64)
	var order []K
	for _, r := range regions {
		for name, w := range table(r) {
			key, err := parse(name)
			if err != nil {
				return nil, fmt.Errorf("config: regions.%s: %w", r.Name, err)
			}
			if _, seen := totals[key]; !seen {
				order = append(order, key)
			}
			totals[key] += w * r.AddWeight
		}
	}
	out := make([]network.Weight[K], 0, len(order))
	for _, key := range order {
		out = append(out, network.Weight[K]{Key: key, Value: totals[key]})
	}
	return out, nil
}

// ToKMCParams translates the analysis/rates sections of Config into a
// kmc.Params. followModel must already be built (see BuildFollowModel);
// it is threaded in separately because constructing it may need a clock
// closure the config package itself has no business owning.
func (c *Config) ToKMCParams(followModel network.FollowModel) (kmc.Params, error) {
	maxTime, err := parseMaxTime(c.Analysis.MaxTime)
	if err != nil {
		return kmc.Params{}, fmt.Errorf("config: analysis.max_time: %w", err)
	}

	var addRate kmc.AddRateFunc
	switch c.Rates.Add.Function {
	case "linear":
		addRate = kmc.LinearAddRate(c.Rates.Add.Value)
	default:
		addRate = kmc.ConstantAddRate(c.Rates.Add.Value)
	}

	return kmc.Params{
		MaxAgents:              c.Analysis.MaxAgents,
		MaxTime:                model.SimTime(maxTime),
		MaxSteps:               c.Analysis.MaxAnalysisSteps,
		MaxRealTime:            c.Analysis.MaxRealTime,
		AddRate:                addRate,
		UseRandomTimeIncrement: c.Analysis.UseRandomTimeIncrement,
		UseFollowback:          c.Analysis.UseFollowback,
		UseFollowViaRetweets:   c.Analysis.UseFollowViaRetweets,
		RecalcInterval:         c.Analysis.RecalcInterval,
		FollowModel:            followModel,
		RetweetWindow:          model.SimTime(48 * 60),
	}, nil
}

// BuildFollowModel constructs the network.FollowModel the configured
// `analysis.follow_model` names, wiring HashtagFollow's per-type options
// and CompositeFollow's sub-model weights from the rest of Config. now is
// the clock RetweetBasedFollow consults for its 48-hour freshness check
// (spec.md §4.3); callers typically pass a Loop's Now method.
func (c *Config) BuildFollowModel(now func() model.SimTime) (network.FollowModel, error) {
	return buildNamedFollowModel(c.Analysis.FollowModel, c, now)
}

func buildNamedFollowModel(name string, c *Config, now func() model.SimTime) (network.FollowModel, error) {
	switch name {
	case "", "random":
		return network.RandomFollow{}, nil
	case "twitter_suggest":
		return network.TwitterSuggestFollow{}, nil
	case "agent":
		return network.AgentTypeFollow{}, nil
	case "preferential_agent":
		return network.PreferentialAgentFollow{}, nil
	case "hashtag":
		opts := hashtagOptions(c.Agents)
		return network.HashtagFollow{FilterSameRegion: opts.FilterSameRegion, FilterSameIdeology: opts.FilterSameIdeology}, nil
	case "retweet":
		return network.RetweetBasedFollow{Fallback: network.RandomFollow{}, Now: now}, nil
	case "twitter":
		models, weights, err := compositeSubModels(c, now)
		if err != nil {
			return nil, err
		}
		return network.CompositeFollow{Models: models, Weights: weights}, nil
	default:
		return nil, fmt.Errorf("config: analysis.follow_model: unrecognized value %q", name)
	}
}

// hashtagOptions reports the hashtag_follow_options of the first agent type
// that enables either filter (or no filters if none does), the options being a per-type knob in config but a single network-wide
// choice at the FollowModel level.
func hashtagOptions(agents []AgentTypeConfig) HashtagOptionsConfig {
	for _, a := range agents {
		if a.HashtagFollowOptions.FilterSameRegion || a.HashtagFollowOptions.FilterSameIdeology {
			return a.HashtagFollowOptions
		}
	}
	return HashtagOptionsConfig{}
}

func compositeSubModels(c *Config, now func() model.SimTime) ([]network.FollowModel, []float64, error) {
	if len(c.Analysis.ModelWeights) == 0 {
		return nil, nil, fmt.Errorf("config: analysis.model_weights: required when follow_model is twitter")
	}
	names := make([]string, 0, len(c.Analysis.ModelWeights))
	for name := range c.Analysis.ModelWeights {
		names = append(names, name)
	}
	sortStrings(names)

	models := make([]network.FollowModel, 0, len(names))
	weights := make([]float64, 0, len(names))
	for _, name := range names {
		m, err := buildNamedFollowModel(name, c, now)
		if err != nil {
			return nil, nil, fmt.Errorf("config: analysis.model_weights.%s: %w", name, err)
		}
		models = append(models, m)
		weights = append(weights, c.Analysis.ModelWeights[name])
	}
	return models, weights, nil
}

// sortStrings orders names for a deterministic CompositeFollow sub-model
// list: ModelWeights is a map, and range order over it is randomized per
// run, which would otherwise make CompositeFollow's [model, weight] pairing
// order (and hence its seeded-draw sequence) nondeterministic between runs
// of the same configuration.
func sortStrings(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}
