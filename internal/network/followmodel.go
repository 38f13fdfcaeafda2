package network

import (
	"fmt"
	"sync"

	"kmcsim/internal/model"
	"kmcsim/internal/rate"
)

// retweetFollowWindow is the 48-simulated-hour freshness window spec.md
// §4.3 names for the retweet-based follow model, expressed in minutes
// since model.SimTime is minutes-since-run-start.
const retweetFollowWindow = 48 * 60

// FollowModel selects a follow target for fromID. It reports false when no
// eligible target exists (e.g. an empty network), which the caller treats
// as a null event rather than an error, per spec.md §7.
type FollowModel interface {
	Name() string
	SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool)
}

// RandomFollow samples uniformly over all live agents, rejecting a
// self-selection by redraw up to a small bound before giving up.
type RandomFollow struct{}

func (RandomFollow) Name() string { return "random" }

func (RandomFollow) SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool) {
	const maxRedraws = 8
	for i := 0; i < maxRedraws; i++ {
		candidate, ok := net.allAgents.SampleUniform(src)
		if !ok {
			return 0, false
		}
		if candidate != fromID {
			return candidate, true
		}
	}
	return 0, false
}

// TwitterSuggestFollow samples a follow target proportionally to current
// follower degree, the Barabasi-Albert preferential attachment rule
// spec.md §4.3 names.
type TwitterSuggestFollow struct{}

func (TwitterSuggestFollow) Name() string { return "twitter_suggest" }

func (TwitterSuggestFollow) SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool) {
	return sampleExcluding(net.degreeTree, fromID, src, true)
}

// AgentTypeFollow samples an agent type weighted by
// Params.AgentTypeFollowWeight, then a member of that type uniformly.
type AgentTypeFollow struct{}

func (AgentTypeFollow) Name() string { return "agent" }

func (AgentTypeFollow) SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool) {
	t, ok := sampleAgentType(net, src)
	if !ok {
		return 0, false
	}
	set, ok := net.byType[t]
	if !ok {
		return 0, false
	}
	return sampleSetExcluding(set, fromID, src)
}

// PreferentialAgentFollow composes AgentTypeFollow's type selection with
// TwitterSuggestFollow's degree-weighted selection within that type.
type PreferentialAgentFollow struct{}

func (PreferentialAgentFollow) Name() string { return "preferential_agent" }

func (PreferentialAgentFollow) SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool) {
	t, ok := sampleAgentType(net, src)
	if !ok {
		return 0, false
	}
	tree, ok := net.degreeByType[t]
	if !ok {
		return 0, false
	}
	return sampleExcluding(tree, fromID, src, true)
}

// HashtagFollow samples among agents who have tweeted at any point in the
// run under the same ideological cohort as the candidate pool, filtered by the follower's own
// region/ideology when hashtag_follow_options requests it. The pack's
// source material specifies hashtag cohorts only in prose ("agents who
// have recently used a hashtag in common") without a hashtag data type in
// spec.md's data model; this tree reuses the already-modeled Ideology tag
// on tweets as the cohort key; cohort members are never removed (see
// DESIGN.md).
type HashtagFollow struct {
	FilterSameRegion   bool
	FilterSameIdeology bool
}

func (HashtagFollow) Name() string { return "hashtag" }

func (h HashtagFollow) SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool) {
	from, err := net.Lookup(fromID)
	if err != nil {
		return 0, false
	}
	cohort, ok := net.recentCohort[from.Ideology]
	if !ok || cohort.Len() == 0 {
		return 0, false
	}
	const maxRedraws = 8
	for i := 0; i < maxRedraws; i++ {
		candidate, ok := cohort.SampleUniform(src)
		if !ok {
			return 0, false
		}
		if candidate == fromID {
			continue
		}
		candidateAgent, err := net.Lookup(candidate)
		if err != nil {
			continue
		}
		if h.FilterSameRegion && candidateAgent.Region != from.Region {
			continue
		}
		if h.FilterSameIdeology && candidateAgent.Ideology != from.Ideology {
			continue
		}
		return candidate, true
	}
	return 0, false
}

// RetweetBasedFollow follows the original tweeter of the agent's most
// recent ring-buffer retweet with probability 0.5 when it is within the
// last 48 simulated hours; otherwise it falls back to uniform random
// selection, per spec.md §4.3 and §4.5.
type RetweetBasedFollow struct {
	Fallback FollowModel
	Now      func() model.SimTime
}

func (RetweetBasedFollow) Name() string { return "retweet" }

func (r RetweetBasedFollow) SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool) {
	if src.Float64() < 0.5 {
		from, err := net.Lookup(fromID)
		if err == nil {
			if last, ok := from.LastRetweet(); ok {
				now := r.Now()
				if now-last.At <= retweetFollowWindow && last.OriginalTweeter != fromID {
					return last.OriginalTweeter, true
				}
			}
		}
	}
	fallback := r.Fallback
	if fallback == nil {
		fallback = RandomFollow{}
	}
	return fallback.SelectTarget(net, fromID, src)
}

// CompositeFollow is the "twitter" meta-model: at each call it picks one
// of its sub-models proportionally to Weights, then delegates. It is the
// single dispatch point the Open Question in spec.md §9 resolves through —
// when Sub-models includes a RetweetBasedFollow, that same value (and its
// 48-hour freshness check) runs regardless of whether it was reached
// directly or via this composite, so the freshness window is honored
// identically in both.
type CompositeFollow struct {
	Models  []FollowModel
	Weights []float64
}

func (CompositeFollow) Name() string { return "twitter" }

func (c CompositeFollow) SelectTarget(net *Network, fromID model.AgentID, src rate.Source) (model.AgentID, bool) {
	if len(c.Models) == 0 {
		return 0, false
	}
	var total float64
	for _, w := range c.Weights {
		total += w
	}
	if total <= 0 {
		return c.Models[0].SelectTarget(net, fromID, src)
	}
	target := src.Float64() * total
	for i, w := range c.Weights {
		target -= w
		if target <= rate.ZEROTOL {
			return c.Models[i].SelectTarget(net, fromID, src)
		}
	}
	return c.Models[len(c.Models)-1].SelectTarget(net, fromID, src)
}

// sampleAgentType draws a type proportionally to AgentTypeFollowWeight,
// iterating in fixed enum order rather than ranging the map directly so
// the draw is reproducible given a seeded rate.Source.
func sampleAgentType(net *Network, src rate.Source) (model.AgentType, bool) {
	types := []model.AgentType{model.AgentTypeOrdinary, model.AgentTypeCelebrity, model.AgentTypeBot}
	var total float64
	for _, t := range types {
		total += net.params.AgentTypeFollowWeight[t]
	}
	if total <= 0 {
		return 0, false
	}
	target := src.Float64() * total
	for _, t := range types {
		target -= net.params.AgentTypeFollowWeight[t]
		if target <= rate.ZEROTOL {
			return t, true
		}
	}
	return types[len(types)-1], true
}

func sampleSetExcluding(set *rate.CategoricalSet[model.AgentID], excl model.AgentID, src rate.Source) (model.AgentID, bool) {
	const maxRedraws = 8
	for i := 0; i < maxRedraws; i++ {
		candidate, ok := set.SampleUniform(src)
		if !ok {
			return 0, false
		}
		if candidate != excl {
			return candidate, true
		}
	}
	return 0, false
}

func sampleExcluding(tree *rate.Tree[model.AgentID], excl model.AgentID, src rate.Source, weighted bool) (model.AgentID, bool) {
	const maxRedraws = 8
	for i := 0; i < maxRedraws; i++ {
		var candidate model.AgentID
		var ok bool
		if weighted {
			candidate, ok = tree.SampleWeighted(src)
		} else {
			candidate, ok = tree.SampleUniform(src)
		}
		if !ok {
			return 0, false
		}
		if candidate != excl {
			return candidate, true
		}
	}
	return 0, false
}

// followModelRegistry guards the name->FollowModel table; the pattern
// mirrors the teacher's evo.operatorRegistry (sync.RWMutex + plain map).
var followModelRegistry = struct {
	mu sync.RWMutex
	m  map[string]FollowModel
}{m: make(map[string]FollowModel)}

// ErrFollowModelExists is returned by RegisterFollowModel for a duplicate name.
var ErrFollowModelExists = fmt.Errorf("network: follow model already registered")

// ErrFollowModelNotFound is returned by ResolveFollowModel for an unknown name.
var ErrFollowModelNotFound = fmt.Errorf("network: follow model not found")

// RegisterFollowModel adds a named model to the registry.
func RegisterFollowModel(name string, m FollowModel) error {
	followModelRegistry.mu.Lock()
	defer followModelRegistry.mu.Unlock()

	if _, exists := followModelRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrFollowModelExists, name)
	}
	followModelRegistry.m[name] = m
	return nil
}

// ResolveFollowModel looks up a model by name.
func ResolveFollowModel(name string) (FollowModel, error) {
	followModelRegistry.mu.RLock()
	defer followModelRegistry.mu.RUnlock()

	m, ok := followModelRegistry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFollowModelNotFound, name)
	}
	return m, nil
}

// ListFollowModels returns every registered model name.
func ListFollowModels() []string {
	followModelRegistry.mu.RLock()
	defer followModelRegistry.mu.RUnlock()

	names := make([]string, 0, len(followModelRegistry.m))
	for name := range followModelRegistry.m {
		names = append(names, name)
	}
	return names
}
