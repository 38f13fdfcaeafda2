// Package network owns the follower graph: a preallocated agent arena, the
// symmetric follow/follower relation between agents, and the degree-weighted
// RateTree that backs preferential-attachment follow target selection.
// Structurally it plays the role the teacher's internal/evo.PopulationMonitor
// plays for genome populations — it owns the live entities and the
// invariants across them — translated to this domain's agent graph.
package network

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"kmcsim/internal/model"
	"kmcsim/internal/rate"
	"kmcsim/internal/rng"
)

// ErrCapacityExhausted is returned by CreateAgent once the preallocated
// arena is full; per spec this is a normal halt condition, not an
// invariant violation.
var ErrCapacityExhausted = errors.New("network: agent capacity exhausted")

// ErrAsymmetricEdge signals the follow/follower invariant
// (b in follow_set(a) iff a in follower_set(b)) has been violated; detected
// by CheckInvariants, a periodic consistency pass rather than every call,
// matching the teacher's "assertion at configured interval" style checks.
var ErrAsymmetricEdge = errors.New("network: asymmetric follow edge detected")

// ErrUnknownAgent is returned when an operation names an agent ID outside
// the live population.
var ErrUnknownAgent = errors.New("network: unknown or dead agent")

// Stats mirrors the running totals spec.md §6's output columns need.
type Stats struct {
	NFollows         int64
	FollowRejections int64
}

// Agent is the live, in-memory view of one simulated user. Unlike
// model.AgentRecord, FollowSet and FollowerSet are live data structures,
// not serializable snapshots — Network.Snapshot/RestoreAgents convert between
// the two at checkpoint boundaries.
type Agent struct {
	ID              model.AgentID
	Type            model.AgentType
	Region          model.Region
	Language        model.Language
	Ideology        model.Ideology
	PreferenceClass model.PreferenceClass
	CreationTime    model.SimTime
	TweetCount      int
	RetweetCount    int
	Alive           bool

	FollowSet   *rate.CategoricalSet[model.AgentID]
	FollowerSet *rate.Tree[model.AgentID]

	recentRetweets []model.RetweetEntry
	retweetHead    int
	retweetFilled  int
}

// PushRetweet records (original tweeter, time) into the agent's bounded
// recent-retweet ring buffer, overwriting the oldest entry once full.
func (a *Agent) PushRetweet(original model.AgentID, at model.SimTime) {
	if len(a.recentRetweets) == 0 {
		return
	}
	a.recentRetweets[a.retweetHead] = model.RetweetEntry{OriginalTweeter: original, At: at}
	a.retweetHead = (a.retweetHead + 1) % len(a.recentRetweets)
	if a.retweetFilled < len(a.recentRetweets) {
		a.retweetFilled++
	}
}

// LastRetweet returns the most recently pushed retweet entry, if any.
func (a *Agent) LastRetweet() (model.RetweetEntry, bool) {
	if a.retweetFilled == 0 {
		return model.RetweetEntry{}, false
	}
	idx := (a.retweetHead - 1 + len(a.recentRetweets)) % len(a.recentRetweets)
	return a.recentRetweets[idx], true
}

// orderedRetweets returns the ring buffer's contents oldest-to-newest, the
// order Snapshot persists and RestoreAgents replays through PushRetweet to
// reproduce the same head/fill state.
func (a *Agent) orderedRetweets() []model.RetweetEntry {
	if a.retweetFilled == 0 {
		return nil
	}
	out := make([]model.RetweetEntry, 0, a.retweetFilled)
	start := (a.retweetHead - a.retweetFilled + len(a.recentRetweets)) % len(a.recentRetweets)
	for i := 0; i < a.retweetFilled; i++ {
		out = append(out, a.recentRetweets[(start+i)%len(a.recentRetweets)])
	}
	return out
}

// Weight pairs a value with its draw weight. Weighted draws use an ordered
// slice of these rather than a map: Go's map iteration order is
// intentionally randomized per run, which would silently break the
// seeded-determinism guarantee §1's Non-goals still hold us to for
// reproducing a single platform's results.
type Weight[K any] struct {
	Key   K
	Value float64
}

// Params configures a Network's agent generation and follow mechanics.
// Weighted-draw fields need not be pre-normalized; Network normalizes at
// draw time. The by-type lookup maps (FollowRateByType and friends) are
// read by direct key, never iterated, so they carry no ordering hazard.
type Params struct {
	MaxAgents int

	TypeWeights            []Weight[model.AgentType]
	RegionWeights          []Weight[model.Region]
	LanguageWeights        []Weight[model.Language]
	IdeologyWeights        []Weight[model.Ideology]
	PreferenceClassWeights []Weight[model.PreferenceClass]

	FollowRateByType      map[model.AgentType]float64
	FollowbackProbability map[model.AgentType]float64
	AgentTypeFollowWeight map[model.AgentType]float64
	RetweetRingCapacity   int
	DistanceBins          int

	// ActionFollowRateByType and ActionTweetRateByType are the
	// `rates.follow`/`rates.tweet` config values spec.md §6 names: the
	// rate at which an agent of a given type *initiates* a follow or
	// tweet action, distinct from FollowRateByType's role as the
	// per-follower reaction-propensity weight inside a tweeter's
	// FollowerSet tree.
	ActionFollowRateByType map[model.AgentType]float64
	ActionTweetRateByType  map[model.AgentType]float64

	// TweetTypeWeights is the `weights.tweet_type` draw spec.md §6 names: the
	// distribution an agent of a given type draws a new tweet's ContentType
	// from.
	TweetTypeWeights map[model.AgentType][]Weight[model.ContentType]

	// TweetTransmission is the `preference_classes[*].tweet_transmission`
	// table (spec.md §6), keyed by the reacting follower's PreferenceClass,
	// then by model.TransmissionCategory, then by the follower's AgentType.
	// It multiplies FollowRateByType when a tweeter's aggregate reaction
	// rate is computed, so a tweet's content and the ideological
	// relationship between tweeter and follower actually affect propagation
	// instead of only the follower's type.
	TweetTransmission map[model.PreferenceClass]map[string]map[model.AgentType]float64

	StageOneUnfollow           bool
	UnfollowTweetRateThreshold float64

	// UseBarabasi, BarabasiConnections and BarabasiExponent configure the
	// creation-time follow bootstrap spec.md §6 names: when UseBarabasi is
	// set, CreateAgent has the new agent immediately follow
	// BarabasiConnections existing agents, drawn preferentially by
	// follower-count raised to BarabasiExponent.
	UseBarabasi         bool
	BarabasiConnections int
	BarabasiExponent    float64
}

// Network owns the agent arena and all follow-graph state.
type Network struct {
	params Params
	stream *rng.Stream

	mu     sync.Mutex
	agents []*Agent // index == model.AgentID

	allAgents    *rate.CategoricalSet[model.AgentID]
	byType       map[model.AgentType]*rate.CategoricalSet[model.AgentID]
	degreeTree   *rate.Tree[model.AgentID]
	degreeByType map[model.AgentType]*rate.Tree[model.AgentID]

	// followActorTree and tweetActorTree pick WHO acts next for a follow
	// or tweet event, weighted by that agent's own action rate; distinct
	// from degreeTree (who gets followed) and from an agent's FollowerSet
	// (who reacts to one of their tweets).
	followActorTree *rate.Tree[model.AgentID]
	tweetActorTree  *rate.Tree[model.AgentID]

	// recentCohort backs HashtagFollow: the set of agents who have tweeted
	// under a given ideology at any point so far, the stand-in this pack uses for the
	// hashtag-cohort data model spec.md never defines (see DESIGN.md).
	recentCohort map[model.Ideology]*rate.CategoricalSet[model.AgentID]

	Stats Stats
}

// New builds an empty Network with an arena preallocated to params.MaxAgents.
func New(params Params, stream *rng.Stream) *Network {
	n := &Network{
		params:       params,
		stream:       stream,
		agents:       make([]*Agent, 0, params.MaxAgents),
		allAgents:    rate.NewCategoricalSet[model.AgentID](),
		byType:       make(map[model.AgentType]*rate.CategoricalSet[model.AgentID]),
		degreeTree:      rate.NewTree[model.AgentID](flatClassifier{}),
		degreeByType:    make(map[model.AgentType]*rate.Tree[model.AgentID]),
		recentCohort:    make(map[model.Ideology]*rate.CategoricalSet[model.AgentID]),
		followActorTree: rate.NewTree[model.AgentID](flatClassifier{}),
		tweetActorTree:  rate.NewTree[model.AgentID](flatClassifier{}),
	}
	return n
}

// FollowActionTotalRate is the aggregate rate at which any live agent is
// due to initiate a follow action.
func (n *Network) FollowActionTotalRate() float64 { return n.followActorTree.TotalRate() }

// TweetActionTotalRate is the aggregate rate at which any live agent is
// due to initiate a tweet action.
func (n *Network) TweetActionTotalRate() float64 { return n.tweetActorTree.TotalRate() }

// SampleFollowActor draws an agent to initiate a follow, weighted by its
// configured follow-action rate.
func (n *Network) SampleFollowActor(src rate.Source) (model.AgentID, bool) {
	return n.followActorTree.SampleWeighted(src)
}

// SampleTweetActor draws an agent to initiate a tweet, weighted by its
// configured tweet-action rate.
func (n *Network) SampleTweetActor(src rate.Source) (model.AgentID, bool) {
	return n.tweetActorTree.SampleWeighted(src)
}

// RecordTweetCohort marks id as having tweeted under ideology, feeding
// HashtagFollow's candidate pool. internal/kmc invokes this once per new
// tweet. Members are never removed: a cohort holds every agent that has
// tweeted under the ideology at any point in the run, not only recent ones.
func (n *Network) RecordTweetCohort(id model.AgentID, ideology model.Ideology) {
	n.mu.Lock()
	defer n.mu.Unlock()

	set, ok := n.recentCohort[ideology]
	if !ok {
		set = rate.NewCategoricalSet[model.AgentID]()
		n.recentCohort[ideology] = set
	}
	set.Add(id)
}

// flatClassifier is a zero-level Classifier whose root IS the leaf; used
// for the degree-weighted trees, which need no nested classification axis.
type flatClassifier struct{}

func (flatClassifier) Levels() int                          { return 0 }
func (flatClassifier) BinCount(_ int) int                    { return 0 }
func (flatClassifier) Classify(_ model.AgentID, _ int) int   { return 0 }

// followerClassifier classifies a candidate follower by language, then by
// whether they share the owning agent's region (the "distance" axis), then
// by preference class — the three-level nesting spec.md §3 and
// original_source/cat_nodes.h's nested TreeNode pattern call for.
type followerClassifier struct {
	net         *Network
	ownerRegion model.Region
	distanceBins int
}

func (c followerClassifier) Levels() int { return 3 }

func (c followerClassifier) BinCount(level int) int {
	switch level {
	case 0:
		return languageCount
	case 1:
		return c.distanceBins
	default:
		return preferenceClassCount
	}
}

func (c followerClassifier) Classify(elem model.AgentID, level int) int {
	a := c.net.unsafeLookup(elem)
	switch level {
	case 0:
		return int(a.Language)
	case 1:
		return distanceBin(c.ownerRegion, a.Region, c.distanceBins)
	default:
		return int(a.PreferenceClass)
	}
}

const (
	languageCount         = 6
	preferenceClassCount  = 3
)

// distanceBin buckets the region gap between a and b into [0, bins). Bin 0
// is always "same region"; higher bins coarsen by enum distance, wrapping
// into the top bin once bins is exhausted.
func distanceBin(a, b model.Region, bins int) int {
	if bins <= 1 {
		return 0
	}
	if a == b {
		return 0
	}
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	if d >= bins {
		d = bins - 1
	}
	return d
}

func (n *Network) unsafeLookup(id model.AgentID) *Agent {
	if int(id) < 0 || int(id) >= len(n.agents) {
		return nil
	}
	return n.agents[id]
}

// Lookup returns the live agent for id, or ErrUnknownAgent.
func (n *Network) Lookup(id model.AgentID) (*Agent, error) {
	a := n.unsafeLookup(id)
	if a == nil || !a.Alive {
		return nil, fmt.Errorf("%w: id=%d", ErrUnknownAgent, id)
	}
	return a, nil
}

// Len reports the number of live agents.
func (n *Network) Len() int {
	return n.allAgents.Len()
}

// CreateAgent allocates the next agent ID and draws its attributes from
// the configured weight distributions, then (if UseBarabasi is set) has it
// self-initiate BarabasiConnections follows, per barabasiAttach.
func (n *Network) CreateAgent(now model.SimTime) (*Agent, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.agents) >= n.params.MaxAgents {
		return nil, ErrCapacityExhausted
	}

	id := model.AgentID(len(n.agents))
	a := &Agent{
		ID:              id,
		Type:            drawWeighted(n.params.TypeWeights, n.stream),
		Region:          drawWeighted(n.params.RegionWeights, n.stream),
		Language:        drawWeighted(n.params.LanguageWeights, n.stream),
		Ideology:        drawWeighted(n.params.IdeologyWeights, n.stream),
		PreferenceClass: drawWeighted(n.params.PreferenceClassWeights, n.stream),
		CreationTime:    now,
		Alive:           true,
		FollowSet:       rate.NewCategoricalSet[model.AgentID](),
	}
	if n.params.RetweetRingCapacity > 0 {
		a.recentRetweets = make([]model.RetweetEntry, n.params.RetweetRingCapacity)
	}

	distanceBins := n.params.DistanceBins
	if distanceBins <= 0 {
		distanceBins = 2
	}
	a.FollowerSet = rate.NewTree[model.AgentID](followerClassifier{net: n, ownerRegion: a.Region, distanceBins: distanceBins})

	n.agents = append(n.agents, a)
	n.allAgents.Add(id)
	if _, ok := n.byType[a.Type]; !ok {
		n.byType[a.Type] = rate.NewCategoricalSet[model.AgentID]()
	}
	n.byType[a.Type].Add(id)

	if _, err := n.degreeTree.Add(id, 0); err != nil {
		return nil, err
	}
	if _, ok := n.degreeByType[a.Type]; !ok {
		n.degreeByType[a.Type] = rate.NewTree[model.AgentID](flatClassifier{})
	}
	if _, err := n.degreeByType[a.Type].Add(id, 0); err != nil {
		return nil, err
	}
	if _, err := n.followActorTree.Add(id, n.params.ActionFollowRateByType[a.Type]); err != nil {
		return nil, err
	}
	if _, err := n.tweetActorTree.Add(id, n.params.ActionTweetRateByType[a.Type]); err != nil {
		return nil, err
	}

	if err := n.barabasiAttach(a); err != nil {
		return nil, err
	}

	return a, nil
}

// barabasiAttach implements `use_barabasi`'s creation-time follow
// bootstrap: a, just added to every tree above, immediately follows
// BarabasiConnections existing agents, drawn preferentially by
// follower-count^BarabasiExponent. Each draw skips agents a already
// follows, so a ends with fewer follows only when fewer agents exist.
// Grounded on
// original_source/analyzer_main.cpp's action_create_entity, which
// self-follows once via whichever follow_model is configured when
// use_barabasi is set; generalized here to BarabasiConnections repeats with
// an explicit degree-power weighting since original_source never
// implements barabasi_exponent (see DESIGN.md). Must be called with n.mu
// already held, from CreateAgent, after a is fully wired into every tree —
// it calls insertFollow directly rather than Follow to avoid re-locking.
func (n *Network) barabasiAttach(a *Agent) error {
	if !n.params.UseBarabasi || n.params.BarabasiConnections <= 0 {
		return nil
	}
	// BarabasiExponent 0 (including the zero-valued default when
	// unconfigured) makes every existing agent equally likely regardless of
	// degree, since degree^0 == 1; larger exponents bias toward high-degree
	// agents, the standard preferential-attachment behavior.
	for i := 0; i < n.params.BarabasiConnections; i++ {
		target := n.sampleByDegreePower(a.ID, n.params.BarabasiExponent)
		if target == nil {
			break
		}
		if _, err := n.insertFollow(a, target); err != nil {
			return err
		}
	}
	return nil
}

// sampleByDegreePower draws a live agent other than excludeID, and not
// already followed by excludeID, with probability proportional to (its follower count + 1)^exponent; the +1
// keeps degree-0 agents reachable, matching preferential attachment's usual
// treatment of fresh nodes.
func (n *Network) sampleByDegreePower(excludeID model.AgentID, exponent float64) *Agent {
	candidates := make([]*Agent, 0, len(n.agents))
	weights := make([]float64, 0, len(n.agents))
	var total float64
	from := n.unsafeLookup(excludeID)
	for _, cand := range n.agents {
		if cand == nil || !cand.Alive || cand.ID == excludeID {
			continue
		}
		if from != nil && from.FollowSet.Contains(cand.ID) {
			continue
		}
		w := math.Pow(float64(cand.FollowerSet.Len())+1, exponent)
		candidates = append(candidates, cand)
		weights = append(weights, w)
		total += w
	}
	if len(candidates) == 0 || total <= 0 {
		return nil
	}
	target := n.stream.Float64() * total
	for i, w := range weights {
		target -= w
		if target <= rate.ZEROTOL {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// DrawContentType draws a new tweet's ContentType for a tweeter of the
// given type from TweetTypeWeights, the `weights.tweet_type` distribution
// spec.md §6 names.
func (n *Network) DrawContentType(agentType model.AgentType) model.ContentType {
	return drawWeighted(n.params.TweetTypeWeights[agentType], n.stream)
}

// TransmissionWeightedRate computes a tweeter's aggregate reaction rate for
// a tweet of the given content type: the sum, over every live follower, of
// FollowRateByType[follower.Type] scaled by that follower's
// preference-class/transmission-category/type entry in TweetTransmission.
// This walks the full FollowerSet at tweet-creation time, mirroring
// original_source/tweets.cpp's TweetRateDeterminer::get_rate, which
// recomputes the same nested-category sum from scratch for every new
// tweet rather than reusing a cached rate. A missing TweetTransmission
// entry multiplies by 1 (no adjustment), so configurations that don't
// populate the table reproduce the prior FollowRateByType-only behavior.
func (n *Network) TransmissionWeightedRate(tweeterID model.AgentID, content model.ContentType) (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tweeter, err := n.Lookup(tweeterID)
	if err != nil {
		return 0, err
	}

	var total float64
	tweeter.FollowerSet.Walk(func(followerID model.AgentID) {
		follower := n.unsafeLookup(followerID)
		if follower == nil || !follower.Alive {
			return
		}
		multiplier := 1.0
		category := model.TransmissionCategory(content, tweeter.Ideology, follower.Ideology)
		if byCategory, ok := n.params.TweetTransmission[follower.PreferenceClass]; ok {
			if byType, ok := byCategory[category]; ok {
				if m, ok := byType[follower.Type]; ok {
					multiplier = m
				}
			}
		}
		total += n.params.FollowRateByType[follower.Type] * multiplier
	})
	return total, nil
}

// Follow inserts the from->to edge and, with probability
// type(to).followback, synthesizes the reverse edge. ok=false, err=nil
// means a normal rejection (self-follow or duplicate); it is not an
// error.
func (n *Network) Follow(fromID, toID model.AgentID) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if fromID == toID {
		n.Stats.FollowRejections++
		return false, nil
	}
	from, err := n.Lookup(fromID)
	if err != nil {
		return false, err
	}
	to, err := n.Lookup(toID)
	if err != nil {
		return false, err
	}

	ok, err := n.insertFollow(from, to)
	if err != nil || !ok {
		return ok, err
	}

	if p := n.params.FollowbackProbability[to.Type]; p > 0 && n.stream.Float64() < p {
		if !to.FollowSet.Contains(fromID) {
			if _, err := n.insertFollow(to, from); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}

func (n *Network) insertFollow(from, to *Agent) (bool, error) {
	if !from.FollowSet.Add(to.ID) {
		n.Stats.FollowRejections++
		return false, nil
	}
	if _, err := to.FollowerSet.Add(from.ID, n.params.FollowRateByType[from.Type]); err != nil {
		return false, fmt.Errorf("insert follow %d->%d: %w", from.ID, to.ID, err)
	}
	if err := n.recategorizeDegree(to.ID, to.Type, float64(to.FollowerSet.Len())); err != nil {
		return false, err
	}
	n.Stats.NFollows++
	return true, nil
}

func (n *Network) recategorizeDegree(id model.AgentID, agentType model.AgentType, degree float64) error {
	if _, err := n.degreeTree.ReplaceRate(id, degree); err != nil {
		return fmt.Errorf("recategorize degree for %d: %w", id, err)
	}
	if tree, ok := n.degreeByType[agentType]; ok {
		if _, err := tree.ReplaceRate(id, degree); err != nil {
			return fmt.Errorf("recategorize degree-by-type for %d: %w", id, err)
		}
	}
	return nil
}

// TweetRate estimates tweets-per-minute for id as of now; used by Unfollow
// and by the "twice the mean followee rate" comparison spec.md §4.3 names.
func (n *Network) TweetRate(id model.AgentID, now model.SimTime) (float64, error) {
	a, err := n.Lookup(id)
	if err != nil {
		return 0, err
	}
	elapsed := float64(now - a.CreationTime)
	if elapsed <= 0 {
		return 0, nil
	}
	return float64(a.TweetCount) / elapsed, nil
}

// Unfollow implements the optional "stage1" chatty-tweeter pruning: it
// removes one follower of agentID when that follower's reason to stay
// subscribed no longer holds, per spec.md §4.3. No-op (false, nil) when
// StageOneUnfollow is disabled or no qualifying follower is found.
func (n *Network) Unfollow(agentID model.AgentID, now model.SimTime) (bool, error) {
	if !n.params.StageOneUnfollow {
		return false, nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	agent, err := n.Lookup(agentID)
	if err != nil {
		return false, err
	}
	agentRate, err := n.TweetRate(agentID, now)
	if err != nil {
		return false, err
	}

	var victim model.AgentID
	found := false
	var walkErr error
	agent.FollowerSet.Walk(func(followerID model.AgentID) {
		if found || walkErr != nil {
			return
		}
		if agentRate > n.params.UnfollowTweetRateThreshold {
			victim, found = followerID, true
			return
		}
		mean, err := n.meanFolloweeTweetRate(followerID, now)
		if err != nil {
			walkErr = err
			return
		}
		if mean > 0 && agentRate > 2*mean {
			victim, found = followerID, true
		}
	})
	if walkErr != nil {
		return false, walkErr
	}
	if !found {
		return false, nil
	}
	return n.removeFollow(victim, agentID)
}

func (n *Network) meanFolloweeTweetRate(id model.AgentID, now model.SimTime) (float64, error) {
	a, err := n.Lookup(id)
	if err != nil {
		return 0, err
	}
	followees := a.FollowSet.Elems()
	if len(followees) == 0 {
		return 0, nil
	}
	total := 0.0
	for _, fid := range followees {
		r, err := n.TweetRate(fid, now)
		if err != nil {
			return 0, err
		}
		total += r
	}
	return total / float64(len(followees)), nil
}

func (n *Network) removeFollow(fromID, toID model.AgentID) (bool, error) {
	from, err := n.Lookup(fromID)
	if err != nil {
		return false, err
	}
	to, err := n.Lookup(toID)
	if err != nil {
		return false, err
	}
	if !from.FollowSet.Remove(toID) {
		return false, nil
	}
	to.FollowerSet.Remove(fromID)
	if err := n.recategorizeDegree(to.ID, to.Type, float64(to.FollowerSet.Len())); err != nil {
		return false, err
	}
	return true, nil
}

// RecalcRates rebaselines every RateTree this Network owns from its leaves
// up, per spec.md §4.2's "recalc_rates is invoked at configured intervals
// by the KmcLoop to rebaseline" maintenance policy.
func (n *Network) RecalcRates() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.degreeTree.RecalcRates()
	n.followActorTree.RecalcRates()
	n.tweetActorTree.RecalcRates()
	for _, tree := range n.degreeByType {
		tree.RecalcRates()
	}
	for _, a := range n.agents {
		if a != nil && a.Alive {
			a.FollowerSet.RecalcRates()
		}
	}
}

// CheckInvariants verifies the follow/follower symmetry invariant
// (spec.md §8) across every live agent. Intended to run at a configured
// interval, not every step.
func (n *Network) CheckInvariants() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, a := range n.agents {
		if a == nil || !a.Alive {
			continue
		}
		for _, followeeID := range a.FollowSet.Elems() {
			followee, err := n.Lookup(followeeID)
			if err != nil {
				return fmt.Errorf("%w: %d follows unknown agent %d", ErrAsymmetricEdge, a.ID, followeeID)
			}
			if !followee.FollowerSet.Contains(a.ID) {
				return fmt.Errorf("%w: %d follows %d but is not in its follower set", ErrAsymmetricEdge, a.ID, followeeID)
			}
		}
		var walkErr error
		a.FollowerSet.Walk(func(followerID model.AgentID) {
			if walkErr != nil {
				return
			}
			follower, err := n.Lookup(followerID)
			if err != nil || !follower.FollowSet.Contains(a.ID) {
				walkErr = fmt.Errorf("%w: %d is in %d's follower set but does not follow it", ErrAsymmetricEdge, followerID, a.ID)
			}
		})
		if walkErr != nil {
			return walkErr
		}
	}
	return nil
}

// Snapshot captures every live agent as a persistable model.AgentRecord, in
// ID order. RestoreAgents rebuilds FollowerSet membership and every
// derived RateTree from FollowSet alone, the arrangement the Agent type's
// doc comment names.
func (n *Network) Snapshot() []model.AgentRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	recs := make([]model.AgentRecord, 0, len(n.agents))
	for _, a := range n.agents {
		if a == nil || !a.Alive {
			continue
		}
		recs = append(recs, model.AgentRecord{
			ID:              a.ID,
			Type:            a.Type,
			Region:          a.Region,
			Language:        a.Language,
			Ideology:        a.Ideology,
			PreferenceClass: a.PreferenceClass,
			CreationTime:    a.CreationTime,
			TweetCount:      a.TweetCount,
			RetweetCount:    a.RetweetCount,
			FollowSet:       a.FollowSet.Elems(),
			RecentRetweets:  a.orderedRetweets(),
		})
	}
	return recs
}

// RestoreAgents repopulates a freshly constructed, empty Network from
// persisted records, reconstructing every derived RateTree and FollowerSet
// membership the live Agent view needs. Records must be in ID order
// starting at 0 — the arrangement Snapshot produces and the only order
// CreateAgent ever assigns, since agents are never removed from the arena.
func (n *Network) RestoreAgents(records []model.AgentRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, rec := range records {
		if int(rec.ID) != i {
			return fmt.Errorf("network: restore expects dense agent IDs in order, got id=%d at index=%d", rec.ID, i)
		}
		a := &Agent{
			ID:              rec.ID,
			Type:            rec.Type,
			Region:          rec.Region,
			Language:        rec.Language,
			Ideology:        rec.Ideology,
			PreferenceClass: rec.PreferenceClass,
			CreationTime:    rec.CreationTime,
			TweetCount:      rec.TweetCount,
			RetweetCount:    rec.RetweetCount,
			Alive:           true,
			FollowSet:       rate.NewCategoricalSet[model.AgentID](),
		}
		if n.params.RetweetRingCapacity > 0 {
			a.recentRetweets = make([]model.RetweetEntry, n.params.RetweetRingCapacity)
		}
		distanceBins := n.params.DistanceBins
		if distanceBins <= 0 {
			distanceBins = 2
		}
		a.FollowerSet = rate.NewTree[model.AgentID](followerClassifier{net: n, ownerRegion: a.Region, distanceBins: distanceBins})
		for _, entry := range rec.RecentRetweets {
			a.PushRetweet(entry.OriginalTweeter, entry.At)
		}

		n.agents = append(n.agents, a)
		n.allAgents.Add(a.ID)
		if _, ok := n.byType[a.Type]; !ok {
			n.byType[a.Type] = rate.NewCategoricalSet[model.AgentID]()
		}
		n.byType[a.Type].Add(a.ID)
		if _, err := n.degreeTree.Add(a.ID, 0); err != nil {
			return err
		}
		if _, ok := n.degreeByType[a.Type]; !ok {
			n.degreeByType[a.Type] = rate.NewTree[model.AgentID](flatClassifier{})
		}
		if _, err := n.degreeByType[a.Type].Add(a.ID, 0); err != nil {
			return err
		}
		if _, err := n.followActorTree.Add(a.ID, n.params.ActionFollowRateByType[a.Type]); err != nil {
			return err
		}
		if _, err := n.tweetActorTree.Add(a.ID, n.params.ActionTweetRateByType[a.Type]); err != nil {
			return err
		}
	}

	// A second pass wires follow edges only after every agent is live,
	// since a FollowSet entry may name an agent with a higher ID than the
	// record currently being processed.
	for _, rec := range records {
		from, err := n.Lookup(rec.ID)
		if err != nil {
			return err
		}
		for _, toID := range rec.FollowSet {
			to, err := n.Lookup(toID)
			if err != nil {
				return err
			}
			if !from.FollowSet.Add(to.ID) {
				continue
			}
			if _, err := to.FollowerSet.Add(from.ID, n.params.FollowRateByType[from.Type]); err != nil {
				return fmt.Errorf("restore follow %d->%d: %w", from.ID, to.ID, err)
			}
			n.Stats.NFollows++
		}
	}
	for _, a := range n.agents {
		if err := n.recategorizeDegree(a.ID, a.Type, float64(a.FollowerSet.Len())); err != nil {
			return err
		}
	}

	return nil
}

func drawWeighted[K any](weights []Weight[K], stream *rng.Stream) K {
	var zero K
	if len(weights) == 0 {
		return zero
	}
	var total float64
	for _, w := range weights {
		total += w.Value
	}
	if total <= 0 {
		return zero
	}
	target := stream.Float64() * total
	for _, w := range weights {
		target -= w.Value
		if target <= rate.ZEROTOL {
			return w.Key
		}
	}
	return weights[len(weights)-1].Key
}
