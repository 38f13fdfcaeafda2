// Package kmc implements the kinetic Monte Carlo event loop: sample an
// event class from the RateAggregator, sample the acting entity from the
// relevant RateTree, apply the action, advance simulated time, and repeat.
// Grounded on spec.md §4.5 and §5, and on the teacher's
// internal/platform.Supervisor for the context-cancellation / atomic
// abort-counter idiom, generalized here to single-threaded, step-granular
// cooperative cancellation rather than goroutine supervision.
package kmc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"kmcsim/internal/aggregator"
	"kmcsim/internal/model"
	"kmcsim/internal/network"
	"kmcsim/internal/rng"
	"kmcsim/internal/tweetbank"
)

// ZEROTOL is the named event-class comparison tolerance spec.md §9 calls
// for rather than a bare literal; shared with aggregator.ZEROTOL.
const ZEROTOL = aggregator.ZEROTOL

// TimeCatFreq and ApproxMonth are the milestone-granularity constants
// spec.md §9 names; ApproxMonth is simulated minutes per month. Nothing in
// this package reads them: recalc-from-scratch rebaselining runs every
// Params.RecalcInterval steps (see Step).
const (
	TimeCatFreq = ApproxMonth
	ApproxMonth = 24 * 60 * 30
)

// ErrCapacityExhausted surfaces network.ErrCapacityExhausted through the
// loop's halt path with loop-level context.
var ErrCapacityExhausted = errors.New("kmc: agent capacity exhausted")

// ErrNoEventPossible is returned by Step when every category rate is zero
// and no add-agent budget remains; a malformed configuration, not a
// programming error.
var ErrNoEventPossible = errors.New("kmc: no event is currently possible")

// AddRateFunc computes the agent-creation rate as a function of the
// current live agent count, per spec.md §6's `rates.add: {function,
// value}` configuration shape.
type AddRateFunc func(nAgents int) float64

// ConstantAddRate returns an AddRateFunc with a fixed rate regardless of
// population size.
func ConstantAddRate(value float64) AddRateFunc {
	return func(int) float64 { return value }
}

// LinearAddRate returns an AddRateFunc proportional to the current
// population size.
func LinearAddRate(value float64) AddRateFunc {
	return func(n int) float64 { return value * float64(n) }
}

// Params configures a Loop's termination bounds and action rates.
type Params struct {
	MaxAgents   int
	MaxTime     model.SimTime // zero/negative means unbounded
	MaxSteps    int64         // zero means unbounded
	MaxRealTime time.Duration // zero means unbounded

	AddRate AddRateFunc

	UseRandomTimeIncrement bool
	UseFollowback          bool
	UseFollowViaRetweets   bool
	RecalcInterval         int64 // steps between RecalcRates rebaselines; 0 disables

	FollowModel network.FollowModel

	// RetweetWindow is the ring-buffer freshness window (spec.md's 48
	// simulated hours), expressed in the same units as model.SimTime.
	RetweetWindow model.SimTime
}

// Hooks lets a caller observe step-by-step progress without the loop
// depending on any particular output sink, mirroring the teacher's
// SupervisorHooks pattern (callback fields, nil-checked before invocation).
type Hooks struct {
	OnStep func(StepResult)
}

// StepResult reports what one Step call did.
type StepResult struct {
	Class   aggregator.EventClass
	Applied bool
	Time    model.SimTime
	Stats   network.Stats
}

// Loop ties together a Network, a TweetBank, a RateAggregator, and an RNG
// stream into the per-step sample/apply/advance cycle.
type Loop struct {
	params Params
	net    *network.Network
	bank   *tweetbank.TweetBank
	agg    *aggregator.Aggregator
	stream *rng.Stream
	abort  *AbortSignal

	now           model.SimTime
	step          int64
	nextTweet     model.TweetID
	tweeterOf     map[model.TweetID]model.AgentID
	contentTypeOf map[model.TweetID]model.ContentType
	startedAt     time.Time
	started       bool
	nTweets       int64
	nRetweets     int64
}

// New builds a Loop over an already-constructed Network and TweetBank.
func New(params Params, net *network.Network, bank *tweetbank.TweetBank, stream *rng.Stream, abort *AbortSignal) *Loop {
	if abort == nil {
		abort = &AbortSignal{}
	}
	return &Loop{
		params:        params,
		net:           net,
		bank:          bank,
		agg:           aggregator.New(),
		stream:        stream,
		abort:         abort,
		tweeterOf:     make(map[model.TweetID]model.AgentID),
		contentTypeOf: make(map[model.TweetID]model.ContentType),
	}
}

// Now returns the loop's current simulated time.
func (l *Loop) Now() model.SimTime { return l.now }

// StepCount returns the number of steps executed so far.
func (l *Loop) StepCount() int64 { return l.step }

// Abort exposes the loop's abort signal so an interrupt handler can raise it.
func (l *Loop) Abort() *AbortSignal { return l.abort }

// Stats assembles the run's current output-column values, per spec.md
// §6's time-series columns (time, n_agents, n_follows, n_tweets,
// n_retweets).
func (l *Loop) Stats() model.RunStats {
	return model.RunStats{
		StepCount:        l.step,
		NAgents:          int64(l.net.Len()),
		NFollows:         l.net.Stats.NFollows,
		NTweets:          l.nTweets,
		NRetweets:        l.nRetweets,
		FollowRejections: l.net.Stats.FollowRejections,
		Time:             l.now,
	}
}

// Snapshot assembles the run's full persistable state: every live agent,
// every live tweet, and the cursor/counters needed to resume. The caller
// (typically cmd/kmcsim, via internal/snapshot) fills in RunID and
// ConfigHash, which a bare Loop has no opinion about.
func (l *Loop) Snapshot() model.RunSnapshot {
	byID := l.bank.Snapshot()
	tweets := make([]model.TweetRecord, 0, len(byID))
	for id, rec := range byID {
		tweeterID, ok := l.tweeterOf[id]
		if !ok {
			continue
		}
		rec.TweeterID = tweeterID
		rec.ContentType = l.contentTypeOf[id]
		if tweeter, err := l.net.Lookup(tweeterID); err == nil {
			rec.Ideology = tweeter.Ideology
		}
		tweets = append(tweets, rec)
	}
	sort.Slice(tweets, func(i, j int) bool { return tweets[i].ID < tweets[j].ID })

	return model.RunSnapshot{
		Time:      l.now,
		NextTweet: l.nextTweet,
		Agents:    l.net.Snapshot(),
		Tweets:    tweets,
		Stats:     l.Stats(),
	}
}

// Restore rebuilds a Loop, its Network and its TweetBank from a previously
// captured RunSnapshot. net and bank must be freshly constructed and empty;
// params, stream and abort are supplied the same way New's callers always
// build them.
func Restore(params Params, net *network.Network, bank *tweetbank.TweetBank, snap model.RunSnapshot, stream *rng.Stream, abort *AbortSignal) (*Loop, error) {
	if err := net.RestoreAgents(snap.Agents); err != nil {
		return nil, fmt.Errorf("kmc: restore agents: %w", err)
	}
	if err := bank.RestoreTweets(snap.Tweets); err != nil {
		return nil, fmt.Errorf("kmc: restore tweets: %w", err)
	}
	net.Stats.FollowRejections = snap.Stats.FollowRejections

	l := New(params, net, bank, stream, abort)
	l.now = snap.Time
	l.step = snap.Stats.StepCount
	l.nextTweet = snap.NextTweet
	l.nTweets = snap.Stats.NTweets
	l.nRetweets = snap.Stats.NRetweets
	for _, rec := range snap.Tweets {
		l.tweeterOf[rec.ID] = rec.TweeterID
		l.contentTypeOf[rec.ID] = rec.ContentType
	}
	return l, nil
}

// Run drives the loop to completion, calling hooks.OnStep after every
// step (applied or not), and returns the terminating condition. It exits when ctx is
// cancelled, the abort signal is raised, or any of Params' bounds is hit.
func (l *Loop) Run(ctx context.Context, hooks Hooks) (TerminationReason, error) {
	if !l.started {
		l.startedAt = time.Now()
		l.started = true
	}
	for {
		reason, halt := l.shouldHalt(ctx)
		if halt {
			return reason, nil
		}
		result, err := l.Step(ctx)
		if err != nil {
			return TerminationError, err
		}
		if hooks.OnStep != nil {
			hooks.OnStep(result)
		}
	}
}

// TerminationReason names why Run stopped.
type TerminationReason int

const (
	TerminationMaxTime TerminationReason = iota
	TerminationMaxAgents
	TerminationMaxSteps
	TerminationMaxRealTime
	TerminationAbort
	TerminationError
	TerminationNoEvent
)

func (r TerminationReason) String() string {
	switch r {
	case TerminationMaxTime:
		return "max_time"
	case TerminationMaxAgents:
		return "max_agents"
	case TerminationMaxSteps:
		return "max_steps"
	case TerminationMaxRealTime:
		return "max_real_time"
	case TerminationAbort:
		return "abort"
	case TerminationError:
		return "error"
	case TerminationNoEvent:
		return "no_event"
	default:
		return "unknown"
	}
}

func (l *Loop) shouldHalt(ctx context.Context) (TerminationReason, bool) {
	if ctx.Err() != nil {
		return TerminationAbort, true
	}
	if l.abort.Requested() {
		return TerminationAbort, true
	}
	if l.params.MaxTime > 0 && l.now >= l.params.MaxTime {
		return TerminationMaxTime, true
	}
	if l.params.MaxSteps > 0 && l.step >= l.params.MaxSteps {
		return TerminationMaxSteps, true
	}
	if l.params.MaxRealTime > 0 && l.started && time.Since(l.startedAt) >= l.params.MaxRealTime {
		return TerminationMaxRealTime, true
	}
	return 0, false
}

// Step runs exactly one KMC iteration: compute category rates, draw an
// event class, sample and apply the acting entity, advance simulated time.
// A step is atomic with respect to external observation, per spec.md §5.
func (l *Loop) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{Time: l.now}, err
	}

	addRate := 0.0
	if l.net.Len() < l.params.MaxAgents && l.params.AddRate != nil {
		addRate = l.params.AddRate(l.net.Len())
	}
	l.agg.SetRate(aggregator.EventAdd, addRate)
	l.agg.SetRate(aggregator.EventFollow, l.net.FollowActionTotalRate())
	l.agg.SetRate(aggregator.EventTweet, l.net.TweetActionTotalRate())
	l.agg.SetRate(aggregator.EventRetweet, l.bank.TotalRate())

	total := l.agg.Total()
	if total <= 0 {
		return StepResult{Time: l.now}, ErrNoEventPossible
	}

	class, ok := l.agg.Select(l.stream.Float64())
	if !ok {
		return StepResult{Time: l.now}, ErrNoEventPossible
	}

	applied, err := l.apply(class)
	if err != nil {
		return StepResult{Time: l.now}, err
	}

	l.advanceTime(total)
	l.step++

	if l.params.RecalcInterval > 0 && l.step%l.params.RecalcInterval == 0 {
		l.net.RecalcRates()
		l.bank.RecalcRates()
	}

	return StepResult{Class: class, Applied: applied, Time: l.now, Stats: l.net.Stats}, nil
}

func (l *Loop) advanceTime(totalRate float64) {
	var dt float64
	if l.params.UseRandomTimeIncrement {
		u := l.stream.Float64()
		if u <= 0 {
			u = minPositiveFloat
		}
		dt = -math.Log(u) / totalRate
	} else {
		dt = 1.0 / totalRate
	}
	l.now += model.SimTime(dt)
}

const minPositiveFloat = 1e-300

func (l *Loop) apply(class aggregator.EventClass) (bool, error) {
	switch class {
	case aggregator.EventAdd:
		return l.applyAdd()
	case aggregator.EventFollow:
		return l.applyFollow()
	case aggregator.EventTweet:
		return l.applyTweet()
	case aggregator.EventRetweet:
		return l.applyRetweet()
	default:
		return false, fmt.Errorf("kmc: unknown event class %v", class)
	}
}

func (l *Loop) applyAdd() (bool, error) {
	if _, err := l.net.CreateAgent(l.now); err != nil {
		if errors.Is(err, network.ErrCapacityExhausted) {
			return false, fmt.Errorf("%w: %v", ErrCapacityExhausted, err)
		}
		return false, err
	}
	return true, nil
}

func (l *Loop) applyFollow() (bool, error) {
	fromID, ok := l.net.SampleFollowActor(l.stream)
	if !ok {
		return false, nil
	}
	if l.params.FollowModel == nil {
		return false, nil
	}
	toID, ok := l.params.FollowModel.SelectTarget(l.net, fromID, l.stream)
	if !ok {
		return false, nil
	}
	ok, err := l.net.Follow(fromID, toID)
	return ok, err
}

func (l *Loop) applyTweet() (bool, error) {
	tweeterID, ok := l.net.SampleTweetActor(l.stream)
	if !ok {
		return false, nil
	}
	tweeter, err := l.net.Lookup(tweeterID)
	if err != nil {
		return false, err
	}

	id := l.nextTweet
	l.nextTweet++
	contentType := l.net.DrawContentType(tweeter.Type)
	baseRate, err := l.net.TransmissionWeightedRate(tweeterID, contentType)
	if err != nil {
		return false, err
	}
	if err := l.bank.Add(id, l.now, baseRate); err != nil {
		return false, err
	}
	l.tweeterOf[id] = tweeterID
	l.contentTypeOf[id] = contentType
	l.net.RecordTweetCohort(tweeterID, tweeter.Ideology)
	tweeter.TweetCount++
	l.nTweets++
	return true, nil
}

func (l *Loop) applyRetweet() (bool, error) {
	tweetID, ok := l.bank.SampleReactionTarget(l.now, l.stream)
	if !ok {
		return false, nil
	}
	tweeterID, ok := l.tweeterOf[tweetID]
	if !ok {
		return false, nil
	}
	tweeter, err := l.net.Lookup(tweeterID)
	if err != nil {
		return false, nil
	}
	reactorID, ok := tweeter.FollowerSet.SampleWeighted(l.stream)
	if !ok {
		return false, nil
	}
	reactor, err := l.net.Lookup(reactorID)
	if err != nil {
		return false, nil
	}

	originalTweeter := l.chooseRetweetAttribution(reactor, tweeterID)

	reactor.FollowerSet.Walk(func(followerID model.AgentID) {
		if follower, err := l.net.Lookup(followerID); err == nil {
			follower.PushRetweet(originalTweeter, l.now)
		}
	})
	reactor.RetweetCount++
	l.nRetweets++
	return true, nil
}

// chooseRetweetAttribution implements the "retweet mechanics" spec.md
// §4.5 describes: 50% of the time the reactor propagates a uniformly
// random followee's attribution; the other 50% it re-propagates its own
// most recent ring-buffer retweet if that is within the freshness window,
// falling back to the tweetbank-sampled tweeter when neither applies. This
// synthesizes the two descriptions in spec.md §4.5 into one coherent flow
// (see DESIGN.md).
func (l *Loop) chooseRetweetAttribution(reactor *network.Agent, sampledTweeter model.AgentID) model.AgentID {
	if l.stream.Float64() < 0.5 {
		if followee, ok := reactor.FollowSet.SampleUniform(l.stream); ok {
			return followee
		}
		return sampledTweeter
	}
	if last, ok := reactor.LastRetweet(); ok && l.now-last.At <= l.params.RetweetWindow {
		return last.OriginalTweeter
	}
	return sampledTweeter
}
