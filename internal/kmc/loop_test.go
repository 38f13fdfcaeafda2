package kmc

import (
	"context"
	"testing"
	"time"

	"kmcsim/internal/model"
	"kmcsim/internal/network"
	"kmcsim/internal/rng"
	"kmcsim/internal/tweetbank"
)

func testNetwork(t *testing.T, maxAgents int, seed int64) *network.Network {
	t.Helper()
	params := network.Params{
		MaxAgents:              maxAgents,
		TypeWeights:            []network.Weight[model.AgentType]{{Key: model.AgentTypeOrdinary, Value: 1}},
		RegionWeights:          []network.Weight[model.Region]{{Key: model.RegionNorthAmerica, Value: 1}},
		LanguageWeights:        []network.Weight[model.Language]{{Key: model.LanguageEnglish, Value: 1}},
		IdeologyWeights:        []network.Weight[model.Ideology]{{Key: model.IdeologyCenter, Value: 1}},
		PreferenceClassWeights: []network.Weight[model.PreferenceClass]{{Key: model.PreferenceModerate, Value: 1}},
		FollowRateByType:       map[model.AgentType]float64{model.AgentTypeOrdinary: 1.0},
		FollowbackProbability:  map[model.AgentType]float64{model.AgentTypeOrdinary: 0},
		ActionFollowRateByType: map[model.AgentType]float64{model.AgentTypeOrdinary: 0.1},
		ActionTweetRateByType:  map[model.AgentType]float64{model.AgentTypeOrdinary: 0},
		RetweetRingCapacity:    4,
		DistanceBins:           2,
	}
	return network.New(params, rng.NewStream(seed))
}

func testBank(t *testing.T) *tweetbank.TweetBank {
	t.Helper()
	schedule := tweetbank.BuildObservationSchedule(tweetbank.PowerLawDensity{A: 1, B: 1.1}, 1.0, 480.0, 1.0, 1.2)
	bank, err := tweetbank.New(schedule)
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}
	return bank
}

func TestEmptyNetworkGrowsByPoissonAddRate(t *testing.T) {
	net := testNetwork(t, 10, 1)
	bank := testBank(t)
	params := Params{
		MaxAgents: 10,
		MaxTime:   1000,
		AddRate:   ConstantAddRate(0.001),
	}
	loop := New(params, net, bank, rng.NewStream(2), nil)
	reason, err := loop.Run(context.Background(), Hooks{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != TerminationMaxTime {
		t.Fatalf("expected max_time termination, got %v", reason)
	}
	if net.Len() > 10 {
		t.Fatalf("expected agent count bounded by capacity, got %d", net.Len())
	}
	if net.Stats.NFollows != 0 {
		t.Fatalf("expected zero follows when max_time is reached on the first agent's creation, got %d", net.Stats.NFollows)
	}
}

func TestRandomFollowChainAccumulatesFollows(t *testing.T) {
	net := testNetwork(t, 10, 3)
	for i := 0; i < 10; i++ {
		if _, err := net.CreateAgent(0); err != nil {
			t.Fatalf("seed agent %d: %v", i, err)
		}
	}
	bank := testBank(t)
	params := Params{
		MaxAgents:   10,
		MaxSteps:    10000,
		AddRate:     ConstantAddRate(0),
		FollowModel: network.RandomFollow{},
	}
	loop := New(params, net, bank, rng.NewStream(4), nil)
	reason, err := loop.Run(context.Background(), Hooks{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != TerminationMaxSteps {
		t.Fatalf("expected max_steps termination, got %v", reason)
	}
	if err := net.CheckInvariants(); err != nil {
		t.Fatalf("invariant check failed: %v", err)
	}
	if net.Stats.NFollows == 0 {
		t.Fatalf("expected follows to accumulate over %d steps, got none", params.MaxSteps)
	}
}

func TestLoopStopsOnAbort(t *testing.T) {
	net := testNetwork(t, 1000, 5)
	for i := 0; i < 10; i++ {
		net.CreateAgent(0)
	}
	bank := testBank(t)
	params := Params{
		MaxAgents:   1000,
		MaxSteps:    1_000_000,
		AddRate:     ConstantAddRate(0.01),
		FollowModel: network.RandomFollow{},
	}
	var steps int
	abort := &AbortSignal{}
	loop := New(params, net, bank, rng.NewStream(6), abort)
	reason, err := loop.Run(context.Background(), Hooks{OnStep: func(StepResult) {
		steps++
		if steps == 1000 {
			abort.Raise()
		}
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != TerminationAbort {
		t.Fatalf("expected abort termination, got %v", reason)
	}
	if steps < 1000 || steps > 1001 {
		t.Fatalf("expected loop to exit within one step of the abort raise, got %d steps", steps)
	}
}

func TestLoopStopsOnContextCancellation(t *testing.T) {
	net := testNetwork(t, 1000, 7)
	bank := testBank(t)
	params := Params{
		MaxAgents: 1000,
		MaxSteps:  1_000_000,
		AddRate:   ConstantAddRate(0.5),
	}
	ctx, cancel := context.WithCancel(context.Background())
	loop := New(params, net, bank, rng.NewStream(8), nil)
	var steps int
	_, err := loop.Run(ctx, Hooks{OnStep: func(StepResult) {
		steps++
		if steps == 5 {
			cancel()
		}
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if steps < 5 {
		t.Fatalf("expected at least 5 steps before cancellation, got %d", steps)
	}
}

func TestLoopRespectsMaxRealTime(t *testing.T) {
	net := testNetwork(t, 1000, 9)
	bank := testBank(t)
	params := Params{
		MaxAgents:   1000,
		MaxSteps:    1_000_000_000,
		MaxRealTime: 50 * time.Millisecond,
		AddRate:     ConstantAddRate(0.5),
	}
	loop := New(params, net, bank, rng.NewStream(10), nil)
	start := time.Now()
	reason, err := loop.Run(context.Background(), Hooks{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != TerminationMaxRealTime {
		t.Fatalf("expected max_real_time termination, got %v", reason)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected the real-time bound to cut the run short, took %v", elapsed)
	}
}

func TestStepTimeIsMonotonic(t *testing.T) {
	net := testNetwork(t, 1000, 11)
	for i := 0; i < 10; i++ {
		net.CreateAgent(0)
	}
	bank := testBank(t)
	params := Params{
		MaxAgents:   1000,
		AddRate:     ConstantAddRate(0.1),
		FollowModel: network.RandomFollow{},
	}
	loop := New(params, net, bank, rng.NewStream(12), nil)
	last := loop.Now()
	for i := 0; i < 2000; i++ {
		if _, err := loop.Step(context.Background()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if loop.Now() < last {
			t.Fatalf("time went backwards at step %d: %v -> %v", i, last, loop.Now())
		}
		last = loop.Now()
	}
}

func TestSnapshotRestoreReproducesStatsAndInvariants(t *testing.T) {
	net := testNetwork(t, 20, 20)
	for i := 0; i < 10; i++ {
		net.CreateAgent(0)
	}
	bank := testBank(t)
	params := Params{
		MaxAgents:   20,
		MaxSteps:    500,
		AddRate:     ConstantAddRate(0.2),
		FollowModel: network.RandomFollow{},
	}
	loop := New(params, net, bank, rng.NewStream(21), nil)
	if _, err := loop.Run(context.Background(), Hooks{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	snap := loop.Snapshot()
	if len(snap.Agents) == 0 {
		t.Fatal("expected a non-empty agent snapshot")
	}

	restoredNet := testNetwork(t, 20, 20)
	restoredBank := testBank(t)
	restored, err := Restore(params, restoredNet, restoredBank, snap, rng.NewStream(22), nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := restoredNet.CheckInvariants(); err != nil {
		t.Fatalf("restored invariants failed: %v", err)
	}
	if restored.Now() != loop.Now() {
		t.Fatalf("expected restored time %v, got %v", loop.Now(), restored.Now())
	}
	gotStats, wantStats := restored.Stats(), loop.Stats()
	if gotStats.NAgents != wantStats.NAgents || gotStats.NFollows != wantStats.NFollows ||
		gotStats.NTweets != wantStats.NTweets || gotStats.FollowRejections != wantStats.FollowRejections {
		t.Fatalf("expected matching stats, got %+v want %+v", gotStats, wantStats)
	}

	reason, err := restored.Run(context.Background(), Hooks{})
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if reason != TerminationMaxSteps && reason != TerminationMaxAgents && reason != TerminationNoEvent {
		t.Fatalf("unexpected resumed termination: %v", reason)
	}
}

func TestStepReturnsErrNoEventPossibleWhenAllRatesZero(t *testing.T) {
	net := testNetwork(t, 1000, 13)
	bank := testBank(t)
	params := Params{
		MaxAgents: 1000,
		AddRate:   ConstantAddRate(0),
	}
	loop := New(params, net, bank, rng.NewStream(14), nil)
	if _, err := loop.Step(context.Background()); err != ErrNoEventPossible {
		t.Fatalf("expected ErrNoEventPossible, got %v", err)
	}
}
