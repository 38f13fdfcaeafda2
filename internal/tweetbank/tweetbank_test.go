package tweetbank

import (
	"math"
	"testing"

	"kmcsim/internal/model"
	"kmcsim/internal/rng"
)

func TestBuildObservationScheduleNormalizesToOne(t *testing.T) {
	density := PowerLawDensity{A: 1, B: 1.1}
	schedule := BuildObservationSchedule(density, 1.0, 480.0, 1.0, 1.2)
	if schedule.NBins() == 0 {
		t.Fatal("expected at least one bin")
	}
	var sum float64
	for _, p := range schedule.PMF {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("expected PMF to sum to 1, got %v", sum)
	}
	if schedule.Thresholds[len(schedule.Thresholds)-1] != 480.0 {
		t.Fatalf("expected last threshold clamped to x_end, got %v", schedule.Thresholds[len(schedule.Thresholds)-1])
	}
}

func TestObservationScheduleFrontLoaded(t *testing.T) {
	// x^-1.1 should concentrate most mass in the earliest bins.
	density := PowerLawDensity{A: 1, B: 1.1}
	schedule := BuildObservationSchedule(density, 1.0, 480.0, 1.0, 1.2)
	if schedule.PMF[0] <= schedule.PMF[len(schedule.PMF)-1] {
		t.Fatalf("expected front-loaded PMF, got first=%v last=%v", schedule.PMF[0], schedule.PMF[len(schedule.PMF)-1])
	}
}

func testSchedule() ObservationSchedule {
	return BuildObservationSchedule(PowerLawDensity{A: 1, B: 1.1}, 1.0, 480.0, 1.0, 1.2)
}

func TestTweetBankAddAndSample(t *testing.T) {
	bank, err := New(testSchedule())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := bank.Add(1, 0, 1.0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if bank.Len() != 1 {
		t.Fatalf("expected len 1, got %d", bank.Len())
	}
	stream := rng.NewStream(1)
	id, ok := bank.SampleReactionTarget(0, stream)
	if !ok || id != 1 {
		t.Fatalf("expected to sample tweet 1, got id=%v ok=%v", id, ok)
	}
}

func TestTweetBankAgesAndEvictsPastTimeSpan(t *testing.T) {
	bank, err := New(testSchedule())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	bank.Add(1, 0, 1.0)
	stream := rng.NewStream(2)

	// Sampling far beyond the observation span should repeatedly age the
	// tweet through every bin and eventually evict it.
	for i := 0; i < 50; i++ {
		if _, ok := bank.SampleReactionTarget(model.SimTime(10000), stream); !ok {
			break
		}
	}
	if bank.Len() != 0 {
		t.Fatalf("expected tweet to be evicted once past time_span, got len %d", bank.Len())
	}
}

func TestTweetBankAdvancesBinsOverTime(t *testing.T) {
	bank, err := New(testSchedule())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	bank.Add(1, 0, 1.0)
	stream := rng.NewStream(3)

	startBin, _ := bank.AgeBin(1)
	// Sample at a time past several bin thresholds; the tweet should have
	// advanced without being evicted (time_span=480 is far beyond this).
	bank.SampleReactionTarget(model.SimTime(10), stream)
	laterBin, ok := bank.AgeBin(1)
	if !ok {
		t.Fatal("expected tweet to still be live")
	}
	if laterBin <= startBin {
		t.Fatalf("expected bin to advance from %d, got %d", startBin, laterBin)
	}
}

func TestTweetBankSampleOnEmptyBank(t *testing.T) {
	bank, err := New(testSchedule())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := bank.SampleReactionTarget(0, rng.NewStream(4)); ok {
		t.Fatal("expected sampling an empty bank to report false")
	}
}

func TestNewRejectsEmptySchedule(t *testing.T) {
	if _, err := New(ObservationSchedule{}); err != ErrEmptySchedule {
		t.Fatalf("expected ErrEmptySchedule, got %v", err)
	}
}
