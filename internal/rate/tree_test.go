package rate

import (
	"math"
	"testing"

	"kmcsim/internal/rng"
)

// modClassifier buckets an int by two axes: mod outerBins, then mod
// innerBins of the quotient. It stands in for the language/distance/
// preference-class classifier internal/network uses in production.
type modClassifier struct {
	outerBins, innerBins int
}

func (c modClassifier) Levels() int { return 2 }

func (c modClassifier) BinCount(level int) int {
	if level == 0 {
		return c.outerBins
	}
	return c.innerBins
}

func (c modClassifier) Classify(elem int, level int) int {
	if level == 0 {
		return elem % c.outerBins
	}
	return (elem / c.outerBins) % c.innerBins
}

func TestTreeAddRemoveRoundTrip(t *testing.T) {
	tree := NewTree[int](modClassifier{outerBins: 3, innerBins: 2})

	added, err := tree.Add(5, 2.0)
	if err != nil || !added {
		t.Fatalf("expected add to succeed, got added=%v err=%v", added, err)
	}
	added, _ = tree.Add(5, 2.0)
	if added {
		t.Fatal("expected duplicate add to report false")
	}
	if tree.Len() != 1 {
		t.Fatalf("expected len 1, got %d", tree.Len())
	}
	if tree.TotalRate() != 2.0 {
		t.Fatalf("expected total rate 2.0, got %v", tree.TotalRate())
	}

	if !tree.Remove(5) {
		t.Fatal("expected remove to report true")
	}
	if tree.Len() != 0 || tree.TotalRate() != 0 {
		t.Fatalf("expected empty tree after remove, got len=%d rate=%v", tree.Len(), tree.TotalRate())
	}
}

func TestTreeRejectsNegativeRate(t *testing.T) {
	tree := NewTree[int](modClassifier{outerBins: 3, innerBins: 2})
	_, err := tree.Add(1, -1.0)
	if err != ErrNegativeDelta {
		t.Fatalf("expected ErrNegativeDelta, got %v", err)
	}
}

func TestTreeReplaceRate(t *testing.T) {
	tree := NewTree[int](modClassifier{outerBins: 3, innerBins: 2})
	tree.Add(7, 1.0)

	ok, err := tree.ReplaceRate(7, 4.0)
	if err != nil || !ok {
		t.Fatalf("expected replace to succeed, got ok=%v err=%v", ok, err)
	}
	if tree.TotalRate() != 4.0 {
		t.Fatalf("expected total rate 4.0 after replace, got %v", tree.TotalRate())
	}

	ok, _ = tree.ReplaceRate(999, 1.0)
	if ok {
		t.Fatal("expected replacing a non-member's rate to report false")
	}
}

func TestTreeTotalRateInvariant(t *testing.T) {
	classifier := modClassifier{outerBins: 4, innerBins: 3}
	tree := NewTree[int](classifier)
	stream := rng.NewStream(9)

	var expected float64
	n := 2000
	for i := 0; i < n; i++ {
		rateVal := stream.Float64() * 10
		if _, err := tree.Add(i, rateVal); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		expected += rateVal
	}

	if math.Abs(tree.TotalRate()-expected) > 1e-6*float64(n) {
		t.Fatalf("tree total rate %v diverged from expected %v", tree.TotalRate(), expected)
	}

	tree.RecalcRates()
	if math.Abs(tree.TotalRate()-expected) > 1e-6*float64(n) {
		t.Fatalf("recalculated total rate %v diverged from expected %v", tree.TotalRate(), expected)
	}
}

func TestTreeSampleWeightedFairness(t *testing.T) {
	classifier := modClassifier{outerBins: 2, innerBins: 2}
	tree := NewTree[int](classifier)
	// Element 0 gets 9x the rate of element 1: expect roughly a 9:1 split.
	tree.Add(0, 9.0)
	tree.Add(1, 1.0)

	stream := rng.NewStream(3)
	var count0, count1 int
	const draws = 200_000
	for i := 0; i < draws; i++ {
		v, ok := tree.SampleWeighted(stream)
		if !ok {
			t.Fatal("expected a weighted sample")
		}
		if v == 0 {
			count0++
		} else {
			count1++
		}
	}

	p := 0.9
	expected := p * draws
	sigma := math.Sqrt(draws * p * (1 - p))
	if diff := float64(count0) - expected; diff < -5*sigma || diff > 5*sigma {
		t.Fatalf("element 0 sampled %d times, expected ~%.0f +/- %.0f", count0, expected, 5*sigma)
	}
	if count0+count1 != draws {
		t.Fatalf("expected %d total draws, got %d", draws, count0+count1)
	}
}

func TestTreeSampleUniformIgnoresRate(t *testing.T) {
	classifier := modClassifier{outerBins: 2, innerBins: 2}
	tree := NewTree[int](classifier)
	// Wildly unequal rates; uniform sampling should still split ~50/50.
	tree.Add(0, 1000.0)
	tree.Add(1, 0.001)

	stream := rng.NewStream(11)
	var count0, count1 int
	const draws = 200_000
	for i := 0; i < draws; i++ {
		v, ok := tree.SampleUniform(stream)
		if !ok {
			t.Fatal("expected a uniform sample")
		}
		if v == 0 {
			count0++
		} else {
			count1++
		}
	}

	expected := 0.5 * draws
	sigma := math.Sqrt(draws * 0.5 * 0.5)
	if diff := float64(count0) - expected; diff < -5*sigma || diff > 5*sigma {
		t.Fatalf("element 0 sampled %d times under uniform sampling, expected ~%.0f +/- %.0f", count0, expected, 5*sigma)
	}
}

func TestTreeContainsAndWalk(t *testing.T) {
	classifier := modClassifier{outerBins: 3, innerBins: 2}
	tree := NewTree[int](classifier)
	for _, v := range []int{1, 2, 3, 4} {
		tree.Add(v, 1.0)
	}
	if !tree.Contains(2) {
		t.Fatal("expected tree to contain 2")
	}
	if tree.Contains(99) {
		t.Fatal("expected tree to not contain 99")
	}

	seen := map[int]bool{}
	tree.Walk(func(e int) { seen[e] = true })
	for _, v := range []int{1, 2, 3, 4} {
		if !seen[v] {
			t.Fatalf("expected Walk to visit %d", v)
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected Walk to visit exactly 4 members, got %d", len(seen))
	}
}

func TestTreeSampleOnEmptyTree(t *testing.T) {
	tree := NewTree[int](modClassifier{outerBins: 2, innerBins: 2})
	if _, ok := tree.SampleWeighted(rng.NewStream(1)); ok {
		t.Fatal("expected weighted sample on empty tree to report false")
	}
	if _, ok := tree.SampleUniform(rng.NewStream(1)); ok {
		t.Fatal("expected uniform sample on empty tree to report false")
	}
}

// ageClassifier is a single-level classifier used to exercise ShiftBins,
// mirroring how internal/tweetbank classifies tweets purely by age bin.
type ageClassifier struct {
	bins []int // bin index per element, mutated externally as tweets age
	n    int
}

func (c *ageClassifier) Levels() int          { return 1 }
func (c *ageClassifier) BinCount(_ int) int   { return c.n }
func (c *ageClassifier) Classify(e int, _ int) int {
	return c.bins[e]
}

func TestTreeShiftBinsAgesMembersAndMergesOverflow(t *testing.T) {
	classifier := &ageClassifier{bins: make([]int, 4), n: 3}
	tree := NewTree[int](classifier)

	for i := 0; i < 4; i++ {
		classifier.bins[i] = i % 3
	}
	tree.Add(0, 1.0) // bin 0
	tree.Add(1, 1.0) // bin 1
	tree.Add(2, 1.0) // bin 2 (oldest, last bin)

	tree.ShiftBins()
	// After shifting: new bin 0 is empty, old bin 0->1, old bin 1->2,
	// old bin 2 (the last bin) overflows and merges into the new last bin.
	if tree.Len() != 3 {
		t.Fatalf("expected member count preserved across shift, got %d", tree.Len())
	}
	if math.Abs(tree.TotalRate()-3.0) > 1e-9 {
		t.Fatalf("expected total rate preserved across shift, got %v", tree.TotalRate())
	}
}
