// Package aggregator maintains the top-level category rate totals (add,
// follow, tweet, retweet) and partitions [0,1) among them for the KmcLoop's
// event-class draw, per spec.md §4.5 point 1. The per-category sums
// themselves live in each subsystem's own RateTree root; this package only
// adds the one new top-level sum and the partition lookup.
package aggregator

import "kmcsim/internal/rate"

// ZEROTOL mirrors rate.ZEROTOL: the tolerance below which an accumulated
// category-rate remainder is treated as zero when partitioning [0,1),
// absorbing floating point overshoot at the final category's boundary.
const ZEROTOL = rate.ZEROTOL

// EventClass names one of the four top-level KMC event categories.
type EventClass int

const (
	EventAdd EventClass = iota
	EventFollow
	EventTweet
	EventRetweet
	numEventClasses
)

func (c EventClass) String() string {
	switch c {
	case EventAdd:
		return "add"
	case EventFollow:
		return "follow"
	case EventTweet:
		return "tweet"
	case EventRetweet:
		return "retweet"
	default:
		return "unknown"
	}
}

// Aggregator holds the current rate for each event class and answers the
// weighted draw that selects which class a KMC step dispatches to.
type Aggregator struct {
	rates [numEventClasses]float64
}

// New returns an Aggregator with all category rates at zero.
func New() *Aggregator {
	return &Aggregator{}
}

// SetRate updates one category's current rate. Callers recompute this from
// their own RateTree root total (or a configured add-rate function) after
// every mutation that could change it.
func (a *Aggregator) SetRate(class EventClass, rateVal float64) {
	a.rates[class] = rateVal
}

// Rate returns the currently recorded rate for class.
func (a *Aggregator) Rate(class EventClass) float64 {
	return a.rates[class]
}

// Total returns the global event rate: the sum across every category.
func (a *Aggregator) Total() float64 {
	var total float64
	for _, r := range a.rates {
		total += r
	}
	return total
}

// Select draws u in [0,1) (typically src.Float64()) and returns the event
// class whose cumulative slice of the [0, Total()) partition it falls in.
// Reports false if the total rate is zero (no event is currently possible).
func (a *Aggregator) Select(u float64) (EventClass, bool) {
	total := a.Total()
	if total <= 0 {
		return 0, false
	}
	target := u * total
	for class := EventClass(0); class < numEventClasses; class++ {
		target -= a.rates[class]
		if target <= ZEROTOL {
			return class, true
		}
	}
	return numEventClasses - 1, true
}
