package tweetbank

import (
	"errors"
	"fmt"
	"sync"

	"kmcsim/internal/model"
	"kmcsim/internal/rate"
)

// ErrEmptySchedule is returned by New when given a schedule with no bins.
var ErrEmptySchedule = errors.New("tweetbank: empty observation schedule")

// maxRebinRetries bounds how many times SampleReactionTarget will retry a
// sample that lands on a stale tweet before falling back to a linear sweep,
// per the livelock-avoidance design spec.md §9 calls for.
const maxRebinRetries = 16

// ageClassifier is the single-level Classifier a TweetBank's rate.Tree
// uses: a tweet's bin is whatever TweetBank currently has on record for it,
// not recomputed from a formula, since bins advance only via checkAndRebin.
type ageClassifier struct {
	bank *TweetBank
}

func (c *ageClassifier) Levels() int        { return 1 }
func (c *ageClassifier) BinCount(_ int) int { return c.bank.schedule.NBins() }
func (c *ageClassifier) Classify(id model.TweetID, _ int) int {
	return c.bank.ageBin[id]
}

// TweetBank holds every live tweet in a rate.Tree keyed by age bin. Its
// leaves' per-member rate is the bin's observation probability multiplied
// by the tweet's fixed tweeter-follower-category base rate, per spec.md
// §4.4 point 1.
type TweetBank struct {
	mu       sync.Mutex
	schedule ObservationSchedule
	tree     *rate.Tree[model.TweetID]

	ageBin    map[model.TweetID]int
	nextRebin map[model.TweetID]model.SimTime
	creation  map[model.TweetID]model.SimTime
	baseRate  map[model.TweetID]float64
}

// New builds an empty TweetBank shaped by schedule.
func New(schedule ObservationSchedule) (*TweetBank, error) {
	if schedule.NBins() == 0 {
		return nil, ErrEmptySchedule
	}
	b := &TweetBank{
		schedule:  schedule,
		ageBin:    make(map[model.TweetID]int),
		nextRebin: make(map[model.TweetID]model.SimTime),
		creation:  make(map[model.TweetID]model.SimTime),
		baseRate:  make(map[model.TweetID]float64),
	}
	b.tree = rate.NewTree[model.TweetID](&ageClassifier{bank: b})
	return b, nil
}

// Add inserts a freshly created tweet at age-bin 0. baseRate is the fixed
// tweeter-follower-category rate product spec.md §4.4 names; it is scaled
// by the schedule's per-bin observation probability as the tweet ages.
func (b *TweetBank) Add(id model.TweetID, now model.SimTime, baseRate float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ageBin[id] = 0
	b.creation[id] = now
	b.baseRate[id] = baseRate
	b.nextRebin[id] = now + model.SimTime(b.schedule.Thresholds[0])
	_, err := b.tree.Add(id, b.schedule.PMF[0]*baseRate)
	return err
}

// Len reports the number of live (un-evicted) tweets.
func (b *TweetBank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tree.Len()
}

// TotalRate reports the bank's current aggregate reaction rate.
func (b *TweetBank) TotalRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tree.TotalRate()
}

// RecalcRates rebaselines the bank's tree totals from its leaves up, per
// spec.md §4.2's configured-interval rebaseline policy.
func (b *TweetBank) RecalcRates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree.RecalcRates()
}

// AgeBin reports id's current age-bin index, for tests and diagnostics.
func (b *TweetBank) AgeBin(id model.TweetID) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bin, ok := b.ageBin[id]
	return bin, ok
}

// Snapshot captures every live tweet's age/rebin/rate bookkeeping as
// model.TweetRecord fields, excluding TweeterID/ContentType/Ideology, which
// TweetBank never tracks itself; internal/kmc's Loop, the only caller that
// knows tweeter attribution, merges those in.
func (b *TweetBank) Snapshot() map[model.TweetID]model.TweetRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs := make(map[model.TweetID]model.TweetRecord, len(b.ageBin))
	for id, bin := range b.ageBin {
		recs[id] = model.TweetRecord{
			ID:            id,
			CreationTime:  b.creation[id],
			AgeBin:        bin,
			NextRebinTime: b.nextRebin[id],
			BaseRate:      b.baseRate[id],
		}
	}
	return recs
}

// RestoreTweets repopulates a freshly constructed, empty TweetBank from
// persisted records, preserving each tweet's current age bin and next
// rebin time rather than restarting it at bin 0 the way Add does.
func (b *TweetBank) RestoreTweets(records []model.TweetRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, rec := range records {
		if rec.AgeBin < 0 || rec.AgeBin >= b.schedule.NBins() {
			return fmt.Errorf("tweetbank: restore bin %d out of range for tweet %d", rec.AgeBin, rec.ID)
		}
		b.ageBin[rec.ID] = rec.AgeBin
		b.creation[rec.ID] = rec.CreationTime
		b.baseRate[rec.ID] = rec.BaseRate
		b.nextRebin[rec.ID] = rec.NextRebinTime
		if _, err := b.tree.Add(rec.ID, b.schedule.PMF[rec.AgeBin]*rec.BaseRate); err != nil {
			return err
		}
	}
	return nil
}

// SampleReactionTarget draws a tweet weighted by current reaction rate,
// lazily aging (or evicting) stale candidates as it samples: before
// accepting a draw it checks the candidate's next-rebin time, and if
// simulated time has passed it, advances the tweet's bin (or evicts it)
// and retries, per the lazy-aging design in spec.md §4.4/§9. Reports false
// if the bank is empty.
func (b *TweetBank) SampleReactionTarget(now model.SimTime, src rate.Source) (model.TweetID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for attempt := 0; attempt < maxRebinRetries; attempt++ {
		id, ok := b.tree.SampleWeighted(src)
		if !ok {
			return 0, false
		}
		if b.checkAndRebin(id, now) {
			return id, true
		}
	}
	// Bounded retries exhausted: every draw kept landing on stale tweets.
	// Force a full linear sweep so aging cannot livelock sampling, then
	// take one more draw against the now-current tree.
	b.sweepExpired(now)
	return b.tree.SampleWeighted(src)
}

// checkAndRebin reports whether id is valid to sample as-is at now. If its
// next-rebin time has passed, it advances id by one bin (or evicts it past
// the schedule's last bin) and reports false so the caller retries.
// Mirrors TimeDepRateTree::ElementChecker::check in tweets.cpp.
func (b *TweetBank) checkAndRebin(id model.TweetID, now model.SimTime) bool {
	nextRebin, ok := b.nextRebin[id]
	if !ok {
		return false
	}
	if now <= nextRebin {
		return true
	}

	bin := b.ageBin[id] + 1
	if bin >= b.schedule.NBins() {
		b.evict(id)
		return false
	}
	// The tree locates members through ageBin, so id leaves its old bin's
	// leaf before ageBin changes and joins the new bin's leaf afterwards.
	b.tree.Remove(id)
	b.ageBin[id] = bin
	b.nextRebin[id] = b.creation[id] + model.SimTime(b.schedule.Thresholds[bin])
	b.tree.Add(id, b.schedule.PMF[bin]*b.baseRate[id])
	return false
}

func (b *TweetBank) evict(id model.TweetID) {
	b.tree.Remove(id)
	delete(b.ageBin, id)
	delete(b.nextRebin, id)
	delete(b.creation, id)
	delete(b.baseRate, id)
}

// sweepExpired forces every tweet whose next-rebin time has passed to
// advance or evict, without going through weighted sampling. Iteration
// order over the live set is irrelevant here — each tweet's aging is
// independent of every other's — so the map range below carries none of
// the determinism hazard a weighted draw would.
func (b *TweetBank) sweepExpired(now model.SimTime) {
	ids := make([]model.TweetID, 0, len(b.nextRebin))
	for id := range b.nextRebin {
		ids = append(ids, id)
	}
	for _, id := range ids {
		for {
			nextRebin, ok := b.nextRebin[id]
			if !ok || now <= nextRebin {
				break
			}
			b.checkAndRebin(id, now)
		}
	}
}
