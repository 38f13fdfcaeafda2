// Package telemetry formats a finished (or in-progress) simulation run's
// totals for human consumption: the CLI's end-of-run report. Grounded on
// the teacher's internal/stats package's role — a post-run reporting layer
// distinct from the core loop — reimplemented for this domain, since the
// teacher's own report content (generation/fitness benchmarking) has
// nothing this simulation produces.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"kmcsim/internal/kmc"
	"kmcsim/internal/model"
)

// Summary is a point-in-time readable rendering of a run's running totals.
type Summary struct {
	Stats     model.RunStats
	Reason    kmc.TerminationReason
	Elapsed   time.Duration
	StartedAt time.Time
}

// NewSummary captures a Summary from a Loop's current state.
func NewSummary(stats model.RunStats, reason kmc.TerminationReason, startedAt time.Time) Summary {
	return Summary{Stats: stats, Reason: reason, Elapsed: time.Since(startedAt), StartedAt: startedAt}
}

// String renders a multi-line human-readable report, the CLI's
// end-of-run summary.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run finished: %s\n", s.Reason)
	fmt.Fprintf(&b, "  started:    %s\n", humanize.Time(s.StartedAt))
	fmt.Fprintf(&b, "  elapsed:    %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "  steps:      %s\n", humanize.Comma(s.Stats.StepCount))
	fmt.Fprintf(&b, "  sim time:   %.2f\n", float64(s.Stats.Time))
	fmt.Fprintf(&b, "  agents:     %s\n", humanize.Comma(s.Stats.NAgents))
	fmt.Fprintf(&b, "  follows:    %s (%s rejected)\n", humanize.Comma(s.Stats.NFollows), humanize.Comma(s.Stats.FollowRejections))
	fmt.Fprintf(&b, "  tweets:     %s\n", humanize.Comma(s.Stats.NTweets))
	fmt.Fprintf(&b, "  retweets:   %s\n", humanize.Comma(s.Stats.NRetweets))
	if s.Elapsed > 0 {
		rate := float64(s.Stats.StepCount) / s.Elapsed.Seconds()
		fmt.Fprintf(&b, "  throughput: %s steps/sec\n", humanize.Commaf(rate))
	}
	return b.String()
}
