package telemetry

import (
	"strings"
	"testing"
	"time"

	"kmcsim/internal/kmc"
	"kmcsim/internal/model"
)

func TestSummaryStringIncludesKeyTotals(t *testing.T) {
	stats := model.RunStats{
		StepCount:        12345,
		NAgents:          100,
		NFollows:         5000,
		NTweets:          200,
		NRetweets:        80,
		FollowRejections: 12,
		Time:             999.5,
	}
	s := NewSummary(stats, kmc.TerminationMaxSteps, time.Now().Add(-2*time.Second))
	out := s.String()

	for _, want := range []string{"max_steps", "12,345", "100", "5,000", "200", "80", "12"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected summary to contain %q, got:\n%s", want, out)
		}
	}
}
