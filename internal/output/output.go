// Package output implements kmcsim's external-facing observation sinks: a
// time-series file writer and an optional live websocket
// broadcaster, per spec.md §6's "time-series text file" output contract and
// §1's notion of visualization as an external collaborator, not a core
// concern.
package output

import "kmcsim/internal/model"

// StepSnapshot is the per-step observation every Sink receives: the
// time-series file's columns (spec.md §6: time, n_agents, n_follows,
// n_tweets, n_retweets) plus the step count they were captured at.
type StepSnapshot struct {
	Step  int64         `json:"step"`
	Time  model.SimTime `json:"time"`
	Stats model.RunStats `json:"stats"`
}

// Sink observes a StepSnapshot after every KMC step, applied or not. The core loop
// depends only on this interface, never on a concrete output or transport —
// exactly the "external collaborator" boundary spec.md §1 draws.
type Sink interface {
	Observe(StepSnapshot)
}

// MultiSink fans one snapshot out to several sinks, so a run can write a
// time-series file and push to a websocket broadcaster simultaneously.
type MultiSink []Sink

func (m MultiSink) Observe(snap StepSnapshot) {
	for _, s := range m {
		s.Observe(snap)
	}
}
