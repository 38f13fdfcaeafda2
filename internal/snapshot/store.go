// Package snapshot persists and restores whole-run state so a simulation
// can be resumed after an abort or a scheduled checkpoint. A run is
// serialized as one model.RunSnapshot rather than as separate entity
// tables: the KMC loop, network and tweet bank are checkpointed together
// or not at all, since resuming a network without its matching tweet bank
// would violate the rate-tree invariants both sides depend on.
package snapshot

import (
	"context"

	"kmcsim/internal/model"
)

// Store defines checkpoint persistence for a run's model.RunSnapshot.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, snap model.RunSnapshot) error
	LoadRun(ctx context.Context, runID string) (model.RunSnapshot, bool, error)
	ListRuns(ctx context.Context) ([]string, error)
	Close() error
}
