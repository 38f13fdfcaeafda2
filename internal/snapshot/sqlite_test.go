//go:build sqlite

package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"kmcsim/internal/model"
)

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kmcsim.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	snap := model.RunSnapshot{
		RunID:      "run-1",
		ConfigHash: "abc123",
		Time:       250,
		Agents: []model.AgentRecord{
			{ID: 1, Type: model.AgentTypeCelebrity, FollowSet: []model.AgentID{2, 3}},
		},
		Tweets: []model.TweetRecord{{ID: 1, TweeterID: 1}},
	}
	if err := store.SaveRun(ctx, snap); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.LoadRun(ctx, snap.RunID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if !ok {
		t.Fatalf("expected run %s", snap.RunID)
	}
	if loaded.Time != snap.Time || len(loaded.Agents) != 1 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kmcsim.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first init: %v", err)
	}
	snap := model.RunSnapshot{RunID: "persisted-run", Time: 10}
	if err := first.SaveRun(ctx, snap); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	loaded, ok, err := second.LoadRun(ctx, snap.RunID)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !ok || loaded.RunID != snap.RunID {
		t.Fatalf("expected persisted run, got ok=%t value=%+v", ok, loaded)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kmcsim.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	for _, id := range []string{"run-b", "run-a"} {
		if err := store.SaveRun(ctx, model.RunSnapshot{RunID: id}); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	ids, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-a" || ids[1] != "run-b" {
		t.Fatalf("expected sorted run ids, got %v", ids)
	}
}
