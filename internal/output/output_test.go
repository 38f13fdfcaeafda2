package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kmcsim/internal/model"
)

func TestTimeSeriesWriterWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	w, err := NewTimeSeriesWriter(path, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	w.Observe(StepSnapshot{Step: 1, Time: 10, Stats: model.RunStats{NAgents: 2, NFollows: 1}})
	w.Observe(StepSnapshot{Step: 2, Time: 20, Stats: model.RunStats{NAgents: 3, NFollows: 2}})
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), string(data))
	}
	if lines[0] != "time,n_agents,n_follows,n_tweets,n_retweets" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}

func TestTimeSeriesWriterRespectsCadence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	w, err := NewTimeSeriesWriter(path, 3)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for i := 0; i < 9; i++ {
		w.Observe(StepSnapshot{Step: int64(i), Time: model.SimTime(i)})
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1+3 {
		t.Fatalf("expected header + 3 rows at cadence 3 over 9 steps, got %d: %q", len(lines), string(data))
	}
}

func TestMultiSinkFansOutToEverySink(t *testing.T) {
	var a, b countingSink
	m := MultiSink{&a, &b}
	m.Observe(StepSnapshot{Step: 1})
	if a.count != 1 || b.count != 1 {
		t.Fatalf("expected both sinks observed once, got a=%d b=%d", a.count, b.count)
	}
}

type countingSink struct{ count int }

func (c *countingSink) Observe(StepSnapshot) { c.count++ }

func TestBroadcasterObserveDoesNotBlockWithNoClients(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()
	for i := 0; i < 300; i++ {
		b.Observe(StepSnapshot{Step: int64(i)})
	}
}
