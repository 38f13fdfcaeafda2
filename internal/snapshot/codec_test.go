package snapshot

import (
	"testing"

	"kmcsim/internal/model"
)

func TestEncodeDecodeRunRoundTrip(t *testing.T) {
	snap := model.RunSnapshot{
		RunID:      "run-1",
		ConfigHash: "abc123",
		Time:       100,
		Agents:     []model.AgentRecord{{ID: 1, FollowSet: []model.AgentID{2}}},
		Tweets:     []model.TweetRecord{{ID: 5, TweeterID: 1}},
	}

	data, err := EncodeRun(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.RunID != snap.RunID || decoded.ConfigHash != snap.ConfigHash {
		t.Fatalf("unexpected decoded run: %+v", decoded)
	}
	if len(decoded.Agents) != 1 || decoded.Agents[0].FollowSet[0] != 2 {
		t.Fatalf("unexpected decoded agents: %+v", decoded.Agents)
	}
}

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	data := []byte(`{"schema_version":99,"codec_version":99,"run_id":"run-1"}`)
	_, err := DecodeRun(data)
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
}
