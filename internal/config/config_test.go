package config

import (
	"os"
	"path/filepath"
	"testing"

	"kmcsim/internal/model"
)

func scenario2YAML() string {
	return `
analysis:
  initial_agents: 10
  max_agents: 10
  max_analysis_steps: 10000
  follow_model: random
  use_random_time_increment: false
rates:
  add:
    function: constant
    value: 0
ideologies:
  - name: center
    add_weight: 1
regions:
  - name: north_america
    add_weight: 1
    preference_class_weights: {moderate: 1}
    ideology_weights: {center: 1}
    language_weights: {english: 1}
preference_classes:
  - name: moderate
    tweet_transmission:
      plain:
        ordinary: 1.0
agents:
  - type: ordinary
    weights:
      add: 1.0
      follow: 1.0
      tweet_type: {plain: 1.0}
    followback_probability: 0
    rates:
      follow: 0.1
      tweet: 0
`
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kmcsim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadFromFileLayersOverDefaults(t *testing.T) {
	path := writeTemp(t, scenario2YAML())
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analysis.MaxAgents != 10 {
		t.Fatalf("expected max_agents 10, got %d", cfg.Analysis.MaxAgents)
	}
	// Default's tweet_observation section should survive since the file
	// never mentions it.
	if cfg.TweetObservation.DensityFunction != "power_law" {
		t.Fatalf("expected default density_function to survive, got %q", cfg.TweetObservation.DensityFunction)
	}
}

func TestValidateAcceptsScenario2(t *testing.T) {
	path := writeTemp(t, scenario2YAML())
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected scenario-2 config to validate cleanly, got %v", err)
	}
}

func TestValidateReportsMultipleViolations(t *testing.T) {
	cfg := Default()
	cfg.Analysis.MaxAgents = -1
	cfg.Analysis.FollowModel = "not_a_model"
	cfg.Rates.Add.Value = -5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"max_agents", "follow_model", "rates.add.value"} {
		if !contains(msg, want) {
			t.Fatalf("expected error message to mention %q, got %q", want, msg)
		}
	}
}

func TestToNetworkParamsFlattensRegionTables(t *testing.T) {
	path := writeTemp(t, scenario2YAML())
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	params, err := cfg.ToNetworkParams()
	if err != nil {
		t.Fatalf("to network params: %v", err)
	}
	if len(params.LanguageWeights) != 1 || params.LanguageWeights[0].Key != model.LanguageEnglish {
		t.Fatalf("expected a single flattened english weight, got %+v", params.LanguageWeights)
	}
	if params.ActionFollowRateByType[model.AgentTypeOrdinary] != 0.1 {
		t.Fatalf("expected ordinary action-follow rate 0.1, got %v", params.ActionFollowRateByType[model.AgentTypeOrdinary])
	}
}

func TestToKMCParamsRespectsRateFunction(t *testing.T) {
	path := writeTemp(t, scenario2YAML())
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	params, err := cfg.ToKMCParams(nil)
	if err != nil {
		t.Fatalf("to kmc params: %v", err)
	}
	if params.AddRate(100) != 0 {
		t.Fatalf("expected zero add rate, got %v", params.AddRate(100))
	}
	if params.UseRandomTimeIncrement {
		t.Fatal("expected use_random_time_increment false to survive")
	}
}

func TestBuildFollowModelResolvesRandom(t *testing.T) {
	cfg := Default()
	cfg.Analysis.FollowModel = "random"
	fm, err := cfg.BuildFollowModel(nil)
	if err != nil {
		t.Fatalf("build follow model: %v", err)
	}
	if fm.Name() != "random" {
		t.Fatalf("expected random model, got %s", fm.Name())
	}
}

func TestBuildFollowModelRejectsUnknownName(t *testing.T) {
	cfg := Default()
	cfg.Analysis.FollowModel = "made_up"
	if _, err := cfg.BuildFollowModel(nil); err == nil {
		t.Fatal("expected an error for an unrecognized follow model")
	}
}

func TestHashEqualForIdenticalConfigs(t *testing.T) {
	a := Default()
	b := Default()
	ha, err := a.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hb, err := b.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected identical configs to hash identically, got %s vs %s", ha, hb)
	}
	b.Analysis.MaxAgents = b.Analysis.MaxAgents + 1
	hc, err := b.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hc == ha {
		t.Fatal("expected a changed config to hash differently")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
