package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunSimulationCompletesIterations(t *testing.T) {
	discardLogging()
	cfg := smallSessionConfig()
	cfg.EpisodeDuration = 0.5
	cfg.Tick = 0.1
	session := newTestSession(t, cfg)

	arena, err := NewArena(DefaultArenaConfig(), session.Agents())
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}

	metrics := NewEpisodeMetrics()
	if err := runSimulation(context.Background(), session, arena, 2, metrics); err != nil {
		t.Fatalf("runSimulation: %v", err)
	}
	if metrics.Len() != 2 || session.Iteration() != 2 {
		t.Fatalf("recorded %d iterations, session at %d", metrics.Len(), session.Iteration())
	}
	if session.Model().Optimizer().Steps() == 0 {
		t.Errorf("the policy was never trained")
	}
	for i, rec := range session.History() {
		if rec.TotalSteps == 0 {
			t.Errorf("iteration %d recorded no steps", i)
		}
	}
}

func TestLoadSimulationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.json")
	data := `{"iterations": 7, "session": {"Population": 12}, "arena": {"FoodSupply": 5}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	sim := SimulationFile{Session: DefaultSessionConfig(), Arena: DefaultArenaConfig()}
	if err := loadSimulationFile(path, &sim); err != nil {
		t.Fatalf("loadSimulationFile: %v", err)
	}
	if sim.Iterations != 7 || sim.Session.Population != 12 || sim.Arena.FoodSupply != 5 {
		t.Errorf("overrides not applied: %+v", sim)
	}
	// Untouched fields keep their defaults.
	if sim.Session.Model != DefaultModelConfig() || sim.Arena.EatReward != 10 {
		t.Errorf("defaults lost")
	}
	if err := sim.Session.Validate(); err != nil {
		t.Errorf("merged config invalid: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("{"), 0644)
	if err := loadSimulationFile(bad, &sim); err == nil {
		t.Errorf("malformed file accepted")
	}
}

func TestTokenLabel(t *testing.T) {
	v := DefaultVocabulary()
	tests := map[int]string{
		35: "BOS",
		3:  "left3",
		8:  "right0",
		26: "rotation2",
		34: "speed3",
		40: "[40]",
	}
	for tok, want := range tests {
		if got := tokenLabel(v, tok); got != want {
			t.Errorf("tokenLabel(%d) = %q, want %q", tok, got, want)
		}
	}
}
