package main

import (
	"context"
	"errors"
	"math"
	"testing"
)

func smallSessionConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Population = 4
	cfg.EpisodeDuration = 3
	cfg.Tick = 1
	cfg.Trainer.StepsPerPhase = 4
	cfg.Trainer.StepsPerFrame = 2
	cfg.Trainer.TopKPercent = 50
	return cfg
}

func newTestSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()
	discardLogging()
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

// playTick has every agent act on a fixed observation and record the step
// with the given per-agent reward.
func playTick(t *testing.T, s *Session, rewards []float64) {
	t.Helper()
	for i, a := range s.Agents() {
		d, err := a.Act(testObs)
		if err != nil {
			t.Fatalf("agent %d Act: %v", i, err)
		}
		tokens := append(append([]int{}, testObs...), d.RotationToken, d.SpeedToken)
		if err := a.RecordStep(tokens, rewards[i]); err != nil {
			t.Fatalf("agent %d RecordStep: %v", i, err)
		}
	}
}

func TestSessionPhaseCycle(t *testing.T) {
	s := newTestSession(t, smallSessionConfig())
	ctx := context.Background()

	if s.Phase() != PhaseIdle {
		t.Fatalf("new session phase = %s, want IDLE", s.Phase())
	}
	if s.Advance() {
		t.Errorf("Advance should do nothing while Idle")
	}
	if _, err := s.EndEpisode(ctx); err == nil {
		t.Errorf("EndEpisode accepted in Idle")
	}

	s.Start()
	if s.Phase() != PhaseSimulating {
		t.Fatalf("phase after Start = %s", s.Phase())
	}

	rewards := []float64{1, 4, 2, 3}
	ticks := 0
	for {
		playTick(t, s, rewards)
		ticks++
		if s.Advance() {
			break
		}
	}
	if ticks != 3 {
		t.Errorf("episode lasted %d ticks, want 3", ticks)
	}

	stats, err := s.EndEpisode(ctx)
	if err != nil {
		t.Fatalf("EndEpisode: %v", err)
	}
	if s.Phase() != PhaseTraining {
		t.Fatalf("phase after EndEpisode = %s", s.Phase())
	}
	if stats.Trajectories != 4 || stats.Selected != 2 || stats.TotalSteps != 12 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.BestReward != 12 || math.Abs(stats.MeanReward-7.5) > 1e-12 {
		t.Errorf("best %g mean %g, want 12 and 7.5", stats.BestReward, stats.MeanReward)
	}
	if _, err := s.EndEpisode(ctx); err == nil {
		t.Errorf("EndEpisode accepted twice")
	}

	// Two frames of two steps each spend the budget of four.
	if s.Update(ctx) {
		t.Fatalf("training finished after one frame")
	}
	if !s.Update(ctx) {
		t.Fatalf("training did not finish after two frames")
	}

	if s.Phase() != PhaseSimulating || s.Iteration() != 1 || s.Elapsed() != 0 {
		t.Errorf("after training: phase %s iteration %d elapsed %g", s.Phase(), s.Iteration(), s.Elapsed())
	}
	if s.Model().Optimizer().Steps() != 4 {
		t.Errorf("optimizer steps = %d, want 4", s.Model().Optimizer().Steps())
	}
	for i, a := range s.Agents() {
		if a.Steps() != 0 || a.CacheLen() != 0 {
			t.Errorf("agent %d not reset", i)
		}
	}

	hist := s.History()
	if len(hist) != 1 || hist[0].Iteration != 0 || hist[0].Loss <= 0 {
		t.Errorf("history = %+v", hist)
	}
}

// TestSessionEmptyEpisode ends an episode in which nobody recorded a step:
// there is nothing to train on and the cycle continues at once.
func TestSessionEmptyEpisode(t *testing.T) {
	s := newTestSession(t, smallSessionConfig())
	ctx := context.Background()
	s.Start()

	stats, err := s.EndEpisode(ctx)
	if err != nil {
		t.Fatalf("EndEpisode: %v", err)
	}
	if stats.Trajectories != 0 || stats.Selected != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if !s.Update(ctx) {
		t.Errorf("empty training phase should finish on the first frame")
	}
	if s.Model().Optimizer().Steps() != 0 {
		t.Errorf("optimizer stepped without data")
	}
}

func TestSessionAgentsAreIndependent(t *testing.T) {
	s := newTestSession(t, smallSessionConfig())
	agents := s.Agents()
	if len(agents) != 4 {
		t.Fatalf("population %d, want 4", len(agents))
	}
	seen := map[string]bool{}
	for _, a := range agents {
		seen[a.ID.String()] = true
	}
	if len(seen) != 4 {
		t.Errorf("agent IDs are not unique")
	}
	if _, err := agents[0].Act(testObs); err != nil {
		t.Fatal(err)
	}
	if agents[1].CacheLen() != 0 {
		t.Errorf("agents share a cache")
	}
}

func TestSessionConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SessionConfig)
		field  string
	}{
		{"no agents", func(c *SessionConfig) { c.Population = 0 }, "session.population"},
		{"zero duration", func(c *SessionConfig) { c.EpisodeDuration = 0 }, "session.episode_duration"},
		{"tick too long", func(c *SessionConfig) { c.Tick = 30 }, "session.tick"},
		{"vocab mismatch", func(c *SessionConfig) { c.Model.VocabSize = 10 }, "model.vocab_size"},
		{"bad trainer", func(c *SessionConfig) { c.Trainer.StepsPerFrame = 0 }, "trainer.steps_per_frame"},
		{"bad adam", func(c *SessionConfig) { c.Adam.Epsilon = 0 }, "adam.epsilon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSessionConfig()
			tt.mutate(&cfg)
			var ce *ConfigError
			if !errors.As(cfg.Validate(), &ce) {
				t.Fatalf("expected *ConfigError")
			}
			if ce.Field != tt.field {
				t.Errorf("field = %s, want %s", ce.Field, tt.field)
			}
		})
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseTraining.String() != "TRAINING" || Phase(9).String() != "Phase(9)" {
		t.Errorf("unexpected phase names")
	}
}
