package main

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func newTestAgent(t *testing.T, cfg AgentConfig) *Agent {
	t.Helper()
	discardLogging()
	model := newTestModel(t, DefaultModelConfig())
	agent, err := NewAgent(model, DefaultVocabulary(), cfg)
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	return agent
}

var testObs = []int{3, 12, 17, 22}

func TestAgentActSamplesActionTokens(t *testing.T) {
	agent := newTestAgent(t, DefaultAgentConfig())
	v := agent.Vocabulary()

	d, err := agent.Act(testObs)
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if !v.Rotation.Contains(d.RotationToken) || d.RotationToken != v.Rotation.Offset+d.RotationBin {
		t.Errorf("rotation token %d / bin %d", d.RotationToken, d.RotationBin)
	}
	if !v.Speed.Contains(d.SpeedToken) || d.SpeedToken != v.Speed.Offset+d.SpeedBin {
		t.Errorf("speed token %d / bin %d", d.SpeedToken, d.SpeedBin)
	}

	want := append([]int{v.BOS}, testObs...)
	if !slices.Equal(agent.Context(), want) {
		t.Errorf("context = %v, want %v", agent.Context(), want)
	}
	if len(d.Attention) != 1 || len(d.Attention[0]) != 4 || len(d.Attention[0][0]) != 5 {
		t.Errorf("attention shape wrong: %d layers", len(d.Attention))
	}
}

// TestAgentFeedsActionsBeforeNextObservation checks the inference context is
// laid out like a recorded training sequence.
func TestAgentFeedsActionsBeforeNextObservation(t *testing.T) {
	agent := newTestAgent(t, DefaultAgentConfig())

	d, err := agent.Act(testObs)
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if _, err := agent.Act(testObs); err != nil {
		t.Fatalf("second Act: %v", err)
	}

	ctx := agent.Context()
	if len(ctx) != 11 || agent.CacheLen() != 11 {
		t.Fatalf("context len %d, cache len %d, want 11", len(ctx), agent.CacheLen())
	}
	if ctx[5] != d.RotationToken || ctx[6] != d.SpeedToken {
		t.Errorf("action tokens not fed after first observation: %v", ctx)
	}
}

// TestAgentRollingReset runs past the 16-token window. Each overflow clears
// the cache exactly once and re-seeds it with BOS plus the observation.
func TestAgentRollingReset(t *testing.T) {
	agent := newTestAgent(t, DefaultAgentConfig())
	v := agent.Vocabulary()

	// Cache lengths: 5, 11, overflow → 5, 11, overflow → 5.
	wantLen := []int{5, 11, 5, 11, 5}
	wantResets := []int{0, 0, 1, 1, 2}
	for i := range wantLen {
		if _, err := agent.Act(testObs); err != nil {
			t.Fatalf("Act %d: %v", i, err)
		}
		if agent.CacheLen() != wantLen[i] || agent.Resets() != wantResets[i] {
			t.Errorf("act %d: cache %d resets %d, want %d and %d",
				i, agent.CacheLen(), agent.Resets(), wantLen[i], wantResets[i])
		}
		if agent.CacheLen() > 16 {
			t.Fatalf("cache exceeded the context window")
		}
	}

	want := append([]int{v.BOS}, testObs...)
	if !slices.Equal(agent.Context(), want) {
		t.Errorf("context after reset = %v, want %v", agent.Context(), want)
	}
}

// TestAgentRecoversFromInferenceError blows up the logits mid-episode: Act
// fails, the window is cleared so the cache matches the context, and the
// next Act starts again from BOS.
func TestAgentRecoversFromInferenceError(t *testing.T) {
	agent := newTestAgent(t, DefaultAgentConfig())
	v := agent.Vocabulary()

	if _, err := agent.Act(testObs); err != nil {
		t.Fatalf("Act: %v", err)
	}
	if err := agent.RecordStep([]int{3, 12, 17, 22, 27, 33}, 1); err != nil {
		t.Fatal(err)
	}

	lm, _ := agent.model.Params().Get("lm_head")
	saved := make([]float64, len(lm.Data))
	for i, p := range lm.Data {
		saved[i] = p.Data
		p.Data = math.Inf(1)
	}

	_, err := agent.Act(testObs)
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DomainError, got %v", err)
	}
	if agent.CacheLen() != 0 || len(agent.Context()) != 0 {
		t.Errorf("after failure: cache %d, context %v", agent.CacheLen(), agent.Context())
	}
	if agent.Steps() != 1 {
		t.Errorf("failure dropped the recorded trajectory")
	}

	for i, p := range lm.Data {
		p.Data = saved[i]
	}
	if _, err := agent.Act(testObs); err != nil {
		t.Fatalf("Act after recovery: %v", err)
	}
	want := append([]int{v.BOS}, testObs...)
	if !slices.Equal(agent.Context(), want) || agent.CacheLen() != len(want) {
		t.Errorf("context %v, cache %d, want %v", agent.Context(), agent.CacheLen(), want)
	}
}

func TestAgentRejectsInvalidObservation(t *testing.T) {
	agent := newTestAgent(t, DefaultAgentConfig())
	if _, err := agent.Act([]int{0, 1, 2, 3}); err == nil {
		t.Errorf("Act accepted a left token in the right slot")
	}
	if agent.CacheLen() != 0 {
		t.Errorf("rejected observation touched the cache")
	}
}

func TestAgentTrajectory(t *testing.T) {
	agent := newTestAgent(t, DefaultAgentConfig())
	v := agent.Vocabulary()

	steps := [][]int{
		{3, 12, 17, 22, 27, 33},
		{4, 11, 18, 21, 24, 31},
	}
	if err := agent.RecordStep(steps[0], 1.5); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
	if err := agent.RecordStep(steps[1], -0.5); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
	if err := agent.RecordStep([]int{3, 12, 17, 22, 27, 36}, 1); err == nil {
		t.Errorf("RecordStep accepted token 36")
	}

	want := append([]int{v.BOS}, append(slices.Clone(steps[0]), steps[1]...)...)
	if !slices.Equal(agent.TrainingSequence(), want) {
		t.Errorf("TrainingSequence = %v, want %v", agent.TrainingSequence(), want)
	}
	if agent.TotalReward() != 1 || agent.Steps() != 2 {
		t.Errorf("reward %g steps %d", agent.TotalReward(), agent.Steps())
	}

	agent.Reset()
	if agent.Steps() != 0 || !slices.Equal(agent.TrainingSequence(), []int{v.BOS}) {
		t.Errorf("Reset kept the trajectory")
	}
}

func TestAgentGreedyIsDeterministic(t *testing.T) {
	a := newTestAgent(t, AgentConfig{Temperature: 0, Seed: 1})
	b := newTestAgent(t, AgentConfig{Temperature: 0, Seed: 99})

	for i := 0; i < 3; i++ {
		da, err := a.Act(testObs)
		if err != nil {
			t.Fatal(err)
		}
		db, err := b.Act(testObs)
		if err != nil {
			t.Fatal(err)
		}
		if da.RotationToken != db.RotationToken || da.SpeedToken != db.SpeedToken {
			t.Fatalf("greedy agents with different seeds diverged at step %d", i)
		}
	}
}

func TestNewAgentValidation(t *testing.T) {
	discardLogging()
	model := newTestModel(t, DefaultModelConfig())
	var ce *ConfigError

	if _, err := NewAgent(model, DefaultVocabulary(), AgentConfig{Temperature: -1}); !errors.As(err, &ce) {
		t.Errorf("negative temperature: %v", err)
	}

	mc := DefaultModelConfig()
	mc.VocabSize = 20
	small := newTestModel(t, mc)
	if _, err := NewAgent(small, DefaultVocabulary(), DefaultAgentConfig()); !errors.As(err, &ce) {
		t.Errorf("vocab mismatch: %v", err)
	}

	mc = DefaultModelConfig()
	mc.ContextLen = 4
	short := newTestModel(t, mc)
	if _, err := NewAgent(short, DefaultVocabulary(), DefaultAgentConfig()); !errors.As(err, &ce) {
		t.Errorf("short context: %v", err)
	}
}
