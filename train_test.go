package main

import (
	"errors"
	"math"
	"testing"
)

// TestAdamOverfitsTinySequence trains a 4-token, 2-layer model on one
// repeating sequence and expects the loss to fall by more than half.
func TestAdamOverfitsTinySequence(t *testing.T) {
	cfg := ModelConfig{
		VocabSize:  4,
		EmbedDim:   16,
		NumHeads:   4,
		NumLayers:  2,
		ContextLen: 16,
		InitStd:    0.02,
		Seed:       42,
	}
	model := newTestModel(t, cfg)
	seq := []int{0, 1, 2, 3, 0, 1, 2, 3, 0}

	first, err := model.TrainOnSequence(seq, 0.01)
	if err != nil {
		t.Fatalf("step 0: %v", err)
	}

	last := first
	for step := 1; step < 200; step++ {
		last, err = model.TrainOnSequence(seq, 0.01)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		if last < first*0.5 {
			t.Logf("loss %.4f -> %.4f after %d steps", first, last, step+1)
			return
		}
	}
	t.Errorf("loss only fell from %.4f to %.4f in 200 steps", first, last)
}

func TestAdamEffectiveLR(t *testing.T) {
	opt := NewAdamOptimizer(1, DefaultAdamConfig())
	if got := opt.EffectiveLR(0.002); got != 0.002 {
		t.Errorf("EffectiveLR at t=0 = %g, want 0.002", got)
	}

	p := []*Value{NewValue(1)}
	for i := 0; i < 5000; i++ {
		opt.Step(p, 0.002)
	}
	if got := opt.EffectiveLR(0.002); math.Abs(got-0.001) > 1e-15 {
		t.Errorf("EffectiveLR at t=5000 = %g, want 0.001", got)
	}

	// Past the decay horizon the rate goes negative and is left that way.
	for i := 0; i < 6000; i++ {
		opt.Step(p, 0.002)
	}
	if got := opt.EffectiveLR(0.002); got >= 0 {
		t.Errorf("EffectiveLR at t=11000 = %g, want negative", got)
	}
}

func TestAdamStepMovesAgainstGradientAndResets(t *testing.T) {
	opt := NewAdamOptimizer(2, DefaultAdamConfig())
	a, b := NewValue(1), NewValue(1)
	a.Grad, b.Grad = 0.5, -2

	opt.Step([]*Value{a, b}, 0.1)

	// With bias correction the first step is lr_1 * sign(g), where lr_1 is
	// already decayed by one step. Epsilon shifts it by a few 1e-9.
	lr1 := opt.EffectiveLR(0.1)
	if want := 0.1 * (1 - 1.0/10000); math.Abs(lr1-want) > 1e-15 {
		t.Errorf("EffectiveLR after one step = %g, want %g", lr1, want)
	}
	if math.Abs(a.Data-(1-lr1)) > 1e-8 || math.Abs(b.Data-(1+lr1)) > 1e-8 {
		t.Errorf("after first step a=%g b=%g, want %g and %g", a.Data, b.Data, 1-lr1, 1+lr1)
	}
	if a.Grad != 0 || b.Grad != 0 {
		t.Errorf("gradients not reset: %g %g", a.Grad, b.Grad)
	}
	if opt.Steps() != 1 {
		t.Errorf("Steps = %d, want 1", opt.Steps())
	}
}

func TestAdamReallocatesOnSizeChange(t *testing.T) {
	opt := NewAdamOptimizer(1, DefaultAdamConfig())
	params := []*Value{NewValue(0), NewValue(0), NewValue(0)}
	for _, p := range params {
		p.Grad = 1
	}
	opt.Step(params, 0.1)
	for i, p := range params {
		if p.Data >= 0 {
			t.Errorf("param %d not updated: %g", i, p.Data)
		}
	}
}

func TestAdamConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AdamConfig)
	}{
		{"beta1 one", func(c *AdamConfig) { c.Beta1 = 1 }},
		{"beta2 negative", func(c *AdamConfig) { c.Beta2 = -0.1 }},
		{"zero epsilon", func(c *AdamConfig) { c.Epsilon = 0 }},
		{"zero decay", func(c *AdamConfig) { c.DecaySteps = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAdamConfig()
			tt.mutate(&cfg)
			var ce *ConfigError
			if !errors.As(cfg.Validate(), &ce) {
				t.Errorf("expected *ConfigError")
			}
		})
	}
}
