package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the Adam optimizer used to train the policy.
//
// THE TRAINING STEP (see Model.TrainOnSequence):
//
// 1. Forward pass in training mode builds an autograd graph per token.
// 2. Mean cross-entropy over the sequence → one scalar loss node.
// 3. loss.Backward() accumulates ∂loss/∂p into every parameter's Grad.
// 4. Adam.Step() reads the gradients, moves the parameters, zeroes Grad.
//
// Adam combines:
//   - Momentum (moving average of gradients)
//   - RMSProp (moving average of squared gradients)
//   - Bias correction (moments start at zero)
//
// Update rule:
//   m_t = beta1 * m_{t-1} + (1 - beta1) * grad
//   v_t = beta2 * v_{t-1} + (1 - beta2) * grad²
//   m_hat = m_t / (1 - beta1^t)
//   v_hat = v_t / (1 - beta2^t)
//   param -= lr_t * m_hat / (sqrt(v_hat) + epsilon)
//
// LEARNING RATE SCHEDULE:
//
//   lr_t = lr * (1 - t / DecaySteps)
//
// A straight linear decay. Past DecaySteps the rate turns negative; that is
// left as is; callers bound the number of steps they run.
//
// Step() is the only place gradients are reset for the next accumulation
// cycle.
//
// ===========================================================================

import (
	"math"
)

// AdamConfig holds optimizer hyperparameters.
type AdamConfig struct {
	Beta1      float64
	Beta2      float64
	Epsilon    float64
	DecaySteps int // Steps over which the learning rate decays linearly to zero
}

// DefaultAdamConfig returns the defaults used for policy training.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		Beta1:      0.9,
		Beta2:      0.95,
		Epsilon:    1e-8,
		DecaySteps: 10000,
	}
}

// Validate rejects unusable hyperparameters.
func (c AdamConfig) Validate() error {
	switch {
	case c.Beta1 < 0 || c.Beta1 >= 1:
		return configErrorf("adam.beta1", "must be in [0,1), got %g", c.Beta1)
	case c.Beta2 < 0 || c.Beta2 >= 1:
		return configErrorf("adam.beta2", "must be in [0,1), got %g", c.Beta2)
	case c.Epsilon <= 0:
		return configErrorf("adam.epsilon", "must be positive, got %g", c.Epsilon)
	case c.DecaySteps <= 0:
		return configErrorf("adam.decay_steps", "must be positive, got %d", c.DecaySteps)
	}
	return nil
}

// AdamOptimizer keeps first and second moment estimates parallel to the
// model's flat parameter list.
type AdamOptimizer struct {
	config AdamConfig

	m []float64 // First moment (momentum)
	v []float64 // Second moment (variance)
	t int       // Time step (for bias correction and LR decay)
}

// NewAdamOptimizer creates optimizer state for numParams parameters.
func NewAdamOptimizer(numParams int, config AdamConfig) *AdamOptimizer {
	return &AdamOptimizer{
		config: config,
		m:      make([]float64, numParams),
		v:      make([]float64, numParams),
	}
}

// Steps returns how many updates have been applied.
func (opt *AdamOptimizer) Steps() int {
	return opt.t
}

// EffectiveLR returns the decayed learning rate for the current step count.
func (opt *AdamOptimizer) EffectiveLR(lr float64) float64 {
	return lr * (1 - float64(opt.t)/float64(opt.config.DecaySteps))
}

// Step performs one Adam update and zeroes every gradient.
func (opt *AdamOptimizer) Step(params []*Value, lr float64) {
	if len(params) != len(opt.m) {
		// The architecture is fixed after construction, so this only
		// happens if the optimizer is reused for a different model.
		opt.m = make([]float64, len(params))
		opt.v = make([]float64, len(params))
	}

	opt.t++
	lrT := opt.EffectiveLR(lr)

	b1, b2 := opt.config.Beta1, opt.config.Beta2
	bias1 := 1.0 - math.Pow(b1, float64(opt.t))
	bias2 := 1.0 - math.Pow(b2, float64(opt.t))

	for i, p := range params {
		g := p.Grad
		opt.m[i] = b1*opt.m[i] + (1.0-b1)*g
		opt.v[i] = b2*opt.v[i] + (1.0-b2)*g*g

		mHat := opt.m[i] / bias1
		vHat := opt.v[i] / bias2

		p.Data -= lrT * mHat / (math.Sqrt(vHat) + opt.config.Epsilon)
		p.Grad = 0
	}
}
