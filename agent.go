package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/google/uuid"
)

// AgentConfig holds per-agent policy settings.
type AgentConfig struct {
	Temperature float64 // Sampling temperature for action bins (0 = greedy)
	Seed        int64   // Seed of the agent's sampling RNG
}

// DefaultAgentConfig returns the sampling settings used by the simulation.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{Temperature: 1.2, Seed: 1}
}

// Validate rejects unusable settings.
func (c AgentConfig) Validate() error {
	if c.Temperature < 0 {
		return configErrorf("agent.temperature", "must not be negative, got %g", c.Temperature)
	}
	return nil
}

// Decision is the result of one Act call.
type Decision struct {
	RotationBin   int
	SpeedBin      int
	RotationToken int
	SpeedToken    int

	// Attention of the last processed token, [layer][head][pos]. For
	// visualization only; nothing in the policy reads it.
	Attention [][][]float64
}

// step is one recorded token group with its reward.
type step struct {
	tokens []int
	reward float64
}

// Agent is one policy-driven actor sharing the model with every other agent.
//
// It keeps its own rolling context and inference KV cache. The cache holds
// exactly the tokens of the context, in order, so the position of every
// token is its index in the cache. Action tokens sampled in one tick are fed
// at the start of the next one, ahead of the new observation, which keeps the
// inference context laid out like the recorded training sequence:
//
//   BOS  obs obs obs obs  rot speed  obs obs obs obs  rot speed ...
type Agent struct {
	ID uuid.UUID

	model  *Model
	vocab  Vocabulary
	config AgentConfig
	rng    *rand.Rand
	logger *slog.Logger

	cache   *KVCache[float64]
	context []int // tokens currently in the cache
	pending []int // tokens to feed before the next observation

	steps         []step
	lastAttention [][][]float64
	resets        int
}

// NewAgent creates an agent driven by model.
func NewAgent(model *Model, vocab Vocabulary, config AgentConfig) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := vocab.Validate(); err != nil {
		return nil, err
	}
	mc := model.Config()
	if vocab.Size() != mc.VocabSize {
		return nil, configErrorf("model.vocab_size", "%d does not match vocabulary size %d", mc.VocabSize, vocab.Size())
	}
	if mc.ContextLen < ObservationArity+1 {
		return nil, configErrorf("model.context_len", "%d cannot hold BOS plus %d observation tokens", mc.ContextLen, ObservationArity)
	}

	id := uuid.New()
	a := &Agent{
		ID:     id,
		model:  model,
		vocab:  vocab,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
		logger: componentLogger("agent").With(slog.String("agent", id.String())),
		cache:  model.NewCache(),
	}
	a.Reset()
	return a, nil
}

// Reset clears the context, cache and recorded trajectory for a new
// episode.
func (a *Agent) Reset() {
	a.clearContext()
	a.steps = nil
	a.lastAttention = nil
	a.resets = 0
}

// clearContext empties the cache and context and queues BOS so the next Act
// starts a fresh window. The recorded trajectory is kept.
func (a *Agent) clearContext() {
	a.cache.Reset()
	a.context = a.context[:0]
	a.pending = append(a.pending[:0], a.vocab.BOS)
}

// Act feeds one observation group through the model and samples a rotation
// bin and a speed bin.
//
// If the pending action tokens plus the observation would not fit in the
// context, the cache is cleared once and re-seeded with BOS followed by the
// observation. If the model fails part way through, the window is cleared
// so the cache and the context stay in step.
func (a *Agent) Act(obs []int) (Decision, error) {
	if err := a.vocab.ValidateObservation(obs); err != nil {
		return Decision{}, err
	}

	feed := append(slices.Clone(a.pending), obs...)
	if a.cache.Len()+len(feed) > a.cache.MaxLen() {
		a.cache.Reset()
		a.context = a.context[:0]
		feed = append([]int{a.vocab.BOS}, obs...)
		a.resets++
		a.logger.Debug("context window reset", slog.Int("resets", a.resets))
	}
	a.pending = a.pending[:0]

	var out *Output
	for _, tok := range feed {
		var err error
		out, err = a.model.Forward(tok, a.cache.Len(), a.cache)
		if err != nil {
			a.clearContext()
			a.logger.Warn("inference failed, context cleared", slog.String("error", err.Error()))
			return Decision{}, fmt.Errorf("agent %s: %w", a.ID, err)
		}
		a.context = append(a.context, tok)
	}
	a.lastAttention = out.Attention

	rot, speed := a.vocab.Rotation, a.vocab.Speed
	rotBin := SampleWithTemperature(out.Logits[rot.Offset:rot.End()], a.config.Temperature, a.rng)
	speedBin := SampleWithTemperature(out.Logits[speed.Offset:speed.End()], a.config.Temperature, a.rng)

	d := Decision{
		RotationBin:   rotBin,
		SpeedBin:      speedBin,
		RotationToken: rot.Offset + rotBin,
		SpeedToken:    speed.Offset + speedBin,
		Attention:     out.Attention,
	}
	a.pending = append(a.pending, d.RotationToken, d.SpeedToken)
	return d, nil
}

// RecordStep appends a token group and its reward to the trajectory.
func (a *Agent) RecordStep(tokens []int, reward float64) error {
	for _, tok := range tokens {
		if tok < 0 || tok >= a.vocab.Size() {
			return fmt.Errorf("agent %s: token %d out of range [0,%d)", a.ID, tok, a.vocab.Size())
		}
	}
	a.steps = append(a.steps, step{tokens: slices.Clone(tokens), reward: reward})
	return nil
}

// TrainingSequence returns BOS followed by every recorded token.
func (a *Agent) TrainingSequence() []int {
	seq := make([]int, 0, 1+len(a.steps)*StepArity)
	seq = append(seq, a.vocab.BOS)
	for _, s := range a.steps {
		seq = append(seq, s.tokens...)
	}
	return seq
}

// TotalReward returns the sum of recorded rewards.
func (a *Agent) TotalReward() float64 {
	total := 0.0
	for _, s := range a.steps {
		total += s.reward
	}
	return total
}

// Steps returns the number of recorded token groups.
func (a *Agent) Steps() int { return len(a.steps) }

// LastAttention returns the attention weights of the last Act call.
func (a *Agent) LastAttention() [][][]float64 { return a.lastAttention }

// Context returns a copy of the tokens currently in the inference cache.
func (a *Agent) Context() []int { return slices.Clone(a.context) }

// CacheLen returns the number of positions in the inference cache.
func (a *Agent) CacheLen() int { return a.cache.Len() }

// Resets returns how many rolling-window resets happened this episode.
func (a *Agent) Resets() int { return a.resets }

// Vocabulary returns the agent's token layout.
func (a *Agent) Vocabulary() Vocabulary { return a.vocab }
