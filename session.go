package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase is the state of the episode cycle.
//
//	Idle → (Start) → Simulating → (EndEpisode: collect + select) → Training → Simulating ...
//
// Inference only runs while Simulating and training only while Training, so
// the shared parameters are never read and written in the same phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSimulating
	PhaseTraining
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseSimulating:
		return "SIMULATING"
	case PhaseTraining:
		return "TRAINING"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// SessionConfig gathers everything needed to run the episode cycle.
type SessionConfig struct {
	Population      int
	EpisodeDuration float64 // Simulated seconds per episode
	Tick            float64 // Simulated seconds per frame

	Vocabulary Vocabulary
	Model      ModelConfig
	Adam       AdamConfig
	Trainer    TrainerConfig
	Agent      AgentConfig
}

// DefaultSessionConfig returns the configuration of the foraging simulation.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Population:      50,
		EpisodeDuration: 20,
		Tick:            1.0 / 30,
		Vocabulary:      DefaultVocabulary(),
		Model:           DefaultModelConfig(),
		Adam:            DefaultAdamConfig(),
		Trainer:         DefaultTrainerConfig(),
		Agent:           DefaultAgentConfig(),
	}
}

// Validate checks the whole configuration before anything is built.
func (c SessionConfig) Validate() error {
	if c.Population <= 0 {
		return configErrorf("session.population", "must be positive, got %d", c.Population)
	}
	if c.EpisodeDuration <= 0 {
		return configErrorf("session.episode_duration", "must be positive, got %g", c.EpisodeDuration)
	}
	if c.Tick <= 0 || c.Tick > c.EpisodeDuration {
		return configErrorf("session.tick", "must be in (0,%g], got %g", c.EpisodeDuration, c.Tick)
	}
	if err := c.Vocabulary.Validate(); err != nil {
		return err
	}
	if c.Model.VocabSize != c.Vocabulary.Size() {
		return configErrorf("model.vocab_size", "%d does not match vocabulary size %d", c.Model.VocabSize, c.Vocabulary.Size())
	}
	for _, v := range []interface{ Validate() error }{c.Model, c.Adam, c.Trainer, c.Agent} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EpisodeStats summarizes the rewards of one episode.
type EpisodeStats struct {
	Iteration    int
	Agents       int
	Trajectories int // Trajectories with at least one recorded step
	Selected     int // Sequences handed to the trainer
	MeanReward   float64
	StdReward    float64
	BestReward   float64
	TotalSteps   int
}

// IterationRecord is one finished episode plus its training phase.
type IterationRecord struct {
	EpisodeStats
	Loss     float64
	Failures int
}

// Session owns the model, the agents and the trainer and moves them through
// the episode cycle. It is driven from a single goroutine.
type Session struct {
	config  SessionConfig
	model   *Model
	agents  []*Agent
	buffer  *TrajectoryBuffer
	trainer *Trainer

	phase     Phase
	elapsed   float64
	iteration int
	pending   EpisodeStats
	history   []IterationRecord

	logger *slog.Logger
	tracer trace.Tracer
}

// NewSession validates config and builds an Idle session.
func NewSession(config SessionConfig) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	model, err := NewModel(config.Model, config.Adam)
	if err != nil {
		return nil, err
	}
	trainer, err := NewTrainer(model, config.Trainer)
	if err != nil {
		return nil, err
	}

	s := &Session{
		config:  config,
		model:   model,
		buffer:  NewTrajectoryBuffer(),
		trainer: trainer,
		phase:   PhaseIdle,
		logger:  componentLogger("session"),
		tracer:  otel.Tracer("github.com/scttfrdmn/gpt-insects/session"),
	}

	for i := 0; i < config.Population; i++ {
		ac := config.Agent
		ac.Seed = config.Agent.Seed + int64(i)
		agent, err := NewAgent(model, config.Vocabulary, ac)
		if err != nil {
			return nil, err
		}
		s.agents = append(s.agents, agent)
	}

	s.logger.Info("session created",
		slog.Int("population", config.Population),
		slog.Int("params", model.ParamCount()))
	return s, nil
}

// Config returns the session settings.
func (s *Session) Config() SessionConfig { return s.config }

// Model returns the shared policy.
func (s *Session) Model() *Model { return s.model }

// Agents returns every agent.
func (s *Session) Agents() []*Agent { return s.agents }

// Trainer returns the trainer.
func (s *Session) Trainer() *Trainer { return s.trainer }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Iteration returns the number of completed episode+training cycles.
func (s *Session) Iteration() int { return s.iteration }

// History returns one record per completed iteration.
func (s *Session) History() []IterationRecord { return s.history }

// Elapsed returns the simulated time of the current episode.
func (s *Session) Elapsed() float64 { return s.elapsed }

// Start moves an Idle session into its first episode.
func (s *Session) Start() {
	if s.phase == PhaseIdle {
		s.phase = PhaseSimulating
		s.elapsed = 0
	}
}

// Advance adds one tick to the episode clock and reports whether the
// episode has run its full duration. It does nothing outside Simulating.
func (s *Session) Advance() bool {
	if s.phase != PhaseSimulating {
		return false
	}
	s.elapsed += s.config.Tick
	return s.elapsed >= s.config.EpisodeDuration
}

// EndEpisode collects every agent's trajectory, selects the training set and
// switches to the Training phase.
func (s *Session) EndEpisode(ctx context.Context) (EpisodeStats, error) {
	if s.phase != PhaseSimulating {
		return EpisodeStats{}, fmt.Errorf("session: EndEpisode called in phase %s", s.phase)
	}

	_, span := s.tracer.Start(ctx, "session.EndEpisode",
		trace.WithAttributes(attribute.Int("session.iteration", s.iteration)))
	defer span.End()

	s.buffer.Reset()
	rewards := make([]float64, len(s.agents))
	totalSteps := 0
	for i, a := range s.agents {
		rewards[i] = a.TotalReward()
		totalSteps += a.Steps()

		seq := a.TrainingSequence()
		if len(seq) > 1 {
			s.buffer.Add(Trajectory{AgentID: a.ID, Tokens: seq, Reward: rewards[i]})
		}
	}

	selected := s.trainer.Begin(s.buffer)
	mean, std := stat.MeanStdDev(rewards, nil)
	stats := EpisodeStats{
		Iteration:    s.iteration,
		Agents:       len(s.agents),
		Trajectories: s.buffer.Len(),
		Selected:     selected,
		MeanReward:   mean,
		StdReward:    std,
		BestReward:   floats.Max(rewards),
		TotalSteps:   totalSteps,
	}
	s.pending = stats
	s.phase = PhaseTraining

	span.SetAttributes(
		attribute.Int("session.trajectories", stats.Trajectories),
		attribute.Int("session.selected", stats.Selected),
		attribute.Float64("session.mean_reward", stats.MeanReward),
	)
	s.logger.Info("episode ended",
		slog.Int("iteration", s.iteration),
		slog.Int("trajectories", stats.Trajectories),
		slog.Int("selected", stats.Selected),
		slog.Float64("mean_reward", stats.MeanReward),
		slog.Float64("best_reward", stats.BestReward))
	return stats, nil
}

// Update advances the Training phase by one frame. When the phase budget is
// spent it records the iteration, resets the agents and returns to
// Simulating. It reports whether that transition happened.
func (s *Session) Update(ctx context.Context) bool {
	if s.phase != PhaseTraining {
		return false
	}
	if !s.trainer.Step(ctx) {
		return false
	}

	rec := IterationRecord{
		EpisodeStats: s.pending,
		Loss:         s.trainer.AverageLoss(),
		Failures:     s.trainer.Failures(),
	}
	s.history = append(s.history, rec)
	s.logger.Info("training phase finished",
		slog.Int("iteration", s.iteration),
		slog.Float64("loss", rec.Loss),
		slog.Int("failures", rec.Failures),
		slog.Int("adam_steps", s.model.Optimizer().Steps()))

	s.iteration++
	for _, a := range s.agents {
		a.Reset()
	}
	s.buffer.Reset()
	s.elapsed = 0
	s.phase = PhaseSimulating
	return true
}
