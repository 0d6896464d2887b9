package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The trainer turns one episode's trajectories into gradient steps without
// blocking the frame loop that drives it.
//
// SELECTION:
//   Trajectories are ranked by total reward and the top K percent are kept
//   (at least one). If nothing can be selected, the first few trajectories
//   are used regardless of rank so training never stalls.
//
// CHUNKING:
//   A training phase has a fixed budget of sequence-training steps. Each
//   call to Step() (one per frame) runs at most StepsPerFrame of them and
//   returns. The state between calls is explicit:
//
//     cursor     index of the next sequence (cycles through the selection)
//     completed  steps done so far in this phase
//
//   A step is never interrupted: resumption always starts at the next whole
//   sequence.
//
// FAILURES:
//   A step that hits a domain error is abandoned by the model (no gradients
//   applied). The trainer logs it, counts it, and moves on to the next
//   sequence.
//
// ===========================================================================

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TrainerConfig holds training-phase parameters.
type TrainerConfig struct {
	StepsPerPhase     int     // Sequence-training steps per training phase
	StepsPerFrame     int     // Steps run by one Step() call
	LearningRate      float64 // Base learning rate passed to Adam
	TopKPercent       float64 // Share of trajectories kept for training
	FallbackSequences int     // Sequences used when selection is empty
}

// DefaultTrainerConfig returns the settings used by the simulation.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		StepsPerPhase:     40,
		StepsPerFrame:     3,
		LearningRate:      0.002,
		TopKPercent:       25,
		FallbackSequences: 3,
	}
}

// Validate rejects unusable settings.
func (c TrainerConfig) Validate() error {
	switch {
	case c.StepsPerPhase < 0:
		return configErrorf("trainer.steps_per_phase", "must not be negative, got %d", c.StepsPerPhase)
	case c.StepsPerFrame <= 0:
		return configErrorf("trainer.steps_per_frame", "must be positive, got %d", c.StepsPerFrame)
	case c.LearningRate <= 0:
		return configErrorf("trainer.learning_rate", "must be positive, got %g", c.LearningRate)
	case c.TopKPercent <= 0 || c.TopKPercent > 100:
		return configErrorf("trainer.top_k_percent", "must be in (0,100], got %g", c.TopKPercent)
	case c.FallbackSequences < 0:
		return configErrorf("trainer.fallback_sequences", "must not be negative, got %d", c.FallbackSequences)
	}
	return nil
}

// Trainer runs the chunked training phase.
type Trainer struct {
	model  *Model
	config TrainerConfig
	logger *slog.Logger
	tracer trace.Tracer

	sequences [][]int
	cursor    int
	completed int

	lossSum   float64
	lossCount int
	failures  int
}

// NewTrainer creates an idle trainer for model.
func NewTrainer(model *Model, config TrainerConfig) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		model:  model,
		config: config,
		logger: componentLogger("trainer"),
		tracer: otel.Tracer("github.com/scttfrdmn/gpt-insects/trainer"),
	}, nil
}

// Config returns the trainer settings.
func (t *Trainer) Config() TrainerConfig { return t.config }

// Begin selects the training sequences from buf and resets the phase state.
// It returns the number of sequences selected.
func (t *Trainer) Begin(buf *TrajectoryBuffer) int {
	selected := buf.SelectTop(t.config.TopKPercent)
	if len(selected) == 0 {
		selected = buf.Fallback(t.config.FallbackSequences)
	}

	t.sequences = make([][]int, len(selected))
	for i, tr := range selected {
		t.sequences[i] = tr.Tokens
	}
	t.cursor = 0
	t.completed = 0
	t.lossSum = 0
	t.lossCount = 0
	t.failures = 0

	t.logger.Debug("training phase started",
		slog.Int("trajectories", buf.Len()),
		slog.Int("selected", len(t.sequences)),
		slog.Int("budget", t.config.StepsPerPhase))
	return len(t.sequences)
}

// Step runs up to StepsPerFrame sequence-training steps and reports whether
// the phase is complete.
func (t *Trainer) Step(ctx context.Context) bool {
	if t.Done() {
		return true
	}

	_, span := t.tracer.Start(ctx, "trainer.Step",
		trace.WithAttributes(attribute.Int("trainer.completed", t.completed)))
	defer span.End()

	for i := 0; i < t.config.StepsPerFrame && !t.Done(); i++ {
		seq := t.sequences[t.cursor%len(t.sequences)]
		loss, err := t.model.TrainOnSequence(seq, t.config.LearningRate)
		switch {
		case err == nil:
			t.lossSum += loss
			t.lossCount++
		case errors.Is(err, ErrEmptySequence):
			// Nothing to learn from; still consumes budget.
		default:
			t.failures++
			span.RecordError(err)
			span.SetStatus(codes.Error, "training step abandoned")
			t.logger.Warn("training step abandoned",
				slog.Int("sequence", t.cursor%len(t.sequences)),
				slog.String("error", err.Error()))
		}
		t.cursor++
		t.completed++
	}

	span.SetAttributes(
		attribute.Int("trainer.completed", t.completed),
		attribute.Float64("trainer.avg_loss", t.AverageLoss()),
	)
	return t.Done()
}

// Done reports whether the phase budget is spent. A phase with no
// sequences is done immediately.
func (t *Trainer) Done() bool {
	return len(t.sequences) == 0 || t.completed >= t.config.StepsPerPhase
}

// Progress returns completed / budgeted steps in [0, 1].
func (t *Trainer) Progress() float64 {
	if t.config.StepsPerPhase == 0 || len(t.sequences) == 0 {
		return 1
	}
	return float64(t.completed) / float64(t.config.StepsPerPhase)
}

// Completed returns the number of steps run in this phase.
func (t *Trainer) Completed() int { return t.completed }

// AverageLoss returns the mean loss of the successful steps so far.
func (t *Trainer) AverageLoss() float64 {
	if t.lossCount == 0 {
		return 0
	}
	return t.lossSum / float64(t.lossCount)
}

// Failures returns the number of abandoned steps in this phase.
func (t *Trainer) Failures() int { return t.failures }

// Selected returns the sequences chosen by Begin.
func (t *Trainer) Selected() [][]int { return t.sequences }
