package main

import (
	"math"
	"slices"
	"sort"

	"github.com/google/uuid"
)

// Trajectory is one agent's finished episode: BOS followed by its recorded
// token groups, and the sum of the per-tick rewards.
type Trajectory struct {
	ID      uuid.UUID
	AgentID uuid.UUID
	Tokens  []int
	Reward  float64
}

// TrajectoryBuffer collects the trajectories of one episode.
//
// Trajectories are finalized when added: the buffer keeps its own copy of
// the tokens and nothing mutates them afterwards.
type TrajectoryBuffer struct {
	items []Trajectory
}

// NewTrajectoryBuffer creates an empty buffer.
func NewTrajectoryBuffer() *TrajectoryBuffer {
	return &TrajectoryBuffer{}
}

// Add appends a trajectory, assigning an ID if it has none.
func (b *TrajectoryBuffer) Add(t Trajectory) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Tokens = slices.Clone(t.Tokens)
	b.items = append(b.items, t)
}

// Len returns the number of trajectories.
func (b *TrajectoryBuffer) Len() int {
	return len(b.items)
}

// All returns the trajectories in insertion order.
func (b *TrajectoryBuffer) All() []Trajectory {
	return b.items
}

// SelectTop returns the best ceil(n * topKPercent / 100) trajectories by
// reward (at least one when the buffer is non-empty), highest first. Equal
// rewards keep their insertion order.
func (b *TrajectoryBuffer) SelectTop(topKPercent float64) []Trajectory {
	if len(b.items) == 0 {
		return nil
	}

	ranked := slices.Clone(b.items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Reward > ranked[j].Reward
	})

	k := int(math.Ceil(float64(len(ranked)) * topKPercent / 100))
	k = max(1, min(k, len(ranked)))
	return ranked[:k]
}

// Fallback returns up to k trajectories in insertion order, ignoring reward.
func (b *TrajectoryBuffer) Fallback(k int) []Trajectory {
	return b.items[:min(k, len(b.items))]
}

// Reset drops every trajectory.
func (b *TrajectoryBuffer) Reset() {
	b.items = nil
}
