package main

import (
	"fmt"
	"math"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The model only understands integer tokens. Agents, on the other hand, see
// continuous angles and distances and act with continuous turn rates and
// speeds. This file maps between the two with fixed-width bins.
//
//   Discretize:   value → bin    floor(clamp01((v-min)/(max-min)) * bins)
//   Undiscretize: bin   → value  the CENTER of the bin
//
// Round-tripping is lossy by at most half a bin width. That asymmetry is
// intended: observations are exact discretizations of sensor readings, and
// actions decoded from the policy are always bin centers.
//
// VOCABULARY LAYOUT:
//
// The vocabulary is a row of disjoint, contiguous partitions, one per
// quantity, followed by a single beginning-of-sequence token:
//
//   0-7    left sensor   signed angle to food, [-180, 180] degrees
//   8-15   right sensor  signed angle to food, [-180, 180] degrees
//   16-19  wall X        proximity in heading direction, [0, 1]
//   20-23  wall Y        proximity in heading direction, [0, 1]
//   24-30  rotation      action, [-180, 180] degrees per second
//   31-34  speed         action, [0, 6] units per second
//   35     BOS
//
// A trajectory is BOS followed by groups of six tokens:
//   left, right, wallX, wallY, rotation, speed
//
// ===========================================================================

const (
	// ObservationArity is the number of observation tokens per tick.
	ObservationArity = 4
	// ActionArity is the number of action tokens per tick.
	ActionArity = 2
	// StepArity is the size of one recorded token group.
	StepArity = ObservationArity + ActionArity
)

// Discretize maps value in [min, max] to one of bins integer bins.
// Values outside the range are clamped to the first or last bin.
func Discretize(value, min, max float64, bins int) int {
	norm := (value - min) / (max - min)
	if math.IsNaN(norm) {
		norm = 0
	}
	norm = math.Max(0, math.Min(1, norm))
	bin := int(math.Floor(norm * float64(bins)))
	if bin > bins-1 {
		bin = bins - 1
	}
	return bin
}

// Undiscretize maps a bin back to the center of its range.
func Undiscretize(bin int, min, max float64, bins int) float64 {
	return min + (float64(bin)+0.5)*(max-min)/float64(bins)
}

// Partition is one contiguous block of the vocabulary.
type Partition struct {
	Name     string
	Offset   int
	Bins     int
	Min, Max float64
}

// Encode discretizes value and returns the token.
func (p Partition) Encode(value float64) int {
	return p.Offset + Discretize(value, p.Min, p.Max, p.Bins)
}

// Decode returns the bin center for a token of this partition.
func (p Partition) Decode(token int) (float64, error) {
	if !p.Contains(token) {
		return 0, fmt.Errorf("tokenizer: token %d is not a %s token [%d,%d)", token, p.Name, p.Offset, p.End())
	}
	return Undiscretize(token-p.Offset, p.Min, p.Max, p.Bins), nil
}

// Contains reports whether token falls inside the partition.
func (p Partition) Contains(token int) bool {
	return token >= p.Offset && token < p.End()
}

// Bin returns token's index within the partition.
func (p Partition) Bin(token int) int {
	return token - p.Offset
}

// End returns one past the last token of the partition.
func (p Partition) End() int {
	return p.Offset + p.Bins
}

// Observation is what an agent senses in one tick.
type Observation struct {
	LeftAngle  float64 // degrees, signed
	RightAngle float64 // degrees, signed
	WallProxX  float64 // 0 = far, 1 = touching
	WallProxY  float64
}

// Action is a decoded policy output.
type Action struct {
	Rotation float64 // degrees per second
	Speed    float64 // units per second
}

// Vocabulary describes how tokens are partitioned.
type Vocabulary struct {
	Left, Right  Partition
	WallX, WallY Partition
	Rotation     Partition
	Speed        Partition
	BOS          int
}

// DefaultVocabulary returns the 36-token layout described above.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Left:     Partition{Name: "left", Offset: 0, Bins: 8, Min: -180, Max: 180},
		Right:    Partition{Name: "right", Offset: 8, Bins: 8, Min: -180, Max: 180},
		WallX:    Partition{Name: "wallX", Offset: 16, Bins: 4, Min: 0, Max: 1},
		WallY:    Partition{Name: "wallY", Offset: 20, Bins: 4, Min: 0, Max: 1},
		Rotation: Partition{Name: "rotation", Offset: 24, Bins: 7, Min: -180, Max: 180},
		Speed:    Partition{Name: "speed", Offset: 31, Bins: 4, Min: 0, Max: 6},
		BOS:      35,
	}
}

// Partitions returns the partitions in token order.
func (v Vocabulary) Partitions() []Partition {
	return []Partition{v.Left, v.Right, v.WallX, v.WallY, v.Rotation, v.Speed}
}

// ObservationPartitions returns the partitions of one observation group.
func (v Vocabulary) ObservationPartitions() []Partition {
	return []Partition{v.Left, v.Right, v.WallX, v.WallY}
}

// Size returns the vocabulary size including BOS.
func (v Vocabulary) Size() int {
	return v.BOS + 1
}

// Validate checks that partitions are well-formed, contiguous from zero,
// non-overlapping, and immediately followed by BOS.
func (v Vocabulary) Validate() error {
	next := 0
	for _, p := range v.Partitions() {
		field := "vocabulary." + p.Name
		if p.Bins <= 0 {
			return configErrorf(field, "bin count must be positive, got %d", p.Bins)
		}
		if !(p.Max > p.Min) {
			return configErrorf(field, "range [%g, %g] is empty", p.Min, p.Max)
		}
		if p.Offset != next {
			return configErrorf(field, "offset %d, expected %d (partitions must be contiguous and disjoint)", p.Offset, next)
		}
		next = p.End()
	}
	if v.BOS != next {
		return configErrorf("vocabulary.bos", "token %d, expected %d", v.BOS, next)
	}
	return nil
}

// PartitionOf returns the partition a token belongs to. BOS and
// out-of-range tokens report false.
func (v Vocabulary) PartitionOf(token int) (Partition, bool) {
	for _, p := range v.Partitions() {
		if p.Contains(token) {
			return p, true
		}
	}
	return Partition{}, false
}

// EncodeObservation returns the four observation tokens.
func (v Vocabulary) EncodeObservation(o Observation) []int {
	return []int{
		v.Left.Encode(o.LeftAngle),
		v.Right.Encode(o.RightAngle),
		v.WallX.Encode(o.WallProxX),
		v.WallY.Encode(o.WallProxY),
	}
}

// ValidateObservation checks that obs holds one token from each
// observation partition, in order.
func (v Vocabulary) ValidateObservation(obs []int) error {
	parts := v.ObservationPartitions()
	if len(obs) != len(parts) {
		return fmt.Errorf("tokenizer: observation has %d tokens, want %d", len(obs), len(parts))
	}
	for i, p := range parts {
		if !p.Contains(obs[i]) {
			return fmt.Errorf("tokenizer: observation token %d = %d is not a %s token", i, obs[i], p.Name)
		}
	}
	return nil
}

// DecodeAction converts rotation and speed bins to continuous values.
func (v Vocabulary) DecodeAction(rotationBin, speedBin int) Action {
	return Action{
		Rotation: Undiscretize(rotationBin, v.Rotation.Min, v.Rotation.Max, v.Rotation.Bins),
		Speed:    Undiscretize(speedBin, v.Speed.Min, v.Speed.Max, v.Speed.Bins),
	}
}
