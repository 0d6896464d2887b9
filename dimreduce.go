package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ===========================================================================
// DIMENSIONALITY REDUCTION - PCA of Token Embeddings
// ===========================================================================
//
// WHAT'S GOING ON HERE:
// Projects the rows of an embedding matrix (one row per token) onto their
// top principal components so a 16-dimensional embedding table can be read
// as a handful of 2D coordinates.
//
// ALGORITHM:
// 1. Center the data (subtract the column means)
// 2. Find the principal directions (gonum's stat.PC, SVD based)
// 3. Project the centered rows onto the first k directions
//
// What to look for: after training, bins of the same sensor drift apart
// from each other in a roughly ordered line, and the action partitions
// separate from the observation partitions.
//
// ===========================================================================

// Projection is the result of PCA over an embedding matrix.
type Projection struct {
	Coords   *mat.Dense // (rows, k)
	Variance []float64  // variance explained by each of the k components
	Total    float64    // total variance of the data
}

// Explained returns the share of the total variance covered by the k
// components.
func (p *Projection) Explained() float64 {
	if p.Total == 0 {
		return 0
	}
	s := 0.0
	for _, v := range p.Variance {
		s += v
	}
	return s / p.Total
}

// PCA projects the rows of m onto their top k principal components.
func PCA(m *Matrix, k int) (*Projection, error) {
	if k <= 0 || k > m.Cols {
		return nil, fmt.Errorf("PCA: k=%d out of range [1,%d]", k, m.Cols)
	}
	if m.Rows < 2 {
		return nil, fmt.Errorf("PCA: need at least 2 rows, got %d", m.Rows)
	}

	data := m.Dense()
	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, fmt.Errorf("PCA: decomposition of %s failed", m.Name)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	centered := mat.DenseCopyOf(data)
	for j := 0; j < m.Cols; j++ {
		col := mat.Col(nil, j, data)
		mean := stat.Mean(col, nil)
		for i := 0; i < m.Rows; i++ {
			centered.Set(i, j, centered.At(i, j)-mean)
		}
	}

	// Fewer rows than columns yields fewer components.
	k = min(k, len(vars))
	var coords mat.Dense
	coords.Mul(centered, vecs.Slice(0, m.Cols, 0, k))

	total := 0.0
	for _, v := range vars {
		total += v
	}
	return &Projection{Coords: &coords, Variance: vars[:k], Total: total}, nil
}
