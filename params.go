package main

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a named weight matrix stored row-major as matrix[out][in].
// Every entry is a leaf Value that lives for the whole life of the model:
// the optimizer updates Data in place and the identity of each node never
// changes, so graphs built in different training steps all point at the
// same parameters.
type Matrix struct {
	Name       string
	Rows, Cols int
	Data       []*Value
}

// newMatrix fills a matrix with N(0, std²) values. std == 0 gives zeros.
func newMatrix(name string, rows, cols int, std float64, rng *rand.Rand) *Matrix {
	data := make([]*Value, rows*cols)
	for i := range data {
		w := 0.0
		if std > 0 {
			w = rng.NormFloat64() * std
		}
		data[i] = NewValue(w)
	}
	return &Matrix{Name: name, Rows: rows, Cols: cols, Data: data}
}

// At returns the parameter at (row, col).
func (m *Matrix) At(row, col int) *Value {
	return m.Data[row*m.Cols+col]
}

// Row returns a view of one output row.
func (m *Matrix) Row(row int) []*Value {
	start := row * m.Cols
	return m.Data[start : start+m.Cols]
}

// Dense returns a snapshot of the current values.
func (m *Matrix) Dense() *mat.Dense {
	data := make([]float64, len(m.Data))
	for i, p := range m.Data {
		data[i] = p.Data
	}
	return mat.NewDense(m.Rows, m.Cols, data)
}

// Norm returns the Frobenius norm of the current values.
func (m *Matrix) Norm() float64 {
	return mat.Norm(m.Dense(), 2)
}

// ParamStore holds the model's matrices in insertion order.
//
// Params() flattens them in that same order on every call. The optimizer's
// moment arrays are indexed by position in that list, so the order must
// never change after construction.
type ParamStore struct {
	matrices []*Matrix
	byName   map[string]*Matrix
	flat     []*Value
}

// NewParamStore creates an empty store.
func NewParamStore() *ParamStore {
	return &ParamStore{byName: make(map[string]*Matrix)}
}

// Add creates and registers a new matrix.
func (ps *ParamStore) Add(name string, rows, cols int, std float64, rng *rand.Rand) *Matrix {
	if _, exists := ps.byName[name]; exists {
		panic(fmt.Sprintf("params: duplicate matrix %q", name))
	}
	m := newMatrix(name, rows, cols, std, rng)
	ps.matrices = append(ps.matrices, m)
	ps.byName[name] = m
	ps.flat = append(ps.flat, m.Data...)
	return m
}

// Get returns the matrix registered under name.
func (ps *ParamStore) Get(name string) (*Matrix, bool) {
	m, ok := ps.byName[name]
	return m, ok
}

// Matrices returns the matrices in insertion order.
func (ps *ParamStore) Matrices() []*Matrix {
	return ps.matrices
}

// Params returns every parameter as one flat list.
func (ps *ParamStore) Params() []*Value {
	return ps.flat
}

// Len returns the number of scalar parameters.
func (ps *ParamStore) Len() int {
	return len(ps.flat)
}

// ZeroGrad clears every parameter gradient.
func (ps *ParamStore) ZeroGrad() {
	for _, p := range ps.flat {
		p.Grad = 0
	}
}
