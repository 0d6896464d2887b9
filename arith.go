package main

import "math"

// Arith is the set of primitive operations the transformer forward pass is
// written against. Two implementations exist:
//
//   - floatArith: T = float64, reads parameter values, builds nothing.
//     Used for per-tick agent decisions.
//   - graphArith: T = *Value, returns the parameter nodes themselves and
//     records every operation for Backward().
//
// Because forward() is written once over Arith, the two modes execute the
// same floating point operations in the same order and cannot drift apart.
type Arith[T any] interface {
	Const(x float64) T
	Param(p *Value) T
	Add(a, b T) T
	Mul(a, b T) T
	Pow(a T, exponent float64) T
	Exp(a T) T
	Log(a T) T
	ReLU(a T) T
	Float(a T) float64
}

type floatArith struct{}

func (floatArith) Const(x float64) float64 { return x }
func (floatArith) Param(p *Value) float64 { return p.Data }
func (floatArith) Add(a, b float64) float64 { return a + b }
func (floatArith) Mul(a, b float64) float64 { return a * b }
func (floatArith) Pow(a float64, e float64) float64 { return math.Pow(a, e) }
func (floatArith) Exp(a float64) float64 { return math.Exp(a) }
func (floatArith) Log(a float64) float64 { return math.Log(a) }
func (floatArith) Float(a float64) float64 { return a }
func (floatArith) ReLU(a float64) float64 {
	if a < 0 {
		return 0
	}
	return a
}

type graphArith struct{}

func (graphArith) Const(x float64) *Value { return NewValue(x) }
func (graphArith) Param(p *Value) *Value { return p }
func (graphArith) Add(a, b *Value) *Value { return a.Add(b) }
func (graphArith) Mul(a, b *Value) *Value { return a.Mul(b) }
func (graphArith) Pow(a *Value, e float64) *Value { return a.Pow(e) }
func (graphArith) Exp(a *Value) *Value { return a.Exp() }
func (graphArith) Log(a *Value) *Value { return a.Log() }
func (graphArith) ReLU(a *Value) *Value { return a.ReLU() }
func (graphArith) Float(a *Value) float64 { return a.Data }

// Derived operations. Each is expressed in primitives exactly the way the
// Value methods define them, so float and graph mode agree bit for bit.

func sub[T any, A Arith[T]](ar A, a, b T) T {
	return ar.Add(a, ar.Mul(b, ar.Const(-1)))
}

func div[T any, A Arith[T]](ar A, a, b T) T {
	return ar.Mul(a, ar.Pow(b, -1))
}

func scale[T any, A Arith[T]](ar A, a T, c float64) T {
	return ar.Mul(a, ar.Const(c))
}

func sum[T any, A Arith[T]](ar A, xs []T) T {
	total := xs[0]
	for _, x := range xs[1:] {
		total = ar.Add(total, x)
	}
	return total
}

func dot[T any, A Arith[T]](ar A, a, b []T) T {
	total := ar.Mul(a[0], b[0])
	for i := 1; i < len(a); i++ {
		total = ar.Add(total, ar.Mul(a[i], b[i]))
	}
	return total
}

// softmax subtracts the largest logit (as a constant), exponentiates and
// normalizes by the sum.
func softmax[T any, A Arith[T]](ar A, logits []T) []T {
	maxVal := math.Inf(-1)
	for _, l := range logits {
		if f := ar.Float(l); f > maxVal {
			maxVal = f
		}
	}

	exps := make([]T, len(logits))
	for i, l := range logits {
		exps[i] = ar.Exp(ar.Add(l, ar.Const(-maxVal)))
	}

	total := sum(ar, exps)
	probs := make([]T, len(exps))
	for i, e := range exps {
		probs[i] = div(ar, e, total)
	}
	return probs
}

// linear computes w·x for w of shape (out, in). No bias.
func linear[T any, A Arith[T]](ar A, x []T, w *Matrix) []T {
	out := make([]T, w.Rows)
	for o := 0; o < w.Rows; o++ {
		row := w.Row(o)
		acc := ar.Mul(ar.Param(row[0]), x[0])
		for i := 1; i < w.Cols; i++ {
			acc = ar.Add(acc, ar.Mul(ar.Param(row[i]), x[i]))
		}
		out[o] = acc
	}
	return out
}
