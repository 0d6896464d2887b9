package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// RMSNorm (Root Mean Square Layer Normalization) scales a vector so that
// its root-mean-square magnitude is 1:
//
//   y = x / sqrt(mean(x²) + ε)
//
// There is no mean subtraction and, in this model, no learned gain: the
// projections that follow the norm already carry enough freedom.
//
// It is applied to the summed embeddings and at the INPUT of every sub-block
// (pre-norm). The residual stream itself is never normalized after a block.
//
// PAPER: "Root Mean Square Layer Normalization"
//        https://arxiv.org/abs/1910.07467
//
// ===========================================================================

const rmsNormEps = 1e-5

// rmsnorm normalizes x by its root-mean-square magnitude.
func rmsnorm[T any, A Arith[T]](ar A, x []T) []T {
	ms := dot(ar, x, x)
	ms = div(ar, ms, ar.Const(float64(len(x))))
	invRMS := ar.Pow(ar.Add(ms, ar.Const(rmsNormEps)), -0.5)

	out := make([]T, len(x))
	for i, xi := range x {
		out[i] = ar.Mul(xi, invRMS)
	}
	return out
}
