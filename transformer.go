package main

import (
	"fmt"
	"math"
	"math/rand"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements a tiny GPT-style causal transformer that is used as
// the policy of every agent:
//
//   token + position embedding
//     → RMSNorm
//     → L × [ RMSNorm → multi-head causal attention (KV cache) → + residual
//             RMSNorm → fc1 (4E) → ReLU² → fc2 → + residual ]
//     → lm_head → logits over the vocabulary
//
// No biases, no learned norm gains, no dropout.
//
// TWO EXECUTION MODES, ONE ROUTINE:
//
// Agents need a decision every simulated tick, for every agent. Building an
// autograd graph for that would allocate thousands of nodes per token only
// to throw them away. Training, on the other hand, needs the graph.
//
// forward() is written once over the Arith interface (arith.go):
//   - Forward()      instantiates it over float64  (inference mode)
//   - ForwardTrain() instantiates it over *Value   (training mode)
// Both read the same parameters, so for a given parameter snapshot they
// produce the same logits.
//
// INCREMENTAL DECODING:
//
// One call processes ONE token at ONE absolute position. Keys and values are
// appended to the cache before attention runs, and attention only ever looks
// at what is in the cache, so position i can never see position i+1.
//
// RECOMMENDED READING:
//   - "Attention Is All You Need" (Vaswani et al., 2017)
//     https://arxiv.org/abs/1706.03762
//   - Karpathy's micrograd / microgpt, which this architecture follows
//     (RMSNorm, ReLU², no biases).
//
// ===========================================================================

// ModelConfig holds the fixed architecture of the model.
type ModelConfig struct {
	VocabSize  int     // Size of vocabulary (V)
	EmbedDim   int     // Embedding width (E)
	NumHeads   int     // Attention heads (H), each of width E/H
	NumLayers  int     // Transformer layers (L)
	ContextLen int     // Maximum context length (T), also the position table size
	InitStd    float64 // Std-dev of the Gaussian weight init
	Seed       int64   // Seed for weight init
}

// DefaultModelConfig returns the configuration used by the foraging agents.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		VocabSize:  DefaultVocabulary().Size(),
		EmbedDim:   16,
		NumHeads:   4,
		NumLayers:  1,
		ContextLen: 16,
		InitStd:    0.02,
		Seed:       1,
	}
}

// HeadDim returns the width of one attention head.
func (c ModelConfig) HeadDim() int {
	return c.EmbedDim / c.NumHeads
}

// Validate rejects configurations the model cannot be built with.
func (c ModelConfig) Validate() error {
	switch {
	case c.VocabSize <= 0:
		return configErrorf("model.vocab_size", "must be positive, got %d", c.VocabSize)
	case c.EmbedDim <= 0:
		return configErrorf("model.embed_dim", "must be positive, got %d", c.EmbedDim)
	case c.NumHeads <= 0:
		return configErrorf("model.num_heads", "must be positive, got %d", c.NumHeads)
	case c.EmbedDim%c.NumHeads != 0:
		return configErrorf("model.num_heads", "embed_dim (%d) must be divisible by num_heads (%d)", c.EmbedDim, c.NumHeads)
	case c.NumLayers <= 0:
		return configErrorf("model.num_layers", "must be positive, got %d", c.NumLayers)
	case c.ContextLen <= 0:
		return configErrorf("model.context_len", "must be positive, got %d", c.ContextLen)
	case c.InitStd < 0:
		return configErrorf("model.init_std", "must not be negative, got %g", c.InitStd)
	}
	return nil
}

// layerParams are the weights of one transformer layer.
type layerParams struct {
	wq, wk, wv, wo *Matrix // (E, E)
	fc1            *Matrix // (4E, E)
	fc2            *Matrix // (E, 4E)
}

// Model is the transformer policy together with its optimizer state.
type Model struct {
	config ModelConfig
	params *ParamStore

	wte    *Matrix // (V, E) token embeddings
	wpe    *Matrix // (T, E) position embeddings
	lmHead *Matrix // (V, E) output projection
	layers []layerParams

	optimizer *AdamOptimizer
}

// NewModel builds and initializes a model.
//
// Parameters are registered in the order wte, wpe, lm_head, then each
// layer's attention and MLP matrices. The output projections of each
// residual branch (attn_wo, mlp_fc2) start at zero so a fresh model is the
// identity on the residual stream.
func NewModel(config ModelConfig, adam AdamConfig) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := adam.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(config.Seed))
	ps := NewParamStore()
	e, std := config.EmbedDim, config.InitStd

	m := &Model{
		config: config,
		params: ps,
		wte:    ps.Add("wte", config.VocabSize, e, std, rng),
		wpe:    ps.Add("wpe", config.ContextLen, e, std, rng),
		lmHead: ps.Add("lm_head", config.VocabSize, e, std, rng),
		layers: make([]layerParams, config.NumLayers),
	}
	for i := range m.layers {
		prefix := fmt.Sprintf("layer%d.", i)
		m.layers[i] = layerParams{
			wq:  ps.Add(prefix+"attn_wq", e, e, std, rng),
			wk:  ps.Add(prefix+"attn_wk", e, e, std, rng),
			wv:  ps.Add(prefix+"attn_wv", e, e, std, rng),
			wo:  ps.Add(prefix+"attn_wo", e, e, 0, rng),
			fc1: ps.Add(prefix+"mlp_fc1", 4*e, e, std, rng),
			fc2: ps.Add(prefix+"mlp_fc2", e, 4*e, 0, rng),
		}
	}

	m.optimizer = NewAdamOptimizer(ps.Len(), adam)
	return m, nil
}

// Config returns the model's architecture.
func (m *Model) Config() ModelConfig { return m.config }

// Params returns the parameter store.
func (m *Model) Params() *ParamStore { return m.params }

// Optimizer returns the model's Adam state.
func (m *Model) Optimizer() *AdamOptimizer { return m.optimizer }

// ParamCount returns the number of trainable scalars.
func (m *Model) ParamCount() int { return m.params.Len() }

// NewCache returns an empty inference cache sized for this model.
func (m *Model) NewCache() *KVCache[float64] {
	return NewKVCache[float64](m.config.NumLayers, m.config.ContextLen)
}

// NewTrainCache returns an empty training cache sized for this model.
func (m *Model) NewTrainCache() *KVCache[*Value] {
	return NewKVCache[*Value](m.config.NumLayers, m.config.ContextLen)
}

// Output is the result of one inference step.
type Output struct {
	Logits []float64
	Probs  []float64

	// Attention[layer][head][pos] holds the softmax weights of the current
	// query over every cached position. For visualization only.
	Attention [][][]float64
}

// Forward runs one inference-mode step: the token at position pos attends
// to everything already in cache (plus itself) and its keys/values are
// appended to cache.
//
// Non-finite logits are reported as a *DomainError after the keys/values
// were appended, so the caller must reset cache before reusing it.
func (m *Model) Forward(token, pos int, cache *KVCache[float64]) (*Output, error) {
	if err := m.checkStep(token, pos, cache.Len(), cache.Full()); err != nil {
		return nil, err
	}

	attn := make([][][]float64, m.config.NumLayers)
	logits := forward[float64](floatArith{}, m, token, pos, cache, attn)

	if !allFinite(logits) {
		return nil, &DomainError{Op: "forward", Operand: float64(token), Result: firstNonFinite(logits)}
	}

	return &Output{
		Logits:    logits,
		Probs:     Softmax(logits),
		Attention: attn,
	}, nil
}

// ForwardTrain runs one training-mode step and returns logits as graph
// nodes. A *DomainError raised while building the graph is returned as err;
// earlier layers may already hold the step's keys/values, so the cache must
// be discarded after an error.
func (m *Model) ForwardTrain(token, pos int, cache *KVCache[*Value]) (logits []*Value, err error) {
	if err := m.checkStep(token, pos, cache.Len(), cache.Full()); err != nil {
		return nil, err
	}
	defer recoverDomainError(&err)
	return forward[*Value](graphArith{}, m, token, pos, cache, nil), nil
}

func (m *Model) checkStep(token, pos, cached int, full bool) error {
	if token < 0 || token >= m.config.VocabSize {
		return fmt.Errorf("transformer: token %d out of range [0,%d)", token, m.config.VocabSize)
	}
	if pos < 0 || pos >= m.config.ContextLen {
		return fmt.Errorf("transformer: position %d out of range [0,%d)", pos, m.config.ContextLen)
	}
	if full {
		return fmt.Errorf("transformer: %w (%d positions)", ErrContextFull, cached)
	}
	return nil
}

// forward is the single implementation of the architecture. When attn is
// non-nil the per-head attention weights are copied into it as float64.
func forward[T any, A Arith[T]](ar A, m *Model, token, pos int, cache *KVCache[T], attn [][][]float64) []T {
	cfg := m.config
	headDim := cfg.HeadDim()
	sqrtHead := math.Sqrt(float64(headDim))

	tokEmb := m.wte.Row(token)
	posEmb := m.wpe.Row(pos)
	x := make([]T, cfg.EmbedDim)
	for i := range x {
		x[i] = ar.Add(ar.Param(tokEmb[i]), ar.Param(posEmb[i]))
	}
	x = rmsnorm(ar, x)

	for li, layer := range m.layers {
		// 1) Multi-head causal self-attention
		residual := x
		x = rmsnorm(ar, x)
		q := linear(ar, x, layer.wq)
		k := linear(ar, x, layer.wk)
		v := linear(ar, x, layer.wv)
		cache.Append(li, k, v)

		keys := cache.Keys(li)
		values := cache.Values(li)
		if attn != nil {
			attn[li] = make([][]float64, cfg.NumHeads)
		}

		xAttn := make([]T, 0, cfg.EmbedDim)
		for h := 0; h < cfg.NumHeads; h++ {
			hs := h * headDim
			qh := q[hs : hs+headDim]

			scores := make([]T, len(keys))
			for t, kt := range keys {
				s := dot(ar, qh, kt[hs:hs+headDim])
				scores[t] = div(ar, s, ar.Const(sqrtHead))
			}
			weights := softmax(ar, scores)

			if attn != nil {
				row := make([]float64, len(weights))
				for t, w := range weights {
					row[t] = ar.Float(w)
				}
				attn[li][h] = row
			}

			for j := 0; j < headDim; j++ {
				out := ar.Mul(weights[0], values[0][hs+j])
				for t := 1; t < len(values); t++ {
					out = ar.Add(out, ar.Mul(weights[t], values[t][hs+j]))
				}
				xAttn = append(xAttn, out)
			}
		}

		x = linear(ar, xAttn, layer.wo)
		for i := range x {
			x[i] = ar.Add(x[i], residual[i])
		}

		// 2) Feed-forward with ReLU² activation
		residual = x
		x = rmsnorm(ar, x)
		x = linear(ar, x, layer.fc1)
		for i := range x {
			x[i] = ar.Pow(ar.ReLU(x[i]), 2)
		}
		x = linear(ar, x, layer.fc2)
		for i := range x {
			x[i] = ar.Add(x[i], residual[i])
		}
	}

	return linear(ar, x, m.lmHead)
}

// TrainOnSequence runs one supervised step on tokens: every adjacent
// (token, next) pair up to the context length is predicted through one
// shared training cache, the mean cross-entropy is backpropagated and the
// optimizer is stepped once.
//
// If the step hits a *DomainError (in the forward pass or as a non-finite
// gradient) all accumulated gradients are discarded, the optimizer is NOT
// stepped, and the error is returned.
func (m *Model) TrainOnSequence(tokens []int, lr float64) (loss float64, err error) {
	n := min(m.config.ContextLen, len(tokens)-1)
	if n <= 0 {
		return 0, ErrEmptySequence
	}

	defer func() {
		if err != nil {
			m.params.ZeroGrad()
		}
	}()

	total, err := m.sequenceLoss(tokens[:n+1])
	if err != nil {
		return 0, err
	}

	total.Backward()
	if err := checkGradients(m.params.Params()); err != nil {
		return 0, err
	}

	m.optimizer.Step(m.params.Params(), lr)
	return total.Data, nil
}

// sequenceLoss builds the graph of the mean next-token cross-entropy.
func (m *Model) sequenceLoss(tokens []int) (loss *Value, err error) {
	defer recoverDomainError(&err)

	n := len(tokens) - 1
	cache := m.NewTrainCache()
	losses := make([]*Value, n)
	for pos := 0; pos < n; pos++ {
		logits, err := m.ForwardTrain(tokens[pos], pos, cache)
		if err != nil {
			return nil, err
		}
		target := tokens[pos+1]
		if target < 0 || target >= m.config.VocabSize {
			return nil, fmt.Errorf("transformer: target token %d out of range [0,%d)", target, m.config.VocabSize)
		}
		probs := softmax(graphArith{}, logits)
		losses[pos] = probs[target].Log().MulConst(-1)
	}

	return sum(graphArith{}, losses).Div(NewValue(float64(n))), nil
}

// checkGradients returns a *DomainError for the first non-finite gradient.
func checkGradients(params []*Value) error {
	for _, p := range params {
		if math.IsNaN(p.Grad) || math.IsInf(p.Grad, 0) {
			return &DomainError{Op: "grad", Operand: p.Data, Result: p.Grad}
		}
	}
	return nil
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return false
		}
	}
	return true
}

func firstNonFinite(xs []float64) float64 {
	for _, x := range xs {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return x
		}
	}
	return 0
}
