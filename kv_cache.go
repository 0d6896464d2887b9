package main

import "fmt"

// ===========================================================================
// KV CACHE - Incremental decoding one token at a time
// ===========================================================================
//
// Agents feed the model one token per forward pass. For every token each
// layer computes a key and a value vector; for tokens already seen those
// vectors never change, so they are kept here and reused by every later
// attention step instead of being recomputed.
//
// The cache is also what makes attention causal: a position can only see
// keys that were appended before (or as) it was processed. Nothing from the
// future is ever in the cache when a query runs.
//
// Structure:
//   - keys[layer][pos]   = key vector of width EmbedDim (heads concatenated)
//   - values[layer][pos] = value vector of width EmbedDim
//
// The element type is generic: inference caches hold float64 vectors,
// training caches hold *Value vectors that are part of the autograd graph.
//
// CAPACITY:
// A cache never holds more than maxLen positions (the model's context
// length, which is also the size of the position-embedding table). Callers
// check Full() before feeding a token; the agent answers a full cache with a
// rolling-window reset (Reset + re-seed), never by dropping entries from the
// middle.
//
// ===========================================================================

// KVCache stores per-layer key and value vectors.
type KVCache[T any] struct {
	keys   [][][]T
	values [][][]T
	maxLen int
}

// NewKVCache creates an empty cache for numLayers layers holding at most
// maxLen positions.
func NewKVCache[T any](numLayers, maxLen int) *KVCache[T] {
	kv := &KVCache[T]{
		keys:   make([][][]T, numLayers),
		values: make([][][]T, numLayers),
		maxLen: maxLen,
	}
	for i := 0; i < numLayers; i++ {
		kv.keys[i] = make([][]T, 0, maxLen)
		kv.values[i] = make([][]T, 0, maxLen)
	}
	return kv
}

// Append adds one position's key and value to a layer.
//
// Appending past maxLen is a programming error and panics; the forward pass
// checks Full() first and returns ErrContextFull instead.
func (kv *KVCache[T]) Append(layerIdx int, k, v []T) {
	if len(k) != len(v) {
		panic(fmt.Sprintf("kv_cache: key width %d != value width %d", len(k), len(v)))
	}
	if len(kv.keys[layerIdx]) >= kv.maxLen {
		panic(fmt.Sprintf("kv_cache: layer %d overflow - already holds %d positions", layerIdx, kv.maxLen))
	}
	kv.keys[layerIdx] = append(kv.keys[layerIdx], k)
	kv.values[layerIdx] = append(kv.values[layerIdx], v)
}

// Keys returns the cached keys for a layer, oldest first.
func (kv *KVCache[T]) Keys(layerIdx int) [][]T {
	return kv.keys[layerIdx]
}

// Values returns the cached values for a layer, oldest first.
func (kv *KVCache[T]) Values(layerIdx int) [][]T {
	return kv.values[layerIdx]
}

// Len returns the number of positions processed, i.e. the length of the
// last layer's sequence. Mid-forward, earlier layers may be one ahead.
func (kv *KVCache[T]) Len() int {
	if len(kv.keys) == 0 {
		return 0
	}
	return len(kv.keys[len(kv.keys)-1])
}

// LayerLen returns the number of positions cached for one layer.
func (kv *KVCache[T]) LayerLen(layerIdx int) int {
	return len(kv.keys[layerIdx])
}

// NumLayers returns the number of layers the cache was built for.
func (kv *KVCache[T]) NumLayers() int {
	return len(kv.keys)
}

// MaxLen returns the capacity in positions.
func (kv *KVCache[T]) MaxLen() int {
	return kv.maxLen
}

// Full reports whether another position would exceed the capacity.
func (kv *KVCache[T]) Full() bool {
	return kv.Len() >= kv.maxLen
}

// Reset empties every layer. The backing arrays are kept.
func (kv *KVCache[T]) Reset() {
	for i := range kv.keys {
		clear(kv.keys[i])
		clear(kv.values[i])
		kv.keys[i] = kv.keys[i][:0]
		kv.values[i] = kv.values[i][:0]
	}
}
