package main

import (
	"testing"
)

// TestKVCacheBasics tests basic KV cache operations
func TestKVCacheBasics(t *testing.T) {
	numLayers := 2
	maxLen := 4

	cache := NewKVCache[float64](numLayers, maxLen)

	if cache.Len() != 0 {
		t.Errorf("Expected initial Len=0, got %d", cache.Len())
	}
	if cache.NumLayers() != numLayers || cache.MaxLen() != maxLen {
		t.Errorf("Expected %d layers / %d max, got %d / %d", numLayers, maxLen, cache.NumLayers(), cache.MaxLen())
	}

	k := []float64{1, 2, 3}
	v := []float64{4, 5, 6}
	cache.Append(0, k, v)

	// Len follows the last layer.
	if cache.Len() != 0 {
		t.Errorf("Expected Len=0 with only layer 0 filled, got %d", cache.Len())
	}
	if cache.LayerLen(0) != 1 {
		t.Errorf("Expected LayerLen(0)=1, got %d", cache.LayerLen(0))
	}

	cache.Append(1, k, v)
	if cache.Len() != 1 {
		t.Errorf("Expected Len=1, got %d", cache.Len())
	}

	keys := cache.Keys(1)
	if len(keys) != 1 || keys[0][2] != 3 {
		t.Errorf("Unexpected keys %v", keys)
	}
	if vals := cache.Values(0); vals[0][0] != 4 {
		t.Errorf("Unexpected values %v", vals)
	}

	cache.Reset()
	if cache.Len() != 0 || cache.LayerLen(0) != 0 {
		t.Errorf("Expected empty cache after Reset, got Len=%d", cache.Len())
	}
}

func TestKVCacheFull(t *testing.T) {
	cache := NewKVCache[float64](1, 3)
	for i := 0; i < 3; i++ {
		if cache.Full() {
			t.Fatalf("Full() true after %d appends", i)
		}
		cache.Append(0, []float64{float64(i)}, []float64{float64(i)})
	}
	if !cache.Full() {
		t.Errorf("Expected Full() after 3 appends")
	}
}

func TestKVCacheOverflowPanics(t *testing.T) {
	cache := NewKVCache[float64](1, 1)
	cache.Append(0, []float64{1}, []float64{1})

	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic on overflow")
		}
	}()
	cache.Append(0, []float64{2}, []float64{2})
}

func TestKVCacheWidthMismatchPanics(t *testing.T) {
	cache := NewKVCache[float64](1, 2)
	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic on key/value width mismatch")
		}
	}()
	cache.Append(0, []float64{1, 2}, []float64{1})
}

func TestKVCacheHoldsGraphNodes(t *testing.T) {
	cache := NewKVCache[*Value](1, 2)
	k := []*Value{NewValue(1)}
	cache.Append(0, k, []*Value{NewValue(2)})
	if cache.Keys(0)[0][0] != k[0] {
		t.Errorf("Training cache must keep node identity")
	}
}

// TestForwardReturnsContextFull checks the model refuses to append to a
// full cache instead of panicking.
func TestForwardReturnsContextFull(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.ContextLen = 2
	model := newTestModel(t, cfg)
	cache := model.NewCache()

	for pos := 0; pos < 2; pos++ {
		if _, err := model.Forward(1, pos, cache); err != nil {
			t.Fatalf("Forward(pos=%d): %v", pos, err)
		}
	}
	if _, err := model.Forward(1, 1, cache); !isContextFull(err) {
		t.Errorf("Expected ErrContextFull, got %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("Cache length changed to %d", cache.Len())
	}
}
