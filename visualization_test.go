package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderAttention(t *testing.T) {
	attn := [][][]float64{
		{
			{0, 0.5, 1},
			{},
		},
	}
	var buf bytes.Buffer
	RenderAttention(&buf, attn, []string{"BOS", "left3", "right4"})
	out := buf.String()

	for _, want := range []string{
		"Layer 0",
		"positions: BOS left3 right4",
		"head 0 │ ▒█│ max 1.00 @2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "head 1") {
		t.Errorf("empty head should be skipped:\n%s", out)
	}
}

func TestRenderAttentionIgnoresMismatchedLabels(t *testing.T) {
	var buf bytes.Buffer
	RenderAttention(&buf, [][][]float64{{{1}}}, []string{"a", "b"})
	if strings.Contains(buf.String(), "positions:") {
		t.Errorf("labels printed for the wrong number of positions")
	}
}

func TestEpisodeMetricsSaveHTML(t *testing.T) {
	m := NewEpisodeMetrics()
	if err := m.SaveHTML(filepath.Join(t.TempDir(), "empty.html")); err == nil {
		t.Errorf("SaveHTML with no data should fail")
	}

	for i := 0; i < 3; i++ {
		rec := IterationRecord{
			EpisodeStats: EpisodeStats{Iteration: i, MeanReward: float64(i), BestReward: float64(2 * i)},
			Loss:         3.5 - float64(i),
		}
		m.Record(rec, 10*i, 50-i)
	}
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}

	path := filepath.Join(t.TempDir(), "metrics.html")
	if err := m.SaveHTML(path); err != nil {
		t.Fatalf("SaveHTML: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	if !strings.Contains(html, "<canvas") || !strings.Contains(html, "[0,1,2]") {
		t.Errorf("page is missing the charts or the iteration axis")
	}
}

func TestFormatJSArrayFloat(t *testing.T) {
	got := formatJSArrayFloat([]float64{1.5, math.NaN(), -2})
	if got != "[1.500000,null,-2.000000]" {
		t.Errorf("formatJSArrayFloat = %s", got)
	}
	if formatJSArray(nil) != "[]" {
		t.Errorf("formatJSArray(nil) = %s", formatJSArray(nil))
	}
}
