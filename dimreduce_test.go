package main

import (
	"math"
	"testing"
)

func matrixOf(name string, rows [][]float64) *Matrix {
	m := &Matrix{Name: name, Rows: len(rows), Cols: len(rows[0])}
	for _, r := range rows {
		for _, x := range r {
			m.Data = append(m.Data, NewValue(x))
		}
	}
	return m
}

// TestPCALine projects points on a line: one component explains all the
// variance and preserves the spacing.
func TestPCALine(t *testing.T) {
	var rows [][]float64
	for i := 0; i < 5; i++ {
		rows = append(rows, []float64{float64(i), 2 * float64(i), 0})
	}
	p, err := PCA(matrixOf("line", rows), 2)
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}

	r, c := p.Coords.Dims()
	if r != 5 || c != 2 {
		t.Fatalf("coords are %dx%d, want 5x2", r, c)
	}
	if math.Abs(p.Explained()-1) > 1e-9 {
		t.Errorf("Explained = %g, want 1", p.Explained())
	}
	for i := 1; i < 5; i++ {
		d := math.Abs(p.Coords.At(i, 0) - p.Coords.At(0, 0))
		if want := float64(i) * math.Sqrt(5); math.Abs(d-want) > 1e-9 {
			t.Errorf("row %d is %g from row 0, want %g", i, d, want)
		}
		if math.Abs(p.Coords.At(i, 1)) > 1e-9 {
			t.Errorf("row %d has second component %g", i, p.Coords.At(i, 1))
		}
	}
}

func TestPCARejectsBadInput(t *testing.T) {
	m := matrixOf("m", [][]float64{{1, 2}, {3, 4}})
	if _, err := PCA(m, 0); err == nil {
		t.Errorf("k=0 accepted")
	}
	if _, err := PCA(m, 3); err == nil {
		t.Errorf("k larger than width accepted")
	}
	if _, err := PCA(matrixOf("one", [][]float64{{1, 2}}), 1); err == nil {
		t.Errorf("single row accepted")
	}
}

func TestPCAOfEmbeddings(t *testing.T) {
	model := newTestModel(t, DefaultModelConfig())
	wte, ok := model.Params().Get("wte")
	if !ok {
		t.Fatal("no wte matrix")
	}
	p, err := PCA(wte, 2)
	if err != nil {
		t.Fatalf("PCA: %v", err)
	}
	if r, _ := p.Coords.Dims(); r != wte.Rows {
		t.Errorf("projected %d rows, want %d", r, wte.Rows)
	}
	if e := p.Explained(); e <= 0 || e > 1 {
		t.Errorf("Explained = %g", e)
	}
}
