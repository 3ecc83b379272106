package table

import (
	"testing"

	"metastats/domain/core"
)

func testTable() FeatureTable {
	return FeatureTable{
		Features: []core.FeatureKey{"f1", "f2", "f3"},
		Samples:  []string{"s1", "s2", "s3", "s4"},
		Data: [][]float64{
			{10, 0, 30, 40},
			{0, 0, 0, 4},
			{5, 6, 7, 8},
		},
	}
}

func TestFeatureTableValidate(t *testing.T) {
	ft := testTable()
	if err := ft.Validate(); err != nil {
		t.Fatalf("Valid table failed validation: %v", err)
	}

	ragged := testTable()
	ragged.Data[1] = []float64{1, 2}
	if err := ragged.Validate(); err == nil {
		t.Error("Expected validation error for ragged rows")
	}

	negative := testTable()
	negative.Data[0][0] = -1
	if err := negative.Validate(); err == nil {
		t.Error("Expected validation error for negative intensity")
	}

	dup := testTable()
	dup.Features[1] = "f1"
	if err := dup.Validate(); err == nil {
		t.Error("Expected validation error for duplicate feature keys")
	}
}

func TestFeatureTableSelectSamples(t *testing.T) {
	ft := testTable()
	sub := ft.SelectSamples([]string{"s4", "s2", "missing"})

	if sub.SampleCount() != 2 {
		t.Fatalf("Expected 2 samples, got %d", sub.SampleCount())
	}
	if sub.Samples[0] != "s4" || sub.Samples[1] != "s2" {
		t.Errorf("Selection should preserve requested order, got %v", sub.Samples)
	}
	if sub.Data[0][0] != 40 || sub.Data[0][1] != 0 {
		t.Errorf("Expected row f1 = [40 0], got %v", sub.Data[0])
	}

	// original untouched
	if ft.SampleCount() != 4 {
		t.Error("SelectSamples must not mutate the receiver")
	}
}

func TestFeatureTableTransposed(t *testing.T) {
	ft := testTable()
	m := ft.Transposed()

	if m.SampleCount() != ft.SampleCount() || m.FeatureCount() != ft.FeatureCount() {
		t.Fatalf("Transpose changed dimensions: %dx%d", m.SampleCount(), m.FeatureCount())
	}
	for i := range ft.Features {
		for j := range ft.Samples {
			if ft.Data[i][j] != m.Data[j][i] {
				t.Fatalf("Transpose mismatch at feature %d sample %d", i, j)
			}
		}
	}

	col, ok := m.FeatureColumn("f2")
	if !ok {
		t.Fatal("FeatureColumn f2 not found")
	}
	want := []float64{0, 0, 0, 4}
	for k := range want {
		if col[k] != want[k] {
			t.Errorf("FeatureColumn f2[%d] = %g, want %g", k, col[k], want[k])
		}
	}
}

func TestFeatureTableZeroFractions(t *testing.T) {
	ft := testTable()

	if got := ft.ZeroFraction(); got != 4.0/12.0 {
		t.Errorf("ZeroFraction = %g, want %g", got, 4.0/12.0)
	}

	rows := ft.RowZeroFractions()
	want := []float64{0.25, 0.75, 0}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("RowZeroFractions[%d] = %g, want %g", i, rows[i], want[i])
		}
	}
}

func TestFeatureTableContentHashChangesWithData(t *testing.T) {
	a := testTable()
	b := testTable()
	if a.ContentHash() != b.ContentHash() {
		t.Error("Identical tables must hash identically")
	}

	b.Data[2][3] = 9
	if a.ContentHash() == b.ContentHash() {
		t.Error("Changing a cell must change the content hash")
	}

	c := testTable()
	c.Samples[0] = "renamed"
	if a.ContentHash() == c.ContentHash() {
		t.Error("Renaming a sample must change the content hash")
	}
}
