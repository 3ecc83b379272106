package engine

import (
	"math"
	"testing"

	"metastats/domain/core"
	"metastats/domain/table"
)

// testMatrix builds a sample-by-feature matrix from feature-major rows.
func testMatrix(t *testing.T, features []string, samples []string, rows [][]float64) *table.SampleMatrix {
	t.Helper()
	keys := make([]core.FeatureKey, len(features))
	for i, f := range features {
		keys[i] = core.FeatureKey(f)
	}
	ft := table.FeatureTable{Features: keys, Samples: samples, Data: rows}
	if err := ft.Validate(); err != nil {
		t.Fatalf("fixture table invalid: %v", err)
	}
	m := ft.Transposed()
	return &m
}

// testMetadata builds single-attribute metadata with one value per sample.
func testMetadata(t *testing.T, samples []string, attribute string, values []string) *table.Metadata {
	t.Helper()
	if len(values) != len(samples) {
		t.Fatalf("fixture needs %d values, got %d", len(samples), len(values))
	}
	rows := make([][]string, len(samples))
	for i := range samples {
		rows[i] = []string{values[i]}
	}
	md := table.Metadata{Samples: samples, Attributes: []string{attribute}, Values: rows}
	if err := md.Validate(); err != nil {
		t.Fatalf("fixture metadata invalid: %v", err)
	}
	return &md
}

func closeTo(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestResolveGroups_PreservesLevelOrderAndSkipsUnknownSamples(t *testing.T) {
	m := testMatrix(t,
		[]string{"m1"},
		[]string{"s1", "s2", "s3", "s4"},
		[][]float64{{1, 2, 3, 4}},
	)
	// s5 exists only in the metadata and must not produce a row index.
	md := testMetadata(t,
		[]string{"s1", "s2", "s3", "s4", "s5"},
		"ATTRIBUTE_group",
		[]string{"late", "early", "late", "early", "late"},
	)

	groups, err := resolveGroups(m, md, "ATTRIBUTE_group")
	if err != nil {
		t.Fatalf("resolveGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Level != "late" || groups[1].Level != "early" {
		t.Errorf("expected first-appearance order [late early], got [%s %s]", groups[0].Level, groups[1].Level)
	}
	if len(groups[0].Rows) != 2 {
		t.Errorf("level late should resolve to 2 matrix rows, got %d", len(groups[0].Rows))
	}
	if len(groups[1].Rows) != 2 {
		t.Errorf("level early should resolve to 2 matrix rows, got %d", len(groups[1].Rows))
	}
}

func TestResolveGroups_UnknownAttribute(t *testing.T) {
	m := testMatrix(t, []string{"m1"}, []string{"s1"}, [][]float64{{1}})
	md := testMetadata(t, []string{"s1"}, "ATTRIBUTE_group", []string{"a"})

	if _, err := resolveGroups(m, md, "ATTRIBUTE_missing"); err == nil {
		t.Fatal("expected error for unknown attribute")
	}
}
