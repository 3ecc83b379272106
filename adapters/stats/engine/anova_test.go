package engine

import (
	"context"
	"fmt"
	"testing"

	"metastats/domain/core"
	"metastats/domain/stats"
)

func TestOneWayANOVA_TwoGroupsMatchesPooledT(t *testing.T) {
	// Two groups of three: F is the square of the pooled t statistic, and
	// the p-value matches the two-sided t test with 4 degrees of freedom.
	f, p, code, detail := oneWayANOVA([][]float64{{1, 2, 3}, {4, 5, 6}})
	if code != "" {
		t.Fatalf("unexpected skip %s: %s", code, detail)
	}
	if !closeTo(f, 13.5, 1e-9) {
		t.Errorf("expected F=13.5, got %.10f", f)
	}
	if !closeTo(p, 0.0213116411, 1e-6) {
		t.Errorf("expected p=0.0213116, got %.10f", p)
	}
}

func TestOneWayANOVA_ThreeGroupsKnownValue(t *testing.T) {
	// Hand-computed: SSB=26, SSW=6, F=13; for D1=2 the survival function has
	// the closed form (1+2x/d2)^(-d2/2), so p = (16/3)^-3 = 27/4096.
	f, p, code, detail := oneWayANOVA([][]float64{{1, 2, 3}, {2, 3, 4}, {5, 6, 7}})
	if code != "" {
		t.Fatalf("unexpected skip %s: %s", code, detail)
	}
	if !closeTo(f, 13, 1e-9) {
		t.Errorf("expected F=13, got %.10f", f)
	}
	if !closeTo(p, 27.0/4096.0, 1e-9) {
		t.Errorf("expected p=27/4096, got %.12f", p)
	}
}

func TestOneWayANOVA_EqualMeansGiveZeroF(t *testing.T) {
	f, p, code, _ := oneWayANOVA([][]float64{{5, 6, 7}, {5, 7, 6}})
	if code != "" {
		t.Fatalf("unexpected skip %s", code)
	}
	if f != 0 {
		t.Errorf("expected F=0 for equal group means, got %g", f)
	}
	if p != 1 {
		t.Errorf("expected p=1 for equal group means, got %g", p)
	}
}

func TestOneWayANOVA_DegenerateInputs(t *testing.T) {
	cases := []struct {
		name   string
		groups [][]float64
		want   stats.WarningCode
	}{
		{"single group", [][]float64{{1, 2, 3}}, stats.SkipTooFewGroups},
		{"one empty group", [][]float64{{1, 2, 3}, {}}, stats.SkipTooFewGroups},
		{"singletons only", [][]float64{{1}, {2}}, stats.SkipTooFewSamples},
		{"constant within groups", [][]float64{{3, 3, 3}, {3, 3, 3}}, stats.SkipZeroVariance},
		{"constant but shifted", [][]float64{{3, 3, 3}, {9, 9, 9}}, stats.SkipZeroVariance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, code, _ := oneWayANOVA(tc.groups)
			if code != tc.want {
				t.Errorf("expected skip %s, got %q", tc.want, code)
			}
		})
	}
}

func TestRunANOVA_BatchRanksShiftedFeatureFirst(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	features := []string{"shifted"}
	rows := [][]float64{{10, 11, 12, 100, 101, 102}}
	for i := 1; i <= 9; i++ {
		features = append(features, fmt.Sprintf("flat%d", i))
		rows = append(rows, []float64{5, 6, 7, 5, 7, 6})
	}
	features = append(features, "constant")
	rows = append(rows, []float64{3, 3, 3, 3, 3, 3})

	m := testMatrix(t, features, samples, rows)
	md := testMetadata(t, samples, "ATTRIBUTE_group", []string{"x", "x", "x", "y", "y", "y"})

	res, err := NewStatsEngine().RunANOVA(context.Background(), m, md, "ATTRIBUTE_group")
	if err != nil {
		t.Fatalf("RunANOVA: %v", err)
	}

	if res.TestedCount != 10 {
		t.Fatalf("expected 10 tested features, got %d", res.TestedCount)
	}
	if len(res.Rows) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(res.Rows))
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("expected 1 skip, got %d", len(res.Skipped))
	}
	if res.Skipped[0].Feature != core.FeatureKey("constant") || res.Skipped[0].Reason != stats.SkipZeroVariance {
		t.Errorf("expected constant feature skipped for zero variance, got %+v", res.Skipped[0])
	}

	first := res.Rows[0]
	if first.Feature != core.FeatureKey("shifted") {
		t.Fatalf("expected shifted feature ranked first, got %s (p=%g)", first.Feature, first.PValue)
	}
	if first.PValue >= 1e-6 {
		t.Errorf("expected a tiny raw p for the shifted feature, got %g", first.PValue)
	}
	// Bonferroni multiplies by the tested count, which excludes the skip.
	if !closeTo(first.PCorrected, first.PValue*10, first.PValue) {
		t.Errorf("expected corrected p = raw p * 10, got raw=%g corrected=%g", first.PValue, first.PCorrected)
	}
	if !first.Significant {
		t.Error("expected shifted feature to stay significant after correction")
	}

	// The flat features tie at p=1 and must keep their pre-sort order.
	for i := 1; i <= 9; i++ {
		row := res.Rows[i]
		want := core.FeatureKey(fmt.Sprintf("flat%d", i))
		if row.Feature != want {
			t.Errorf("row %d: expected %s (stable tie order), got %s", i, want, row.Feature)
		}
		if row.Significant {
			t.Errorf("row %d: flat feature must not be significant", i)
		}
		if row.PCorrected != 1 {
			t.Errorf("row %d: expected corrected p clamped to 1, got %g", i, row.PCorrected)
		}
	}
}

func TestRunANOVA_SingleLevelAttributeFails(t *testing.T) {
	samples := []string{"s1", "s2", "s3"}
	m := testMatrix(t, []string{"m1"}, samples, [][]float64{{1, 2, 3}})
	md := testMetadata(t, samples, "ATTRIBUTE_group", []string{"only", "only", "only"})

	_, err := NewStatsEngine().RunANOVA(context.Background(), m, md, "ATTRIBUTE_group")
	if err == nil {
		t.Fatal("expected error for single-level attribute")
	}
	if !core.IsInsufficientData(err) {
		t.Errorf("expected insufficient data error, got %v", err)
	}
}

func TestRunANOVA_CanceledContext(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4"}
	m := testMatrix(t, []string{"m1"}, samples, [][]float64{{1, 2, 3, 4}})
	md := testMetadata(t, samples, "ATTRIBUTE_group", []string{"a", "a", "b", "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStatsEngine().RunANOVA(ctx, m, md, "ATTRIBUTE_group"); err == nil {
		t.Fatal("expected error from canceled context")
	}
}
