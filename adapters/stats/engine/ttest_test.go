package engine

import (
	"context"
	"testing"

	"metastats/domain/core"
	"metastats/domain/stats"
)

func TestWelchTTest_EqualVarianceMatchesStudent(t *testing.T) {
	// Equal sizes and equal variances collapse Welch to the classic test:
	// t=-3.6742, df=4, two-sided p=0.0213.
	tval, p, code, detail := welchTTest([]float64{1, 2, 3}, []float64{4, 5, 6})
	if code != "" {
		t.Fatalf("unexpected skip %s: %s", code, detail)
	}
	if !closeTo(tval, -3.6742346142, 1e-9) {
		t.Errorf("expected t=-3.67423, got %.10f", tval)
	}
	if !closeTo(p, 0.0213116411, 1e-6) {
		t.Errorf("expected p=0.0213116, got %.10f", p)
	}
}

func TestWelchTTest_UnequalSizesAndVariances(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 4, 6, 8, 10}

	tval, p, code, detail := welchTTest(a, b)
	if code != "" {
		t.Fatalf("unexpected skip %s: %s", code, detail)
	}
	// t = -3.5/sqrt(5/12 + 2), Welch-Satterthwaite df ~ 5.52.
	if !closeTo(tval, -2.2514363, 1e-5) {
		t.Errorf("expected t=-2.25144, got %.7f", tval)
	}
	if p <= 0.06 || p >= 0.08 {
		t.Errorf("expected p in (0.06, 0.08) for df~5.5, got %.6f", p)
	}

	// Swapping the groups negates t and keeps p.
	tSwap, pSwap, _, _ := welchTTest(b, a)
	if !closeTo(tSwap, -tval, 1e-12) {
		t.Errorf("expected negated t after swap, got %.10f vs %.10f", tSwap, tval)
	}
	if !closeTo(pSwap, p, 1e-12) {
		t.Errorf("expected identical p after swap, got %.10g vs %.10g", pSwap, p)
	}
}

func TestWelchTTest_Degenerate(t *testing.T) {
	if _, _, code, _ := welchTTest([]float64{1}, []float64{2, 3}); code != stats.SkipTooFewSamples {
		t.Errorf("expected TOO_FEW_SAMPLES for singleton group, got %q", code)
	}
	if _, _, code, _ := welchTTest([]float64{4, 4, 4}, []float64{9, 9, 9}); code != stats.SkipZeroVariance {
		t.Errorf("expected ZERO_VARIANCE for two constant groups, got %q", code)
	}
	// One constant group still has a defined statistic.
	if _, _, code, _ := welchTTest([]float64{4, 4, 4}, []float64{1, 2, 3}); code != "" {
		t.Errorf("expected one constant group to be testable, got skip %q", code)
	}
}

func TestPairedTTest_KnownValue(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 3, 5, 4, 7}

	// Differences {-1,-1,-2,0,-2}: mean -1.2, sample sd sqrt(0.7), df=4.
	tval, p, code, detail := pairedTTest(a, b)
	if code != "" {
		t.Fatalf("unexpected skip %s: %s", code, detail)
	}
	if !closeTo(tval, -3.2071349, 1e-6) {
		t.Errorf("expected t=-3.20713, got %.7f", tval)
	}
	if !closeTo(p, 0.0326779234, 1e-6) {
		t.Errorf("expected p=0.0326779, got %.10f", p)
	}
}

func TestPairedTTest_DiffersFromWelchOnSameData(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 3, 5, 4, 7}

	tPaired, pPaired, _, _ := pairedTTest(a, b)
	tWelch, pWelch, _, _ := welchTTest(a, b)
	if closeTo(tPaired, tWelch, 1e-9) {
		t.Errorf("paired and Welch t should differ on correlated pairs, both %.6f", tPaired)
	}
	if closeTo(pPaired, pWelch, 1e-9) {
		t.Errorf("paired and Welch p should differ on correlated pairs, both %.6g", pPaired)
	}
}

func TestPairedTTest_Degenerate(t *testing.T) {
	if _, _, code, _ := pairedTTest([]float64{1}, []float64{2}); code != stats.SkipTooFewSamples {
		t.Errorf("expected TOO_FEW_SAMPLES for single pair, got %q", code)
	}
	// Constant shift means zero variance of differences.
	if _, _, code, _ := pairedTTest([]float64{1, 2, 3}, []float64{3, 4, 5}); code != stats.SkipZeroVariance {
		t.Errorf("expected ZERO_VARIANCE for constant differences, got %q", code)
	}
}

func TestRunTTest_WelchBatch(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	m := testMatrix(t,
		[]string{"strong", "weak"},
		samples,
		[][]float64{
			{1, 2, 3, 40, 50, 60},
			{5, 6, 7, 5, 7, 6},
		},
	)
	md := testMetadata(t, samples, "ATTRIBUTE_dose", []string{"low", "low", "low", "high", "high", "high"})

	res, err := NewStatsEngine().RunTTest(context.Background(), m, md, "ATTRIBUTE_dose", "low", "high", false)
	if err != nil {
		t.Fatalf("RunTTest: %v", err)
	}
	if res.TestedCount != 2 || len(res.Rows) != 2 {
		t.Fatalf("expected 2 tested rows, got tested=%d rows=%d", res.TestedCount, len(res.Rows))
	}
	if res.Paired {
		t.Error("expected unpaired result")
	}
	if res.Rows[0].Feature != core.FeatureKey("strong") {
		t.Errorf("expected strong feature ranked first, got %s", res.Rows[0].Feature)
	}
	for _, row := range res.Rows {
		if row.Attribute != "ATTRIBUTE_dose" || row.GroupA != "low" || row.GroupB != "high" {
			t.Errorf("row carries wrong grouping: %+v", row)
		}
		if !closeTo(row.PCorrected, minF(1, row.PValue*2), 1e-12) {
			t.Errorf("expected Bonferroni over 2 tests, raw=%g corrected=%g", row.PValue, row.PCorrected)
		}
	}
}

func TestRunTTest_PairedRequiresEqualGroupSizes(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	m := testMatrix(t, []string{"m1"}, samples, [][]float64{{1, 2, 3, 4, 5, 6, 7}})
	md := testMetadata(t, samples, "ATTRIBUTE_timepoint",
		[]string{"before", "before", "before", "after", "after", "after", "after"})

	_, err := NewStatsEngine().RunTTest(context.Background(), m, md, "ATTRIBUTE_timepoint", "before", "after", true)
	if err == nil {
		t.Fatal("expected error for paired test with 3v4 groups")
	}
	if !core.IsUnequalGroupSize(err) {
		t.Errorf("expected unequal group size error, got %v", err)
	}

	// The same selection works unpaired.
	if _, err := NewStatsEngine().RunTTest(context.Background(), m, md, "ATTRIBUTE_timepoint", "before", "after", false); err != nil {
		t.Errorf("unpaired run should succeed: %v", err)
	}
}

func TestRunTTest_SameGroupRejected(t *testing.T) {
	samples := []string{"s1", "s2"}
	m := testMatrix(t, []string{"m1"}, samples, [][]float64{{1, 2}})
	md := testMetadata(t, samples, "ATTRIBUTE_group", []string{"a", "b"})

	if _, err := NewStatsEngine().RunTTest(context.Background(), m, md, "ATTRIBUTE_group", "a", "a", false); err == nil {
		t.Fatal("expected validation error for identical groups")
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
