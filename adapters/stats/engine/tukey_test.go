package engine

import (
	"context"
	"testing"

	"metastats/domain/core"
	"metastats/domain/stats"
)

func TestTukeyTwoLevel_KnownValue(t *testing.T) {
	// With two groups the contrast equals the pooled two-sample t test.
	diff, meanA, meanB, p, code, detail := tukeyTwoLevel([]float64{1, 2, 3}, []float64{4, 5, 6})
	if code != "" {
		t.Fatalf("unexpected skip %s: %s", code, detail)
	}
	if diff != -3 {
		t.Errorf("expected diff=-3, got %g", diff)
	}
	if meanA != 2 || meanB != 5 {
		t.Errorf("expected means 2 and 5, got %g and %g", meanA, meanB)
	}
	if !closeTo(p, 0.0213116411, 1e-6) {
		t.Errorf("expected p=0.0213116, got %.10f", p)
	}
}

func TestTukeyTwoLevel_Degenerate(t *testing.T) {
	if _, _, _, _, code, _ := tukeyTwoLevel([]float64{1, 2}, nil); code != stats.SkipTooFewGroups {
		t.Errorf("expected TOO_FEW_GROUPS for empty level, got %q", code)
	}
	if _, _, _, _, code, _ := tukeyTwoLevel([]float64{1}, []float64{2}); code != stats.SkipTooFewSamples {
		t.Errorf("expected TOO_FEW_SAMPLES for two singletons, got %q", code)
	}
	if _, _, _, _, code, _ := tukeyTwoLevel([]float64{2, 2}, []float64{7, 7}); code != stats.SkipZeroVariance {
		t.Errorf("expected ZERO_VARIANCE for constant levels, got %q", code)
	}
}

func TestRunTukey_ExcludesOtherLevelsAndKeepsRequestedPair(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9"}
	// Level b carries extreme values that would wreck the contrast if its
	// samples leaked into the pooled variance.
	m := testMatrix(t, []string{"m1"}, samples,
		[][]float64{{1, 2, 3, 500, 600, 700, 4, 5, 6}},
	)
	md := testMetadata(t, samples, "ATTRIBUTE_site",
		[]string{"a", "a", "a", "b", "b", "b", "c", "c", "c"})

	res, err := NewStatsEngine().RunTukey(context.Background(), m, md, "ATTRIBUTE_site",
		[2]string{"a", "c"},
		[]core.FeatureKey{"m1", "ghost"},
	)
	if err != nil {
		t.Fatalf("RunTukey: %v", err)
	}

	if res.TestedCount != 1 || len(res.Rows) != 1 {
		t.Fatalf("expected exactly one tested row, got tested=%d rows=%d", res.TestedCount, len(res.Rows))
	}
	row := res.Rows[0]
	if row.GroupA != "a" || row.GroupB != "c" {
		t.Fatalf("contrast must stay on the requested pair, got %s vs %s", row.GroupA, row.GroupB)
	}
	if row.MeanA != 2 || row.MeanB != 5 {
		t.Errorf("means must come from the two requested levels only, got %g and %g", row.MeanA, row.MeanB)
	}
	if row.Diff != -3 {
		t.Errorf("expected diff=-3, got %g", row.Diff)
	}
	if !closeTo(row.PValue, 0.0213116411, 1e-6) {
		t.Errorf("expected p=0.0213116 from the pure two-level design, got %.10f", row.PValue)
	}
	if !row.Significant {
		t.Error("expected the single-feature batch to stay significant after correction")
	}

	if len(res.Skipped) != 1 {
		t.Fatalf("expected 1 skip, got %d", len(res.Skipped))
	}
	if res.Skipped[0].Feature != core.FeatureKey("ghost") || res.Skipped[0].Reason != stats.SkipNotInTable {
		t.Errorf("expected ghost feature skipped as missing, got %+v", res.Skipped[0])
	}
}

func TestRunTukey_IdenticalLevelsRejected(t *testing.T) {
	samples := []string{"s1", "s2"}
	m := testMatrix(t, []string{"m1"}, samples, [][]float64{{1, 2}})
	md := testMetadata(t, samples, "ATTRIBUTE_site", []string{"a", "b"})

	_, err := NewStatsEngine().RunTukey(context.Background(), m, md, "ATTRIBUTE_site",
		[2]string{"a", "a"}, []core.FeatureKey{"m1"})
	if err == nil {
		t.Fatal("expected validation error for identical levels")
	}
}

func TestRunTukey_MissingLevelFails(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4"}
	m := testMatrix(t, []string{"m1"}, samples, [][]float64{{1, 2, 3, 4}})
	md := testMetadata(t, samples, "ATTRIBUTE_site", []string{"a", "a", "b", "b"})

	_, err := NewStatsEngine().RunTukey(context.Background(), m, md, "ATTRIBUTE_site",
		[2]string{"a", "nope"}, []core.FeatureKey{"m1"})
	if err == nil {
		t.Fatal("expected error for a level with no samples")
	}
	if !core.IsInsufficientData(err) {
		t.Errorf("expected insufficient data error, got %v", err)
	}
}

func TestDescribeFeature_GroupSummaries(t *testing.T) {
	samples := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	m := testMatrix(t, []string{"m1"}, samples,
		[][]float64{{1, 2, 3, 4, 5, 10, 20}},
	)
	md := testMetadata(t, samples, "ATTRIBUTE_group",
		[]string{"a", "a", "a", "a", "a", "b", "b"})

	summaries, err := NewStatsEngine().DescribeFeature(m, md, "ATTRIBUTE_group", "m1")
	if err != nil {
		t.Fatalf("DescribeFeature: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 group summaries, got %d", len(summaries))
	}

	a := summaries[0]
	if a.Level != "a" || a.N != 5 {
		t.Fatalf("expected level a with n=5 first, got %+v", a)
	}
	if a.Mean != 3 || a.Median != 3 || a.Min != 1 || a.Max != 5 {
		t.Errorf("wrong summary for level a: %+v", a)
	}
	if !closeTo(a.SD, 1.5811388301, 1e-9) {
		t.Errorf("expected sample sd sqrt(2.5), got %.10f", a.SD)
	}
	if a.Q1 < a.Min || a.Q1 > a.Median || a.Q3 < a.Median || a.Q3 > a.Max {
		t.Errorf("quartiles out of order: %+v", a)
	}

	b := summaries[1]
	if b.Level != "b" || b.N != 2 || b.Mean != 15 {
		t.Errorf("wrong summary for level b: %+v", b)
	}

	if _, err := NewStatsEngine().DescribeFeature(m, md, "ATTRIBUTE_group", "ghost"); !core.IsNotFoundError(err) {
		t.Errorf("expected not found error for unknown feature, got %v", err)
	}
}
