package stats

import (
	"math"
	"testing"
)

func TestBonferroniUniformBatch(t *testing.T) {
	for _, n := range []int{1, 3, 10, 50} {
		for _, p := range []float64{0, 0.001, 0.01, 0.2, 0.9, 1} {
			ps := make([]float64, n)
			for i := range ps {
				ps[i] = p
			}
			corrected := Bonferroni(ps)
			want := math.Min(1, p*float64(n))
			for i, c := range corrected {
				if c != want {
					t.Errorf("n=%d p=%g: corrected[%d] = %g, want %g", n, p, i, c, want)
				}
			}
		}
	}
}

func TestBonferroniLeavesInputUntouched(t *testing.T) {
	ps := []float64{0.01, 0.5}
	_ = Bonferroni(ps)
	if ps[0] != 0.01 || ps[1] != 0.5 {
		t.Error("Bonferroni must not modify its input")
	}
}

func TestIsSignificantStrictBoundary(t *testing.T) {
	if !IsSignificant(0.049999) {
		t.Error("corrected p just below 0.05 must be significant")
	}
	if IsSignificant(0.05) {
		t.Error("corrected p exactly 0.05 must not be significant (strict <)")
	}
	if IsSignificant(0.2) {
		t.Error("corrected p above 0.05 must not be significant")
	}
}

func TestFinalizeAnovaRowsSortsAndClassifies(t *testing.T) {
	rows := []AnovaRow{
		{Feature: "slow", PValue: 0.04, FStatistic: 3},
		{Feature: "fast", PValue: 0.001, FStatistic: 30},
		{Feature: "flat", PValue: 0.9, FStatistic: 0.1},
	}

	out := FinalizeAnovaRows(rows)

	if out[0].Feature != "fast" || out[1].Feature != "slow" || out[2].Feature != "flat" {
		t.Errorf("Rows should be sorted ascending by raw p, got %v %v %v",
			out[0].Feature, out[1].Feature, out[2].Feature)
	}
	// n=3: 0.001*3=0.003 significant, 0.04*3=0.12 not
	if !out[0].Significant {
		t.Error("fast should stay significant after correction")
	}
	if out[1].Significant {
		t.Error("slow should lose significance after correction over 3 tests")
	}
	if out[0].PCorrected != 0.003 {
		t.Errorf("Expected corrected p 0.003, got %g", out[0].PCorrected)
	}

	// input order preserved
	if rows[0].Feature != "slow" || rows[0].PCorrected != 0 {
		t.Error("FinalizeAnovaRows must not modify its input")
	}
}

func TestFinalizeStableTies(t *testing.T) {
	rows := []AnovaRow{
		{Feature: "first", PValue: 0.5},
		{Feature: "second", PValue: 0.5},
		{Feature: "third", PValue: 0.5},
	}
	out := FinalizeAnovaRows(rows)
	if out[0].Feature != "first" || out[1].Feature != "second" || out[2].Feature != "third" {
		t.Errorf("Equal p-values must keep input order, got %v %v %v",
			out[0].Feature, out[1].Feature, out[2].Feature)
	}
}

func TestFinalizeTTestRowsCorrectsOverBatch(t *testing.T) {
	rows := []TTestRow{
		{Feature: "a", Statistic: 5, PValue: 0.004},
		{Feature: "b", Statistic: -1, PValue: 0.6},
	}
	out := FinalizeTTestRows(rows)

	if out[0].PCorrected != 0.008 {
		t.Errorf("Expected corrected p 0.008, got %g", out[0].PCorrected)
	}
	if !out[0].Significant || out[1].Significant {
		t.Error("Classification mismatch after correction")
	}
	if out[1].PCorrected != 1 {
		t.Errorf("Corrected p must clamp at 1, got %g", out[1].PCorrected)
	}
}

func TestBracketSymbol(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.9, "ns"},
		{0.05, "ns"},
		{0.049, "*"},
		{0.01, "*"},
		{0.009, "**"},
		{0.001, "**"},
		{0.0009, "***"},
		{0, "***"},
	}
	for _, test := range tests {
		if got := BracketSymbol(test.p); got != test.want {
			t.Errorf("BracketSymbol(%g) = %q, want %q", test.p, got, test.want)
		}
	}
}
