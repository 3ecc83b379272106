package stats

import (
	"sort"
)

// SignificanceAlpha is the fixed threshold applied to corrected p-values.
const SignificanceAlpha = 0.05

// Bonferroni corrects a batch of p-values: corrected_i = min(1, p_i * n)
// with n the size of the exact batch passed. Pure function; the input is
// never modified, so repeated application to raw values stays idempotent.
func Bonferroni(ps []float64) []float64 {
	n := float64(len(ps))
	out := make([]float64, len(ps))
	for i, p := range ps {
		corrected := p * n
		if corrected > 1 {
			corrected = 1
		}
		out[i] = corrected
	}
	return out
}

// IsSignificant applies the fixed threshold to a corrected p-value.
// The boundary is strict: exactly 0.05 is not significant.
func IsSignificant(corrected float64) bool {
	return corrected < SignificanceAlpha
}

// FinalizeAnovaRows applies Bonferroni over the batch, classifies
// significance and sorts ascending by raw p-value (stable, ties keep input
// order). Returns a new slice.
func FinalizeAnovaRows(rows []AnovaRow) []AnovaRow {
	ps := make([]float64, len(rows))
	for i, row := range rows {
		ps[i] = row.PValue
	}
	corrected := Bonferroni(ps)

	out := make([]AnovaRow, len(rows))
	for i, row := range rows {
		row.PCorrected = corrected[i]
		row.Significant = IsSignificant(corrected[i])
		out[i] = row
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PValue < out[j].PValue
	})
	return out
}

// FinalizeTukeyRows corrects the reduced Tukey batch independently of the
// ANOVA batch it came from.
func FinalizeTukeyRows(rows []TukeyRow) []TukeyRow {
	ps := make([]float64, len(rows))
	for i, row := range rows {
		ps[i] = row.PValue
	}
	corrected := Bonferroni(ps)

	out := make([]TukeyRow, len(rows))
	for i, row := range rows {
		row.PCorrected = corrected[i]
		row.Significant = IsSignificant(corrected[i])
		out[i] = row
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PValue < out[j].PValue
	})
	return out
}

// FinalizeTTestRows corrects a t-test batch over all tested features.
func FinalizeTTestRows(rows []TTestRow) []TTestRow {
	ps := make([]float64, len(rows))
	for i, row := range rows {
		ps[i] = row.PValue
	}
	corrected := Bonferroni(ps)

	out := make([]TTestRow, len(rows))
	for i, row := range rows {
		row.PCorrected = corrected[i]
		row.Significant = IsSignificant(corrected[i])
		out[i] = row
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PValue < out[j].PValue
	})
	return out
}
