package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"metastats/domain/core"
	"metastats/domain/stats"
	"metastats/domain/table"
)

// RunTukey runs the Tukey HSD contrast between two attribute levels for the
// given features, normally the ANOVA-significant set. Samples belonging to any
// other level are excluded before a single statistic is computed, so the
// contrast sees a pure two-group design.
func (e *StatsEngine) RunTukey(ctx context.Context, m *table.SampleMatrix, md *table.Metadata, attribute string, levels [2]string, features []core.FeatureKey) (*stats.TukeyResult, error) {
	started := time.Now()

	if levels[0] == levels[1] {
		return nil, core.NewValidationError("levels", "contrast needs two distinct levels")
	}
	groups, err := resolveGroups(m, md, attribute)
	if err != nil {
		return nil, err
	}
	rowsA := levelRows(groups, levels[0])
	rowsB := levelRows(groups, levels[1])
	if len(rowsA) == 0 || len(rowsB) == 0 {
		return nil, fmt.Errorf("attribute %q has no observations for level %q or %q: %w",
			attribute, levels[0], levels[1], core.ErrInsufficientData)
	}

	rows := make([]stats.TukeyRow, 0, len(features))
	var skipped []stats.SkippedFeature
	for _, feature := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		col, ok := m.FeatureIndex(feature)
		if !ok {
			skipped = append(skipped, stats.NewSkippedFeature(feature, stats.SkipNotInTable, "not present in matrix"))
			continue
		}
		a := m.ValuesAt(col, rowsA)
		b := m.ValuesAt(col, rowsB)

		diff, meanA, meanB, p, code, detail := tukeyTwoLevel(a, b)
		if code != "" {
			skipped = append(skipped, stats.NewSkippedFeature(feature, code, detail))
			continue
		}
		rows = append(rows, stats.TukeyRow{
			Feature: feature,
			Diff:    diff,
			PValue:  p,
			GroupA:  levels[0],
			GroupB:  levels[1],
			MeanA:   meanA,
			MeanB:   meanB,
		})
	}

	result := &stats.TukeyResult{
		Attribute:   attribute,
		Levels:      levels,
		Rows:        stats.FinalizeTukeyRows(rows),
		Skipped:     skipped,
		TestedCount: len(rows),
		ComputedAt:  core.Now(),
	}
	log.Printf("[StatsEngine] Tukey attribute=%s levels=%s|%s features=%d tested=%d skipped=%d in %v",
		attribute, levels[0], levels[1], len(features), len(rows), len(skipped), time.Since(started))
	return result, nil
}

// tukeyTwoLevel computes the Tukey HSD contrast for a two-level design. With
// exactly two groups the studentized range statistic collapses to q =
// sqrt(2)*|t| over the pooled t, so the p-value comes straight from the t
// distribution with nA+nB-2 degrees of freedom.
func tukeyTwoLevel(a, b []float64) (diff, meanA, meanB, pValue float64, code stats.WarningCode, detail string) {
	na, nb := len(a), len(b)
	if na == 0 || nb == 0 {
		return 0, 0, 0, 0, stats.SkipTooFewGroups, "empty level"
	}
	df := na + nb - 2
	if df < 1 {
		return 0, 0, 0, 0, stats.SkipTooFewSamples, fmt.Sprintf("%d observations across both levels", na+nb)
	}

	meanA, _ = mstats.Mean(a)
	meanB, _ = mstats.Mean(b)

	var ssWithin float64
	for _, v := range a {
		ssWithin += (v - meanA) * (v - meanA)
	}
	for _, v := range b {
		ssWithin += (v - meanB) * (v - meanB)
	}
	if ssWithin == 0 {
		return 0, 0, 0, 0, stats.SkipZeroVariance, "zero within-level variance"
	}

	mse := ssWithin / float64(df)
	se := math.Sqrt(mse * (1/float64(na) + 1/float64(nb)))
	diff = meanA - meanB
	t := diff / se

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	pValue = 2 * tDist.CDF(-math.Abs(t))
	if math.IsNaN(pValue) {
		return 0, 0, 0, 0, stats.SkipNumerical, "t statistic undefined"
	}
	if pValue > 1 {
		pValue = 1
	}
	return diff, meanA, meanB, pValue, "", ""
}
