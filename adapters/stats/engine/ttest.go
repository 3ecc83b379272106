package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"metastats/domain/core"
	"metastats/domain/stats"
	"metastats/domain/table"
)

// RunTTest compares two attribute levels for every feature. The default is
// Welch's unequal-variance test; with paired set, observations are matched by
// position within each level and tested as paired differences. Paired mode
// requires equal group sizes, and since group sizes are fixed by the metadata
// the mismatch aborts the whole batch rather than skipping every feature.
func (e *StatsEngine) RunTTest(ctx context.Context, m *table.SampleMatrix, md *table.Metadata, attribute, groupA, groupB string, paired bool) (*stats.TTestResult, error) {
	started := time.Now()

	if groupA == groupB {
		return nil, core.NewValidationError("groups", "comparison needs two distinct levels")
	}
	groups, err := resolveGroups(m, md, attribute)
	if err != nil {
		return nil, err
	}
	rowsA := levelRows(groups, groupA)
	rowsB := levelRows(groups, groupB)
	if len(rowsA) == 0 || len(rowsB) == 0 {
		return nil, fmt.Errorf("attribute %q has no observations for level %q or %q: %w",
			attribute, groupA, groupB, core.ErrInsufficientData)
	}
	if paired && len(rowsA) != len(rowsB) {
		return nil, core.NewUnequalGroupSizeError(groupA, len(rowsA), groupB, len(rowsB))
	}

	type outcome struct {
		row  stats.TTestRow
		skip *stats.SkippedFeature
	}
	outcomes := make([]outcome, len(m.Features))

	var wg sync.WaitGroup
	var acquireErr error
	for i := range m.Features {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func(col int) {
			defer e.sem.Release(1)
			defer wg.Done()

			feature := m.Features[col]
			a := m.ValuesAt(col, rowsA)
			b := m.ValuesAt(col, rowsB)

			var t, p float64
			var code stats.WarningCode
			var detail string
			if paired {
				t, p, code, detail = pairedTTest(a, b)
			} else {
				t, p, code, detail = welchTTest(a, b)
			}
			if code != "" {
				skip := stats.NewSkippedFeature(feature, code, detail)
				outcomes[col] = outcome{skip: &skip}
				return
			}
			outcomes[col] = outcome{row: stats.TTestRow{
				Feature:   feature,
				Statistic: t,
				PValue:    p,
				Attribute: attribute,
				GroupA:    groupA,
				GroupB:    groupB,
			}}
		}(i)
	}
	wg.Wait()
	if acquireErr != nil {
		return nil, acquireErr
	}

	rows := make([]stats.TTestRow, 0, len(outcomes))
	var skipped []stats.SkippedFeature
	for _, o := range outcomes {
		if o.skip != nil {
			skipped = append(skipped, *o.skip)
			continue
		}
		rows = append(rows, o.row)
	}

	result := &stats.TTestResult{
		Attribute:   attribute,
		GroupA:      groupA,
		GroupB:      groupB,
		Paired:      paired,
		Rows:        stats.FinalizeTTestRows(rows),
		Skipped:     skipped,
		TestedCount: len(rows),
		ComputedAt:  core.Now(),
	}
	log.Printf("[StatsEngine] t-test attribute=%s %s vs %s paired=%t features=%d tested=%d skipped=%d in %v",
		attribute, groupA, groupB, paired, len(m.Features), len(rows), len(skipped), time.Since(started))
	return result, nil
}

// welchTTest computes Welch's unequal-variance t-test between two groups,
// with Welch-Satterthwaite degrees of freedom.
func welchTTest(a, b []float64) (t, p float64, code stats.WarningCode, detail string) {
	if len(a) < 2 || len(b) < 2 {
		return 0, 0, stats.SkipTooFewSamples, fmt.Sprintf("group sizes %d and %d", len(a), len(b))
	}
	meanA, _ := mstats.Mean(a)
	meanB, _ := mstats.Mean(b)
	varA, _ := mstats.SampleVariance(a)
	varB, _ := mstats.SampleVariance(b)

	na, nb := float64(len(a)), float64(len(b))
	seSq := varA/na + varB/nb
	if seSq == 0 {
		return 0, 0, stats.SkipZeroVariance, "zero variance in both groups"
	}

	t = (meanA - meanB) / math.Sqrt(seSq)
	df := seSq * seSq / ((varA/na)*(varA/na)/(na-1) + (varB/nb)*(varB/nb)/(nb-1))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * tDist.CDF(-math.Abs(t))
	if math.IsNaN(t) || math.IsNaN(p) {
		return 0, 0, stats.SkipNumerical, "t statistic undefined"
	}
	if p > 1 {
		p = 1
	}
	return t, p, "", ""
}

// pairedTTest computes a paired t-test over index-aligned observations.
// Callers verify equal lengths before the sweep; pairing is positional.
func pairedTTest(a, b []float64) (t, p float64, code stats.WarningCode, detail string) {
	n := len(a)
	if n != len(b) {
		return 0, 0, stats.SkipNumerical, "unaligned pair vectors"
	}
	if n < 2 {
		return 0, 0, stats.SkipTooFewSamples, fmt.Sprintf("%d pairs", n)
	}

	diffs := make([]float64, n)
	for i := range a {
		diffs[i] = a[i] - b[i]
	}
	meanD, _ := mstats.Mean(diffs)
	sdD, _ := mstats.StandardDeviationSample(diffs)
	if sdD == 0 {
		return 0, 0, stats.SkipZeroVariance, "constant pairwise differences"
	}

	t = meanD / (sdD / math.Sqrt(float64(n)))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	p = 2 * tDist.CDF(-math.Abs(t))
	if math.IsNaN(p) {
		return 0, 0, stats.SkipNumerical, "t statistic undefined"
	}
	if p > 1 {
		p = 1
	}
	return t, p, "", ""
}
