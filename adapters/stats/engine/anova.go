package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"metastats/domain/core"
	"metastats/domain/stats"
	"metastats/domain/table"
)

// RunANOVA performs a one-way ANOVA for every feature in the matrix, grouping
// samples by the given metadata attribute. Features that cannot be tested are
// recorded as skips; the batch itself fails only when the attribute yields
// fewer than two non-empty groups, because then no feature can be tested.
func (e *StatsEngine) RunANOVA(ctx context.Context, m *table.SampleMatrix, md *table.Metadata, attribute string) (*stats.AnovaResult, error) {
	started := time.Now()

	groups, err := resolveGroups(m, md, attribute)
	if err != nil {
		return nil, err
	}
	if len(groups) < 2 {
		return nil, fmt.Errorf("attribute %q resolves to %d non-empty groups: %w",
			attribute, len(groups), core.ErrInsufficientData)
	}

	type outcome struct {
		row  stats.AnovaRow
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
			observed := make([][]float64, len(groups))
			for gi, g := range groups {
				observed[gi] = m.ValuesAt(col, g.Rows)
			}

			f, p, code, detail := oneWayANOVA(observed)
			if code != "" {
				skip := stats.NewSkippedFeature(feature, code, detail)
				outcomes[col] = outcome{skip: &skip}
				return
			}
			row, err := stats.NewAnovaRow(feature, p, f)
			if err != nil {
				skip := stats.NewSkippedFeature(feature, stats.SkipNumerical, err.Error())
				outcomes[col] = outcome{skip: &skip}
				return
			}
			outcomes[col] = outcome{row: row}
		}(i)
	}
	wg.Wait()
	if acquireErr != nil {
		return nil, acquireErr
	}

	rows := make([]stats.AnovaRow, 0, len(outcomes))
	var skipped []stats.SkippedFeature
	for _, o := range outcomes {
		if o.skip != nil {
			skipped = append(skipped, *o.skip)
			continue
		}
		rows = append(rows, o.row)
	}

	result := &stats.AnovaResult{
		Attribute:   attribute,
		Rows:        stats.FinalizeAnovaRows(rows),
		Skipped:     skipped,
		TestedCount: len(rows),
		ComputedAt:  core.Now(),
	}
	log.Printf("[StatsEngine] ANOVA attribute=%s groups=%d features=%d tested=%d skipped=%d in %v",
		attribute, len(groups), len(m.Features), len(rows), len(skipped), time.Since(started))
	return result, nil
}

// oneWayANOVA computes the F statistic and upper-tail p-value for k
// independent groups. A non-empty warning code means the feature cannot be
// tested and carries the reason.
func oneWayANOVA(groups [][]float64) (fStat, pValue float64, code stats.WarningCode, detail string) {
	nonEmpty := 0
	n := 0
	for _, g := range groups {
		if len(g) > 0 {
			nonEmpty++
			n += len(g)
		}
	}
	if nonEmpty < 2 {
		return 0, 0, stats.SkipTooFewGroups, fmt.Sprintf("%d non-empty groups", nonEmpty)
	}
	dfWithin := n - nonEmpty
	if dfWithin < 1 {
		return 0, 0, stats.SkipTooFewSamples, "no within-group degrees of freedom"
	}

	var total float64
	for _, g := range groups {
		for _, v := range g {
			total += v
		}
	}
	grand := total / float64(n)

	var ssBetween, ssWithin float64
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		var sum float64
		for _, v := range g {
			sum += v
		}
		mean := sum / float64(len(g))
		d := mean - grand
		ssBetween += float64(len(g)) * d * d
		for _, v := range g {
			ssWithin += (v - mean) * (v - mean)
		}
	}
	if ssWithin == 0 {
		return 0, 0, stats.SkipZeroVariance, "zero within-group variance"
	}

	msBetween := ssBetween / float64(nonEmpty-1)
	msWithin := ssWithin / float64(dfWithin)
	fStat = msBetween / msWithin

	fDist := distuv.F{D1: float64(nonEmpty - 1), D2: float64(dfWithin)}
	pValue = 1 - fDist.CDF(fStat)

	if math.IsNaN(fStat) || math.IsNaN(pValue) {
		return 0, 0, stats.SkipNumerical, "F statistic undefined"
	}
	if pValue < 0 {
		pValue = 0
	}
	if pValue > 1 {
		pValue = 1
	}
	return fStat, pValue, "", ""
}
