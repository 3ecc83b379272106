package prepare

import (
	"fmt"
	"math"

	"metastats/domain/core"
	"metastats/domain/table"

	"github.com/montanaflynn/stats"
)

// DefaultBlankCutoff is the recommended blank-ratio cutoff.
const DefaultBlankCutoff = 0.3

// BlankFilterResult reports the outcome of blank-feature removal.
type BlankFilterResult struct {
	Filtered        table.FeatureTable
	BackgroundCount int
	RealCount       int
	// Background lists the removed feature keys for display.
	Background []core.FeatureKey
}

// detectedMean averages the detected (nonzero) intensities of a row. A zero
// cell means "not detected" and never enters the mean. Returns 0 when the
// feature was not detected anywhere in the row.
func detectedMean(row []float64) float64 {
	detected := make([]float64, 0, len(row))
	for _, v := range row {
		if v != 0 {
			detected = append(detected, v)
		}
	}
	if len(detected) == 0 {
		return 0
	}
	m, err := stats.Mean(detected)
	if err != nil {
		return 0
	}
	return m
}

// BlankRatio computes mean(blank)/mean(sample) for one feature. Both means
// zero yields 0 (feature absent everywhere, not background); a blank signal
// with no sample signal yields +Inf (always background).
func BlankRatio(blankRow, sampleRow []float64) float64 {
	blankMean := detectedMean(blankRow)
	sampleMean := detectedMean(sampleRow)

	if sampleMean == 0 {
		if blankMean == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return blankMean / sampleMean
}

// RemoveBlankFeatures splits features into background and real by comparing
// each feature's mean intensity in the blank group against the sample group.
// A feature is background when ratio >= cutoff. The filtered table keeps the
// full original sample set, not just the selection subtables. Inputs are not
// mutated.
func RemoveBlankFeatures(ft table.FeatureTable, blankSamples, realSamples []string, cutoff float64) (BlankFilterResult, error) {
	if cutoff <= 0 || cutoff > 1 {
		return BlankFilterResult{}, fmt.Errorf("%w: got %g", core.ErrInvalidCutoff, cutoff)
	}

	blanks := ft.SelectSamples(blankSamples)
	samples := ft.SelectSamples(realSamples)
	if blanks.SampleCount() == 0 {
		return BlankFilterResult{}, core.NewValidationError("blank_filter", "no blank samples selected")
	}
	if samples.SampleCount() == 0 {
		return BlankFilterResult{}, core.NewValidationError("blank_filter", "no samples selected")
	}

	result := BlankFilterResult{}
	real := make([]core.FeatureKey, 0, ft.FeatureCount())
	for i, key := range ft.Features {
		ratio := BlankRatio(blanks.Data[i], samples.Data[i])
		if ratio >= cutoff {
			result.Background = append(result.Background, key)
			continue
		}
		real = append(real, key)
	}

	result.Filtered = ft.SelectFeatures(real)
	result.BackgroundCount = len(result.Background)
	result.RealCount = len(real)
	return result, nil
}
