package engine

import (
	"math"

	mstats "github.com/montanaflynn/stats"

	"metastats/domain/core"
	"metastats/domain/table"
)

// GroupSummary describes one group's intensity distribution for a feature.
type GroupSummary struct {
	Level  string  `json:"level"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}

// DescribeFeature summarizes one feature's intensities per attribute group,
// in metadata level order.
func (e *StatsEngine) DescribeFeature(m *table.SampleMatrix, md *table.Metadata, attribute string, feature core.FeatureKey) ([]GroupSummary, error) {
	col, ok := m.FeatureIndex(feature)
	if !ok {
		return nil, core.NewNotFoundError("feature", feature.String())
	}
	groups, err := resolveGroups(m, md, attribute)
	if err != nil {
		return nil, err
	}
	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, summarizeGroup(g.Level, m.ValuesAt(col, g.Rows)))
	}
	return out, nil
}

func summarizeGroup(level string, values []float64) GroupSummary {
	s := GroupSummary{Level: level, N: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Mean, _ = mstats.Mean(values)
	s.Median, _ = mstats.Median(values)
	s.Min, _ = mstats.Min(values)
	s.Max, _ = mstats.Max(values)
	// Percentile needs enough observations; whiskers stand in below that.
	s.Q1, s.Q3 = s.Min, s.Max
	if q1, err := mstats.Percentile(values, 25); err == nil && !math.IsNaN(q1) {
		s.Q1 = q1
	}
	if q3, err := mstats.Percentile(values, 75); err == nil && !math.IsNaN(q3) {
		s.Q3 = q3
	}
	if len(values) > 1 {
		s.SD, _ = mstats.StandardDeviationSample(values)
	}
	return s
}
