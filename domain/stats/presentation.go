package stats

import (
	"math"

	"metastats/domain/core"
	"metastats/domain/table"
)

// pFloor keeps -log(p) finite when a p-value underflows to zero.
const pFloor = 1e-300

// volcanoLabelCount is how many top features get text labels.
const volcanoLabelCount = 5

// ScatterPoint is one chart coordinate with an optional annotation label.
type ScatterPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// VolcanoSeries splits chart points into significant and non-significant
// series for a significance scatter.
type VolcanoSeries struct {
	Significant []ScatterPoint `json:"significant"`
	Rest        []ScatterPoint `json:"rest"`
}

func negLog(p float64) float64 {
	if p < pFloor {
		p = pFloor
	}
	return -math.Log(p)
}

// AnovaVolcano shapes finalized ANOVA rows into (log F, -log p) series.
// Rows arrive sorted by p, so the first points of the significant series are
// the strongest hits; the top five carry labels.
func AnovaVolcano(rows []AnovaRow) VolcanoSeries {
	var series VolcanoSeries
	for _, row := range rows {
		pt := ScatterPoint{X: math.Log(row.FStatistic), Y: negLog(row.PValue)}
		if row.Significant {
			if len(series.Significant) < volcanoLabelCount {
				pt.Label = row.Feature.String()
			}
			series.Significant = append(series.Significant, pt)
		} else {
			series.Rest = append(series.Rest, pt)
		}
	}
	return series
}

// TukeyVolcano shapes finalized Tukey rows into (mean difference, -log p)
// series.
func TukeyVolcano(rows []TukeyRow) VolcanoSeries {
	var series VolcanoSeries
	for _, row := range rows {
		pt := ScatterPoint{X: row.Diff, Y: negLog(row.PValue)}
		if row.Significant {
			if len(series.Significant) < volcanoLabelCount {
				pt.Label = row.Feature.String()
			}
			series.Significant = append(series.Significant, pt)
		} else {
			series.Rest = append(series.Rest, pt)
		}
	}
	return series
}

// TTestVolcano shapes finalized t-test rows into (statistic, -log corrected p)
// series.
func TTestVolcano(rows []TTestRow) VolcanoSeries {
	var series VolcanoSeries
	for _, row := range rows {
		pt := ScatterPoint{X: row.Statistic, Y: negLog(row.PCorrected)}
		if row.Significant {
			if len(series.Significant) < volcanoLabelCount {
				pt.Label = row.Feature.String()
			}
			series.Significant = append(series.Significant, pt)
		} else {
			series.Rest = append(series.Rest, pt)
		}
	}
	return series
}

// BracketSymbol maps a corrected p-value onto the boxplot significance
// bracket annotation.
func BracketSymbol(correctedP float64) string {
	switch {
	case correctedP >= 0.05:
		return "ns"
	case correctedP >= 0.01:
		return "*"
	case correctedP >= 0.001:
		return "**"
	default:
		return "***"
	}
}

// BoxGroup is one group's raw values for a boxplot.
type BoxGroup struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// BoxplotData is everything needed to draw one feature's per-group boxplot
// with its significance bracket.
type BoxplotData struct {
	Feature    core.FeatureKey `json:"metabolite"`
	Groups     []BoxGroup      `json:"groups"`
	CorrectedP float64         `json:"p_bonferroni"`
	Symbol     string          `json:"symbol"`
}

// FeatureGroupValues gathers one feature's intensities per attribute level,
// levels in first-appearance order. Reshaping only; no statistics.
func FeatureGroupValues(m table.SampleMatrix, md table.Metadata, attr string, feature core.FeatureKey) ([]BoxGroup, error) {
	col, ok := m.FeatureColumn(feature)
	if !ok {
		return nil, core.NewNotFoundError("feature", feature.String())
	}
	levels, err := md.Levels(attr)
	if err != nil {
		return nil, err
	}
	values, err := md.Column(attr)
	if err != nil {
		return nil, err
	}

	rows := make(map[string][]float64, len(levels))
	for i, sample := range md.Samples {
		idx, ok := m.SampleIndex(sample)
		if !ok {
			continue
		}
		rows[values[i]] = append(rows[values[i]], col[idx])
	}

	groups := make([]BoxGroup, 0, len(levels))
	for _, level := range levels {
		groups = append(groups, BoxGroup{Label: level, Values: rows[level]})
	}
	return groups, nil
}

// NewBoxplotData attaches the significance bracket to gathered group values.
func NewBoxplotData(feature core.FeatureKey, groups []BoxGroup, correctedP float64) BoxplotData {
	return BoxplotData{
		Feature:    feature,
		Groups:     groups,
		CorrectedP: correctedP,
		Symbol:     BracketSymbol(correctedP),
	}
}
