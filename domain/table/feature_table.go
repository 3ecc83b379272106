package table

import (
	"fmt"
	"strings"

	"metastats/domain/core"
)

// FeatureTable holds feature intensities in storage orientation:
// rows = features, columns = samples. A cell value of 0 means the feature
// was not detected in that sample.
type FeatureTable struct {
	Features []core.FeatureKey
	Samples  []string
	Data     [][]float64 // [feature][sample]
}

// Validate ensures the table is internally consistent
func (t *FeatureTable) Validate() error {
	if len(t.Features) == 0 || len(t.Samples) == 0 {
		return core.ErrInsufficientData
	}
	if len(t.Data) != len(t.Features) {
		return core.NewValidationError("feature_table", "data rows do not match feature count")
	}
	seen := make(map[core.FeatureKey]bool, len(t.Features))
	for _, f := range t.Features {
		if seen[f] {
			return core.NewValidationError("feature_table", fmt.Sprintf("duplicate feature %s", f))
		}
		seen[f] = true
	}
	cols := len(t.Samples)
	for i, row := range t.Data {
		if len(row) != cols {
			return core.NewValidationError("feature_table",
				fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), cols))
		}
		for j, v := range row {
			if v < 0 {
				return core.NewValidationError("feature_table",
					fmt.Sprintf("negative intensity %g at feature %s sample %s", v, t.Features[i], t.Samples[j]))
			}
		}
	}
	return nil
}

// FeatureIndex returns the row index for a feature key
func (t *FeatureTable) FeatureIndex(key core.FeatureKey) (int, bool) {
	for i, f := range t.Features {
		if f == key {
			return i, true
		}
	}
	return -1, false
}

// SampleIndex returns the column index for a sample identifier
func (t *FeatureTable) SampleIndex(sample string) (int, bool) {
	for j, s := range t.Samples {
		if s == sample {
			return j, true
		}
	}
	return -1, false
}

// Row returns a copy of one feature's intensities across all samples
func (t *FeatureTable) Row(key core.FeatureKey) ([]float64, bool) {
	i, ok := t.FeatureIndex(key)
	if !ok {
		return nil, false
	}
	row := make([]float64, len(t.Data[i]))
	copy(row, t.Data[i])
	return row, true
}

// SampleColumn returns a copy of one sample's intensities across all features
func (t *FeatureTable) SampleColumn(sample string) ([]float64, bool) {
	j, ok := t.SampleIndex(sample)
	if !ok {
		return nil, false
	}
	col := make([]float64, len(t.Features))
	for i := range t.Data {
		col[i] = t.Data[i][j]
	}
	return col, true
}

// SelectSamples returns a new table restricted to the given samples, in the
// given order. Unknown samples are skipped.
func (t *FeatureTable) SelectSamples(samples []string) FeatureTable {
	indices := make([]int, 0, len(samples))
	kept := make([]string, 0, len(samples))
	for _, s := range samples {
		if j, ok := t.SampleIndex(s); ok {
			indices = append(indices, j)
			kept = append(kept, s)
		}
	}

	out := FeatureTable{
		Features: append([]core.FeatureKey(nil), t.Features...),
		Samples:  kept,
		Data:     make([][]float64, len(t.Data)),
	}
	for i, row := range t.Data {
		newRow := make([]float64, len(indices))
		for k, j := range indices {
			newRow[k] = row[j]
		}
		out.Data[i] = newRow
	}
	return out
}

// SelectFeatures returns a new table restricted to the given features, in the
// given order. Unknown features are skipped.
func (t *FeatureTable) SelectFeatures(keys []core.FeatureKey) FeatureTable {
	out := FeatureTable{
		Samples: append([]string(nil), t.Samples...),
	}
	for _, key := range keys {
		if i, ok := t.FeatureIndex(key); ok {
			out.Features = append(out.Features, key)
			row := make([]float64, len(t.Data[i]))
			copy(row, t.Data[i])
			out.Data = append(out.Data, row)
		}
	}
	return out
}

// Clone returns a deep copy
func (t *FeatureTable) Clone() FeatureTable {
	out := FeatureTable{
		Features: append([]core.FeatureKey(nil), t.Features...),
		Samples:  append([]string(nil), t.Samples...),
		Data:     make([][]float64, len(t.Data)),
	}
	for i, row := range t.Data {
		out.Data[i] = append([]float64(nil), row...)
	}
	return out
}

// Transposed returns the analysis orientation: rows = samples, columns = features.
func (t *FeatureTable) Transposed() SampleMatrix {
	data := make([][]float64, len(t.Samples))
	for j := range t.Samples {
		row := make([]float64, len(t.Features))
		for i := range t.Features {
			row[i] = t.Data[i][j]
		}
		data[j] = row
	}
	return SampleMatrix{
		Samples:  append([]string(nil), t.Samples...),
		Features: append([]core.FeatureKey(nil), t.Features...),
		Data:     data,
	}
}

// ZeroFraction returns the share of cells equal to zero across the whole table.
func (t *FeatureTable) ZeroFraction() float64 {
	total := len(t.Features) * len(t.Samples)
	if total == 0 {
		return 0
	}
	zeros := 0
	for _, row := range t.Data {
		for _, v := range row {
			if v == 0 {
				zeros++
			}
		}
	}
	return float64(zeros) / float64(total)
}

// RowZeroFractions returns, per feature, the share of samples where the
// feature was not detected. Computed before imputation it is the missingness
// profile shown to the user.
func (t *FeatureTable) RowZeroFractions() []float64 {
	out := make([]float64, len(t.Data))
	if len(t.Samples) == 0 {
		return out
	}
	for i, row := range t.Data {
		zeros := 0
		for _, v := range row {
			if v == 0 {
				zeros++
			}
		}
		out[i] = float64(zeros) / float64(len(row))
	}
	return out
}

// ContentHash returns a deterministic hash over identifiers and cell values.
// Used as the table part of memoization fingerprints.
func (t *FeatureTable) ContentHash() core.TableHash {
	var b strings.Builder
	for _, f := range t.Features {
		b.WriteString(f.String())
		b.WriteString(",")
	}
	b.WriteString("\n")
	for _, s := range t.Samples {
		b.WriteString(s)
		b.WriteString(",")
	}
	b.WriteString("\n")
	for _, row := range t.Data {
		core.HashFloatRow(&b, row)
	}
	return core.NewTableHash([]byte(b.String()))
}

// FeatureCount returns the number of features (rows)
func (t *FeatureTable) FeatureCount() int {
	return len(t.Features)
}

// SampleCount returns the number of samples (columns)
func (t *FeatureTable) SampleCount() int {
	return len(t.Samples)
}
