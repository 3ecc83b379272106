package table

import (
	"fmt"
	"strings"

	"metastats/domain/core"
)

// SampleMatrix holds feature intensities in analysis orientation:
// rows = samples, columns = features. This is the shape the statistics
// stages consume after submission.
type SampleMatrix struct {
	Samples  []string
	Features []core.FeatureKey
	Data     [][]float64 // [sample][feature]
}

// Validate ensures the matrix is internally consistent
func (m *SampleMatrix) Validate() error {
	if len(m.Samples) == 0 || len(m.Features) == 0 {
		return core.ErrInsufficientData
	}
	if len(m.Data) != len(m.Samples) {
		return core.NewValidationError("sample_matrix", "data rows do not match sample count")
	}
	cols := len(m.Features)
	for i, row := range m.Data {
		if len(row) != cols {
			return core.NewValidationError("sample_matrix",
				fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), cols))
		}
	}
	return nil
}

// FeatureIndex returns the column index for a feature key
func (m *SampleMatrix) FeatureIndex(key core.FeatureKey) (int, bool) {
	for j, f := range m.Features {
		if f == key {
			return j, true
		}
	}
	return -1, false
}

// SampleIndex returns the row index for a sample identifier
func (m *SampleMatrix) SampleIndex(sample string) (int, bool) {
	for i, s := range m.Samples {
		if s == sample {
			return i, true
		}
	}
	return -1, false
}

// FeatureColumn returns a copy of one feature's intensities across all samples
func (m *SampleMatrix) FeatureColumn(key core.FeatureKey) ([]float64, bool) {
	j, ok := m.FeatureIndex(key)
	if !ok {
		return nil, false
	}
	col := make([]float64, len(m.Data))
	for i, row := range m.Data {
		col[i] = row[j]
	}
	return col, true
}

// ValuesAt returns the intensities of the feature column at the given row
// indices, in order. Callers resolve sample groups to indices first.
func (m *SampleMatrix) ValuesAt(featureCol int, rows []int) []float64 {
	out := make([]float64, len(rows))
	for k, i := range rows {
		out[k] = m.Data[i][featureCol]
	}
	return out
}

// ContentHash returns a deterministic hash over identifiers and cell values.
func (m *SampleMatrix) ContentHash() core.TableHash {
	var b strings.Builder
	for _, s := range m.Samples {
		b.WriteString(s)
		b.WriteString(",")
	}
	b.WriteString("\n")
	for _, f := range m.Features {
		b.WriteString(f.String())
		b.WriteString(",")
	}
	b.WriteString("\n")
	for _, row := range m.Data {
		core.HashFloatRow(&b, row)
	}
	return core.NewTableHash([]byte(b.String()))
}

// SampleCount returns the number of samples (rows)
func (m *SampleMatrix) SampleCount() int {
	return len(m.Samples)
}

// FeatureCount returns the number of features (columns)
func (m *SampleMatrix) FeatureCount() int {
	return len(m.Features)
}
