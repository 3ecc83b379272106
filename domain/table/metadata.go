package table

import (
	"fmt"
	"strings"

	"metastats/domain/core"
)

// AttributePrefix marks metadata columns that carry grouping attributes in
// the upload convention. The prefix is kept internally and stripped only for
// display.
const AttributePrefix = "ATTRIBUTE_"

// Metadata holds per-sample attributes: rows = samples, columns = named
// categorical attributes. Each attribute partitions the samples into groups.
type Metadata struct {
	Samples    []string
	Attributes []string
	Values     [][]string // [sample][attribute]
}

// LevelCount pairs one attribute value with the number of samples carrying it.
type LevelCount struct {
	Level string
	Count int
}

// Validate ensures the table is internally consistent
func (m *Metadata) Validate() error {
	if len(m.Samples) == 0 {
		return core.ErrInsufficientData
	}
	if len(m.Values) != len(m.Samples) {
		return core.NewValidationError("metadata", "value rows do not match sample count")
	}
	seen := make(map[string]bool, len(m.Samples))
	for _, s := range m.Samples {
		if seen[s] {
			return core.NewValidationError("metadata", fmt.Sprintf("duplicate sample %s", s))
		}
		seen[s] = true
	}
	cols := len(m.Attributes)
	for i, row := range m.Values {
		if len(row) != cols {
			return core.NewValidationError("metadata",
				fmt.Sprintf("row %d has %d values, expected %d", i, len(row), cols))
		}
	}
	return nil
}

// AttributeIndex returns the column index for an attribute name
func (m *Metadata) AttributeIndex(name string) (int, bool) {
	for j, a := range m.Attributes {
		if a == name {
			return j, true
		}
	}
	return -1, false
}

// Column returns a copy of one attribute's values across all samples
func (m *Metadata) Column(attr string) ([]string, error) {
	j, ok := m.AttributeIndex(attr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAttributeNotFound, attr)
	}
	col := make([]string, len(m.Values))
	for i, row := range m.Values {
		col[i] = row[j]
	}
	return col, nil
}

// Levels returns an attribute's distinct values in first-appearance order.
func (m *Metadata) Levels(attr string) ([]string, error) {
	col, err := m.Column(attr)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var levels []string
	for _, v := range col {
		if !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	return levels, nil
}

// LevelCounts returns each level of an attribute with its sample count, in
// first-appearance order. Backs the sample/blank selection tables in the UI.
func (m *Metadata) LevelCounts(attr string) ([]LevelCount, error) {
	col, err := m.Column(attr)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var counts []LevelCount
	for _, v := range col {
		if i, ok := index[v]; ok {
			counts[i].Count++
			continue
		}
		index[v] = len(counts)
		counts = append(counts, LevelCount{Level: v, Count: 1})
	}
	return counts, nil
}

// SamplesWithValue returns the samples whose attribute equals value, in row order.
func (m *Metadata) SamplesWithValue(attr, value string) ([]string, error) {
	col, err := m.Column(attr)
	if err != nil {
		return nil, err
	}
	var samples []string
	for i, v := range col {
		if v == value {
			samples = append(samples, m.Samples[i])
		}
	}
	return samples, nil
}

// GroupSamples partitions samples by an attribute: level -> sample identifiers
// in row order.
func (m *Metadata) GroupSamples(attr string) (map[string][]string, error) {
	col, err := m.Column(attr)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]string)
	for i, v := range col {
		groups[v] = append(groups[v], m.Samples[i])
	}
	return groups, nil
}

// SelectSamples returns new metadata restricted to the given samples, in the
// given order. Unknown samples are skipped.
func (m *Metadata) SelectSamples(samples []string) Metadata {
	index := make(map[string]int, len(m.Samples))
	for i, s := range m.Samples {
		index[s] = i
	}

	out := Metadata{
		Attributes: append([]string(nil), m.Attributes...),
	}
	for _, s := range samples {
		i, ok := index[s]
		if !ok {
			continue
		}
		out.Samples = append(out.Samples, s)
		out.Values = append(out.Values, append([]string(nil), m.Values[i]...))
	}
	return out
}

// BinaryAttributes returns the attributes with exactly two levels. These are
// the candidates offered for two-group t-tests.
func (m *Metadata) BinaryAttributes() []string {
	var out []string
	for _, attr := range m.Attributes {
		levels, err := m.Levels(attr)
		if err == nil && len(levels) == 2 {
			out = append(out, attr)
		}
	}
	return out
}

// DisplayName strips the grouping-attribute prefix for presentation.
func DisplayName(attr string) string {
	return strings.TrimPrefix(attr, AttributePrefix)
}

// ContentHash returns a deterministic hash over identifiers and values.
func (m *Metadata) ContentHash() core.TableHash {
	var b strings.Builder
	for _, s := range m.Samples {
		b.WriteString(s)
		b.WriteString(",")
	}
	b.WriteString("\n")
	for _, a := range m.Attributes {
		b.WriteString(a)
		b.WriteString(",")
	}
	b.WriteString("\n")
	for _, row := range m.Values {
		for _, v := range row {
			b.WriteString(v)
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	return core.NewTableHash([]byte(b.String()))
}

// SampleCount returns the number of samples (rows)
func (m *Metadata) SampleCount() int {
	return len(m.Samples)
}
