package table

import (
	"fmt"
	"strconv"
	"strings"

	"metastats/domain/core"
)

// RawTable is the parsed, untyped form of an uploaded file: a header row and
// string cells. Readers produce it; the cleanup functions below turn it into
// typed tables.
type RawTable struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// PeakAreaSuffix marks sample columns in feature quantification exports.
const PeakAreaSuffix = " Peak area"

// MetadataKeyColumn is the sample-identifying column of a metadata upload.
const MetadataKeyColumn = "filename"

// FeatureIDColumn is the feature-identifying column of a quantification upload.
const FeatureIDColumn = "row ID"

// annotation headers embedded in quantification exports that are not samples
var annotationHeaders = map[string]bool{
	"row m/z":            true,
	"row retention time": true,
	"row charge":         true,
	"m/z":                true,
	"rt":                 true,
	"retention time":     true,
	"charge":             true,
}

// StripRawFileExtension removes mass-spec raw-file extensions from a sample
// name so feature-table columns and metadata rows share one identifier form.
func StripRawFileExtension(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	for _, ext := range []string{".mzml", ".mzxml", ".raw", ".d"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// CleanFeatureTable turns a raw quantification upload into a FeatureTable:
// the feature-identifier column becomes the row index, annotation columns are
// dropped, and sample columns lose the peak-area suffix and file extensions.
func CleanFeatureTable(raw RawTable) (FeatureTable, error) {
	if len(raw.Headers) == 0 || len(raw.Rows) == 0 {
		return FeatureTable{}, core.NewValidationError("feature_table", "uploaded table is empty")
	}

	idCol := 0
	for j, h := range raw.Headers {
		if strings.EqualFold(strings.TrimSpace(h), FeatureIDColumn) {
			idCol = j
			break
		}
	}

	// Prefer the explicit peak-area convention; fall back to "everything that
	// is not the id or a known annotation column".
	type sampleCol struct {
		index int
		name  string
	}
	var sampleCols []sampleCol
	for j, h := range raw.Headers {
		h = strings.TrimSpace(h)
		if strings.HasSuffix(h, PeakAreaSuffix) {
			name := StripRawFileExtension(strings.TrimSuffix(h, PeakAreaSuffix))
			sampleCols = append(sampleCols, sampleCol{index: j, name: name})
		}
	}
	if len(sampleCols) == 0 {
		for j, h := range raw.Headers {
			h = strings.TrimSpace(h)
			if j == idCol || annotationHeaders[strings.ToLower(h)] {
				continue
			}
			sampleCols = append(sampleCols, sampleCol{index: j, name: StripRawFileExtension(h)})
		}
	}
	if len(sampleCols) == 0 {
		return FeatureTable{}, core.NewValidationError("feature_table", "no sample columns found")
	}

	ft := FeatureTable{
		Samples: make([]string, len(sampleCols)),
	}
	for k, c := range sampleCols {
		ft.Samples[k] = c.name
	}

	for rowNum, row := range raw.Rows {
		if len(row) == 0 {
			continue
		}
		key := ""
		if idCol < len(row) {
			key = strings.TrimSpace(row[idCol])
		}
		if key == "" {
			return FeatureTable{}, core.NewValidationError("feature_table",
				fmt.Sprintf("row %d has no feature identifier", rowNum+1))
		}

		values := make([]float64, len(sampleCols))
		for k, c := range sampleCols {
			cell := ""
			if c.index < len(row) {
				cell = strings.TrimSpace(row[c.index])
			}
			if cell == "" {
				values[k] = 0
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return FeatureTable{}, core.NewValidationError("feature_table",
					fmt.Sprintf("feature %s sample %s: %q is not numeric", key, c.name, cell))
			}
			values[k] = v
		}

		ft.Features = append(ft.Features, core.FeatureKey(key))
		ft.Data = append(ft.Data, values)
	}

	if err := ft.Validate(); err != nil {
		return FeatureTable{}, err
	}
	return ft, nil
}

// CleanMetadata turns a raw metadata upload into a Metadata table: the
// filename key column becomes the sample index (extensions stripped) and
// columns that carry no grouping information are dropped.
func CleanMetadata(raw RawTable) (Metadata, error) {
	if len(raw.Headers) == 0 || len(raw.Rows) == 0 {
		return Metadata{}, core.NewValidationError("metadata", "uploaded table is empty")
	}

	keyCol := 0
	for j, h := range raw.Headers {
		if strings.EqualFold(strings.TrimSpace(h), MetadataKeyColumn) {
			keyCol = j
			break
		}
	}

	samples := make([]string, 0, len(raw.Rows))
	for rowNum, row := range raw.Rows {
		cell := ""
		if keyCol < len(row) {
			cell = strings.TrimSpace(row[keyCol])
		}
		if cell == "" {
			return Metadata{}, core.NewValidationError("metadata",
				fmt.Sprintf("row %d has no sample identifier", rowNum+1))
		}
		samples = append(samples, StripRawFileExtension(cell))
	}

	md := Metadata{
		Samples: samples,
		Values:  make([][]string, len(samples)),
	}
	for j, h := range raw.Headers {
		if j == keyCol {
			continue
		}
		name := strings.TrimSpace(h)
		col := make([]string, len(raw.Rows))
		distinct := make(map[string]bool)
		duplicatesKey := true
		for i, row := range raw.Rows {
			cell := ""
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			col[i] = cell
			distinct[cell] = true
			if StripRawFileExtension(cell) != samples[i] {
				duplicatesKey = false
			}
		}
		// Columns with a single value (or none) cannot partition samples;
		// a second copy of the key column adds nothing either.
		if len(distinct) <= 1 || duplicatesKey {
			continue
		}
		md.Attributes = append(md.Attributes, name)
		for i := range md.Samples {
			md.Values[i] = append(md.Values[i], col[i])
		}
	}

	if err := md.Validate(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// Reconcile restricts both tables to their common sample set, ordered by the
// feature table's column order. An empty intersection is a schema mismatch.
// Inputs are not mutated.
func Reconcile(md Metadata, ft FeatureTable) (Metadata, FeatureTable, error) {
	inMD := make(map[string]bool, len(md.Samples))
	for _, s := range md.Samples {
		inMD[s] = true
	}

	var common []string
	for _, s := range ft.Samples {
		if inMD[s] {
			common = append(common, s)
		}
	}
	if len(common) == 0 {
		return Metadata{}, FeatureTable{}, core.NewSchemaMismatchError(len(ft.Samples), len(md.Samples))
	}

	return md.SelectSamples(common), ft.SelectSamples(common), nil
}
