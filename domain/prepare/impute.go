package prepare

import (
	"math/rand"

	"metastats/domain/core"
	"metastats/domain/table"
)

// LODCutoff derives the limit of detection for a feature table: the smallest
// nonzero intensity observed anywhere. Values below it are considered
// indistinguishable from noise, so imputation draws stay below it.
func LODCutoff(ft table.FeatureTable) (float64, error) {
	if ft.FeatureCount() == 0 || ft.SampleCount() == 0 {
		return 0, core.NewDegenerateInputError("empty feature table")
	}

	lod := 0.0
	for _, row := range ft.Data {
		for _, v := range row {
			if v > 0 && (lod == 0 || v < lod) {
				lod = v
			}
		}
	}
	if lod == 0 {
		return 0, core.NewDegenerateInputError("all intensities are zero")
	}
	return lod, nil
}

// ImputeMissing returns a copy of the table with every zero cell replaced by
// a uniform draw from [0, lod). Nonzero cells are untouched. Callers compute
// missingness displays from the pre-imputation table.
func ImputeMissing(ft table.FeatureTable, lod float64, rng *rand.Rand) (table.FeatureTable, error) {
	if lod <= 0 {
		return table.FeatureTable{}, core.NewDegenerateInputError("limit of detection must be positive")
	}

	out := ft.Clone()
	for i, row := range out.Data {
		for j, v := range row {
			if v == 0 {
				out.Data[i][j] = rng.Float64() * lod
			}
		}
	}
	return out, nil
}
