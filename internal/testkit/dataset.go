package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"metastats/domain/table"
)

// DatasetConfig configures the synthetic metabolomics dataset generator
type DatasetConfig struct {
	Features             int      `json:"features"`
	SamplesPerGroup      int      `json:"samples_per_group"`
	Groups               []string `json:"groups"`
	Blanks               int      `json:"blanks"`
	DifferentialFraction float64  `json:"differential_fraction"`
	BackgroundFraction   float64  `json:"background_fraction"`
	MissingRate          float64  `json:"missing_rate"`
	BaseIntensity        float64  `json:"base_intensity"`
	FoldChange           float64  `json:"fold_change"`
	Seed                 int64    `json:"seed"`
}

// DefaultDatasetConfig returns sensible defaults for demo data generation
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Features:             120,
		SamplesPerGroup:      6,
		Groups:               []string{"control", "treated"},
		Blanks:               3,
		DifferentialFraction: 0.15,
		BackgroundFraction:   0.10,
		MissingRate:          0.08,
		BaseIntensity:        5e5,
		FoldChange:           3.0,
		Seed:                 42,
	}
}

// DatasetManifest records what the generator produced so tests and demos can
// assert against it without re-deriving anything.
type DatasetManifest struct {
	FeatureIDs   []string
	Samples      []string
	Blanks       []string
	GroupSamples map[string][]string
	Differential []string
	Background   []string
}

// DatasetGenerator generates a synthetic metabolomics upload pair: a feature
// quantification table and a matching metadata table, in the raw shapes the
// cleanup pipeline expects.
type DatasetGenerator struct {
	config DatasetConfig
	rng    *rand.Rand
}

// NewDatasetGenerator creates a generator with a fixed seed for reproducibility
func NewDatasetGenerator(config DatasetConfig) *DatasetGenerator {
	return &DatasetGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Sample type and treatment attribute names used in the generated metadata.
const (
	SampleTypeAttribute = "ATTRIBUTE_Sample_Type"
	TreatmentAttribute  = "ATTRIBUTE_Treatment"
	SampleTypeBlank     = "Blank"
	SampleTypeSample    = "Sample"
	blankTreatment      = "blank"
)

// Generate produces the upload pair plus a manifest of the planted structure.
// The first differential features are shifted between groups by the configured
// fold change; the last background features carry blank-level signal so the
// blank filter removes them.
func (g *DatasetGenerator) Generate() (table.RawTable, table.RawTable, DatasetManifest) {
	cfg := g.config

	manifest := DatasetManifest{
		GroupSamples: make(map[string][]string, len(cfg.Groups)),
	}
	for i := 0; i < cfg.Blanks; i++ {
		manifest.Blanks = append(manifest.Blanks, fmt.Sprintf("blank_%02d", i+1))
	}
	for _, group := range cfg.Groups {
		for i := 0; i < cfg.SamplesPerGroup; i++ {
			name := fmt.Sprintf("%s_%02d", group, i+1)
			manifest.Samples = append(manifest.Samples, name)
			manifest.GroupSamples[group] = append(manifest.GroupSamples[group], name)
		}
	}

	diffCount := int(math.Round(cfg.DifferentialFraction * float64(cfg.Features)))
	bgCount := int(math.Round(cfg.BackgroundFraction * float64(cfg.Features)))

	headers := []string{"row ID", "row m/z", "row retention time"}
	for _, b := range manifest.Blanks {
		headers = append(headers, b+".mzML Peak area")
	}
	for _, s := range manifest.Samples {
		headers = append(headers, s+".mzML Peak area")
	}

	rows := make([][]string, 0, cfg.Features)
	for f := 0; f < cfg.Features; f++ {
		id := strconv.Itoa(f + 1)
		manifest.FeatureIDs = append(manifest.FeatureIDs, id)

		differential := f < diffCount
		background := f >= cfg.Features-bgCount
		if differential {
			manifest.Differential = append(manifest.Differential, id)
		}
		if background {
			manifest.Background = append(manifest.Background, id)
		}

		base := cfg.BaseIntensity * math.Exp(g.rng.NormFloat64()*0.9)

		row := []string{
			id,
			fmt.Sprintf("%.4f", 100+g.rng.Float64()*900),
			fmt.Sprintf("%.2f", 0.5+g.rng.Float64()*14),
		}
		for range manifest.Blanks {
			row = append(row, formatIntensity(g.blankIntensity(base, background)))
		}
		for gIdx := range cfg.Groups {
			for i := 0; i < cfg.SamplesPerGroup; i++ {
				row = append(row, formatIntensity(g.sampleIntensity(base, differential, gIdx)))
			}
		}
		rows = append(rows, row)
	}

	feature := table.RawTable{
		Name:    "demo_quant",
		Headers: headers,
		Rows:    rows,
	}

	meta := table.RawTable{
		Name:    "demo_metadata",
		Headers: []string{table.MetadataKeyColumn, SampleTypeAttribute, TreatmentAttribute},
	}
	for _, b := range manifest.Blanks {
		meta.Rows = append(meta.Rows, []string{b + ".mzML", SampleTypeBlank, blankTreatment})
	}
	for _, group := range cfg.Groups {
		for _, s := range manifest.GroupSamples[group] {
			meta.Rows = append(meta.Rows, []string{s + ".mzML", SampleTypeSample, group})
		}
	}

	return feature, meta, manifest
}

// blankIntensity models what a blank injection sees: background features show
// near-sample signal, real features at most trace carryover.
func (g *DatasetGenerator) blankIntensity(base float64, background bool) float64 {
	if background {
		return base * math.Exp(g.rng.NormFloat64()*0.25)
	}
	if g.rng.Float64() < 0.15 {
		return base * 0.01 * math.Exp(g.rng.NormFloat64()*0.25)
	}
	return 0
}

func (g *DatasetGenerator) sampleIntensity(base float64, differential bool, groupIdx int) float64 {
	if g.rng.Float64() < g.config.MissingRate {
		return 0
	}
	mean := base
	if differential && groupIdx > 0 {
		mean = base * math.Pow(g.config.FoldChange, float64(groupIdx))
	}
	return mean * math.Exp(g.rng.NormFloat64()*0.2)
}

func formatIntensity(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
