package testkit

import (
	"context"
	"math/rand"

	"metastats/domain/table"
	"metastats/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	config DatasetConfig
}

// NewTestKit creates a test kit with the default demo dataset
func NewTestKit() *TestKit {
	return &TestKit{config: DefaultDatasetConfig()}
}

// NewTestKitWithConfig creates a test kit generating a custom dataset
func NewTestKitWithConfig(config DatasetConfig) *TestKit {
	return &TestKit{config: config}
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return &RNGAdapter{}
}

// DemoUpload returns the demo dataset in raw upload form.
func (t *TestKit) DemoUpload() (table.RawTable, table.RawTable, DatasetManifest) {
	return NewDatasetGenerator(t.config).Generate()
}

// DemoTables returns the demo dataset cleaned and reconciled, ready for the
// prepare pipeline.
func (t *TestKit) DemoTables() (table.FeatureTable, table.Metadata, DatasetManifest, error) {
	rawFT, rawMD, manifest := t.DemoUpload()

	ft, err := table.CleanFeatureTable(rawFT)
	if err != nil {
		return table.FeatureTable{}, table.Metadata{}, manifest, err
	}
	md, err := table.CleanMetadata(rawMD)
	if err != nil {
		return table.FeatureTable{}, table.Metadata{}, manifest, err
	}
	md, ft, err = table.Reconcile(md, ft)
	if err != nil {
		return table.FeatureTable{}, table.Metadata{}, manifest, err
	}
	return ft, md, manifest, nil
}

// RNGAdapter implements the RNGPort interface for testing and local runs
type RNGAdapter struct{}

// SeededStream creates a deterministic random number generator for a named
// operation. The name is mixed into the seed so distinct operations draw from
// distinct streams while staying reproducible.
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if name != "" {
		seed += int64(hashString(name))
	}
	return rand.New(rand.NewSource(seed)), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
