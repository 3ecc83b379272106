package testkit

import (
	"context"
	"testing"

	"metastats/domain/prepare"
)

func TestDatasetGenerator_ShapeMatchesConfig(t *testing.T) {
	cfg := DefaultDatasetConfig()
	feature, meta, manifest := NewDatasetGenerator(cfg).Generate()

	wantSamples := cfg.Blanks + len(cfg.Groups)*cfg.SamplesPerGroup
	if got := len(feature.Headers) - 3; got != wantSamples {
		t.Errorf("feature table has %d sample columns, want %d", got, wantSamples)
	}
	if len(feature.Rows) != cfg.Features {
		t.Errorf("feature table has %d rows, want %d", len(feature.Rows), cfg.Features)
	}
	if len(meta.Rows) != wantSamples {
		t.Errorf("metadata has %d rows, want %d", len(meta.Rows), wantSamples)
	}
	if len(manifest.Blanks) != cfg.Blanks {
		t.Errorf("manifest lists %d blanks, want %d", len(manifest.Blanks), cfg.Blanks)
	}
	if len(manifest.Differential) == 0 || len(manifest.Background) == 0 {
		t.Error("manifest missing planted differential/background features")
	}
}

func TestDatasetGenerator_Deterministic(t *testing.T) {
	cfg := DefaultDatasetConfig()
	a, _, _ := NewDatasetGenerator(cfg).Generate()
	b, _, _ := NewDatasetGenerator(cfg).Generate()

	if len(a.Rows) != len(b.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		for j := range a.Rows[i] {
			if a.Rows[i][j] != b.Rows[i][j] {
				t.Fatalf("cell (%d,%d) differs: %s vs %s", i, j, a.Rows[i][j], b.Rows[i][j])
			}
		}
	}
}

func TestDemoTables_CleansAndReconciles(t *testing.T) {
	kit := NewTestKit()
	ft, md, manifest, err := kit.DemoTables()
	if err != nil {
		t.Fatalf("DemoTables failed: %v", err)
	}

	if ft.SampleCount() != md.SampleCount() {
		t.Errorf("reconciled tables disagree: %d feature samples vs %d metadata samples",
			ft.SampleCount(), md.SampleCount())
	}
	// Extensions and peak-area suffixes must be gone after cleanup.
	for _, s := range ft.Samples {
		if s != "" && (s[len(s)-1] == ' ' || len(s) > 5 && s[len(s)-5:] == ".mzML") {
			t.Errorf("sample %q not fully cleaned", s)
		}
	}
	if _, ok := md.AttributeIndex(TreatmentAttribute); !ok {
		t.Errorf("treatment attribute missing from cleaned metadata: %v", md.Attributes)
	}
	if _, ok := md.AttributeIndex(SampleTypeAttribute); !ok {
		t.Errorf("sample type attribute missing from cleaned metadata: %v", md.Attributes)
	}
	if len(ft.Features) != len(manifest.FeatureIDs) {
		t.Errorf("cleaned table has %d features, manifest %d", len(ft.Features), len(manifest.FeatureIDs))
	}
}

func TestDemoTables_BlankFilterRemovesPlantedBackground(t *testing.T) {
	kit := NewTestKit()
	ft, md, manifest, err := kit.DemoTables()
	if err != nil {
		t.Fatalf("DemoTables failed: %v", err)
	}

	blanks, err := md.SamplesWithValue(SampleTypeAttribute, SampleTypeBlank)
	if err != nil {
		t.Fatalf("blank lookup failed: %v", err)
	}
	real, err := md.SamplesWithValue(SampleTypeAttribute, SampleTypeSample)
	if err != nil {
		t.Fatalf("sample lookup failed: %v", err)
	}

	result, err := prepare.RemoveBlankFeatures(ft, blanks, real, prepare.DefaultBlankCutoff)
	if err != nil {
		t.Fatalf("blank filter failed: %v", err)
	}

	removed := make(map[string]bool, len(result.Background))
	for _, key := range result.Background {
		removed[key.String()] = true
	}
	for _, id := range manifest.Background {
		if !removed[id] {
			t.Errorf("planted background feature %s survived the blank filter", id)
		}
	}
	for _, id := range manifest.Differential {
		if removed[id] {
			t.Errorf("planted differential feature %s was removed as background", id)
		}
	}
}

func TestRNGAdapter_SeededStreamIsDeterministicPerName(t *testing.T) {
	adapter := &RNGAdapter{}
	ctx := context.Background()

	a, err := adapter.SeededStream(ctx, "impute", 42)
	if err != nil {
		t.Fatalf("SeededStream failed: %v", err)
	}
	b, err := adapter.SeededStream(ctx, "impute", 42)
	if err != nil {
		t.Fatalf("SeededStream failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		if av, bv := a.Float64(), b.Float64(); av != bv {
			t.Fatalf("draw %d differs: %v vs %v", i, av, bv)
		}
	}

	c, err := adapter.SeededStream(ctx, "other", 42)
	if err != nil {
		t.Fatalf("SeededStream failed: %v", err)
	}
	same := true
	a2, _ := adapter.SeededStream(ctx, "impute", 42)
	for i := 0; i < 10; i++ {
		if a2.Float64() != c.Float64() {
			same = false
			break
		}
	}
	if same {
		t.Error("different names produced identical streams")
	}
}
