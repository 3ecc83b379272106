package stats

import (
	"fmt"

	"metastats/domain/core"
)

// TestKind defines the statistical test performed
type TestKind string

const (
	TestANOVA       TestKind = "anova"
	TestTukey       TestKind = "tukey"
	TestWelchTTest  TestKind = "ttest_welch"
	TestPairedTTest TestKind = "ttest_paired"
)

// WarningCode represents structured reasons a feature could not be tested
type WarningCode string

const (
	SkipZeroVariance  WarningCode = "ZERO_VARIANCE"   // no variance in any group
	SkipTooFewGroups  WarningCode = "TOO_FEW_GROUPS"  // fewer than 2 non-empty groups
	SkipTooFewSamples WarningCode = "TOO_FEW_SAMPLES" // a group has fewer than 2 observations
	SkipNotInTable    WarningCode = "FEATURE_NOT_FOUND"
	SkipNumerical     WarningCode = "NUMERICAL_FAILURE"
)

// AnovaRow is one feature's one-way ANOVA outcome.
// Column order is the presentation contract.
type AnovaRow struct {
	Feature     core.FeatureKey `json:"metabolite"`
	PValue      float64         `json:"p"`
	FStatistic  float64         `json:"F"`
	PCorrected  float64         `json:"p_bonferroni"`
	Significant bool            `json:"significant"`
}

// TukeyRow is one feature's pairwise Tukey HSD contrast between two levels.
type TukeyRow struct {
	Feature     core.FeatureKey `json:"metabolite"`
	Diff        float64         `json:"diff"`
	PValue      float64         `json:"p_tukey"`
	PCorrected  float64         `json:"p_bonferroni"`
	Significant bool            `json:"significant"`
	GroupA      string          `json:"A"`
	GroupB      string          `json:"B"`
	MeanA       float64         `json:"mean_A"`
	MeanB       float64         `json:"mean_B"`
}

// TTestRow is one feature's two-group t-test outcome.
type TTestRow struct {
	Feature     core.FeatureKey `json:"metabolite"`
	Statistic   float64         `json:"T"`
	PValue      float64         `json:"p"`
	PCorrected  float64         `json:"p_bonferroni"`
	Significant bool            `json:"significant"`
	Attribute   string          `json:"attribute"`
	GroupA      string          `json:"A"`
	GroupB      string          `json:"B"`
}

// SkippedFeature records a feature that could not be tested, kept alongside
// valid rows so partial results stay visible.
type SkippedFeature struct {
	Feature core.FeatureKey `json:"metabolite"`
	Reason  WarningCode     `json:"reason"`
	Detail  string          `json:"detail,omitempty"`
}

// AnovaResult is the full outcome of an ANOVA batch over a feature matrix.
type AnovaResult struct {
	Attribute   string           `json:"attribute"`
	Rows        []AnovaRow       `json:"rows"`
	Skipped     []SkippedFeature `json:"skipped,omitempty"`
	TestedCount int              `json:"tested_count"`
	Fingerprint core.Fingerprint `json:"fingerprint"`
	ComputedAt  core.Timestamp   `json:"computed_at"`
}

// SignificantFeatures returns the keys flagged significant, in row order.
func (r *AnovaResult) SignificantFeatures() []core.FeatureKey {
	var keys []core.FeatureKey
	for _, row := range r.Rows {
		if row.Significant {
			keys = append(keys, row.Feature)
		}
	}
	return keys
}

// TukeyResult is the outcome of a pairwise Tukey batch over the
// ANOVA-significant features.
type TukeyResult struct {
	Attribute   string           `json:"attribute"`
	Levels      [2]string        `json:"levels"`
	Rows        []TukeyRow       `json:"rows"`
	Skipped     []SkippedFeature `json:"skipped,omitempty"`
	TestedCount int              `json:"tested_count"`
	Fingerprint core.Fingerprint `json:"fingerprint"`
	ComputedAt  core.Timestamp   `json:"computed_at"`
}

// TTestResult is the outcome of a two-group t-test batch.
type TTestResult struct {
	Attribute   string           `json:"attribute"`
	GroupA      string           `json:"group_a"`
	GroupB      string           `json:"group_b"`
	Paired      bool             `json:"paired"`
	Rows        []TTestRow       `json:"rows"`
	Skipped     []SkippedFeature `json:"skipped,omitempty"`
	TestedCount int              `json:"tested_count"`
	Fingerprint core.Fingerprint `json:"fingerprint"`
	ComputedAt  core.Timestamp   `json:"computed_at"`
}

// NewAnovaRow validates and builds a raw (uncorrected) ANOVA row.
func NewAnovaRow(feature core.FeatureKey, p, f float64) (AnovaRow, error) {
	if feature == "" {
		return AnovaRow{}, fmt.Errorf("feature key must be set")
	}
	if p < 0 || p > 1 {
		return AnovaRow{}, fmt.Errorf("p-value must be in [0,1], got %g", p)
	}
	return AnovaRow{Feature: feature, PValue: p, FStatistic: f}, nil
}

// NewSkippedFeature builds a skip record for a feature that failed its test.
func NewSkippedFeature(feature core.FeatureKey, reason WarningCode, detail string) SkippedFeature {
	return SkippedFeature{Feature: feature, Reason: reason, Detail: detail}
}
