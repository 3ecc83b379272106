package app

import (
	"context"
	"time"

	"metastats/domain/core"
	"metastats/domain/prepare"
	"metastats/domain/table"
	"metastats/internal"
	"metastats/ports"
)

// PrepareService runs the data preparation pipeline: upload parsing, cleanup
// and reconciliation, blank-feature removal, missing-value imputation, and
// final submission for analysis. Every step returns a new Session value.
type PrepareService struct {
	readers ports.ReaderFactory
	rng     ports.RNGPort
	cutoff  float64
	seed    int64
	log     *internal.Logger
}

// NewPrepareService creates a prepare service. cutoff and seed are the
// configured defaults; callers may override per invocation.
func NewPrepareService(readers ports.ReaderFactory, rng ports.RNGPort, cutoff float64, seed int64) *PrepareService {
	if cutoff <= 0 || cutoff > 1 {
		cutoff = prepare.DefaultBlankCutoff
	}
	return &PrepareService{
		readers: readers,
		rng:     rng,
		cutoff:  cutoff,
		seed:    seed,
		log:     internal.DefaultLogger.WithTag("PrepareService"),
	}
}

// DefaultBlankCutoff returns the configured cutoff for the shells to display.
func (s *PrepareService) DefaultBlankCutoff() float64 { return s.cutoff }

// DefaultSeed returns the configured imputation seed.
func (s *PrepareService) DefaultSeed() int64 { return s.seed }

// LoadFiles reads a feature table and metadata file from disk and runs
// cleanup on the parsed tables.
func (s *PrepareService) LoadFiles(ctx context.Context, sess Session, featurePath, metaPath string) (Session, error) {
	rawFT, err := s.readers(featurePath).ReadData()
	if err != nil {
		return sess, err
	}
	rawMD, err := s.readers(metaPath).ReadData()
	if err != nil {
		return sess, err
	}
	return s.Cleanup(ctx, sess, *rawFT, *rawMD)
}

// Cleanup normalizes both uploads and reconciles their sample sets. The
// session moves to the cleaned phase; any later stages start over from here.
func (s *PrepareService) Cleanup(ctx context.Context, sess Session, rawFT, rawMD table.RawTable) (Session, error) {
	started := time.Now()

	ft, err := table.CleanFeatureTable(rawFT)
	if err != nil {
		return sess, err
	}
	md, err := table.CleanMetadata(rawMD)
	if err != nil {
		return sess, err
	}

	summary := CleanupSummary{}
	summary.Stages = append(summary.Stages, StageDims{
		Stage:    "cleaned",
		Features: ft.FeatureCount(),
		Samples:  ft.SampleCount(),
	})

	md, ft, err = table.Reconcile(md, ft)
	if err != nil {
		return sess, err
	}
	summary.Stages = append(summary.Stages, StageDims{
		Stage:    "reconciled",
		Features: ft.FeatureCount(),
		Samples:  ft.SampleCount(),
	})

	next := sess.withTables(ft, md, summary)
	s.log.Info("cleanup done: %d features x %d samples, %d attributes in %v",
		ft.FeatureCount(), ft.SampleCount(), len(md.Attributes), time.Since(started))
	return next, nil
}

// FilterBlanks removes background features using the samples carrying
// blankLevel under attribute as the blank group. The blank samples leave the
// session tables afterward; they have no role in the statistics stages.
// cutoff <= 0 means use the configured default.
func (s *PrepareService) FilterBlanks(ctx context.Context, sess Session, attribute, blankLevel string, cutoff float64) (Session, error) {
	if sess.Phase != PhaseCleaned {
		return sess, core.NewValidationError("session", "blank filter requires cleaned tables")
	}
	if cutoff <= 0 {
		cutoff = s.cutoff
	}
	started := time.Now()

	blanks, err := sess.Meta.SamplesWithValue(attribute, blankLevel)
	if err != nil {
		return sess, err
	}
	real := make([]string, 0, len(sess.Meta.Samples))
	isBlank := make(map[string]bool, len(blanks))
	for _, b := range blanks {
		isBlank[b] = true
	}
	for _, sample := range sess.Feature.Samples {
		if !isBlank[sample] {
			real = append(real, sample)
		}
	}

	result, err := prepare.RemoveBlankFeatures(sess.Feature, blanks, real, cutoff)
	if err != nil {
		return sess, err
	}

	ft := result.Filtered.SelectSamples(real)
	md := sess.Meta.SelectSamples(real)

	next := sess.next()
	next.Feature = ft
	next.Meta = md
	next.Summary.BlankFiltered = true
	next.Summary.BackgroundCount = result.BackgroundCount
	next.Summary.RealCount = result.RealCount
	next.Summary.Background = result.Background
	next.Summary.Stages = append(next.Summary.Stages, StageDims{
		Stage:    "blank_filtered",
		Features: ft.FeatureCount(),
		Samples:  ft.SampleCount(),
	})

	s.log.Info("blank filter: %d background removed, %d real kept (cutoff=%g) in %v",
		result.BackgroundCount, result.RealCount, cutoff, time.Since(started))
	return next, nil
}

// Impute replaces zero intensities with sub-LOD draws. seed 0 means use the
// configured default. Missingness percentages are captured before imputation.
func (s *PrepareService) Impute(ctx context.Context, sess Session, seed int64) (Session, error) {
	if sess.Phase != PhaseCleaned {
		return sess, core.NewValidationError("session", "imputation requires cleaned tables")
	}
	if seed == 0 {
		seed = s.seed
	}
	started := time.Now()

	lod, err := prepare.LODCutoff(sess.Feature)
	if err != nil {
		return sess, err
	}

	fractions := sess.Feature.RowZeroFractions()
	missing := make([]FeatureMissingness, len(fractions))
	for i, f := range fractions {
		missing[i] = FeatureMissingness{
			Feature: sess.Feature.Features[i],
			Percent: f * 100,
		}
	}

	rng, err := s.rng.SeededStream(ctx, "impute", seed)
	if err != nil {
		return sess, err
	}
	ft, err := prepare.ImputeMissing(sess.Feature, lod, rng)
	if err != nil {
		return sess, err
	}

	next := sess.next()
	next.Feature = ft
	next.Summary.Imputed = true
	next.Summary.LOD = lod
	next.Summary.Missingness = missing
	next.Summary.Stages = append(next.Summary.Stages, StageDims{
		Stage:    "imputed",
		Features: ft.FeatureCount(),
		Samples:  ft.SampleCount(),
	})

	s.log.Info("imputation: LOD=%g seed=%d in %v", lod, seed, time.Since(started))
	return next, nil
}

// Submit freezes the session for analysis: the feature table is transposed
// into sample-major orientation and the phase advances. Statistics only run
// on submitted sessions.
func (s *PrepareService) Submit(ctx context.Context, sess Session) (Session, error) {
	if sess.Phase != PhaseCleaned {
		return sess, core.NewValidationError("session", "submit requires cleaned tables")
	}

	matrix := sess.Feature.Transposed()
	if err := matrix.Validate(); err != nil {
		return sess, err
	}

	next := sess.next()
	next.Matrix = matrix
	next.Phase = PhaseSubmitted
	next.Summary.Stages = append(next.Summary.Stages, StageDims{
		Stage:    "submitted",
		Features: matrix.FeatureCount(),
		Samples:  matrix.SampleCount(),
	})

	s.log.Info("session %s submitted: generation=%d, %d features x %d samples",
		next.ID.String(), next.Generation, matrix.FeatureCount(), matrix.SampleCount())
	return next, nil
}
