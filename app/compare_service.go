package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"metastats/adapters/stats/engine"
	"metastats/domain/core"
	"metastats/domain/run"
	"metastats/domain/stats"
	"metastats/internal"
	"metastats/internal/memo"
	"metastats/ports"
)

// CompareService orchestrates the group-comparison statistics: ANOVA, Tukey
// post-hoc, and two-group t-tests. Results are memoized by a fingerprint over
// every input (session generation, table content, attribute, group labels,
// flags) and optionally persisted.
type CompareService struct {
	engine *engine.StatsEngine
	cache  *memo.Cache
	repo   ports.RunRepository // nil when persistence is disabled
	log    *internal.Logger
}

// NewCompareService creates a compare service. repo may be nil.
func NewCompareService(eng *engine.StatsEngine, cache *memo.Cache, repo ports.RunRepository) *CompareService {
	return &CompareService{
		engine: eng,
		cache:  cache,
		repo:   repo,
		log:    internal.DefaultLogger.WithTag("CompareService"),
	}
}

func requireSubmitted(sess Session) error {
	if !sess.Submitted() {
		return core.NewValidationError("session", "statistics require a submitted session")
	}
	return nil
}

func (s *CompareService) fingerprint(sess Session, op string, params map[string]string) core.Fingerprint {
	return core.ComputeFingerprint(sess.Generation, sess.TableHash(), op, core.ComputeParamsHash(params))
}

// Anova runs one-way ANOVA per feature across the attribute's levels.
func (s *CompareService) Anova(ctx context.Context, sess Session, attribute string) (*stats.AnovaResult, error) {
	if err := requireSubmitted(sess); err != nil {
		return nil, err
	}

	fp := s.fingerprint(sess, string(stats.TestANOVA), map[string]string{
		"attribute": attribute,
	})
	v, cached, err := s.cache.Do(fp, func() (interface{}, error) {
		started := time.Now()
		result, err := s.engine.RunANOVA(ctx, &sess.Matrix, &sess.Meta, attribute)
		if err != nil {
			return nil, err
		}
		result.Fingerprint = fp
		s.persist(ctx, stats.TestANOVA, attribute, map[string]string{"attribute": attribute},
			fp, sess, result.TestedCount, len(result.SignificantFeatures()), result)
		s.log.Debug("anova attribute=%s computed in %v", attribute, time.Since(started))
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if cached {
		s.log.Debug("anova attribute=%s served from cache", attribute)
	}
	return v.(*stats.AnovaResult), nil
}

// Tukey runs the post-hoc contrast for one pair of levels over the
// ANOVA-significant features. The prerequisite ANOVA comes from the cache
// when available.
func (s *CompareService) Tukey(ctx context.Context, sess Session, attribute string, levels [2]string) (*stats.TukeyResult, error) {
	if err := requireSubmitted(sess); err != nil {
		return nil, err
	}

	anova, err := s.Anova(ctx, sess, attribute)
	if err != nil {
		return nil, fmt.Errorf("prerequisite anova failed: %w", err)
	}
	significant := anova.SignificantFeatures()
	if len(significant) == 0 {
		return nil, fmt.Errorf("%w: no significant features under %s", core.ErrInsufficientData, attribute)
	}

	params := map[string]string{
		"attribute": attribute,
		"level_a":   levels[0],
		"level_b":   levels[1],
	}
	fp := s.fingerprint(sess, string(stats.TestTukey), params)
	v, cached, err := s.cache.Do(fp, func() (interface{}, error) {
		started := time.Now()
		result, err := s.engine.RunTukey(ctx, &sess.Matrix, &sess.Meta, attribute, levels, significant)
		if err != nil {
			return nil, err
		}
		result.Fingerprint = fp
		sigCount := 0
		for _, row := range result.Rows {
			if row.Significant {
				sigCount++
			}
		}
		s.persist(ctx, stats.TestTukey, attribute, params, fp, sess, result.TestedCount, sigCount, result)
		s.log.Debug("tukey attribute=%s pair=%s/%s computed in %v",
			attribute, levels[0], levels[1], time.Since(started))
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if cached {
		s.log.Debug("tukey attribute=%s pair=%s/%s served from cache", attribute, levels[0], levels[1])
	}
	return v.(*stats.TukeyResult), nil
}

// TTest runs a two-group t-test per feature: Welch's by default, the paired
// variant when paired is set.
func (s *CompareService) TTest(ctx context.Context, sess Session, attribute, groupA, groupB string, paired bool) (*stats.TTestResult, error) {
	if err := requireSubmitted(sess); err != nil {
		return nil, err
	}

	kind := stats.TestWelchTTest
	if paired {
		kind = stats.TestPairedTTest
	}
	params := map[string]string{
		"attribute": attribute,
		"group_a":   groupA,
		"group_b":   groupB,
		"paired":    strconv.FormatBool(paired),
	}
	fp := s.fingerprint(sess, string(kind), params)
	v, cached, err := s.cache.Do(fp, func() (interface{}, error) {
		started := time.Now()
		result, err := s.engine.RunTTest(ctx, &sess.Matrix, &sess.Meta, attribute, groupA, groupB, paired)
		if err != nil {
			return nil, err
		}
		result.Fingerprint = fp
		sigCount := 0
		for _, row := range result.Rows {
			if row.Significant {
				sigCount++
			}
		}
		s.persist(ctx, kind, attribute, params, fp, sess, result.TestedCount, sigCount, result)
		s.log.Debug("ttest attribute=%s groups=%s/%s paired=%v computed in %v",
			attribute, groupA, groupB, paired, time.Since(started))
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if cached {
		s.log.Debug("ttest attribute=%s groups=%s/%s served from cache", attribute, groupA, groupB)
	}
	return v.(*stats.TTestResult), nil
}

// Describe returns per-group descriptive statistics for one feature.
// Not memoized: it is a cheap single-feature pass.
func (s *CompareService) Describe(ctx context.Context, sess Session, attribute string, feature core.FeatureKey) ([]engine.GroupSummary, error) {
	if err := requireSubmitted(sess); err != nil {
		return nil, err
	}
	return s.engine.DescribeFeature(&sess.Matrix, &sess.Meta, attribute, feature)
}

// persist stores the run when a repository is configured. Persistence
// failures are logged, never surfaced: the computed result is already valid.
func (s *CompareService) persist(ctx context.Context, kind stats.TestKind, attribute string,
	params map[string]string, fp core.Fingerprint, sess Session, tested, significant int, result interface{}) {

	if s.repo == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.log.Warn("run payload marshal failed: %v", err)
		return
	}
	rec, err := run.NewRecord(kind, attribute, params, fp, sess.TableHash(), 0, tested, significant, payload)
	if err != nil {
		s.log.Warn("run record invalid: %v", err)
		return
	}
	if err := s.repo.SaveRun(ctx, rec); err != nil {
		s.log.Warn("run persistence failed: %v", err)
		return
	}
	s.log.Debug("run %s persisted (%s)", rec.ID.String(), core.FormatHashPreview(core.Hash(fp)))
}

// RecentRuns lists stored run summaries when persistence is configured.
func (s *CompareService) RecentRuns(ctx context.Context, limit int) ([]run.Summary, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListRecent(ctx, limit)
}
