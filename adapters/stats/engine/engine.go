package engine

import (
	"runtime"

	"golang.org/x/sync/semaphore"

	"metastats/domain/table"
)

// MaxConcurrentTests caps the per-feature worker pool for batch sweeps.
const MaxConcurrentTests = 8

// StatsEngine runs group-comparison batches over a sample-by-feature matrix.
// It is stateless apart from its worker pool and safe for concurrent use.
type StatsEngine struct {
	sem     *semaphore.Weighted
	workers int
}

// NewStatsEngine creates a statistical engine with a bounded worker pool.
func NewStatsEngine() *StatsEngine {
	workers := runtime.NumCPU()
	if workers > MaxConcurrentTests {
		workers = MaxConcurrentTests
	}
	if workers < 1 {
		workers = 1
	}
	return &StatsEngine{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

// sampleGroup binds one attribute level to the matrix rows that carry it.
type sampleGroup struct {
	Level string
	Rows  []int
}

// resolveGroups maps each level of the attribute to matrix row indices,
// preserving the level order of first appearance in the metadata. Samples
// present in the metadata but absent from the matrix are ignored; levels
// left with no rows are dropped.
func resolveGroups(m *table.SampleMatrix, md *table.Metadata, attribute string) ([]sampleGroup, error) {
	levels, err := md.Levels(attribute)
	if err != nil {
		return nil, err
	}
	byLevel, err := md.GroupSamples(attribute)
	if err != nil {
		return nil, err
	}

	groups := make([]sampleGroup, 0, len(levels))
	for _, level := range levels {
		members := byLevel[level]
		rows := make([]int, 0, len(members))
		for _, sample := range members {
			if i, ok := m.SampleIndex(sample); ok {
				rows = append(rows, i)
			}
		}
		if len(rows) == 0 {
			continue
		}
		groups = append(groups, sampleGroup{Level: level, Rows: rows})
	}
	return groups, nil
}

// levelRows returns the row indices for one level, or nil if the level
// resolved to no samples.
func levelRows(groups []sampleGroup, level string) []int {
	for _, g := range groups {
		if g.Level == level {
			return g.Rows
		}
	}
	return nil
}
