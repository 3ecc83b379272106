package ports

import (
	"context"

	"metastats/domain/core"
	"metastats/domain/run"
)

// RunRepository persists completed comparison runs. The fingerprint is the
// replay key: a lookup hit means the stored payload is byte-for-byte the
// result the engine would recompute.
type RunRepository interface {
	// SaveRun stores a run record and its serialized result battery.
	SaveRun(ctx context.Context, rec *run.Record) error

	// GetRun retrieves a run by id. Returns a not-found error when absent.
	GetRun(ctx context.Context, id core.RunID) (*run.Record, error)

	// FindByFingerprint retrieves the most recent run with this fingerprint,
	// or a not-found error when no run matches.
	FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*run.Record, error)

	// ListRecent returns up to limit run summaries, newest first.
	ListRecent(ctx context.Context, limit int) ([]run.Summary, error)
}
