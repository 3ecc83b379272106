package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"metastats/domain/core"
	"metastats/domain/run"
	"metastats/domain/stats"
	"metastats/ports"

	"github.com/jmoiron/sqlx"
)

// runRepository implements the RunRepository interface
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

// SaveRun inserts a completed comparison run
func (r *runRepository) SaveRun(ctx context.Context, rec *run.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid run: %w", err)
	}

	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	query := `INSERT INTO comparison_runs (
		id, kind, attribute, params, fingerprint, table_hash, seed,
		tested_count, significant_count, result, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID.String(), string(rec.Kind), rec.Attribute, paramsJSON,
		rec.Fingerprint.String(), string(rec.TableHash), rec.Seed,
		rec.TestedCount, rec.SignificantCount, []byte(rec.Result), rec.CreatedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	return nil
}

const runColumns = `
	id, kind, attribute, COALESCE(params, '{}') as params, fingerprint,
	table_hash, seed, tested_count, significant_count, result, created_at`

// GetRun retrieves a run by its ID
func (r *runRepository) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	query := `SELECT` + runColumns + ` FROM comparison_runs WHERE id = $1`
	return r.scanRun(r.db.QueryRowContext(ctx, query, id.String()), id.String())
}

// FindByFingerprint retrieves the most recent run with this fingerprint
func (r *runRepository) FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*run.Record, error) {
	query := `SELECT` + runColumns + `
	FROM comparison_runs
	WHERE fingerprint = $1
	ORDER BY created_at DESC
	LIMIT 1`
	return r.scanRun(r.db.QueryRowContext(ctx, query, fp.String()), fp.String())
}

// ListRecent returns up to limit run summaries, newest first
func (r *runRepository) ListRecent(ctx context.Context, limit int) ([]run.Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT
		id, kind, attribute, fingerprint, tested_count, significant_count, created_at
	FROM comparison_runs
	ORDER BY created_at DESC
	LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []run.Summary
	for rows.Next() {
		var s run.Summary
		var id, kind, fingerprint string
		var createdAt time.Time
		if err := rows.Scan(&id, &kind, &s.Attribute, &fingerprint,
			&s.TestedCount, &s.SignificantCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		s.ID = core.RunID(id)
		s.Kind = stats.TestKind(kind)
		s.Fingerprint = core.Fingerprint(fingerprint)
		s.CreatedAt = core.NewTimestamp(createdAt)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return summaries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *runRepository) scanRun(row rowScanner, key string) (*run.Record, error) {
	var rec run.Record
	var id, kind, fingerprint, tableHash string
	var paramsJSON, resultJSON []byte
	var createdAt time.Time

	err := row.Scan(
		&id, &kind, &rec.Attribute, &paramsJSON, &fingerprint,
		&tableHash, &rec.Seed, &rec.TestedCount, &rec.SignificantCount,
		&resultJSON, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("run", key)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rec.ID = core.RunID(id)
	rec.Kind = stats.TestKind(kind)
	rec.Fingerprint = core.Fingerprint(fingerprint)
	rec.TableHash = core.TableHash(tableHash)
	rec.Result = json.RawMessage(resultJSON)
	rec.CreatedAt = core.NewTimestamp(createdAt)
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &rec.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}
	return &rec, nil
}
