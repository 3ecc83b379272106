package run

import (
	"encoding/json"

	"metastats/domain/core"
	"metastats/domain/stats"
)

// Record is the persisted form of one comparison run: the inputs that produced
// it, the determinism fingerprint, and the serialized result battery. The
// fingerprint is the replay key; identical cleaned data plus identical
// parameters always map to the same fingerprint.
type Record struct {
	ID               core.RunID        `json:"run_id"`
	Kind             stats.TestKind    `json:"kind"`
	Attribute        string            `json:"attribute"`
	Params           map[string]string `json:"params,omitempty"`
	Fingerprint      core.Fingerprint  `json:"fingerprint"`
	TableHash        core.TableHash    `json:"table_hash"`
	Seed             int64             `json:"seed"`
	TestedCount      int               `json:"tested_count"`
	SignificantCount int               `json:"significant_count"`
	Result           json.RawMessage   `json:"result"`
	CreatedAt        core.Timestamp    `json:"created_at"`
}

// Summary is the listing view of a record, without the result payload.
type Summary struct {
	ID               core.RunID       `json:"run_id"`
	Kind             stats.TestKind   `json:"kind"`
	Attribute        string           `json:"attribute"`
	TestedCount      int              `json:"tested_count"`
	SignificantCount int              `json:"significant_count"`
	CreatedAt        core.Timestamp   `json:"created_at"`
	Fingerprint      core.Fingerprint `json:"fingerprint"`
}

// NewRecord builds a run record around a serialized result battery.
func NewRecord(kind stats.TestKind, attribute string, params map[string]string,
	fingerprint core.Fingerprint, tableHash core.TableHash, seed int64,
	tested, significant int, result json.RawMessage) (*Record, error) {

	r := &Record{
		ID:               core.RunID(core.NewID()),
		Kind:             kind,
		Attribute:        attribute,
		Params:           params,
		Fingerprint:      fingerprint,
		TableHash:        tableHash,
		Seed:             seed,
		TestedCount:      tested,
		SignificantCount: significant,
		Result:           result,
		CreatedAt:        core.Now(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that the record is complete enough to persist.
func (r *Record) Validate() error {
	if core.ID(r.ID).IsEmpty() {
		return core.NewValidationError("run_record", "run_id cannot be empty")
	}
	switch r.Kind {
	case stats.TestANOVA, stats.TestTukey, stats.TestWelchTTest, stats.TestPairedTTest:
	default:
		return core.NewValidationError("run_record", "unknown test kind")
	}
	if r.Attribute == "" {
		return core.NewValidationError("run_record", "attribute cannot be empty")
	}
	if r.Fingerprint == "" {
		return core.NewValidationError("run_record", "fingerprint cannot be empty")
	}
	if len(r.Result) == 0 {
		return core.NewValidationError("run_record", "result payload cannot be empty")
	}
	if r.TestedCount < 0 || r.SignificantCount < 0 || r.SignificantCount > r.TestedCount {
		return core.NewValidationError("run_record", "inconsistent row counts")
	}
	return nil
}

// Summarize strips the payload for listing views.
func (r *Record) Summarize() Summary {
	return Summary{
		ID:               r.ID,
		Kind:             r.Kind,
		Attribute:        r.Attribute,
		TestedCount:      r.TestedCount,
		SignificantCount: r.SignificantCount,
		CreatedAt:        r.CreatedAt,
		Fingerprint:      r.Fingerprint,
	}
}
