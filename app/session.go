package app

import (
	"sync"

	"metastats/domain/core"
	"metastats/domain/table"
)

// Phase tracks how far a session has moved through the prepare pipeline.
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseCleaned   Phase = "cleaned"
	PhaseSubmitted Phase = "submitted"
)

// FeatureMissingness is one feature's pre-imputation zero percentage.
type FeatureMissingness struct {
	Feature core.FeatureKey `json:"feature"`
	Percent float64         `json:"percent"`
}

// StageDims records table dimensions after one prepare stage.
type StageDims struct {
	Stage    string `json:"stage"`
	Features int    `json:"features"`
	Samples  int    `json:"samples"`
}

// CleanupSummary accumulates what the prepare pipeline did to the session's
// tables, for display and export.
type CleanupSummary struct {
	Stages          []StageDims          `json:"stages"`
	BackgroundCount int                  `json:"background_count"`
	RealCount       int                  `json:"real_count"`
	Background      []core.FeatureKey    `json:"background,omitempty"`
	LOD             float64              `json:"lod,omitempty"`
	Missingness     []FeatureMissingness `json:"missingness,omitempty"`
	BlankFiltered   bool                 `json:"blank_filtered"`
	Imputed         bool                 `json:"imputed"`
}

// Session is an immutable snapshot of the analysis state. Transitions return
// a new Session with the generation bumped; the generation participates in
// every memo fingerprint, so stale cached results can never be served.
type Session struct {
	ID         core.SessionID
	Generation uint64
	Phase      Phase
	Feature    table.FeatureTable
	Meta       table.Metadata
	Matrix     table.SampleMatrix
	Summary    CleanupSummary
	CreatedAt  core.Timestamp
	UpdatedAt  core.Timestamp
}

// NewSession creates an empty session
func NewSession() Session {
	now := core.Now()
	return Session{
		ID:         core.SessionID(core.NewID()),
		Generation: 0,
		Phase:      PhaseEmpty,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// next returns a copy with the generation bumped and timestamp refreshed.
func (s Session) next() Session {
	s.Generation++
	s.UpdatedAt = core.Now()
	return s
}

// withTables returns a cleaned-phase copy carrying the given tables.
func (s Session) withTables(ft table.FeatureTable, md table.Metadata, summary CleanupSummary) Session {
	n := s.next()
	n.Phase = PhaseCleaned
	n.Feature = ft
	n.Meta = md
	n.Matrix = table.SampleMatrix{}
	n.Summary = summary
	return n
}

// Submitted reports whether statistics can run on this session.
func (s Session) Submitted() bool {
	return s.Phase == PhaseSubmitted
}

// TableHash identifies the current feature table content. Used in memo keys
// alongside the generation.
func (s Session) TableHash() core.TableHash {
	if s.Submitted() {
		return s.Matrix.ContentHash()
	}
	return s.Feature.ContentHash()
}

// SessionStore holds the current session for the concurrent shells. The
// stored value is replaced wholesale, never mutated in place.
type SessionStore struct {
	mu      sync.RWMutex
	current Session
}

// NewSessionStore creates a store seeded with an empty session
func NewSessionStore() *SessionStore {
	return &SessionStore{current: NewSession()}
}

// Current returns the session value as of now.
func (s *SessionStore) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in the next session value.
func (s *SessionStore) Replace(next Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
}

// Reset starts over with a fresh empty session.
func (s *SessionStore) Reset() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = NewSession()
	return s.current
}
