// Package run sequences the pipeline stages for a preset over a set of
// input documents. Every stage invocation is keyed by a content-addressed
// fingerprint and consulted against the persisted cache first, so identical
// work is never redone, across runs as well as within one.
package run

import (
	"context"
	"time"

	"goldpipe/pkg/core/stage"
)

// Status is the run state machine. Terminal states are immutable;
// re-executing a preset creates a new run that reuses cached stage results.
type Status string

const (
	StatusPending            Status = "pending"
	StatusRunning            Status = "running"
	StatusCompleted          Status = "completed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusFailed             Status = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyCompleted, StatusFailed:
		return true
	}
	return false
}

// StageResult is one cached stage outcome. The fingerprint is the primary
// key: at most one result exists per fingerprint, success or failure.
// Failures are cached as failures, distinct from absent, so repeated runs
// don't blindly retry permanently-broken stages.
type StageResult struct {
	Fingerprint string                `json:"fingerprint"`
	Kind        stage.Kind            `json:"kind"`
	DocumentID  string                `json:"document_id"`
	Output      string                `json:"output,omitempty"`
	Score       *stage.Score          `json:"score,omitempty"`
	Pairwise    *stage.PairwiseResult `json:"pairwise,omitempty"`
	Success     bool                  `json:"success"`
	ErrorDetail string                `json:"error_detail,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// DocumentState summarizes one document's progress within a run.
type DocumentState struct {
	DocumentID   string   `json:"document_id"`
	Fingerprints []string `json:"fingerprints"`
	GoldOutput   string   `json:"gold_output,omitempty"`
	Failed       bool     `json:"failed"`
	Degraded     bool     `json:"degraded"` // a non-blocking stage failed
	Error        string   `json:"error,omitempty"`
}

// Run is one execution of a preset over a set of documents. It owns its
// document states and the linkage to the stage results it touched; the
// results themselves are shared through the fingerprint cache.
type Run struct {
	ID         string                    `json:"id"`
	PresetID   string                    `json:"preset_id"`
	Status     Status                    `json:"status"`
	Documents  map[string]*DocumentState `json:"documents"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
}

// ResultCache is the persisted fingerprint-keyed idempotency cache, the
// only mutable state shared across concurrent workers.
type ResultCache interface {
	// Get returns the cached result for a fingerprint, or (nil, nil) on miss.
	Get(ctx context.Context, fp string) (*StageResult, error)
	// Put commits a result. A result already present for the fingerprint
	// wins: Put never overwrites, satisfying at-most-once semantics.
	Put(ctx context.Context, r *StageResult) error
	// Replace overwrites an existing result. Only used when the caller
	// explicitly requests re-execution of a cached failure.
	Replace(ctx context.Context, r *StageResult) error
}

// Repo persists run records.
type Repo interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	Get(ctx context.Context, id string) (*Run, error)
}
