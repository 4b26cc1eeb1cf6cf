package domain

import (
	"context"
	"encoding/json"
	"time"
)

// JobRepository defines persistence for job entities. Status mutations are
// conditional on the prior status: Complete and Fail only move in_progress
// rows and report ErrNotFound for a missing id or ErrInvalidTransition for a
// row in any other status.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	ClaimNextPending(ctx context.Context, kind JobKind) (*Job, error)
	SetExternalRef(ctx context.Context, jobID, ref string) error
	Complete(ctx context.Context, jobID string, result json.RawMessage) (*Job, error)
	Fail(ctx context.Context, jobID, message string) (*Job, error)
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetByExternalRef(ctx context.Context, ref string) (*Job, error)
	List(ctx context.Context, filter ListFilter) ([]Job, error)
	ResetStale(ctx context.Context, cutoff time.Time, note string) ([]Job, error)
}
