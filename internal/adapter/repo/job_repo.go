package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"newscast/internal/domain"
	"newscast/internal/infra"
	"newscast/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new pending job record. ID is assigned when empty.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.JobStatusPending
	row := r.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.Kind,
		job.OrgID,
		job.ParentID,
		[]byte(job.Input),
	)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// ClaimNextPending flips the oldest pending job of kind to in_progress.
// Row locking with SKIP LOCKED keeps concurrent claimers off the same row.
func (r *JobRepositoryPG) ClaimNextPending(ctx context.Context, kind domain.JobKind) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimNextJob, kind))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNoPendingJob
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// SetExternalRef records the provider reference of an in-progress job.
func (r *JobRepositoryPG) SetExternalRef(ctx context.Context, jobID, ref string) error {
	if !validID(jobID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSetJobExternalRef, jobID, ref)
	if err != nil {
		return fmt.Errorf("set external ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID)
	}
	return nil
}

// Complete moves an in-progress job to completed and stores its result.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID string, result json.RawMessage) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QCompleteJob, jobID, nullableBytes(result)))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, r.transitionError(ctx, jobID)
		}
		return nil, fmt.Errorf("complete job: %w", err)
	}
	return job, nil
}

// Fail moves an in-progress job to failed and stores the message.
func (r *JobRepositoryPG) Fail(ctx context.Context, jobID, message string) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QFailJob, jobID, message))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, r.transitionError(ctx, jobID)
		}
		return nil, fmt.Errorf("fail job: %w", err)
	}
	return job, nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByExternalRef fetches the most recent job carrying the provider reference.
func (r *JobRepositoryPG) GetByExternalRef(ctx context.Context, ref string) (*domain.Job, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByExternalRef, ref))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job by external ref: %w", err)
	}
	return job, nil
}

// List returns jobs matching filter ordered by creation time.
func (r *JobRepositoryPG) List(ctx context.Context, filter domain.ListFilter) ([]domain.Job, error) {
	filter = filter.Normalize()
	rows, err := r.sql.Query(ctx, sqlinline.QListJobs,
		filter.OrgID,
		filter.ParentID,
		string(filter.Kind),
		string(filter.Status),
		filter.Limit,
		filter.AllOrgs,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// ResetStale returns every in_progress job last touched before cutoff to
// pending, annotating its error with note.
func (r *JobRepositoryPG) ResetStale(ctx context.Context, cutoff time.Time, note string) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QResetStaleJobs, cutoff, note)
	if err != nil {
		return nil, fmt.Errorf("reset stale jobs: %w", err)
	}
	return collectJobs(rows)
}

// transitionError explains why a conditional update matched no row.
func (r *JobRepositoryPG) transitionError(ctx context.Context, jobID string) error {
	var status string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectJobStatus, jobID).Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("load job status: %w", err)
	}
	return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, jobID, status)
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		input  []byte
		result []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.OrgID,
		&job.ParentID,
		&job.Status,
		&input,
		&result,
		&job.Error,
		&job.ExternalRef,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	// Row buffers are reused by pgx; copy before they escape.
	job.Input = append(json.RawMessage(nil), input...)
	if len(result) > 0 {
		job.Result = append(json.RawMessage(nil), result...)
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
