// Package memstore keeps jobs in process memory. It backs tests and
// single-instance deployments started with JOB_STORE=memory.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"newscast/internal/domain"
)

var _ domain.JobRepository = (*JobStore)(nil)

// JobStore is a map-backed domain.JobRepository. Safe for concurrent access.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
	// seq breaks created_at ties so claims stay first-in first-out.
	seq   map[string]uint64
	next  uint64
	nowFn func() time.Time
}

// Option configures a JobStore.
type Option func(*JobStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *JobStore) { s.nowFn = now }
}

// NewJobStore returns an empty store.
func NewJobStore(opts ...Option) *JobStore {
	s := &JobStore{
		jobs:  make(map[string]*domain.Job),
		seq:   make(map[string]uint64),
		nowFn: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JobStore) now() time.Time { return s.nowFn().UTC() }

func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("insert job: duplicate id %s", job.ID)
	}
	now := s.now()
	job.Status = domain.JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Result = nil
	job.Error = ""
	job.ExternalRef = ""
	job.CompletedAt = nil

	stored := cloneJob(job)
	s.jobs[job.ID] = stored
	s.next++
	s.seq[job.ID] = s.next
	return nil
}

func (s *JobStore) ClaimNextPending(_ context.Context, kind domain.JobKind) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *domain.Job
	for _, j := range s.jobs {
		if j.Status != domain.JobStatusPending || j.Kind != kind {
			continue
		}
		if oldest == nil || s.before(j, oldest) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, domain.ErrNoPendingJob
	}
	oldest.Status = domain.JobStatusInProgress
	oldest.UpdatedAt = s.now()
	return cloneJob(oldest), nil
}

func (s *JobStore) SetExternalRef(_ context.Context, jobID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.inProgress(jobID)
	if err != nil {
		return err
	}
	j.ExternalRef = ref
	j.UpdatedAt = s.now()
	return nil
}

func (s *JobStore) Complete(_ context.Context, jobID string, result json.RawMessage) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.inProgress(jobID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	j.Status = domain.JobStatusCompleted
	j.Result = append(json.RawMessage(nil), result...)
	j.Error = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
	return cloneJob(j), nil
}

func (s *JobStore) Fail(_ context.Context, jobID, message string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.inProgress(jobID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	j.Status = domain.JobStatusFailed
	j.Error = message
	j.UpdatedAt = now
	j.CompletedAt = &now
	return cloneJob(j), nil
}

func (s *JobStore) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *JobStore) GetByExternalRef(_ context.Context, ref string) (*domain.Job, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *domain.Job
	for _, j := range s.jobs {
		if j.ExternalRef != ref {
			continue
		}
		if newest == nil || s.before(newest, j) {
			newest = j
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	return cloneJob(newest), nil
}

func (s *JobStore) List(_ context.Context, filter domain.ListFilter) ([]domain.Job, error) {
	filter = filter.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.Job, 0)
	for _, j := range s.jobs {
		if !filter.AllOrgs && j.OrgID != filter.OrgID {
			continue
		}
		if filter.ParentID != "" && j.ParentID != filter.ParentID {
			continue
		}
		if filter.Kind != "" && j.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		matched = append(matched, j)
	}
	sort.Slice(matched, func(a, b int) bool { return s.before(matched[a], matched[b]) })
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	out := make([]domain.Job, 0, len(matched))
	for _, j := range matched {
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

func (s *JobStore) ResetStale(_ context.Context, cutoff time.Time, note string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var reset []*domain.Job
	for _, j := range s.jobs {
		if j.Status != domain.JobStatusInProgress || !j.UpdatedAt.Before(cutoff) {
			continue
		}
		j.Status = domain.JobStatusPending
		j.Error = note
		j.ExternalRef = ""
		j.UpdatedAt = now
		reset = append(reset, j)
	}
	sort.Slice(reset, func(a, b int) bool { return s.before(reset[a], reset[b]) })
	out := make([]domain.Job, 0, len(reset))
	for _, j := range reset {
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

// inProgress must be called with mu held.
func (s *JobStore) inProgress(jobID string) (*domain.Job, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != domain.JobStatusInProgress {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, jobID, j.Status)
	}
	return j, nil
}

// before orders by creation time, then by insertion sequence.
func (s *JobStore) before(a, b *domain.Job) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return s.seq[a.ID] < s.seq[b.ID]
}

func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	c.Input = append(json.RawMessage(nil), j.Input...)
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
