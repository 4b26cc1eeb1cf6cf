// Package jobs owns every job state change: creation, claiming and
// processing, provider callbacks, and the staleness sweep. Each change that
// clients care about is published as a notify event.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"newscast/internal/domain"
	"newscast/internal/domain/jsoncfg"
	"newscast/internal/notify"
)

// maxErrorLength bounds provider messages stored on failed jobs.
const maxErrorLength = 2000

// Outcome is what a processor produced. Exactly one of Result or ExternalRef
// is set: a result completes the job now, a reference means the provider
// will call back later.
type Outcome struct {
	Result      json.RawMessage
	ExternalRef string
}

// Processor runs the provider work for one kind. A returned error is a
// provider failure and fails the job.
type Processor interface {
	Kind() domain.JobKind
	Process(ctx context.Context, job *domain.Job) (Outcome, error)
}

// Options wires a Service.
type Options struct {
	Repo       domain.JobRepository
	Publisher  notify.Publisher
	Processors []Processor
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Service is the only mutation path for jobs.
type Service struct {
	repo       domain.JobRepository
	publisher  notify.Publisher
	processors map[domain.JobKind]Processor
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService validates opts and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Repo == nil {
		return nil, errors.New("jobs: repository is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("jobs: publisher is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	processors := make(map[domain.JobKind]Processor, len(opts.Processors))
	for _, p := range opts.Processors {
		if p == nil {
			continue
		}
		if _, dup := processors[p.Kind()]; dup {
			return nil, fmt.Errorf("jobs: duplicate processor for kind %q", p.Kind())
		}
		processors[p.Kind()] = p
	}
	return &Service{
		repo:       opts.Repo,
		publisher:  opts.Publisher,
		processors: processors,
		logger:     opts.Logger,
		now:        now,
	}, nil
}

// CreateParams is a request for new work.
type CreateParams struct {
	Kind     domain.JobKind
	OrgID    string
	ParentID string
	Input    json.RawMessage
}

// Create validates the input and stores a pending job. Invalid input creates
// nothing and wraps domain.ErrInvalidInput.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Job, error) {
	if !params.Kind.Valid() {
		return nil, fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidInput, params.Kind)
	}
	input, err := jsoncfg.NormalizeInput(params.Kind, params.Input)
	if err != nil {
		return nil, err
	}
	job := &domain.Job{
		Kind:     params.Kind,
		OrgID:    params.OrgID,
		ParentID: params.ParentID,
		Input:    input,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Str("parent_id", job.ParentID).Msg("jobs: created")
	s.publish(ctx, notify.EventJobCreated, job)
	return job, nil
}

// Get returns a job owned by orgID. Callers without an organization only see
// jobs created without one.
func (s *Service) Get(ctx context.Context, orgID, jobID string) (*domain.Job, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OrgID != orgID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// List returns jobs matching filter in creation order.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Job, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidInput, filter.Kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unsupported status %q", domain.ErrInvalidInput, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// ProcessNext claims the oldest pending job of kind and runs its processor.
// It returns domain.ErrNoPendingJob when there is nothing to do. Provider
// failures end up on the returned job, never in the error; store failures
// are returned.
func (s *Service) ProcessNext(ctx context.Context, kind domain.JobKind) (*domain.Job, error) {
	proc, ok := s.processors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no processor for kind %q", domain.ErrInvalidInput, kind)
	}
	job, err := s.repo.ClaimNextPending(ctx, kind)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", job.ID).Str("kind", string(kind)).Msg("jobs: claimed")
	s.publish(ctx, notify.EventJobStarted, job)

	outcome, procErr := proc.Process(ctx, job)

	// The claim is taken; record its outcome even if the caller went away.
	ctx = context.WithoutCancel(ctx)
	if procErr != nil {
		s.logger.Warn().Err(procErr).Str("job_id", job.ID).Str("kind", string(kind)).Msg("jobs: provider failed")
		return s.fail(ctx, job.ID, procErr.Error())
	}
	if outcome.ExternalRef != "" {
		return s.awaitCallback(ctx, job, outcome.ExternalRef)
	}
	return s.complete(ctx, job.ID, outcome.Result)
}

func (s *Service) awaitCallback(ctx context.Context, job *domain.Job, ref string) (*domain.Job, error) {
	if err := s.repo.SetExternalRef(ctx, job.ID, ref); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// The callback beat us and already finished the job.
			return s.repo.GetByID(ctx, job.ID)
		}
		return nil, err
	}
	job.ExternalRef = ref
	s.logger.Info().Str("job_id", job.ID).Str("external_ref", ref).Msg("jobs: submitted, awaiting callback")
	return job, nil
}

// Callback is a provider's asynchronous outcome. ExternalRef is preferred;
// JobID is the fallback carried in the signed callback URL.
type Callback struct {
	ExternalRef string
	JobID       string
	Result      json.RawMessage
	Error       string
}

// HandleCallback applies an asynchronous outcome through the same complete
// and fail path as synchronous processing.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (*domain.Job, error) {
	job, err := s.lookupCallbackJob(ctx, cb)
	if err != nil {
		return nil, err
	}
	if cb.Error != "" {
		s.logger.Warn().Str("job_id", job.ID).Str("external_ref", cb.ExternalRef).Str("error", cb.Error).Msg("jobs: callback reported failure")
		return s.fail(ctx, job.ID, cb.Error)
	}
	if len(cb.Result) == 0 {
		return nil, fmt.Errorf("%w: callback carries neither result nor error", domain.ErrInvalidInput)
	}
	return s.complete(ctx, job.ID, cb.Result)
}

func (s *Service) lookupCallbackJob(ctx context.Context, cb Callback) (*domain.Job, error) {
	if cb.ExternalRef != "" {
		job, err := s.repo.GetByExternalRef(ctx, cb.ExternalRef)
		if err == nil {
			if cb.JobID != "" && job.ID != cb.JobID {
				return nil, fmt.Errorf("%w: callback for job %s carries reference of %s", domain.ErrUnauthorized, cb.JobID, job.ID)
			}
			return job, nil
		}
		if !errors.Is(err, domain.ErrNotFound) || cb.JobID == "" {
			return nil, err
		}
	}
	if cb.JobID == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, cb.JobID)
}

// ReconcileStale returns in_progress jobs untouched for longer than timeout
// to pending and reports how many were reset.
func (s *Service) ReconcileStale(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return 0, fmt.Errorf("%w: timeout must be positive", domain.ErrInvalidInput)
	}
	cutoff := s.now().Add(-timeout)
	note := fmt.Sprintf("reset after timeout (%s)", timeout)
	reset, err := s.repo.ResetStale(ctx, cutoff, note)
	if err != nil {
		return 0, err
	}
	for _, job := range reset {
		s.logger.Warn().Str("job_id", job.ID).Str("kind", string(job.Kind)).Dur("timeout", timeout).Msg("jobs: stale job reset to pending")
	}
	return len(reset), nil
}

func (s *Service) complete(ctx context.Context, jobID string, result json.RawMessage) (*domain.Job, error) {
	job, err := s.repo.Complete(ctx, jobID, result)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("jobs: completed")
	s.publish(ctx, notify.EventJobCompleted, job)
	return job, nil
}

func (s *Service) fail(ctx context.Context, jobID, message string) (*domain.Job, error) {
	job, err := s.repo.Fail(ctx, jobID, truncateMessage(message))
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("jobs: failed")
	s.publish(ctx, notify.EventJobFailed, job)
	return job, nil
}

// truncateMessage bounds message to maxErrorLength bytes of valid UTF-8,
// cutting only on rune boundaries.
func truncateMessage(message string) string {
	message = strings.ToValidUTF8(message, "\uFFFD")
	if len(message) <= maxErrorLength {
		return message
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

// publish never fails the caller; delivery problems are only logged.
func (s *Service) publish(ctx context.Context, eventType notify.EventType, job *domain.Job) {
	if err := s.publisher.Publish(ctx, notify.JobEvent(eventType, job), job.ParentID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Str("event", string(eventType)).Msg("jobs: publish event failed")
	}
}
