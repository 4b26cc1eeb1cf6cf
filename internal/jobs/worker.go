package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"newscast/internal/domain"
)

// DefaultPollInterval is the idle sleep between empty polling rounds.
const DefaultPollInterval = 2 * time.Second

// Worker polls the store for pending jobs and processes them one at a time.
type Worker struct {
	service *Service
	kinds   []domain.JobKind
	poll    time.Duration
	logger  zerolog.Logger
}

func NewWorker(service *Service, kinds []domain.JobKind, poll time.Duration, logger zerolog.Logger) *Worker {
	if len(kinds) == 0 {
		kinds = domain.JobKinds
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Worker{service: service, kinds: kinds, poll: poll, logger: logger}
}

// Run polls until ctx ends. It sleeps only after a round that found no work.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Dur("poll", w.poll).Msg("worker: started")
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info().Msg("worker: stopped")
			return nil
		}
		if w.RunOnce(ctx) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.poll):
		}
	}
}

// RunOnce tries one job of every kind and returns how many were processed.
func (w *Worker) RunOnce(ctx context.Context) int {
	processed := 0
	for _, kind := range w.kinds {
		job, err := w.service.ProcessNext(ctx, kind)
		if err != nil {
			if errors.Is(err, domain.ErrNoPendingJob) || ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Str("kind", string(kind)).Msg("worker: process job failed")
			continue
		}
		processed++
		w.logger.Info().Str("job_id", job.ID).Str("kind", string(kind)).Str("status", string(job.Status)).Msg("worker: job processed")
	}
	return processed
}
