package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"newscast/internal/domain"
	"newscast/internal/domain/jsoncfg"
	"newscast/internal/providers/video"
)

// VideoProcessor submits lip-sync renders. With an async provider and a
// callback signer the job waits for the provider's webhook; otherwise the
// render runs synchronously.
type VideoProcessor struct {
	sync      video.Generator
	async     video.AsyncGenerator
	callbacks *CallbackSigner
	logger    zerolog.Logger
}

// VideoOptions wires a VideoProcessor. Async and Callbacks must be set
// together to enable callback delivery.
type VideoOptions struct {
	Sync      video.Generator
	Async     video.AsyncGenerator
	Callbacks *CallbackSigner
	Logger    zerolog.Logger
}

func NewVideoProcessor(opts VideoOptions) (*VideoProcessor, error) {
	if opts.Sync == nil && opts.Async == nil {
		return nil, errors.New("jobs: video processor needs a generator")
	}
	if opts.Async != nil && opts.Callbacks == nil {
		return nil, errors.New("jobs: async video generation needs a callback signer")
	}
	return &VideoProcessor{
		sync:      opts.Sync,
		async:     opts.Async,
		callbacks: opts.Callbacks,
		logger:    opts.Logger,
	}, nil
}

func (p *VideoProcessor) Kind() domain.JobKind { return domain.JobKindVideo }

func (p *VideoProcessor) Process(ctx context.Context, job *domain.Job) (Outcome, error) {
	var in jsoncfg.VideoInput
	if err := json.Unmarshal(job.Input, &in); err != nil {
		return Outcome{}, fmt.Errorf("decode video input: %w", err)
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("video input: %w", err)
	}
	req := video.LipSyncRequest{
		AudioURL:  in.AudioURL,
		VideoURL:  in.VideoURL,
		Avatar:    in.Avatar,
		Model:     in.Model,
		RequestID: job.ID,
	}

	if p.async != nil {
		ref, err := p.async.Submit(ctx, req, p.callbacks.URL(job.ID))
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: submit lip-sync: %v", domain.ErrProviderFailure, err)
		}
		return Outcome{ExternalRef: ref}, nil
	}

	asset, err := p.sync.Generate(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: lip-sync: %v", domain.ErrProviderFailure, err)
	}
	p.logger.Debug().Str("job_id", job.ID).Str("url", asset.URL).Msg("video: rendered")
	return Outcome{Result: jsoncfg.MustMarshal(jsoncfg.VideoResult{URL: asset.URL})}, nil
}

var _ Processor = (*VideoProcessor)(nil)
