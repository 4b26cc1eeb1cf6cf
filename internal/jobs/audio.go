package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"newscast/internal/domain"
	"newscast/internal/domain/jsoncfg"
	"newscast/internal/providers/speech"
	"newscast/internal/storage"
)

// AudioProcessor synthesizes each chunk of narration and stores the clips.
type AudioProcessor struct {
	speech speech.Synthesizer
	store  storage.Store
	logger zerolog.Logger
}

func NewAudioProcessor(synth speech.Synthesizer, store storage.Store, logger zerolog.Logger) *AudioProcessor {
	return &AudioProcessor{speech: synth, store: store, logger: logger}
}

func (p *AudioProcessor) Kind() domain.JobKind { return domain.JobKindAudio }

func (p *AudioProcessor) Process(ctx context.Context, job *domain.Job) (Outcome, error) {
	var in jsoncfg.AudioInput
	if err := json.Unmarshal(job.Input, &in); err != nil {
		return Outcome{}, fmt.Errorf("decode audio input: %w", err)
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("audio input: %w", err)
	}

	result := jsoncfg.AudioResult{Chunks: make([]jsoncfg.ChunkResult, 0, len(in.Chunks))}
	for i, text := range in.Chunks {
		audio, err := p.speech.Synthesize(ctx, speech.Request{
			Text:     text,
			Voice:    in.Voice,
			Model:    in.Model,
			Language: in.Language,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: synthesize chunk %d: %v", domain.ErrProviderFailure, i, err)
		}
		key := storage.JobKey(string(domain.JobKindAudio), job.ID, fmt.Sprintf("chunk-%03d.%s", i, audio.Extension))
		saved, err := p.store.Write(ctx, key, audio.Data, audio.ContentType)
		if err != nil {
			return Outcome{}, fmt.Errorf("store chunk %d: %w", i, err)
		}
		result.Chunks = append(result.Chunks, jsoncfg.ChunkResult{Index: i, URL: p.store.URL(saved)})
		p.logger.Debug().Str("job_id", job.ID).Int("chunk", i).Int("bytes", len(audio.Data)).Msg("audio: chunk stored")
	}
	result.URL = result.Chunks[0].URL
	return Outcome{Result: jsoncfg.MustMarshal(result)}, nil
}

var _ Processor = (*AudioProcessor)(nil)
