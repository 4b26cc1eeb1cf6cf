// Package speech turns narration text into audio.
package speech

import (
	"context"
	"errors"
)

// ErrMissingAPIKey indicates that a remote client was configured without credentials.
var ErrMissingAPIKey = errors.New("speech: api key is required")

// Request is one synthesis call. Text must fit the provider's input limit.
type Request struct {
	Text     string
	Voice    string
	Model    string
	Language string
}

// Audio is a synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Synthesizer performs text-to-speech synchronously.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}
