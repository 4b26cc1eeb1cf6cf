// Package video pairs narration audio with an avatar clip (lip-sync).
package video

import (
	"context"
	"errors"
)

// ErrMissingAPIKey indicates that a remote client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// LipSyncRequest describes one lip-sync render. Avatar is either an image URL
// or a provider-side preset name and is used when VideoURL is empty.
type LipSyncRequest struct {
	AudioURL  string
	VideoURL  string
	Avatar    string
	Model     string
	RequestID string
}

// Asset is a rendered clip.
type Asset struct {
	URL    string
	Format string
}

// Generator renders synchronously.
type Generator interface {
	Generate(ctx context.Context, req LipSyncRequest) (*Asset, error)
}

// AsyncGenerator queues a render whose outcome is delivered to webhookURL.
// It returns the provider's request id.
type AsyncGenerator interface {
	Submit(ctx context.Context, req LipSyncRequest, webhookURL string) (string, error)
}
