package video

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Synthetic returns a deterministic placeholder clip. It stands in for the
// lip-sync provider when no credentials are configured.
type Synthetic struct {
	BaseURL string
	Delay   time.Duration
}

func NewSynthetic(baseURL string, delay time.Duration) *Synthetic {
	if baseURL == "" {
		baseURL = "https://cdn.example.com/synthetic"
	}
	return &Synthetic{BaseURL: strings.TrimRight(baseURL, "/"), Delay: delay}
}

func (s *Synthetic) Generate(ctx context.Context, req LipSyncRequest) (*Asset, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sum := sha1.Sum([]byte(req.AudioURL + "|" + req.VideoURL + "|" + req.Avatar))
	return &Asset{
		URL:    fmt.Sprintf("%s/%s.mp4", s.BaseURL, hex.EncodeToString(sum[:8])),
		Format: "video/mp4",
	}, nil
}

var _ Generator = (*Synthetic)(nil)
